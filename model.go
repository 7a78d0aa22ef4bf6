package rknneval

import (
	"fmt"
	"io"
	"os"
)

// LoadModel reads the compiled RKNN model file into memory so it can be
// passed to the runtime
func LoadModel(modelFile string) ([]byte, error) {

	f, err := os.Open(modelFile)

	if err != nil {
		return nil, fmt.Errorf("error opening model file %s: %w", modelFile, err)
	}

	defer f.Close()

	info, err := f.Stat()

	if err != nil {
		return nil, fmt.Errorf("error reading model file %s: %w", modelFile, err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("model file %s is a directory", modelFile)
	}

	size := info.Size()

	if size == 0 {
		return nil, fmt.Errorf("model file %s is empty", modelFile)
	}

	data := make([]byte, size)

	if _, err := io.ReadFull(f, data); err != nil {
		return nil, fmt.Errorf("error reading model file %s: %w", modelFile, err)
	}

	return data, nil
}
