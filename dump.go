package rknneval

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/swdee/go-rknneval/tensor"
)

// OutputDumper writes output tensors to text files, one value per line, for
// comparing results against other toolchains
type OutputDumper struct {
	dir string
}

// NewOutputDumper returns an OutputDumper writing into dir, creating it if
// needed
func NewOutputDumper(dir string) (*OutputDumper, error) {

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating dump directory %s: %w", dir, err)
	}

	return &OutputDumper{dir: dir}, nil
}

// Dump writes every output of one image to <dir>/<image>_out<index>.txt.
// Quantized outputs are dequantized with the zero point and scale of their
// attribute first
func (d *OutputDumper) Dump(image string, outs []tensor.Output, attrs []tensor.Attr) error {

	base := strings.TrimSuffix(filepath.Base(image), filepath.Ext(image))

	for i, out := range outs {

		vals := out.BufFloat

		if vals == nil && out.BufInt != nil {
			if i >= len(attrs) {
				return fmt.Errorf("no attributes for output %d", i)
			}

			vals = tensor.Dequantize(out.BufInt, attrs[i].ZP, attrs[i].Scale)
		}

		file := filepath.Join(d.dir, fmt.Sprintf("%s_out%d.txt", base, out.Index))

		if err := saveFloat(file, vals); err != nil {
			return err
		}
	}

	return nil
}

// saveFloat writes vals to file with six decimal places
func saveFloat(file string, vals []float32) error {

	f, err := os.Create(file)

	if err != nil {
		return fmt.Errorf("error creating %s: %w", file, err)
	}

	w := bufio.NewWriter(f)

	for _, v := range vals {
		fmt.Fprintf(w, "%.6f\n", v)
	}

	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("error writing %s: %w", file, err)
	}

	return f.Close()
}
