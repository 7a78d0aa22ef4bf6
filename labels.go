package rknneval

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// LoadLabels reads the class names the model was trained with, one per line.
// Line n is the name of class n, trailing blank lines are dropped
func LoadLabels(file string) ([]string, error) {

	f, err := os.Open(file)

	if err != nil {
		return nil, fmt.Errorf("error opening labels file %s: %w", file, err)
	}

	defer f.Close()

	scanner := bufio.NewScanner(f)

	var labels []string

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		labels = append(labels, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading labels file %s: %w", file, err)
	}

	// drop trailing blank lines
	for len(labels) > 0 && labels[len(labels)-1] == "" {
		labels = labels[:len(labels)-1]
	}

	return labels, nil
}

// LabelName returns the label of class, or the class number when there is no
// label for it
func LabelName(labels []string, class int) string {

	if class >= 0 && class < len(labels) {
		return labels[class]
	}

	return strconv.Itoa(class)
}
