package rknneval

import "fmt"

// DecodeError is returned when an image in the dataset can not be read or
// converted to RGB.  With the default DecodeAbort policy it ends the walk
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode image %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// PreprocessError is returned when an image could not be turned into an input
// tensor.  Stage is one of "validate", "check" or "resize"
type PreprocessError struct {
	Stage string
	Err   error
}

func (e *PreprocessError) Error() string {
	return fmt.Sprintf("preprocess %s failed: %v", e.Stage, e.Err)
}

func (e *PreprocessError) Unwrap() error {
	return e.Err
}

// InferError is returned when inference of a single image failed.  Stage is
// one of "inputs", "run", "outputs" or "decode"
type InferError struct {
	Stage string
	Err   error
}

func (e *InferError) Error() string {
	return fmt.Sprintf("inference %s failed: %v", e.Stage, e.Err)
}

func (e *InferError) Unwrap() error {
	return e.Err
}
