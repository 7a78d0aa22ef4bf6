package tensor

import (
	"sync"
)

// IONumber represents the rknn_input_output_num struct
type IONumber struct {
	NumberInput  uint32
	NumberOutput uint32
}

// Input represents the rknn_input struct and defines a single input tensor
// passed to the runtime for inference
type Input struct {
	// Index is the input index
	Index uint32
	// Buf holds the tensor data.  It must stay valid until the inference
	// using it has completed
	Buf []byte
	// Size is the number of bytes of Buf
	Size uint32
	// PassThrough defines the mode, if True the buf data is passed directly to
	// the input node of the rknn model without any conversion.  If False the
	// buf data is converted into an input consistent with the model according
	// to the following Type and Fmt
	PassThrough bool
	// Type is the data type of Buf
	Type Type
	// Fmt is the data format of Buf
	Fmt Format
}

// OutputRequest asks the runtime for one output tensor, either as float32
// or left in the model's native (quantized) representation
type OutputRequest struct {
	Index     uint32
	WantFloat bool
}

// Output holds the result data of one output tensor
type Output struct {
	// Index is the output index
	Index uint32
	// WantFloat reports whether the runtime converted the data to float32
	WantFloat bool
	// BufFloat is set when WantFloat is true, or when a native output is
	// FP16 and has been converted
	BufFloat []float32
	// BufInt is set when the native int8 output was requested
	BufInt []int8
	// Size is the size in bytes of the runtime's output buffer
	Size uint32
}

// Outputs is the set of output tensors from a single inference.  The
// buffers may point to memory owned by the runtime and must be released with
// Free once the results have been consumed
type Outputs struct {
	Output []Output
	// release hands the buffers back to the runtime
	release func() error
	// freed is a flag to indicate if the buffers have been released or not
	freed bool
	// mutex to lock access to freed variable
	sync.Mutex
}

// NewOutputs returns an Outputs set whose buffers are handed back by calling
// release.  A nil release is allowed for Go owned buffers
func NewOutputs(out []Output, release func() error) *Outputs {
	return &Outputs{
		Output:  out,
		release: release,
	}
}

// Free releases the output buffers.  It is safe to call more than once
func (o *Outputs) Free() error {
	o.Lock()
	defer o.Unlock()

	if o.freed {
		// already released
		return nil
	}

	o.freed = true

	if o.release == nil {
		return nil
	}

	return o.release()
}

// Freed reports whether Free has been called
func (o *Outputs) Freed() bool {
	o.Lock()
	defer o.Unlock()
	return o.freed
}
