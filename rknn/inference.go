package rknn

/*
#include "rknn_api.h"
#include <stdlib.h>
*/
import "C"
import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/swdee/go-rknneval/tensor"
)

// SetInputs wraps C.rknn_inputs_set.  The runtime copies the input data so
// the Go buffers are only pinned for the duration of the call
func (r *Runtime) SetInputs(inputs []tensor.Input) error {

	if len(inputs) == 0 {
		return fmt.Errorf("no inputs to set")
	}

	var pinner runtime.Pinner
	defer pinner.Unpin()

	cInputs := make([]C.rknn_input, len(inputs))

	for i, input := range inputs {

		if len(input.Buf) == 0 || int(input.Size) > len(input.Buf) {
			return fmt.Errorf("input %d buffer holds %d bytes, expected %d",
				input.Index, len(input.Buf), input.Size)
		}

		pinner.Pin(&input.Buf[0])

		cInputs[i].index = C.uint32_t(input.Index)
		cInputs[i].buf = unsafe.Pointer(&input.Buf[0])
		cInputs[i].size = C.uint32_t(input.Size)
		cInputs[i].pass_through = C.uint8_t(0)

		if input.PassThrough {
			cInputs[i].pass_through = C.uint8_t(1)
		}

		cInputs[i]._type = C.rknn_tensor_type(input.Type)
		cInputs[i].fmt = C.rknn_tensor_format(input.Fmt)
	}

	ret := C.rknn_inputs_set(r.ctx, C.uint32_t(len(inputs)), &cInputs[0])

	if ret < 0 {
		return fmt.Errorf("C.rknn_inputs_set failed with code %d, error: %s",
			int(ret), ErrorCodes(ret).String())
	}

	return nil
}

// Run wraps C.rknn_run
func (r *Runtime) Run() error {

	ret := C.rknn_run(r.ctx, nil)

	if ret < 0 {
		return fmt.Errorf("C.rknn_run failed with code %d, error: %s",
			int(ret), ErrorCodes(ret).String())
	}

	return nil
}

// GetOutputs wraps C.rknn_outputs_get.  The returned buffers point to memory
// owned by the runtime until Free is called on the Outputs
func (r *Runtime) GetOutputs(reqs []tensor.OutputRequest) (*tensor.Outputs, error) {

	if len(reqs) == 0 {
		return nil, fmt.Errorf("no outputs requested")
	}

	cOutputs := make([]C.rknn_output, len(reqs))

	for i, req := range reqs {
		cOutputs[i].index = C.uint32_t(req.Index)
		cOutputs[i].want_float = C.uint8_t(0)

		if req.WantFloat {
			cOutputs[i].want_float = C.uint8_t(1)
		}
	}

	ret := C.rknn_outputs_get(r.ctx, C.uint32_t(len(cOutputs)), &cOutputs[0], nil)

	if ret < 0 {
		return nil, fmt.Errorf("C.rknn_outputs_get failed with code %d, error: %s",
			int(ret), ErrorCodes(ret).String())
	}

	out := make([]tensor.Output, len(cOutputs))

	for i, cOutput := range cOutputs {
		out[i] = tensor.Output{
			Index:     uint32(cOutput.index),
			WantFloat: cOutput.want_float == 1,
			Size:      uint32(cOutput.size),
		}

		if out[i].WantFloat {
			out[i].BufFloat = unsafe.Slice((*float32)(cOutput.buf), cOutput.size/4)
			continue
		}

		// FP16 models return half precision native outputs, everything else
		// quantized is int8
		if attr, ok := r.outputAttrs[out[i].Index]; ok && attr.Type == tensor.Float16 {
			out[i].BufFloat = tensor.Float16ToFloat32(
				unsafe.Slice((*uint16)(cOutput.buf), cOutput.size/2))
		} else {
			out[i].BufInt = unsafe.Slice((*int8)(cOutput.buf), cOutput.size)
		}
	}

	return tensor.NewOutputs(out, func() error {
		return r.releaseOutputs(cOutputs)
	}), nil
}

// releaseOutputs releases the memory allocated for the outputs by the RKNN
// toolkit directly using C rknn_output structs
func (r *Runtime) releaseOutputs(cOutputs []C.rknn_output) error {

	ret := C.rknn_outputs_release(r.ctx, C.uint32_t(len(cOutputs)), &cOutputs[0])

	if ret != 0 {
		return fmt.Errorf("C.rknn_outputs_release failed with code %d, error: %s",
			ret, ErrorCodes(ret).String())
	}

	return nil
}
