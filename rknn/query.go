package rknn

/*
#include "rknn_api.h"
#include <stdlib.h>
*/
import "C"
import (
	"fmt"
	"io"
	"strings"
	"unsafe"

	"github.com/swdee/go-rknneval/tensor"
)

// QueryIONumber queries the number of Input and Output tensors of the model
func (r *Runtime) QueryIONumber() (tensor.IONumber, error) {

	// prepare the structure to receive the Input/Output number
	var cIONum C.rknn_input_output_num

	ret := C.rknn_query(r.ctx, C.RKNN_QUERY_IN_OUT_NUM, unsafe.Pointer(&cIONum),
		C.uint(C.sizeof_rknn_input_output_num))

	if ret != C.RKNN_SUCC {
		return tensor.IONumber{}, fmt.Errorf("C.rknn_query RKNN_QUERY_IN_OUT_NUM failed with code %d, error: %s",
			int(ret), ErrorCodes(ret).String())
	}

	return tensor.IONumber{
		NumberInput:  uint32(cIONum.n_input),
		NumberOutput: uint32(cIONum.n_output),
	}, nil
}

// QueryInputAttr gets the attributes of the input tensor at index
func (r *Runtime) QueryInputAttr(index uint32) (tensor.Attr, error) {

	var cAttr C.rknn_tensor_attr
	cAttr.index = C.uint32_t(index)

	ret := C.rknn_query(r.ctx, C.RKNN_QUERY_INPUT_ATTR,
		unsafe.Pointer(&cAttr), C.uint(unsafe.Sizeof(cAttr)))

	if ret != C.RKNN_SUCC {
		return tensor.Attr{}, fmt.Errorf("C.rknn_query RKNN_QUERY_INPUT_ATTR index %d failed with code %d, error: %s",
			index, int(ret), ErrorCodes(ret).String())
	}

	return convertTensorAttr(&cAttr), nil
}

// QueryOutputAttr gets the attributes of the output tensor at index
func (r *Runtime) QueryOutputAttr(index uint32) (tensor.Attr, error) {

	var cAttr C.rknn_tensor_attr
	cAttr.index = C.uint32_t(index)

	ret := C.rknn_query(r.ctx, C.RKNN_QUERY_OUTPUT_ATTR,
		unsafe.Pointer(&cAttr), C.uint(unsafe.Sizeof(cAttr)))

	if ret != C.RKNN_SUCC {
		return tensor.Attr{}, fmt.Errorf("C.rknn_query RKNN_QUERY_OUTPUT_ATTR index %d failed with code %d, error: %s",
			index, int(ret), ErrorCodes(ret).String())
	}

	attr := convertTensorAttr(&cAttr)
	r.outputAttrs[index] = attr

	return attr, nil
}

// convertTensorAttr converts a C.rknn_tensor_attr to a Go tensor.Attr.  The
// Go enum values are the same as the C ones so they convert directly
func convertTensorAttr(cAttr *C.rknn_tensor_attr) tensor.Attr {

	// convert C char array to Go string for Name field
	name := C.GoStringN(&cAttr.name[0], C.RKNN_MAX_NAME_LEN)

	// trim the string at the first null character
	if idx := strings.IndexByte(name, 0); idx != -1 {
		name = name[:idx]
	}

	var dims [tensor.MaxDims]uint32

	for i := 0; i < int(C.RKNN_MAX_DIMS) && i < tensor.MaxDims; i++ {
		dims[i] = uint32(cAttr.dims[i])
	}

	return tensor.Attr{
		Index:          uint32(cAttr.index),
		NDims:          uint32(cAttr.n_dims),
		Dims:           dims,
		Name:           name,
		NElems:         uint32(cAttr.n_elems),
		Size:           uint32(cAttr.size),
		Fmt:            tensor.Format(cAttr.fmt),
		Type:           tensor.Type(cAttr._type),
		QntType:        tensor.QntType(cAttr.qnt_type),
		FL:             int8(cAttr.fl),
		ZP:             int32(cAttr.zp),
		Scale:          float32(cAttr.scale),
		WStride:        uint32(cAttr.w_stride),
		SizeWithStride: uint32(cAttr.size_with_stride),
		PassThrough:    cAttr.pass_through != 0,
		HStride:        uint32(cAttr.h_stride),
	}
}

// Query the runtime and loaded model to get input and output tensor information
// as well as SDK version in text/human readable format
func (r *Runtime) Query(w io.Writer) error {

	ver, err := r.SDKVersion()

	if err != nil {
		return fmt.Errorf("error querying SDK version: %w", err)
	}

	fmt.Fprintf(w, "Driver Version: %s, API Version: %s\n", ver.DriverVersion, ver.APIVersion)

	num, err := r.QueryIONumber()

	if err != nil {
		return fmt.Errorf("error querying IO Numbers: %w", err)
	}

	fmt.Fprintf(w, "Model Input Number: %d, Output Number: %d\n", num.NumberInput, num.NumberOutput)
	fmt.Fprintf(w, "Input tensors:\n")

	for i := uint32(0); i < num.NumberInput; i++ {
		attr, err := r.QueryInputAttr(i)

		if err != nil {
			return fmt.Errorf("error querying Input Tensors: %w", err)
		}

		fmt.Fprintf(w, "  %s\n", attr.String())
	}

	fmt.Fprintf(w, "Output tensors:\n")

	for i := uint32(0); i < num.NumberOutput; i++ {
		attr, err := r.QueryOutputAttr(i)

		if err != nil {
			return fmt.Errorf("error querying Output Tensors: %w", err)
		}

		fmt.Fprintf(w, "  %s\n", attr.String())
	}

	return nil
}
