// Package tensor mirrors the tensor descriptors of the RKNN C API as plain Go
// types, so code that orchestrates inference can be built and tested without
// linking against librknnrt.
package tensor

import (
	"fmt"
	"strings"
)

// Format is the data layout of a tensor, matching rknn_tensor_format
type Format int

const (
	NCHW      Format = 0
	NHWC      Format = 1
	NC1HWC2   Format = 2
	Undefined Format = 3
)

// Type is the element type of a tensor, matching rknn_tensor_type
type Type int

const (
	Float32  Type = 0
	Float16  Type = 1
	Int8     Type = 2
	Uint8    Type = 3
	Int16    Type = 4
	Uint16   Type = 5
	Int32    Type = 6
	Uint32   Type = 7
	Int64    Type = 8
	Bool     Type = 9
	Int4     Type = 10
	BFloat16 Type = 11
)

// QntType is the quantization scheme of a tensor, matching
// rknn_tensor_qnt_type
type QntType int

const (
	QntNone   QntType = 0
	QntDFP    QntType = 1
	QntAffine QntType = 2
)

// MaxDims is the maximum number of dimensions a tensor attribute can hold
const MaxDims = 16

// Attr represents the rknn_tensor_attr structure returned when querying the
// input and output tensors of a loaded model
type Attr struct {
	Index          uint32
	NDims          uint32
	Dims           [MaxDims]uint32
	Name           string
	NElems         uint32
	Size           uint32
	Fmt            Format
	Type           Type
	QntType        QntType
	FL             int8
	ZP             int32
	Scale          float32
	WStride        uint32
	SizeWithStride uint32
	PassThrough    bool
	HStride        uint32
}

// Shape returns the used dimensions of the tensor
func (a Attr) Shape() []uint32 {

	n := a.NDims

	if n > MaxDims {
		n = MaxDims
	}

	return a.Dims[:n]
}

// String returns the Attr's attributes formatted as a string
func (a Attr) String() string {

	dims := make([]string, 0, a.NDims)

	for _, d := range a.Shape() {
		dims = append(dims, fmt.Sprintf("%d", d))
	}

	return fmt.Sprintf("index=%d, name=%s, n_dims=%d, dims=[%s], n_elems=%d, "+
		"size=%d, w_stride=%d, size_with_stride=%d, fmt=%s, type=%s, "+
		"qnt_type=%s, zp=%d, scale=%f",
		a.Index, a.Name, a.NDims, strings.Join(dims, ", "), a.NElems, a.Size,
		a.WStride, a.SizeWithStride, a.Fmt.String(), a.Type.String(),
		a.QntType.String(), a.ZP, a.Scale,
	)
}

// String returns a readable description of the Type
func (t Type) String() string {
	switch t {
	case Float32:
		return "FP32"
	case Float16:
		return "FP16"
	case Int8:
		return "INT8"
	case Uint8:
		return "UINT8"
	case Int16:
		return "INT16"
	case Uint16:
		return "UINT16"
	case Int32:
		return "INT32"
	case Uint32:
		return "UINT32"
	case Int64:
		return "INT64"
	case Bool:
		return "BOOL"
	case Int4:
		return "INT4"
	case BFloat16:
		return "BF16"
	default:
		return "UNKNOW"
	}
}

// String returns a readable description of the QntType
func (t QntType) String() string {
	switch t {
	case QntNone:
		return "NONE"
	case QntDFP:
		return "DFP"
	case QntAffine:
		return "AFFINE"
	default:
		return "UNKNOW"
	}
}

// String returns a readable description of the Format
func (f Format) String() string {
	switch f {
	case NCHW:
		return "NCHW"
	case NHWC:
		return "NHWC"
	case NC1HWC2:
		return "NC1HWC2"
	case Undefined:
		return "UNDEFINED"
	default:
		return "UNKNOW"
	}
}
