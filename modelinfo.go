package rknneval

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/swdee/go-rknneval/tensor"
)

// ModelInfo is the input geometry and output representation of the loaded
// model
type ModelInfo struct {
	Width   int
	Height  int
	Channel int
	// Quantized is true when the outputs are int8 with affine (zero point,
	// scale) dequantization, false when they are floating point
	Quantized bool
}

// Metadata holds the tensor attributes queried from the Session once at
// startup.  It must not be modified after ResolveMetadata returns
type Metadata struct {
	IONumber tensor.IONumber
	Inputs   []tensor.Attr
	Outputs  []tensor.Attr
}

// ResolveMetadata queries the input and output tensor attributes of the
// model loaded in sess
func ResolveMetadata(sess Session, log *zap.Logger) (*Metadata, error) {

	if log == nil {
		log = zap.NewNop()
	}

	num, err := sess.QueryIONumber()

	if err != nil {
		return nil, fmt.Errorf("error querying IO numbers: %w", err)
	}

	log.Info("model io number",
		zap.Uint32("inputs", num.NumberInput),
		zap.Uint32("outputs", num.NumberOutput),
	)

	if num.NumberInput == 0 || num.NumberOutput == 0 {
		return nil, fmt.Errorf("model has %d inputs and %d outputs, need at least one of each",
			num.NumberInput, num.NumberOutput)
	}

	md := &Metadata{
		IONumber: num,
		Inputs:   make([]tensor.Attr, num.NumberInput),
		Outputs:  make([]tensor.Attr, num.NumberOutput),
	}

	for i := uint32(0); i < num.NumberInput; i++ {
		md.Inputs[i], err = sess.QueryInputAttr(i)

		if err != nil {
			return nil, fmt.Errorf("error querying input tensor %d: %w", i, err)
		}

		log.Info("input tensor", zap.String("attr", md.Inputs[i].String()))
	}

	for i := uint32(0); i < num.NumberOutput; i++ {
		md.Outputs[i], err = sess.QueryOutputAttr(i)

		if err != nil {
			return nil, fmt.Errorf("error querying output tensor %d: %w", i, err)
		}

		log.Info("output tensor", zap.String("attr", md.Outputs[i].String()))
	}

	return md, nil
}

// IsQuantized reports whether an output tensor holds affine quantized values.
// FP16 outputs are treated as floating point even when they carry affine
// quantization parameters
func IsQuantized(attr tensor.Attr) bool {
	return attr.QntType == tensor.QntAffine && attr.Type != tensor.Float16
}

// ModelInfo derives the input dimensions from the first input tensor and the
// quantization mode from the first output tensor
func (m *Metadata) ModelInfo() (ModelInfo, error) {

	if len(m.Inputs) == 0 || len(m.Outputs) == 0 {
		return ModelInfo{}, fmt.Errorf("metadata has no input or output tensors")
	}

	in := m.Inputs[0]

	if in.NDims < 4 {
		return ModelInfo{}, fmt.Errorf("input tensor has %d dimensions, expected 4", in.NDims)
	}

	var info ModelInfo

	if in.Fmt == tensor.NCHW {
		info.Channel = int(in.Dims[1])
		info.Height = int(in.Dims[2])
		info.Width = int(in.Dims[3])
	} else {
		info.Height = int(in.Dims[1])
		info.Width = int(in.Dims[2])
		info.Channel = int(in.Dims[3])
	}

	if info.Width <= 0 || info.Height <= 0 || info.Channel <= 0 {
		return ModelInfo{}, fmt.Errorf("invalid input dimensions %dx%dx%d",
			info.Width, info.Height, info.Channel)
	}

	info.Quantized = IsQuantized(m.Outputs[0])

	return info, nil
}

// ZeroPoints returns the output zero points ordered by output index
func (m *Metadata) ZeroPoints() []int32 {

	zps := make([]int32, 0, len(m.Outputs))

	for _, attr := range m.Outputs {
		zps = append(zps, attr.ZP)
	}

	return zps
}

// Scales returns the output quantization scales ordered by output index
func (m *Metadata) Scales() []float32 {

	scales := make([]float32, 0, len(m.Outputs))

	for _, attr := range m.Outputs {
		scales = append(scales, attr.Scale)
	}

	return scales
}
