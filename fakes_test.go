package rknneval

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/swdee/go-rknneval/tensor"
)

// fakeSession is an in memory Session with canned tensor attributes and
// outputs
type fakeSession struct {
	num     tensor.IONumber
	inputs  []tensor.Attr
	outputs []tensor.Attr

	queryErr  error
	setErr    error
	runErr    error
	outputErr error
	// makeOutputs builds the outputs returned by GetOutputs, by default one
	// float output of four values per request
	makeOutputs func(reqs []tensor.OutputRequest) []tensor.Output

	calls     []string
	setInputs [][]tensor.Input
	reqs      [][]tensor.OutputRequest
	released  int
}

func newFakeSession(inputs, outputs []tensor.Attr) *fakeSession {
	return &fakeSession{
		num: tensor.IONumber{
			NumberInput:  uint32(len(inputs)),
			NumberOutput: uint32(len(outputs)),
		},
		inputs:  inputs,
		outputs: outputs,
	}
}

func (s *fakeSession) QueryIONumber() (tensor.IONumber, error) {
	s.calls = append(s.calls, "io")
	return s.num, s.queryErr
}

func (s *fakeSession) QueryInputAttr(index uint32) (tensor.Attr, error) {
	s.calls = append(s.calls, fmt.Sprintf("input%d", index))

	if int(index) >= len(s.inputs) {
		return tensor.Attr{}, errors.New("input index out of range")
	}

	return s.inputs[index], nil
}

func (s *fakeSession) QueryOutputAttr(index uint32) (tensor.Attr, error) {
	s.calls = append(s.calls, fmt.Sprintf("output%d", index))

	if int(index) >= len(s.outputs) {
		return tensor.Attr{}, errors.New("output index out of range")
	}

	return s.outputs[index], nil
}

func (s *fakeSession) SetInputs(inputs []tensor.Input) error {
	s.calls = append(s.calls, "set")
	s.setInputs = append(s.setInputs, inputs)
	return s.setErr
}

func (s *fakeSession) Run() error {
	s.calls = append(s.calls, "run")
	return s.runErr
}

func (s *fakeSession) GetOutputs(reqs []tensor.OutputRequest) (*tensor.Outputs, error) {
	s.calls = append(s.calls, "get")
	s.reqs = append(s.reqs, reqs)

	if s.outputErr != nil {
		return nil, s.outputErr
	}

	var outs []tensor.Output

	if s.makeOutputs != nil {
		outs = s.makeOutputs(reqs)
	} else {
		for _, r := range reqs {
			outs = append(outs, tensor.Output{
				Index:     r.Index,
				WantFloat: true,
				BufFloat:  []float32{0.5, 1, 1.5, 2},
				Size:      16,
			})
		}
	}

	return tensor.NewOutputs(outs, func() error {
		s.released++
		return nil
	}), nil
}

// fakeScaler fills the destination with a constant value
type fakeScaler struct {
	checkErr  error
	resizeErr error
	checks    int
	resizes   int
	lastSrc   Frame
	lastDst   Frame
}

func (f *fakeScaler) Check(src, dst Frame) error {
	f.checks++
	f.lastSrc = src
	f.lastDst = dst
	return f.checkErr
}

func (f *fakeScaler) Resize(src, dst Frame) error {
	f.resizes++

	if f.resizeErr != nil {
		return f.resizeErr
	}

	for i := range dst.Buf {
		dst.Buf[i] = 7
	}

	return nil
}

// fakeCodec serves images from memory keyed by file name
type fakeCodec struct {
	images  map[string]*Image
	fail    map[string]error
	decoded []string
	closed  int
}

func (c *fakeCodec) Decode(path string) (*Image, error) {

	name := filepath.Base(path)
	c.decoded = append(c.decoded, name)

	if err, ok := c.fail[name]; ok {
		return nil, err
	}

	img, ok := c.images[name]

	if !ok {
		return nil, fmt.Errorf("no such image %s", name)
	}

	return NewImage(img.Width, img.Height, img.Channels, img.Order, img.Pix,
		func() error {
			c.closed++
			return nil
		}), nil
}

func (c *fakeCodec) ToRGB(img *Image) (*Image, error) {
	return img, nil
}

// fakeDecoder records each request and returns a fixed set of detections
type fakeDecoder struct {
	dets []Detection
	err  error
	reqs []DecodeRequest
}

func (d *fakeDecoder) Decode(req DecodeRequest) ([]Detection, error) {
	d.reqs = append(d.reqs, req)
	return d.dets, d.err
}

// nhwcInput returns the attribute of an NHWC uint8 input tensor
func nhwcInput(w, h, c uint32) tensor.Attr {
	return tensor.Attr{
		Index:  0,
		NDims:  4,
		Dims:   [tensor.MaxDims]uint32{1, h, w, c},
		Name:   "images",
		NElems: w * h * c,
		Size:   w * h * c,
		Fmt:    tensor.NHWC,
		Type:   tensor.Uint8,
	}
}

// yoloOutputs returns three output attributes of the given type and
// quantization
func yoloOutputs(typ tensor.Type, qnt tensor.QntType) []tensor.Attr {

	outs := make([]tensor.Attr, 3)

	for i := range outs {
		outs[i] = tensor.Attr{
			Index:   uint32(i),
			NDims:   4,
			Dims:    [tensor.MaxDims]uint32{1, 255, 80 >> i, 80 >> i},
			Name:    fmt.Sprintf("output%d", i),
			Fmt:     tensor.NCHW,
			Type:    typ,
			QntType: qnt,
			ZP:      int32(-128 + i),
			Scale:   0.1 * float32(i+1),
		}
	}

	return outs
}

// rgbImage returns a Go owned RGB image filled with v
func rgbImage(w, h int, v byte) *Image {

	pix := make([]byte, w*h*3)

	for i := range pix {
		pix[i] = v
	}

	return NewImage(w, h, 3, OrderRGB, pix, nil)
}
