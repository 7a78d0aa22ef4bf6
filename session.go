package rknneval

import (
	"github.com/swdee/go-rknneval/tensor"
)

// Session is the accelerator runtime a compiled model has been loaded into.
// rknn.Runtime implements it against librknnrt
type Session interface {
	// QueryIONumber returns the number of model input and output tensors
	QueryIONumber() (tensor.IONumber, error)
	// QueryInputAttr returns the attributes of the input tensor at index
	QueryInputAttr(index uint32) (tensor.Attr, error)
	// QueryOutputAttr returns the attributes of the output tensor at index
	QueryOutputAttr(index uint32) (tensor.Attr, error)
	// SetInputs submits the input tensors for the next Run
	SetInputs(inputs []tensor.Input) error
	// Run executes the model
	Run() error
	// GetOutputs fetches the results of the last Run.  The caller must Free
	// the returned Outputs
	GetOutputs(reqs []tensor.OutputRequest) (*tensor.Outputs, error)
}

// PixelFormat is the packed pixel layout of a Frame
type PixelFormat int

const (
	FormatRGB888 PixelFormat = iota
	FormatBGR888
)

// String returns a readable description of the PixelFormat
func (f PixelFormat) String() string {
	switch f {
	case FormatRGB888:
		return "RGB888"
	case FormatBGR888:
		return "BGR888"
	default:
		return "UNKNOWN"
	}
}

// Frame wraps a pixel buffer with its dimensions and format for passing to
// a Scaler
type Frame struct {
	Buf    []byte
	Width  int
	Height int
	Format PixelFormat
}

// WrapFrame returns a Frame describing buf
func WrapFrame(buf []byte, width, height int, format PixelFormat) Frame {
	return Frame{
		Buf:    buf,
		Width:  width,
		Height: height,
		Format: format,
	}
}

// Scaler resizes a source Frame into a destination Frame.  The RGA hardware
// scaler and the software scaler both implement it
type Scaler interface {
	// Check validates that src can be resized into dst
	Check(src, dst Frame) error
	// Resize scales src into the buffer of dst
	Resize(src, dst Frame) error
}

// ChannelOrder is the order of the colour channels in a decoded Image
type ChannelOrder int

const (
	OrderRGB ChannelOrder = iota
	OrderBGR
)

// String returns a readable description of the ChannelOrder
func (o ChannelOrder) String() string {
	switch o {
	case OrderRGB:
		return "RGB"
	case OrderBGR:
		return "BGR"
	default:
		return "UNKNOWN"
	}
}

// Image is a decoded picture held as packed 8 bit pixels with no row
// padding, so len(Pix) == Width*Height*Channels
type Image struct {
	Width    int
	Height   int
	Channels int
	Order    ChannelOrder
	Pix      []byte
	// closer releases memory owned outside of Go, such as a gocv.Mat
	closer func() error
}

// NewImage returns an Image over pix.  closer may be nil when pix is owned
// by Go
func NewImage(width, height, channels int, order ChannelOrder, pix []byte,
	closer func() error) *Image {

	return &Image{
		Width:    width,
		Height:   height,
		Channels: channels,
		Order:    order,
		Pix:      pix,
		closer:   closer,
	}
}

// Close releases the pixel memory if it is not owned by Go
func (i *Image) Close() error {

	if i == nil || i.closer == nil {
		return nil
	}

	closer := i.closer
	i.closer = nil

	return closer()
}

// Codec decodes image files from disk
type Codec interface {
	// Decode reads and decodes the image file at path into the codec's
	// native channel order
	Decode(path string) (*Image, error)
	// ToRGB returns img with its channels in RGB order.  If img is already
	// RGB it is returned as is
	ToRGB(img *Image) (*Image, error)
}

// BoxRect are the dimensions of the bounding box of a detect object
type BoxRect struct {
	Left   int
	Right  int
	Top    int
	Bottom int
}

// Detection defines the attributes of a single object detected
type Detection struct {
	// Class is the line number in the labels file the Model was trained on
	// defining the Class of the detected object
	Class int
	// Box are the bounding box dimensions of the object location in original
	// image pixel coordinates
	Box BoxRect
	// Probability is the confidence score of the object detected
	Probability float32
}

// DecodeRequest carries everything a Decoder needs to turn raw output
// tensors into detections
type DecodeRequest struct {
	// Outputs are the output tensors ordered by output index.  Their buffers
	// are released when Decode returns and must not be retained
	Outputs []tensor.Output
	// ModelWidth and ModelHeight are the model input dimensions
	ModelWidth  int
	ModelHeight int
	// BoxThreshold is the minimum confidence for a box to be kept
	BoxThreshold float32
	// NMSThreshold is the maximum IoU allowed between two kept boxes of the
	// same class
	NMSThreshold float32
	// Scale maps model space coordinates back to the original image
	Scale ScaleFactors
	// ZPs and Scales are the output dequantization parameters aligned with
	// Outputs
	ZPs    []int32
	Scales []float32
}

// Decoder converts raw network outputs into detections
type Decoder interface {
	Decode(req DecodeRequest) ([]Detection, error)
}
