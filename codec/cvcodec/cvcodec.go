// Package cvcodec decodes images with OpenCV through gocv.  Decoded pixels
// stay in the gocv.Mat and are shared with the returned Image without copying
package cvcodec

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/swdee/go-rknneval"
)

// Codec decodes image files with gocv.IMRead.  Images are returned in
// OpenCV's native BGR order and must be Closed to free the Mat
type Codec struct{}

// New returns a gocv backed Codec
func New() *Codec {
	return &Codec{}
}

// Decode reads the image file at path as 3 channel BGR
func (c *Codec) Decode(path string) (*rknneval.Image, error) {

	mat := gocv.IMRead(path, gocv.IMReadColor)

	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("error reading image %s", path)
	}

	return fromMat(&mat, rknneval.OrderBGR)
}

// ToRGB converts a BGR image to a new RGB image with gocv.CvtColor.  An
// image already in RGB order is returned unchanged
func (c *Codec) ToRGB(img *rknneval.Image) (*rknneval.Image, error) {

	if img.Order == rknneval.OrderRGB {
		return img, nil
	}

	if img.Order != rknneval.OrderBGR || img.Channels != 3 {
		return nil, fmt.Errorf("cannot convert %d channel %s image to RGB",
			img.Channels, img.Order)
	}

	src, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV8UC3, img.Pix)

	if err != nil {
		return nil, fmt.Errorf("error wrapping image: %w", err)
	}

	defer src.Close()

	rgb := gocv.NewMat()
	gocv.CvtColor(src, &rgb, gocv.ColorBGRToRGB)

	return fromMat(&rgb, rknneval.OrderRGB)
}

// fromMat returns an Image sharing the pixel data of mat.  Closing the Image
// closes mat
func fromMat(mat *gocv.Mat, order rknneval.ChannelOrder) (*rknneval.Image, error) {

	if !mat.IsContinuous() {
		mat.Close()
		return nil, fmt.Errorf("mat is not continuous")
	}

	pix, err := mat.DataPtrUint8()

	if err != nil {
		mat.Close()
		return nil, fmt.Errorf("error accessing mat data: %w", err)
	}

	return rknneval.NewImage(mat.Cols(), mat.Rows(), mat.Channels(), order, pix,
		mat.Close), nil
}
