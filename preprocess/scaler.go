// Package preprocess provides a software image Scaler for hosts without the
// RGA hardware scaler.  See package preprocess/rga for the hardware version.
package preprocess

import (
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/swdee/go-rknneval"
)

// bytesPerPixel of the packed 24 bit formats handled by the Scaler
const bytesPerPixel = 3

// Scaler resizes packed RGB888/BGR888 frames on the CPU
type Scaler struct {
	// interp is the interpolation used for resizing
	interp draw.Interpolator
	// src and dst are RGBA work images reused between calls while the frame
	// dimensions stay the same
	src *image.RGBA
	dst *image.RGBA
}

// NewScaler returns a Scaler using bilinear interpolation
func NewScaler() *Scaler {
	return NewScalerWith(draw.BiLinear)
}

// NewScalerWith returns a Scaler using the given interpolator, such as
// draw.NearestNeighbor or draw.CatmullRom
func NewScalerWith(interp draw.Interpolator) *Scaler {
	return &Scaler{
		interp: interp,
	}
}

// Check validates the source and destination frames can be resized
func (s *Scaler) Check(src, dst rknneval.Frame) error {

	if err := checkFrame("source", src); err != nil {
		return err
	}

	if err := checkFrame("destination", dst); err != nil {
		return err
	}

	if src.Format != dst.Format {
		return fmt.Errorf("source format %s does not match destination format %s",
			src.Format, dst.Format)
	}

	return nil
}

// checkFrame validates the dimensions and buffer size of a frame
func checkFrame(name string, f rknneval.Frame) error {

	if f.Format != rknneval.FormatRGB888 && f.Format != rknneval.FormatBGR888 {
		return fmt.Errorf("%s format %s is not supported", name, f.Format)
	}

	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%s has invalid dimensions %dx%d", name, f.Width, f.Height)
	}

	if want := f.Width * f.Height * bytesPerPixel; len(f.Buf) < want {
		return fmt.Errorf("%s buffer holds %d bytes, need %d", name, len(f.Buf), want)
	}

	return nil
}

// Resize scales src into dst.Buf.  The channel order is carried through
// unchanged
func (s *Scaler) Resize(src, dst rknneval.Frame) error {

	if err := s.Check(src, dst); err != nil {
		return err
	}

	s.src = workImage(s.src, src.Width, src.Height)
	s.dst = workImage(s.dst, dst.Width, dst.Height)

	packedToRGBA(src.Buf, s.src)

	s.interp.Scale(s.dst, s.dst.Bounds(), s.src, s.src.Bounds(), draw.Src, nil)

	rgbaToPacked(s.dst, dst.Buf)

	return nil
}

// workImage returns img if it already has the given size, otherwise a newly
// allocated image
func workImage(img *image.RGBA, width, height int) *image.RGBA {

	if img != nil && img.Rect.Dx() == width && img.Rect.Dy() == height {
		return img
	}

	return image.NewRGBA(image.Rect(0, 0, width, height))
}

// packedToRGBA expands 3 byte pixels into the 4 byte pixels of img
func packedToRGBA(buf []byte, img *image.RGBA) {

	n := img.Rect.Dx() * img.Rect.Dy()

	for i := 0; i < n; i++ {
		img.Pix[i*4] = buf[i*3]
		img.Pix[i*4+1] = buf[i*3+1]
		img.Pix[i*4+2] = buf[i*3+2]
		img.Pix[i*4+3] = 0xff
	}
}

// rgbaToPacked drops the alpha channel of img into buf
func rgbaToPacked(img *image.RGBA, buf []byte) {

	n := img.Rect.Dx() * img.Rect.Dy()

	for i := 0; i < n; i++ {
		buf[i*3] = img.Pix[i*4]
		buf[i*3+1] = img.Pix[i*4+1]
		buf[i*3+2] = img.Pix[i*4+2]
	}
}
