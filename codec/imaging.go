// Package codec decodes dataset images into the packed pixel Images consumed
// by the inference pipeline.
package codec

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	// registers WebP with image.Decode, which imaging.Open uses
	_ "golang.org/x/image/webp"

	"github.com/swdee/go-rknneval"
)

// Imaging is a pure Go Codec backed by disintegration/imaging.  It decodes
// JPEG, PNG, GIF, TIFF, BMP and WebP files straight to RGB
type Imaging struct {
	// autoOrient applies the EXIF orientation tag when decoding
	autoOrient bool
}

// NewImaging returns an Imaging codec.  When autoOrient is true JPEG images
// are rotated according to their EXIF orientation
func NewImaging(autoOrient bool) *Imaging {
	return &Imaging{
		autoOrient: autoOrient,
	}
}

// Decode reads the image file at path and returns its pixels as RGB888
func (c *Imaging) Decode(path string) (*rknneval.Image, error) {

	img, err := imaging.Open(path, imaging.AutoOrientation(c.autoOrient))

	if err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", path, err)
	}

	return FromImage(img), nil
}

// ToRGB returns img unchanged if it is RGB, otherwise an RGB copy
func (c *Imaging) ToRGB(img *rknneval.Image) (*rknneval.Image, error) {
	return ToRGB(img)
}

// FromImage converts any image.Image to a packed RGB888 Image.  The alpha
// channel is dropped
func FromImage(img image.Image) *rknneval.Image {

	nrgba := imaging.Clone(img)
	w := nrgba.Rect.Dx()
	h := nrgba.Rect.Dy()

	pix := make([]byte, w*h*3)

	for y := 0; y < h; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*4]

		for x := 0; x < w; x++ {
			o := (y*w + x) * 3
			pix[o] = row[x*4]
			pix[o+1] = row[x*4+1]
			pix[o+2] = row[x*4+2]
		}
	}

	return rknneval.NewImage(w, h, 3, rknneval.OrderRGB, pix, nil)
}

// ToRGB returns img if its channels are already in RGB order, otherwise a Go
// owned copy with the red and blue channels swapped
func ToRGB(img *rknneval.Image) (*rknneval.Image, error) {

	switch img.Order {
	case rknneval.OrderRGB:
		return img, nil

	case rknneval.OrderBGR:
		if img.Channels != 3 {
			return nil, fmt.Errorf("cannot convert %d channel image to RGB", img.Channels)
		}

		pix := make([]byte, len(img.Pix))
		SwapRB(pix, img.Pix)

		return rknneval.NewImage(img.Width, img.Height, 3, rknneval.OrderRGB, pix, nil), nil

	default:
		return nil, fmt.Errorf("unsupported channel order %s", img.Order)
	}
}

// SwapRB copies packed 3 byte pixels from src to dst exchanging the first
// and third channel.  dst and src may be the same slice
func SwapRB(dst, src []byte) {

	n := len(src) / 3 * 3

	for i := 0; i < n; i += 3 {
		r, g, b := src[i], src[i+1], src[i+2]
		dst[i] = b
		dst[i+1] = g
		dst[i+2] = r
	}
}
