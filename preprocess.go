package rknneval

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/swdee/go-rknneval/tensor"
)

// InputBuffer is the input tensor prepared for one image
type InputBuffer struct {
	// Input is the tensor descriptor with its data in Input.Buf
	Input tensor.Input
	// Owned is false when Input.Buf aliases the decoded image pixels and
	// true when the buffer was allocated to hold a resized copy
	Owned bool
}

// Preprocessor turns decoded RGB images into the input tensor the model
// expects
type Preprocessor struct {
	scaler Scaler
	log    *zap.Logger
}

// NewPreprocessor returns a Preprocessor that resizes with scaler
func NewPreprocessor(scaler Scaler, log *zap.Logger) *Preprocessor {

	if log == nil {
		log = zap.NewNop()
	}

	return &Preprocessor{
		scaler: scaler,
		log:    log,
	}
}

// Prepare returns the input tensor for img.  When img already has the model
// input dimensions its pixels are used directly, otherwise they are resized
// into a new buffer.  A failed resize returns a *PreprocessError and no
// tensor, the image should be skipped
func (p *Preprocessor) Prepare(img *Image, info ModelInfo) (*InputBuffer, error) {

	size := info.Width * info.Height * info.Channel

	if img.Channels != info.Channel {
		return nil, &PreprocessError{
			Stage: "validate",
			Err: fmt.Errorf("image has %d channels, model expects %d",
				img.Channels, info.Channel),
		}
	}

	if img.Order != OrderRGB {
		return nil, &PreprocessError{
			Stage: "validate",
			Err:   fmt.Errorf("image channel order is %s, expected RGB", img.Order),
		}
	}

	if len(img.Pix) != img.Width*img.Height*img.Channels {
		return nil, &PreprocessError{
			Stage: "validate",
			Err: fmt.Errorf("image buffer holds %d bytes, expected %d",
				len(img.Pix), img.Width*img.Height*img.Channels),
		}
	}

	buf := &InputBuffer{
		Input: tensor.Input{
			Index: 0,
			Size:  uint32(size),
			Type:  tensor.Uint8,
			Fmt:   tensor.NHWC,
		},
	}

	if img.Width == info.Width && img.Height == info.Height {
		buf.Input.Buf = img.Pix
		return buf, nil
	}

	p.log.Debug("resizing image",
		zap.Int("srcWidth", img.Width),
		zap.Int("srcHeight", img.Height),
		zap.Int("dstWidth", info.Width),
		zap.Int("dstHeight", info.Height),
	)

	if p.scaler == nil {
		return nil, &PreprocessError{
			Stage: "check",
			Err:   fmt.Errorf("image needs resizing but no scaler is configured"),
		}
	}

	resized := make([]byte, size)

	src := WrapFrame(img.Pix, img.Width, img.Height, FormatRGB888)
	dst := WrapFrame(resized, info.Width, info.Height, FormatRGB888)

	if err := p.scaler.Check(src, dst); err != nil {
		return nil, &PreprocessError{Stage: "check", Err: err}
	}

	if err := p.scaler.Resize(src, dst); err != nil {
		return nil, &PreprocessError{Stage: "resize", Err: err}
	}

	buf.Input.Buf = resized
	buf.Owned = true

	return buf, nil
}
