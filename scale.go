package rknneval

// ScaleFactors relate the model input dimensions to the original image
// dimensions.  The ratios are kept as integers so mapping a coordinate back
// does not accumulate float error
type ScaleFactors struct {
	ModelWidth  int
	ModelHeight int
	OrigWidth   int
	OrigHeight  int
}

// NewScaleFactors returns the scale factors between the model input and an
// original image
func NewScaleFactors(modelWidth, modelHeight, origWidth, origHeight int) ScaleFactors {
	return ScaleFactors{
		ModelWidth:  modelWidth,
		ModelHeight: modelHeight,
		OrigWidth:   origWidth,
		OrigHeight:  origHeight,
	}
}

// W returns model_width / original_width
func (s ScaleFactors) W() float32 {

	if s.OrigWidth == 0 {
		return 0
	}

	return float32(float64(s.ModelWidth) / float64(s.OrigWidth))
}

// H returns model_height / original_height
func (s ScaleFactors) H() float32 {

	if s.OrigHeight == 0 {
		return 0
	}

	return float32(float64(s.ModelHeight) / float64(s.OrigHeight))
}

// ToOriginal maps a point in model input space to original image space
func (s ScaleFactors) ToOriginal(x, y float32) (float32, float32) {

	if s.ModelWidth == 0 || s.ModelHeight == 0 {
		return x, y
	}

	ox := float64(x) * float64(s.OrigWidth) / float64(s.ModelWidth)
	oy := float64(y) * float64(s.OrigHeight) / float64(s.ModelHeight)

	return float32(ox), float32(oy)
}
