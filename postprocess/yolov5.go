package postprocess

import (
	"fmt"

	"github.com/swdee/go-rknneval"
	"github.com/swdee/go-rknneval/tensor"
)

// YOLOv5 defines the struct for YOLOv5 model inference post processing
type YOLOv5 struct {
	// Params are the Model configuration parameters
	Params YOLOv5Params
}

// YOLOv5Params defines the struct containing the YOLOv5 parameters to use
// for post processing operations
type YOLOv5Params struct {
	// Strides
	Strides []YOLOStride
	// BoxThreshold is the minimum probability score required for a bounding box
	// region to be considered for processing.  A non zero threshold in the
	// DecodeRequest takes precedence
	BoxThreshold float32
	// NMSThreshold is the Non-Maximum Suppression threshold used for defining
	// the maximum allowed Intersection Over Union (IoU) between two
	// bounding boxes for both to be kept.  A non zero threshold in the
	// DecodeRequest takes precedence
	NMSThreshold float32
	// ObjectClassNum is the number of different object classes the Model has
	// been trained with
	ObjectClassNum int
	// ProbBoxSize is the length of array elements representing each bounding
	// box's attributes.  Which represents the bounding box attributes plus
	// number of objects (ObjectClassNum) the Model was trained with
	ProbBoxSize int
	// MaxObjectNumber is the maximum number of objects detected that can be
	// returned
	MaxObjectNumber int
}

type YOLOStride struct {
	// Size is the number of pixels to use for input in each grid section of
	// the image
	Size int
	// Anchor are the Anchor Box presents for the YOLO model used in bounding
	// box predicition for objects
	Anchor []int
}

// YOLOv5COCOParams returns an instance of YOLOv5Params configured with
// default values for a Model trained on the COCO dataset featuring:
// - Object Classes: 80
// - Anchor Boxes for each Stride of:
//   - Stride 8: (10x13), (16x30), (33x23)
//   - Stride 16: (30x61), (62x45), (59x119)
//   - Stride 32: (116x90), (156x198), (373x326)
//
// - Box Threshold: 0.25
// - NMS Threshold: 0.45
// - Prob Box Size: 85
//   - This is 80 Object Classes plus the 5 attributes used to define a bounding
//     box being:
//   - x & y coordinates for the center of the bounding box
//   - width and height of the box relative to whole image
//   - confidence score
//
// - Maximum Object Number: 64
func YOLOv5COCOParams() YOLOv5Params {
	return YOLOv5Params{
		Strides: []YOLOStride{
			{
				Size:   8,
				Anchor: []int{10, 13, 16, 30, 33, 23},
			},
			{
				Size:   16,
				Anchor: []int{30, 61, 62, 45, 59, 119},
			},
			{
				Size:   32,
				Anchor: []int{116, 90, 156, 198, 373, 326},
			},
		},
		BoxThreshold:    0.25,
		NMSThreshold:    0.45,
		ObjectClassNum:  80,
		ProbBoxSize:     85,
		MaxObjectNumber: 64,
	}
}

// WithClasses returns a copy of p for a model trained on classes object
// classes
func (p YOLOv5Params) WithClasses(classes int) YOLOv5Params {
	p.ObjectClassNum = classes
	p.ProbBoxSize = classes + 5
	return p
}

// NewYOLOv5 returns an instance of the YOLOv5 post processor
func NewYOLOv5(p YOLOv5Params) *YOLOv5 {
	return &YOLOv5{
		Params: p,
	}
}

// candidates holds the boxes above threshold collected over all strides
type candidates struct {
	// filterBoxes holds x, y, w, h of each box in model input space
	filterBoxes []float32
	objProbs    []float32
	// classID corresponds to the index/line of the name in the labels file
	classID []int
}

// Decode implements rknneval.Decoder.  Each output is decoded from its int8
// buffer when present, otherwise from its float buffer
func (y *YOLOv5) Decode(req rknneval.DecodeRequest) ([]rknneval.Detection, error) {

	if len(req.Outputs) < len(y.Params.Strides) {
		return nil, fmt.Errorf("yolov5 expects %d outputs, got %d",
			len(y.Params.Strides), len(req.Outputs))
	}

	boxThresh := req.BoxThreshold

	if boxThresh == 0 {
		boxThresh = y.Params.BoxThreshold
	}

	nmsThresh := req.NMSThreshold

	if nmsThresh == 0 {
		nmsThresh = y.Params.NMSThreshold
	}

	data := &candidates{}
	validCount := 0

	for i, stride := range y.Params.Strides {

		gridH := req.ModelHeight / stride.Size
		gridW := req.ModelWidth / stride.Size
		want := y.Params.ProbBoxSize * 3 * gridH * gridW
		out := req.Outputs[i]

		switch {
		case out.BufInt != nil:
			if len(out.BufInt) < want {
				return nil, fmt.Errorf("output %d holds %d values, need %d", i, len(out.BufInt), want)
			}

			if i >= len(req.ZPs) || i >= len(req.Scales) {
				return nil, fmt.Errorf("no quantization parameters for output %d", i)
			}

			validCount += y.processStrideInt8(out.BufInt, stride, gridH, gridW,
				boxThresh, req.ZPs[i], req.Scales[i], data)

		case out.BufFloat != nil:
			if len(out.BufFloat) < want {
				return nil, fmt.Errorf("output %d holds %d values, need %d", i, len(out.BufFloat), want)
			}

			validCount += y.processStrideFP32(out.BufFloat, stride, gridH, gridW,
				boxThresh, data)

		default:
			return nil, fmt.Errorf("output %d has no data", i)
		}
	}

	if validCount <= 0 {
		// no object detected
		return nil, nil
	}

	// indexArray is used to keep and index of detect objects contained in
	// the candidates
	indexArray := make([]int, validCount)

	for i := range indexArray {
		indexArray[i] = i
	}

	quickSortIndiceInverse(data.objProbs, 0, validCount-1, indexArray)

	classSet := make(map[int]bool)

	for _, id := range data.classID {
		classSet[id] = true
	}

	for c := range classSet {
		nms(validCount, data.filterBoxes, data.classID, indexArray, c, nmsThresh)
	}

	scaleW := req.Scale.W()
	scaleH := req.Scale.H()

	if scaleW == 0 || scaleH == 0 {
		scaleW, scaleH = 1, 1
	}

	group := make([]rknneval.Detection, 0)

	for i := 0; i < validCount; i++ {
		if indexArray[i] == -1 || len(group) >= y.Params.MaxObjectNumber {
			continue
		}

		n := indexArray[i]

		x1 := data.filterBoxes[n*4+0]
		y1 := data.filterBoxes[n*4+1]
		x2 := x1 + data.filterBoxes[n*4+2]
		y2 := y1 + data.filterBoxes[n*4+3]

		group = append(group, rknneval.Detection{
			Class: data.classID[n],
			Box: rknneval.BoxRect{
				Left:   int(clamp(x1, 0, req.ModelWidth) / scaleW),
				Top:    int(clamp(y1, 0, req.ModelHeight) / scaleH),
				Right:  int(clamp(x2, 0, req.ModelWidth) / scaleW),
				Bottom: int(clamp(y2, 0, req.ModelHeight) / scaleH),
			},
			// objProbs was sorted in place alongside indexArray
			Probability: data.objProbs[i],
		})
	}

	return group, nil
}

// processStrideInt8 collects the candidates of one stride from an affine
// quantized output
func (y *YOLOv5) processStrideInt8(input []int8, stride YOLOStride, gridH, gridW int,
	threshold float32, zp int32, scale float32, data *candidates) int {

	validCount := 0
	gridLen := gridH * gridW
	thresI8 := qntF32ToAffine(threshold, zp, scale)

	for a := 0; a < 3; a++ {
		for i := 0; i < gridH; i++ {
			for j := 0; j < gridW; j++ {

				boxConfidence := input[(y.Params.ProbBoxSize*a+4)*gridLen+i*gridW+j]

				if boxConfidence < thresI8 {
					continue
				}

				inPtr := (y.Params.ProbBoxSize*a)*gridLen + i*gridW + j

				maxClassProbs := input[inPtr+5*gridLen]
				maxClassID := 0

				for k := 1; k < y.Params.ObjectClassNum; k++ {
					prob := input[inPtr+(5+k)*gridLen]
					if prob > maxClassProbs {
						maxClassID = k
						maxClassProbs = prob
					}
				}

				if maxClassProbs <= thresI8 {
					continue
				}

				boxX := tensor.DeqntAffineToF32(input[inPtr], zp, scale)*2.0 - 0.5
				boxY := tensor.DeqntAffineToF32(input[inPtr+gridLen], zp, scale)*2.0 - 0.5
				boxW := tensor.DeqntAffineToF32(input[inPtr+2*gridLen], zp, scale) * 2.0
				boxH := tensor.DeqntAffineToF32(input[inPtr+3*gridLen], zp, scale) * 2.0

				data.add(stride, a, i, j, boxX, boxY, boxW, boxH, maxClassID,
					tensor.DeqntAffineToF32(maxClassProbs, zp, scale)*
						tensor.DeqntAffineToF32(boxConfidence, zp, scale))

				validCount++
			}
		}
	}

	return validCount
}

// processStrideFP32 collects the candidates of one stride from a float
// output
func (y *YOLOv5) processStrideFP32(input []float32, stride YOLOStride, gridH, gridW int,
	threshold float32, data *candidates) int {

	validCount := 0
	gridLen := gridH * gridW

	for a := 0; a < 3; a++ {
		for i := 0; i < gridH; i++ {
			for j := 0; j < gridW; j++ {

				boxConfidence := input[(y.Params.ProbBoxSize*a+4)*gridLen+i*gridW+j]

				if boxConfidence < threshold {
					continue
				}

				inPtr := (y.Params.ProbBoxSize*a)*gridLen + i*gridW + j

				maxClassProbs := input[inPtr+5*gridLen]
				maxClassID := 0

				for k := 1; k < y.Params.ObjectClassNum; k++ {
					prob := input[inPtr+(5+k)*gridLen]
					if prob > maxClassProbs {
						maxClassID = k
						maxClassProbs = prob
					}
				}

				if maxClassProbs <= threshold {
					continue
				}

				boxX := input[inPtr]*2.0 - 0.5
				boxY := input[inPtr+gridLen]*2.0 - 0.5
				boxW := input[inPtr+2*gridLen] * 2.0
				boxH := input[inPtr+3*gridLen] * 2.0

				data.add(stride, a, i, j, boxX, boxY, boxW, boxH, maxClassID,
					maxClassProbs*boxConfidence)

				validCount++
			}
		}
	}

	return validCount
}

// add converts the raw box of anchor a at grid cell (i, j) into model input
// space and records it
func (c *candidates) add(stride YOLOStride, a, i, j int, boxX, boxY, boxW, boxH float32,
	classID int, prob float32) {

	boxX = (boxX + float32(j)) * float32(stride.Size)
	boxY = (boxY + float32(i)) * float32(stride.Size)
	boxW = boxW * boxW * float32(stride.Anchor[a*2])
	boxH = boxH * boxH * float32(stride.Anchor[a*2+1])
	boxX -= boxW / 2.0
	boxY -= boxH / 2.0

	c.objProbs = append(c.objProbs, prob)
	c.classID = append(c.classID, classID)
	c.filterBoxes = append(c.filterBoxes, boxX, boxY, boxW, boxH)
}
