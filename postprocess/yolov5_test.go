package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swdee/go-rknneval"
	"github.com/swdee/go-rknneval/tensor"
)

const (
	testModelSize = 32
	testClasses   = 2
)

// testGrid builds zeroed float outputs for a 32x32 model with two classes
type testGrid struct {
	params YOLOv5Params
	bufs   [][]float32
}

func newTestGrid() *testGrid {

	p := YOLOv5COCOParams().WithClasses(testClasses)
	g := &testGrid{params: p}

	for _, s := range p.Strides {
		grid := testModelSize / s.Size
		g.bufs = append(g.bufs, make([]float32, p.ProbBoxSize*3*grid*grid))
	}

	return g
}

// set writes value of attribute attr for anchor a in cell (i, j) of stride
func (g *testGrid) set(stride, a, attr, i, j int, value float32) {

	grid := testModelSize / g.params.Strides[stride].Size
	gridLen := grid * grid

	g.bufs[stride][(g.params.ProbBoxSize*a+attr)*gridLen+i*grid+j] = value
}

// box sets a candidate with raw box values x, y, w, h
func (g *testGrid) box(stride, a, i, j int, x, y, w, h, conf float32, probs ...float32) {

	for attr, v := range []float32{x, y, w, h, conf} {
		g.set(stride, a, attr, i, j, v)
	}

	for k, p := range probs {
		g.set(stride, a, 5+k, i, j, p)
	}
}

func (g *testGrid) floatOutputs() []tensor.Output {

	outs := make([]tensor.Output, len(g.bufs))

	for i, b := range g.bufs {
		outs[i] = tensor.Output{Index: uint32(i), WantFloat: true, BufFloat: b}
	}

	return outs
}

// int8Outputs quantizes the float outputs with scale 1/128 and zero point 0
func (g *testGrid) int8Outputs() ([]tensor.Output, []int32, []float32) {

	outs := make([]tensor.Output, len(g.bufs))
	zps := make([]int32, len(g.bufs))
	scales := make([]float32, len(g.bufs))

	for i, b := range g.bufs {
		q := make([]int8, len(b))

		for k, v := range b {
			q[k] = qntF32ToAffine(v, 0, 1.0/128)
		}

		outs[i] = tensor.Output{Index: uint32(i), BufInt: q}
		scales[i] = 1.0 / 128
	}

	return outs, zps, scales
}

func (g *testGrid) request(outs []tensor.Output, origW, origH int) rknneval.DecodeRequest {
	return rknneval.DecodeRequest{
		Outputs:      outs,
		ModelWidth:   testModelSize,
		ModelHeight:  testModelSize,
		BoxThreshold: 0.25,
		NMSThreshold: 0.45,
		Scale:        rknneval.NewScaleFactors(testModelSize, testModelSize, origW, origH),
	}
}

func TestYOLOv5DecodeFloat(t *testing.T) {

	g := newTestGrid()
	// class 1 box at (15, 5.5)-(25, 18.5) in model space
	g.box(0, 0, 1, 2, 0.5, 0.5, 0.5, 0.5, 0.9, 0.1, 0.8)

	dets, err := NewYOLOv5(g.params).Decode(g.request(g.floatOutputs(), testModelSize, testModelSize))
	require.NoError(t, err)
	require.Len(t, dets, 1)

	assert.Equal(t, 1, dets[0].Class)
	assert.InDelta(t, 0.72, dets[0].Probability, 1e-6)
	assert.Equal(t, rknneval.BoxRect{Left: 15, Top: 5, Right: 25, Bottom: 18}, dets[0].Box)
}

func TestYOLOv5DecodeScalesToOriginal(t *testing.T) {

	g := newTestGrid()
	g.box(0, 0, 1, 2, 0.5, 0.5, 0.5, 0.5, 0.9, 0.1, 0.8)

	dets, err := NewYOLOv5(g.params).Decode(g.request(g.floatOutputs(), 64, 64))
	require.NoError(t, err)
	require.Len(t, dets, 1)

	assert.Equal(t, rknneval.BoxRect{Left: 30, Top: 11, Right: 50, Bottom: 37}, dets[0].Box)
}

func TestYOLOv5DecodeInt8(t *testing.T) {

	g := newTestGrid()
	g.box(0, 0, 1, 2, 0.5, 0.5, 0.5, 0.5, 0.875, 0.125, 0.75)

	outs, zps, scales := g.int8Outputs()
	req := g.request(outs, testModelSize, testModelSize)
	req.ZPs = zps
	req.Scales = scales

	dets, err := NewYOLOv5(g.params).Decode(req)
	require.NoError(t, err)
	require.Len(t, dets, 1)

	assert.Equal(t, 1, dets[0].Class)
	assert.InDelta(t, 0.65625, dets[0].Probability, 1e-6)
	assert.Equal(t, rknneval.BoxRect{Left: 15, Top: 5, Right: 25, Bottom: 18}, dets[0].Box)
}

func TestYOLOv5NMS(t *testing.T) {

	g := newTestGrid()
	// three near identical boxes in one cell, the two of class 1 overlap so
	// only the stronger is kept, the class 0 box survives
	g.box(0, 0, 1, 2, 0.5, 0.5, 0.5, 0.5, 0.9, 0.1, 0.8)
	g.box(0, 1, 1, 2, 0.5, 0.5, 0.395, 0.329, 0.9, 0.1, 0.5)
	g.box(0, 2, 1, 2, 0.5, 0.5, 0.2752, 0.3759, 0.9, 0.7, 0.1)

	dets, err := NewYOLOv5(g.params).Decode(g.request(g.floatOutputs(), testModelSize, testModelSize))
	require.NoError(t, err)
	require.Len(t, dets, 2)

	assert.Equal(t, 1, dets[0].Class)
	assert.InDelta(t, 0.72, dets[0].Probability, 1e-6)
	assert.Equal(t, 0, dets[1].Class)
	assert.InDelta(t, 0.63, dets[1].Probability, 1e-6)
}

func TestYOLOv5MaxObjects(t *testing.T) {

	g := newTestGrid()
	g.params.MaxObjectNumber = 2

	// separate cells so nothing is suppressed
	g.box(0, 0, 0, 0, 0.5, 0.5, 0.3, 0.3, 0.9, 0.9, 0)
	g.box(0, 0, 3, 3, 0.5, 0.5, 0.3, 0.3, 0.8, 0.9, 0)
	g.box(0, 0, 0, 3, 0.5, 0.5, 0.3, 0.3, 0.7, 0.9, 0)

	dets, err := NewYOLOv5(g.params).Decode(g.request(g.floatOutputs(), testModelSize, testModelSize))
	require.NoError(t, err)
	require.Len(t, dets, 2)

	assert.GreaterOrEqual(t, dets[0].Probability, dets[1].Probability)
}

func TestYOLOv5NoDetections(t *testing.T) {

	g := newTestGrid()

	dets, err := NewYOLOv5(g.params).Decode(g.request(g.floatOutputs(), testModelSize, testModelSize))
	require.NoError(t, err)
	assert.Empty(t, dets)
}

func TestYOLOv5DecodeErrors(t *testing.T) {

	g := newTestGrid()
	y := NewYOLOv5(g.params)

	_, err := y.Decode(g.request(g.floatOutputs()[:2], testModelSize, testModelSize))
	assert.Error(t, err, "too few outputs")

	outs := g.floatOutputs()
	outs[1].BufFloat = outs[1].BufFloat[:10]
	_, err = y.Decode(g.request(outs, testModelSize, testModelSize))
	assert.Error(t, err, "short buffer")

	outs = g.floatOutputs()
	outs[2].BufFloat = nil
	_, err = y.Decode(g.request(outs, testModelSize, testModelSize))
	assert.Error(t, err, "no data")

	q, _, _ := g.int8Outputs()
	_, err = y.Decode(g.request(q, testModelSize, testModelSize))
	assert.Error(t, err, "missing quantization parameters")
}

func TestCalculateOverlap(t *testing.T) {

	assert.InDelta(t, 1.0, calculateOverlap(0, 0, 9, 9, 0, 0, 9, 9), 1e-6)
	assert.Zero(t, calculateOverlap(0, 0, 9, 9, 20, 20, 29, 29))
	// 10x10 boxes offset by 5 overlap on a 5x10 strip
	assert.InDelta(t, 50.0/150.0, calculateOverlap(0, 0, 9, 9, 5, 0, 14, 9), 1e-6)
}

func TestQuickSortIndiceInverse(t *testing.T) {

	probs := []float32{0.2, 0.9, 0.5, 0.7}
	idx := []int{0, 1, 2, 3}

	quickSortIndiceInverse(probs, 0, len(probs)-1, idx)

	assert.Equal(t, []float32{0.9, 0.7, 0.5, 0.2}, probs)
	assert.Equal(t, []int{1, 3, 2, 0}, idx)
}
