package rknneval

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/swdee/go-rknneval/tensor"
)

// makeDataset creates <root>/images holding empty files with the given names
// plus a labels directory and a nested directory that must be ignored
func makeDataset(t *testing.T, names ...string) string {

	root := t.TempDir()
	imgDir := filepath.Join(root, "images")

	require.NoError(t, os.MkdirAll(filepath.Join(imgDir, "nested.jpg"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "labels"), 0o755))

	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(imgDir, name), nil, 0o644))
	}

	return root
}

func newTestTraverser(t *testing.T, codec Codec, scaler Scaler, sess *fakeSession,
	dec Decoder, opts TraverserOptions, log *zap.Logger) *Traverser {

	md, err := ResolveMetadata(sess, nil)
	require.NoError(t, err)

	info, err := md.ModelInfo()
	require.NoError(t, err)

	inv := NewInvoker(sess, md, info, dec, InvokerOptions{}, log)

	return NewTraverser(codec, NewPreprocessor(scaler, log), inv, info, opts, log)
}

func resultNames(r *Report) []string {

	names := make([]string, 0, len(r.Results))

	for _, res := range r.Results {
		names = append(names, filepath.Base(res.Path))
	}

	sort.Strings(names)

	return names
}

func TestWalkVisitsEveryMatchingImage(t *testing.T) {

	root := makeDataset(t, "a.jpg", "b.jpg", "c.jpg", "notes.txt", "d.jpg.bak")

	codec := &fakeCodec{images: map[string]*Image{
		"a.jpg":     rgbImage(640, 640, 1),
		"b.jpg":     rgbImage(1920, 1080, 2),
		"c.jpg":     rgbImage(320, 240, 3),
		"d.jpg.bak": rgbImage(640, 640, 4),
	}}
	sess := newFakeSession(
		[]tensor.Attr{nhwcInput(640, 640, 3)},
		yoloOutputs(tensor.Float32, tensor.QntNone),
	)
	dec := &fakeDecoder{dets: []Detection{{Class: 0, Probability: 0.8}}}
	core, logs := observer.New(zap.InfoLevel)

	tr := newTestTraverser(t, codec, &fakeScaler{}, sess, dec,
		TraverserOptions{Labels: []string{"person"}}, zap.New(core))

	report, err := tr.Walk(root)
	require.NoError(t, err)

	// the extension is matched as a substring so d.jpg.bak is included
	assert.Equal(t, []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg.bak"}, resultNames(report))
	assert.Len(t, codec.decoded, 4)
	assert.Equal(t, 4, codec.closed, "every decoded image is released")
	assert.Equal(t, 4, sess.released)

	for _, res := range report.Results {
		assert.Equal(t, StatusOK, res.Status, res.Path)
		assert.Len(t, res.Detections, 1)

		switch filepath.Base(res.Path) {
		case "a.jpg", "d.jpg.bak":
			assert.False(t, res.Resized)
		default:
			assert.True(t, res.Resized)
		}
	}

	dets := logs.FilterMessage("detection").All()
	require.Len(t, dets, 4)
	assert.Equal(t, "person", dets[0].ContextMap()["class"])
}

func TestWalkSkipsFailedImages(t *testing.T) {

	root := makeDataset(t, "good.jpg", "small.jpg")

	codec := &fakeCodec{images: map[string]*Image{
		"good.jpg":  rgbImage(640, 640, 1),
		"small.jpg": rgbImage(100, 100, 1),
	}}
	sess := newFakeSession(
		[]tensor.Attr{nhwcInput(640, 640, 3)},
		yoloOutputs(tensor.Float32, tensor.QntNone),
	)
	scaler := &fakeScaler{resizeErr: errors.New("imresize failed")}

	tr := newTestTraverser(t, codec, scaler, sess, &fakeDecoder{}, TraverserOptions{}, nil)

	report, err := tr.Walk(root)
	require.NoError(t, err)
	require.Len(t, report.Results, 2)

	byName := map[string]ImageResult{}
	for _, res := range report.Results {
		byName[filepath.Base(res.Path)] = res
	}

	assert.Equal(t, StatusOK, byName["good.jpg"].Status)
	assert.Equal(t, StatusPreprocessFailed, byName["small.jpg"].Status)

	var perr *PreprocessError
	assert.ErrorAs(t, byName["small.jpg"].Err, &perr)

	// only the good image reached the runtime
	assert.Len(t, sess.setInputs, 1)
}

func TestWalkInferFailureContinues(t *testing.T) {

	root := makeDataset(t, "a.jpg", "b.jpg")

	codec := &fakeCodec{images: map[string]*Image{
		"a.jpg": rgbImage(640, 640, 1),
		"b.jpg": rgbImage(640, 640, 1),
	}}
	sess := newFakeSession(
		[]tensor.Attr{nhwcInput(640, 640, 3)},
		yoloOutputs(tensor.Float32, tensor.QntNone),
	)
	sess.runErr = errors.New("run failed")
	dec := &fakeDecoder{}

	tr := newTestTraverser(t, codec, &fakeScaler{}, sess, dec, TraverserOptions{}, nil)

	report, err := tr.Walk(root)
	require.NoError(t, err)
	require.Len(t, report.Results, 2)

	for _, res := range report.Results {
		assert.Equal(t, StatusInferFailed, res.Status)
	}

	assert.Empty(t, dec.reqs)

	s := report.Summary()
	assert.Equal(t, 2, s.Failed)
	assert.Zero(t, s.OK)
}

func TestWalkDecodePolicy(t *testing.T) {

	names := []string{"a.jpg", "b.jpg", "c.jpg"}

	newCodec := func() *fakeCodec {
		return &fakeCodec{
			images: map[string]*Image{
				"a.jpg": rgbImage(640, 640, 1),
				"b.jpg": rgbImage(640, 640, 1),
				"c.jpg": rgbImage(640, 640, 1),
			},
			fail: map[string]error{"b.jpg": errors.New("corrupt jpeg")},
		}
	}

	t.Run("abort", func(t *testing.T) {

		sess := newFakeSession(
			[]tensor.Attr{nhwcInput(640, 640, 3)},
			yoloOutputs(tensor.Float32, tensor.QntNone),
		)

		tr := newTestTraverser(t, newCodec(), &fakeScaler{}, sess, nil, TraverserOptions{}, nil)

		report, err := tr.Walk(makeDataset(t, names...))

		var derr *DecodeError
		require.ErrorAs(t, err, &derr)
		assert.Equal(t, "b.jpg", filepath.Base(derr.Path))

		require.NotNil(t, report)
		last := report.Results[len(report.Results)-1]
		assert.Equal(t, StatusDecodeFailed, last.Status)
	})

	t.Run("skip", func(t *testing.T) {

		sess := newFakeSession(
			[]tensor.Attr{nhwcInput(640, 640, 3)},
			yoloOutputs(tensor.Float32, tensor.QntNone),
		)

		tr := newTestTraverser(t, newCodec(), &fakeScaler{}, sess, nil,
			TraverserOptions{OnDecodeError: DecodeSkip}, nil)

		report, err := tr.Walk(makeDataset(t, names...))
		require.NoError(t, err)
		assert.Equal(t, names, resultNames(report))

		s := report.Summary()
		assert.Equal(t, 2, s.OK)
		assert.Equal(t, 1, s.Failed)
	})
}

func TestWalkMissingImagesDir(t *testing.T) {

	sess := newFakeSession(
		[]tensor.Attr{nhwcInput(640, 640, 3)},
		yoloOutputs(tensor.Float32, tensor.QntNone),
	)

	tr := newTestTraverser(t, &fakeCodec{}, &fakeScaler{}, sess, nil, TraverserOptions{}, nil)

	report, err := tr.Walk(t.TempDir())
	assert.Error(t, err)
	assert.Nil(t, report)
}

func TestParseDecodePolicy(t *testing.T) {

	p, err := ParseDecodePolicy("")
	require.NoError(t, err)
	assert.Equal(t, DecodeAbort, p)

	p, err = ParseDecodePolicy("Skip")
	require.NoError(t, err)
	assert.Equal(t, DecodeSkip, p)

	_, err = ParseDecodePolicy("retry")
	assert.Error(t, err)
}
