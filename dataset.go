package rknneval

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DecodePolicy decides what happens when an image of the dataset can not be
// decoded
type DecodePolicy int

const (
	// DecodeAbort stops the walk at the first unreadable image
	DecodeAbort DecodePolicy = iota
	// DecodeSkip records the failure and continues with the next image
	DecodeSkip
)

// ParseDecodePolicy converts a configuration name (abort|skip) to a
// DecodePolicy
func ParseDecodePolicy(name string) (DecodePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "abort":
		return DecodeAbort, nil
	case "skip":
		return DecodeSkip, nil
	default:
		return DecodeAbort, fmt.Errorf("unknown decode error policy: %s", name)
	}
}

// readDirBatch is the number of directory entries read per call
const readDirBatch = 64

// TraverserOptions configure the dataset layout and failure policy
type TraverserOptions struct {
	// ImagesDir is the subdirectory of the dataset root holding the images
	ImagesDir string
	// LabelsDir is the subdirectory of the dataset root holding the ground
	// truth labels
	LabelsDir string
	// Extension is matched as a substring of the file name
	Extension string
	// OnDecodeError is the policy applied to unreadable images
	OnDecodeError DecodePolicy
	// Labels are the class names used when logging detections
	Labels []string
}

// Traverser walks a dataset directory and runs every image through the
// pipeline, one image at a time
type Traverser struct {
	codec Codec
	pre   *Preprocessor
	inv   *Invoker
	info  ModelInfo
	opts  TraverserOptions
	log   *zap.Logger
}

// NewTraverser returns a Traverser
func NewTraverser(codec Codec, pre *Preprocessor, inv *Invoker, info ModelInfo,
	opts TraverserOptions, log *zap.Logger) *Traverser {

	if log == nil {
		log = zap.NewNop()
	}

	if opts.ImagesDir == "" {
		opts.ImagesDir = "images"
	}

	if opts.LabelsDir == "" {
		opts.LabelsDir = "labels"
	}

	if opts.Extension == "" {
		opts.Extension = ".jpg"
	}

	return &Traverser{
		codec: codec,
		pre:   pre,
		inv:   inv,
		info:  info,
		opts:  opts,
		log:   log,
	}
}

// Walk processes every file in the images directory of root whose name
// contains the configured extension.  Per image failures are recorded in the
// Report and the walk continues.  A decode failure under DecodeAbort ends the
// walk with a *DecodeError, the Report holds the images processed so far
func (t *Traverser) Walk(root string) (*Report, error) {

	imgDir := filepath.Join(root, t.opts.ImagesDir)
	labelDir := filepath.Join(root, t.opts.LabelsDir)

	t.log.Info("traversing test dataset",
		zap.String("images", imgDir),
		zap.String("labels", labelDir),
	)

	dir, err := os.Open(imgDir)

	if err != nil {
		return nil, fmt.Errorf("error opening test dataset dir: %w", err)
	}

	defer dir.Close()

	report := &Report{}

	for {
		entries, err := dir.ReadDir(readDirBatch)

		for _, entry := range entries {

			name := entry.Name()

			if name == "." || name == ".." || entry.IsDir() {
				continue
			}

			if !strings.Contains(name, t.opts.Extension) {
				continue
			}

			res := t.processImage(filepath.Join(imgDir, name))
			report.Add(res)

			if res.Status == StatusDecodeFailed && t.opts.OnDecodeError == DecodeAbort {
				t.log.Error("aborting dataset walk", zap.Error(res.Err))
				return report, res.Err
			}
		}

		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return report, fmt.Errorf("error reading test dataset dir: %w", err)
		}
	}

	return report, nil
}

// processImage decodes, preprocesses and infers one image
func (t *Traverser) processImage(path string) ImageResult {

	res := ImageResult{Path: path}

	img, err := t.codec.Decode(path)

	if err != nil {
		res.Status = StatusDecodeFailed
		res.Err = &DecodeError{Path: path, Err: err}
		t.log.Error("cannot read image", zap.String("image", path), zap.Error(err))
		return res
	}

	defer t.closeImage(path, img)

	rgb, err := t.codec.ToRGB(img)

	if err != nil {
		res.Status = StatusDecodeFailed
		res.Err = &DecodeError{Path: path, Err: fmt.Errorf("error converting to RGB: %w", err)}
		t.log.Error("cannot convert image", zap.String("image", path), zap.Error(err))
		return res
	}

	if rgb != img {
		defer t.closeImage(path, rgb)
	}

	res.Width = rgb.Width
	res.Height = rgb.Height

	in, err := t.pre.Prepare(rgb, t.info)

	if err != nil {
		res.Status = StatusPreprocessFailed
		res.Err = err
		t.log.Error("skipping image", zap.String("image", path), zap.Error(err))
		return res
	}

	res.Resized = in.Owned

	inf, err := t.inv.Infer(path, in.Input, rgb.Width, rgb.Height)

	if err != nil {
		res.Status = StatusInferFailed
		res.Err = err
		t.log.Error("skipping image", zap.String("image", path), zap.Error(err))
		return res
	}

	res.Status = StatusOK
	res.Scale = inf.Scale
	res.Inference = inf.Inference
	res.PostProcess = inf.PostProcess
	res.Detections = inf.Detections

	for _, det := range inf.Detections {
		t.log.Info("detection",
			zap.String("image", filepath.Base(path)),
			zap.String("class", LabelName(t.opts.Labels, det.Class)),
			zap.Int("left", det.Box.Left),
			zap.Int("top", det.Box.Top),
			zap.Int("right", det.Box.Right),
			zap.Int("bottom", det.Box.Bottom),
			zap.Float32("prob", det.Probability),
		)
	}

	return res
}

func (t *Traverser) closeImage(path string, img *Image) {
	if err := img.Close(); err != nil {
		t.log.Warn("error releasing image", zap.String("image", path), zap.Error(err))
	}
}
