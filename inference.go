package rknneval

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/swdee/go-rknneval/tensor"
)

const (
	// DefaultBoxThreshold is the default confidence threshold
	DefaultBoxThreshold = 0.25
	// DefaultNMSThreshold is the default NMS (Non-maximum Suppression) threshold
	DefaultNMSThreshold = 0.45
)

// InvokerOptions are the detection thresholds passed to the Decoder
type InvokerOptions struct {
	BoxThreshold float32
	NMSThreshold float32
}

// Inference is the outcome of running one image through the model
type Inference struct {
	// Scale maps model space to the original image
	Scale ScaleFactors
	// Inference is the time from submitting the inputs to receiving the
	// outputs
	Inference time.Duration
	// PostProcess is the time taken by the Decoder
	PostProcess time.Duration
	// Detections found by the Decoder in original image coordinates
	Detections []Detection
}

// Invoker runs inference on a prepared input tensor and decodes the outputs
type Invoker struct {
	sess    Session
	md      *Metadata
	info    ModelInfo
	decoder Decoder
	opts    InvokerOptions
	dumper  *OutputDumper
	log     *zap.Logger
	// zps and scales are the output dequantization parameters in output
	// index order
	zps    []int32
	scales []float32
}

// NewInvoker returns an Invoker for the model loaded in sess
func NewInvoker(sess Session, md *Metadata, info ModelInfo, decoder Decoder,
	opts InvokerOptions, log *zap.Logger) *Invoker {

	if log == nil {
		log = zap.NewNop()
	}

	if opts.BoxThreshold == 0 {
		opts.BoxThreshold = DefaultBoxThreshold
	}

	if opts.NMSThreshold == 0 {
		opts.NMSThreshold = DefaultNMSThreshold
	}

	return &Invoker{
		sess:    sess,
		md:      md,
		info:    info,
		decoder: decoder,
		opts:    opts,
		log:     log,
		zps:     md.ZeroPoints(),
		scales:  md.Scales(),
	}
}

// SetDumper enables writing the output tensors of every inference to disk
func (v *Invoker) SetDumper(d *OutputDumper) {
	v.dumper = d
}

// Infer runs the model on the input tensor of one image.  name identifies the
// image in logs and output dumps, origWidth and origHeight are the image
// dimensions before resizing.  A failure returns an *InferError and the
// Decoder is not called
func (v *Invoker) Infer(name string, in tensor.Input, origWidth, origHeight int) (*Inference, error) {

	start := time.Now()

	if err := v.sess.SetInputs([]tensor.Input{in}); err != nil {
		return nil, &InferError{Stage: "inputs", Err: err}
	}

	reqs := make([]tensor.OutputRequest, v.md.IONumber.NumberOutput)

	for i := range reqs {
		reqs[i] = tensor.OutputRequest{
			Index:     uint32(i),
			WantFloat: !v.info.Quantized,
		}
	}

	if err := v.sess.Run(); err != nil {
		return nil, &InferError{Stage: "run", Err: err}
	}

	outputs, err := v.sess.GetOutputs(reqs)

	if err != nil {
		return nil, &InferError{Stage: "outputs", Err: err}
	}

	defer func() {
		if err := outputs.Free(); err != nil {
			v.log.Error("error releasing outputs", zap.String("image", name), zap.Error(err))
		}
	}()

	res := &Inference{
		Inference: time.Since(start),
		Scale:     NewScaleFactors(v.info.Width, v.info.Height, origWidth, origHeight),
	}

	v.log.Info("once run",
		zap.String("image", name),
		zap.Float64("ms", float64(res.Inference.Microseconds())/1000),
	)

	if len(outputs.Output) != len(reqs) {
		return nil, &InferError{
			Stage: "outputs",
			Err:   fmt.Errorf("runtime returned %d outputs, expected %d", len(outputs.Output), len(reqs)),
		}
	}

	if v.dumper != nil {
		if err := v.dumper.Dump(name, outputs.Output, v.md.Outputs); err != nil {
			v.log.Warn("error dumping outputs", zap.String("image", name), zap.Error(err))
		}
	}

	if v.decoder == nil {
		return res, nil
	}

	postStart := time.Now()

	dets, err := v.decoder.Decode(DecodeRequest{
		Outputs:      outputs.Output,
		ModelWidth:   v.info.Width,
		ModelHeight:  v.info.Height,
		BoxThreshold: v.opts.BoxThreshold,
		NMSThreshold: v.opts.NMSThreshold,
		Scale:        res.Scale,
		ZPs:          v.zps,
		Scales:       v.scales,
	})

	if err != nil {
		return nil, &InferError{Stage: "decode", Err: err}
	}

	res.PostProcess = time.Since(postStart)
	res.Detections = dets

	return res, nil
}
