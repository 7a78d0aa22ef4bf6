// Command testdataset runs every image of a test dataset through a YOLOv5
// model on the RKNN NPU and logs the detections and inference latency.
package main

import (
	"errors"
	"flag"
	"os"

	"go.uber.org/zap"

	"github.com/swdee/go-rknneval"
	"github.com/swdee/go-rknneval/codec"
	"github.com/swdee/go-rknneval/codec/cvcodec"
	"github.com/swdee/go-rknneval/config"
	"github.com/swdee/go-rknneval/logger"
	"github.com/swdee/go-rknneval/postprocess"
	"github.com/swdee/go-rknneval/preprocess"
	"github.com/swdee/go-rknneval/preprocess/rga"
	"github.com/swdee/go-rknneval/rknn"
)

func main() {

	flags, err := config.ParseFlags(flag.CommandLine, os.Args[1:])

	if err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(flags.ConfigFile, flags.Overrides())

	if err != nil {
		logger.New(false).Fatal("Error loading configuration", zap.Error(err))
	}

	log := logger.New(cfg.Log.Debug)
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("Test dataset run failed", zap.Error(err))
		log.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.AppConfig, log *zap.Logger) error {

	if cfg.Model.CPUAffinity != "none" {
		if err := rknn.SetCPUAffinityByPlatform(cfg.Model.Platform, cfg.Model.CPUAffinity); err != nil {
			log.Warn("Failed to set CPU affinity", zap.Error(err))
		}
	}

	log.Info("Loading model", zap.String("model", cfg.Model.Path))

	model, err := rknneval.LoadModel(cfg.Model.Path)

	if err != nil {
		log.Fatal("Error loading model", zap.Error(err))
	}

	core, err := rknn.CoreMaskByName(cfg.Model.Core)

	if err != nil {
		log.Fatal("Invalid NPU core", zap.Error(err))
	}

	rt, err := rknn.NewRuntime(model, core)

	if err != nil {
		log.Fatal("Error initializing RKNN runtime", zap.Error(err))
	}

	defer rt.Close()

	if ver, err := rt.SDKVersion(); err == nil {
		log.Info("RKNN SDK",
			zap.String("api", ver.APIVersion),
			zap.String("driver", ver.DriverVersion),
		)
	}

	md, err := rknneval.ResolveMetadata(rt, log)

	if err != nil {
		log.Fatal("Error querying model tensors", zap.Error(err))
	}

	info, err := md.ModelInfo()

	if err != nil {
		log.Fatal("Unsupported model input", zap.Error(err))
	}

	log.Info("Model input",
		zap.Int("width", info.Width),
		zap.Int("height", info.Height),
		zap.Int("channel", info.Channel),
		zap.Bool("quantized", info.Quantized),
	)

	var scaler rknneval.Scaler

	switch cfg.Preprocess.Scaler {
	case "software":
		scaler = preprocess.NewScaler()
	default:
		scaler = rga.NewScaler()
	}

	var imgCodec rknneval.Codec

	switch cfg.Preprocess.Codec {
	case "imaging":
		imgCodec = codec.NewImaging(true)
	default:
		imgCodec = cvcodec.New()
	}

	labels, err := rknneval.LoadLabels(cfg.Model.Labels)

	if err != nil {
		log.Warn("Labels not loaded, using class numbers", zap.Error(err))
	}

	params := postprocess.YOLOv5COCOParams().WithClasses(cfg.Detect.Classes)
	params.MaxObjectNumber = cfg.Detect.MaxObjects

	inv := rknneval.NewInvoker(rt, md, info, postprocess.NewYOLOv5(params),
		rknneval.InvokerOptions{
			BoxThreshold: cfg.Detect.BoxThreshold,
			NMSThreshold: cfg.Detect.NMSThreshold,
		}, log)

	if cfg.Output.DumpDir != "" {
		dumper, err := rknneval.NewOutputDumper(cfg.Output.DumpDir)

		if err != nil {
			return err
		}

		inv.SetDumper(dumper)
	}

	policy, err := rknneval.ParseDecodePolicy(cfg.Dataset.OnDecodeError)

	if err != nil {
		return err
	}

	tr := rknneval.NewTraverser(imgCodec, rknneval.NewPreprocessor(scaler, log), inv, info,
		rknneval.TraverserOptions{
			ImagesDir:     cfg.Dataset.Images,
			LabelsDir:     cfg.Dataset.Labels,
			Extension:     cfg.Dataset.Extension,
			OnDecodeError: policy,
			Labels:        labels,
		}, log)

	report, walkErr := tr.Walk(cfg.Dataset.Root)

	if report != nil {
		logSummary(log, report.Summary())
	}

	var decodeErr *rknneval.DecodeError

	if errors.As(walkErr, &decodeErr) {
		log.Error("Dataset traversal stopped on unreadable image",
			zap.String("image", decodeErr.Path))
	}

	return walkErr
}

func logSummary(log *zap.Logger, s rknneval.Summary) {
	log.Info("Summary",
		zap.Int("images", s.Images),
		zap.Int("ok", s.OK),
		zap.Int("failed", s.Failed),
		zap.Int("detections", s.Detections),
		zap.Float64("meanMS", s.MeanMS),
		zap.Float64("stddevMS", s.StdDevMS),
		zap.Float64("minMS", s.MinMS),
		zap.Float64("maxMS", s.MaxMS),
		zap.Float64("p50MS", s.P50MS),
		zap.Float64("p90MS", s.P90MS),
		zap.Float64("p99MS", s.P99MS),
	)
}
