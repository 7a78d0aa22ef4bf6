// Package config loads the application configuration from defaults, an
// optional YAML file, RKNN_ prefixed environment variables and command line
// flags, in increasing order of precedence.
package config

import (
	"flag"
	"fmt"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"

	"github.com/swdee/go-rknneval"
)

// EnvPrefix is the prefix of environment variables overriding configuration
// keys, eg: RKNN_DATASET_ROOT sets dataset.root
const EnvPrefix = "RKNN_"

// ModelConfig selects the compiled model and where it runs
type ModelConfig struct {
	Path string `koanf:"path"`
	// Core is the NPU core mask name: auto, 0, 1, 2, 0_1, 0_1_2 or skip
	Core   string `koanf:"core"`
	Labels string `koanf:"labels"`
	// Platform is the Rockchip SoC used to look up CPU affinity masks
	Platform string `koanf:"platform"`
	// CPUAffinity pins the process to fast, slow or all cores, none leaves
	// scheduling to the OS
	CPUAffinity string `koanf:"cpuaffinity"`
}

type DatasetConfig struct {
	Root      string `koanf:"root"`
	Images    string `koanf:"images"`
	Labels    string `koanf:"labels"`
	Extension string `koanf:"extension"`
	// OnDecodeError is abort or skip
	OnDecodeError string `koanf:"ondecodeerror"`
}

type DetectConfig struct {
	BoxThreshold float32 `koanf:"boxthreshold"`
	NMSThreshold float32 `koanf:"nmsthreshold"`
	Classes      int     `koanf:"classes"`
	MaxObjects   int     `koanf:"maxobjects"`
}

type PreprocessConfig struct {
	// Scaler is rga or software
	Scaler string `koanf:"scaler"`
	// Codec is gocv or imaging
	Codec string `koanf:"codec"`
}

type OutputConfig struct {
	// DumpDir enables writing output tensors to text files when set
	DumpDir string `koanf:"dumpdir"`
}

type LogConfig struct {
	Debug bool `koanf:"debug"`
}

// AppConfig is the complete application configuration
type AppConfig struct {
	Model      ModelConfig      `koanf:"model"`
	Dataset    DatasetConfig    `koanf:"dataset"`
	Detect     DetectConfig     `koanf:"detect"`
	Preprocess PreprocessConfig `koanf:"preprocess"`
	Output     OutputConfig     `koanf:"output"`
	Log        LogConfig        `koanf:"log"`
}

// Defaults are the configuration values used when nothing overrides them
func Defaults() map[string]any {
	return map[string]any{
		"model.path":            "model/RK3588/yolov5m6-fp16-768-1280.rknn",
		"model.core":            "auto",
		"model.labels":          "model/coco_80_labels_list.txt",
		"model.platform":        "rk3588",
		"model.cpuaffinity":     "none",
		"dataset.root":          "testdataset",
		"dataset.images":        "images",
		"dataset.labels":        "labels",
		"dataset.extension":     ".jpg",
		"dataset.ondecodeerror": "abort",
		"detect.boxthreshold":   rknneval.DefaultBoxThreshold,
		"detect.nmsthreshold":   rknneval.DefaultNMSThreshold,
		"detect.classes":        80,
		"detect.maxobjects":     64,
		"preprocess.scaler":     "rga",
		"preprocess.codec":      "gocv",
		"output.dumpdir":        "",
		"log.debug":             false,
	}
}

// Load builds the configuration.  filePath may be empty to skip the YAML
// file, overrides are dotted keys applied last
func Load(filePath string, overrides map[string]any) (*AppConfig, error) {

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	if filePath != "" {
		if err := k.Load(file.Provider(filePath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config file %s: %w", filePath, err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(s string, v string) (string, any) {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")

		// top level names such as RKNN_MODEL are not configuration keys
		if !strings.Contains(key, ".") {
			return "", nil
		}

		return key, v
	}), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("error loading overrides: %w", err)
		}
	}

	var cfg AppConfig

	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var (
	coreNames     = []string{"auto", "0", "1", "2", "0_1", "0_1_2", "skip"}
	affinityNames = []string{"none", "fast", "slow", "all"}
	scalerNames   = []string{"rga", "software"}
	codecNames    = []string{"gocv", "imaging"}
)

func oneOf(key, val string, allowed []string) error {

	for _, a := range allowed {
		if val == a {
			return nil
		}
	}

	return fmt.Errorf("invalid %s %q, must be one of %s", key, val,
		strings.Join(allowed, "|"))
}

// Validate checks the configuration values are usable
func Validate(c *AppConfig) error {

	if c.Model.Path == "" {
		return fmt.Errorf("model.path is required")
	}

	if c.Dataset.Root == "" {
		return fmt.Errorf("dataset.root is required")
	}

	if c.Dataset.Images == "" {
		return fmt.Errorf("dataset.images is required")
	}

	if c.Dataset.Extension == "" {
		return fmt.Errorf("dataset.extension is required")
	}

	if err := oneOf("model.core", c.Model.Core, coreNames); err != nil {
		return err
	}

	if err := oneOf("model.cpuaffinity", c.Model.CPUAffinity, affinityNames); err != nil {
		return err
	}

	if err := oneOf("preprocess.scaler", c.Preprocess.Scaler, scalerNames); err != nil {
		return err
	}

	if err := oneOf("preprocess.codec", c.Preprocess.Codec, codecNames); err != nil {
		return err
	}

	if _, err := rknneval.ParseDecodePolicy(c.Dataset.OnDecodeError); err != nil {
		return fmt.Errorf("invalid dataset.ondecodeerror: %w", err)
	}

	if c.Detect.BoxThreshold <= 0 || c.Detect.BoxThreshold > 1 {
		return fmt.Errorf("detect.boxthreshold %v must be in (0, 1]", c.Detect.BoxThreshold)
	}

	if c.Detect.NMSThreshold <= 0 || c.Detect.NMSThreshold > 1 {
		return fmt.Errorf("detect.nmsthreshold %v must be in (0, 1]", c.Detect.NMSThreshold)
	}

	if c.Detect.Classes <= 0 {
		return fmt.Errorf("detect.classes must be positive")
	}

	if c.Detect.MaxObjects <= 0 {
		return fmt.Errorf("detect.maxobjects must be positive")
	}

	return nil
}

// Flags are the command line options
type Flags struct {
	ConfigFile string
	Model      string
	Dataset    string
	Debug      bool
}

// ParseFlags parses args into Flags using fs
func ParseFlags(fs *flag.FlagSet, args []string) (Flags, error) {

	var f Flags

	fs.StringVar(&f.ConfigFile, "c", "", "YAML configuration file")
	fs.StringVar(&f.Model, "m", "", "RKNN compiled model file, overrides model.path")
	fs.StringVar(&f.Dataset, "d", "", "Test dataset root containing images/, overrides dataset.root")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")

	if err := fs.Parse(args); err != nil {
		return f, err
	}

	return f, nil
}

// Overrides returns the configuration keys set by the flags
func (f Flags) Overrides() map[string]any {

	o := map[string]any{}

	if f.Model != "" {
		o["model.path"] = f.Model
	}

	if f.Dataset != "" {
		o["dataset.root"] = f.Dataset
	}

	if f.Debug {
		o["log.debug"] = true
	}

	return o
}
