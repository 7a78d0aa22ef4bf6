package rknneval

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Status is the outcome of processing one image
type Status int

const (
	StatusOK Status = iota
	StatusDecodeFailed
	StatusPreprocessFailed
	StatusInferFailed
)

// String returns a readable description of the Status
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusDecodeFailed:
		return "decode failed"
	case StatusPreprocessFailed:
		return "preprocess failed"
	case StatusInferFailed:
		return "inference failed"
	default:
		return "unknown"
	}
}

// ImageResult records what happened to one image of the dataset
type ImageResult struct {
	Path   string
	Status Status
	// Err is set when Status is not StatusOK
	Err error
	// Width and Height are the original image dimensions
	Width  int
	Height int
	// Resized is true when the image was scaled to the model input size
	Resized     bool
	Scale       ScaleFactors
	Inference   time.Duration
	PostProcess time.Duration
	Detections  []Detection
}

// Report collects the results of a dataset walk in visit order
type Report struct {
	Results []ImageResult
}

// Add appends a result to the report
func (r *Report) Add(res ImageResult) {
	r.Results = append(r.Results, res)
}

// Summary are the aggregate counts and latency statistics of a Report.
// Latencies are in milliseconds over the successfully inferred images
type Summary struct {
	Images     int
	OK         int
	Failed     int
	Detections int
	MeanMS     float64
	StdDevMS   float64
	MinMS      float64
	MaxMS      float64
	P50MS      float64
	P90MS      float64
	P99MS      float64
}

// Summary computes the Summary of the report
func (r *Report) Summary() Summary {

	s := Summary{
		Images: len(r.Results),
	}

	lat := make([]float64, 0, len(r.Results))

	for _, res := range r.Results {
		if res.Status != StatusOK {
			s.Failed++
			continue
		}

		s.OK++
		s.Detections += len(res.Detections)
		lat = append(lat, float64(res.Inference.Microseconds())/1000)
	}

	if len(lat) == 0 {
		return s
	}

	sort.Float64s(lat)

	s.MinMS = floats.Min(lat)
	s.MaxMS = floats.Max(lat)
	s.P50MS = stat.Quantile(0.5, stat.Empirical, lat, nil)
	s.P90MS = stat.Quantile(0.9, stat.Empirical, lat, nil)
	s.P99MS = stat.Quantile(0.99, stat.Empirical, lat, nil)

	if len(lat) == 1 {
		s.MeanMS = lat[0]
		return s
	}

	s.MeanMS, s.StdDevMS = stat.MeanStdDev(lat, nil)

	return s
}
