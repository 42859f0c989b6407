package detectors

import (
	"fmt"
	"math"

	"github.com/miradorstack/mirador-netlog/internal/models"
	"github.com/miradorstack/mirador-netlog/internal/utils"
)

// DefaultZThreshold is the |z| above which a numeric value is reported.
const DefaultZThreshold = 2.0

// Baseline is the normal-traffic location and spread of one numeric field.
type Baseline struct {
	Mean float64
	Std  float64
}

// NumericDetector flags values that sit far from the normal-traffic mean, measured in
// standard deviations.
type NumericDetector struct {
	fields    []string
	threshold float64
	baselines map[string]Baseline
}

// NewNumericDetector computes per-field baselines from the normal partition. The standard
// deviation is the sample one; a zero (or undefined) spread is replaced by 1.
func NewNumericDetector(normal Reference, threshold float64, fields ...string) (*NumericDetector, error) {
	if normal == nil || normal.Len() == 0 {
		return nil, fmt.Errorf("numeric baseline: normal partition: %w", utils.ErrEmptyDataset)
	}
	if threshold <= 0 {
		threshold = DefaultZThreshold
	}
	if len(fields) == 0 {
		fields = models.NumericFields
	}

	baselines := make(map[string]Baseline, len(fields))
	for _, field := range fields {
		values := normal.Values(field)
		if len(values) == 0 {
			return nil, fmt.Errorf("numeric baseline: field %q has no values: %w", field, utils.ErrEmptyDataset)
		}
		mean := Mean(values)
		std := SampleStdDev(values, mean)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		baselines[field] = Baseline{Mean: mean, Std: std}
	}

	return &NumericDetector{
		fields:    append([]string(nil), fields...),
		threshold: threshold,
		baselines: baselines,
	}, nil
}

// Name implements Detector.
func (d *NumericDetector) Name() string { return "numeric" }

// Baseline returns the baseline computed for field.
func (d *NumericDetector) Baseline(field string) (Baseline, bool) {
	b, ok := d.baselines[field]
	return b, ok
}

// Detect implements Detector.
func (d *NumericDetector) Detect(rec models.LogRecord) (models.Explanation, error) {
	out := make(models.Explanation)
	for _, field := range d.fields {
		value, ok, err := rec.Float(field)
		if err != nil {
			return nil, &utils.InputFormatError{Err: err}
		}
		if !ok {
			return nil, &utils.MissingFieldError{Field: field}
		}

		b := d.baselines[field]
		z := (value - b.Mean) / b.Std
		if math.Abs(z) > d.threshold {
			raw, _ := rec.Value(field)
			out[field] = fmt.Sprintf("%s value %s deviates from normal traffic (z-score %.2f, normal mean %.2f)", field, raw, z, b.Mean)
		}
	}
	return out, nil
}

// Mean returns the arithmetic mean, or NaN for no values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// SampleStdDev returns the n-1 standard deviation around mean, or NaN below two values.
func SampleStdDev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range values {
		diff := v - mean
		sum += diff * diff
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
