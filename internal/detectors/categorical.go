package detectors

import (
	"fmt"

	"github.com/miradorstack/mirador-netlog/internal/models"
	"github.com/miradorstack/mirador-netlog/internal/utils"
)

// Default frequency bounds for the rare-categorical check.
const (
	DefaultRareBelow   = 0.01
	DefaultCommonAbove = 0.05
)

// CategoricalDetector flags values that are rare in normal traffic yet common in abnormal
// traffic.
type CategoricalDetector struct {
	fields      []string
	rareBelow   float64
	commonAbove float64
	normal      map[string]map[string]float64
	abnormal    map[string]map[string]float64
}

// NewCategoricalDetector computes relative value frequencies in both partitions.
func NewCategoricalDetector(normal, abnormal Reference, fields ...string) (*CategoricalDetector, error) {
	if len(fields) == 0 {
		fields = models.CategoricalFields
	}
	normalFreq, err := frequencies(normal, fields)
	if err != nil {
		return nil, fmt.Errorf("categorical baseline: normal partition: %w", err)
	}
	abnormalFreq, err := frequencies(abnormal, fields)
	if err != nil {
		return nil, fmt.Errorf("categorical baseline: abnormal partition: %w", err)
	}
	return &CategoricalDetector{
		fields:      append([]string(nil), fields...),
		rareBelow:   DefaultRareBelow,
		commonAbove: DefaultCommonAbove,
		normal:      normalFreq,
		abnormal:    abnormalFreq,
	}, nil
}

// Name implements Detector.
func (d *CategoricalDetector) Name() string { return "categorical" }

// Frequencies returns the normal and abnormal relative frequency of value in field.
func (d *CategoricalDetector) Frequencies(field, value string) (normal, abnormal float64) {
	return d.normal[field][value], d.abnormal[field][value]
}

// Detect implements Detector.
func (d *CategoricalDetector) Detect(rec models.LogRecord) (models.Explanation, error) {
	out := make(models.Explanation)
	for _, field := range d.fields {
		value, ok := rec.Value(field)
		if !ok {
			return nil, &utils.MissingFieldError{Field: field}
		}
		normalFreq, abnormalFreq := d.Frequencies(field, value)
		if normalFreq < d.rareBelow && abnormalFreq > d.commonAbove {
			out[field] = fmt.Sprintf("%s '%s' is rare in normal traffic (%.2f%%) but common in abnormal traffic (%.2f%%)",
				field, value, normalFreq*100, abnormalFreq*100)
		}
	}
	return out, nil
}

func frequencies(ref Reference, fields []string) (map[string]map[string]float64, error) {
	if ref == nil || ref.Len() == 0 {
		return nil, utils.ErrEmptyDataset
	}
	out := make(map[string]map[string]float64, len(fields))
	for _, field := range fields {
		values := ref.Categories(field)
		if len(values) == 0 {
			return nil, fmt.Errorf("field %q has no values: %w", field, utils.ErrEmptyDataset)
		}
		counts := make(map[string]float64)
		for _, v := range values {
			counts[v]++
		}
		total := float64(len(values))
		for v, c := range counts {
			counts[v] = c / total
		}
		out[field] = counts
	}
	return out, nil
}
