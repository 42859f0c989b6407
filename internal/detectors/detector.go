// Package detectors turns a single connection record into field-level anomaly reasons.
package detectors

import (
	"github.com/miradorstack/mirador-netlog/internal/models"
)

// Detector inspects one record and returns the fields it considers anomalous.
type Detector interface {
	// Name identifies the detector in logs and metrics.
	Name() string
	// Detect returns field → reason for every finding; an empty map means nothing unusual.
	Detect(rec models.LogRecord) (models.Explanation, error)
}

// Reference is the slice of the reference dataset a detector builds its baseline from.
// repo.Partition satisfies it.
type Reference interface {
	Len() int
	Values(field string) []float64
	Categories(field string) []string
}
