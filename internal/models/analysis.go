package models

import (
	"encoding/json"
	"time"
)

// Explanation maps a field name to the reason it looks anomalous.
type Explanation map[string]string

// RowResult is the outcome of analysing one uploaded row.
type RowResult struct {
	Row         int
	Record      LogRecord
	Prediction  Label
	Explanation Explanation
	Err         error
}

// MarshalJSON flattens the record fields next to the prediction so clients can read
// result.service or result.duration directly. Record keys listed in ResultColumns are
// dropped.
func (r RowResult) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Record)+4)
	for k, v := range r.Record {
		out[k] = v
	}
	for _, k := range ResultColumns() {
		delete(out, k)
	}
	out["row"] = r.Row
	if r.Err != nil {
		out["error"] = r.Err.Error()
		return json.Marshal(out)
	}
	out["prediction"] = r.Prediction
	if r.Prediction == LabelAbnormal && r.Explanation != nil {
		out["explanation"] = r.Explanation
	}
	return json.Marshal(out)
}

// AnalysisReport summarises one uploaded log file.
type AnalysisReport struct {
	AnalysisID   string      `json:"analysis_id"`
	TotalRows    int         `json:"total_rows"`
	AbnormalRows int         `json:"abnormal_rows"`
	SkippedRows  int         `json:"skipped_rows"`
	Results      []RowResult `json:"results"`
	StartedAt    time.Time   `json:"started_at"`
	Duration     float64     `json:"duration_seconds"`
}

// AbnormalRowEvent is published for every abnormal row of an analysis.
type AbnormalRowEvent struct {
	AnalysisID  string      `json:"analysis_id"`
	Row         int         `json:"row"`
	Record      LogRecord   `json:"record"`
	Explanation Explanation `json:"explanation"`
	DetectedAt  time.Time   `json:"detected_at"`
}
