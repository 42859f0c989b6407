package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Column names of the connection log schema.
const (
	FieldLabel           = "binary_attack"
	FieldDuration        = "duration"
	FieldSrcBytes        = "src_bytes"
	FieldDstBytes        = "dst_bytes"
	FieldCount           = "count"
	FieldSrvCount        = "srv_count"
	FieldNumFailedLogins = "num_failed_logins"
	FieldRerrorRate      = "rerror_rate"
	FieldProtocolType    = "protocol_type"
	FieldService         = "service"
	FieldFlag            = "flag"
)

// NumericFields are the numeric columns compared against the normal baseline.
var NumericFields = []string{
	FieldDuration,
	FieldSrcBytes,
	FieldDstBytes,
	FieldCount,
	FieldSrvCount,
	FieldNumFailedLogins,
}

// CategoricalFields are the categorical columns checked for rare values.
var CategoricalFields = []string{
	FieldProtocolType,
	FieldService,
	FieldFlag,
}

// OptionalNumericFields may be absent from a table; detectors skip them when missing.
var OptionalNumericFields = []string{
	FieldRerrorRate,
}

// InputColumns lists the columns an uploaded log table must carry.
func InputColumns() []string {
	cols := make([]string, 0, len(NumericFields)+len(CategoricalFields))
	cols = append(cols, NumericFields...)
	return append(cols, CategoricalFields...)
}

// ReferenceColumns lists the columns the labeled reference table must carry.
func ReferenceColumns() []string {
	return append(InputColumns(), FieldLabel)
}

// ResultColumns are the keys an analysed row adds next to its record fields. Uploaded
// tables may not use them as column names.
func ResultColumns() []string {
	return []string{"row", "error", "prediction", "explanation"}
}

// IsNumericField reports whether values of field are parsed as numbers.
func IsNumericField(field string) bool {
	for _, f := range NumericFields {
		if f == field {
			return true
		}
	}
	for _, f := range OptionalNumericFields {
		if f == field {
			return true
		}
	}
	return false
}

// Label is the binary classification of a connection.
type Label string

const (
	LabelNormal   Label = "normal"
	LabelAbnormal Label = "abnormal"
)

// Labels enumerates the known labels in sorted order.
var Labels = []Label{LabelAbnormal, LabelNormal}

// ParseLabel validates a raw label cell.
func ParseLabel(raw string) (Label, error) {
	switch Label(strings.ToLower(strings.TrimSpace(raw))) {
	case LabelNormal:
		return LabelNormal, nil
	case LabelAbnormal:
		return LabelAbnormal, nil
	default:
		return "", fmt.Errorf("unknown label %q", raw)
	}
}

// LogRecord is one network connection: raw cell text keyed by column name.
// Records are never modified after parsing.
type LogRecord map[string]string

// Value returns the trimmed cell for field; ok is false when the field is absent or null.
func (r LogRecord) Value(field string) (string, bool) {
	raw, ok := r[field]
	if !ok || IsNull(raw) {
		return "", false
	}
	return strings.TrimSpace(raw), true
}

// Float parses a numeric cell. ok is false when the field is absent or null; err is set
// when the cell is present but not a number.
func (r LogRecord) Float(field string) (value float64, ok bool, err error) {
	raw, present := r.Value(field)
	if !present {
		return 0, false, nil
	}
	value, err = strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("field %q: %q is not numeric", field, raw)
	}
	return value, true, nil
}

var nullTokens = map[string]struct{}{
	"":     {},
	"na":   {},
	"n/a":  {},
	"nan":  {},
	"null": {},
	"none": {},
}

// IsNull reports whether a raw cell denotes a missing value.
func IsNull(raw string) bool {
	_, ok := nullTokens[strings.ToLower(strings.TrimSpace(raw))]
	return ok
}
