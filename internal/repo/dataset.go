package repo

import (
	"fmt"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/miradorstack/mirador-netlog/internal/models"
	"github.com/miradorstack/mirador-netlog/internal/utils"
)

// Dataset is the labeled reference table, stored column-wise. It is built once at startup
// and never mutated, so it can be shared across requests without locking.
type Dataset struct {
	source      string
	fingerprint string
	labels      []models.Label
	numeric     map[string][]float64
	categorical map[string][]string
	partitions  map[models.Label]*Partition
}

// NewDataset validates a parsed reference table and converts it to columnar form.
// Null numeric cells are kept as NaN; null categorical cells as "".
// A missing column, a null label or an unknown label fails the whole load.
func NewDataset(source string, table *Table) (*Dataset, error) {
	if table == nil {
		return nil, fmt.Errorf("reference table is nil")
	}
	for _, col := range models.ReferenceColumns() {
		if !table.HasColumn(col) {
			return nil, &utils.MissingFieldError{Field: col}
		}
	}

	n := table.Len()
	ds := &Dataset{
		source:      source,
		labels:      make([]models.Label, n),
		numeric:     make(map[string][]float64),
		categorical: make(map[string][]string),
	}

	numericCols := append([]string(nil), models.NumericFields...)
	for _, f := range models.OptionalNumericFields {
		if table.HasColumn(f) {
			numericCols = append(numericCols, f)
		}
	}
	for _, f := range numericCols {
		ds.numeric[f] = make([]float64, n)
	}
	for _, f := range models.CategoricalFields {
		ds.categorical[f] = make([]string, n)
	}

	digest := xxhash.New()
	for i, rec := range table.Records {
		row := i + 1
		raw, ok := rec.Value(models.FieldLabel)
		if !ok {
			return nil, &utils.MissingFieldError{Field: models.FieldLabel, Row: row}
		}
		label, err := models.ParseLabel(raw)
		if err != nil {
			return nil, &utils.InputFormatError{Line: lineOf(table.Lines, i), Err: err}
		}
		ds.labels[i] = label
		_, _ = digest.WriteString(string(label))

		for _, f := range numericCols {
			v, ok, err := rec.Float(f)
			if err != nil {
				return nil, &utils.InputFormatError{Line: lineOf(table.Lines, i), Err: err}
			}
			if !ok {
				v = math.NaN()
			}
			ds.numeric[f][i] = v
			_, _ = digest.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		for _, f := range models.CategoricalFields {
			v, _ := rec.Value(f)
			ds.categorical[f][i] = v
			_, _ = digest.WriteString(v)
		}
		_, _ = digest.Write([]byte{'\n'})
	}
	ds.fingerprint = strconv.FormatUint(digest.Sum64(), 16)

	ds.partitions = make(map[models.Label]*Partition, len(models.Labels))
	for _, label := range models.Labels {
		ds.partitions[label] = &Partition{ds: ds, label: label}
	}
	for i, label := range ds.labels {
		p := ds.partitions[label]
		p.rows = append(p.rows, i)
	}
	return ds, nil
}

// Source describes where the dataset was loaded from.
func (d *Dataset) Source() string { return d.source }

// Fingerprint is a content hash, stable for identical data.
func (d *Dataset) Fingerprint() string { return d.fingerprint }

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.labels)
}

// Labels returns the per-row labels. Callers must not modify the slice.
func (d *Dataset) Labels() []models.Label { return d.labels }

// Numeric returns a numeric column with NaN for nulls. Callers must not modify the slice.
func (d *Dataset) Numeric(field string) ([]float64, bool) {
	col, ok := d.numeric[field]
	return col, ok
}

// Categorical returns a categorical column with "" for nulls. Callers must not modify the slice.
func (d *Dataset) Categorical(field string) ([]string, bool) {
	col, ok := d.categorical[field]
	return col, ok
}

// Partition returns the read-only view of rows carrying label.
func (d *Dataset) Partition(label models.Label) *Partition {
	if p, ok := d.partitions[label]; ok {
		return p
	}
	return &Partition{ds: d, label: label}
}

// Partition is a read-only view of the dataset restricted to one label.
type Partition struct {
	ds    *Dataset
	label models.Label
	rows  []int
}

// Label returns the label the partition is filtered on.
func (p *Partition) Label() models.Label { return p.label }

// Len returns the number of rows in the partition.
func (p *Partition) Len() int { return len(p.rows) }

// Values returns the non-null values of a numeric column within the partition.
func (p *Partition) Values(field string) []float64 {
	col, ok := p.ds.numeric[field]
	if !ok {
		return nil
	}
	out := make([]float64, 0, len(p.rows))
	for _, i := range p.rows {
		if !math.IsNaN(col[i]) {
			out = append(out, col[i])
		}
	}
	return out
}

// Categories returns the non-null values of a categorical column within the partition.
func (p *Partition) Categories(field string) []string {
	col, ok := p.ds.categorical[field]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(p.rows))
	for _, i := range p.rows {
		if col[i] != "" {
			out = append(out, col[i])
		}
	}
	return out
}
