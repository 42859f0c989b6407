package repo

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/miradorstack/mirador-netlog/internal/models"
	"github.com/miradorstack/mirador-netlog/internal/utils"
)

// Table is a parsed, schema-checked log table.
type Table struct {
	Columns []string
	Records []models.LogRecord
	// Lines holds the 1-based source line of each record.
	Lines []int
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// HasColumn reports whether the table header carries name.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

type tableOptions struct {
	delimiter rune
	required  []string
	reserved  []string
}

// TableOption configures ReadTable.
type TableOption func(*tableOptions)

// WithDelimiter sets the cell separator (default ',').
func WithDelimiter(r rune) TableOption {
	return func(o *tableOptions) {
		if r != 0 {
			o.delimiter = r
		}
	}
}

// WithRequiredColumns lists header columns that must be present.
func WithRequiredColumns(cols ...string) TableOption {
	return func(o *tableOptions) {
		o.required = append(o.required, cols...)
	}
}

// WithReservedColumns lists header names a table may not carry.
func WithReservedColumns(cols ...string) TableOption {
	return func(o *tableOptions) {
		o.reserved = append(o.reserved, cols...)
	}
}

// ParseDelimiter turns a config or query value into a delimiter rune.
// Accepts a single character or the names "tab", "comma", "semicolon" and "pipe".
func ParseDelimiter(value string) (rune, error) {
	switch strings.ToLower(value) {
	case "":
		return ',', nil
	case "tab", `\t`:
		return '\t', nil
	case "comma":
		return ',', nil
	case "semicolon":
		return ';', nil
	case "pipe":
		return '|', nil
	}
	r, size := utf8.DecodeRuneInString(value)
	if size != len(value) || r == utf8.RuneError || r == '"' || r == '\r' || r == '\n' {
		return 0, fmt.Errorf("invalid delimiter %q", value)
	}
	return r, nil
}

// ReadTable parses delimited text with a header row. Required columns are checked before
// any row is looked at; every numeric cell is parsed up-front so a malformed file fails as
// a whole rather than half way through processing.
func ReadTable(r io.Reader, opts ...TableOption) (*Table, error) {
	o := tableOptions{delimiter: ','}
	for _, opt := range opts {
		opt(&o)
	}

	reader := csv.NewReader(r)
	reader.Comma = o.delimiter
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &utils.InputFormatError{Err: errors.New("input is empty")}
		}
		return nil, toFormatError(err)
	}
	header = normaliseHeader(header)

	var rows [][]string
	var lines []int
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, toFormatError(err)
		}
		line, _ := reader.FieldPos(0)
		rows = append(rows, record)
		lines = append(lines, line)
	}

	return buildTable(header, rows, lines, o)
}

func buildTable(header []string, rows [][]string, lines []int, o tableOptions) (*Table, error) {
	if len(header) == 1 && len(o.required) > 1 {
		return nil, &utils.InputFormatError{Line: 1, Err: fmt.Errorf("header has a single column %q; check the delimiter", header[0])}
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		if _, dup := index[name]; dup {
			return nil, &utils.InputFormatError{Line: 1, Err: fmt.Errorf("duplicate column %q", name)}
		}
		index[name] = i
	}
	for _, col := range o.reserved {
		if _, ok := index[col]; ok {
			return nil, &utils.InputFormatError{Line: 1, Err: fmt.Errorf("column name %q is reserved", col)}
		}
	}
	for _, col := range o.required {
		if _, ok := index[col]; !ok {
			return nil, &utils.MissingFieldError{Field: col}
		}
	}

	table := &Table{
		Columns: header,
		Records: make([]models.LogRecord, 0, len(rows)),
		Lines:   lines,
	}
	for i, row := range rows {
		rec := make(models.LogRecord, len(header))
		for col, name := range header {
			rec[name] = row[col]
		}
		for _, name := range header {
			if !models.IsNumericField(name) {
				continue
			}
			if _, _, err := rec.Float(name); err != nil {
				return nil, &utils.InputFormatError{Line: lineOf(lines, i), Err: err}
			}
		}
		table.Records = append(table.Records, rec)
	}
	return table, nil
}

func normaliseHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		out[i] = h
	}
	return out
}

func toFormatError(err error) error {
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return &utils.InputFormatError{Line: parseErr.Line, Err: parseErr.Err}
	}
	return &utils.InputFormatError{Err: err}
}

func lineOf(lines []int, i int) int {
	if i < len(lines) {
		return lines[i]
	}
	return i + 2
}
