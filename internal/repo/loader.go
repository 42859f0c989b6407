package repo

import (
	"context"
	"fmt"
	"os"
)

// LoadCSV reads the reference dataset from a delimited file on disk.
func LoadCSV(path string, delimiter rune) (*Dataset, error) {
	if path == "" {
		return nil, fmt.Errorf("reference dataset path not configured")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open reference dataset: %w", err)
	}
	defer f.Close()

	table, err := ReadTable(f, WithDelimiter(delimiter))
	if err != nil {
		return nil, fmt.Errorf("parse reference dataset %s: %w", path, err)
	}
	ds, err := NewDataset("file:"+path, table)
	if err != nil {
		return nil, fmt.Errorf("validate reference dataset %s: %w", path, err)
	}
	return ds, nil
}

// Source selects where the reference dataset is loaded from.
type Source struct {
	Kind      string
	Path      string
	Delimiter rune
	DSN       string
	Table     string
}

// Load dispatches to the loader matching src.Kind ("csv" or "postgres").
func Load(ctx context.Context, src Source) (*Dataset, error) {
	switch src.Kind {
	case "", "csv":
		return LoadCSV(src.Path, src.Delimiter)
	case "postgres":
		return LoadPostgres(ctx, src.DSN, src.Table)
	default:
		return nil, fmt.Errorf("unknown dataset source %q", src.Kind)
	}
}
