package repo

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LoadPostgres reads the reference dataset from a Postgres table. Every column is
// rendered to text and goes through the same validation as a CSV file.
func LoadPostgres(ctx context.Context, dsn, table string) (*Dataset, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn not configured")
	}
	if table == "" {
		return nil, fmt.Errorf("postgres table not configured")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	rows, err := pool.Query(ctx, selectAllQuery(table))
	if err != nil {
		return nil, fmt.Errorf("query reference table: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	header := make([]string, len(fields))
	for i, fd := range fields {
		header[i] = fd.Name
	}

	var cells [][]string
	var lines []int
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("scan reference row: %w", err)
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = formatCell(v)
		}
		cells = append(cells, row)
		lines = append(lines, len(cells))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read reference table: %w", err)
	}

	tbl, err := buildTable(header, cells, lines, tableOptions{})
	if err != nil {
		return nil, fmt.Errorf("parse reference table %s: %w", table, err)
	}
	return NewDataset("postgres:"+table, tbl)
}

func selectAllQuery(table string) string {
	ident := pgx.Identifier(strings.Split(table, "."))
	return "SELECT * FROM " + ident.Sanitize()
}

func formatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int16:
		return strconv.FormatInt(int64(t), 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case interface {
		Float64Value() (pgtype.Float8, error)
	}:
		f, err := t.Float64Value()
		if err != nil || !f.Valid {
			return ""
		}
		return strconv.FormatFloat(f.Float64, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
