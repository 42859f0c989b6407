package repo

import (
	"math/big"
	"testing"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
)

func TestSelectAllQuery(t *testing.T) {
	assert.Equal(t, `SELECT * FROM "conn_log"`, selectAllQuery("conn_log"))
	assert.Equal(t, `SELECT * FROM "public"."conn_log"`, selectAllQuery("public.conn_log"))
}

func TestFormatCell(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "null", in: nil, want: ""},
		{name: "text", in: "tcp", want: "tcp"},
		{name: "int", in: int64(42), want: "42"},
		{name: "float", in: 0.25, want: "0.25"},
		{name: "numeric", in: pgtype.Numeric{Int: big.NewInt(125), Exp: -2, Valid: true}, want: "1.25"},
		{name: "null numeric", in: pgtype.Numeric{}, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatCell(tt.in))
		})
	}
}
