//go:build !integration

package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"voice-clone-studio/internal/domain"
)

func TestMapErr(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"no rows", pgx.ErrNoRows, domain.ErrNotFound},
		{"value too long", &pgconn.PgError{Code: "22001", Message: "value too long"}, domain.ErrInvalidArgument},
		{"not null violation", &pgconn.PgError{Code: "23502"}, domain.ErrInvalidArgument},
		{"connection failure", &pgconn.PgError{Code: "08006"}, domain.ErrStorageUnavailable},
		{"plain error", errors.New("dial tcp: refused"), domain.ErrStorageUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapErr("op", tt.in); !errors.Is(got, tt.want) {
				t.Errorf("mapErr(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestClampExpr(t *testing.T) {
	got := clampExpr("used_voices", 2)
	want := "CASE WHEN $2 > 0 THEN LEAST(GREATEST(COALESCE(used_voices, 0), 0), $2) ELSE GREATEST(COALESCE(used_voices, 0), 0) END"
	if got != want {
		t.Errorf("clampExpr = %q", got)
	}
}
