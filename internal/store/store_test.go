package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "unique violation",
			err:  &pgconn.PgError{Code: "23505", Message: "duplicate key value"},
			want: true,
		},
		{
			name: "wrapped unique violation",
			err:  fmt.Errorf("insert dividend: %w", &pgconn.PgError{Code: "23505"}),
			want: true,
		},
		{
			name: "other constraint violation",
			err:  &pgconn.PgError{Code: "23503", Message: "foreign key violation"},
			want: false,
		},
		{
			name: "non-postgres error",
			err:  errors.New("duplicate key value"), // text alone must not match
			want: false,
		},
		{
			name: "nil",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOutcomeString(t *testing.T) {
	if got := Inserted.String(); got != "inserted" {
		t.Errorf("Inserted.String() = %q, want %q", got, "inserted")
	}
	if got := Conflict.String(); got != "conflict" {
		t.Errorf("Conflict.String() = %q, want %q", got, "conflict")
	}
}
