// Package store implements the idempotent persistence contract over
// PostgreSQL.
//
// Three write strategies coexist:
//   - snapshot replace: delete all prior rows for the account, insert the
//     new generation in the same transaction
//   - natural-key fact insert: a unique violation resolves to "already
//     present" and is reported as a typed Conflict outcome, never an error
//   - dimension upsert: INSERT ... ON CONFLICT (key) DO UPDATE
//
// Raw payload audit rows are append-only and never deduplicate.
package store

import (
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint errors.
const uniqueViolation = "23505"

// Outcome reports how a fact insert resolved.
type Outcome int

const (
	// Inserted means a new row was written.
	Inserted Outcome = iota
	// Conflict means the natural key already existed; nothing was written.
	Conflict
)

func (o Outcome) String() string {
	if o == Conflict {
		return "conflict"
	}
	return "inserted"
}

// Repository persists curated rows and raw payloads.
type Repository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// New creates a Repository.
func New(db *pgxpool.Pool, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{db: db, logger: logger}
}

// isUniqueViolation reports whether err is a unique-constraint violation.
// Detection is by SQLSTATE, not error text.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
