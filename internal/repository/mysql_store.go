package repository

import (
	"context"
	"database/sql"
	"strings"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// MySQLStore implements Store and MessageStore on MySQL.  Mutations lock
// the screening row with SELECT ... FOR UPDATE so that concurrent
// processes sharing the database serialize per screening.  All timestamps
// are stored in UTC.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore returns a store bound to db.
func NewMySQLStore(db *sql.DB) *MySQLStore { return &MySQLStore{db: db} }

// inTx runs fn inside a transaction and commits when fn returns nil.
// Errors returned by fn are passed through unchanged; failures to begin or
// commit are reported as storage errors.
func (s *MySQLStore) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(op+": begin", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr(op+": commit", err)
	}
	committed = true
	return nil
}

// placeholders returns "?, ?, ?" for n parameters.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// withSeats appends seat numbers to a leading argument list.
func withSeats(seats []string, lead ...any) []any {
	args := make([]any, 0, len(lead)+len(seats))
	args = append(args, lead...)
	for _, s := range seats {
		args = append(args, s)
	}
	return args
}
