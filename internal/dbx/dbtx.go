// Package dbx provides tiny DB abstractions shared by repositories:
// a minimal interface (DBTX) implemented by both *sql.DB and *sql.Tx,
// a helper to run functions inside a transaction, and mapping of
// duplicate-key driver errors onto common.ErrConstraintViolation.
package dbx

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/fieldkeeper/internal/common"
)

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxBeginner is satisfied by *sql.DB. Repositories bound to a plain DBTX
// type-assert to it to open a transaction for batch writes.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// WithTx begins a transaction, runs fn with a transactional handle, and then
// commits on success or rolls back on error/panic. Panics are rethrown.
//
// Typical use:
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    _, err := tx.ExecContext(ctx, "UPDATE ...")
//	    return err
//	})
func WithTx(ctx context.Context, db TxBeginner, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

// RunBatch runs fn inside a transaction when db can begin one, and directly
// against db otherwise (db is already a *sql.Tx, or a test double).
func RunBatch(ctx context.Context, db DBTX, fn func(ctx context.Context, tx DBTX) error) error {
	if b, ok := db.(TxBeginner); ok {
		return WithTx(ctx, b, nil, fn)
	}
	return fn(ctx, db)
}

// duplicateKeyMarkers covers the SQLite and PostgreSQL wordings.
var duplicateKeyMarkers = []string{
	"UNIQUE constraint failed",
	"PRIMARY KEY constraint failed",
	"duplicate key value violates unique constraint",
	"SQLSTATE 23505",
}

// MapConstraint wraps err with common.ErrConstraintViolation when it reports
// a duplicate key. Other errors are returned unchanged.
func MapConstraint(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, m := range duplicateKeyMarkers {
		if strings.Contains(msg, m) {
			return fmt.Errorf("%w: %v", common.ErrConstraintViolation, err)
		}
	}
	return err
}
