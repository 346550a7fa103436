package rows

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/fieldkeeper/internal/client/models"
	"github.com/dmitrijs2005/fieldkeeper/internal/common"
	"github.com/dmitrijs2005/fieldkeeper/internal/dbx"
	"github.com/dmitrijs2005/fieldkeeper/internal/timex"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const upsertQuery = `INSERT INTO rows (tbl, key, id, tenant_id, updated_at, sync_status, deleted, data)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(tbl, key) DO UPDATE SET id = excluded.id,
		tenant_id = excluded.tenant_id,
		updated_at = excluded.updated_at,
		sync_status = excluded.sync_status,
		deleted = excluded.deleted,
		data = excluded.data
`

const selectColumns = `SELECT tbl, key, id, tenant_id, updated_at, sync_status, deleted, data FROM rows`

func put(ctx context.Context, db dbx.DBTX, r *models.Row) error {
	if r.Table == "" || r.Key == "" {
		return fmt.Errorf("%w: row needs table and key", common.ErrValidation)
	}
	_, err := db.ExecContext(ctx, upsertQuery,
		r.Table, r.Key, r.ID, r.TenantID, timex.FormatISO(r.UpdatedAt), string(r.SyncStatus), r.Deleted, []byte(r.Data))
	if err != nil {
		return fmt.Errorf("failed to upsert row %s/%s: %w", r.Table, r.Key, dbx.MapConstraint(err))
	}
	return nil
}

// Put upserts a row by (table, key).
func (r *SQLiteRepository) Put(ctx context.Context, row *models.Row) error {
	return put(ctx, r.db, row)
}

// PutMany upserts all rows inside a single transaction.
func (r *SQLiteRepository) PutMany(ctx context.Context, rows []*models.Row) error {
	if len(rows) == 0 {
		return nil
	}
	return dbx.RunBatch(ctx, r.db, func(ctx context.Context, tx dbx.DBTX) error {
		for _, row := range rows {
			if err := put(ctx, tx, row); err != nil {
				return err
			}
		}
		return nil
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(s scanner) (*models.Row, error) {
	var (
		item      models.Row
		updatedAt string
		status    string
		data      []byte
	)
	if err := s.Scan(&item.Table, &item.Key, &item.ID, &item.TenantID, &updatedAt, &status, &item.Deleted, &data); err != nil {
		return nil, err
	}
	ts, err := timex.ParseISO(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("row %s/%s: %w", item.Table, item.Key, err)
	}
	item.UpdatedAt = ts
	item.SyncStatus = models.SyncStatus(status)
	item.Data = data
	return &item, nil
}

// Get returns a single row.
func (r *SQLiteRepository) Get(ctx context.Context, table, key string) (*models.Row, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE tbl = ? AND key = ?`, table, key)
	item, err := scanRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get row %s/%s: %w", table, key, err)
	}
	return item, nil
}

// Delete removes a row by (table, key).
func (r *SQLiteRepository) Delete(ctx context.Context, table, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM rows WHERE tbl = ? AND key = ?`, table, key)
	if err != nil {
		return fmt.Errorf("failed to delete row %s/%s: %w", table, key, err)
	}
	return nil
}

func (r *SQLiteRepository) list(ctx context.Context, query string, args ...any) ([]*models.Row, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select rows: %w", err)
	}
	defer rows.Close()

	var result []*models.Row
	for rows.Next() {
		item, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return result, nil
}

// ListByTenant returns all rows of a table for one tenant.
func (r *SQLiteRepository) ListByTenant(ctx context.Context, table, tenantID string) ([]*models.Row, error) {
	return r.list(ctx, selectColumns+` WHERE tbl = ? AND tenant_id = ? ORDER BY id`, table, tenantID)
}

// ListByStatus returns rows of a table for one tenant whose status is one of statuses.
func (r *SQLiteRepository) ListByStatus(ctx context.Context, table, tenantID string, statuses ...models.SyncStatus) ([]*models.Row, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := []any{table, tenantID}
	marks := make([]string, len(statuses))
	for i, s := range statuses {
		marks[i] = "?"
		args = append(args, string(s))
	}
	query := selectColumns + ` WHERE tbl = ? AND tenant_id = ? AND sync_status IN (` + strings.Join(marks, ", ") + `) ORDER BY id`
	return r.list(ctx, query, args...)
}

// DeleteByTenant removes all rows of a table for one tenant.
func (r *SQLiteRepository) DeleteByTenant(ctx context.Context, table, tenantID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM rows WHERE tbl = ? AND tenant_id = ?`, table, tenantID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete rows of %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
