// Package records provides the PostgreSQL-backed repository for synced
// table rows.
package records

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fieldkeeper/internal/dbx"
	"github.com/dmitrijs2005/fieldkeeper/internal/server/models"
)

// PostgresRepository implements record storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// List returns the rows of one table and tenant. Stamps are compared with
// "greater than", so a row stamped exactly at since is not returned.
func (r *PostgresRepository) List(ctx context.Context, table, tenantID string, since *time.Time) ([]*models.Record, error) {
	query := `SELECT id, updated_at, deleted, data FROM records
		WHERE tbl=$1 AND tenant_id=$2`
	args := []any{table, tenantID}
	if since != nil {
		query += ` AND updated_at>$3`
		args = append(args, since.UTC())
	}
	query += ` ORDER BY updated_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select records: %w", err)
	}
	defer rows.Close()

	var result []*models.Record
	for rows.Next() {
		item := models.Record{Table: table, TenantID: tenantID}
		var data []byte
		if err := rows.Scan(&item.ID, &item.UpdatedAt, &item.Deleted, &data); err != nil {
			return nil, err
		}
		item.UpdatedAt = item.UpdatedAt.UTC()
		item.Data = data
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Upsert inserts or replaces rec by (table, tenant, id). The stored stamp is
// the database clock truncated to milliseconds, matching the wire format.
func (r *PostgresRepository) Upsert(ctx context.Context, rec *models.Record) (*models.Record, error) {
	query := `
		INSERT INTO records (tbl, tenant_id, id, updated_at, deleted, data)
		VALUES ($1, $2, $3, date_trunc('milliseconds', now()), $4, $5::jsonb)
		ON CONFLICT (tbl, tenant_id, id)
		DO UPDATE SET
			updated_at = EXCLUDED.updated_at,
			deleted = EXCLUDED.deleted,
			data = EXCLUDED.data
		RETURNING updated_at;
	`
	data := string(rec.Data)
	if data == "" {
		data = "{}"
	}

	stored := *rec
	err := r.db.QueryRowContext(ctx, query, rec.Table, rec.TenantID, rec.ID, rec.Deleted, data).Scan(&stored.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert record %s/%s: %w", rec.Table, rec.ID, dbx.MapConstraint(err))
	}
	stored.UpdatedAt = stored.UpdatedAt.UTC()
	return &stored, nil
}
