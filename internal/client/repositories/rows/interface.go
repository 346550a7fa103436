package rows

import (
	"context"

	"github.com/dmitrijs2005/fieldkeeper/internal/client/models"
)

// Repository describes storage operations on cached rows.
type Repository interface {
	// Put inserts a row or replaces the one stored under (row.Table, row.Key).
	Put(ctx context.Context, row *models.Row) error

	// PutMany upserts rows in one transaction.
	PutMany(ctx context.Context, rows []*models.Row) error

	// Get returns the row stored under key, or common.ErrNotFound.
	Get(ctx context.Context, table, key string) (*models.Row, error)

	// Delete removes the row. Deleting an absent row is not an error.
	Delete(ctx context.Context, table, key string) error

	// ListByTenant returns every row of table owned by tenantID ("" for
	// personal mode), ordered by id.
	ListByTenant(ctx context.Context, table, tenantID string) ([]*models.Row, error)

	// ListByStatus is ListByTenant restricted to the given sync statuses.
	ListByStatus(ctx context.Context, table, tenantID string, statuses ...models.SyncStatus) ([]*models.Row, error)

	// DeleteByTenant removes every row of table owned by tenantID and
	// returns how many were removed.
	DeleteByTenant(ctx context.Context, table, tenantID string) (int64, error)
}
