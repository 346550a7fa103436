package records

import (
	"context"
	"time"

	"github.com/dmitrijs2005/fieldkeeper/internal/server/models"
)

type Repository interface {
	// List returns the rows of table for tenant, oldest first. A non-nil since
	// restricts the result to rows stamped strictly after it.
	List(ctx context.Context, table, tenantID string, since *time.Time) ([]*models.Record, error)
	// Upsert stores rec stamped with the database clock and returns the stored row.
	Upsert(ctx context.Context, rec *models.Record) (*models.Record, error)
}
