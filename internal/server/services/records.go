// Package services holds the server use cases behind the gRPC handlers.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/dmitrijs2005/fieldkeeper/internal/common"
	"github.com/dmitrijs2005/fieldkeeper/internal/dbx"
	"github.com/dmitrijs2005/fieldkeeper/internal/keys"
	"github.com/dmitrijs2005/fieldkeeper/internal/logging"
	"github.com/dmitrijs2005/fieldkeeper/internal/origin"
	"github.com/dmitrijs2005/fieldkeeper/internal/server/models"
	"github.com/dmitrijs2005/fieldkeeper/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fieldkeeper/internal/timex"
)

var tableName = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

type RecordsService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewRecordsService(db *sql.DB, repomanager repomanager.RepositoryManager, logger logging.Logger) *RecordsService {
	return &RecordsService{
		db:          db,
		repomanager: repomanager,
		logger:      logger.With("module", "records_service"),
	}
}

func validateTable(table string) error {
	if !tableName.MatchString(table) {
		return fmt.Errorf("%w: invalid table name %q", common.ErrValidation, table)
	}
	return nil
}

// List returns the records of table for tenantID. A non-empty since turns the
// call into a delta pull of rows stamped strictly after it.
func (s *RecordsService) List(ctx context.Context, table, tenantID, since string) ([]*models.Record, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}

	var after *time.Time
	if since != "" {
		t, err := timex.ParseISO(since)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
		}
		after = &t
	}

	return s.repomanager.Records(s.db).List(ctx, table, tenantID, after)
}

// Push stores recs in one transaction and returns them with the stamps the
// database assigned. Provisional ids never reach the server.
func (s *RecordsService) Push(ctx context.Context, table, tenantID string, recs []*models.Record) ([]*models.Record, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	for _, r := range recs {
		if err := keys.ValidateID(r.ID); err != nil {
			return nil, err
		}
		if origin.IsProvisional(r.ID) {
			return nil, fmt.Errorf("%w: provisional id %q", common.ErrValidation, r.ID)
		}
		if len(r.Data) > 0 && !json.Valid(r.Data) {
			return nil, fmt.Errorf("%w: record %q carries invalid JSON", common.ErrValidation, r.ID)
		}
	}
	if len(recs) == 0 {
		return nil, nil
	}

	stored := make([]*models.Record, 0, len(recs))
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Records(tx)
		for _, r := range recs {
			in := *r
			in.Table = table
			in.TenantID = tenantID
			out, err := repo.Upsert(ctx, &in)
			if err != nil {
				return err
			}
			stored = append(stored, out)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "records pushed", "table", table, "tenant", tenantID, "count", len(stored))
	return stored, nil
}
