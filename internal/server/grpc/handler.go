package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/fieldkeeper/internal/common"
	"github.com/dmitrijs2005/fieldkeeper/internal/rpc"
	"github.com/dmitrijs2005/fieldkeeper/internal/server/models"
	"github.com/dmitrijs2005/fieldkeeper/internal/timex"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// tenant resolves the tenant the caller acts on from the verified claims.
func (s *GRPCServer) tenant(ctx context.Context, requested string) (string, error) {
	claims, ok := claimsFromContext(ctx)
	if !ok {
		return "", status.Error(codes.Unauthenticated, "missing token")
	}
	t, err := claims.Tenant(requested)
	if err != nil {
		s.logger.Warn(ctx, "tenant denied", "subject", claims.Subject, "tenant", requested)
		return "", status.Error(codes.PermissionDenied, err.Error())
	}
	return t, nil
}

func (s *GRPCServer) mapError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrTenantDenied):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, common.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	default:
		s.logger.Error(ctx, err.Error())
		return status.Error(codes.Internal, "internal error")
	}
}

// toWire stamps records with the tenant id the caller asked for, so personal
// mode callers get back an empty tenant.
func toWire(recs []*models.Record, tenantID string) []rpc.Record {
	out := make([]rpc.Record, 0, len(recs))
	for _, r := range recs {
		out = append(out, rpc.Record{
			ID:        r.ID,
			TenantID:  tenantID,
			UpdatedAt: timex.FormatISO(r.UpdatedAt),
			Deleted:   r.Deleted,
			Data:      r.Data,
		})
	}
	return out
}

func (s *GRPCServer) List(ctx context.Context, req *rpc.ListRequest) (*rpc.ListResponse, error) {
	tenant, err := s.tenant(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}

	var since string
	if req.Filter != nil && req.Filter.UpdatedAt != nil {
		since = req.Filter.UpdatedAt.GT
	}

	recs, err := s.records.List(ctx, req.Table, tenant, since)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}

	s.metrics.RecordsListed.WithLabelValues(req.Table).Add(float64(len(recs)))
	s.logger.Debug(ctx, "list", "table", req.Table, "tenant", tenant, "since", since, "count", len(recs))

	return &rpc.ListResponse{Records: toWire(recs, req.TenantID)}, nil
}

func (s *GRPCServer) Push(ctx context.Context, req *rpc.PushRequest) (*rpc.PushResponse, error) {
	tenant, err := s.tenant(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}

	in := make([]*models.Record, 0, len(req.Records))
	for _, r := range req.Records {
		if r.TenantID != "" && r.TenantID != req.TenantID {
			return nil, status.Error(codes.InvalidArgument, "record tenant does not match request")
		}
		in = append(in, &models.Record{ID: r.ID, Deleted: r.Deleted, Data: r.Data})
	}

	stored, err := s.records.Push(ctx, req.Table, tenant, in)
	if err != nil {
		return nil, s.mapError(ctx, err)
	}

	s.metrics.RecordsPushed.WithLabelValues(req.Table).Add(float64(len(stored)))

	return &rpc.PushResponse{Records: toWire(stored, req.TenantID)}, nil
}

func (s *GRPCServer) Ping(ctx context.Context, req *rpc.PingRequest) (*rpc.PingResponse, error) {
	return &rpc.PingResponse{Status: "OK"}, nil
}
