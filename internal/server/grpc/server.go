// Package grpc exposes the records service over gRPC.
package grpc

import (
	"context"
	"net"

	"github.com/dmitrijs2005/fieldkeeper/internal/logging"
	"github.com/dmitrijs2005/fieldkeeper/internal/rpc"
	"github.com/dmitrijs2005/fieldkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/fieldkeeper/internal/server/models"
	"google.golang.org/grpc"
)

// Records is the use case layer the handlers call.
type Records interface {
	List(ctx context.Context, table, tenantID, since string) ([]*models.Record, error)
	Push(ctx context.Context, table, tenantID string, recs []*models.Record) ([]*models.Record, error)
}

type GRPCServer struct {
	address   string
	records   Records
	metrics   *metrics.Metrics
	logger    logging.Logger
	jwtSecret []byte
}

var _ rpc.RecordsServer = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, records Records, m *metrics.Metrics, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		records:   records,
		metrics:   m,
		jwtSecret: []byte(secretKey),
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		s.metrics.UnaryServerInterceptor(),
		s.accessTokenInterceptor,
	))
	rpc.RegisterRecordsServer(srv, s)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
