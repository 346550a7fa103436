package client

import (
	"context"

	"github.com/dmitrijs2005/fieldkeeper/internal/rpc"
)

// Client is the remote source of truth as the sync layer sees it.
type Client interface {
	Close() error
	Ping(ctx context.Context) error
	List(ctx context.Context, table string, opts rpc.ListOptions) ([]rpc.Record, error)
	Push(ctx context.Context, table, tenantID string, records []rpc.Record) ([]rpc.Record, error)
}
