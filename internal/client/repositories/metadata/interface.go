package metadata

import (
	"context"
)

// Repository is the durable client key-value store. Sync watermarks live here
// under keys of the form lastSync_<table>_<tenant>.
type Repository interface {
	// Get returns the value for key, or common.ErrNotFound.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
	List(ctx context.Context) (map[string]string, error)
}
