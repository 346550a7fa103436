// Package store is the entity store facade: typed, tenant-aware tables over
// the local cache, with hydration coalesced through internal/coalesce and
// delta sync behind it.
//
// Reads never fail because the network is down. When a sync fails the views
// carry the cached data with Stale set and the sync error attached. Writes go
// to the cache only and are pushed later by the sync coordinator.
package store

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/fieldkeeper/internal/client/cache"
	"github.com/dmitrijs2005/fieldkeeper/internal/client/syncer"
	"github.com/dmitrijs2005/fieldkeeper/internal/coalesce"
	"github.com/dmitrijs2005/fieldkeeper/internal/keys"
	"github.com/dmitrijs2005/fieldkeeper/internal/logging"
	"github.com/dmitrijs2005/fieldkeeper/internal/timex"
	"github.com/google/uuid"
)

// Syncer is the part of the sync coordinator the store uses.
type Syncer interface {
	Sync(ctx context.Context, table, tenantID string) (syncer.Result, error)
	Status(table, tenantID string) syncer.Status
	ClearWatermark(ctx context.Context, table, tenantID string) error
}

type Store struct {
	cache  *cache.Cache
	sync   Syncer
	logger logging.Logger
	clock  timex.Clock
	newID  func() string

	hydrations *coalesce.Group[syncer.Result]

	mu     sync.RWMutex
	tenant string
}

type Option func(*Store)

func WithLogger(l logging.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func WithClock(clock timex.Clock) Option {
	return func(s *Store) { s.clock = clock }
}

// WithIDGenerator replaces the uuid generator used by Create.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

func New(c *cache.Cache, co Syncer, opts ...Option) *Store {
	s := &Store{
		cache:      c,
		sync:       co,
		logger:     logging.Nop(),
		clock:      timex.SystemClock,
		newID:      uuid.NewString,
		hydrations: coalesce.New[syncer.Result](),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("module", "store")
	return s
}

// SetTenant switches the active tenant. An empty id selects personal mode.
// Nothing loaded for the previous tenant is reused: every key includes the
// tenant.
func (s *Store) SetTenant(id string) {
	s.mu.Lock()
	prev := s.tenant
	s.tenant = id
	s.mu.Unlock()
	if prev != id {
		s.logger.Info(context.Background(), "tenant switched", "from", prev, "to", id)
	}
}

func (s *Store) Tenant() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tenant
}

// Reset forgets which tables were hydrated in this session.
func (s *Store) Reset() {
	s.hydrations.Reset()
}

// Hydrations is the number of sync calls the store actually started.
func (s *Store) Hydrations() int64 {
	return s.hydrations.Calls()
}

func hydrationKey(table, tenantID string) string {
	return keys.CacheKey(table, tenantID)
}

// hydrate runs one coalesced sync for the pair and remembers success.
func (s *Store) hydrate(ctx context.Context, table, tenantID string) error {
	_, err := s.hydrations.Resolve(ctx, hydrationKey(table, tenantID), func(ctx context.Context) (syncer.Result, error) {
		return s.sync.Sync(ctx, table, tenantID)
	})
	if err != nil {
		s.logger.Warn(ctx, "hydration failed, serving cached data", "table", table, "tenant", tenantID, "error", err)
	}
	return err
}

func (s *Store) hydrated(table, tenantID string) bool {
	if _, ok := s.hydrations.Peek(hydrationKey(table, tenantID)); ok {
		return true
	}
	return s.cache.Hydrated(cache.Query{Table: table, TenantID: tenantID})
}

func (s *Store) refresh(ctx context.Context, table, tenantID string) error {
	s.hydrations.Invalidate(hydrationKey(table, tenantID))
	return s.hydrate(ctx, table, tenantID)
}

func (s *Store) stale(table, tenantID string) (bool, error) {
	st := s.sync.Status(table, tenantID)
	return st.Stale(), st.LastError
}
