// Package cache is the local, tenant-scoped record cache.
//
// It keys every row with keys.CacheKey, writes only through upserts, keeps a
// hydration flag per query shape and notifies subscribers after each write
// reaches storage. Writers that read a row and write it back hold the row's
// lock from Lock for the whole read-modify-write.
package cache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/dmitrijs2005/fieldkeeper/internal/client/models"
	"github.com/dmitrijs2005/fieldkeeper/internal/client/repositories/rows"
	"github.com/dmitrijs2005/fieldkeeper/internal/common"
	"github.com/dmitrijs2005/fieldkeeper/internal/keys"
	"github.com/dmitrijs2005/fieldkeeper/internal/logging"
)

// Query identifies a query shape. An empty ID means "the list of Table for
// TenantID".
type Query struct {
	Table    string
	TenantID string
	ID       string
}

type ChangeKind string

const (
	ChangePut    ChangeKind = "put"
	ChangeDelete ChangeKind = "delete"
)

// Change describes one committed write.
type Change struct {
	Table    string
	TenantID string
	ID       string
	Kind     ChangeKind
}

// pendingStatuses are the rows holding changes the server has not seen.
var pendingStatuses = []models.SyncStatus{
	models.StatusDraft,
	models.StatusQueued,
	models.StatusFailed,
	models.StatusPendingDelete,
}

type Cache struct {
	repo   rows.Repository
	logger logging.Logger
	locks  keyedMutex

	mu       sync.RWMutex
	hydrated map[Query]bool
	subs     map[int]func(Change)
	nextSub  int
}

func New(repo rows.Repository, logger logging.Logger) *Cache {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Cache{
		repo:     repo,
		logger:   logger.With("module", "cache"),
		hydrated: make(map[Query]bool),
		subs:     make(map[int]func(Change)),
	}
}

// Lock serializes read-modify-write cycles on one record. It is not
// reentrant.
func (c *Cache) Lock(table, tenantID, id string) (unlock func()) {
	return c.locks.Lock(table + "\x00" + keys.CacheKey(id, tenantID))
}

// LockMany takes the locks of every id in a fixed order and returns one
// function releasing them all.
func (c *Cache) LockMany(table, tenantID string, ids []string) (unlock func()) {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	unlocks := make([]func(), 0, len(sorted))
	for _, id := range sorted {
		unlocks = append(unlocks, c.Lock(table, tenantID, id))
	}
	return func() {
		for i := len(unlocks) - 1; i >= 0; i-- {
			unlocks[i]()
		}
	}
}

// Get returns the row for id, or common.ErrNotFound.
func (c *Cache) Get(ctx context.Context, table, tenantID, id string) (*models.Row, error) {
	return c.repo.Get(ctx, table, keys.CacheKey(id, tenantID))
}

func prepare(row *models.Row) error {
	if err := keys.ValidateID(row.ID); err != nil {
		return err
	}
	if row.Table == "" {
		return fmt.Errorf("%w: row %s has no table", common.ErrValidation, row.ID)
	}
	row.Key = keys.CacheKey(row.ID, row.TenantID)
	return nil
}

// Put inserts or replaces row and marks its single-record query hydrated.
func (c *Cache) Put(ctx context.Context, row *models.Row) error {
	if err := prepare(row); err != nil {
		return err
	}
	if err := c.repo.Put(ctx, row); err != nil {
		c.logDefect(ctx, err, row.Table)
		return err
	}
	c.markWritten(row)
	c.notify(Change{Table: row.Table, TenantID: row.TenantID, ID: row.ID, Kind: ChangePut})
	return nil
}

// PutMany upserts rows in one transaction. Subscribers are notified once per
// row after the commit.
func (c *Cache) PutMany(ctx context.Context, batch []*models.Row) error {
	for _, row := range batch {
		if err := prepare(row); err != nil {
			return err
		}
	}
	if err := c.repo.PutMany(ctx, batch); err != nil {
		if len(batch) > 0 {
			c.logDefect(ctx, err, batch[0].Table)
		}
		return err
	}
	for _, row := range batch {
		c.markWritten(row)
	}
	for _, row := range batch {
		c.notify(Change{Table: row.Table, TenantID: row.TenantID, ID: row.ID, Kind: ChangePut})
	}
	return nil
}

// Delete removes the row for id. The single-record query stays hydrated: the
// record is known to be absent.
func (c *Cache) Delete(ctx context.Context, table, tenantID, id string) error {
	if err := c.repo.Delete(ctx, table, keys.CacheKey(id, tenantID)); err != nil {
		return err
	}
	c.mu.Lock()
	c.hydrated[Query{Table: table, TenantID: tenantID, ID: id}] = true
	c.mu.Unlock()
	c.notify(Change{Table: table, TenantID: tenantID, ID: id, Kind: ChangeDelete})
	return nil
}

// List returns the live (not tombstoned) rows of table for tenantID.
func (c *Cache) List(ctx context.Context, table, tenantID string) ([]*models.Row, error) {
	all, err := c.repo.ListByTenant(ctx, table, tenantID)
	if err != nil {
		return nil, err
	}
	live := all[:0]
	for _, r := range all {
		if r.Deleted || r.SyncStatus == models.StatusPendingDelete {
			continue
		}
		live = append(live, r)
	}
	return live, nil
}

// Pending returns rows with local changes not yet pushed.
func (c *Cache) Pending(ctx context.Context, table, tenantID string) ([]*models.Row, error) {
	return c.repo.ListByStatus(ctx, table, tenantID, pendingStatuses...)
}

// Clear drops every cached row of table for tenantID along with the
// hydration flags of that table and tenant.
func (c *Cache) Clear(ctx context.Context, table, tenantID string) (int64, error) {
	n, err := c.repo.DeleteByTenant(ctx, table, tenantID)
	if err != nil {
		return 0, err
	}
	c.mu.Lock()
	for q := range c.hydrated {
		if q.Table == table && q.TenantID == tenantID {
			delete(c.hydrated, q)
		}
	}
	c.mu.Unlock()
	c.notify(Change{Table: table, TenantID: tenantID, Kind: ChangeDelete})
	return n, nil
}

func (c *Cache) Hydrated(q Query) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hydrated[q]
}

func (c *Cache) MarkHydrated(q Query) {
	c.mu.Lock()
	c.hydrated[q] = true
	c.mu.Unlock()
}

// Subscribe registers fn for every committed change and returns a function
// that removes it. fn runs on the writer's goroutine and must not write to the
// same record synchronously.
func (c *Cache) Subscribe(fn func(Change)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

func (c *Cache) markWritten(row *models.Row) {
	c.mu.Lock()
	c.hydrated[Query{Table: row.Table, TenantID: row.TenantID, ID: row.ID}] = true
	c.mu.Unlock()
}

func (c *Cache) notify(ch Change) {
	c.mu.RLock()
	fns := make([]func(Change), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()

	for _, fn := range fns {
		fn(ch)
	}
}

func (c *Cache) logDefect(ctx context.Context, err error, table string) {
	if errors.Is(err, common.ErrConstraintViolation) {
		c.logger.Error(ctx, "duplicate key on upsert path", "table", table, "error", err)
	}
}
