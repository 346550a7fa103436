package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fieldkeeper/internal/client/cache"
	"github.com/dmitrijs2005/fieldkeeper/internal/client/models"
	"github.com/dmitrijs2005/fieldkeeper/internal/common"
	"github.com/dmitrijs2005/fieldkeeper/internal/keys"
)

// View is the result of a single-record read.
//
// Hydrated is true once the value is known: found locally, or confirmed
// absent after a sync. Stale is set when the latest sync for the table
// failed; SyncErr carries that failure. Err is the reason Value is nil.
type View[T any] struct {
	Hydrated bool
	Value    *T
	Stale    bool
	SyncErr  error
	Err      error
}

// ListView is the result of a list read. Items holds whatever is cached even
// when the sync failed.
type ListView[T any] struct {
	Hydrated bool
	Items    []T
	Stale    bool
	SyncErr  error
	Err      error
}

type tableOptions struct {
	requireTenant bool
}

type TableOption func(*tableOptions)

// RequireTenant makes every operation fail with common.ErrTenantMissing
// while the store is in personal mode.
func RequireTenant() TableOption {
	return func(o *tableOptions) { o.requireTenant = true }
}

// Table is the typed surface of one table. P is inferred: NewTable[Survey](s, "surveys").
type Table[T any, P models.Entity[T]] struct {
	store *Store
	name  string
	opts  tableOptions
}

func NewTable[T any, P models.Entity[T]](s *Store, name string, opts ...TableOption) *Table[T, P] {
	t := &Table[T, P]{store: s, name: name}
	for _, o := range opts {
		o(&t.opts)
	}
	return t
}

func (t *Table[T, P]) Name() string { return t.name }

func (t *Table[T, P]) tenant() (string, error) {
	id := t.store.Tenant()
	if id == "" && t.opts.requireTenant {
		return "", fmt.Errorf("%s: %w", t.name, common.ErrTenantMissing)
	}
	return id, nil
}

func live(r *models.Row) bool {
	return !r.Deleted && r.SyncStatus != models.StatusPendingDelete
}

// load reads id from the cache only.
func (t *Table[T, P]) load(ctx context.Context, tenantID, id string) (*T, error) {
	row, err := t.store.cache.Get(ctx, t.name, tenantID, id)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !live(row) {
		return nil, nil
	}
	return models.Decode[T, P](row)
}

// loadOrHydrate reads id, syncing the table first when the id is missing and
// the table has not been hydrated yet. syncErr reports a failed sync; err a
// storage failure.
func (t *Table[T, P]) loadOrHydrate(ctx context.Context, tenantID, id string) (v *T, syncErr, err error) {
	v, err = t.load(ctx, tenantID, id)
	if err != nil || v != nil || t.store.hydrated(t.name, tenantID) {
		return v, nil, err
	}
	if syncErr = t.store.hydrate(ctx, t.name, tenantID); syncErr != nil {
		return nil, syncErr, nil
	}
	v, err = t.load(ctx, tenantID, id)
	return v, nil, err
}

func (t *Table[T, P]) notFound(id string) error {
	return fmt.Errorf("%s/%s: %w", t.name, id, common.ErrNotFound)
}

// Get returns id from the cache, hydrating the table on a miss.
func (t *Table[T, P]) Get(ctx context.Context, id string) View[T] {
	tenantID, err := t.tenant()
	if err != nil {
		return View[T]{Err: err}
	}
	v, syncErr, err := t.loadOrHydrate(ctx, tenantID, id)
	if err != nil {
		return View[T]{Err: err}
	}
	stale, lastErr := t.store.stale(t.name, tenantID)
	if syncErr != nil {
		return View[T]{Stale: true, SyncErr: syncErr, Err: syncErr}
	}
	if v == nil {
		return View[T]{Hydrated: true, Stale: stale, SyncErr: lastErr, Err: t.notFound(id)}
	}
	return View[T]{Hydrated: true, Value: v, Stale: stale, SyncErr: lastErr}
}

// Peek returns id from the cache without triggering hydration.
func (t *Table[T, P]) Peek(ctx context.Context, id string) (*T, bool) {
	tenantID, err := t.tenant()
	if err != nil {
		return nil, false
	}
	v, err := t.load(ctx, tenantID, id)
	if err != nil || v == nil {
		return nil, false
	}
	return v, true
}

func (t *Table[T, P]) items(ctx context.Context, tenantID string) ([]T, error) {
	rows, err := t.store.cache.List(ctx, t.name, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		v, err := models.Decode[T, P](r)
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

// List returns every live record of the table for the active tenant. The
// first call per tenant triggers one coalesced sync.
func (t *Table[T, P]) List(ctx context.Context) ListView[T] {
	tenantID, err := t.tenant()
	if err != nil {
		return ListView[T]{Err: err}
	}

	var syncErr error
	if !t.store.hydrated(t.name, tenantID) {
		syncErr = t.store.hydrate(ctx, t.name, tenantID)
	}

	items, err := t.items(ctx, tenantID)
	if err != nil {
		return ListView[T]{Err: err, SyncErr: syncErr}
	}
	stale, lastErr := t.store.stale(t.name, tenantID)
	if syncErr != nil {
		return ListView[T]{Items: items, Stale: true, SyncErr: syncErr}
	}
	return ListView[T]{Hydrated: true, Items: items, Stale: stale, SyncErr: lastErr}
}

// Refresh forgets the table's hydration and syncs it again.
func (t *Table[T, P]) Refresh(ctx context.Context) error {
	tenantID, err := t.tenant()
	if err != nil {
		return err
	}
	return t.store.refresh(ctx, t.name, tenantID)
}

// Clear drops the table's cached rows for the active tenant, including
// unsent local edits, and clears its watermark so the next read performs a
// full pull.
func (t *Table[T, P]) Clear(ctx context.Context) (int64, error) {
	tenantID, err := t.tenant()
	if err != nil {
		return 0, err
	}
	n, err := t.store.cache.Clear(ctx, t.name, tenantID)
	if err != nil {
		return 0, err
	}
	if err := t.store.sync.ClearWatermark(ctx, t.name, tenantID); err != nil {
		return n, err
	}
	t.store.hydrations.Invalidate(hydrationKey(t.name, tenantID))
	return n, nil
}

// nextStamp is a write timestamp strictly after prev at the storage
// precision (milliseconds).
func (t *Table[T, P]) nextStamp(prev time.Time) time.Time {
	now := t.store.clock().UTC().Truncate(time.Millisecond)
	if !now.After(prev) {
		now = prev.Truncate(time.Millisecond).Add(time.Millisecond)
	}
	return now
}

func (t *Table[T, P]) persist(ctx context.Context, v *T) error {
	row, err := models.Encode[T, P](t.name, v)
	if err != nil {
		return err
	}
	return t.store.cache.Put(ctx, row)
}

// Create stores v as a new local record and returns the stored copy. An empty
// id gets a fresh uuid. The record is queued for push unless it is a draft.
func (t *Table[T, P]) Create(ctx context.Context, v *T) (*T, error) {
	tenantID, err := t.tenant()
	if err != nil {
		return nil, err
	}
	item := *v
	m := P(&item).GetMeta()
	if m.ID == "" {
		m.ID = t.store.newID()
	}
	if err := keys.ValidateID(m.ID); err != nil {
		return nil, err
	}

	unlock := t.store.cache.Lock(t.name, tenantID, m.ID)
	defer unlock()

	m.TenantID = tenantID
	m.UpdatedAt = t.nextStamp(time.Time{})
	m.Deleted = false
	if m.SyncStatus != models.StatusDraft {
		m.SyncStatus = models.StatusQueued
	}
	P(&item).SetMeta(m)

	row, err := models.Encode[T, P](t.name, &item)
	if err != nil {
		return nil, err
	}
	if err := t.store.cache.Put(ctx, row); err != nil {
		return nil, err
	}
	return models.Decode[T, P](row)
}

func runMutator[T any](mutate func(*T) error, v *T) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("update aborted: mutator panicked: %v", p)
		}
	}()
	return mutate(v)
}

// Update applies mutate to a private copy of id and stores the result.
// Updates of the same id are serialized. If mutate returns an error or
// panics nothing is written. The id and tenant of the record cannot be
// changed by mutate.
func (t *Table[T, P]) Update(ctx context.Context, id string, mutate func(*T) error) error {
	tenantID, err := t.tenant()
	if err != nil {
		return err
	}

	// hydrate before locking: sync applies remote rows under the same locks
	_, syncErr, err := t.loadOrHydrate(ctx, tenantID, id)
	if err != nil {
		return err
	}

	unlock := t.store.cache.Lock(t.name, tenantID, id)
	defer unlock()

	cur, err := t.load(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if cur == nil {
		if syncErr != nil {
			return syncErr
		}
		return t.notFound(id)
	}

	prev := P(cur).GetMeta()
	if err := runMutator(mutate, cur); err != nil {
		return err
	}

	next := prev
	next.UpdatedAt = t.nextStamp(prev.UpdatedAt)
	next.Deleted = false
	if prev.SyncStatus != models.StatusDraft {
		next.SyncStatus = models.StatusQueued
	}
	P(cur).SetMeta(next)

	return t.persist(ctx, cur)
}

// Remove deletes a draft outright and turns any other record into a
// pending_delete tombstone for the next push.
func (t *Table[T, P]) Remove(ctx context.Context, id string) error {
	tenantID, err := t.tenant()
	if err != nil {
		return err
	}

	unlock := t.store.cache.Lock(t.name, tenantID, id)
	defer unlock()

	row, err := t.store.cache.Get(ctx, t.name, tenantID, id)
	if errors.Is(err, common.ErrNotFound) {
		return t.notFound(id)
	}
	if err != nil {
		return err
	}
	if !live(row) {
		return t.notFound(id)
	}

	if row.SyncStatus == models.StatusDraft {
		return t.store.cache.Delete(ctx, t.name, tenantID, id)
	}
	row.SyncStatus = models.StatusPendingDelete
	row.Deleted = true
	row.UpdatedAt = t.nextStamp(row.UpdatedAt)
	return t.store.cache.Put(ctx, row)
}

// Subscribe calls fn with the new value of id after every committed write,
// or with nil once it is removed. The subscription is bound to the tenant
// active when it is made.
func (t *Table[T, P]) Subscribe(id string, fn func(*T)) (unsubscribe func(), err error) {
	tenantID, err := t.tenant()
	if err != nil {
		return func() {}, err
	}
	return t.store.cache.Subscribe(func(ch cache.Change) {
		if ch.Table != t.name || ch.TenantID != tenantID {
			return
		}
		if ch.ID != "" && ch.ID != id {
			return
		}
		v, err := t.load(context.Background(), tenantID, id)
		if err != nil {
			t.store.logger.Error(context.Background(), "subscriber reload failed", "table", t.name, "id", id, "error", err)
			return
		}
		fn(v)
	}), nil
}

// SubscribeList calls fn with the table's live records after every
// committed write to the table for the subscription's tenant.
func (t *Table[T, P]) SubscribeList(fn func([]T)) (unsubscribe func(), err error) {
	tenantID, err := t.tenant()
	if err != nil {
		return func() {}, err
	}
	return t.store.cache.Subscribe(func(ch cache.Change) {
		if ch.Table != t.name || ch.TenantID != tenantID {
			return
		}
		items, err := t.items(context.Background(), tenantID)
		if err != nil {
			t.store.logger.Error(context.Background(), "list subscriber reload failed", "table", t.name, "error", err)
			return
		}
		fn(items)
	}), nil
}
