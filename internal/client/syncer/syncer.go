// Package syncer pulls remote changes into the local cache and pushes local
// changes upstream, one (table, tenant) pair at a time.
//
// Each pair has a watermark, stored under lastSync_<table>_<tenant>, holding
// the time the last successful pull started. The next pull asks only for
// records updated strictly after it, less the configured overlap. Runs for
// the same pair never overlap each other.
//
// Every cache read-modify-write is done under the cache's per-record lock,
// the same lock the store takes for local edits.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/fieldkeeper/internal/client/cache"
	"github.com/dmitrijs2005/fieldkeeper/internal/client/models"
	"github.com/dmitrijs2005/fieldkeeper/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/fieldkeeper/internal/common"
	"github.com/dmitrijs2005/fieldkeeper/internal/keys"
	"github.com/dmitrijs2005/fieldkeeper/internal/logging"
	"github.com/dmitrijs2005/fieldkeeper/internal/origin"
	"github.com/dmitrijs2005/fieldkeeper/internal/rpc"
	"github.com/dmitrijs2005/fieldkeeper/internal/timex"
	"golang.org/x/sync/singleflight"
)

// Remote is the server as the coordinator needs it.
type Remote interface {
	List(ctx context.Context, table string, opts rpc.ListOptions) ([]rpc.Record, error)
	Push(ctx context.Context, table, tenantID string, records []rpc.Record) ([]rpc.Record, error)
}

// Result summarizes one pull.
type Result struct {
	Table     string
	TenantID  string
	Initial   bool
	Fetched   int
	Applied   int
	Deleted   int
	Skipped   int
	Watermark string
}

// PushResult summarizes one push.
type PushResult struct {
	Table    string
	TenantID string
	Sent     int
	Accepted int
	Removed  int
}

// Status is the outcome of the latest run for a pair.
type Status struct {
	LastAttempt time.Time
	LastSuccess time.Time
	LastError   error
}

// Stale reports whether the latest run failed, i.e. the cache is being
// served without a confirmed sync.
func (s Status) Stale() bool { return s.LastError != nil }

// Target is a (table, tenant) pair for the background loop.
type Target struct {
	Table    string
	TenantID string
}

type Coordinator struct {
	remote Remote
	cache  *cache.Cache
	state  metadata.Repository
	clock   timex.Clock
	logger  logging.Logger
	overlap time.Duration

	flight singleflight.Group

	mu     sync.Mutex
	status map[Target]Status
}

type Option func(*Coordinator)

func WithClock(clock timex.Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

func WithLogger(l logging.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

// WithOverlap moves the lower bound of every delta pull d before the stored
// watermark. Rows stamped by a server transaction that committed after an
// earlier pull read past them are fetched again instead of being missed;
// reapplying them is an idempotent upsert.
func WithOverlap(d time.Duration) Option {
	return func(c *Coordinator) { c.overlap = d }
}

func New(remote Remote, c *cache.Cache, state metadata.Repository, opts ...Option) *Coordinator {
	co := &Coordinator{
		remote: remote,
		cache:  c,
		state:  state,
		clock:  timex.SystemClock,
		logger: logging.Nop(),
		status: make(map[Target]Status),
	}
	for _, o := range opts {
		o(co)
	}
	co.logger = co.logger.With("module", "syncer")
	return co
}

// WatermarkKey is the durable state key for a pair. Personal mode leaves the
// tenant segment empty, which no tenant id can produce.
func WatermarkKey(table, tenantID string) string {
	return "lastSync_" + table + "_" + tenantID
}

// lowerBound is the filter bound for a delta pull from since.
func (c *Coordinator) lowerBound(since string) string {
	if since == "" || c.overlap <= 0 {
		return since
	}
	t, err := timex.ParseISO(since)
	if err != nil {
		return since
	}
	return timex.FormatISO(t.Add(-c.overlap))
}

// Watermark returns the stored watermark; ok is false when none is stored.
func (c *Coordinator) Watermark(ctx context.Context, table, tenantID string) (string, bool, error) {
	w, err := c.state.Get(ctx, WatermarkKey(table, tenantID))
	if errors.Is(err, common.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return w, true, nil
}

// ClearWatermark forgets the watermark so the next Sync is a full pull.
func (c *Coordinator) ClearWatermark(ctx context.Context, table, tenantID string) error {
	if err := c.state.Delete(ctx, WatermarkKey(table, tenantID)); err != nil {
		return err
	}
	c.logger.Info(ctx, "watermark cleared", "table", table, "tenant", tenantID)
	return nil
}

// Sync pulls changes for the pair. A call that arrives while another Sync of
// the same pair is running waits for it and shares its result.
func (c *Coordinator) Sync(ctx context.Context, table, tenantID string) (Result, error) {
	v, err, shared := c.flight.Do("sync\x00"+table+"\x00"+tenantID, func() (any, error) {
		return c.sync(context.WithoutCancel(ctx), table, tenantID)
	})
	if shared {
		c.logger.Debug(ctx, "sync coalesced", "table", table, "tenant", tenantID)
	}
	res, _ := v.(Result)
	return res, err
}

func (c *Coordinator) sync(ctx context.Context, table, tenantID string) (Result, error) {
	res := Result{Table: table, TenantID: tenantID}
	target := Target{Table: table, TenantID: tenantID}

	since, _, err := c.Watermark(ctx, table, tenantID)
	if err != nil {
		return res, c.fail(ctx, target, "read watermark", err)
	}
	res.Initial = since == ""

	start := c.clock()
	records, err := c.remote.List(ctx, table, rpc.ListOptions{TenantID: tenantID, Filter: rpc.DeltaFilter(c.lowerBound(since))})
	if err != nil {
		return res, c.fail(ctx, target, "list", err)
	}
	res.Fetched = len(records)

	if err := c.apply(ctx, table, tenantID, records, &res); err != nil {
		return res, c.fail(ctx, target, "apply", err)
	}

	next := timex.FormatISO(start)
	if advances(since, next) {
		if err := c.state.Set(ctx, WatermarkKey(table, tenantID), next); err != nil {
			return res, c.fail(ctx, target, "write watermark", err)
		}
		res.Watermark = next
	} else {
		res.Watermark = since
	}

	c.cache.MarkHydrated(cache.Query{Table: table, TenantID: tenantID})
	c.succeed(target)

	mode := "delta"
	if res.Initial {
		mode = "initial"
	}
	c.logger.Info(ctx, "sync finished",
		"table", table, "tenant", tenantID, "mode", mode,
		"fetched", res.Fetched, "applied", res.Applied, "deleted", res.Deleted,
		"skipped", res.Skipped, "watermark", res.Watermark)
	return res, nil
}

// advances reports whether next is later than the stored watermark. An
// unreadable stored value is replaced.
func advances(since, next string) bool {
	if since == "" {
		return true
	}
	prev, err := timex.ParseISO(since)
	if err != nil {
		return true
	}
	n, err := timex.ParseISO(next)
	if err != nil {
		return false
	}
	return n.After(prev)
}

// apply upserts remote records. A local row with unpushed changes newer than
// the remote copy is kept; remote tombstones remove the local row.
func (c *Coordinator) apply(ctx context.Context, table, tenantID string, records []rpc.Record, res *Result) error {
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		ids = append(ids, rec.ID)
	}
	unlock := c.cache.LockMany(table, tenantID, ids)
	defer unlock()

	var (
		puts    []*models.Row
		deletes []string
	)
	for _, rec := range records {
		if origin.IsProvisional(rec.ID) {
			c.logger.Warn(ctx, "dropping remote record with provisional id", "table", table, "id", rec.ID)
			res.Skipped++
			continue
		}
		if err := keys.ValidateID(rec.ID); err != nil {
			c.logger.Warn(ctx, "dropping remote record", "table", table, "id", rec.ID, "error", err)
			res.Skipped++
			continue
		}
		if rec.TenantID != "" && rec.TenantID != tenantID {
			c.logger.Warn(ctx, "dropping remote record of another tenant", "table", table, "id", rec.ID, "tenant", rec.TenantID)
			res.Skipped++
			continue
		}
		updated, err := timex.ParseISO(rec.UpdatedAt)
		if err != nil {
			c.logger.Warn(ctx, "dropping remote record", "table", table, "id", rec.ID, "error", err)
			res.Skipped++
			continue
		}

		local, err := c.cache.Get(ctx, table, tenantID, rec.ID)
		switch {
		case errors.Is(err, common.ErrNotFound):
			local = nil
		case err != nil:
			return err
		}
		if local != nil && local.SyncStatus.Local() && local.UpdatedAt.After(updated) {
			res.Skipped++
			continue
		}

		if rec.Deleted {
			if local != nil {
				deletes = append(deletes, rec.ID)
			}
			continue
		}
		puts = append(puts, &models.Row{
			Table:      table,
			ID:         rec.ID,
			TenantID:   tenantID,
			UpdatedAt:  updated,
			SyncStatus: models.StatusSynced,
			Data:       rec.Data,
		})
	}

	if err := c.cache.PutMany(ctx, puts); err != nil {
		return err
	}
	res.Applied = len(puts)
	for _, id := range deletes {
		if err := c.cache.Delete(ctx, table, tenantID, id); err != nil {
			return err
		}
		res.Deleted++
	}
	return nil
}

// Push sends rows with local changes upstream. Accepted rows become synced
// with the server's timestamp; acknowledged tombstones are removed. If the
// call fails the rows are marked failed and retried next time. Push never
// moves the watermark.
func (c *Coordinator) Push(ctx context.Context, table, tenantID string) (PushResult, error) {
	v, err, _ := c.flight.Do("push\x00"+table+"\x00"+tenantID, func() (any, error) {
		return c.push(context.WithoutCancel(ctx), table, tenantID)
	})
	res, _ := v.(PushResult)
	return res, err
}

func (c *Coordinator) push(ctx context.Context, table, tenantID string) (PushResult, error) {
	res := PushResult{Table: table, TenantID: tenantID}
	target := Target{Table: table, TenantID: tenantID}

	pending, err := c.cache.Pending(ctx, table, tenantID)
	if err != nil {
		return res, c.fail(ctx, target, "read pending", err)
	}
	if len(pending) == 0 {
		return res, nil
	}

	sent := make(map[string]*models.Row, len(pending))
	out := make([]rpc.Record, 0, len(pending))
	for _, row := range pending {
		if origin.IsProvisional(row.ID) {
			continue
		}
		sent[row.ID] = row
		out = append(out, rpc.Record{
			ID:        row.ID,
			TenantID:  tenantID,
			UpdatedAt: timex.FormatISO(row.UpdatedAt),
			Deleted:   row.SyncStatus == models.StatusPendingDelete,
			Data:      row.Data,
		})
	}
	res.Sent = len(out)

	accepted, err := c.remote.Push(ctx, table, tenantID, out)
	if err != nil {
		c.markFailed(ctx, sent)
		return res, c.fail(ctx, target, "push", err)
	}

	for _, rec := range accepted {
		row, ok := sent[rec.ID]
		if !ok {
			continue
		}
		outcome, err := c.confirm(ctx, row, rec)
		if err != nil {
			return res, c.fail(ctx, target, "store pushed", err)
		}
		switch outcome {
		case confirmedStored:
			res.Accepted++
		case confirmedRemoved:
			res.Removed++
		}
	}

	c.succeed(target)
	c.logger.Info(ctx, "push finished", "table", table, "tenant", tenantID,
		"sent", res.Sent, "accepted", res.Accepted, "removed", res.Removed)
	return res, nil
}

type confirmation int

const (
	confirmedSkipped confirmation = iota
	confirmedStored
	confirmedRemoved
)

// unchanged reloads sent and reports whether it is still the row that was
// pushed. The caller holds the row's lock. A row edited or removed while the
// push was in flight is left alone.
func (c *Coordinator) unchanged(ctx context.Context, sent *models.Row) (*models.Row, bool, error) {
	current, err := c.cache.Get(ctx, sent.Table, sent.TenantID, sent.ID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !current.UpdatedAt.Equal(sent.UpdatedAt) || current.SyncStatus != sent.SyncStatus {
		return nil, false, nil
	}
	return current, true, nil
}

// confirm applies the server's acknowledgement of one pushed row.
func (c *Coordinator) confirm(ctx context.Context, sent *models.Row, rec rpc.Record) (confirmation, error) {
	unlock := c.cache.Lock(sent.Table, sent.TenantID, sent.ID)
	defer unlock()

	current, ok, err := c.unchanged(ctx, sent)
	if err != nil || !ok {
		return confirmedSkipped, err
	}
	if rec.Deleted {
		if err := c.cache.Delete(ctx, sent.Table, sent.TenantID, sent.ID); err != nil {
			return confirmedSkipped, err
		}
		return confirmedRemoved, nil
	}
	updated, err := timex.ParseISO(rec.UpdatedAt)
	if err != nil {
		updated = current.UpdatedAt
	}
	current.UpdatedAt = updated
	current.SyncStatus = models.StatusSynced
	if err := c.cache.Put(ctx, current); err != nil {
		return confirmedSkipped, err
	}
	return confirmedStored, nil
}

// markFailed flags the pushed rows that are still as they were sent.
func (c *Coordinator) markFailed(ctx context.Context, rows map[string]*models.Row) {
	for _, sent := range rows {
		if sent.SyncStatus == models.StatusPendingDelete || sent.SyncStatus == models.StatusFailed {
			continue
		}
		c.markOneFailed(ctx, sent)
	}
}

func (c *Coordinator) markOneFailed(ctx context.Context, sent *models.Row) {
	unlock := c.cache.Lock(sent.Table, sent.TenantID, sent.ID)
	defer unlock()

	current, ok, err := c.unchanged(ctx, sent)
	if err == nil && ok {
		current.SyncStatus = models.StatusFailed
		err = c.cache.Put(ctx, current)
	}
	if err != nil {
		c.logger.Error(ctx, "mark row failed", "table", sent.Table, "id", sent.ID, "error", err)
	}
}

// Status returns the outcome of the latest Sync or Push for the pair.
func (c *Coordinator) Status(table, tenantID string) Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status[Target{Table: table, TenantID: tenantID}]
}

func (c *Coordinator) fail(ctx context.Context, t Target, step string, err error) error {
	wrapped := fmt.Errorf("%w: %s %s/%s: %w", common.ErrSyncFailed, step, t.Table, t.TenantID, err)
	c.mu.Lock()
	st := c.status[t]
	st.LastAttempt = c.clock()
	st.LastError = wrapped
	c.status[t] = st
	c.mu.Unlock()
	c.logger.Warn(ctx, "sync step failed", "table", t.Table, "tenant", t.TenantID, "step", step, "error", err)
	return wrapped
}

func (c *Coordinator) succeed(t Target) {
	now := c.clock()
	c.mu.Lock()
	c.status[t] = Status{LastAttempt: now, LastSuccess: now}
	c.mu.Unlock()
}

// Run pushes and then pulls every target returned by targets, immediately and
// then every interval, until ctx ends. A failed push does not hold back the
// pull. Failures are logged and retried on the next tick.
func (c *Coordinator) Run(ctx context.Context, interval time.Duration, targets func() []Target) {
	tick := func() {
		for _, t := range targets() {
			if ctx.Err() != nil {
				return
			}
			_, _ = c.Push(ctx, t.Table, t.TenantID)
			_, _ = c.Sync(ctx, t.Table, t.TenantID)
		}
	}

	tick()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick()
		}
	}
}
