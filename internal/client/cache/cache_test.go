package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldkeeper/internal/client/client"
	"github.com/dmitrijs2005/fieldkeeper/internal/client/models"
	"github.com/dmitrijs2005/fieldkeeper/internal/client/repositories/rows"
	"github.com/dmitrijs2005/fieldkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T) *Cache {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return New(rows.NewSQLiteRepository(db), nil)
}

func rec(id, tenant string, status models.SyncStatus) *models.Row {
	return &models.Row{
		Table:      "surveys",
		ID:         id,
		TenantID:   tenant,
		UpdatedAt:  time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
		SyncStatus: status,
		Data:       []byte(`{"id":"` + id + `"}`),
	}
}

func TestPut_UsesCompositeKeyOnlyWithTenant(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	r1 := rec("s1", "tenant-1", models.StatusSynced)
	r2 := rec("s1", "tenant-2", models.StatusSynced)
	r3 := rec("s1", "", models.StatusSynced)
	require.NoError(t, c.Put(ctx, r1))
	require.NoError(t, c.Put(ctx, r2))
	require.NoError(t, c.Put(ctx, r3))

	assert.Equal(t, "s1#tenant-1", r1.Key)
	assert.Equal(t, "s1#tenant-2", r2.Key)
	assert.Equal(t, "s1", r3.Key)

	got, err := c.Get(ctx, "surveys", "tenant-2", "s1")
	require.NoError(t, err)
	assert.Equal(t, "tenant-2", got.TenantID)

	_, err = c.Get(ctx, "surveys", "tenant-3", "s1")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestPut_RepeatedIsUpsert(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, rec("s1", "t1", models.StatusQueued)))
	require.NoError(t, c.Put(ctx, rec("s1", "t1", models.StatusSynced)))
	require.NoError(t, c.PutMany(ctx, []*models.Row{rec("s1", "t1", models.StatusSynced), rec("s1", "t1", models.StatusSynced)}))

	list, err := c.List(ctx, "surveys", "t1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.StatusSynced, list[0].SyncStatus)
}

func TestPut_RejectsBadIDs(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	require.ErrorIs(t, c.Put(ctx, rec("", "t1", models.StatusQueued)), common.ErrValidation)
	require.ErrorIs(t, c.Put(ctx, rec("a#b", "t1", models.StatusQueued)), common.ErrValidation)
	require.ErrorIs(t, c.PutMany(ctx, []*models.Row{rec("ok", "t1", models.StatusQueued), rec("a#b", "t1", models.StatusQueued)}), common.ErrValidation)

	list, err := c.List(ctx, "surveys", "t1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestHydration_FlipsOnWrite(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()
	q := Query{Table: "surveys", TenantID: "t1", ID: "s1"}

	assert.False(t, c.Hydrated(q))
	require.NoError(t, c.Put(ctx, rec("s1", "t1", models.StatusSynced)))
	assert.True(t, c.Hydrated(q))

	list := Query{Table: "surveys", TenantID: "t1"}
	assert.False(t, c.Hydrated(list))
	c.MarkHydrated(list)
	assert.True(t, c.Hydrated(list))
	assert.False(t, c.Hydrated(Query{Table: "surveys", TenantID: "t2"}))

	_, err := c.Clear(ctx, "surveys", "t1")
	require.NoError(t, err)
	assert.False(t, c.Hydrated(q))
	assert.False(t, c.Hydrated(list))
}

func TestList_SkipsTombstones(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.PutMany(ctx, []*models.Row{
		rec("a", "t1", models.StatusSynced),
		rec("b", "t1", models.StatusPendingDelete),
		rec("c", "t1", models.StatusQueued),
	}))

	list, err := c.List(ctx, "surveys", "t1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "c", list[1].ID)

	pending, err := c.Pending(ctx, "surveys", "t1")
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "b", pending[0].ID)
	assert.Equal(t, "c", pending[1].ID)
}

func TestSubscribe_NotifiesAfterWrite(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	var (
		mu      sync.Mutex
		changes []Change
	)
	unsubscribe := c.Subscribe(func(ch Change) {
		// the row must already be readable when the change is delivered
		if ch.Kind == ChangePut {
			_, err := c.Get(ctx, ch.Table, ch.TenantID, ch.ID)
			assert.NoError(t, err)
		}
		mu.Lock()
		changes = append(changes, ch)
		mu.Unlock()
	})

	require.NoError(t, c.Put(ctx, rec("s1", "t1", models.StatusQueued)))
	require.NoError(t, c.Delete(ctx, "surveys", "t1", "s1"))

	unsubscribe()
	unsubscribe()
	require.NoError(t, c.Put(ctx, rec("s2", "t1", models.StatusQueued)))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Change{
		{Table: "surveys", TenantID: "t1", ID: "s1", Kind: ChangePut},
		{Table: "surveys", TenantID: "t1", ID: "s1", Kind: ChangeDelete},
	}, changes)
}

func TestClear_OnlyTouchesOneTenant(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.PutMany(ctx, []*models.Row{
		rec("a", "t1", models.StatusSynced),
		rec("b", "t1", models.StatusSynced),
		rec("a", "t2", models.StatusSynced),
	}))

	n, err := c.Clear(ctx, "surveys", "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	rest, err := c.List(ctx, "surveys", "t2")
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}
