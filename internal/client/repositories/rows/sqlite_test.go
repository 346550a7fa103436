package rows

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/dmitrijs2005/fieldkeeper/internal/client/models"
	"github.com/dmitrijs2005/fieldkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE rows (
  tbl         TEXT NOT NULL,
  key         TEXT NOT NULL,
  id          TEXT NOT NULL,
  tenant_id   TEXT NOT NULL DEFAULT '',
  updated_at  TEXT NOT NULL,
  sync_status TEXT NOT NULL,
  deleted     INTEGER NOT NULL DEFAULT 0,
  data        BLOB,
  PRIMARY KEY (tbl, key)
);`)
	require.NoError(t, err)
	return db
}

var ts = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func row(table, id, tenant string, status models.SyncStatus) *models.Row {
	key := id
	if tenant != "" {
		key = id + "#" + tenant
	}
	return &models.Row{
		Table:      table,
		Key:        key,
		ID:         id,
		TenantID:   tenant,
		UpdatedAt:  ts,
		SyncStatus: status,
		Data:       []byte(`{"id":"` + id + `"}`),
	}
}

func TestPut_InsertAndReplace(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	require.NoError(t, r.Put(ctx, row("surveys", "s1", "t1", models.StatusQueued)))

	got, err := r.Get(ctx, "surveys", "s1#t1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)
	assert.Equal(t, "t1", got.TenantID)
	assert.Equal(t, models.StatusQueued, got.SyncStatus)
	assert.True(t, got.UpdatedAt.Equal(ts))
	assert.JSONEq(t, `{"id":"s1"}`, string(got.Data))

	// same key again: must replace, never fail with a duplicate key
	again := row("surveys", "s1", "t1", models.StatusSynced)
	again.Data = []byte(`{"id":"s1","title":"new"}`)
	again.UpdatedAt = ts.Add(time.Minute)
	require.NoError(t, r.Put(ctx, again))

	got, err = r.Get(ctx, "surveys", "s1#t1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSynced, got.SyncStatus)
	assert.JSONEq(t, `{"id":"s1","title":"new"}`, string(got.Data))
	assert.True(t, got.UpdatedAt.Equal(ts.Add(time.Minute)))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM rows`).Scan(&n))
	assert.Equal(t, 1, n)
}

func TestPut_RequiresTableAndKey(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	err := r.Put(context.Background(), &models.Row{Table: "surveys"})
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestGet_NotFound(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	_, err := r.Get(context.Background(), "surveys", "nope")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestPutMany_SameIDDifferentTenants(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	batch := []*models.Row{
		row("surveys", "s1", "tenant-1", models.StatusSynced),
		row("surveys", "s1", "tenant-2", models.StatusSynced),
		row("surveys", "s1", "", models.StatusSynced),
		row("surveys", "s1", "tenant-1", models.StatusSynced), // duplicate within batch
	}
	require.NoError(t, r.PutMany(ctx, batch))

	t1, err := r.ListByTenant(ctx, "surveys", "tenant-1")
	require.NoError(t, err)
	require.Len(t, t1, 1)
	assert.Equal(t, "s1#tenant-1", t1[0].Key)

	personal, err := r.ListByTenant(ctx, "surveys", "")
	require.NoError(t, err)
	require.Len(t, personal, 1)
	assert.Equal(t, "s1", personal[0].Key)
}

func TestPutMany_RollsBackOnError(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()

	batch := []*models.Row{
		row("surveys", "s1", "t1", models.StatusSynced),
		{Table: "surveys"}, // invalid
	}
	require.Error(t, r.PutMany(ctx, batch))

	list, err := r.ListByTenant(ctx, "surveys", "t1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListByStatus(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.PutMany(ctx, []*models.Row{
		row("surveys", "a", "t1", models.StatusSynced),
		row("surveys", "b", "t1", models.StatusQueued),
		row("surveys", "c", "t1", models.StatusFailed),
		row("surveys", "d", "t2", models.StatusQueued),
		row("elements", "e", "t1", models.StatusQueued),
	}))

	got, err := r.ListByStatus(ctx, "surveys", "t1", models.StatusQueued, models.StatusFailed)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "c", got[1].ID)

	none, err := r.ListByStatus(ctx, "surveys", "t1")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteAndDeleteByTenant(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.PutMany(ctx, []*models.Row{
		row("surveys", "a", "t1", models.StatusSynced),
		row("surveys", "b", "t1", models.StatusSynced),
		row("surveys", "c", "t2", models.StatusSynced),
	}))

	require.NoError(t, r.Delete(ctx, "surveys", "a#t1"))
	require.NoError(t, r.Delete(ctx, "surveys", "a#t1"), "deleting an absent row is not an error")
	_, err := r.Get(ctx, "surveys", "a#t1")
	require.ErrorIs(t, err, common.ErrNotFound)

	n, err := r.DeleteByTenant(ctx, "surveys", "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rest, err := r.ListByTenant(ctx, "surveys", "t2")
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}
