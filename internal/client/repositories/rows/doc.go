// Package rows provides the client-side persistence layer for cached records.
//
// Every table the store knows about shares one SQLite table, rows, keyed by
// (tbl, key) where key is the composite key produced by internal/keys. The
// record itself is kept as JSON in the data column; the metadata columns
// (id, tenant_id, updated_at, sync_status, deleted) are what queries filter on.
//
// All writes are upserts. There is no insert-only path, so a record that is
// re-delivered by a repeated sync or that already exists from an offline
// create never fails with a duplicate-key error.
//
// Typical usage:
//
//	repo := rows.NewSQLiteRepository(db)
//	_ = repo.Put(ctx, row)
//	row, _ := repo.Get(ctx, "surveys", key)
//	list, _ := repo.ListByTenant(ctx, "surveys", "tenant-1")
package rows
