// Package models defines the client-side record envelope and the metadata
// every cached entity carries.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// SyncStatus is the lifecycle state of a locally cached record.
//
//	draft|queued --push--> synced --edit--> queued
//	synced --remove--> pending_delete --push--> (removed)
//	push failure --> failed (retried on the next push)
type SyncStatus string

const (
	StatusSynced        SyncStatus = "synced"
	StatusDraft         SyncStatus = "draft"
	StatusQueued        SyncStatus = "queued"
	StatusFailed        SyncStatus = "failed"
	StatusPendingDelete SyncStatus = "pending_delete"
	StatusArchived      SyncStatus = "archived"
)

// Valid reports whether s is one of the known statuses.
func (s SyncStatus) Valid() bool {
	switch s {
	case StatusSynced, StatusDraft, StatusQueued, StatusFailed, StatusPendingDelete, StatusArchived:
		return true
	}
	return false
}

// Local reports whether the record holds changes the server has not seen.
func (s SyncStatus) Local() bool {
	switch s {
	case StatusDraft, StatusQueued, StatusFailed, StatusPendingDelete:
		return true
	}
	return false
}

// Meta is embedded by every entity type.
type Meta struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenantId,omitempty"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	SyncStatus SyncStatus `json:"syncStatus"`
	Deleted    bool       `json:"deleted,omitempty"`
}

func (m Meta) GetMeta() Meta { return m }

func (m *Meta) SetMeta(v Meta) { *m = v }

// Entity is satisfied by *T for any struct T embedding Meta.
type Entity[T any] interface {
	*T
	GetMeta() Meta
	SetMeta(Meta)
}

// Row is the storage envelope for one record of one table.
// Data holds the JSON of the whole entity, Meta included.
type Row struct {
	Table      string
	Key        string
	ID         string
	TenantID   string
	UpdatedAt  time.Time
	SyncStatus SyncStatus
	Deleted    bool
	Data       json.RawMessage
}

// Meta returns the metadata columns of r.
func (r *Row) Meta() Meta {
	return Meta{ID: r.ID, TenantID: r.TenantID, UpdatedAt: r.UpdatedAt, SyncStatus: r.SyncStatus, Deleted: r.Deleted}
}

// Encode builds a Row for table from v. The key is left for the cache to fill.
func Encode[T any, P Entity[T]](table string, v *T) (*Row, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s record: %w", table, err)
	}
	m := P(v).GetMeta()
	return &Row{
		Table:      table,
		ID:         m.ID,
		TenantID:   m.TenantID,
		UpdatedAt:  m.UpdatedAt,
		SyncStatus: m.SyncStatus,
		Deleted:    m.Deleted,
		Data:       data,
	}, nil
}

// Decode returns a fresh value from r. The row's metadata columns win over
// whatever the JSON payload says, since the columns are what sync updates.
func Decode[T any, P Entity[T]](r *Row) (*T, error) {
	v := new(T)
	if len(r.Data) > 0 {
		if err := json.Unmarshal(r.Data, v); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", r.Table, r.ID, err)
		}
	}
	P(v).SetMeta(r.Meta())
	return v, nil
}
