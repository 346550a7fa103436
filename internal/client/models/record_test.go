package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	Meta
	Title string   `json:"title"`
	Tags  []string `json:"tags,omitempty"`
}

func TestEncodeDecode_PreservesFieldsAndMeta(t *testing.T) {
	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	in := &note{
		Meta:  Meta{ID: "n1", TenantID: "tenant-1", UpdatedAt: ts, SyncStatus: StatusQueued},
		Title: "roof",
		Tags:  []string{"a"},
	}

	row, err := Encode[note]("notes", in)
	require.NoError(t, err)
	assert.Equal(t, "notes", row.Table)
	assert.Equal(t, "n1", row.ID)
	assert.Equal(t, "tenant-1", row.TenantID)
	assert.Equal(t, StatusQueued, row.SyncStatus)
	assert.True(t, row.UpdatedAt.Equal(ts))

	out, err := Decode[note](row)
	require.NoError(t, err)
	assert.Equal(t, in.Title, out.Title)
	assert.Equal(t, in.Tags, out.Tags)
	assert.Equal(t, in.Meta.ID, out.Meta.ID)

	out.Tags[0] = "changed"
	assert.Equal(t, "a", in.Tags[0], "decode must return an independent copy")
}

func TestDecode_ColumnsOverridePayload(t *testing.T) {
	row := &Row{
		Table:      "notes",
		ID:         "n1",
		SyncStatus: StatusSynced,
		Data:       []byte(`{"id":"n1","syncStatus":"queued","title":"x"}`),
	}
	out, err := Decode[note](row)
	require.NoError(t, err)
	assert.Equal(t, StatusSynced, out.SyncStatus)
	assert.Equal(t, "x", out.Title)
}

func TestDecode_BadJSON(t *testing.T) {
	_, err := Decode[note](&Row{Table: "notes", ID: "n1", Data: []byte(`{`)})
	require.Error(t, err)
}

func TestSyncStatus(t *testing.T) {
	assert.True(t, StatusPendingDelete.Valid())
	assert.False(t, SyncStatus("gone").Valid())

	assert.True(t, StatusQueued.Local())
	assert.True(t, StatusFailed.Local())
	assert.False(t, StatusSynced.Local())
	assert.False(t, StatusArchived.Local())
}
