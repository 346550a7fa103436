// Package models holds the server-side persistence types.
package models

import (
	"encoding/json"
	"time"
)

// Record is one stored row of a logical table. Tombstones keep their row
// with Deleted set so delta pulls can propagate removals.
type Record struct {
	Table     string
	TenantID  string
	ID        string
	UpdatedAt time.Time
	Deleted   bool
	Data      json.RawMessage
}
