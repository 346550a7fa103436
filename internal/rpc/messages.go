// Package rpc defines the records service shared by client and server.
//
// Messages travel as google.protobuf.Struct. The Go types in this package are
// converted to and from Struct through their JSON form, so the field names on
// the wire are the json tags below.
package rpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Range is a comparison on one field. Only "strictly greater" is supported:
// a record stamped exactly at the bound is excluded.
type Range struct {
	GT string `json:"gt"`
}

// Filter restricts a list call. A nil filter means a full pull.
type Filter struct {
	UpdatedAt *Range `json:"updatedAt,omitempty"`
}

// DeltaFilter returns the filter for records changed after since, or nil when
// since is empty.
func DeltaFilter(since string) *Filter {
	if since == "" {
		return nil
	}
	return &Filter{UpdatedAt: &Range{GT: since}}
}

// ListOptions are the parameters of a list call besides the table.
type ListOptions struct {
	TenantID string
	Filter   *Filter
}

// Record is one row of a table on the wire. Data is the entity JSON.
type Record struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenantId,omitempty"`
	UpdatedAt string          `json:"updatedAt"`
	Deleted   bool            `json:"deleted,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type ListRequest struct {
	Table    string  `json:"table"`
	TenantID string  `json:"tenantId,omitempty"`
	Filter   *Filter `json:"filter,omitempty"`
}

type ListResponse struct {
	Records []Record `json:"records"`
}

type PushRequest struct {
	Table    string   `json:"table"`
	TenantID string   `json:"tenantId,omitempty"`
	Records  []Record `json:"records"`
}

// PushResponse echoes the stored records with server-assigned timestamps.
type PushResponse struct {
	Records []Record `json:"records"`
}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}

// Marshal converts v to a Struct through its JSON encoding.
func Marshal(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("rpc marshal: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("rpc marshal: %w", err)
	}
	return s, nil
}

// Unmarshal fills v from s.
func Unmarshal(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	b, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("rpc unmarshal: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("rpc unmarshal: %w", err)
	}
	return nil
}
