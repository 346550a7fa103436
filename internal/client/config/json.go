package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/fieldkeeper/internal/flagx"
	"github.com/dmitrijs2005/fieldkeeper/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. Pointer
// fields distinguish "absent" from "empty", so a file only overrides what it
// names.
type JsonConfig struct {
	ServerEndpointAddr *string         `json:"server_endpoint_addr"`
	DatabasePath       *string         `json:"database_path"`
	TenantID           *string         `json:"tenant_id"`
	AccessToken        *string         `json:"access_token"`
	SyncInterval       *timex.Duration `json:"sync_interval"`
	SyncOverlap        *timex.Duration `json:"sync_overlap"`
	Tables             []string        `json:"tables"`
}

// parseJson overlays cfg with values loaded from the JSON file named by -c
// or -config. Without the flag nothing is loaded. Read or unmarshal errors
// panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.ConfigFile(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointAddr != nil {
		cfg.ServerEndpointAddr = *jc.ServerEndpointAddr
	}
	if jc.DatabasePath != nil {
		cfg.DatabasePath = *jc.DatabasePath
	}
	if jc.TenantID != nil {
		cfg.TenantID = *jc.TenantID
	}
	if jc.AccessToken != nil {
		cfg.AccessToken = *jc.AccessToken
	}
	if jc.SyncInterval != nil {
		cfg.SyncInterval = jc.SyncInterval.Duration
	}
	if jc.SyncOverlap != nil {
		cfg.SyncOverlap = jc.SyncOverlap.Duration
	}
	if jc.Tables != nil {
		cfg.Tables = jc.Tables
	}
}
