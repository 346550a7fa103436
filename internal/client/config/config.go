package config

import "time"

// Config holds runtime settings for the fieldkeeper CLI.
//
// Fields:
//   - ServerEndpointAddr: host:port of the backend gRPC endpoint.
//   - DatabasePath: SQLite file holding the local cache.
//   - TenantID: tenant selected at startup; empty means personal mode.
//   - AccessToken: bearer token sent with every call.
//   - SyncInterval: period of the background push+sync loop; zero disables it.
//   - SyncOverlap: how far before the watermark delta pulls start. It must
//     cover the longest server push transaction plus client/server clock skew.
//   - Tables: tables the background loop keeps in sync.
type Config struct {
	ServerEndpointAddr string
	DatabasePath       string
	TenantID           string
	AccessToken        string
	SyncInterval       time.Duration
	SyncOverlap        time.Duration
	Tables             []string
}

// DefaultTables are the catalog and document tables of a survey workspace.
var DefaultTables = []string{"surveys", "sections", "elements", "components", "phrases"}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.DatabasePath = "fieldkeeper.db"
	c.TenantID = ""
	c.AccessToken = ""
	c.SyncInterval = 30 * time.Second
	c.SyncOverlap = 5 * time.Second
	c.Tables = append([]string(nil), DefaultTables...)
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
