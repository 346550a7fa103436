// Package config loads runtime configuration for the fieldkeeper CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file (see parseJson) selected via flags: -c or -config.
//  3. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   address:port of the backend gRPC endpoint
//	-f string   path of the local SQLite cache
//	-n string   tenant id (empty for personal mode)
//	-k string   access token
//	-i int      background sync interval (seconds, 0 disables)
//	-l string   comma-separated tables kept in sync
//
// # JSON schema
//
// Intervals use timex.Duration, so values can be strings like "30s" or
// integer nanoseconds:
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:50051",
//	  "database_path": "fieldkeeper.db",
//	  "tenant_id": "tenant-1",
//	  "access_token": "eyJ...",
//	  "sync_interval": "30s",
//	  "tables": ["surveys", "elements"]
//	}
//
// This package does not read environment variables.
package config
