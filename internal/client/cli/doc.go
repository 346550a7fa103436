// Package cli provides the interactive fieldkeeper command-line client.
//
// It wires configuration, the local SQLite cache, the sync coordinator, the
// entity store and the survey registry behind a small REPL. A background
// loop pushes local edits and pulls deltas for the configured tables while a
// watcher tracks whether the server is reachable.
//
// Commands:
//   - tenant [id|-]                     show or switch the active tenant
//   - sync / push / status <table>      drive and inspect synchronization
//   - list <table>, show <table> <id>   read through the store
//   - clear <table>                     drop cached rows and force a full pull
//   - adddef, addcond, phrases          provisional catalog items of a survey
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
