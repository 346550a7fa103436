// Package client contains the client-side transport and local database bootstrap.
//
// # Overview
//
// The package provides:
//  1. The remote query contract (see the Client interface): List a table for
//     a tenant with an optional delta filter, Push local changes, and Ping.
//  2. A gRPC implementation (see GRPCClient) that injects the access token via
//     an interceptor and maps gRPC status codes to the sentinel errors in
//     internal/common.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations): an SQLite
//     database with embedded goose migrations.
//
// # Error Handling
//
// Transport failures surface as common.ErrUnavailable, auth failures as
// common.ErrUnauthorized or common.ErrTenantDenied; callers match with errors.Is.
package client
