// Package client is the client side of the Remote Gateway.
//
// # Overview
//
// The package provides:
//  1. The Client interface the sync engine depends on: auth (Register,
//     GetSalt, Login), Ping, per-user FetchAll/Upsert/Delete, UploadPhoto
//     and the realtime Watch channel.
//  2. HTTPClient, an implementation over the JSON API using resty. It
//     attaches the access token, refreshes it once when the server reports
//     it expired, and maps HTTP status codes to sentinel errors.
//  3. Local persistence bootstrap (InitDatabase, RunMigrations) wiring an
//     SQLite database with embedded goose migrations.
//
// # Error Handling
//
// Callers match failures with errors.Is against ErrUnavailable,
// ErrUnauthorized, ErrForbidden, ErrNotFound, ErrConflict and ErrRejected.
// Only ErrUnavailable is transient (see IsTransient).
package client
