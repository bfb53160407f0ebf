// Package store provides SQLite-backed durable storage for the persisted
// binding registry.
//
// Every value kept alive by a keep-alive command is recorded with the
// remote net and key that locate it, so tooling can list what is still
// running and which expression produced it.
//
// # Patterns
//
// Idempotent writes:
//   - PutBinding uses INSERT ... ON CONFLICT(key) DO NOTHING
//   - ReleaseBinding only sets released_seq once
//
// Deterministic reads:
//   - Listings are ordered by created_seq ASC, key ASC COLLATE BINARY
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout: Wait for locks up to 5 seconds (WithBusyTimeout)
//
// The bolt subpackage implements the same registry on bbolt.
package store
