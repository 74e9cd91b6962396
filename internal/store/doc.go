// Package store persists saved games.
//
// A save holds a world's state snapshot and its full trigger history. There
// is at most one save per world id; saving again replaces it.
//
// # Payload Format
//
// Saves are stored as RFC 8785 canonical JSON together with a SHA-256
// content hash (ir.SaveHash). Load recomputes the hash and rejects payloads
// that do not match with ErrCorrupt. A save written by a different
// ir.SaveVersion is still returned; the mismatch is logged.
//
// # Backends
//
//   - Store: SQLite via mattn/go-sqlite3 (this package)
//   - redisstore.Store: Redis with optional expiry
//
// Both implement GameStore and share EncodeSave/DecodeSave.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
