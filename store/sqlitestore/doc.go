// Package sqlitestore provides a durable store.Store implementation on
// SQLite (modernc.org/sqlite, cgo-free). Feature vectors are stored as
// little-endian float32 BLOBs in one column per feature kind; the atomic
// "all vectors of one extraction pass" update is a single transaction.
// Nearest performs an exact scan over rows whose requested column is
// non-NULL and ranks candidates in Go.
package sqlitestore
