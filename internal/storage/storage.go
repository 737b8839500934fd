// Package storage persists pool records. A commit writes every record of one
// operation or none of them.
package storage

import "context"

// Record keys.
const (
	KeyConfig = "config"
	KeyCache  = "er_cache"
	KeyState  = "pool_state"
	KeyLedger = "ledger"
)

// Store is a key/value store of JSON-encoded records.
type Store interface {
	// Load decodes the record at key into dst and reports whether it exists.
	Load(ctx context.Context, key string, dst any) (bool, error)
	// Commit writes all records atomically.
	Commit(ctx context.Context, writes map[string]any) error
}
