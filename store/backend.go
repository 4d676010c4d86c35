package store

import (
	"context"
	"fmt"
)

// Record keys. The store keeps three distinct logical records: the main
// session blob, the metadata record, and the backup slot family. Keys never
// interleave across namespaces.
const (
	keySession  = "session"
	keyMetadata = "session_metadata"
)

// backupKey returns the key for backup slot i (backup_0 is the most recent).
func backupKey(i int) string {
	return fmt.Sprintf("session_backup_%d", i)
}

// Backend is the raw record storage a Store writes through. Implementations
// must be safe for use by a single Store; the Store serializes access.
//
// Get returns ErrRecordNotFound when the key has no record. Put overwrites.
// Delete of a missing key is a no-op.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error

	// UsedBytes reports the total size of all stored records.
	UsedBytes(ctx context.Context) (int64, error)

	// Close releases backend resources.
	Close() error
}
