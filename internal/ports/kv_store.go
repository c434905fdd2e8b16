package ports

import "context"

// KVStore is the durable key-value slot the mapping store persists into.
// Adapters may be backed by SQLite, a local file, or anything else that
// stores whole string values under string keys.
type KVStore interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// CompareAndSwap stores value only while the slot still holds old, or is still
	// absent when oldFound is false. swapped is false when another writer changed
	// the slot first.
	CompareAndSwap(ctx context.Context, key string, old string, oldFound bool, value string) (swapped bool, err error)
}
