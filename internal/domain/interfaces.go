package domain

import (
	"context"
	"encoding/json"
)

// MemoryCache is the process-local layer (L1). Timestamps are part of the
// contract: every stored record carries the WrittenAt used for freshness.
type MemoryCache interface {
	// Get returns the stored record, or false when absent. No side effects.
	Get(category Category, key NaturalKey) (*Record, bool)

	// Put stores rec unless a record with a newer WrittenAt is already
	// present. It reports whether the write was applied.
	Put(category Category, key NaturalKey, rec Record) bool

	// IsFresh reports whether a record is present and within its L1 TTL.
	IsFresh(category Category, key NaturalKey) bool

	// Delete drops the entry, if any.
	Delete(category Category, key NaturalKey)
}

// PersistentRepository is the durable layer (L2). Get returns (nil, nil) on
// a miss; every failure to consult the store wraps ErrRepositoryUnavailable.
type PersistentRepository interface {
	Get(ctx context.Context, category Category, key NaturalKey) (*Record, error)

	// Upsert inserts or replaces the single row for (category, key), never
	// lowering the stored WrittenAt.
	Upsert(ctx context.Context, rec Record) error
}

// RemoteSource is the authoritative layer (L3). Failures are *RemoteError
// values; ErrNotFound is the authoritative absence.
type RemoteSource interface {
	Fetch(ctx context.Context, category Category, key NaturalKey) (json.RawMessage, error)
}

// RemoteSourceFunc adapts a function to RemoteSource.
type RemoteSourceFunc func(ctx context.Context, category Category, key NaturalKey) (json.RawMessage, error)

// Fetch calls f.
func (f RemoteSourceFunc) Fetch(ctx context.Context, category Category, key NaturalKey) (json.RawMessage, error) {
	return f(ctx, category, key)
}
