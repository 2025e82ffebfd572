package cache

import (
	"context"
	"time"
)

// FillOutcome reports what HashStore.Fill did with a loaded record.
type FillOutcome int

const (
	// FillStored means the loaded record was written to the cache.
	FillStored FillOutcome = iota
	// FillExisting means another writer populated the key first; the returned
	// record is the cached one and the loader may not have run.
	FillExisting
	// FillConflict means the key changed while the loader ran; the loaded
	// record is returned but was not cached.
	FillConflict
)

func (o FillOutcome) String() string {
	switch o {
	case FillStored:
		return "stored"
	case FillExisting:
		return "existing"
	case FillConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// FillFunc produces the record and TTL to store on a cache miss.
type FillFunc func(ctx context.Context) (Record, time.Duration, error)

// Version guards a replace: the write is skipped when the cached record's
// Field holds a number greater than Value. A zero Version is unconditional.
type Version struct {
	Field string
	Value int64
}

// HashStore is the hash-per-key cache the cache-aside layer runs on. Each
// method must be atomic per key at the store.
type HashStore interface {
	// Fetch returns every field stored at key (empty when absent) and the
	// remaining TTL. A negative TTL means the key has no expiry or is absent.
	Fetch(ctx context.Context, key string) (Record, time.Duration, error)

	// Fill populates an absent key with the record produced by fn, unless the
	// key is written while fn runs. fn runs synchronously, at most once, and
	// not at all when the key is already populated.
	Fill(ctx context.Context, key string, fn FillFunc) (Record, FillOutcome, error)

	// Replace deletes key and writes rec with ttl as one step. It reports
	// false when the version guard rejected the write.
	Replace(ctx context.Context, key string, rec Record, ttl time.Duration, version Version) (bool, error)

	// Refresh resets the TTL of a live, non-null record to ttl when its
	// remaining TTL is below lowWater.
	Refresh(ctx context.Context, key string, ttl, lowWater time.Duration) (bool, error)

	// Delete removes keys and returns how many existed.
	Delete(ctx context.Context, keys ...string) (int64, error)

	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) (int64, error)
}
