// Package cache implements a per-object cache-aside layer over a hash store.
//
// # Overview
//
// Every entity is cached as one hash whose fields are the entity's read view,
// declared up front with a Schema:
//
//	var courseSchema = cache.MustSchema("course",
//		cache.Readable("id"),
//		cache.Readable("name"),
//		cache.Readable("fav_nums"),
//		cache.Readable("version"),
//	).Versioned("version")
//
// Keys are colon-joined and fixed per type. A KeyPath renders nested keys with
// ancestor ids first:
//
//	path := cache.NewKeyPath("courses", "lessons")
//	key, err := path.Key(7, 3) // "courses:7:lessons:3"
//
// # Reads
//
// Service.Retrieve serves the cached hash when present. On a miss it calls the
// LoadFunc once, stores the result for Config.ExistsTTL and returns it. When the
// LoadFunc reports ErrNotFound, a Null Record (every field "null") is stored for
// Config.NullTTL instead, so lookups for missing ids stop reaching the store
// until it expires.
//
// A hit on a live record whose TTL dropped below Config.LowWater is extended
// back to ExistsTTL. Null Records are never extended.
//
// Concurrent misses for one key inside a process share a single load, and the
// population is compare-and-set: if a writer touches the key while the load is
// in flight, the reader's snapshot is returned but not cached.
//
// # Writes
//
// After the backing store commits, Service.Update replaces the whole hash and
// resets its TTL. For versioned schemas a write older than the cached record
// is skipped, so out-of-order writers cannot leave an older row cached.
//
// # Failures
//
// ErrNotFound never reaches callers of Retrieve. Other load errors and cache
// errors propagate. A cache timeout on the read path falls back to the
// backing store; on the write path it is returned.
//
// # See Also
//
// HashStore implementations live in internal/cacheinfra (Redis and an
// in-process sturdyc store). The repositorycache package binds schemas, keys
// and repositories together.
package cache
