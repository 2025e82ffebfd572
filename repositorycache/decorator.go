package repositorycache

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-object-cache/cache"
	"github.com/goliatone/go-object-cache/store"
)

// ErrInvalidID is returned before any I/O when a ref cannot name a cache key.
var ErrInvalidID = errors.New("repositorycache: invalid id")

// Repository is the backing store contract the decorator wraps.
type Repository[T any] interface {
	GetByID(ctx context.Context, ref store.Ref) (T, error)
	Create(ctx context.Context, record T) (T, error)
	Update(ctx context.Context, record T) (T, error)
	Delete(ctx context.Context, ref store.Ref) error
	AdjustCounter(ctx context.Context, ref store.Ref, column string, delta int64) (T, error)
}

// Interface assertions
var (
	_ Repository[any] = (*store.Repository[any])(nil)
	_ Repository[any] = (*CachedRepository[any])(nil)
)

// Descriptor binds an entity type to its cache layout.
type Descriptor[T any] struct {
	Schema cache.Schema
	Path   cache.KeyPath
	// Fields returns the serialized view of a record.
	Fields func(T) cache.Record
	// RefOf returns the ref of a stored record, ancestors included.
	RefOf func(T) store.Ref
}

// CachedRepository decorates a base repository with per-object cache-aside
// reads and write-through cache replacement.
type CachedRepository[T any] struct {
	base  Repository[T]
	cache *cache.Service
	desc  Descriptor[T]
}

// New creates a new CachedRepository that wraps the base repository with caching.
func New[T any](base Repository[T], service *cache.Service, desc Descriptor[T]) *CachedRepository[T] {
	return &CachedRepository[T]{
		base:  base,
		cache: service,
		desc:  desc,
	}
}

// Descriptor returns the cache layout of T.
func (c *CachedRepository[T]) Descriptor() Descriptor[T] {
	return c.desc
}

// Key renders the cache key for ref.
func (c *CachedRepository[T]) Key(ref store.Ref) (string, error) {
	key, err := c.desc.Path.Key(ref.IDs()...)
	if err != nil {
		return "", errors.Mark(err, ErrInvalidID)
	}
	return key, nil
}

// Get returns the cached view of the entity at ref. Missing entities yield the
// schema's Null Record. A context from WithoutCache reads the store directly.
func (c *CachedRepository[T]) Get(ctx context.Context, ref store.Ref) (cache.Record, error) {
	key, err := c.Key(ref)
	if err != nil {
		return nil, err
	}
	if cacheBypassed(ctx) {
		return c.cache.RetrieveUncached(ctx, c.desc.Schema, c.loader(ref))
	}
	return c.cache.Retrieve(ctx, key, c.desc.Schema, c.loader(ref))
}

func (c *CachedRepository[T]) loader(ref store.Ref) cache.LoadFunc {
	return func(ctx context.Context) (cache.Record, error) {
		record, err := c.base.GetByID(ctx, ref)
		if errors.Is(err, store.ErrNotFound) {
			return nil, cache.ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return c.desc.Fields(record), nil
	}
}

// GetByID passes through to the base repository.
func (c *CachedRepository[T]) GetByID(ctx context.Context, ref store.Ref) (T, error) {
	return c.base.GetByID(ctx, ref)
}

// Create stores record and caches the committed row. On a cache failure the
// created record is returned together with the error.
func (c *CachedRepository[T]) Create(ctx context.Context, record T) (T, error) {
	created, err := c.base.Create(ctx, record)
	if err != nil {
		return created, err
	}
	return created, c.Refresh(ctx, created)
}

// Update writes record and replaces its cached view. On a cache failure the
// updated record is returned together with the error.
func (c *CachedRepository[T]) Update(ctx context.Context, record T) (T, error) {
	updated, err := c.base.Update(ctx, record)
	if err != nil {
		return updated, err
	}
	return updated, c.Refresh(ctx, updated)
}

// AdjustCounter changes a counter column and replaces the cached view.
func (c *CachedRepository[T]) AdjustCounter(ctx context.Context, ref store.Ref, column string, delta int64) (T, error) {
	if _, err := c.Key(ref); err != nil {
		var zero T
		return zero, err
	}
	updated, err := c.base.AdjustCounter(ctx, ref, column, delta)
	if err != nil {
		return updated, err
	}
	return updated, c.Refresh(ctx, updated)
}

// Delete removes the entity and drops its cached view along with every
// descendant key.
func (c *CachedRepository[T]) Delete(ctx context.Context, ref store.Ref) error {
	if _, err := c.Key(ref); err != nil {
		return err
	}
	if err := c.base.Delete(ctx, ref); err != nil {
		return err
	}
	return c.Invalidate(ctx, ref)
}

// Refresh replaces the cached view with record, which must be a committed row.
func (c *CachedRepository[T]) Refresh(ctx context.Context, record T) error {
	key, err := c.Key(c.desc.RefOf(record))
	if err != nil {
		return err
	}
	return c.cache.Update(ctx, key, c.desc.Schema, c.desc.Fields(record))
}

// Invalidate drops the cached view at ref and every descendant key.
func (c *CachedRepository[T]) Invalidate(ctx context.Context, ref store.Ref) error {
	key, err := c.Key(ref)
	if err != nil {
		return err
	}
	if err := c.cache.Invalidate(ctx, key); err != nil {
		return err
	}
	return c.cache.InvalidatePrefix(ctx, cache.ChildPrefix(key))
}
