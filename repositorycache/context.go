package repositorycache

import (
	"context"
)

type bypassCacheContextKey struct{}

// WithoutCache marks ctx so reads skip the cache and go to the backing store.
// Results read this way are never written to the cache.
func WithoutCache(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, bypassCacheContextKey{}, true)
}

func cacheBypassed(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	bypass, _ := ctx.Value(bypassCacheContextKey{}).(bool)
	return bypass
}
