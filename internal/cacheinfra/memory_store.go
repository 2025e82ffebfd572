package cacheinfra

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/goliatone/go-object-cache/cache"
	"github.com/viccon/sturdyc"
)

// MemoryConfig holds the configuration of the in-process hash store.
type MemoryConfig struct {
	// Capacity defines the maximum number of records the store keeps.
	// Must be greater than 0.
	Capacity int `yaml:"capacity"`

	// NumShards determines the number of sturdyc shards.
	// Must be greater than 0. Default: 256
	NumShards int `yaml:"num_shards"`

	// TTL is the longest lifetime sturdyc keeps an entry. Per-record expiry
	// is tracked by the store itself, so TTL must cover the longest record TTL.
	TTL time.Duration `yaml:"ttl"`

	// EvictionPercentage specifies what percentage of entries to evict
	// when the store reaches its capacity. Must be between 1-100.
	EvictionPercentage int `yaml:"eviction_percentage"`

	// EvictionInterval sets how often sturdyc drops expired entries.
	// Zero value uses the default interval.
	EvictionInterval time.Duration `yaml:"eviction_interval"`

	// Stripes is the number of locks serializing writes per key.
	Stripes int `yaml:"stripes"`
}

// DefaultMemoryConfig returns a MemoryConfig with sensible defaults.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		Capacity:           10000,
		NumShards:          256,
		TTL:                24 * time.Hour,
		EvictionPercentage: 10,
		Stripes:            256,
	}
}

// ToSturdycOptions maps the optional settings to sturdyc options.
func (c MemoryConfig) ToSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option
	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}
	return options
}

// Validate checks if the configuration values are valid.
func (c MemoryConfig) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}
	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}
	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}
	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}
	if c.EvictionInterval < 0 {
		return &ConfigError{Field: "EvictionInterval", Message: "must be non-negative"}
	}
	if c.Stripes <= 0 {
		return &ConfigError{Field: "Stripes", Message: "must be greater than 0"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

type memEntry struct {
	fields   cache.Record
	expireAt time.Time
}

// stripe serializes mutations of the keys hashed to it. filling tracks the
// keys with a load in flight, so Fill only sees writes to its own key.
type stripe struct {
	mu      sync.Mutex
	filling map[string]*pendingFill
}

// pendingFill counts writes to one key while loads for it are running.
type pendingFill struct {
	writes  uint64
	waiters int
}

func (st *stripe) watch(key string) *pendingFill {
	p, ok := st.filling[key]
	if !ok {
		p = &pendingFill{}
		st.filling[key] = p
	}
	p.waiters++
	return p
}

func (st *stripe) unwatch(key string, p *pendingFill) {
	p.waiters--
	if p.waiters == 0 {
		delete(st.filling, key)
	}
}

// touch records a content write to key for any fill waiting on it.
func (st *stripe) touch(key string) {
	if p, ok := st.filling[key]; ok {
		p.writes++
	}
}

// MemoryStore is a cache.HashStore kept in process memory on a sturdyc client.
// It backs single-node deployments and tests.
type MemoryStore struct {
	client  *sturdyc.Client[memEntry]
	stripes []stripe
	now     func() time.Time
}

var _ cache.HashStore = (*MemoryStore)(nil)

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock replaces time.Now for record expiry.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore validates cfg and creates the sturdyc client behind the store.
func NewMemoryStore(cfg MemoryConfig, opts ...MemoryOption) (*MemoryStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &MemoryStore{
		client: sturdyc.New[memEntry](
			cfg.Capacity,
			cfg.NumShards,
			cfg.TTL,
			cfg.EvictionPercentage,
			cfg.ToSturdycOptions()...,
		),
		stripes: make([]stripe, cfg.Stripes),
		now:     time.Now,
	}
	for i := range s.stripes {
		s.stripes[i].filling = make(map[string]*pendingFill)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *MemoryStore) stripeFor(key string) *stripe {
	return &s.stripes[xxhash.Sum64String(key)%uint64(len(s.stripes))]
}

// live returns the unexpired entry at key. Callers hold the key's stripe.
func (s *MemoryStore) live(key string) (memEntry, bool) {
	e, ok := s.client.Get(key)
	if !ok {
		return memEntry{}, false
	}
	if !s.now().Before(e.expireAt) {
		s.client.Delete(key)
		return memEntry{}, false
	}
	return e, true
}

func (s *MemoryStore) put(key string, rec cache.Record, ttl time.Duration) {
	s.client.Set(key, memEntry{fields: rec.Clone(), expireAt: s.now().Add(ttl)})
}

// Fetch implements cache.HashStore.
func (s *MemoryStore) Fetch(ctx context.Context, key string) (cache.Record, time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	st := s.stripeFor(key)
	st.mu.Lock()
	defer st.mu.Unlock()

	e, ok := s.live(key)
	if !ok {
		return cache.Record{}, -2, nil
	}
	return e.fields.Clone(), e.expireAt.Sub(s.now()), nil
}

// Fill implements cache.HashStore. The load runs outside the stripe lock; a
// write to key while it runs is treated as a conflict.
func (s *MemoryStore) Fill(ctx context.Context, key string, fn cache.FillFunc) (cache.Record, cache.FillOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	st := s.stripeFor(key)

	st.mu.Lock()
	if e, ok := s.live(key); ok {
		st.mu.Unlock()
		return e.fields.Clone(), cache.FillExisting, nil
	}
	pending := st.watch(key)
	writes := pending.writes
	st.mu.Unlock()

	rec, ttl, err := fn(ctx)

	st.mu.Lock()
	defer st.mu.Unlock()
	st.unwatch(key, pending)

	if err != nil {
		return nil, 0, err
	}
	if pending.writes != writes {
		if e, ok := s.live(key); ok {
			return e.fields.Clone(), cache.FillExisting, nil
		}
		return rec, cache.FillConflict, nil
	}
	s.put(key, rec, ttl)
	st.touch(key)
	return rec, cache.FillStored, nil
}

// Replace implements cache.HashStore.
func (s *MemoryStore) Replace(ctx context.Context, key string, rec cache.Record, ttl time.Duration, version cache.Version) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	st := s.stripeFor(key)
	st.mu.Lock()
	defer st.mu.Unlock()

	if version.Field != "" {
		if e, ok := s.live(key); ok {
			if cur, err := strconv.ParseInt(e.fields[version.Field], 10, 64); err == nil && cur > version.Value {
				return false, nil
			}
		}
	}

	s.client.Delete(key)
	s.put(key, rec, ttl)
	st.touch(key)
	return true, nil
}

// Refresh implements cache.HashStore.
func (s *MemoryStore) Refresh(ctx context.Context, key string, ttl, lowWater time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	st := s.stripeFor(key)
	st.mu.Lock()
	defer st.mu.Unlock()

	e, ok := s.live(key)
	if !ok || e.fields.IsNull() {
		return false, nil
	}
	if e.expireAt.Sub(s.now()) >= lowWater {
		return false, nil
	}
	s.put(key, e.fields, ttl)
	return true, nil
}

// Delete implements cache.HashStore.
func (s *MemoryStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var n int64
	for _, key := range keys {
		st := s.stripeFor(key)
		st.mu.Lock()
		if _, ok := s.live(key); ok {
			n++
		}
		s.client.Delete(key)
		st.touch(key)
		st.mu.Unlock()
	}
	return n, nil
}

// DeletePrefix implements cache.HashStore.
func (s *MemoryStore) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	var matched []string
	for _, key := range s.client.ScanKeys() {
		if strings.HasPrefix(key, prefix) {
			matched = append(matched, key)
		}
	}
	return s.Delete(ctx, matched...)
}

// Size returns the number of entries held, expired ones included until swept.
func (s *MemoryStore) Size() int {
	return s.client.Size()
}
