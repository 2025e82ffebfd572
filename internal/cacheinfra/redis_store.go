package cacheinfra

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-object-cache/cache"
	"github.com/redis/go-redis/v9"
)

// RedisConfig describes the connection used by RedisStore.
type RedisConfig struct {
	Addr         string        `yaml:"addr"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Prefix       string        `yaml:"prefix"`
	PoolSize     int           `yaml:"pool_size"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	ScanCount    int64         `yaml:"scan_count"`
}

// DefaultRedisConfig returns settings for a local Redis.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		PoolSize:     10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		ScanCount:    200,
	}
}

// Validate checks the connection settings.
func (c RedisConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.DB, validation.Min(0)),
		validation.Field(&c.PoolSize, validation.Min(0)),
		validation.Field(&c.ScanCount, validation.Min(int64(0))),
		validation.Field(&c.Prefix, validation.By(func(any) error {
			if strings.ContainsAny(c.Prefix, "*?[]") {
				return errors.New("must not contain glob characters")
			}
			return nil
		})),
	)
}

// Options maps the config to go-redis client options.
func (c RedisConfig) Options() *redis.Options {
	return &redis.Options{
		Addr:         c.Addr,
		Username:     c.Username,
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}

// NewRedisClient validates cfg and opens a client. The caller owns the client.
func NewRedisClient(cfg RedisConfig) (*redis.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "redis config")
	}
	return redis.NewClient(cfg.Options()), nil
}

// replaceScript drops the hash and writes the new fields unless the cached
// version field is newer than ARGV[3].
//
// KEYS[1] key; ARGV[1] ttl ms; ARGV[2] version field or ""; ARGV[3] version;
// ARGV[4..] field/value pairs.
var replaceScript = redis.NewScript(`
if ARGV[2] ~= "" then
	local cur = tonumber(redis.call("HGET", KEYS[1], ARGV[2]))
	if cur and cur > tonumber(ARGV[3]) then
		return 0
	end
end
redis.call("DEL", KEYS[1])
redis.call("HSET", KEYS[1], unpack(ARGV, 4))
redis.call("PEXPIRE", KEYS[1], ARGV[1])
return 1
`)

// refreshScript extends a live, non-null hash below the low-water mark.
//
// KEYS[1] key; ARGV[1] ttl ms; ARGV[2] low-water ms; ARGV[3] null marker.
var refreshScript = redis.NewScript(`
local vals = redis.call("HVALS", KEYS[1])
if #vals == 0 then
	return 0
end
local null = true
for _, v in ipairs(vals) do
	if v ~= ARGV[3] then
		null = false
		break
	end
end
if null then
	return 0
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl >= 0 and ttl < tonumber(ARGV[2]) then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
	return 1
end
return 0
`)

// RedisStore is a cache.HashStore with one Redis hash per key.
// The caller owns the redis.Client lifecycle.
type RedisStore struct {
	client    *redis.Client
	prefix    string
	scanCount int64
}

var _ cache.HashStore = (*RedisStore)(nil)

// NewRedisStore returns a store on client. Keys are namespaced under prefix
// when it is not empty.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, scanCount: 200}
}

// WithScanCount sets the COUNT hint of prefix scans.
func (s *RedisStore) WithScanCount(n int64) *RedisStore {
	if n > 0 {
		s.scanCount = n
	}
	return s
}

func (s *RedisStore) prefixKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

// Fetch implements cache.HashStore.
func (s *RedisStore) Fetch(ctx context.Context, key string) (cache.Record, time.Duration, error) {
	k := s.prefixKey(key)
	pipe := s.client.Pipeline()
	all := pipe.HGetAll(ctx, k)
	ttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, 0, err
	}
	return cache.Record(all.Val()), ttl.Val(), nil
}

// Fill implements cache.HashStore with WATCH/MULTI. A write to the key while
// fn runs aborts the transaction.
func (s *RedisStore) Fill(ctx context.Context, key string, fn cache.FillFunc) (cache.Record, cache.FillOutcome, error) {
	k := s.prefixKey(key)

	var (
		rec     cache.Record
		outcome cache.FillOutcome
	)
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		existing, err := tx.HGetAll(ctx, k).Result()
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			rec, outcome = existing, cache.FillExisting
			return nil
		}

		loaded, ttl, err := fn(ctx)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, k, loaded.Pairs()...)
			pipe.PExpire(ctx, k, ttl)
			return nil
		})
		if err == redis.TxFailedErr {
			rec, outcome = loaded, cache.FillConflict
			return nil
		}
		if err != nil {
			return err
		}
		rec, outcome = loaded, cache.FillStored
		return nil
	}, k)
	if err != nil {
		return nil, 0, err
	}

	if outcome == cache.FillConflict {
		current, err := s.client.HGetAll(ctx, k).Result()
		if err == nil && len(current) > 0 {
			return current, cache.FillExisting, nil
		}
	}
	return rec, outcome, nil
}

// Replace implements cache.HashStore.
func (s *RedisStore) Replace(ctx context.Context, key string, rec cache.Record, ttl time.Duration, version cache.Version) (bool, error) {
	if len(rec) == 0 {
		return false, errors.Newf("replace %s: empty record", key)
	}
	args := make([]any, 0, 3+2*len(rec))
	args = append(args, ttl.Milliseconds(), version.Field, version.Value)
	args = append(args, rec.Pairs()...)

	n, err := replaceScript.Run(ctx, s.client, []string{s.prefixKey(key)}, args...).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Refresh implements cache.HashStore.
func (s *RedisStore) Refresh(ctx context.Context, key string, ttl, lowWater time.Duration) (bool, error) {
	n, err := refreshScript.Run(ctx, s.client, []string{s.prefixKey(key)},
		ttl.Milliseconds(), lowWater.Milliseconds(), cache.NullValue).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Delete implements cache.HashStore.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	prefixed := make([]string, len(keys))
	for i, key := range keys {
		prefixed[i] = s.prefixKey(key)
	}
	return s.client.Del(ctx, prefixed...).Result()
}

// DeletePrefix implements cache.HashStore by scanning for matching keys.
func (s *RedisStore) DeletePrefix(ctx context.Context, prefix string) (int64, error) {
	pattern := escapeGlob(s.prefixKey(prefix)) + "*"

	var (
		cursor uint64
		total  int64
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, s.scanCount).Result()
		if err != nil {
			return total, err
		}
		if len(keys) > 0 {
			n, err := s.client.Del(ctx, keys...).Result()
			if err != nil {
				return total, err
			}
			total += n
		}
		if next == 0 {
			return total, nil
		}
		cursor = next
	}
}

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globReplacer.Replace(s)
}
