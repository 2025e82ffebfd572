// Package config loads process configuration from a YAML file, an optional
// .env file and MXCACHE_* environment variables, in that order.
package config

import (
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-object-cache/cache"
	"github.com/goliatone/go-object-cache/internal/cacheinfra"
	"github.com/goliatone/go-object-cache/store"
	"github.com/joho/godotenv"
	"github.com/xhit/go-str2duration/v2"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MXCACHE_"

// Cache backends.
const (
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config is the process configuration.
type Config struct {
	Backend string                  `yaml:"backend"`
	Cache   cache.Config            `yaml:"cache"`
	Memory  cacheinfra.MemoryConfig `yaml:"memory"`
	Redis   cacheinfra.RedisConfig  `yaml:"redis"`
	Store   StoreConfig             `yaml:"store"`
	Log     LogConfig               `yaml:"log"`
	Metrics MetricsConfig           `yaml:"metrics"`
}

// StoreConfig selects the backing database.
type StoreConfig struct {
	Driver    string        `yaml:"driver"`
	DSN       string        `yaml:"dsn"`
	SlowQuery time.Duration `yaml:"slow_query"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a configuration for a local SQLite file and Redis.
func Default() Config {
	return Config{
		Backend: BackendRedis,
		Cache:   cache.DefaultConfig(),
		Memory:  cacheinfra.DefaultMemoryConfig(),
		Redis:   cacheinfra.DefaultRedisConfig(),
		Store: StoreConfig{
			Driver:    store.DriverSQLite,
			DSN:       "file:mxcache.db?cache=shared",
			SlowQuery: 200 * time.Millisecond,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Validate checks the whole configuration. Only the selected backend is
// validated.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendRedis, BackendMemory)),
		validation.Field(&c.Cache),
		validation.Field(&c.Memory,
			validation.Skip.When(c.Backend != BackendMemory),
			validation.By(func(any) error {
				if c.Memory.TTL < c.Cache.ExistsTTL {
					return errors.Newf("ttl %s is shorter than the cache exists_ttl %s", c.Memory.TTL, c.Cache.ExistsTTL)
				}
				return nil
			}),
		),
		validation.Field(&c.Redis, validation.Skip.When(c.Backend != BackendRedis)),
		validation.Field(&c.Store),
		validation.Field(&c.Log),
	)
}

// Validate checks the driver and DSN.
func (s StoreConfig) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Driver, validation.Required, validation.In(store.DriverSQLite, store.DriverPostgres, "postgres")),
		validation.Field(&s.DSN, validation.Required),
		validation.Field(&s.SlowQuery, validation.Min(time.Duration(0))),
	)
}

// Validate checks the level name.
func (l LogConfig) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Level, validation.By(func(any) error {
			_, err := zapcore.ParseLevel(l.Level)
			return err
		})),
	)
}

// ZapLevel returns the parsed level, info when unset.
func (l LogConfig) ZapLevel() zapcore.Level {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

type options struct {
	envFile string
	lookup  func(string) (string, bool)
}

// Option adjusts Load.
type Option func(*options)

// WithEnvFile sets the dotenv file read before the environment. Defaults to
// ".env"; a missing file is ignored.
func WithEnvFile(path string) Option {
	return func(o *options) { o.envFile = path }
}

// WithLookup replaces os.LookupEnv.
func WithLookup(lookup func(string) (string, bool)) Option {
	return func(o *options) { o.lookup = lookup }
}

// Load builds a Config from the defaults, the YAML file at path (skipped when
// empty), the dotenv file and the environment, then validates it. Values from
// the environment win over the dotenv file.
func Load(path string, opts ...Option) (Config, error) {
	o := options{envFile: ".env", lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(&o)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, errors.Wrapf(err, "config: read %s", path)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, errors.Wrapf(err, "config: parse %s", path)
		}
	}

	dotenv := map[string]string{}
	if o.envFile != "" {
		values, err := godotenv.Read(o.envFile)
		switch {
		case err == nil:
			dotenv = values
		case !errors.Is(err, fs.ErrNotExist):
			return cfg, errors.Wrapf(err, "config: read %s", o.envFile)
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := o.lookup(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrap(err, "config: invalid")
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	integer := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(err, "config: %s%s", EnvPrefix, name)
		}
		*dst = n
		return nil
	}
	duration := func(name string, dst *time.Duration) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		d, err := str2duration.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return errors.Wrapf(err, "config: %s%s", EnvPrefix, name)
		}
		*dst = d
		return nil
	}

	str("BACKEND", &cfg.Backend)
	str("REDIS_ADDR", &cfg.Redis.Addr)
	str("REDIS_USERNAME", &cfg.Redis.Username)
	str("REDIS_PASSWORD", &cfg.Redis.Password)
	str("REDIS_PREFIX", &cfg.Redis.Prefix)
	str("STORE_DRIVER", &cfg.Store.Driver)
	str("STORE_DSN", &cfg.Store.DSN)
	str("LOG_LEVEL", &cfg.Log.Level)
	str("METRICS_ADDR", &cfg.Metrics.Addr)

	return firstError(
		integer("REDIS_DB", &cfg.Redis.DB),
		integer("MEMORY_CAPACITY", &cfg.Memory.Capacity),
		duration("EXISTS_TTL", &cfg.Cache.ExistsTTL),
		duration("NULL_TTL", &cfg.Cache.NullTTL),
		duration("LOW_WATER", &cfg.Cache.LowWater),
		duration("OP_TIMEOUT", &cfg.Cache.OpTimeout),
		duration("LOAD_TIMEOUT", &cfg.Cache.LoadTimeout),
		duration("MEMORY_TTL", &cfg.Memory.TTL),
		duration("STORE_SLOW_QUERY", &cfg.Store.SlowQuery),
	)
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
