package di

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-object-cache/cache"
	"github.com/goliatone/go-object-cache/catalog"
	"github.com/goliatone/go-object-cache/internal/cacheinfra"
	"github.com/goliatone/go-object-cache/notify"
	"github.com/goliatone/go-object-cache/pkg/config"
	"github.com/goliatone/go-object-cache/repositorycache"
	"github.com/goliatone/go-object-cache/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Container provides dependency injection for the cache, the catalog and
// notifications. It owns the database handle and Redis client it opens and
// releases them in Close.
type Container struct {
	config   config.Config
	logger   *zap.Logger
	registry *prometheus.Registry

	db        *bun.DB
	ownsDB    bool
	redis     *redis.Client
	ownsRedis bool

	hashStore cache.HashStore
	service   *cache.Service

	catalog   *catalog.Catalog
	favorites *catalog.Favorites
	hub       *notify.Hub
	broker    *notify.RedisBroker
	notifier  *notify.Notifier
	feed      *notify.Feed
}

// Option configures a Container.
type Option func(*Container)

// WithLogger sets the root logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDB uses db instead of opening the configured store. The caller keeps
// ownership of db.
func WithDB(db *bun.DB) Option {
	return func(c *Container) { c.db = db }
}

// WithRedisClient uses client instead of dialing the configured Redis. The
// caller keeps ownership of client.
func WithRedisClient(client *redis.Client) Option {
	return func(c *Container) { c.redis = client }
}

// WithRegistry registers the cache metrics on reg. Defaults to a new registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(c *Container) { c.registry = reg }
}

// NewContainer wires every component from cfg.
func NewContainer(cfg config.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "di: invalid config")
	}

	c := &Container{config: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry == nil {
		c.registry = prometheus.NewRegistry()
	}

	if err := c.initStore(); err != nil {
		return nil, err
	}
	if err := c.initCache(); err != nil {
		c.Close()
		return nil, err
	}

	c.catalog = catalog.New(c.db, c.service)
	c.hub = notify.NewHub(notify.WithHubLogger(c.logger))

	var publisher notify.Publisher = c.hub
	if c.redis != nil {
		c.broker = notify.NewRedisBroker(c.redis, c.hub, notify.WithBrokerLogger(c.logger))
		publisher = c.broker
	}
	c.notifier = notify.NewNotifier(c.db, publisher, notify.WithNotifierLogger(c.logger))
	c.feed = notify.NewFeed(c.db)
	c.favorites = catalog.NewFavorites(c.catalog,
		catalog.WithNotifier(c.notifier),
		catalog.WithFavoritesLogger(c.logger),
	)
	return c, nil
}

func (c *Container) initStore() error {
	if c.db != nil {
		return nil
	}
	db, err := store.Open(c.config.Store.Driver, c.config.Store.DSN)
	if err != nil {
		return err
	}
	db.AddQueryHook(store.NewQueryLogger(c.logger, c.config.Store.SlowQuery))
	c.db, c.ownsDB = db, true
	return nil
}

func (c *Container) initCache() error {
	switch c.config.Backend {
	case config.BackendRedis:
		if c.redis == nil {
			client, err := cacheinfra.NewRedisClient(c.config.Redis)
			if err != nil {
				return err
			}
			c.redis, c.ownsRedis = client, true
		}
		c.hashStore = cacheinfra.NewRedisStore(c.redis, c.config.Redis.Prefix).
			WithScanCount(c.config.Redis.ScanCount)
	case config.BackendMemory:
		mem, err := cacheinfra.NewMemoryStore(c.config.Memory)
		if err != nil {
			return errors.Wrap(err, "di: memory store")
		}
		c.hashStore = mem
	default:
		return errors.Newf("di: unknown cache backend %q", c.config.Backend)
	}

	service, err := cache.NewService(c.hashStore, c.config.Cache,
		cache.WithLogger(c.logger),
		cache.WithMetrics(cache.NewMetrics(c.registry)),
	)
	if err != nil {
		return err
	}
	c.service = service
	return nil
}

// Config returns the configuration the container was built from.
func (c *Container) Config() config.Config {
	return c.config
}

// Logger returns the root logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Registry returns the metrics registry.
func (c *Container) Registry() *prometheus.Registry {
	return c.registry
}

// DB returns the database handle.
func (c *Container) DB() *bun.DB {
	return c.db
}

// HashStore returns the cache backend.
func (c *Container) HashStore() cache.HashStore {
	return c.hashStore
}

// CacheService returns the cache-aside service.
func (c *Container) CacheService() *cache.Service {
	return c.service
}

// Catalog returns the cached entity repositories.
func (c *Container) Catalog() *catalog.Catalog {
	return c.catalog
}

// Favorites returns the favorite toggler.
func (c *Container) Favorites() *catalog.Favorites {
	return c.favorites
}

// Hub returns the local session hub.
func (c *Container) Hub() *notify.Hub {
	return c.hub
}

// Broker returns the Redis broker, nil with the memory backend.
func (c *Container) Broker() *notify.RedisBroker {
	return c.broker
}

// Notifier returns the notification sender.
func (c *Container) Notifier() *notify.Notifier {
	return c.notifier
}

// Feed returns the notification feed.
func (c *Container) Feed() *notify.Feed {
	return c.feed
}

// Migrate creates every table and index.
func (c *Container) Migrate(ctx context.Context) error {
	if err := catalog.Migrate(ctx, c.db); err != nil {
		return err
	}
	return store.Migrate(ctx, c.db, notify.Models())
}

// Close releases the database handle and Redis client the container opened.
func (c *Container) Close() error {
	var err error
	if c.ownsRedis && c.redis != nil {
		err = errors.CombineErrors(err, c.redis.Close())
	}
	if c.ownsDB && c.db != nil {
		err = errors.CombineErrors(err, c.db.Close())
	}
	return err
}

// NewCachedRepository wraps base with the container's cache service.
//
// Since Go methods cannot have type parameters, this is provided as a package-level function.
// Example: NewCachedRepository[*Course](container, base, descriptor)
func NewCachedRepository[T any](container *Container, base repositorycache.Repository[T], desc repositorycache.Descriptor[T]) *repositorycache.CachedRepository[T] {
	return repositorycache.New(base, container.service, desc)
}
