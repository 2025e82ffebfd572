package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// LoadFunc reads one entity's fields from the backing store. It returns
// ErrNotFound (or an error wrapping it) when the entity does not exist.
type LoadFunc func(ctx context.Context) (Record, error)

// Service is the cache-aside layer: reads go through Retrieve, writes that
// committed to the backing store go through Update.
type Service struct {
	store   HashStore
	cfg     Config
	logger  *zap.Logger
	metrics *Metrics
	flights singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the collectors. Defaults to unregistered collectors.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewService wires a Service on top of store.
func NewService(store HashStore, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("cache: hash store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "cache: invalid config")
	}

	s := &Service{
		store:   store,
		cfg:     cfg,
		logger:  zap.NewNop(),
		metrics: NewMetrics(nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("cache")
	return s, nil
}

// Config returns the TTL policy in use.
func (s *Service) Config() Config {
	return s.cfg
}

// Retrieve returns the record cached at key. On a miss it loads the entity,
// caches it for ExistsTTL and returns it; when the entity does not exist it
// caches and returns schema's Null Record for NullTTL. Live records whose TTL
// fell below LowWater are extended on read; Null Records never are.
func (s *Service) Retrieve(ctx context.Context, key string, schema Schema, load LoadFunc) (Record, error) {
	if key == "" {
		return nil, errors.Wrap(ErrInvalidKey, "empty key")
	}

	rec, ttl, err := s.fetch(ctx, key)
	if err != nil {
		if timedOut(ctx, err) {
			s.lookup(schema, ResultTimeout)
			s.logger.Warn("cache fetch timed out, reading backing store", zap.String("key", key), zap.Error(err))
			return s.loadDirect(ctx, schema, load)
		}
		return nil, errors.Wrapf(err, "cache: fetch %s", key)
	}

	if len(rec) > 0 {
		if rec.IsNull() {
			s.lookup(schema, ResultNullHit)
			return rec, nil
		}
		s.lookup(schema, ResultHit)
		if ttl >= 0 && ttl < s.cfg.LowWater {
			s.refresh(ctx, key)
		}
		return rec, nil
	}

	s.lookup(schema, ResultMiss)
	return s.fill(ctx, key, schema, load)
}

// RetrieveUncached reads the entity straight from the backing store, shaped
// like Retrieve's result, without reading or writing the cache.
func (s *Service) RetrieveUncached(ctx context.Context, schema Schema, load LoadFunc) (Record, error) {
	s.lookup(schema, ResultBypass)
	return s.loadDirect(ctx, schema, load)
}

// Update replaces the record at key with values after a committed write.
// The old record, live or null, is dropped as a whole so no field from it
// survives. Writes older than the cached version are skipped.
func (s *Service) Update(ctx context.Context, key string, schema Schema, values Record) error {
	if key == "" {
		return errors.Wrap(ErrInvalidKey, "empty key")
	}

	rec := schema.Project(values)
	var version Version
	if field := schema.VersionField(); field != "" {
		n, err := strconv.ParseInt(rec[field], 10, 64)
		if err != nil {
			return errors.Wrapf(err, "cache: %s version field %q", schema.Name(), field)
		}
		version = Version{Field: field, Value: n}
	}

	octx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	applied, err := s.store.Replace(octx, key, rec, s.cfg.ExistsTTL, version)
	if err != nil {
		s.metrics.Writes.WithLabelValues(schema.Name(), "error").Inc()
		return errors.Wrapf(err, "cache: replace %s", key)
	}

	if !applied {
		s.metrics.Writes.WithLabelValues(schema.Name(), "stale").Inc()
		s.logger.Debug("skipped stale cache write", zap.String("key", key), zap.Int64("version", version.Value))
		return nil
	}
	s.metrics.Writes.WithLabelValues(schema.Name(), "applied").Inc()
	return nil
}

// Invalidate drops the records at keys.
func (s *Service) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	octx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	if _, err := s.store.Delete(octx, keys...); err != nil {
		return errors.Wrapf(err, "cache: delete %v", keys)
	}
	return nil
}

// InvalidatePrefix drops every record whose key starts with prefix.
func (s *Service) InvalidatePrefix(ctx context.Context, prefix string) error {
	if prefix == "" {
		return errors.Wrap(ErrInvalidKey, "empty prefix")
	}
	octx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	n, err := s.store.DeletePrefix(octx, prefix)
	if err != nil {
		return errors.Wrapf(err, "cache: delete prefix %s", prefix)
	}
	s.logger.Debug("invalidated prefix", zap.String("prefix", prefix), zap.Int64("keys", n))
	return nil
}

func (s *Service) fetch(ctx context.Context, key string) (Record, time.Duration, error) {
	octx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()
	return s.store.Fetch(octx, key)
}

func (s *Service) refresh(ctx context.Context, key string) {
	octx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout)
	defer cancel()

	ok, err := s.store.Refresh(octx, key, s.cfg.ExistsTTL, s.cfg.LowWater)
	if err != nil {
		s.logger.Warn("ttl refresh failed", zap.String("key", key), zap.Error(err))
		return
	}
	if ok {
		s.metrics.Refreshes.Inc()
	}
}

// fill coalesces concurrent misses on key into one store load.
func (s *Service) fill(ctx context.Context, key string, schema Schema, load LoadFunc) (Record, error) {
	ch := s.flights.DoChan(key, func() (any, error) {
		return s.fillOnce(context.WithoutCancel(ctx), key, schema, load)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Record).Clone(), nil
	}
}

func (s *Service) fillOnce(ctx context.Context, key string, schema Schema, load LoadFunc) (Record, error) {
	var loaded Record
	var loadErr error

	fn := func(fctx context.Context) (Record, time.Duration, error) {
		lctx, cancel := context.WithTimeout(fctx, s.cfg.LoadTimeout)
		defer cancel()

		rec, err := load(lctx)
		switch {
		case errors.Is(err, ErrNotFound):
			loaded = schema.Null()
			return loaded, s.cfg.NullTTL, nil
		case err != nil:
			loadErr = err
			return nil, 0, err
		}
		loaded = schema.Project(rec)
		return loaded, s.cfg.ExistsTTL, nil
	}

	octx, cancel := context.WithTimeout(ctx, s.cfg.OpTimeout+s.cfg.LoadTimeout)
	defer cancel()

	rec, outcome, err := s.store.Fill(octx, key, fn)
	if err != nil {
		switch {
		case loadErr != nil:
			return nil, errors.Wrapf(loadErr, "cache: load %s", key)
		case timedOut(ctx, err) && loaded != nil:
			s.logger.Warn("cache fill timed out, serving loaded record", zap.String("key", key), zap.Error(err))
			s.metrics.Fills.WithLabelValues(schema.Name(), ResultTimeout).Inc()
			return loaded, nil
		case timedOut(ctx, err):
			s.logger.Warn("cache fill timed out before load, reading backing store", zap.String("key", key), zap.Error(err))
			return s.loadDirect(ctx, schema, load)
		}
		return nil, errors.Wrapf(err, "cache: fill %s", key)
	}

	s.metrics.Fills.WithLabelValues(schema.Name(), outcome.String()).Inc()
	if outcome == FillConflict {
		s.logger.Debug("key written during load, result not cached", zap.String("key", key))
	}
	return rec, nil
}

func (s *Service) loadDirect(ctx context.Context, schema Schema, load LoadFunc) (Record, error) {
	lctx, cancel := context.WithTimeout(ctx, s.cfg.LoadTimeout)
	defer cancel()

	rec, err := load(lctx)
	if errors.Is(err, ErrNotFound) {
		return schema.Null(), nil
	}
	if err != nil {
		return nil, err
	}
	return schema.Project(rec), nil
}

func (s *Service) lookup(schema Schema, result string) {
	s.metrics.Lookups.WithLabelValues(schema.Name(), result).Inc()
}

// timedOut reports whether err is a cache deadline rather than the caller
// giving up.
func timedOut(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
