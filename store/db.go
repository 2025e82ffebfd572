package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Open connects to dsn with driver and wraps the pool in a bun.DB.
func Open(driver, dsn string) (*bun.DB, error) {
	switch driver {
	case DriverSQLite:
		sqldb, err := sql.Open(DriverSQLite, dsn)
		if err != nil {
			return nil, errors.Wrap(err, "store: open sqlite")
		}
		// SQLite allows a single writer; in-memory databases are also per connection.
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	case DriverPostgres, "postgres":
		sqldb, err := sql.Open(DriverPostgres, dsn)
		if err != nil {
			return nil, errors.Wrap(err, "store: open postgres")
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		return nil, errors.Newf("store: unsupported driver %q", driver)
	}
}

// Index describes a secondary index created by Migrate.
type Index struct {
	Model   any
	Name    string
	Columns []string
	Unique  bool
}

// Migrate creates the tables for models and then the indexes. Existing tables
// and indexes are left untouched.
func Migrate(ctx context.Context, db bun.IDB, models []any, indexes ...Index) error {
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return errors.Wrapf(err, "store: create table for %T", model)
		}
	}
	for _, idx := range indexes {
		q := db.NewCreateIndex().Model(idx.Model).Index(idx.Name).Column(idx.Columns...).IfNotExists()
		if idx.Unique {
			q = q.Unique()
		}
		if _, err := q.Exec(ctx); err != nil {
			return errors.Wrapf(err, "store: create index %s", idx.Name)
		}
	}
	return nil
}

// QueryLogger is a bun.QueryHook writing every query to a zap logger.
type QueryLogger struct {
	logger *zap.Logger
	slow   time.Duration
}

var _ bun.QueryHook = (*QueryLogger)(nil)

// NewQueryLogger logs queries at debug level, and at warn level when they fail
// or take longer than slow (zero disables the slow threshold).
func NewQueryLogger(logger *zap.Logger, slow time.Duration) *QueryLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryLogger{logger: logger.Named("sql"), slow: slow}
}

func (h *QueryLogger) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryLogger) AfterQuery(_ context.Context, event *bun.QueryEvent) {
	elapsed := time.Since(event.StartTime)
	fields := []zap.Field{
		zap.String("operation", event.Operation()),
		zap.Duration("elapsed", elapsed),
		zap.String("query", event.Query),
	}

	switch {
	case event.Err != nil && !errors.Is(event.Err, sql.ErrNoRows):
		h.logger.Warn("query failed", append(fields, zap.Error(event.Err))...)
	case h.slow > 0 && elapsed > h.slow:
		h.logger.Warn("slow query", fields...)
	default:
		h.logger.Debug("query", fields...)
	}
}
