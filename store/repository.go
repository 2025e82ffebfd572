package store

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	"github.com/uptrace/bun"
)

var (
	// ErrNotFound is returned when no row matches a Ref.
	ErrNotFound = errors.New("store: record not found")

	// ErrInvalidID marks refs with non-positive ids or the wrong number of
	// parent ids. It is raised before any query runs.
	ErrInvalidID = errors.New("store: invalid id")
)

// Ref identifies one row. Parents holds ancestor ids outermost first, e.g. a
// video is Ref{ID: video, Parents: []int64{course, lesson}}.
type Ref struct {
	ID      int64
	Parents []int64
}

// ID is a Ref for a top-level entity.
func ID(id int64) Ref {
	return Ref{ID: id}
}

// Child is a Ref for a nested entity.
func Child(id int64, parents ...int64) Ref {
	return Ref{ID: id, Parents: parents}
}

// IDs returns the ancestor ids followed by the row id.
func (r Ref) IDs() []int64 {
	ids := make([]int64, 0, len(r.Parents)+1)
	ids = append(ids, r.Parents...)
	return append(ids, r.ID)
}

// ModelHandlers describes how a Repository handles one model type. T is the
// pointer model, e.g. *catalog.Course.
type ModelHandlers[T any] struct {
	// NewRecord returns an empty model to scan into.
	NewRecord func() T
	// Depth is the number of parent ids every Ref must carry.
	Depth int
	// Scope constrains a query to the parents in ref. Required when Depth > 0.
	Scope func(qb bun.QueryBuilder, ref Ref) bun.QueryBuilder
	// ReadOnlyColumns are never written by Update (counters, creation times).
	ReadOnlyColumns []string
	// VersionColumn, when set, is incremented by every Update and counter
	// adjustment.
	VersionColumn string
}

// Repository is a bun-backed repository keyed by integer ids.
type Repository[T any] struct {
	db       bun.IDB
	handlers ModelHandlers[T]
}

// NewRepository creates a repository on db.
func NewRepository[T any](db bun.IDB, handlers ModelHandlers[T]) *Repository[T] {
	return &Repository[T]{db: db, handlers: handlers}
}

// DB returns the database handle the repository runs on.
func (r *Repository[T]) DB() bun.IDB {
	return r.db
}

// Handlers returns the model handlers.
func (r *Repository[T]) Handlers() ModelHandlers[T] {
	return r.handlers
}

// Validate checks ref against the repository depth.
func (r *Repository[T]) Validate(ref Ref) error {
	if ref.ID <= 0 {
		return errors.Wrapf(ErrInvalidID, "id must be positive, got %d", ref.ID)
	}
	if len(ref.Parents) != r.handlers.Depth {
		return errors.Wrapf(ErrInvalidID, "expected %d parent ids, got %d", r.handlers.Depth, len(ref.Parents))
	}
	for _, p := range ref.Parents {
		if p <= 0 {
			return errors.Wrapf(ErrInvalidID, "parent id must be positive, got %d", p)
		}
	}
	return nil
}

func (r *Repository[T]) scope(ref Ref) func(bun.QueryBuilder) bun.QueryBuilder {
	return func(qb bun.QueryBuilder) bun.QueryBuilder {
		qb = qb.Where("?TableAlias.id = ?", ref.ID)
		if r.handlers.Scope != nil && len(ref.Parents) > 0 {
			qb = r.handlers.Scope(qb, ref)
		}
		return qb
	}
}

// GetByID loads the row at ref.
func (r *Repository[T]) GetByID(ctx context.Context, ref Ref) (T, error) {
	return r.GetByIDTx(ctx, r.db, ref)
}

// GetByIDTx loads the row at ref using tx.
func (r *Repository[T]) GetByIDTx(ctx context.Context, tx bun.IDB, ref Ref) (T, error) {
	var zero T
	if err := r.Validate(ref); err != nil {
		return zero, err
	}

	record := r.handlers.NewRecord()
	err := tx.NewSelect().Model(record).ApplyQueryBuilder(r.scope(ref)).Limit(1).Scan(ctx)
	if err != nil {
		return zero, notFound(err, ref)
	}
	return record, nil
}

// Create inserts record and returns it as stored, defaults included.
func (r *Repository[T]) Create(ctx context.Context, record T) (T, error) {
	var out T
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		out, err = r.CreateTx(ctx, tx, record)
		return err
	})
	return out, err
}

// CreateTx inserts record using tx.
func (r *Repository[T]) CreateTx(ctx context.Context, tx bun.IDB, record T) (T, error) {
	var zero T
	if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
		return zero, errors.Wrap(err, "store: insert")
	}
	if err := tx.NewSelect().Model(record).WherePK().Scan(ctx); err != nil {
		return zero, errors.Wrap(err, "store: reload after insert")
	}
	return record, nil
}

// Update writes every column of record except the read-only ones, bumps the
// version column and returns the committed row.
func (r *Repository[T]) Update(ctx context.Context, record T) (T, error) {
	var out T
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		out, err = r.UpdateTx(ctx, tx, record)
		return err
	})
	return out, err
}

// UpdateTx is Update using tx.
func (r *Repository[T]) UpdateTx(ctx context.Context, tx bun.IDB, record T) (T, error) {
	var zero T

	excluded := append([]string(nil), r.handlers.ReadOnlyColumns...)
	if r.handlers.VersionColumn != "" {
		excluded = append(excluded, r.handlers.VersionColumn)
	}

	q := tx.NewUpdate().Model(record).WherePK()
	if len(excluded) > 0 {
		q = q.ExcludeColumn(excluded...)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return zero, errors.Wrap(err, "store: update")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return zero, errors.Wrap(ErrNotFound, "store: update")
	}

	if col := r.handlers.VersionColumn; col != "" {
		_, err := tx.NewUpdate().Model(record).WherePK().
			Set("? = ? + 1", bun.Ident(col), bun.Ident(col)).
			Exec(ctx)
		if err != nil {
			return zero, errors.Wrap(err, "store: bump version")
		}
	}

	if err := tx.NewSelect().Model(record).WherePK().Scan(ctx); err != nil {
		return zero, errors.Wrap(err, "store: reload after update")
	}
	return record, nil
}

// Delete removes the row at ref.
func (r *Repository[T]) Delete(ctx context.Context, ref Ref) error {
	return r.DeleteTx(ctx, r.db, ref)
}

// DeleteTx removes the row at ref using tx.
func (r *Repository[T]) DeleteTx(ctx context.Context, tx bun.IDB, ref Ref) error {
	if err := r.Validate(ref); err != nil {
		return err
	}
	res, err := tx.NewDelete().Model(r.handlers.NewRecord()).ApplyQueryBuilder(r.scope(ref)).Exec(ctx)
	if err != nil {
		return errors.Wrap(err, "store: delete")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Wrapf(ErrNotFound, "store: delete %d", ref.ID)
	}
	return nil
}

// AdjustCounter adds delta to column in one statement, clamping the result
// at zero, and returns the committed row.
func (r *Repository[T]) AdjustCounter(ctx context.Context, ref Ref, column string, delta int64) (T, error) {
	var out T
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		out, err = r.AdjustCounterTx(ctx, tx, ref, column, delta)
		return err
	})
	return out, err
}

// AdjustCounterTx is AdjustCounter using tx.
func (r *Repository[T]) AdjustCounterTx(ctx context.Context, tx bun.IDB, ref Ref, column string, delta int64) (T, error) {
	var zero T
	if err := r.Validate(ref); err != nil {
		return zero, err
	}
	if column == "" {
		return zero, errors.New("store: counter column is required")
	}

	col := bun.Ident(column)
	q := tx.NewUpdate().Model(r.handlers.NewRecord()).
		Set("? = CASE WHEN ? + ? < 0 THEN 0 ELSE ? + ? END", col, col, delta, col, delta)
	if v := r.handlers.VersionColumn; v != "" {
		q = q.Set("? = ? + 1", bun.Ident(v), bun.Ident(v))
	}

	res, err := q.ApplyQueryBuilder(r.scope(ref)).Exec(ctx)
	if err != nil {
		return zero, errors.Wrapf(err, "store: adjust %s", column)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return zero, errors.Wrapf(ErrNotFound, "store: adjust %s on %d", column, ref.ID)
	}
	return r.GetByIDTx(ctx, tx, ref)
}

func notFound(err error, ref Ref) error {
	if errors.Is(err, sql.ErrNoRows) {
		return errors.Wrapf(ErrNotFound, "id %d", ref.ID)
	}
	return errors.Wrap(err, "store: select")
}
