package catalog

import (
	"context"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-object-cache/notify"
	"github.com/goliatone/go-object-cache/repositorycache"
	"github.com/goliatone/go-object-cache/store"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// ErrInvalidFavorite marks favorite requests rejected before any mutation.
var ErrInvalidFavorite = errors.New("catalog: invalid favorite")

// FavoriteKind is the category of a favorited object.
type FavoriteKind int

const (
	FavoriteCourse  FavoriteKind = 1
	FavoriteOrg     FavoriteKind = 2
	FavoriteTeacher FavoriteKind = 3
)

func (k FavoriteKind) String() string {
	switch k {
	case FavoriteCourse:
		return "course"
	case FavoriteOrg:
		return "org"
	case FavoriteTeacher:
		return "teacher"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// ParseFavoriteKind accepts a kind name or its number.
func ParseFavoriteKind(s string) (FavoriteKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "course", "1":
		return FavoriteCourse, nil
	case "org", "organization", "2":
		return FavoriteOrg, nil
	case "teacher", "3":
		return FavoriteTeacher, nil
	}
	return 0, errors.Wrapf(ErrInvalidFavorite, "unknown kind %q", s)
}

// FavoriteRequest toggles UserID's favorite on the Kind object FavID.
type FavoriteRequest struct {
	UserID int64
	FavID  int64
	Kind   FavoriteKind
}

// Validate checks ids and kind.
func (r FavoriteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.UserID, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.FavID, validation.Required, validation.Min(int64(1))),
		validation.Field(&r.Kind, validation.Required, validation.In(FavoriteCourse, FavoriteOrg, FavoriteTeacher)),
	)
}

// FavoriteResult is the state after a toggle.
type FavoriteResult struct {
	// Added is true when the object is now a favorite of the user.
	Added bool
	// FavNums is the object's favorite counter after the toggle.
	FavNums int64
	// Notified is true when the object's owner was notified.
	Notified bool
}

// Notifier sends notifications to users.
type Notifier interface {
	Notify(ctx context.Context, actor notify.Actor, recipients []int64, verb notify.Verb, target notify.Target, opts ...notify.NotifyOption) (bool, error)
}

type favorited struct {
	favNums int64
	ownerID int64
	name    string
	refresh func(ctx context.Context) error
}

type favoriteTarget interface {
	adjust(ctx context.Context, tx bun.IDB, id, delta int64) (favorited, error)
}

type counterTarget[T any] struct {
	base   *store.Repository[T]
	cached *repositorycache.CachedRepository[T]
	view   func(T) (favNums, ownerID int64, name string)
}

func (c counterTarget[T]) adjust(ctx context.Context, tx bun.IDB, id, delta int64) (favorited, error) {
	var row T
	var err error
	if delta == 0 {
		row, err = c.base.GetByIDTx(ctx, tx, store.ID(id))
	} else {
		row, err = c.base.AdjustCounterTx(ctx, tx, store.ID(id), "fav_nums", delta)
	}
	if err != nil {
		return favorited{}, err
	}
	favNums, owner, name := c.view(row)
	return favorited{
		favNums: favNums,
		ownerID: owner,
		name:    name,
		refresh: func(ctx context.Context) error { return c.cached.Refresh(ctx, row) },
	}, nil
}

// Favorites toggles user favorites and keeps the favorited object's counter
// and cached record in step.
type Favorites struct {
	db       bun.IDB
	catalog  *Catalog
	notifier Notifier
	targets  map[FavoriteKind]favoriteTarget
	logger   *zap.Logger
}

// FavoritesOption configures Favorites.
type FavoritesOption func(*Favorites)

// WithFavoritesLogger sets the logger. Defaults to a no-op logger.
func WithFavoritesLogger(logger *zap.Logger) FavoritesOption {
	return func(f *Favorites) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithNotifier sets the notifier used when a course is favorited.
func WithNotifier(n Notifier) FavoritesOption {
	return func(f *Favorites) {
		f.notifier = n
	}
}

// NewFavorites creates Favorites over c.
func NewFavorites(c *Catalog, opts ...FavoritesOption) *Favorites {
	f := &Favorites{
		db:      c.db,
		catalog: c,
		logger:  zap.NewNop(),
		targets: map[FavoriteKind]favoriteTarget{
			FavoriteCourse: counterTarget[*Course]{
				base:   c.courses,
				cached: c.Courses,
				view:   func(m *Course) (int64, int64, string) { return m.FavNums, m.OwnerID, m.Name },
			},
			FavoriteOrg: counterTarget[*CourseOrg]{
				base:   c.orgs,
				cached: c.CourseOrgs,
				view:   func(m *CourseOrg) (int64, int64, string) { return m.FavNums, 0, m.Name },
			},
			FavoriteTeacher: counterTarget[*Teacher]{
				base:   c.teachers,
				cached: c.Teachers,
				view:   func(m *Teacher) (int64, int64, string) { return m.FavNums, m.UserID, m.Name },
			},
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.Named("favorites")
	return f
}

// Toggle removes the favorite when it exists and adds it otherwise, adjusting
// the object's fav_nums in the same transaction. A missing object rolls the
// transaction back and returns store.ErrNotFound. After commit the object's
// cached record is replaced; a failure there is returned with the result.
// Favoriting a course notifies its owner unless the owner is the user.
func (f *Favorites) Toggle(ctx context.Context, req FavoriteRequest) (FavoriteResult, error) {
	if err := req.Validate(); err != nil {
		return FavoriteResult{}, errors.Mark(errors.Wrap(err, "catalog: favorite"), ErrInvalidFavorite)
	}
	target := f.targets[req.Kind]

	var result FavoriteResult
	var state favorited
	err := f.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		delta, err := toggleRow(ctx, tx, req)
		if err != nil {
			return err
		}
		result.Added = delta >= 0

		state, err = target.adjust(ctx, tx, req.FavID, delta)
		if err != nil {
			return errors.Wrapf(err, "catalog: favorite %s %d", req.Kind, req.FavID)
		}
		return nil
	})
	if err != nil {
		return FavoriteResult{}, err
	}
	result.FavNums = state.favNums

	if err := state.refresh(ctx); err != nil {
		return result, errors.Wrap(err, "catalog: refresh favorited record")
	}

	if result.Added && req.Kind == FavoriteCourse {
		result.Notified = f.notifyOwner(ctx, req, state)
	}
	return result, nil
}

// toggleRow deletes or inserts the favorite row and returns the counter delta.
// A concurrent insert of the same row yields 0.
func toggleRow(ctx context.Context, tx bun.Tx, req FavoriteRequest) (int64, error) {
	res, err := tx.NewDelete().
		Model((*UserFavorite)(nil)).
		Where("user_id = ?", req.UserID).
		Where("fav_id = ?", req.FavID).
		Where("fav_type = ?", req.Kind).
		Exec(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "catalog: delete favorite")
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return -1, nil
	}

	fav := &UserFavorite{UserID: req.UserID, FavID: req.FavID, FavType: req.Kind}
	res, err = tx.NewInsert().
		Model(fav).
		On("CONFLICT DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "catalog: insert favorite")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, nil
	}
	return 1, nil
}

func (f *Favorites) notifyOwner(ctx context.Context, req FavoriteRequest, state favorited) bool {
	if f.notifier == nil || state.ownerID == 0 || state.ownerID == req.UserID {
		return false
	}

	actor := notify.Actor{ID: req.UserID, Name: "user " + strconv.FormatInt(req.UserID, 10)}
	if rec, err := f.catalog.Users.Get(ctx, store.ID(req.UserID)); err == nil && !rec.IsNull() {
		actor.Name = rec["username"]
	}

	sent, err := f.notifier.Notify(ctx, actor, []int64{state.ownerID}, notify.VerbLike,
		notify.Target{Type: KindCourse, ID: req.FavID, Name: state.name},
	)
	if err != nil {
		f.logger.Warn("owner notification failed",
			zap.Int64("course", req.FavID),
			zap.Int64("owner", state.ownerID),
			zap.Error(err),
		)
		return false
	}
	return sent
}
