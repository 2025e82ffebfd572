package catalog

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-object-cache/cache"
	"github.com/goliatone/go-object-cache/repositorycache"
	"github.com/goliatone/go-object-cache/store"
)

// ClickColumn counts detail reads of courses, organizations and teachers.
const ClickColumn = "click_nums"

// Visit is a detail read as seen by one viewer.
type Visit struct {
	Record cache.Record
	// Favorited is true when the viewer has the entity among their favorites.
	Favorited bool
}

type clickCounter func(ctx context.Context, ref store.Ref) error

func countClicks[T any](repo *repositorycache.CachedRepository[T]) clickCounter {
	return func(ctx context.Context, ref store.Ref) error {
		_, err := repo.AdjustCounter(ctx, ref, ClickColumn, 1)
		return err
	}
}

// favoriteKinds maps the kinds a user can favorite.
var favoriteKinds = map[string]FavoriteKind{
	KindCourse:    FavoriteCourse,
	KindCourseOrg: FavoriteOrg,
	KindTeacher:   FavoriteTeacher,
}

// Visit reads the kind entity at ids for userID. Courses, organizations and
// teachers count the read in click_nums and report whether userID favorited
// them. A userID of 0 is an anonymous viewer. Missing entities yield the Null
// Record and are not counted.
func (c *Catalog) Visit(ctx context.Context, kind string, userID int64, ids ...int64) (Visit, error) {
	e, err := c.entity(kind)
	if err != nil {
		return Visit{}, err
	}
	ref := RefOf(ids...)

	if click, ok := c.clicks[kind]; ok {
		if err := click(ctx, ref); err != nil && !errors.Is(err, store.ErrNotFound) {
			return Visit{}, err
		}
	}

	rec, err := e.Get(ctx, ref)
	if err != nil {
		return Visit{}, err
	}
	v := Visit{Record: rec}

	fav, ok := favoriteKinds[kind]
	if !ok || userID <= 0 || rec.IsNull() {
		return v, nil
	}
	v.Favorited, err = c.db.NewSelect().
		Model((*UserFavorite)(nil)).
		Where("user_id = ?", userID).
		Where("fav_id = ?", ref.ID).
		Where("fav_type = ?", fav).
		Exists(ctx)
	if err != nil {
		return Visit{}, errors.Wrap(err, "catalog: favorite status")
	}
	return v, nil
}
