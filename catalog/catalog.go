package catalog

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-object-cache/cache"
	"github.com/goliatone/go-object-cache/repositorycache"
	"github.com/goliatone/go-object-cache/store"
	"github.com/uptrace/bun"
)

// ErrUnknownKind is returned for an entity kind the catalog does not know.
var ErrUnknownKind = errors.New("catalog: unknown entity kind")

// Entity kinds accepted by Get and Invalidate.
const (
	KindCourse         = "course"
	KindLesson         = "lesson"
	KindVideo          = "video"
	KindCourseResource = "course_resource"
	KindCourseOrg      = "course_org"
	KindTeacher        = "teacher"
	KindUser           = "user"
)

// entity is the kind-agnostic view of a cached repository.
type entity interface {
	Get(ctx context.Context, ref store.Ref) (cache.Record, error)
	Invalidate(ctx context.Context, ref store.Ref) error
	Key(ref store.Ref) (string, error)
}

// Catalog holds the cached repositories of every entity type.
type Catalog struct {
	db bun.IDB

	Courses         *repositorycache.CachedRepository[*Course]
	Lessons         *repositorycache.CachedRepository[*Lesson]
	Videos          *repositorycache.CachedRepository[*Video]
	CourseResources *repositorycache.CachedRepository[*CourseResource]
	CourseOrgs      *repositorycache.CachedRepository[*CourseOrg]
	Teachers        *repositorycache.CachedRepository[*Teacher]
	Users           *repositorycache.CachedRepository[*User]

	courses  *store.Repository[*Course]
	orgs     *store.Repository[*CourseOrg]
	teachers *store.Repository[*Teacher]

	kinds  map[string]entity
	clicks map[string]clickCounter
}

// New wires a Catalog on db with reads and writes going through service.
func New(db bun.IDB, service *cache.Service) *Catalog {
	c := &Catalog{
		db:       db,
		courses:  store.NewRepository(db, courseHandlers),
		orgs:     store.NewRepository(db, courseOrgHandlers),
		teachers: store.NewRepository(db, teacherHandlers),
	}

	c.Courses = repositorycache.New[*Course](c.courses, service, repositorycache.Descriptor[*Course]{
		Schema: CourseSchema,
		Path:   CoursePath,
		Fields: (*Course).Fields,
		RefOf:  func(m *Course) store.Ref { return store.ID(m.ID) },
	})
	c.Lessons = repositorycache.New[*Lesson](store.NewRepository(db, lessonHandlers), service, repositorycache.Descriptor[*Lesson]{
		Schema: LessonSchema,
		Path:   LessonPath,
		Fields: (*Lesson).Fields,
		RefOf:  func(m *Lesson) store.Ref { return store.Child(m.ID, m.CourseID) },
	})
	c.Videos = repositorycache.New[*Video](store.NewRepository(db, videoHandlers), service, repositorycache.Descriptor[*Video]{
		Schema: VideoSchema,
		Path:   VideoPath,
		Fields: (*Video).Fields,
		RefOf:  func(m *Video) store.Ref { return store.Child(m.ID, m.CourseID, m.LessonID) },
	})
	c.CourseResources = repositorycache.New[*CourseResource](store.NewRepository(db, courseResourceHandlers), service, repositorycache.Descriptor[*CourseResource]{
		Schema: CourseResourceSchema,
		Path:   CourseResourcePath,
		Fields: (*CourseResource).Fields,
		RefOf:  func(m *CourseResource) store.Ref { return store.ID(m.ID) },
	})
	c.CourseOrgs = repositorycache.New[*CourseOrg](c.orgs, service, repositorycache.Descriptor[*CourseOrg]{
		Schema: CourseOrgSchema,
		Path:   CourseOrgPath,
		Fields: (*CourseOrg).Fields,
		RefOf:  func(m *CourseOrg) store.Ref { return store.ID(m.ID) },
	})
	c.Teachers = repositorycache.New[*Teacher](c.teachers, service, repositorycache.Descriptor[*Teacher]{
		Schema: TeacherSchema,
		Path:   TeacherPath,
		Fields: (*Teacher).Fields,
		RefOf:  func(m *Teacher) store.Ref { return store.ID(m.ID) },
	})
	c.Users = repositorycache.New[*User](store.NewRepository(db, userHandlers), service, repositorycache.Descriptor[*User]{
		Schema: UserSchema,
		Path:   UserPath,
		Fields: (*User).Fields,
		RefOf:  func(m *User) store.Ref { return store.ID(m.ID) },
	})

	c.kinds = map[string]entity{
		KindCourse:         c.Courses,
		KindLesson:         c.Lessons,
		KindVideo:          c.Videos,
		KindCourseResource: c.CourseResources,
		KindCourseOrg:      c.CourseOrgs,
		KindTeacher:        c.Teachers,
		KindUser:           c.Users,
	}
	c.clicks = map[string]clickCounter{
		KindCourse:    countClicks(c.Courses),
		KindCourseOrg: countClicks(c.CourseOrgs),
		KindTeacher:   countClicks(c.Teachers),
	}
	return c
}

// DB returns the database handle the catalog runs on.
func (c *Catalog) DB() bun.IDB {
	return c.db
}

// Kinds lists the entity kinds in name order.
func (c *Catalog) Kinds() []string {
	kinds := make([]string, 0, len(c.kinds))
	for k := range c.kinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// RefOf builds a ref from ids given outermost first, e.g. course, lesson,
// video for a video.
func RefOf(ids ...int64) store.Ref {
	if len(ids) == 0 {
		return store.Ref{}
	}
	last := len(ids) - 1
	return store.Child(ids[last], ids[:last]...)
}

func (c *Catalog) entity(kind string) (entity, error) {
	e, ok := c.kinds[kind]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownKind, "%q", kind)
	}
	return e, nil
}

// Key renders the cache key of the kind entity at ids.
func (c *Catalog) Key(kind string, ids ...int64) (string, error) {
	e, err := c.entity(kind)
	if err != nil {
		return "", err
	}
	return e.Key(RefOf(ids...))
}

// Get reads the kind entity at ids through the cache.
func (c *Catalog) Get(ctx context.Context, kind string, ids ...int64) (cache.Record, error) {
	e, err := c.entity(kind)
	if err != nil {
		return nil, err
	}
	return e.Get(ctx, RefOf(ids...))
}

// Invalidate drops the cached kind entity at ids and its descendants.
func (c *Catalog) Invalidate(ctx context.Context, kind string, ids ...int64) error {
	e, err := c.entity(kind)
	if err != nil {
		return err
	}
	return e.Invalidate(ctx, RefOf(ids...))
}

// Models returns the bun models owned by the catalog.
func Models() []any {
	return []any{
		(*CourseOrg)(nil),
		(*Teacher)(nil),
		(*Course)(nil),
		(*Lesson)(nil),
		(*Video)(nil),
		(*CourseResource)(nil),
		(*User)(nil),
		(*UserFavorite)(nil),
	}
}

// Indexes returns the secondary indexes of the catalog tables.
func Indexes() []store.Index {
	return []store.Index{
		{Model: (*UserFavorite)(nil), Name: "user_favorites_uniq", Columns: []string{"user_id", "fav_id", "fav_type"}, Unique: true},
		{Model: (*Lesson)(nil), Name: "lessons_course_idx", Columns: []string{"course_id"}},
		{Model: (*Video)(nil), Name: "videos_lesson_idx", Columns: []string{"course_id", "lesson_id"}},
	}
}

// Migrate creates the catalog tables and indexes.
func Migrate(ctx context.Context, db bun.IDB) error {
	return store.Migrate(ctx, db, Models(), Indexes()...)
}
