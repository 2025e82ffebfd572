package catalog

import (
	"github.com/goliatone/go-object-cache/cache"
	"github.com/goliatone/go-object-cache/store"
	"github.com/uptrace/bun"
)

// Cache schemas. Field order follows the read view of each entity.
var (
	CourseOrgSchema = cache.MustSchema("course_org",
		cache.Readable("id"),
		cache.Readable("name"),
		cache.Readable("description"),
		cache.Readable("tag"),
		cache.Readable("category"),
		cache.Readable("city"),
		cache.Readable("address"),
		cache.Readable("click_nums"),
		cache.Readable("fav_nums"),
		cache.Readable("students"),
		cache.Readable("course_nums"),
		cache.Readable("version"),
		cache.Readable("created_time"),
	).Versioned("version")

	TeacherSchema = cache.MustSchema("teacher",
		cache.Readable("id"),
		cache.Readable("org_id"),
		cache.Readable("user_id"),
		cache.Readable("name"),
		cache.Readable("work_years"),
		cache.Readable("work_company"),
		cache.Readable("work_position"),
		cache.Readable("points"),
		cache.Readable("age"),
		cache.Readable("click_nums"),
		cache.Readable("fav_nums"),
		cache.Readable("version"),
		cache.Readable("created_time"),
	).Versioned("version")

	CourseSchema = cache.MustSchema("course",
		cache.Readable("id"),
		cache.Readable("org_id"),
		cache.Readable("teacher_id"),
		cache.Readable("owner_id"),
		cache.Readable("name"),
		cache.Readable("description"),
		cache.Readable("degree"),
		cache.Readable("category"),
		cache.Readable("tag"),
		cache.Readable("is_banner"),
		cache.Readable("learn_times"),
		cache.Readable("students"),
		cache.Readable("click_nums"),
		cache.Readable("fav_nums"),
		cache.Readable("version"),
		cache.Readable("add_time"),
	).Versioned("version")

	LessonSchema = cache.MustSchema("lesson",
		cache.Readable("id"),
		cache.Readable("course_id"),
		cache.Readable("name"),
		cache.Readable("learn_times"),
		cache.Readable("add_time"),
	)

	VideoSchema = cache.MustSchema("video",
		cache.Readable("id"),
		cache.Readable("course_id"),
		cache.Readable("lesson_id"),
		cache.Readable("name"),
		cache.Readable("learn_times"),
		cache.Readable("url"),
		cache.Readable("add_time"),
	)

	CourseResourceSchema = cache.MustSchema("course_resource",
		cache.Readable("id"),
		cache.Readable("course_id"),
		cache.Readable("name"),
		cache.Readable("download"),
		cache.Readable("add_time"),
	)

	UserSchema = cache.MustSchema("user",
		cache.Readable("id"),
		cache.Readable("username"),
		cache.WriteOnly("password"),
		cache.Readable("email"),
		cache.Readable("nick_name"),
		cache.Readable("birthday"),
		cache.Readable("gender"),
		cache.Readable("address"),
		cache.Readable("mobile"),
		cache.Readable("date_joined"),
	)
)

// Key paths. Nested entities carry their ancestors' ids.
var (
	CoursePath         = cache.NewKeyPath("courses")
	LessonPath         = cache.NewKeyPath("courses", "lessons")
	VideoPath          = cache.NewKeyPath("courses", "lessons", "videos")
	CourseResourcePath = cache.NewKeyPath("course_resource")
	CourseOrgPath      = cache.NewKeyPath(cache.Namespace("CourseOrg"))
	TeacherPath        = cache.NewKeyPath(cache.Namespace("Teacher"))
	UserPath           = cache.NewKeyPath(cache.Namespace("User"))
)

var (
	courseOrgHandlers = store.ModelHandlers[*CourseOrg]{
		NewRecord:       func() *CourseOrg { return new(CourseOrg) },
		ReadOnlyColumns: []string{"click_nums", "fav_nums", "created_time"},
		VersionColumn:   "version",
	}

	teacherHandlers = store.ModelHandlers[*Teacher]{
		NewRecord:       func() *Teacher { return new(Teacher) },
		ReadOnlyColumns: []string{"click_nums", "fav_nums", "created_time"},
		VersionColumn:   "version",
	}

	courseHandlers = store.ModelHandlers[*Course]{
		NewRecord:       func() *Course { return new(Course) },
		ReadOnlyColumns: []string{"click_nums", "fav_nums", "add_time"},
		VersionColumn:   "version",
	}

	lessonHandlers = store.ModelHandlers[*Lesson]{
		NewRecord: func() *Lesson { return new(Lesson) },
		Depth:     1,
		Scope: func(qb bun.QueryBuilder, ref store.Ref) bun.QueryBuilder {
			return qb.Where("?TableAlias.course_id = ?", ref.Parents[0])
		},
		// Parent ids are part of the cache key and never change.
		ReadOnlyColumns: []string{"course_id", "add_time"},
	}

	videoHandlers = store.ModelHandlers[*Video]{
		NewRecord: func() *Video { return new(Video) },
		Depth:     2,
		Scope: func(qb bun.QueryBuilder, ref store.Ref) bun.QueryBuilder {
			return qb.
				Where("?TableAlias.course_id = ?", ref.Parents[0]).
				Where("?TableAlias.lesson_id = ?", ref.Parents[1])
		},
		ReadOnlyColumns: []string{"course_id", "lesson_id", "add_time"},
	}

	courseResourceHandlers = store.ModelHandlers[*CourseResource]{
		NewRecord:       func() *CourseResource { return new(CourseResource) },
		ReadOnlyColumns: []string{"add_time"},
	}

	userHandlers = store.ModelHandlers[*User]{
		NewRecord:       func() *User { return new(User) },
		ReadOnlyColumns: []string{"date_joined"},
	}
)
