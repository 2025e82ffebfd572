package catalog

import (
	"strconv"
	"time"

	"github.com/goliatone/go-object-cache/cache"
	"github.com/uptrace/bun"
)

// CourseOrg is a training organization.
type CourseOrg struct {
	bun.BaseModel `bun:"table:course_orgs,alias:course_org"`

	ID          int64     `bun:"id,pk,autoincrement" yaml:"id"`
	Name        string    `bun:"name,notnull" yaml:"name"`
	Description string    `bun:"description,notnull,default:''" yaml:"description"`
	Tag         string    `bun:"tag,notnull,default:''" yaml:"tag"`
	Category    string    `bun:"category,notnull,default:'pxjg'" yaml:"category"`
	City        string    `bun:"city,notnull,default:''" yaml:"city"`
	Address     string    `bun:"address,notnull,default:''" yaml:"address"`
	ClickNums   int64     `bun:"click_nums,notnull,default:0" yaml:"click_nums"`
	FavNums     int64     `bun:"fav_nums,notnull,default:0" yaml:"fav_nums"`
	Students    int64     `bun:"students,notnull,default:0" yaml:"students"`
	CourseNums  int64     `bun:"course_nums,notnull,default:0" yaml:"course_nums"`
	Version     int64     `bun:"version,nullzero,notnull,default:1" yaml:"-"`
	CreatedTime time.Time `bun:"created_time,nullzero,notnull,default:current_timestamp" yaml:"-"`
}

// Teacher belongs to an organization.
type Teacher struct {
	bun.BaseModel `bun:"table:teachers,alias:teacher"`

	ID           int64     `bun:"id,pk,autoincrement" yaml:"id"`
	OrgID        int64     `bun:"org_id,nullzero" yaml:"org_id"`
	UserID       int64     `bun:"user_id,nullzero" yaml:"user_id"`
	Name         string    `bun:"name,notnull" yaml:"name"`
	WorkYears    int64     `bun:"work_years,notnull,default:0" yaml:"work_years"`
	WorkCompany  string    `bun:"work_company,notnull,default:''" yaml:"work_company"`
	WorkPosition string    `bun:"work_position,notnull,default:''" yaml:"work_position"`
	Points       string    `bun:"points,notnull,default:''" yaml:"points"`
	Age          int64     `bun:"age,notnull,default:18" yaml:"age"`
	ClickNums    int64     `bun:"click_nums,notnull,default:0" yaml:"click_nums"`
	FavNums      int64     `bun:"fav_nums,notnull,default:0" yaml:"fav_nums"`
	Version      int64     `bun:"version,nullzero,notnull,default:1" yaml:"-"`
	CreatedTime  time.Time `bun:"created_time,nullzero,notnull,default:current_timestamp" yaml:"-"`
}

// Course is the top of the course/lesson/video hierarchy.
type Course struct {
	bun.BaseModel `bun:"table:courses,alias:course"`

	ID          int64     `bun:"id,pk,autoincrement" yaml:"id"`
	OrgID       int64     `bun:"org_id,nullzero" yaml:"org_id"`
	TeacherID   int64     `bun:"teacher_id,nullzero" yaml:"teacher_id"`
	OwnerID     int64     `bun:"owner_id,nullzero" yaml:"owner_id"`
	Name        string    `bun:"name,notnull" yaml:"name"`
	Description string    `bun:"description,notnull,default:''" yaml:"description"`
	Degree      string    `bun:"degree,notnull,default:'cj'" yaml:"degree"`
	Category    string    `bun:"category,notnull,default:''" yaml:"category"`
	Tag         string    `bun:"tag,notnull,default:''" yaml:"tag"`
	IsBanner    bool      `bun:"is_banner,notnull,default:false" yaml:"is_banner"`
	LearnTimes  int64     `bun:"learn_times,notnull,default:0" yaml:"learn_times"`
	Students    int64     `bun:"students,notnull,default:0" yaml:"students"`
	ClickNums   int64     `bun:"click_nums,notnull,default:0" yaml:"click_nums"`
	FavNums     int64     `bun:"fav_nums,notnull,default:0" yaml:"fav_nums"`
	Version     int64     `bun:"version,nullzero,notnull,default:1" yaml:"-"`
	AddTime     time.Time `bun:"add_time,nullzero,notnull,default:current_timestamp" yaml:"-"`
}

// Lesson is a chapter of a course.
type Lesson struct {
	bun.BaseModel `bun:"table:lessons,alias:lesson"`

	ID         int64     `bun:"id,pk,autoincrement" yaml:"id"`
	CourseID   int64     `bun:"course_id,notnull" yaml:"course_id"`
	Name       string    `bun:"name,notnull" yaml:"name"`
	LearnTimes int64     `bun:"learn_times,notnull,default:0" yaml:"learn_times"`
	AddTime    time.Time `bun:"add_time,nullzero,notnull,default:current_timestamp" yaml:"-"`
}

// Video is a playable unit of a lesson. CourseID repeats the lesson's course
// so a video row alone yields its cache key.
type Video struct {
	bun.BaseModel `bun:"table:videos,alias:video"`

	ID         int64     `bun:"id,pk,autoincrement" yaml:"id"`
	CourseID   int64     `bun:"course_id,notnull" yaml:"course_id"`
	LessonID   int64     `bun:"lesson_id,notnull" yaml:"lesson_id"`
	Name       string    `bun:"name,notnull" yaml:"name"`
	LearnTimes int64     `bun:"learn_times,notnull,default:0" yaml:"learn_times"`
	URL        string    `bun:"url,notnull" yaml:"url"`
	AddTime    time.Time `bun:"add_time,nullzero,notnull,default:current_timestamp" yaml:"-"`
}

// CourseResource is a downloadable attachment of a course.
type CourseResource struct {
	bun.BaseModel `bun:"table:course_resources,alias:course_resource"`

	ID       int64     `bun:"id,pk,autoincrement" yaml:"id"`
	CourseID int64     `bun:"course_id,notnull" yaml:"course_id"`
	Name     string    `bun:"name,notnull" yaml:"name"`
	Download string    `bun:"download,notnull,default:''" yaml:"download"`
	AddTime  time.Time `bun:"add_time,nullzero,notnull,default:current_timestamp" yaml:"-"`
}

// User is an account. Password is accepted on writes and never cached.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID         int64     `bun:"id,pk,autoincrement" yaml:"id"`
	Username   string    `bun:"username,notnull,unique" yaml:"username"`
	Password   string    `bun:"password,notnull,default:''" yaml:"password"`
	Email      string    `bun:"email,notnull,default:''" yaml:"email"`
	NickName   string    `bun:"nick_name,notnull,default:''" yaml:"nick_name"`
	Birthday   time.Time `bun:"birthday,nullzero" yaml:"birthday"`
	Gender     string    `bun:"gender,notnull,default:'male'" yaml:"gender"`
	Address    string    `bun:"address,notnull,default:''" yaml:"address"`
	Mobile     string    `bun:"mobile,notnull,default:''" yaml:"mobile"`
	DateJoined time.Time `bun:"date_joined,nullzero,notnull,default:current_timestamp" yaml:"-"`
}

// UserFavorite records that a user favorited an object of FavType.
type UserFavorite struct {
	bun.BaseModel `bun:"table:user_favorites,alias:user_favorite"`

	ID      int64        `bun:"id,pk,autoincrement"`
	UserID  int64        `bun:"user_id,notnull"`
	FavID   int64        `bun:"fav_id,notnull"`
	FavType FavoriteKind `bun:"fav_type,notnull"`
	AddTime time.Time    `bun:"add_time,nullzero,notnull,default:current_timestamp"`
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}

// formatRef renders an optional foreign key; unset keys become "".
func formatRef(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

// Fields returns the cached view of o.
func (o *CourseOrg) Fields() cache.Record {
	return cache.Record{
		"id":           formatInt(o.ID),
		"name":         o.Name,
		"description":  o.Description,
		"tag":          o.Tag,
		"category":     o.Category,
		"city":         o.City,
		"address":      o.Address,
		"click_nums":   formatInt(o.ClickNums),
		"fav_nums":     formatInt(o.FavNums),
		"students":     formatInt(o.Students),
		"course_nums":  formatInt(o.CourseNums),
		"version":      formatInt(o.Version),
		"created_time": formatTime(o.CreatedTime),
	}
}

// Fields returns the cached view of t.
func (t *Teacher) Fields() cache.Record {
	return cache.Record{
		"id":            formatInt(t.ID),
		"org_id":        formatRef(t.OrgID),
		"user_id":       formatRef(t.UserID),
		"name":          t.Name,
		"work_years":    formatInt(t.WorkYears),
		"work_company":  t.WorkCompany,
		"work_position": t.WorkPosition,
		"points":        t.Points,
		"age":           formatInt(t.Age),
		"click_nums":    formatInt(t.ClickNums),
		"fav_nums":      formatInt(t.FavNums),
		"version":       formatInt(t.Version),
		"created_time":  formatTime(t.CreatedTime),
	}
}

// Fields returns the cached view of c.
func (c *Course) Fields() cache.Record {
	return cache.Record{
		"id":          formatInt(c.ID),
		"org_id":      formatRef(c.OrgID),
		"teacher_id":  formatRef(c.TeacherID),
		"owner_id":    formatRef(c.OwnerID),
		"name":        c.Name,
		"description": c.Description,
		"degree":      c.Degree,
		"category":    c.Category,
		"tag":         c.Tag,
		"is_banner":   strconv.FormatBool(c.IsBanner),
		"learn_times": formatInt(c.LearnTimes),
		"students":    formatInt(c.Students),
		"click_nums":  formatInt(c.ClickNums),
		"fav_nums":    formatInt(c.FavNums),
		"version":     formatInt(c.Version),
		"add_time":    formatTime(c.AddTime),
	}
}

// Fields returns the cached view of l.
func (l *Lesson) Fields() cache.Record {
	return cache.Record{
		"id":          formatInt(l.ID),
		"course_id":   formatInt(l.CourseID),
		"name":        l.Name,
		"learn_times": formatInt(l.LearnTimes),
		"add_time":    formatTime(l.AddTime),
	}
}

// Fields returns the cached view of v.
func (v *Video) Fields() cache.Record {
	return cache.Record{
		"id":          formatInt(v.ID),
		"course_id":   formatInt(v.CourseID),
		"lesson_id":   formatInt(v.LessonID),
		"name":        v.Name,
		"learn_times": formatInt(v.LearnTimes),
		"url":         v.URL,
		"add_time":    formatTime(v.AddTime),
	}
}

// Fields returns the cached view of r.
func (r *CourseResource) Fields() cache.Record {
	return cache.Record{
		"id":        formatInt(r.ID),
		"course_id": formatInt(r.CourseID),
		"name":      r.Name,
		"download":  r.Download,
		"add_time":  formatTime(r.AddTime),
	}
}

// Fields returns the view of u, password included. The schema drops it
// before anything is cached.
func (u *User) Fields() cache.Record {
	return cache.Record{
		"id":          formatInt(u.ID),
		"username":    u.Username,
		"password":    u.Password,
		"email":       u.Email,
		"nick_name":   u.NickName,
		"birthday":    formatDate(u.Birthday),
		"gender":      u.Gender,
		"address":     u.Address,
		"mobile":      u.Mobile,
		"date_joined": formatTime(u.DateJoined),
	}
}
