package cache

import (
	"errors"
	"strings"
	"testing"
)

func TestNamespace(t *testing.T) {
	tests := map[string]string{
		"Course":         "courses",
		"CourseOrg":      "course_orgs",
		"CourseResource": "course_resources",
		"UserFavorite":   "user_favorites",
		"catalog.Video":  "videos",
		"HTTPSession":    "http_sessions",
	}
	for in, want := range tests {
		if got := Namespace(in); got != want {
			t.Errorf("Namespace(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestKeyPath(t *testing.T) {
	videos := NewKeyPath("courses", "lessons", "videos")

	if videos.Depth() != 2 {
		t.Errorf("expected depth 2, got %d", videos.Depth())
	}

	key, err := videos.Key(7, 3, 11)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "courses:7:lessons:3:videos:11" {
		t.Errorf("unexpected key %q", key)
	}

	tests := []struct {
		name string
		path KeyPath
		ids  []int64
	}{
		{name: "empty path", path: NewKeyPath(), ids: []int64{1}},
		{name: "too few ids", path: videos, ids: []int64{7, 3}},
		{name: "too many ids", path: NewKeyPath("courses"), ids: []int64{1, 2}},
		{name: "zero id", path: videos, ids: []int64{7, 0, 11}},
		{name: "negative id", path: NewKeyPath("courses"), ids: []int64{-1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.path.Key(tt.ids...)
			if !errors.Is(err, ErrInvalidKey) {
				t.Errorf("expected ErrInvalidKey, got %v", err)
			}
		})
	}
}

func TestChildPrefix(t *testing.T) {
	if got := ChildPrefix("courses:7"); got != "courses:7:" {
		t.Errorf("ChildPrefix() = %q", got)
	}
	if strings.HasPrefix("courses:70", ChildPrefix("courses:7")) {
		t.Error("child prefix must not match sibling ids")
	}
}

func TestToSnake(t *testing.T) {
	tests := map[string]string{
		"":                "",
		"User":            "user",
		"userFavorite":    "user_favorite",
		"*catalog.Course": "course",
		"Video2Lesson":    "video2_lesson",
		"Page[int]":       "page_int",
		"APIKey":          "api_key",
	}
	for in, want := range tests {
		if got := toSnake(in); got != want {
			t.Errorf("toSnake(%q) = %q, want %q", in, got, want)
		}
	}
}
