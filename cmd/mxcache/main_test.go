package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/goliatone/go-object-cache/catalog"
	"github.com/goliatone/go-object-cache/repositorycache"
	"github.com/goliatone/go-object-cache/store"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	a, cmd := newRootCommand()
	defer a.close()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", "", "--backend", "memory"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func setupEnv(t *testing.T) string {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "mxcache.db")
	t.Setenv("MXCACHE_STORE_DRIVER", "sqlite3")
	t.Setenv("MXCACHE_STORE_DSN", dsn)
	t.Setenv("MXCACHE_LOG_LEVEL", "error")
	t.Setenv("MXCACHE_MEMORY_TTL", "24h")
	return dsn
}

func TestCLI_MigrateGetInvalidate(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "migrate")
	if err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if !strings.Contains(out, "migrated") {
		t.Errorf("unexpected output %q", out)
	}

	out, err = run(t, "get", "course", "3")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !strings.Contains(out, `name: "null"`) {
		t.Errorf("expected Null Record output, got %q", out)
	}

	out, err = run(t, "get", "--fresh", "lesson", "3", "4")
	if err != nil {
		t.Fatalf("get --fresh failed: %v", err)
	}
	if !strings.Contains(out, `course_id: "null"`) {
		t.Errorf("expected Null Record output, got %q", out)
	}

	out, err = run(t, "invalidate", "video", "1", "2", "3")
	if err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if !strings.Contains(out, "courses:1:lessons:2:videos:3") {
		t.Errorf("unexpected output %q", out)
	}

	out, err = run(t, "notifications", "unread", "--user", "1")
	if err != nil {
		t.Fatalf("unread failed: %v", err)
	}
	if out != "" {
		t.Errorf("expected no notifications, got %q", out)
	}
}

func TestCLI_GetVisit(t *testing.T) {
	dsn := setupEnv(t)
	ctx := context.Background()

	if _, err := run(t, "migrate"); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	db, err := store.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if _, err := db.NewInsert().Model(&catalog.Course{ID: 1, Name: "Go", OwnerID: 1}).Exec(ctx); err != nil {
		t.Fatalf("seed course: %v", err)
	}
	fav := &catalog.UserFavorite{UserID: 2, FavID: 1, FavType: catalog.FavoriteCourse}
	if _, err := db.NewInsert().Model(fav).Exec(ctx); err != nil {
		t.Fatalf("seed favorite: %v", err)
	}
	db.Close()

	out, err := run(t, "get", "--visit", "--user", "2", "course", "1")
	if err != nil {
		t.Fatalf("get --visit failed: %v", err)
	}
	if !strings.Contains(out, `click_nums: "1"`) || !strings.Contains(out, `favorited: "true"`) {
		t.Errorf("unexpected visit output %q", out)
	}

	out, err = run(t, "get", "--visit", "course", "1")
	if err != nil {
		t.Fatalf("anonymous get --visit failed: %v", err)
	}
	if !strings.Contains(out, `click_nums: "2"`) || !strings.Contains(out, `favorited: "false"`) {
		t.Errorf("unexpected anonymous visit output %q", out)
	}

	if _, err := run(t, "get", "--visit", "--fresh", "course", "1"); err == nil {
		t.Error("expected --visit and --fresh to be rejected together")
	}
}

func TestCLI_UsageErrors(t *testing.T) {
	setupEnv(t)
	if _, err := run(t, "migrate"); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	tests := []struct {
		name string
		args []string
	}{
		{name: "non numeric id", args: []string{"get", "course", "abc"}},
		{name: "zero id", args: []string{"get", "course", "0"}},
		{name: "missing ancestor", args: []string{"get", "lesson", "4"}},
		{name: "unknown kind", args: []string{"invalidate", "comment", "1"}},
		{name: "unknown favorite kind", args: []string{"favorite", "--user", "1", "video", "1"}},
		{name: "bad notification id", args: []string{"notifications", "read", "--user", "1", "nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if code := exitCode(err); code != exitUsage {
				t.Errorf("exit code = %d, want %d (err: %v)", code, exitUsage, err)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: nil, want: exitOK},
		{err: errors.New("connection refused"), want: exitFailed},
		{err: errors.Wrap(repositorycache.ErrInvalidID, "course"), want: exitUsage},
		{err: errors.Wrap(catalog.ErrInvalidFavorite, "kind"), want: exitUsage},
	}
	for _, tt := range tests {
		if got := exitCode(tt.err); got != tt.want {
			t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"7", "3"})
	if err != nil || len(ids) != 2 || ids[0] != 7 || ids[1] != 3 {
		t.Errorf("parseIDs = %v, %v", ids, err)
	}
	if _, err := parseIDs([]string{"x"}); !errors.Is(err, errUsage) {
		t.Errorf("expected usage error, got %v", err)
	}
}
