package repositorycache

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/goliatone/go-object-cache/cache"
	"github.com/goliatone/go-object-cache/internal/cacheinfra"
	"github.com/goliatone/go-object-cache/store"
)

// testCourse represents a test entity
type testCourse struct {
	ID      int64
	Name    string
	FavNums int64
	Version int64
}

var testSchema = cache.MustSchema("course",
	cache.Readable("id"),
	cache.Readable("name"),
	cache.Readable("fav_nums"),
	cache.Readable("version"),
).Versioned("version")

func courseFields(c *testCourse) cache.Record {
	return cache.Record{
		"id":       strconv.FormatInt(c.ID, 10),
		"name":     c.Name,
		"fav_nums": strconv.FormatInt(c.FavNums, 10),
		"version":  strconv.FormatInt(c.Version, 10),
	}
}

// mockRepository is an in-memory repository that tracks method calls
type mockRepository struct {
	mu     sync.Mutex
	calls  []string
	rows   map[int64]*testCourse
	nextID int64
	err    error
}

func newMockRepository() *mockRepository {
	return &mockRepository{rows: map[int64]*testCourse{}, nextID: 1}
}

// Helper method to record method calls
func (m *mockRepository) recordCall(method string) {
	m.calls = append(m.calls, method)
}

// Helper method to get recorded calls
func (m *mockRepository) getCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *mockRepository) count(method string) int {
	n := 0
	for _, c := range m.getCalls() {
		if c == method {
			n++
		}
	}
	return n
}

func (m *mockRepository) GetByID(ctx context.Context, ref store.Ref) (*testCourse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCall("GetByID")
	if m.err != nil {
		return nil, m.err
	}
	row, ok := m.rows[ref.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (m *mockRepository) Create(ctx context.Context, record *testCourse) (*testCourse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCall("Create")
	if m.err != nil {
		return nil, m.err
	}
	row := *record
	row.ID = m.nextID
	row.Version = 1
	m.nextID++
	m.rows[row.ID] = &row
	cp := row
	return &cp, nil
}

func (m *mockRepository) Update(ctx context.Context, record *testCourse) (*testCourse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCall("Update")
	if m.err != nil {
		return nil, m.err
	}
	row, ok := m.rows[record.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	row.Name = record.Name
	row.Version++
	cp := *row
	return &cp, nil
}

func (m *mockRepository) Delete(ctx context.Context, ref store.Ref) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCall("Delete")
	if m.err != nil {
		return m.err
	}
	if _, ok := m.rows[ref.ID]; !ok {
		return store.ErrNotFound
	}
	delete(m.rows, ref.ID)
	return nil
}

func (m *mockRepository) AdjustCounter(ctx context.Context, ref store.Ref, column string, delta int64) (*testCourse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordCall("AdjustCounter")
	row, ok := m.rows[ref.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	row.FavNums += delta
	if row.FavNums < 0 {
		row.FavNums = 0
	}
	row.Version++
	cp := *row
	return &cp, nil
}

func setupCached(t *testing.T) (*CachedRepository[*testCourse], *mockRepository, *cacheinfra.MemoryStore) {
	t.Helper()

	mem, err := cacheinfra.NewMemoryStore(cacheinfra.DefaultMemoryConfig())
	if err != nil {
		t.Fatalf("failed to create memory store: %v", err)
	}
	service, err := cache.NewService(mem, cache.DefaultConfig())
	if err != nil {
		t.Fatalf("failed to create cache service: %v", err)
	}

	base := newMockRepository()
	cached := New[*testCourse](base, service, Descriptor[*testCourse]{
		Schema: testSchema,
		Path:   cache.NewKeyPath("courses"),
		Fields: courseFields,
		RefOf:  func(c *testCourse) store.Ref { return store.ID(c.ID) },
	})
	return cached, base, mem
}

func TestCachedRepository_GetCachesRecord(t *testing.T) {
	cached, base, _ := setupCached(t)
	ctx := context.Background()
	base.rows[1] = &testCourse{ID: 1, Name: "go", Version: 1}

	first, err := cached.Get(ctx, store.ID(1))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	second, err := cached.Get(ctx, store.ID(1))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if first["name"] != "go" || second["name"] != "go" {
		t.Errorf("unexpected records %v %v", first, second)
	}
	if n := base.count("GetByID"); n != 1 {
		t.Errorf("expected one base read, got %d", n)
	}
}

func TestCachedRepository_GetMissingReturnsNullRecord(t *testing.T) {
	cached, base, _ := setupCached(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec, err := cached.Get(ctx, store.ID(99))
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !rec.IsNull() {
			t.Fatalf("expected Null Record, got %v", rec)
		}
	}
	if n := base.count("GetByID"); n != 1 {
		t.Errorf("expected null record to absorb repeat reads, got %d base reads", n)
	}
}

func TestCachedRepository_InvalidID(t *testing.T) {
	cached, base, _ := setupCached(t)
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() error
	}{
		{name: "get zero", run: func() error { _, err := cached.Get(ctx, store.ID(0)); return err }},
		{name: "get with parent", run: func() error { _, err := cached.Get(ctx, store.Child(1, 2)); return err }},
		{name: "delete negative", run: func() error { return cached.Delete(ctx, store.ID(-1)) }},
		{name: "counter zero", run: func() error { _, err := cached.AdjustCounter(ctx, store.ID(0), "fav_nums", 1); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, ErrInvalidID) {
				t.Errorf("expected ErrInvalidID, got %v", err)
			}
		})
	}
	if calls := base.getCalls(); len(calls) != 0 {
		t.Errorf("expected no base calls for invalid ids, got %v", calls)
	}
}

func TestCachedRepository_CreateReplacesNullRecord(t *testing.T) {
	cached, _, mem := setupCached(t)
	ctx := context.Background()

	rec, err := cached.Get(ctx, store.ID(1))
	if err != nil || !rec.IsNull() {
		t.Fatalf("expected Null Record before create, got %v %v", rec, err)
	}

	created, err := cached.Create(ctx, &testCourse{Name: "fresh"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID != 1 {
		t.Fatalf("expected id 1, got %d", created.ID)
	}

	stored, _, err := mem.Fetch(ctx, "courses:1")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if stored.IsNull() || stored["name"] != "fresh" || stored["version"] != "1" {
		t.Errorf("expected cached view of created row, got %v", stored)
	}
}

func TestCachedRepository_UpdateAndCounter(t *testing.T) {
	cached, base, _ := setupCached(t)
	ctx := context.Background()
	base.rows[1] = &testCourse{ID: 1, Name: "old", Version: 1}

	if _, err := cached.Get(ctx, store.ID(1)); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, err := cached.Update(ctx, &testCourse{ID: 1, Name: "new"}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if _, err := cached.AdjustCounter(ctx, store.ID(1), "fav_nums", 1); err != nil {
		t.Fatalf("AdjustCounter failed: %v", err)
	}

	rec, err := cached.Get(ctx, store.ID(1))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if rec["name"] != "new" || rec["fav_nums"] != "1" || rec["version"] != "3" {
		t.Errorf("unexpected cached record %v", rec)
	}
	if n := base.count("GetByID"); n != 1 {
		t.Errorf("expected writes to keep the cache warm, got %d base reads", n)
	}
}

func TestCachedRepository_StaleRefreshSkipped(t *testing.T) {
	cached, base, _ := setupCached(t)
	ctx := context.Background()
	base.rows[1] = &testCourse{ID: 1, Name: "v2", Version: 2}

	if _, err := cached.Get(ctx, store.ID(1)); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if err := cached.Refresh(ctx, &testCourse{ID: 1, Name: "v1", Version: 1}); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	rec, _ := cached.Get(ctx, store.ID(1))
	if rec["name"] != "v2" {
		t.Errorf("expected older version to be ignored, got %v", rec)
	}
}

func TestCachedRepository_WriteErrorLeavesCache(t *testing.T) {
	cached, base, mem := setupCached(t)
	ctx := context.Background()
	base.rows[1] = &testCourse{ID: 1, Name: "kept", Version: 1}

	if _, err := cached.Get(ctx, store.ID(1)); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	boom := errors.New("db down")
	base.err = boom
	if _, err := cached.Update(ctx, &testCourse{ID: 1, Name: "lost"}); !errors.Is(err, boom) {
		t.Fatalf("expected base error, got %v", err)
	}

	stored, _, _ := mem.Fetch(ctx, "courses:1")
	if stored["name"] != "kept" {
		t.Errorf("expected cache untouched after failed write, got %v", stored)
	}
}

func TestCachedRepository_DeleteInvalidatesDescendants(t *testing.T) {
	cached, base, mem := setupCached(t)
	ctx := context.Background()
	base.rows[1] = &testCourse{ID: 1, Name: "parent", Version: 1}

	if _, err := cached.Get(ctx, store.ID(1)); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, err := mem.Replace(ctx, "courses:1:lessons:4", cache.Record{"id": "4"}, cache.MinExistsTTL, cache.Version{}); err != nil {
		t.Fatalf("seed child: %v", err)
	}
	if _, err := mem.Replace(ctx, "courses:11", cache.Record{"id": "11"}, cache.MinExistsTTL, cache.Version{}); err != nil {
		t.Fatalf("seed sibling: %v", err)
	}

	if err := cached.Delete(ctx, store.ID(1)); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	for _, key := range []string{"courses:1", "courses:1:lessons:4"} {
		if rec, _, _ := mem.Fetch(ctx, key); len(rec) != 0 {
			t.Errorf("expected %s to be dropped, got %v", key, rec)
		}
	}
	if rec, _, _ := mem.Fetch(ctx, "courses:11"); rec["id"] != "11" {
		t.Errorf("expected unrelated key courses:11 to survive, got %v", rec)
	}

	rec, err := cached.Get(ctx, store.ID(1))
	if err != nil || !rec.IsNull() {
		t.Errorf("expected Null Record after delete, got %v %v", rec, err)
	}
}

func TestCachedRepository_WithoutCache(t *testing.T) {
	cached, base, mem := setupCached(t)
	ctx := WithoutCache(context.Background())
	base.rows[1] = &testCourse{ID: 1, Name: "direct", Version: 1}

	for i := 0; i < 2; i++ {
		rec, err := cached.Get(ctx, store.ID(1))
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if rec["name"] != "direct" {
			t.Errorf("unexpected record %v", rec)
		}
	}
	if n := base.count("GetByID"); n != 2 {
		t.Errorf("expected every bypassed read to hit the base, got %d", n)
	}
	if mem.Size() != 0 {
		t.Errorf("expected bypassed reads not to populate the cache, got %d entries", mem.Size())
	}

	rec, err := cached.Get(ctx, store.ID(7))
	if err != nil || !rec.IsNull() {
		t.Errorf("expected Null Record for missing row, got %v %v", rec, err)
	}
}

func TestCacheBypassed(t *testing.T) {
	if cacheBypassed(context.Background()) {
		t.Error("expected plain context not to bypass")
	}
	if !cacheBypassed(WithoutCache(context.Background())) {
		t.Error("expected WithoutCache to bypass")
	}
	if !cacheBypassed(WithoutCache(nil)) { //nolint:staticcheck
		t.Error("expected nil parent to be accepted")
	}
}
