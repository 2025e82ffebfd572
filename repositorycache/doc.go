// Package repositorycache provides cached repository decorators for store
// repositories.
//
// # Overview
//
// A CachedRepository wraps a base repository and keeps one Redis-style hash
// per entity in front of it. Reads go through the cache-aside Service: a hit
// is served from the hash, a miss loads the row and caches it, and a missing
// row is cached as the schema's Null Record for a short TTL so repeated
// lookups of absent ids stay off the database.
//
// Writes are committed to the base repository first. The cached hash is then
// replaced as a whole with the committed row, so fields from an older record
// or from a Null Record never survive a write.
//
// # Basic Usage
//
//	base := store.NewRepository(db, handlers)
//	courses := repositorycache.New(base, service, repositorycache.Descriptor[*Course]{
//		Schema: CourseSchema,
//		Path:   CoursePath,
//		Fields: (*Course).Fields,
//		RefOf:  func(c *Course) store.Ref { return store.ID(c.ID) },
//	})
//
//	rec, err := courses.Get(ctx, store.ID(42))
//	if rec.IsNull() {
//		// course 42 does not exist
//	}
//
// # Nested Entities
//
// Entities addressed through their ancestors carry the ancestor ids in the
// ref. Deleting an entity drops its own key and every key below it:
//
//	lessons.Delete(ctx, store.Child(lessonID, courseID))
//	// removes courses:<c>:lessons:<l> and courses:<c>:lessons:<l>:*
//
// # Bypassing the Cache
//
// WithoutCache returns a context whose reads go straight to the store:
//
//	rec, err := courses.Get(repositorycache.WithoutCache(ctx), store.ID(42))
package repositorycache
