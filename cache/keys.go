package cache

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jinzhu/inflection"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = ":"

func cleanSegment(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), KeySeparator, "_")
}

// Namespace derives the plural snake_case namespace for a type name,
// e.g. "CourseOrg" becomes "course_orgs".
func Namespace(typeName string) string {
	return inflection.Plural(toSnake(typeName))
}

// KeyPath is the fixed namespace order for an entity type. The last namespace
// belongs to the entity itself, the preceding ones to its ancestors, e.g.
// courses/lessons/videos renders courses:<c>:lessons:<l>:videos:<v>.
type KeyPath []string

// NewKeyPath builds a key path from namespaces.
func NewKeyPath(namespaces ...string) KeyPath {
	return KeyPath(namespaces)
}

// Depth is the number of ancestor ids a key needs.
func (p KeyPath) Depth() int {
	if len(p) == 0 {
		return 0
	}
	return len(p) - 1
}

// Key renders the key for ids given in ancestor-first order. Ids must be
// positive and exactly one per namespace.
func (p KeyPath) Key(ids ...int64) (string, error) {
	if len(p) == 0 {
		return "", errors.Wrap(ErrInvalidKey, "empty key path")
	}
	if len(ids) != len(p) {
		return "", errors.Wrapf(ErrInvalidKey, "%s needs %d ids, got %d", strings.Join(p, "/"), len(p), len(ids))
	}

	parts := make([]string, 0, len(p)*2)
	for i, ns := range p {
		if ids[i] <= 0 {
			return "", errors.Wrapf(ErrInvalidKey, "%s id must be positive, got %d", ns, ids[i])
		}
		parts = append(parts, cleanSegment(ns), strconv.FormatInt(ids[i], 10))
	}
	return strings.Join(parts, KeySeparator), nil
}

// ChildPrefix returns the prefix shared by every descendant key of the entity
// at key, e.g. "courses:7:" for "courses:7".
func ChildPrefix(key string) string {
	return key + KeySeparator
}
