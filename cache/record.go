package cache

import (
	"sort"

	"github.com/cockroachdb/errors"
)

// NullValue is the sentinel stored in every field of a Null Record.
const NullValue = "null"

// Record is the field-name to serialized-value mapping stored as one hash per entity.
type Record map[string]string

// IsNull reports whether r is a Null Record: non-empty with every value set to NullValue.
func (r Record) IsNull() bool {
	if len(r) == 0 {
		return false
	}
	for _, v := range r {
		if v != NullValue {
			return false
		}
	}
	return true
}

// Clone returns a copy of r that can be mutated independently.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Pairs flattens r into field/value pairs ordered by field name.
func (r Record) Pairs() []any {
	names := make([]string, 0, len(r))
	for k := range r {
		names = append(names, k)
	}
	sort.Strings(names)

	pairs := make([]any, 0, len(r)*2)
	for _, k := range names {
		pairs = append(pairs, k, r[k])
	}
	return pairs
}

// Field describes one attribute of an entity's read view.
type Field struct {
	Name      string
	WriteOnly bool
}

// Readable declares a field that is present in every cache record.
func Readable(name string) Field { return Field{Name: name} }

// WriteOnly declares a field accepted on writes but never cached or returned.
func WriteOnly(name string) Field { return Field{Name: name, WriteOnly: true} }

// Schema is the explicit field list of one entity type. Both live and null
// records are derived from it, so the two shapes can never drift apart.
type Schema struct {
	name     string
	fields   []Field
	readable []string
	version  string
}

// NewSchema builds a schema. It fails on duplicate or empty field names and
// when the schema has no readable field (an empty hash cannot be stored).
func NewSchema(name string, fields ...Field) (Schema, error) {
	if name == "" {
		return Schema{}, errors.New("cache: schema name is required")
	}

	seen := make(map[string]struct{}, len(fields))
	s := Schema{name: name, fields: make([]Field, 0, len(fields))}
	for _, f := range fields {
		if f.Name == "" {
			return Schema{}, errors.Newf("cache: schema %s has an unnamed field", name)
		}
		if _, dup := seen[f.Name]; dup {
			return Schema{}, errors.Newf("cache: schema %s declares %q twice", name, f.Name)
		}
		seen[f.Name] = struct{}{}
		s.fields = append(s.fields, f)
		if !f.WriteOnly {
			s.readable = append(s.readable, f.Name)
		}
	}

	if len(s.readable) == 0 {
		return Schema{}, errors.Newf("cache: schema %s has no readable fields", name)
	}
	return s, nil
}

// MustSchema is NewSchema for package-level declarations.
func MustSchema(name string, fields ...Field) Schema {
	s, err := NewSchema(name, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

// Versioned marks field as the schema's version column. Writes carrying a
// lower version than the cached record are rejected as stale.
func (s Schema) Versioned(field string) Schema {
	for _, name := range s.readable {
		if name == field {
			s.version = field
			return s
		}
	}
	panic(errors.Newf("cache: schema %s cannot version on unknown readable field %q", s.name, field))
}

// Name returns the schema name.
func (s Schema) Name() string { return s.name }

// VersionField returns the version column or "" for unversioned schemas.
func (s Schema) VersionField() string { return s.version }

// Fields returns the readable field names in declaration order.
func (s Schema) Fields() []string {
	return append([]string(nil), s.readable...)
}

// Null returns the Null Record for this schema.
func (s Schema) Null() Record {
	out := make(Record, len(s.readable))
	for _, name := range s.readable {
		out[name] = NullValue
	}
	return out
}

// Project returns a complete record: every readable field is present (missing
// values become ""), write-only and undeclared fields are dropped.
func (s Schema) Project(values Record) Record {
	out := make(Record, len(s.readable))
	for _, name := range s.readable {
		out[name] = values[name]
	}
	return out
}
