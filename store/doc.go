// Package store is the relational backing store behind the cache: generic bun
// repositories keyed by integer ids, with nested refs for child entities,
// version columns and zero-floored counters updated in a single statement.
package store
