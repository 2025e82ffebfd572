package cache

import "github.com/cockroachdb/errors"

var (
	// ErrNotFound is returned by a LoadFunc when the backing store has no
	// entity for the key. Retrieve turns it into a Null Record.
	ErrNotFound = errors.New("cache: entity not found")

	// ErrInvalidKey marks keys that cannot identify an entity (missing or
	// non-positive ids). It is a client error and is raised before any I/O.
	ErrInvalidKey = errors.New("cache: invalid key")
)
