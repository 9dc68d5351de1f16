// Package store implements spreg.Store.
//
// Service providers are stored as an arena of immutable versions keyed by
// (ID, Version) plus a pointer to the current version of each ID. Child
// records reference the stable ID, so freezing a version never touches
// them. MemoryStore backs tests and one-shot CLI runs; PostgresStore is the
// production store.
package store

import "github.com/spregistry/spreg/pkg/spreg"

var (
	_ spreg.Store = (*MemoryStore)(nil)
	_ spreg.Store = (*PostgresStore)(nil)
)
