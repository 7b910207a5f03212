// Package model holds the data types shared by every component of the
// proxy: resources, locations, permissions, token claims and the
// replication wire types.
package model

import (
	"github.com/oklog/ulid/v2"
)

// ID is a 128-bit lexicographically sortable resource identifier.
type ID = ulid.ULID

// ParseID parses the string form of an ID.
func ParseID(s string) (ID, error) {
	return ulid.Parse(s)
}

// MustParseID parses s and panics on error. Only meant for tests and
// compile-time constants.
func MustParseID(s string) ID {
	return ulid.MustParse(s)
}
