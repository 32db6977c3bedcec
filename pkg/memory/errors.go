package memory

import "errors"

var (
	// ErrItemNotFound indicates an id-addressed operation hit no row.
	ErrItemNotFound = errors.New("memory item not found")
)
