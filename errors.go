package imagesim

import (
	"errors"

	"github.com/hupe1980/imagesim/store"
)

var (
	// ErrNotFound is returned when a query references an unknown image id.
	// It unifies the store-level condition so callers only need one check.
	ErrNotFound = store.ErrNotFound

	// ErrInvalidLimit is returned when a query limit is not positive.
	ErrInvalidLimit = errors.New("limit must be positive")

	// ErrInvalidKind is returned when a feature-field selector is unknown.
	ErrInvalidKind = errors.New("unknown feature kind")
)
