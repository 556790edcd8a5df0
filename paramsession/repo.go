package paramsession

import (
	"context"
	"errors"
)

// ErrDuplicatePublicID is returned by Create when the public id is taken.
var ErrDuplicatePublicID = errors.New("duplicate session public id")

// Repo defines persistence for parameter sessions.
//
// FindByPublicID returns (nil, nil) when no record exists; an error means the
// backend itself failed. Implementations wrap those failures with
// internal/errors.ErrStoreUnavailable.
type Repo interface {
	// FindByPublicID looks a record up by its unique public id.
	FindByPublicID(ctx context.Context, kind Kind, publicID string) (*Record, error)

	// Create persists a new record in a single atomic write and assigns its ID.
	Create(ctx context.Context, rec *Record) error

	// UpdateData replaces the data payload and bumps ChangedAt. The secret is
	// never written.
	UpdateData(ctx context.Context, kind Kind, publicID string, data map[string]any) (*Record, error)
}
