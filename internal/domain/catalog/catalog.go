// Package catalog defines the contract of the remote track catalog.
package catalog

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/osa030/songbox/internal/domain/track"
)

var (
	// ErrFetch marks transient network or catalog failures.
	ErrFetch = errors.New("catalog fetch failed")
	// ErrUnknownTrack marks lookups of identifiers the catalog does not know.
	ErrUnknownTrack = errors.New("unknown track")
)

// Catalog issues search and single-track fetch calls against the remote catalog.
type Catalog interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]track.Track, error)
	FetchTrack(ctx context.Context, id string) (*track.Track, error)
}
