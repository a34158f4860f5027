// Package song provides the Song domain entity and its construction from catalog tracks.
package song

import (
	"github.com/cockroachdb/errors"

	"github.com/osa030/songbox/internal/domain/track"
)

// ErrIncompleteTrack is returned when a catalog track lacks a mandatory field.
// The catalog guarantees these fields for valid identifiers, so this signals a contract violation.
var ErrIncompleteTrack = errors.New("incomplete catalog track")

// Song represents a playable song known to the provider.
// Values are immutable once built.
type Song struct {
	ID              string  // Catalog track ID, also the cache key
	Title           string  // Song title
	Description     string  // Artist description
	DurationSeconds int     // Duration in whole seconds
	AlbumArtURL     *string // First album art URL (nil if the track has none)
}

// FromTrack materializes a Song from a raw catalog track.
func FromTrack(t track.Track) (Song, error) {
	if t.ID == "" {
		return Song{}, errors.Wrap(ErrIncompleteTrack, "missing track id")
	}
	if t.Title == "" {
		return Song{}, errors.Wrapf(ErrIncompleteTrack, "missing title for track %s", t.ID)
	}

	s := Song{
		ID:              t.ID,
		Title:           t.Title,
		Description:     t.Artist,
		DurationSeconds: int(t.DurationMillis / 1000),
	}
	if len(t.AlbumArtRefs) > 0 {
		url := t.AlbumArtRefs[0].URL
		s.AlbumArtURL = &url
	}
	return s, nil
}

// HasAlbumArt reports whether the song carries an album art URL.
func (s Song) HasAlbumArt() bool {
	return s.AlbumArtURL != nil
}
