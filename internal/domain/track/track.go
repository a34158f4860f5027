// Package track provides the raw catalog Track record.
package track

import "strings"

// ArtRef is a reference to a piece of album art.
type ArtRef struct {
	URL string
}

// Track represents a track record as returned by the remote catalog.
// Contains only information retrieved from the catalog API.
type Track struct {
	ID             string   // Catalog track ID
	Title          string   // Track title
	Artist         string   // Artist description (names joined)
	Album          string   // Album name
	DurationMillis int64    // Track duration in milliseconds
	AlbumArtRefs   []ArtRef // Album art, largest first
	Explicit       bool     // Explicit content flag
}

// JoinArtists builds the artist description from individual artist names.
func JoinArtists(names []string) string {
	parts := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, ", ")
}

// ParseID extracts the catalog track ID from a track URL, a URI, or a bare ID.
// Cache keys and file names use the bare ID.
func ParseID(input string) string {
	input = strings.TrimSpace(input)
	// Handle Spotify URI format: spotify:track:TRACK_ID
	if strings.HasPrefix(input, "spotify:track:") {
		return strings.TrimPrefix(input, "spotify:track:")
	}

	// Handle URL format: https://open.spotify.com/track/TRACK_ID or https://open.spotify.com/intl-XX/track/TRACK_ID
	if strings.Contains(input, "open.spotify.com") && strings.Contains(input, "/track/") {
		parts := strings.Split(input, "/track/")
		if len(parts) >= 2 {
			// Remove query parameters and trailing slashes
			id := strings.Split(parts[len(parts)-1], "?")[0]
			id = strings.TrimRight(id, "/")
			return id
		}
	}

	// Assume it's already a track ID
	return input
}
