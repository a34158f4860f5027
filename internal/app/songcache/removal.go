package songcache

import (
	"github.com/osa030/songbox/internal/domain/song"
)

// RemovalCause describes why an entry left the cache.
type RemovalCause int

const (
	CauseExplicit RemovalCause = iota // InvalidateAll or Close
	CauseExpired                      // Not accessed within the TTL
	CauseSize                         // Evicted to stay within the maximum size
)

// String returns the string representation of the cause.
func (c RemovalCause) String() string {
	switch c {
	case CauseExplicit:
		return "explicit"
	case CauseExpired:
		return "expired"
	case CauseSize:
		return "size"
	default:
		return "unknown"
	}
}

// RemovalListener is notified with a snapshot of every song that leaves the cache.
// Listeners run outside the cache lock, after the removal has taken effect.
type RemovalListener func(s song.Song, cause RemovalCause)

// removal is an eviction waiting to be dispatched to listeners.
type removal struct {
	song  song.Song
	cause RemovalCause
}
