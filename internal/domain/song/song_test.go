package song

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/songbox/internal/domain/track"
)

func TestFromTrack(t *testing.T) {
	tests := []struct {
		name         string
		track        track.Track
		wantDuration int
		wantArt      *string
	}{
		{
			name: "duration is truncated to seconds",
			track: track.Track{
				ID:             "track-1",
				Title:          "Test Song",
				Artist:         "Artist 1",
				DurationMillis: 185400,
			},
			wantDuration: 185,
		},
		{
			name: "first art reference wins",
			track: track.Track{
				ID:             "track-2",
				Title:          "Test Song",
				DurationMillis: 999,
				AlbumArtRefs: []track.ArtRef{
					{URL: "https://img.example/large.jpg"},
					{URL: "https://img.example/small.jpg"},
				},
			},
			wantDuration: 0,
			wantArt:      strPtr("https://img.example/large.jpg"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := FromTrack(tt.track)
			require.NoError(t, err)

			assert.Equal(t, tt.track.ID, s.ID)
			assert.Equal(t, tt.track.Title, s.Title)
			assert.Equal(t, tt.track.Artist, s.Description)
			assert.Equal(t, tt.wantDuration, s.DurationSeconds)
			if tt.wantArt == nil {
				assert.Nil(t, s.AlbumArtURL)
				assert.False(t, s.HasAlbumArt())
			} else {
				require.NotNil(t, s.AlbumArtURL)
				assert.Equal(t, *tt.wantArt, *s.AlbumArtURL)
			}
		})
	}
}

func TestFromTrack_ArtURLIsCopied(t *testing.T) {
	tr := track.Track{
		ID:           "track-1",
		Title:        "Test Song",
		AlbumArtRefs: []track.ArtRef{{URL: "https://img.example/a.jpg"}},
	}
	s, err := FromTrack(tr)
	require.NoError(t, err)

	tr.AlbumArtRefs[0].URL = "changed"
	assert.Equal(t, "https://img.example/a.jpg", *s.AlbumArtURL)
}

func TestFromTrack_MissingFields(t *testing.T) {
	_, err := FromTrack(track.Track{Title: "No ID"})
	assert.True(t, errors.Is(err, ErrIncompleteTrack))

	_, err = FromTrack(track.Track{ID: "track-1"})
	assert.True(t, errors.Is(err, ErrIncompleteTrack))
}

func strPtr(s string) *string {
	return &s
}
