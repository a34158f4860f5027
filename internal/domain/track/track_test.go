package track

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinArtists(t *testing.T) {
	tests := []struct {
		name     string
		names    []string
		expected string
	}{
		{
			name:     "single artist",
			names:    []string{"Artist 1"},
			expected: "Artist 1",
		},
		{
			name:     "multiple artists",
			names:    []string{"Artist 1", "Artist 2"},
			expected: "Artist 1, Artist 2",
		},
		{
			name:     "blank names are skipped",
			names:    []string{"", " Artist 1 ", "  "},
			expected: "Artist 1",
		},
		{
			name:     "no artists",
			names:    nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, JoinArtists(tt.names))
		})
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Spotify URI format",
			input:    "spotify:track:4uLU6hMCjMI75M1A2tKUQC",
			expected: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "Spotify URL format",
			input:    "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC",
			expected: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "Spotify URL with query params",
			input:    "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC?si=abc123",
			expected: "4uLU6hMCjMI75M1A2tKUQC",
		},
		{
			name:     "Localized URL",
			input:    "https://open.spotify.com/intl-ja/track/abc123/",
			expected: "abc123",
		},
		{
			name:     "Plain track ID with spaces",
			input:    "  abc123 ",
			expected: "abc123",
		},
		{
			name:     "Empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseID(tt.input)
			assert.Equal(t, tt.expected, result,
				"ParseID(%s) should return %s", tt.input, tt.expected)
		})
	}
}
