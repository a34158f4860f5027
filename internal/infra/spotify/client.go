// Package spotify provides the Spotify implementation of the track catalog
// and of the token handling used by the authentication session.
package spotify

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/time/rate"

	"github.com/osa030/songbox/internal/domain/catalog"
	"github.com/osa030/songbox/internal/domain/track"
)

const maxSearchLimit = 50

// Client is a Spotify API client serving the track catalog.
type Client struct {
	client     *spotify.Client
	market     string
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
}

// Ensure Client implements the catalog.
var _ catalog.Catalog = (*Client)(nil)

// newClient wraps an authenticated HTTP client.
func newClient(httpClient *http.Client, cfg Config) *Client {
	var opts []spotify.ClientOption
	if cfg.APIURL != "" {
		opts = append(opts, spotify.WithBaseURL(withTrailingSlash(cfg.APIURL)))
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 5
	}

	return &Client{
		client:     spotify.New(httpClient, opts...),
		market:     cfg.Market,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// FetchTrack retrieves a track by ID, URL, or URI.
func (c *Client) FetchTrack(ctx context.Context, trackID string) (*track.Track, error) {
	id := track.ParseID(trackID)
	if id == "" {
		return nil, errors.Mark(errors.New("empty track id"), catalog.ErrUnknownTrack)
	}

	var opts []spotify.RequestOption
	if c.market != "" {
		opts = append(opts, spotify.Market(c.market))
	}

	var result *spotify.FullTrack
	err := c.retry(ctx, func() error {
		t, err := c.client.GetTrack(ctx, spotify.ID(id), opts...)
		if err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		if isNotFound(err) {
			return nil, errors.Mark(errors.Wrapf(err, "track %s not found", id), catalog.ErrUnknownTrack)
		}
		return nil, errors.Mark(errors.Wrap(err, "failed to get track"), catalog.ErrFetch)
	}

	return convertTrack(result), nil
}

// SearchTracks searches for tracks.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]track.Track, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("search query is required")
	}

	if limit <= 0 {
		limit = 20
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	opts := []spotify.RequestOption{spotify.Limit(limit)}
	if c.market != "" {
		opts = append(opts, spotify.Market(c.market))
	}

	var result *spotify.SearchResult
	err := c.retry(ctx, func() error {
		r, err := c.client.Search(ctx, query, spotify.SearchTypeTrack, opts...)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "failed to search"), catalog.ErrFetch)
	}

	if result.Tracks == nil {
		return []track.Track{}, nil
	}
	tracks := make([]track.Track, 0, len(result.Tracks.Tracks))
	for i := range result.Tracks.Tracks {
		tracks = append(tracks, *convertTrack(&result.Tracks.Tracks[i]))
	}

	return tracks, nil
}

// convertTrack converts a Spotify FullTrack to a catalog track record.
func convertTrack(t *spotify.FullTrack) *track.Track {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	refs := make([]track.ArtRef, 0, len(t.Album.Images))
	for _, img := range t.Album.Images {
		if img.URL != "" {
			refs = append(refs, track.ArtRef{URL: img.URL})
		}
	}

	return &track.Track{
		ID:             string(t.ID),
		Title:          t.Name,
		Artist:         track.JoinArtists(artists),
		Album:          t.Album.Name,
		DurationMillis: int64(t.Duration),
		AlbumArtRefs:   refs,
		Explicit:       t.Explicit,
	}
}

// retry retries an operation with linear backoff, waiting on the rate limiter before each attempt.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "rate limiter")
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se spotify.Error
	if errors.As(err, &se) {
		return se.Status == http.StatusTooManyRequests || se.Status >= 500
	}
	// Rate limit errors and server errors are retryable
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}

// isNotFound reports whether the API refused the track ID.
func isNotFound(err error) bool {
	var se spotify.Error
	if errors.As(err, &se) {
		return se.Status == http.StatusNotFound || se.Status == http.StatusBadRequest
	}
	return false
}

func withTrailingSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}
