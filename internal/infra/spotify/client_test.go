package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	crdb "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	spotifyapi "github.com/zmb3/spotify/v2"

	"github.com/osa030/songbox/internal/app/auth"
	"github.com/osa030/songbox/internal/domain/catalog"
)

const trackJSON = `{
	"id": "%s",
	"name": "First",
	"duration_ms": 185400,
	"explicit": true,
	"artists": [{"name": "Artist A"}, {"name": "Artist B"}],
	"album": {"name": "Album", "images": [{"url": "https://img.example/640.jpg", "height": 640, "width": 640}]}
}`

// fakeSpotify serves the accounts token endpoint and the subset of the Web API the client uses.
type fakeSpotify struct {
	server       *httptest.Server
	searchStatus int
	meDelay      time.Duration
	timeout      time.Duration
	loginCalls   atomic.Int32
	searchCalls  atomic.Int32
	lastDeviceID atomic.Value
}

func newFakeSpotify(t *testing.T) *fakeSpotify {
	t.Helper()
	f := &fakeSpotify{searchStatus: http.StatusOK}
	mux := http.NewServeMux()

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("grant_type") {
		case "password":
			f.loginCalls.Add(1)
			f.lastDeviceID.Store(r.Header.Get(DeviceIDHeader))
			if r.PostForm.Get("username") != "user" || r.PostForm.Get("password") != "pass" {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":"invalid_grant"}`)
				return
			}
			fmt.Fprint(w, `{"access_token":"access-good","token_type":"Bearer","refresh_token":"fresh-refresh","expires_in":3600}`)
		case "refresh_token":
			if r.PostForm.Get("refresh_token") != "fresh-refresh" {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":"invalid_grant"}`)
				return
			}
			fmt.Fprint(w, `{"access_token":"access-good","token_type":"Bearer","expires_in":3600}`)
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})

	mux.HandleFunc("/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer access-good" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":{"status":401,"message":"Invalid access token"}}`)
			return
		}

		path := strings.TrimPrefix(r.URL.Path, "/v1/")
		switch {
		case path == "me":
			time.Sleep(f.meDelay)
			fmt.Fprint(w, `{"id":"user-1","display_name":"User"}`)
		case path == "search":
			f.searchCalls.Add(1)
			if f.searchStatus != http.StatusOK {
				w.WriteHeader(f.searchStatus)
				fmt.Fprintf(w, `{"error":{"status":%d,"message":"unavailable"}}`, f.searchStatus)
				return
			}
			assert.Equal(t, "foo", r.URL.Query().Get("q"))
			assert.Equal(t, "track", r.URL.Query().Get("type"))
			assert.Equal(t, "30", r.URL.Query().Get("limit"))
			fmt.Fprintf(w, `{"tracks":{"items":[%s,%s],"total":2,"limit":30,"offset":0}}`,
				fmt.Sprintf(trackJSON, "t1"), fmt.Sprintf(trackJSON, "t2"))
		case strings.HasPrefix(path, "tracks/"):
			id := strings.TrimPrefix(path, "tracks/")
			if id != "t1" {
				w.WriteHeader(http.StatusNotFound)
				fmt.Fprint(w, `{"error":{"status":404,"message":"non existing id"}}`)
				return
			}
			fmt.Fprintf(w, trackJSON, id)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeSpotify) authenticator(t *testing.T) *Authenticator {
	t.Helper()
	a, err := NewAuthenticator(Config{
		ClientID:          "client",
		ClientSecret:      "secret",
		TokenURL:          f.server.URL + "/token",
		APIURL:            f.server.URL + "/v1",
		RequestsPerSecond: 1000,
		Burst:             100,
		Timeout:           f.timeout,
	})
	require.NoError(t, err)
	return a
}

func buildClient(t *testing.T, f *fakeSpotify) *Client {
	t.Helper()
	a := f.authenticator(t)
	tok, err := a.Login(context.Background(), auth.Credentials{Username: "user", Password: "pass", DeviceID: "device-1"})
	require.NoError(t, err)
	c, err := a.Build(context.Background(), tok)
	require.NoError(t, err)
	client := c.(*Client)
	client.retryDelay = time.Millisecond
	return client
}

func TestAuthenticator_Login(t *testing.T) {
	f := newFakeSpotify(t)
	a := f.authenticator(t)

	tok, err := a.Login(context.Background(), auth.Credentials{Username: "user", Password: "pass", DeviceID: "device-1"})
	require.NoError(t, err)
	assert.Equal(t, "fresh-refresh", tok.Value)
	assert.Equal(t, "device-1", f.lastDeviceID.Load())

	_, err = a.Login(context.Background(), auth.Credentials{Username: "user", Password: "wrong"})
	assert.Error(t, err)

	_, err = a.Login(context.Background(), auth.Credentials{})
	assert.Error(t, err)
}

func TestAuthenticator_Build(t *testing.T) {
	f := newFakeSpotify(t)
	a := f.authenticator(t)

	t.Run("valid stored refresh token", func(t *testing.T) {
		tok, err := a.FromStored(context.Background(), "fresh-refresh")
		require.NoError(t, err)
		c, err := a.Build(context.Background(), tok)
		require.NoError(t, err)
		assert.NotNil(t, c)
	})

	t.Run("stale stored refresh token is rejected", func(t *testing.T) {
		tok, err := a.FromStored(context.Background(), "stale-refresh")
		require.NoError(t, err)
		_, err = a.Build(context.Background(), tok)
		require.Error(t, err)
		assert.True(t, crdb.Is(err, auth.ErrTokenRejected))
	})

	t.Run("unusable access token is rejected", func(t *testing.T) {
		_, err := a.Build(context.Background(), auth.Token{Value: "x", Payload: nil})
		require.Error(t, err)
		assert.True(t, crdb.Is(err, auth.ErrTokenRejected))
	})
}

func TestAuthenticator_BuildTransportError(t *testing.T) {
	f := newFakeSpotify(t)
	a := f.authenticator(t)
	f.server.Close()

	_, err := a.Build(context.Background(), auth.Token{Value: "fresh-refresh"})
	require.Error(t, err)
	assert.False(t, crdb.Is(err, auth.ErrTokenRejected))
}

func TestAuthenticator_BuildTimesOut(t *testing.T) {
	f := newFakeSpotify(t)
	f.meDelay = 500 * time.Millisecond
	f.timeout = 50 * time.Millisecond
	a := f.authenticator(t)

	tok, err := a.FromStored(context.Background(), "fresh-refresh")
	require.NoError(t, err)

	start := time.Now()
	_, err = a.Build(context.Background(), tok)
	require.Error(t, err)
	assert.False(t, crdb.Is(err, auth.ErrTokenRejected))
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

type memoryStore struct {
	token string
}

func (m *memoryStore) Load() (string, error) { return m.token, nil }
func (m *memoryStore) Save(t string) error  { m.token = t; return nil }
func (m *memoryStore) Clear() error         { m.token = ""; return nil }

func TestSessionWithSpotify_StaleTokenFallsBack(t *testing.T) {
	f := newFakeSpotify(t)
	a := f.authenticator(t)
	store := &memoryStore{token: "stale-refresh"}
	session := auth.NewSession(a, a, store, auth.Credentials{Username: "user", Password: "pass", DeviceID: "device-1"})

	client, err := session.Authenticate(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, client)
	assert.Equal(t, int32(1), f.loginCalls.Load())
	assert.Equal(t, "fresh-refresh", store.token)
}

func TestClient_SearchTracks(t *testing.T) {
	f := newFakeSpotify(t)
	c := buildClient(t, f)

	tracks, err := c.SearchTracks(context.Background(), "foo", 30)
	require.NoError(t, err)
	require.Len(t, tracks, 2)

	assert.Equal(t, "t1", tracks[0].ID)
	assert.Equal(t, "First", tracks[0].Title)
	assert.Equal(t, "Artist A, Artist B", tracks[0].Artist)
	assert.Equal(t, int64(185400), tracks[0].DurationMillis)
	assert.True(t, tracks[0].Explicit)
	require.Len(t, tracks[0].AlbumArtRefs, 1)
	assert.Equal(t, "https://img.example/640.jpg", tracks[0].AlbumArtRefs[0].URL)

	_, err = c.SearchTracks(context.Background(), "  ", 30)
	assert.Error(t, err)
}

func TestClient_SearchTracksServerError(t *testing.T) {
	f := newFakeSpotify(t)
	c := buildClient(t, f)
	f.searchStatus = http.StatusServiceUnavailable

	_, err := c.SearchTracks(context.Background(), "foo", 30)
	require.Error(t, err)
	assert.True(t, crdb.Is(err, catalog.ErrFetch))
	assert.Equal(t, int32(3), f.searchCalls.Load(), "server errors are retried")
}

func TestClient_FetchTrack(t *testing.T) {
	f := newFakeSpotify(t)
	c := buildClient(t, f)

	tr, err := c.FetchTrack(context.Background(), "https://open.spotify.com/track/t1?si=abc")
	require.NoError(t, err)
	assert.Equal(t, "t1", tr.ID)

	_, err = c.FetchTrack(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, crdb.Is(err, catalog.ErrUnknownTrack))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "rate limit error with 429", err: errors.New("Error 429: rate limit exceeded"), expected: true},
		{name: "server error 502", err: errors.New("502 Bad Gateway"), expected: true},
		{name: "api error 503", err: fmt.Errorf("wrapped: %w", spotifyError(503)), expected: true},
		{name: "api error 401", err: spotifyError(401), expected: false},
		{name: "client error 400", err: errors.New("400 Bad Request"), expected: false},
		{name: "generic error", err: errors.New("something went wrong"), expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isRetryable(tt.err))
		})
	}
}

func TestIsRejection(t *testing.T) {
	assert.True(t, isRejection(spotifyError(401)))
	assert.True(t, isRejection(spotifyError(403)))
	assert.False(t, isRejection(spotifyError(500)))
	assert.False(t, isRejection(errors.New("connection refused")))
}

func spotifyError(status int) error {
	return spotifyapi.Error{Status: status, Message: http.StatusText(status)}
}
