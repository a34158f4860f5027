package spotify

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/osa030/songbox/internal/app/auth"
	"github.com/osa030/songbox/internal/domain/catalog"
)

// DeviceIDHeader carries the device identifier on login requests.
const DeviceIDHeader = "X-Device-ID"

const defaultTimeout = 30 * time.Second

// Config represents Spotify client configuration.
type Config struct {
	ClientID          string
	ClientSecret      string
	Market            string
	TokenURL          string        // defaults to the Spotify accounts token endpoint
	APIURL            string        // defaults to the Spotify Web API
	RequestsPerSecond float64       // client side rate limit
	Burst             int
	Timeout           time.Duration // per HTTP request, token requests included
}

// Authenticator obtains tokens and builds catalog clients from them.
// A stored token is an OAuth2 refresh token; a fresh login uses the password grant.
type Authenticator struct {
	cfg    Config
	oauth  *oauth2.Config
	client *http.Client // base HTTP client for token requests
}

// Ensure Authenticator implements the session collaborators.
var (
	_ auth.CredentialProvider = (*Authenticator)(nil)
	_ auth.ClientBuilder      = (*Authenticator)(nil)
)

// NewAuthenticator creates a new Authenticator.
func NewAuthenticator(cfg Config) (*Authenticator, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify client credentials are required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = spotifyauth.TokenURL
	}

	return &Authenticator{
		cfg: cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyauth.AuthURL,
				TokenURL: tokenURL,
			},
			Scopes: []string{
				spotifyauth.ScopeUserReadPrivate,
				spotifyauth.ScopeStreaming,
			},
		},
		client: &http.Client{Timeout: timeout},
	}, nil
}

// FromStored wraps a stored refresh token. No network call is made.
func (a *Authenticator) FromStored(ctx context.Context, value string) (auth.Token, error) {
	if value == "" {
		return auth.Token{}, errors.New("stored token is empty")
	}
	return auth.Token{
		Value:   value,
		Payload: &oauth2.Token{RefreshToken: value},
	}, nil
}

// Login obtains a new token with username and password.
func (a *Authenticator) Login(ctx context.Context, creds auth.Credentials) (auth.Token, error) {
	if creds.Username == "" || creds.Password == "" {
		return auth.Token{}, errors.New("username and password are required")
	}

	httpClient := &http.Client{
		Transport: &deviceTransport{deviceID: creds.DeviceID, base: a.client.Transport},
		Timeout:   a.client.Timeout,
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)

	tok, err := a.oauth.PasswordCredentialsToken(ctx, creds.Username, creds.Password)
	if err != nil {
		return auth.Token{}, errors.Wrap(err, "password grant failed")
	}

	// Persist the refresh token when the service issues one; otherwise the access token
	// is the only credential there is.
	value := tok.RefreshToken
	if value == "" {
		value = tok.AccessToken
	}
	zlog.Info().Msgf("obtained new token: expires=%s", tok.Expiry.Format("15:04:05"))
	return auth.Token{Value: value, Payload: tok}, nil
}

// Build creates a catalog client for the token and verifies the service accepts it.
func (a *Authenticator) Build(ctx context.Context, token auth.Token) (catalog.Catalog, error) {
	tok, ok := token.Payload.(*oauth2.Token)
	if !ok || tok == nil {
		tok = &oauth2.Token{RefreshToken: token.Value}
	}

	// The client refreshes tokens long after the build context is gone.
	httpClient := a.oauth.Client(context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, a.client), tok)
	httpClient.Timeout = a.client.Timeout
	client := newClient(httpClient, a.cfg)

	user, err := client.client.CurrentUser(ctx)
	if err != nil {
		if isRejection(err) {
			return nil, errors.Mark(errors.Wrap(err, "token rejected by spotify"), auth.ErrTokenRejected)
		}
		return nil, errors.Wrap(err, "failed to verify token")
	}

	zlog.Info().Msgf("authenticated with spotify: user=%s", user.ID)
	return client, nil
}

// isRejection reports whether err means the service refused the token,
// as opposed to a transport or server failure.
func isRejection(err error) bool {
	var se spotify.Error
	if errors.As(err, &se) {
		return se.Status == http.StatusUnauthorized || se.Status == http.StatusForbidden
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		return re.Response != nil && re.Response.StatusCode >= 400 && re.Response.StatusCode < 500
	}
	return false
}

// deviceTransport adds the device identifier to token requests.
type deviceTransport struct {
	deviceID string
	base     http.RoundTripper
}

func (t *deviceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	if t.deviceID == "" {
		return base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set(DeviceIDHeader, t.deviceID)
	return base.RoundTrip(clone)
}
