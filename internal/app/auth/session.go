// Package auth provides the authentication session that turns a stored or freshly
// issued token into an authenticated catalog client.
package auth

import (
	"context"
	"strings"
	"unicode"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/songbox/internal/domain/catalog"
)

var (
	// ErrTokenRejected is returned by a ClientBuilder when the service refuses a token.
	ErrTokenRejected = errors.New("token rejected")
	// ErrAuthFetch marks failures to obtain a token at all.
	ErrAuthFetch = errors.New("failed to obtain token")
	// ErrAuthentication marks a session that could not authenticate.
	ErrAuthentication = errors.New("authentication failed")
)

// Origin tells where a token came from.
type Origin int

const (
	OriginStored Origin = iota // Loaded from token storage
	OriginFresh                // Issued by a credential login
)

// Token is an opaque bearer credential.
type Token struct {
	Value   string // Persistable credential string
	Origin  Origin
	Payload any // Provider specific token data, never persisted
}

// Credentials are used for a fresh login.
type Credentials struct {
	Username string
	Password string
	DeviceID string
}

// CredentialProvider turns stored values or credentials into tokens.
type CredentialProvider interface {
	FromStored(ctx context.Context, value string) (Token, error)
	Login(ctx context.Context, creds Credentials) (Token, error)
}

// ClientBuilder builds a catalog client from a token.
// A refused token is reported with an error marked ErrTokenRejected.
type ClientBuilder interface {
	Build(ctx context.Context, token Token) (catalog.Catalog, error)
}

// TokenStore persists the token string between runs.
// Load returns an empty string when nothing is stored.
type TokenStore interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// Session drives authentication from NoToken to Authenticated or Failed.
// Authenticate is not safe for concurrent use; callers serialize it.
type Session struct {
	provider CredentialProvider
	builder  ClientBuilder
	store    TokenStore
	creds    Credentials

	state  State
	token  Token
	client catalog.Catalog
}

// NewSession creates a new authentication session.
func NewSession(provider CredentialProvider, builder ClientBuilder, store TokenStore, creds Credentials) *Session {
	return &Session{
		provider: provider,
		builder:  builder,
		store:    store,
		creds:    creds,
		state:    StateNoToken,
	}
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Client returns the authenticated client, or nil before authentication succeeded.
func (s *Session) Client() catalog.Catalog {
	return s.client
}

// Reset drops the held token and client and returns to NoToken.
func (s *Session) Reset() {
	s.state = StateNoToken
	s.token = Token{}
	s.client = nil
}

// Authenticate runs the state machine to completion and returns the client.
func (s *Session) Authenticate(ctx context.Context) (catalog.Catalog, error) {
	if s.state == StateAuthenticated {
		return s.client, nil
	}
	s.Reset()

	for {
		var next State
		var err error

		switch s.state {
		case StateNoToken:
			next, err = s.acquire(ctx)
		case StateHaveStoredToken:
			next, err = s.buildWithStored(ctx)
		case StateHaveFreshToken:
			next, err = s.buildWithFresh(ctx)
		case StateAuthenticated:
			return s.client, nil
		default:
			return nil, errors.AssertionFailedf("authenticate called in state %s", s.state)
		}

		if terr := s.transition(next); terr != nil {
			return nil, terr
		}
		if err != nil {
			return nil, err
		}
	}
}

// acquire picks the stored token when it is usable, otherwise logs in.
func (s *Session) acquire(ctx context.Context) (State, error) {
	stored, err := s.store.Load()
	if err != nil {
		zlog.Warn().Err(err).Msg("failed to load stored token, logging in with credentials")
		stored = ""
	}

	if stored != "" {
		if verr := ValidateTokenFormat(stored); verr != nil {
			zlog.Warn().Msgf("ignoring malformed stored token: %v", verr)
		} else {
			zlog.Info().Msg("trying to login with existing token")
			tok, err := s.provider.FromStored(ctx, stored)
			if err != nil {
				return StateFailed, errors.Mark(errors.Wrap(err, "failed to use stored token"), ErrAuthFetch)
			}
			tok.Origin = OriginStored
			s.token = tok
			return StateHaveStoredToken, nil
		}
	}

	return s.loginFresh(ctx)
}

// buildWithStored tries the stored token. A rejection clears storage and falls back
// to one credential login.
func (s *Session) buildWithStored(ctx context.Context) (State, error) {
	client, err := s.builder.Build(ctx, s.token)
	if err == nil {
		s.client = client
		return StateAuthenticated, nil
	}
	if !errors.Is(err, ErrTokenRejected) {
		return StateFailed, errors.Mark(errors.Wrap(err, "failed to build client with stored token"), ErrAuthentication)
	}

	zlog.Warn().Msgf("stored token rejected, fetching new token: %v", err)
	if cerr := s.store.Clear(); cerr != nil {
		zlog.Warn().Err(cerr).Msg("failed to clear stored token")
	}
	s.token = Token{}
	return s.loginFresh(ctx)
}

// buildWithFresh tries a freshly issued token. There is no further fallback.
func (s *Session) buildWithFresh(ctx context.Context) (State, error) {
	client, err := s.builder.Build(ctx, s.token)
	if err != nil {
		return StateFailed, errors.Mark(errors.Wrap(err, "failed to build client with new token"), ErrAuthentication)
	}

	if serr := s.store.Save(s.token.Value); serr != nil {
		zlog.Warn().Err(serr).Msg("failed to persist new token")
	}
	s.client = client
	return StateAuthenticated, nil
}

// loginFresh obtains a new token from credentials. Login failures are not retried.
func (s *Session) loginFresh(ctx context.Context) (State, error) {
	zlog.Info().Msg("fetching new token")
	tok, err := s.provider.Login(ctx, s.creds)
	if err != nil {
		return StateFailed, errors.Mark(errors.Wrap(err, "login failed"), ErrAuthFetch)
	}
	tok.Origin = OriginFresh
	s.token = tok
	return StateHaveFreshToken, nil
}

func (s *Session) transition(next State) error {
	if !canTransition(s.state, next) {
		return errors.AssertionFailedf("illegal auth transition %s -> %s", s.state, next)
	}
	zlog.Debug().Msgf("auth state changed: from=%s to=%s", s.state, next)
	s.state = next
	return nil
}

// ValidateTokenFormat performs the local checks a stored token must pass before use.
func ValidateTokenFormat(token string) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("token is empty")
	}
	if strings.IndexFunc(token, unicode.IsSpace) >= 0 {
		return errors.New("token contains whitespace")
	}
	return nil
}
