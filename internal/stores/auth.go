package stores

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/tradementor/console/internal/clients/mentor"
	"github.com/tradementor/console/internal/domain"
	"github.com/tradementor/console/internal/storage"
)

// ErrSessionExpired is returned by Restore when the persisted token has
// passed its expiry claim.
var ErrSessionExpired = errors.New("stored session has expired")

// authAPI is the backend surface the auth store needs.
type authAPI interface {
	Login(ctx context.Context, username, password string) (mentor.AuthResult, error)
	Register(ctx context.Context, name, email, password string) (mentor.AuthResult, error)
	SetToken(token string)
}

// credentialStore persists the session between runs.
type credentialStore interface {
	SaveCredentials(token string, user domain.User) error
	LoadCredentials() (string, domain.User, error)
	ClearCredentials() error
}

// AuthStore owns the authenticated session: the access token, the user,
// and their persistence across restarts.
type AuthStore struct {
	api   authAPI
	creds credentialStore
	log   zerolog.Logger

	mu       sync.RWMutex
	token    string
	user     domain.User
	loggedIn bool

	feed changeFeed
}

// NewAuthStore creates an auth store backed by the given API and
// credential persistence.
func NewAuthStore(api authAPI, creds credentialStore, log zerolog.Logger) *AuthStore {
	return &AuthStore{
		api:   api,
		creds: creds,
		log:   log.With().Str("component", "auth_store").Logger(),
	}
}

// Subscribe registers a listener invoked after every state change.
func (s *AuthStore) Subscribe(fn func()) func() {
	return s.feed.subscribe(fn)
}

// IsLoggedIn reports whether a session is active.
func (s *AuthStore) IsLoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loggedIn
}

// User returns the authenticated user. Zero value when logged out.
func (s *AuthStore) User() domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Token returns the current access token. Empty when logged out.
func (s *AuthStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *AuthStore) installSession(result mentor.AuthResult) {
	s.api.SetToken(result.AccessToken)
	if err := s.creds.SaveCredentials(result.AccessToken, result.User); err != nil {
		// A failed save only costs the warm start; the live session works.
		s.log.Warn().Err(err).Msg("Failed to persist session")
	}
	s.mu.Lock()
	s.token = result.AccessToken
	s.user = result.User
	s.loggedIn = true
	s.mu.Unlock()
	s.feed.notify()
}

// Login authenticates and installs the resulting session.
func (s *AuthStore) Login(ctx context.Context, username, password string) error {
	result, err := s.api.Login(ctx, username, password)
	if err != nil {
		return err
	}
	s.installSession(result)
	s.log.Info().Str("user_id", result.User.ID).Msg("Logged in")
	return nil
}

// Register creates an account and installs the resulting session.
func (s *AuthStore) Register(ctx context.Context, name, email, password string) error {
	result, err := s.api.Register(ctx, name, email, password)
	if err != nil {
		return err
	}
	s.installSession(result)
	s.log.Info().Str("user_id", result.User.ID).Msg("Registered new account")
	return nil
}

// Logout clears the session locally and from persistence.
func (s *AuthStore) Logout() {
	s.api.SetToken("")
	if err := s.creds.ClearCredentials(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to clear persisted session")
	}
	s.mu.Lock()
	s.token = ""
	s.user = domain.User{}
	s.loggedIn = false
	s.mu.Unlock()
	s.feed.notify()
	s.log.Info().Msg("Logged out")
}

// Restore loads the persisted session. The token is parsed without
// signature verification, only to read its expiry claim: the backend
// remains the authority on validity, this check just avoids starting with
// a token that is certainly dead. Returns storage.ErrNotFound when no
// session was saved, ErrSessionExpired when the token is past its expiry.
func (s *AuthStore) Restore() error {
	token, user, err := s.creds.LoadCredentials()
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to load persisted session: %w", err)
	}

	if expired, err := tokenExpired(token); err != nil {
		s.log.Warn().Err(err).Msg("Persisted token is unparseable, discarding")
		_ = s.creds.ClearCredentials()
		return ErrSessionExpired
	} else if expired {
		_ = s.creds.ClearCredentials()
		return ErrSessionExpired
	}

	s.api.SetToken(token)
	s.mu.Lock()
	s.token = token
	s.user = user
	s.loggedIn = true
	s.mu.Unlock()
	s.feed.notify()
	s.log.Info().Str("user_id", user.ID).Msg("Restored persisted session")
	return nil
}

func tokenExpired(token string) (bool, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return false, err
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil {
		return false, err
	}
	if exp == nil {
		// No expiry claim; let the backend decide.
		return false, nil
	}
	return exp.Before(time.Now()), nil
}
