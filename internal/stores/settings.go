package stores

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tradementor/console/internal/clients/mentor"
	"github.com/tradementor/console/internal/domain"
)

// settingsAPI is the backend surface the settings store needs.
type settingsAPI interface {
	AccountInfo(ctx context.Context) (domain.TradingAccount, error)
	ConnectAccount(ctx context.Context, creds mentor.BrokerCredentials) (domain.TradingAccount, error)
	DisconnectAccount(ctx context.Context) error
	GetRules(ctx context.Context) (domain.TradingRules, error)
	UpdateRules(ctx context.Context, rules domain.TradingRules) (domain.TradingRules, error)
	Readiness(ctx context.Context) (domain.Readiness, error)
}

// SettingsStore holds the broker account link, the user's trading rules,
// and the latest readiness assessment.
type SettingsStore struct {
	api settingsAPI
	log zerolog.Logger

	mu        sync.RWMutex
	account   domain.TradingAccount
	rules     domain.TradingRules
	readiness domain.Readiness

	feed changeFeed
}

// NewSettingsStore creates a settings store backed by the given API.
func NewSettingsStore(api settingsAPI, log zerolog.Logger) *SettingsStore {
	return &SettingsStore{
		api: api,
		log: log.With().Str("component", "settings_store").Logger(),
	}
}

// Subscribe registers a listener invoked after every state change.
func (s *SettingsStore) Subscribe(fn func()) func() {
	return s.feed.subscribe(fn)
}

// Account returns the current broker connection state.
func (s *SettingsStore) Account() domain.TradingAccount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account
}

// Rules returns the current trading rules.
func (s *SettingsStore) Rules() domain.TradingRules {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules
}

// Readiness returns the latest readiness assessment.
func (s *SettingsStore) Readiness() domain.Readiness {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readiness
}

// SetReadiness installs a pushed readiness assessment.
func (s *SettingsStore) SetReadiness(r domain.Readiness) {
	s.mu.Lock()
	s.readiness = r
	s.mu.Unlock()
	s.feed.notify()
}

// RefreshAccount fetches the broker connection state from the backend.
func (s *SettingsStore) RefreshAccount(ctx context.Context) error {
	account, err := s.api.AccountInfo(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch account info: %w", err)
	}
	s.mu.Lock()
	s.account = account
	s.mu.Unlock()
	s.feed.notify()
	return nil
}

// RefreshRules fetches the trading rules from the backend.
func (s *SettingsStore) RefreshRules(ctx context.Context) error {
	rules, err := s.api.GetRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch trading rules: %w", err)
	}
	s.mu.Lock()
	s.rules = rules
	s.mu.Unlock()
	s.feed.notify()
	return nil
}

// RefreshReadiness fetches the readiness assessment from the backend.
func (s *SettingsStore) RefreshReadiness(ctx context.Context) error {
	readiness, err := s.api.Readiness(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch readiness: %w", err)
	}
	s.mu.Lock()
	s.readiness = readiness
	s.mu.Unlock()
	s.feed.notify()
	return nil
}

// ConnectBroker submits broker credentials. A response that comes back
// HTTP-200 but connected=false is still a failure for the caller: the
// rejected state is stored for display and an error is returned.
func (s *SettingsStore) ConnectBroker(ctx context.Context, creds mentor.BrokerCredentials) error {
	account, err := s.api.ConnectAccount(ctx, creds)
	if err != nil {
		return fmt.Errorf("failed to connect broker account: %w", err)
	}

	s.mu.Lock()
	s.account = account
	s.mu.Unlock()
	s.feed.notify()

	if !account.Connected {
		msg := account.Message
		if msg == "" {
			msg = account.Status
		}
		if msg == "" {
			msg = "broker rejected the connection"
		}
		return fmt.Errorf("broker connection failed: %s", msg)
	}

	s.log.Info().Str("login", account.Login).Str("server", account.Server).Msg("Broker account connected")
	return nil
}

// DisconnectBroker drops the broker link. The remote call is best effort:
// local state always ends up disconnected, even when the backend is
// unreachable, and the method never fails.
func (s *SettingsStore) DisconnectBroker(ctx context.Context) {
	if err := s.api.DisconnectAccount(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Remote broker disconnect failed, clearing local state anyway")
	}
	s.mu.Lock()
	s.account = domain.TradingAccount{Connected: false}
	s.mu.Unlock()
	s.feed.notify()
}

// SaveRules submits updated rules and installs the backend's saved copy,
// which wins over the submitted values.
func (s *SettingsStore) SaveRules(ctx context.Context, rules domain.TradingRules) error {
	saved, err := s.api.UpdateRules(ctx, rules)
	if err != nil {
		return fmt.Errorf("failed to save trading rules: %w", err)
	}
	s.mu.Lock()
	s.rules = saved
	s.mu.Unlock()
	s.feed.notify()
	return nil
}
