// Package storage persists session state between runs of the console:
// the access token, the serialized user, and last-known entity snapshots so
// the dashboard has data to show before the first fetch completes.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"

	"github.com/tradementor/console/internal/domain"
)

// Fixed keys in the kv table.
const (
	keyAuthToken     = "auth.token"
	keyAuthUser      = "auth.user"
	keyTradeSnapshot = "cache.trades"
	keyAlertSnapshot = "cache.alerts"
)

// ErrNotFound is returned when a key has never been stored.
var ErrNotFound = errors.New("storage: key not found")

// SessionStore is a durable key-value store backed by SQLite.
type SessionStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// TradeSnapshot is the cached trades-store state, encoded with msgpack.
type TradeSnapshot struct {
	Open    []domain.Trade `msgpack:"open"`
	Closed  []domain.Trade `msgpack:"closed"`
	SavedAt time.Time      `msgpack:"saved_at"`
}

// AlertSnapshot is the cached alerts-store state.
type AlertSnapshot struct {
	Alerts  []domain.BehavioralAlert `msgpack:"alerts"`
	SavedAt time.Time                `msgpack:"saved_at"`
}

// Open creates or opens the session database inside dataDir.
func Open(dataDir string, log zerolog.Logger) (*SessionStore, error) {
	path := filepath.Join(dataDir, "console.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	// Single-writer usage; WAL keeps reads cheap during snapshot writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      BLOB NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}

	return &SessionStore{
		db:  db,
		log: log.With().Str("component", "session_store").Logger(),
	}, nil
}

// Close closes the underlying database.
func (s *SessionStore) Close() error {
	return s.db.Close()
}

func (s *SessionStore) put(key string, value []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

func (s *SessionStore) get(key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

func (s *SessionStore) delete(key string) error {
	if _, err := s.db.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// SaveCredentials persists the access token and user after login/register.
func (s *SessionStore) SaveCredentials(token string, user domain.User) error {
	if err := s.put(keyAuthToken, []byte(token)); err != nil {
		return err
	}
	userJSON, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}
	return s.put(keyAuthUser, userJSON)
}

// LoadCredentials restores the persisted token and user.
// Returns ErrNotFound when no session has been stored.
func (s *SessionStore) LoadCredentials() (string, domain.User, error) {
	token, err := s.get(keyAuthToken)
	if err != nil {
		return "", domain.User{}, err
	}
	userJSON, err := s.get(keyAuthUser)
	if err != nil {
		return "", domain.User{}, err
	}
	var user domain.User
	if err := json.Unmarshal(userJSON, &user); err != nil {
		return "", domain.User{}, fmt.Errorf("failed to unmarshal stored user: %w", err)
	}
	return string(token), user, nil
}

// ClearCredentials removes the persisted session on logout.
func (s *SessionStore) ClearCredentials() error {
	if err := s.delete(keyAuthToken); err != nil {
		return err
	}
	return s.delete(keyAuthUser)
}

// SaveTradeSnapshot caches the current trades-store state for warm start.
func (s *SessionStore) SaveTradeSnapshot(snap TradeSnapshot) error {
	snap.SavedAt = time.Now().UTC()
	data, err := msgpack.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("failed to encode trade snapshot: %w", err)
	}
	return s.put(keyTradeSnapshot, data)
}

// LoadTradeSnapshot restores the cached trades-store state.
func (s *SessionStore) LoadTradeSnapshot() (TradeSnapshot, error) {
	var snap TradeSnapshot
	data, err := s.get(keyTradeSnapshot)
	if err != nil {
		return snap, err
	}
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("failed to decode trade snapshot: %w", err)
	}
	return snap, nil
}

// SaveAlertSnapshot caches the current alerts-store state for warm start.
func (s *SessionStore) SaveAlertSnapshot(snap AlertSnapshot) error {
	snap.SavedAt = time.Now().UTC()
	data, err := msgpack.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("failed to encode alert snapshot: %w", err)
	}
	return s.put(keyAlertSnapshot, data)
}

// LoadAlertSnapshot restores the cached alerts-store state.
func (s *SessionStore) LoadAlertSnapshot() (AlertSnapshot, error) {
	var snap AlertSnapshot
	data, err := s.get(keyAlertSnapshot)
	if err != nil {
		return snap, err
	}
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return snap, fmt.Errorf("failed to decode alert snapshot: %w", err)
	}
	return snap, nil
}
