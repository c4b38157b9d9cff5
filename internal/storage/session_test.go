package storage

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradementor/console/internal/domain"
)

func setupStore(t *testing.T) *SessionStore {
	log := zerolog.New(nil).Level(zerolog.Disabled)
	store, err := Open(t.TempDir(), log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCredentialsRoundTrip(t *testing.T) {
	store := setupStore(t)

	user := domain.User{ID: "u1", Name: "Dana", Email: "dana@example.com"}
	require.NoError(t, store.SaveCredentials("tok-abc", user))

	token, got, err := store.LoadCredentials()
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", token)
	assert.Equal(t, user, got)
}

func TestLoadCredentials_NotFound(t *testing.T) {
	store := setupStore(t)

	_, _, err := store.LoadCredentials()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClearCredentials(t *testing.T) {
	store := setupStore(t)

	require.NoError(t, store.SaveCredentials("tok", domain.User{ID: "u1"}))
	require.NoError(t, store.ClearCredentials())

	_, _, err := store.LoadCredentials()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTradeSnapshotRoundTrip(t *testing.T) {
	store := setupStore(t)

	pnl := 42.5
	closeTime := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	snap := TradeSnapshot{
		Open: []domain.Trade{{ID: "t1", Symbol: "EURUSD", Status: domain.StatusOpen}},
		Closed: []domain.Trade{{
			ID: "t2", Symbol: "GBPUSD", Status: domain.StatusClosed,
			PnL: &pnl, CloseTime: &closeTime,
		}},
	}
	require.NoError(t, store.SaveTradeSnapshot(snap))

	got, err := store.LoadTradeSnapshot()
	require.NoError(t, err)
	require.Len(t, got.Open, 1)
	require.Len(t, got.Closed, 1)
	assert.Equal(t, "t1", got.Open[0].ID)
	require.NotNil(t, got.Closed[0].PnL)
	assert.Equal(t, 42.5, *got.Closed[0].PnL)
	assert.False(t, got.SavedAt.IsZero())
}

func TestAlertSnapshotOverwrite(t *testing.T) {
	store := setupStore(t)

	first := AlertSnapshot{Alerts: []domain.BehavioralAlert{{ID: "a1"}}}
	require.NoError(t, store.SaveAlertSnapshot(first))

	second := AlertSnapshot{Alerts: []domain.BehavioralAlert{{ID: "a2"}, {ID: "a3"}}}
	require.NoError(t, store.SaveAlertSnapshot(second))

	got, err := store.LoadAlertSnapshot()
	require.NoError(t, err)
	require.Len(t, got.Alerts, 2)
	assert.Equal(t, "a2", got.Alerts[0].ID)
}
