package stores

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradementor/console/internal/domain"
)

func testLog() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func openTrade(id string) domain.Trade {
	return domain.Trade{
		ID:       id,
		Symbol:   "EURUSD",
		Status:   domain.StatusOpen,
		OpenTime: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func closedTrade(id string, pnl float64) domain.Trade {
	closeTime := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	return domain.Trade{
		ID:        id,
		Symbol:    "EURUSD",
		Status:    domain.StatusClosed,
		OpenTime:  time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		CloseTime: &closeTime,
		PnL:       &pnl,
	}
}

func TestTrades_ApplyClosedMovesAtomically(t *testing.T) {
	s := NewTradesStore(testLog())
	s.Replace([]domain.Trade{openTrade("t1"), openTrade("t2")}, nil)

	s.ApplyClosed(closedTrade("t1", 50))

	open := s.Open()
	closed := s.Closed()
	require.Len(t, open, 1)
	assert.Equal(t, "t2", open[0].ID)
	require.Len(t, closed, 1)
	assert.Equal(t, "t1", closed[0].ID)
}

func TestTrades_ApplyClosedIsIdempotent(t *testing.T) {
	s := NewTradesStore(testLog())
	s.Replace([]domain.Trade{openTrade("t1")}, nil)

	s.ApplyClosed(closedTrade("t1", 50))
	s.ApplyClosed(closedTrade("t1", 50))

	assert.Empty(t, s.Open())
	assert.Len(t, s.Closed(), 1)
}

func TestTrades_UpdateWithClosedStatusMovesToClosedList(t *testing.T) {
	s := NewTradesStore(testLog())
	s.ApplyOpened(openTrade("t1"))

	// The close races the update on the wire; the update arrives carrying
	// the terminal status and the final P&L.
	s.ApplyUpdated(closedTrade("t1", -12.5))

	assert.Empty(t, s.Open(), "closed trade must not remain in the open list")
	closed := s.Closed()
	require.Len(t, closed, 1)
	assert.Equal(t, domain.StatusClosed, closed[0].Status)
	require.NotNil(t, closed[0].PnL)
	assert.Equal(t, -12.5, *closed[0].PnL)
}

func TestTrades_UpdateForUnknownClosedTradeLandsInClosedList(t *testing.T) {
	s := NewTradesStore(testLog())

	s.ApplyUpdated(closedTrade("t9", 30))

	assert.Empty(t, s.Open())
	assert.Len(t, s.Closed(), 1)
}

func TestTrades_OpenEventDoesNotResurrectClosedTrade(t *testing.T) {
	s := NewTradesStore(testLog())
	s.ApplyClosed(closedTrade("t1", -20))

	// Out-of-order replay of the original open event.
	s.ApplyOpened(openTrade("t1"))

	assert.Empty(t, s.Open())
	require.Len(t, s.Closed(), 1)
	assert.Equal(t, domain.StatusClosed, s.Closed()[0].Status)
}

func TestTrades_ApplyOpenedIsIdempotent(t *testing.T) {
	s := NewTradesStore(testLog())
	s.ApplyOpened(openTrade("t1"))
	s.ApplyOpened(openTrade("t1"))

	assert.Len(t, s.Open(), 1)
}

func TestTrades_NewestFirstOrdering(t *testing.T) {
	s := NewTradesStore(testLog())
	s.ApplyOpened(openTrade("t1"))
	s.ApplyOpened(openTrade("t2"))

	open := s.Open()
	require.Len(t, open, 2)
	assert.Equal(t, "t2", open[0].ID)
	assert.Equal(t, "t1", open[1].ID)
}

func TestTrades_PatchPreservesExistingFields(t *testing.T) {
	s := NewTradesStore(testLog())
	trade := openTrade("t1")
	score := 70
	trade.AIScore = &score
	trade.AIAnalysis = map[string]any{"setup": "breakout"}
	s.Replace([]domain.Trade{trade}, nil)

	// Patch carries only a review; score and analysis must survive.
	ok := s.ApplyPatch("t1", domain.TradePatch{
		AIReview: map[string]any{"verdict": "disciplined entry"},
	})
	require.True(t, ok)

	got, found := s.Get("t1")
	require.True(t, found)
	require.NotNil(t, got.AIScore)
	assert.Equal(t, 70, *got.AIScore)
	assert.Equal(t, "breakout", got.AIAnalysis["setup"])
	assert.Equal(t, "disciplined entry", got.AIReview["verdict"])
}

func TestTrades_PatchUnknownTrade(t *testing.T) {
	s := NewTradesStore(testLog())
	assert.False(t, s.ApplyPatch("ghost", domain.TradePatch{}))
}

func TestTrades_VersionMovesOnMutation(t *testing.T) {
	s := NewTradesStore(testLog())
	v0 := s.Version()

	s.ApplyOpened(openTrade("t1"))
	v1 := s.Version()
	assert.Greater(t, v1, v0)

	s.ApplyClosed(closedTrade("t1", 10))
	assert.Greater(t, s.Version(), v1)
}

func TestTrades_ReplaceIfVersionRejectsStaleFetch(t *testing.T) {
	s := NewTradesStore(testLog())
	observed := s.Version()

	// A push event lands while the fetch is in flight.
	s.ApplyOpened(openTrade("t-live"))

	applied := s.ReplaceIfVersion([]domain.Trade{openTrade("t-fetched")}, nil, observed)
	assert.False(t, applied)
	require.Len(t, s.Open(), 1)
	assert.Equal(t, "t-live", s.Open()[0].ID)

	// Refetch with the current version applies.
	applied = s.ReplaceIfVersion([]domain.Trade{openTrade("t-fetched")}, nil, s.Version())
	assert.True(t, applied)
	assert.Equal(t, "t-fetched", s.Open()[0].ID)
}

func TestTrades_SubscribersNotified(t *testing.T) {
	s := NewTradesStore(testLog())
	calls := 0
	unsub := s.Subscribe(func() { calls++ })
	defer unsub()

	s.ApplyOpened(openTrade("t1"))
	s.ApplyClosed(closedTrade("t1", 5))
	assert.Equal(t, 2, calls)

	unsub()
	s.ApplyOpened(openTrade("t2"))
	assert.Equal(t, 2, calls)
}

func TestTrades_SnapshotsAreCopies(t *testing.T) {
	s := NewTradesStore(testLog())
	s.ApplyOpened(openTrade("t1"))

	snapshot := s.Open()
	snapshot[0].Symbol = "MUTATED"

	got, _ := s.Get("t1")
	assert.Equal(t, "EURUSD", got.Symbol)
}
