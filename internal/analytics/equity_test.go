package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradementor/console/internal/domain"
)

func closedAt(id string, openTime time.Time, pnl float64) domain.Trade {
	closeTime := openTime.Add(2 * time.Hour)
	return domain.Trade{
		ID:        id,
		Symbol:    "EURUSD",
		Status:    domain.StatusClosed,
		OpenTime:  openTime,
		CloseTime: &closeTime,
		PnL:       &pnl,
	}
}

func TestEquityCurve_Empty(t *testing.T) {
	assert.Empty(t, EquityCurve(nil))
	assert.Empty(t, EquityCurve([]domain.Trade{}))
}

func TestEquityCurve_IgnoresOpenTrades(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	trades := []domain.Trade{
		closedAt("t1", base, 10),
		{ID: "t2", Status: domain.StatusOpen, OpenTime: base.Add(time.Hour)},
	}
	assert.Len(t, EquityCurve(trades), 1)
}

func TestEquityCurve_FinalValueEqualsTotalPnL(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	trades := []domain.Trade{
		closedAt("t3", base.Add(48*time.Hour), 7.333),
		closedAt("t1", base, 10.111),
		closedAt("t2", base.Add(24*time.Hour), -4.222),
	}

	curve := EquityCurve(trades)
	require.Len(t, curve, 3)
	// Sorted ascending by open time regardless of input order.
	assert.Equal(t, 10.11, curve[0].Value)
	assert.Equal(t, 5.89, curve[1].Value)
	// Rounded once at the end, not per step: 10.111-4.222+7.333 = 13.222.
	assert.Equal(t, 13.22, curve[2].Value)
}

func TestEquityCurve_NilPnLContributesZero(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	noPnL := closedAt("t2", base.Add(time.Hour), 0)
	noPnL.PnL = nil
	trades := []domain.Trade{closedAt("t1", base, 25), noPnL}

	curve := EquityCurve(trades)
	require.Len(t, curve, 2)
	assert.Equal(t, 25.0, curve[0].Value)
	assert.Equal(t, 25.0, curve[1].Value)
}

func TestDedupe_LastOccurrenceWins(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	older := closedAt("t1", base, 10)
	newer := closedAt("t1", base, 99)
	unique := closedAt("t2", base, 5)

	deduped, dropped := Dedupe([]domain.Trade{older, unique, newer})
	assert.Equal(t, 1, dropped)
	require.Len(t, deduped, 2)
	assert.Equal(t, "t2", deduped[0].ID)
	assert.Equal(t, 99.0, *deduped[1].PnL)
}

func TestDedupe_CleanInput(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	trades := []domain.Trade{closedAt("t1", base, 1), closedAt("t2", base, 2)}

	deduped, dropped := Dedupe(trades)
	assert.Equal(t, 0, dropped)
	assert.Equal(t, trades, deduped)
}
