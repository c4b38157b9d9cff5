package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradementor/console/internal/domain"
)

func TestSummarize(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	t1 := closedAt("t1", base, 30)
	r1 := 1.5
	t1.PnLR = &r1
	t2 := closedAt("t2", base.Add(time.Hour), -10)
	r2 := -0.5
	t2.PnLR = &r2

	summary := Summarize([]domain.Trade{t1, t2})
	assert.Equal(t, 2, summary.TradeCount)
	assert.Equal(t, 50.0, summary.WinRate)
	assert.Equal(t, 20.0, summary.TotalPnL)
	assert.Equal(t, 0.5, summary.Expectancy)
	// Sample stddev of {1.5, -0.5} is sqrt(2) ~ 1.41.
	assert.InDelta(t, 1.41, summary.RStdDev, 0.01)
}

func TestSummarize_Empty(t *testing.T) {
	summary := Summarize(nil)
	assert.Zero(t, summary.TradeCount)
	assert.Zero(t, summary.WinRate)
	assert.Zero(t, summary.Expectancy)
}

func TestSummarize_SingleRTrade(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	t1 := closedAt("t1", base, 10)
	r := 2.0
	t1.PnLR = &r

	summary := Summarize([]domain.Trade{t1})
	assert.Equal(t, 2.0, summary.Expectancy)
	assert.Zero(t, summary.RStdDev, "stddev needs at least two samples")
}

func TestPatternCosts(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	loser1 := closedAt("t1", base, -50)
	loser1.Flags = []domain.BehavioralFlag{
		{Pattern: domain.PatternRevengeTrading, Severity: domain.SeverityHigh},
		{Pattern: domain.PatternOvertrading, Severity: domain.SeverityMedium},
	}
	loser2 := closedAt("t2", base, -30)
	loser2.Flags = []domain.BehavioralFlag{
		{Pattern: domain.PatternRevengeTrading, Severity: domain.SeverityHigh},
	}
	winner := closedAt("t3", base, 100)
	winner.Flags = []domain.BehavioralFlag{
		{Pattern: domain.PatternFOMOEntry, Severity: domain.SeverityLow},
	}

	costs := PatternCosts([]domain.Trade{loser1, loser2, winner})
	require.Len(t, costs, 2, "winning trades contribute no cost")

	assert.Equal(t, domain.PatternRevengeTrading, costs[0].Pattern)
	assert.Equal(t, 80.0, costs[0].TotalCost)
	assert.Equal(t, 2, costs[0].Occurrences)

	assert.Equal(t, domain.PatternOvertrading, costs[1].Pattern)
	assert.Equal(t, 50.0, costs[1].TotalCost)
}

func TestPatternCosts_Empty(t *testing.T) {
	assert.Empty(t, PatternCosts(nil))
}
