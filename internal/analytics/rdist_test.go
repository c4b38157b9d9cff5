package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradementor/console/internal/domain"
)

func closedWithR(id string, r float64) domain.Trade {
	t := closedAt(id, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC), 0)
	t.PnLR = &r
	return t
}

func TestRDistribution_BoundariesAreLeftClosed(t *testing.T) {
	trades := []domain.Trade{
		closedWithR("a", -2), // lands in [-2,-1), not <-2
		closedWithR("b", 0),  // lands in [0,1)
		closedWithR("c", 1),  // lands in [1,2)
		closedWithR("d", 3),  // lands in >3R? no: [3,inf) is the top bucket
	}

	buckets := RDistribution(trades)
	require.Len(t, buckets, 7)
	byLabel := make(map[string]int)
	for _, b := range buckets {
		byLabel[b.Label] = b.Count
	}

	assert.Equal(t, 0, byLabel["< -2R"])
	assert.Equal(t, 1, byLabel["-2R to -1R"])
	assert.Equal(t, 1, byLabel["0R to 1R"])
	assert.Equal(t, 1, byLabel["1R to 2R"])
	assert.Equal(t, 1, byLabel["> 3R"])
}

func TestRDistribution_Extremes(t *testing.T) {
	trades := []domain.Trade{
		closedWithR("a", -7.5),
		closedWithR("b", 12),
	}
	buckets := RDistribution(trades)
	assert.Equal(t, 1, buckets[0].Count)
	assert.Equal(t, 1, buckets[len(buckets)-1].Count)
}

func TestRDistribution_CountConservation(t *testing.T) {
	trades := []domain.Trade{
		closedWithR("a", -2.5),
		closedWithR("b", -0.4),
		closedWithR("c", 0.9),
		closedWithR("d", 2.2),
		closedWithR("e", 5),
	}
	noR := closedAt("f", time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC), 10)
	noR.PnLR = nil
	trades = append(trades, noR)

	total := 0
	for _, b := range RDistribution(trades) {
		total += b.Count
	}
	assert.Equal(t, 5, total, "only trades with a known R are counted")
}

func TestRDistribution_EmptyHasAllBuckets(t *testing.T) {
	buckets := RDistribution(nil)
	require.Len(t, buckets, 7)
	for _, b := range buckets {
		assert.Zero(t, b.Count)
	}
}
