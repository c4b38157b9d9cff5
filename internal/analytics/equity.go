// Package analytics derives view-ready aggregates from trade lists. Every
// function here is pure: no stores, no I/O, input slices are never mutated.
// Monetary values accumulate at full precision and are rounded to 2
// decimals only at the emitted point.
package analytics

import (
	"math"
	"sort"

	"github.com/tradementor/console/internal/domain"
)

// EquityPoint is one step of the cumulative realized P&L curve.
type EquityPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

const equityDateFormat = "Jan 02"

// EquityCurve folds closed trades, ordered by open time ascending, into a
// running sum of realized P&L. One point per trade.
func EquityCurve(trades []domain.Trade) []EquityPoint {
	closed := closedTrades(trades)
	sort.SliceStable(closed, func(i, j int) bool {
		return closed[i].OpenTime.Before(closed[j].OpenTime)
	})

	points := make([]EquityPoint, 0, len(closed))
	var cumulative float64
	for _, t := range closed {
		if t.PnL != nil {
			cumulative += *t.PnL
		}
		points = append(points, EquityPoint{
			Date:  t.OpenTime.Format(equityDateFormat),
			Value: round2(cumulative),
		})
	}
	return points
}

func closedTrades(trades []domain.Trade) []domain.Trade {
	out := make([]domain.Trade, 0, len(trades))
	for _, t := range trades {
		if t.Status == domain.StatusClosed {
			out = append(out, t)
		}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
