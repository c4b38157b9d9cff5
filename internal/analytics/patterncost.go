package analytics

import (
	"math"
	"sort"

	"github.com/tradementor/console/internal/domain"
)

// PatternCost is the money attributed to one behavioral pattern.
type PatternCost struct {
	Pattern     domain.PatternType `json:"pattern"`
	TotalCost   float64            `json:"total_cost"`
	Occurrences int                `json:"occurrences"`
}

// PatternCosts sums the absolute loss of closed losing trades per
// behavioral flag they carry. A trade flagged twice contributes its loss to
// both patterns; winning and flat trades contribute nothing. Sorted by
// total cost descending.
func PatternCosts(trades []domain.Trade) []PatternCost {
	totals := make(map[domain.PatternType]*PatternCost)
	for _, t := range closedTrades(trades) {
		if t.PnL == nil || *t.PnL >= 0 {
			continue
		}
		loss := math.Abs(*t.PnL)
		for _, flag := range t.Flags {
			entry, ok := totals[flag.Pattern]
			if !ok {
				entry = &PatternCost{Pattern: flag.Pattern}
				totals[flag.Pattern] = entry
			}
			entry.TotalCost += loss
			entry.Occurrences++
		}
	}

	costs := make([]PatternCost, 0, len(totals))
	for _, entry := range totals {
		entry.TotalCost = round2(entry.TotalCost)
		costs = append(costs, *entry)
	}
	sort.Slice(costs, func(i, j int) bool {
		if costs[i].TotalCost != costs[j].TotalCost {
			return costs[i].TotalCost > costs[j].TotalCost
		}
		return costs[i].Pattern < costs[j].Pattern
	})
	return costs
}
