package analytics

import (
	"gonum.org/v1/gonum/stat"

	"github.com/tradementor/console/internal/domain"
)

// Summary is the headline performance block for the dashboard.
type Summary struct {
	TradeCount int     `json:"trade_count"`
	WinRate    float64 `json:"win_rate"`
	TotalPnL   float64 `json:"total_pnl"`
	// Expectancy is the mean R multiple across trades with a known R;
	// RStdDev is its sample standard deviation. Both zero when fewer
	// trades than the statistic needs.
	Expectancy float64 `json:"expectancy"`
	RStdDev    float64 `json:"r_std_dev"`
}

// Summarize computes the headline block over closed trades.
func Summarize(trades []domain.Trade) Summary {
	closed := closedTrades(trades)

	var summary Summary
	var wins, scored int
	var totalPnL float64
	rMultiples := make([]float64, 0, len(closed))

	for _, t := range closed {
		if t.PnL != nil {
			scored++
			totalPnL += *t.PnL
			if *t.PnL > 0 {
				wins++
			}
		}
		if t.PnLR != nil {
			rMultiples = append(rMultiples, *t.PnLR)
		}
	}

	summary.TradeCount = len(closed)
	summary.TotalPnL = round2(totalPnL)
	if scored > 0 {
		summary.WinRate = round2(float64(wins) / float64(scored) * 100)
	}
	if len(rMultiples) > 0 {
		summary.Expectancy = round2(stat.Mean(rMultiples, nil))
	}
	if len(rMultiples) > 1 {
		summary.RStdDev = round2(stat.StdDev(rMultiples, nil))
	}
	return summary
}
