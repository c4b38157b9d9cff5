package analytics

import (
	"sort"

	"github.com/tradementor/console/internal/domain"
)

// KeyFunc maps a trade to the group it belongs to.
type KeyFunc func(domain.Trade) string

// BySymbol groups by instrument.
func BySymbol(t domain.Trade) string { return t.Symbol }

// BySession groups by the trading session the trade was opened in.
func BySession(t domain.Trade) string { return string(t.Session) }

// ByWeekday groups by the weekday the trade was opened on.
func ByWeekday(t domain.Trade) string { return t.OpenTime.Weekday().String() }

// BreakdownRow is the win/loss summary for one group.
type BreakdownRow struct {
	Key      string  `json:"key"`
	Trades   int     `json:"trades"`
	Wins     int     `json:"wins"`
	Losses   int     `json:"losses"`
	WinRate  float64 `json:"win_rate"`
	LossRate float64 `json:"loss_rate"`
}

// Breakdown groups closed trades by key and computes per-group win/loss
// rates. Wins are P&L > 0, losses P&L <= 0. Trades without a P&L value are
// excluded entirely so they cannot skew either rate. Rows sort by trade
// count descending; empty groups never appear.
func Breakdown(trades []domain.Trade, key KeyFunc) []BreakdownRow {
	groups := make(map[string]*BreakdownRow)
	for _, t := range closedTrades(trades) {
		if t.PnL == nil {
			continue
		}
		k := key(t)
		row, ok := groups[k]
		if !ok {
			row = &BreakdownRow{Key: k}
			groups[k] = row
		}
		row.Trades++
		if *t.PnL > 0 {
			row.Wins++
		} else {
			row.Losses++
		}
	}

	rows := make([]BreakdownRow, 0, len(groups))
	for _, row := range groups {
		row.WinRate = round2(float64(row.Wins) / float64(row.Trades) * 100)
		// Derived from the win rate so the pair always sums to 100.
		row.LossRate = round2(100 - row.WinRate)
		rows = append(rows, *row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Trades != rows[j].Trades {
			return rows[i].Trades > rows[j].Trades
		}
		return rows[i].Key < rows[j].Key
	})
	return rows
}
