package analytics

import (
	"time"

	"github.com/tradementor/console/internal/domain"
)

// HeatmapCell aggregates one (session, weekday) slot.
type HeatmapCell struct {
	Count int     `json:"count"`
	PnL   float64 `json:"pnl"`
}

// Heatmap is a sparse session-by-weekday grid. Slots with no trades have
// no entry, letting the view render them as neutral rather than zero.
type Heatmap map[domain.Session]map[time.Weekday]HeatmapCell

// HeatmapWeekdays is the column order views should render.
var HeatmapWeekdays = []time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday,
}

// SessionHeatmap cross-tabulates closed trades by the session and weekday
// of their close time. Trades without a close time, and the rare weekend
// close, are skipped.
func SessionHeatmap(trades []domain.Trade) Heatmap {
	grid := make(Heatmap)
	for _, t := range closedTrades(trades) {
		if t.CloseTime == nil {
			continue
		}
		closedAt := t.CloseTime.UTC()
		weekday := closedAt.Weekday()
		if weekday == time.Saturday || weekday == time.Sunday {
			continue
		}
		session := domain.SessionAt(closedAt)

		row, ok := grid[session]
		if !ok {
			row = make(map[time.Weekday]HeatmapCell)
			grid[session] = row
		}
		cell := row[weekday]
		cell.Count++
		if t.PnL != nil {
			cell.PnL += *t.PnL
		}
		row[weekday] = cell
	}

	for _, row := range grid {
		for weekday, cell := range row {
			cell.PnL = round2(cell.PnL)
			row[weekday] = cell
		}
	}
	return grid
}
