package analytics

import (
	"sort"

	"github.com/tradementor/console/internal/domain"
)

// StreakState classifies the current loss streak.
type StreakState string

const (
	StreakClear   StreakState = "clear"
	StreakWarning StreakState = "warning" // 2+ consecutive losses
	StreakLockout StreakState = "lockout" // 3+ consecutive losses
)

// LossStreak counts the contiguous run of losing trades ending at the most
// recent close. Scanning most-recent-first, the first trade that is not a
// loss ends the streak; a trade with no P&L value also ends it, since an
// unknown outcome cannot extend a run of losses.
func LossStreak(trades []domain.Trade) int {
	closed := make([]domain.Trade, 0, len(trades))
	for _, t := range closedTrades(trades) {
		if t.CloseTime != nil {
			closed = append(closed, t)
		}
	}
	sort.SliceStable(closed, func(i, j int) bool {
		return closed[i].CloseTime.After(*closed[j].CloseTime)
	})

	streak := 0
	for _, t := range closed {
		if t.PnL == nil || *t.PnL >= 0 {
			break
		}
		streak++
	}
	return streak
}

// StreakStateFor maps a streak length to its discipline state.
func StreakStateFor(streak int) StreakState {
	switch {
	case streak >= 3:
		return StreakLockout
	case streak >= 2:
		return StreakWarning
	default:
		return StreakClear
	}
}
