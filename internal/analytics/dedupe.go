package analytics

import "github.com/tradementor/console/internal/domain"

// Dedupe removes trades with repeated ids, keeping the last occurrence of
// each. The second return value is the number of duplicates dropped;
// callers log a non-zero count as a data-quality signal, since a clean
// source never produces one.
func Dedupe(trades []domain.Trade) ([]domain.Trade, int) {
	last := make(map[string]int, len(trades))
	for i, t := range trades {
		last[t.ID] = i
	}
	if len(last) == len(trades) {
		out := make([]domain.Trade, len(trades))
		copy(out, trades)
		return out, 0
	}

	out := make([]domain.Trade, 0, len(last))
	for i, t := range trades {
		if last[t.ID] == i {
			out = append(out, t)
		}
	}
	return out, len(trades) - len(out)
}
