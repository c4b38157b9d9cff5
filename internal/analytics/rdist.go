package analytics

import "github.com/tradementor/console/internal/domain"

// RBucket is one bar of the R-multiple histogram.
type RBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Interior boundaries of the histogram; the extremes are unbounded.
var rBucketBounds = []float64{-2, -1, 0, 1, 2, 3}

var rBucketLabels = []string{
	"< -2R",
	"-2R to -1R",
	"-1R to 0R",
	"0R to 1R",
	"1R to 2R",
	"2R to 3R",
	"> 3R",
}

// RDistribution counts closed trades with a known R multiple into fixed
// buckets. Interior buckets are left-closed, right-open, so a trade at
// exactly a boundary lands in the bucket whose lower bound it equals.
// Bucket counts always sum to the number of counted trades.
func RDistribution(trades []domain.Trade) []RBucket {
	buckets := make([]RBucket, len(rBucketLabels))
	for i, label := range rBucketLabels {
		buckets[i] = RBucket{Label: label}
	}

	for _, t := range closedTrades(trades) {
		if t.PnLR == nil {
			continue
		}
		buckets[rBucketIndex(*t.PnLR)].Count++
	}
	return buckets
}

func rBucketIndex(r float64) int {
	for i, bound := range rBucketBounds {
		if r < bound {
			return i
		}
	}
	return len(rBucketBounds)
}
