package trades

import (
	"github.com/shrimpynuts/ape-monitor-sub000/internal/models"
)

// Summarize picks the collections with the highest and lowest total profit.
// Ties go to the first collection in bucket order. Under SummaryPolicySigned
// the best must be strictly profitable and the worst strictly unprofitable.
// Empty input yields an empty summary.
func Summarize(buckets *models.CollectionBuckets, policy models.SummaryPolicy) models.TradeSummary {
	var best, worst *models.CollectionBucket
	for _, bucket := range buckets.Buckets() {
		if best == nil || bucket.TotalProfit.GreaterThan(best.TotalProfit) {
			best = bucket
		}
		if worst == nil || bucket.TotalProfit.LessThan(worst.TotalProfit) {
			worst = bucket
		}
	}

	if policy == models.SummaryPolicySigned {
		if best != nil && !best.TotalProfit.IsPositive() {
			best = nil
		}
		if worst != nil && !worst.TotalProfit.IsNegative() {
			worst = nil
		}
	}

	return models.TradeSummary{BestTrade: best, WorstTrade: worst}
}
