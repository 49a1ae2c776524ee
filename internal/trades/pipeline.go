// Package trades rebuilds an account's matched NFT trades from raw marketplace
// events: unbundle, classify into sales and buys, match and aggregate per
// collection, then summarize. Every step is a pure function of its input.
package trades

import (
	"github.com/shrimpynuts/ape-monitor-sub000/internal/models"
)

// Result is the output of one pipeline run
type Result struct {
	TradesByCollection *models.CollectionBuckets
	TotalTradeStats    models.TradeSummary
	Counts             models.PipelineCounts
}

// Run executes the full pipeline over an already fetched event list
func Run(events []models.MarketplaceEvent, owner string, policy models.SummaryPolicy) *Result {
	unbundled := UnbundleEvents(events)
	classified := Classify(unbundled, owner)
	buckets := Aggregate(classified.Sales, classified.Buys)

	return &Result{
		TradesByCollection: buckets,
		TotalTradeStats:    Summarize(buckets, policy),
		Counts: models.PipelineCounts{
			Events:     len(events),
			Unbundled:  len(unbundled),
			Successful: classified.Successful,
			Sales:      classified.Sales.Len(),
			Buys:       classified.Buys.Len(),
			Matched:    buckets.TradeCount(),
			Dropped:    classified.Dropped,
		},
	}
}
