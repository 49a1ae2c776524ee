package trades

import (
	"github.com/shopspring/decimal"

	"github.com/shrimpynuts/ape-monitor-sub000/internal/models"
)

// MatchTrade pairs a sale with its buy. ok is false when either price or
// date cannot be read.
func MatchTrade(id models.TradeIdentifier, sale, buy models.MarketplaceEvent) (trade models.MatchedTrade, ok bool) {
	if sale.Asset == nil {
		return trade, false
	}
	salePrice, err := ToCurrency(sale.TotalPrice, sale.TokenDecimals())
	if err != nil {
		return trade, false
	}
	buyPrice, err := ToCurrency(buy.TotalPrice, buy.TokenDecimals())
	if err != nil {
		return trade, false
	}
	saleDate, err := ParseEventDate(sale.CreatedDate)
	if err != nil {
		return trade, false
	}
	buyDate, err := ParseEventDate(buy.CreatedDate)
	if err != nil {
		return trade, false
	}

	return models.MatchedTrade{
		Identifier: id,
		Slug:       sale.Asset.Collection.Slug,
		Name:       sale.Asset.Name,
		ImageURL:   sale.Asset.ImageURL,
		SalePrice:  salePrice,
		BuyPrice:   buyPrice,
		Profit:     salePrice.Sub(buyPrice),
		HoldTimeMs: saleDate.Sub(buyDate).Milliseconds(),
		SaleDate:   saleDate,
		BuyDate:    buyDate,
	}, true
}

// Aggregate folds every sale that has a matching buy into per-collection
// buckets. Sales without a buy are not trades and are skipped.
func Aggregate(sales, buys EventIndex) *models.CollectionBuckets {
	buckets := models.NewCollectionBuckets()

	for _, id := range sales.Keys() {
		buy, ok := buys.Get(id)
		if !ok {
			continue
		}
		sale, _ := sales.Get(id)

		trade, ok := MatchTrade(id, sale, buy)
		if !ok {
			continue
		}

		if bucket, exists := buckets.Get(trade.Slug); exists {
			addTrade(bucket, trade)
		} else {
			buckets.Put(newBucket(sale.Asset.Collection, trade))
		}
	}

	return buckets
}

func newBucket(collection models.CollectionRef, t models.MatchedTrade) *models.CollectionBucket {
	return &models.CollectionBucket{
		Name:              collection.Name,
		Slug:              t.Slug,
		ImageURL:          collection.ImageURL,
		Trades:            []models.MatchedTrade{t},
		AverageSalePrice:  t.SalePrice,
		AverageBuyPrice:   t.BuyPrice,
		AverageHoldTimeMs: float64(t.HoldTimeMs),
		TotalProfit:       t.Profit,
	}
}

// meanPrecision keeps 18-decimal token amounts exact through repeated folds
const meanPrecision = 36

// addTrade updates the running means with (old*n + new) / (n+1)
func addTrade(bucket *models.CollectionBucket, t models.MatchedTrade) {
	n := len(bucket.Trades)
	count := decimal.NewFromInt(int64(n))
	next := decimal.NewFromInt(int64(n + 1))

	bucket.AverageSalePrice = bucket.AverageSalePrice.Mul(count).Add(t.SalePrice).DivRound(next, meanPrecision)
	bucket.AverageBuyPrice = bucket.AverageBuyPrice.Mul(count).Add(t.BuyPrice).DivRound(next, meanPrecision)
	bucket.AverageHoldTimeMs = (bucket.AverageHoldTimeMs*float64(n) + float64(t.HoldTimeMs)) / float64(n+1)
	bucket.TotalProfit = bucket.TotalProfit.Add(t.Profit)
	bucket.Trades = append(bucket.Trades, t)
}
