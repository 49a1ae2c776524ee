package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Slug identifies an OpenSea collection
type Slug string

// TradeIdentifier pairs a sale with the buy of the same item.
// Derived from the asset permalink, which is unique per asset.
type TradeIdentifier string

// MatchedTrade is a sale paired with the earlier buy of the same item
type MatchedTrade struct {
	Identifier TradeIdentifier `json:"identifier"`
	Slug       Slug            `json:"slug"`
	Name       string          `json:"name"`
	ImageURL   string          `json:"image_url"`
	SalePrice  decimal.Decimal `json:"sale_price"`
	BuyPrice   decimal.Decimal `json:"buy_price"`
	Profit     decimal.Decimal `json:"profit"`      // SalePrice - BuyPrice, may be negative
	HoldTimeMs int64           `json:"hold_time_ms"` // sale date - buy date, not corrected when negative
	SaleDate   time.Time       `json:"sale_date"`
	BuyDate    time.Time       `json:"buy_date"`
}

// CollectionBucket accumulates every matched trade of one collection.
// TotalProfit is always the sum of Trades[i].Profit and the averages are
// always the arithmetic means over Trades.
type CollectionBucket struct {
	Name              string          `json:"name"`
	Slug              Slug            `json:"slug"`
	ImageURL          string          `json:"image_url"`
	Trades            []MatchedTrade  `json:"trades"`
	AverageSalePrice  decimal.Decimal `json:"average_sale_price"`
	AverageBuyPrice   decimal.Decimal `json:"average_buy_price"`
	AverageHoldTimeMs float64         `json:"average_hold_time_ms"`
	TotalProfit       decimal.Decimal `json:"total_profit"`
}

// CollectionBuckets maps slugs to buckets and remembers the order in which
// slugs were first seen. Iteration and JSON encoding follow that order.
type CollectionBuckets struct {
	order  []Slug
	bySlug map[Slug]*CollectionBucket
}

// NewCollectionBuckets creates an empty ordered bucket map
func NewCollectionBuckets() *CollectionBuckets {
	return &CollectionBuckets{bySlug: make(map[Slug]*CollectionBucket)}
}

// Get returns the bucket for a slug
func (b *CollectionBuckets) Get(slug Slug) (*CollectionBucket, bool) {
	if b == nil {
		return nil, false
	}
	bucket, ok := b.bySlug[slug]
	return bucket, ok
}

// Put stores a bucket, appending the slug to the order on first insert
func (b *CollectionBuckets) Put(bucket *CollectionBucket) {
	if b.bySlug == nil {
		b.bySlug = make(map[Slug]*CollectionBucket)
	}
	if _, exists := b.bySlug[bucket.Slug]; !exists {
		b.order = append(b.order, bucket.Slug)
	}
	b.bySlug[bucket.Slug] = bucket
}

// Len returns the number of collections
func (b *CollectionBuckets) Len() int {
	if b == nil {
		return 0
	}
	return len(b.order)
}

// Slugs returns the slugs in first-encountered order
func (b *CollectionBuckets) Slugs() []Slug {
	if b == nil {
		return nil
	}
	out := make([]Slug, len(b.order))
	copy(out, b.order)
	return out
}

// Buckets returns the buckets in first-encountered order
func (b *CollectionBuckets) Buckets() []*CollectionBucket {
	if b == nil {
		return nil
	}
	out := make([]*CollectionBucket, 0, len(b.order))
	for _, slug := range b.order {
		out = append(out, b.bySlug[slug])
	}
	return out
}

// TradeCount returns the number of matched trades across all collections
func (b *CollectionBuckets) TradeCount() int {
	total := 0
	for _, bucket := range b.Buckets() {
		total += len(bucket.Trades)
	}
	return total
}

// TotalProfit sums the profit of every collection
func (b *CollectionBuckets) TotalProfit() decimal.Decimal {
	total := decimal.Zero
	for _, bucket := range b.Buckets() {
		total = total.Add(bucket.TotalProfit)
	}
	return total
}

// MarshalJSON encodes the buckets as an object keyed by slug, in order
func (b *CollectionBuckets) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, bucket := range b.Buckets() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(bucket.Slug))
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(bucket)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object keyed by slug, keeping document order
func (b *CollectionBuckets) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("collection buckets: expected object, got %v", tok)
	}

	b.order = nil
	b.bySlug = make(map[Slug]*CollectionBucket)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("collection buckets: expected string key, got %v", tok)
		}
		var bucket CollectionBucket
		if err := dec.Decode(&bucket); err != nil {
			return fmt.Errorf("collection buckets: failed to decode %q: %w", key, err)
		}
		bucket.Slug = Slug(key)
		b.Put(&bucket)
	}
	_, err = dec.Token()
	return err
}

// SummaryPolicy decides whether best/worst must also be strictly profitable/unprofitable
type SummaryPolicy string

const (
	// SummaryPolicyAny picks max/min total profit with no sign guard
	SummaryPolicyAny SummaryPolicy = "any"
	// SummaryPolicySigned requires best > 0 and worst < 0
	SummaryPolicySigned SummaryPolicy = "signed"
)

// ParseSummaryPolicy maps a config string to a policy
func ParseSummaryPolicy(s string) (SummaryPolicy, error) {
	switch SummaryPolicy(s) {
	case SummaryPolicyAny, "":
		return SummaryPolicyAny, nil
	case SummaryPolicySigned:
		return SummaryPolicySigned, nil
	default:
		return "", fmt.Errorf("unknown trade summary policy %q (want %q or %q)", s, SummaryPolicyAny, SummaryPolicySigned)
	}
}

// TradeSummary points at the best and worst collections; either may be nil
type TradeSummary struct {
	BestTrade  *CollectionBucket `json:"best_trade"`
	WorstTrade *CollectionBucket `json:"worst_trade"`
}

// PipelineCounts reports how many events survived each pipeline stage
type PipelineCounts struct {
	Events     int `json:"events"`
	Unbundled  int `json:"unbundled"`
	Successful int `json:"successful"`
	Sales      int `json:"sales"`
	Buys       int `json:"buys"`
	Matched    int `json:"matched"`
	Dropped    int `json:"dropped"`
}

// TradeReport is the API response for a wallet's trade history
type TradeReport struct {
	Address            string             `json:"address"`
	TradesByCollection *CollectionBuckets `json:"trades_by_collection"`
	TotalTradeStats    TradeSummary       `json:"total_trade_stats"`
	TotalProfit        decimal.Decimal    `json:"total_profit"`
	Counts             PipelineCounts     `json:"counts"`
	Policy             SummaryPolicy      `json:"policy"`
	Partial            bool               `json:"partial"`
	GeneratedAt        time.Time          `json:"generated_at"`
}
