package models

import (
	"time"
)

// CollectionStats caches OpenSea collection statistics (floor price, volume, owners)
type CollectionStats struct {
	Slug           Slug       `json:"slug" gorm:"primaryKey"`
	Name           string     `json:"name"`
	ImageURL       string     `json:"image_url"`
	FloorPrice     float64    `json:"floor_price"`
	OneDayVolume   float64    `json:"one_day_volume"`
	OneDayChange   float64    `json:"one_day_change"`
	SevenDayVolume float64    `json:"seven_day_volume"`
	TotalVolume    float64    `json:"total_volume"`
	NumOwners      int        `json:"num_owners"`
	TotalSupply    float64    `json:"total_supply"`
	MarketCap      float64    `json:"market_cap"`
	StatsUpdatedAt *time.Time `json:"stats_updated_at" gorm:"index"`
	LastStatsCheck *time.Time `json:"last_stats_check"` // When we last attempted to fetch stats
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// IsFresh reports whether the stats were fetched within maxAge
func (c *CollectionStats) IsFresh(maxAge time.Duration) bool {
	if c.StatsUpdatedAt == nil {
		return false
	}
	return time.Since(*c.StatsUpdatedAt) < maxAge
}

func (CollectionStats) TableName() string {
	return "collection_stats"
}
