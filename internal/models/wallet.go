package models

import (
	"time"
)

// TrackedWallet is an address the snapshot service records daily
type TrackedWallet struct {
	Address string    `json:"address" gorm:"primaryKey"` // lowercase 0x address
	Label   string    `json:"label"`
	AddedAt time.Time `json:"added_at"`
}

type AddWalletRequest struct {
	Address string `json:"address" binding:"required"`
	Label   string `json:"label"`
}

// HoldingGroup is the owned assets of one collection valued at its floor price
type HoldingGroup struct {
	Slug       Slug    `json:"slug"`
	Name       string  `json:"name"`
	ImageURL   string  `json:"image_url"`
	Count      int     `json:"count"`
	FloorPrice float64 `json:"floor_price"`
	FloorValue float64 `json:"floor_value"`
	StatsKnown bool    `json:"stats_known"` // false until the stats worker has fetched the collection
}

// Holdings is the current floor valuation of a wallet
type Holdings struct {
	Address    string         `json:"address"`
	AssetCount int            `json:"asset_count"`
	FloorValue float64        `json:"floor_value"`
	Groups     []HoldingGroup `json:"groups"`
	Partial    bool           `json:"partial"`
}

func (TrackedWallet) TableName() string {
	return "tracked_wallets"
}
