package models

import (
	"time"
)

// PortfolioSnapshot stores a wallet's daily realized profit and floor value for historical tracking
type PortfolioSnapshot struct {
	ID              uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	RunID           string    `json:"run_id" gorm:"index"`
	WalletAddress   string    `json:"wallet_address" gorm:"not null;uniqueIndex:idx_wallet_date"`
	SnapshotDate    time.Time `json:"snapshot_date" gorm:"not null;uniqueIndex:idx_wallet_date"`
	RealizedProfit  float64   `json:"realized_profit"`
	MatchedTrades   int       `json:"matched_trades"`
	Collections     int       `json:"collections"`
	AssetCount      int       `json:"asset_count"`
	FloorValue      float64   `json:"floor_value"`
	BestCollection  Slug      `json:"best_collection"`
	WorstCollection Slug      `json:"worst_collection"`
	Partial         bool      `json:"partial"`
	CreatedAt       time.Time `json:"created_at"`
}

// ValueHistoryResponse is the API response for value history
type ValueHistoryResponse struct {
	Address   string              `json:"address"`
	Snapshots []PortfolioSnapshot `json:"snapshots"`
	Period    string              `json:"period"` // "week", "month", "3month", "year", "all"
	Latest    *PortfolioSnapshot  `json:"latest,omitempty"`
}

func (PortfolioSnapshot) TableName() string {
	return "portfolio_snapshots"
}
