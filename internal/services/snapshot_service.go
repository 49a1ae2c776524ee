package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shrimpynuts/ape-monitor-sub000/internal/metrics"
	"github.com/shrimpynuts/ape-monitor-sub000/internal/models"
)

// TradeReporter builds the trade report of a wallet
type TradeReporter interface {
	GetTrades(ctx context.Context, address string, refresh bool) (*models.TradeReport, error)
}

// HoldingsValuer values the current holdings of a wallet
type HoldingsValuer interface {
	GetHoldings(ctx context.Context, address string) (*models.Holdings, error)
}

// SnapshotRun summarizes one pass over the tracked wallets
type SnapshotRun struct {
	RunID    string   `json:"run_id"`
	Recorded int      `json:"recorded"`
	Skipped  int      `json:"skipped"`
	Failed   []string `json:"failed,omitempty"`
}

// SnapshotService records a daily portfolio snapshot per tracked wallet
type SnapshotService struct {
	db            *gorm.DB
	trades        TradeReporter
	holdings      HoldingsValuer
	mu            sync.Mutex
	lastSnapshot  time.Time
	snapshotHour  int // UTC hour of day to take snapshots (0-23)
	checkInterval time.Duration
	now           func() time.Time
}

// NewSnapshotService creates a new snapshot service
func NewSnapshotService(db *gorm.DB, trades TradeReporter, holdings HoldingsValuer, snapshotHour int) *SnapshotService {
	if snapshotHour < 0 || snapshotHour > 23 {
		snapshotHour = 23
	}
	return &SnapshotService{
		db:            db,
		trades:        trades,
		holdings:      holdings,
		snapshotHour:  snapshotHour,
		checkInterval: 15 * time.Minute,
		now:           time.Now,
	}
}

// Start begins the background snapshot worker
func (s *SnapshotService) Start(ctx context.Context) {
	log.Infof("Snapshot service started: will record tracked wallets daily after %02d:00 UTC", s.snapshotHour)

	s.checkAndSnapshot(ctx)

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Snapshot service stopping...")
			return
		case <-ticker.C:
			s.checkAndSnapshot(ctx)
		}
	}
}

// checkAndSnapshot records wallets missing today's snapshot once the hour is reached
func (s *SnapshotService) checkAndSnapshot(ctx context.Context) {
	if s.now().UTC().Hour() < s.snapshotHour {
		return
	}
	run, err := s.TakeSnapshots(ctx, false)
	if err != nil {
		log.Warnf("Snapshot service: failed to take snapshots: %v", err)
		return
	}
	if run.Recorded > 0 || len(run.Failed) > 0 {
		log.Infof("Snapshot service: run %s recorded %d wallets (%d failed)", run.RunID, run.Recorded, len(run.Failed))
	}
}

// snapshotDate is today's UTC calendar date at midnight
func (s *SnapshotService) snapshotDate() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// hasSnapshotForDate checks if a wallet already has a snapshot for the date
func (s *SnapshotService) hasSnapshotForDate(address string, date time.Time) bool {
	var count int64
	s.db.Model(&models.PortfolioSnapshot{}).
		Where("wallet_address = ? AND snapshot_date = ?", address, date).
		Count(&count)
	return count > 0
}

// TakeSnapshots records every tracked wallet. Unless force is set, wallets
// that already have today's snapshot are skipped.
func (s *SnapshotService) TakeSnapshots(ctx context.Context, force bool) (*SnapshotRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wallets, err := s.ListWallets()
	if err != nil {
		return nil, err
	}

	run := &SnapshotRun{RunID: uuid.NewString()}
	date := s.snapshotDate()
	for _, wallet := range wallets {
		if ctx.Err() != nil {
			return run, ctx.Err()
		}
		if !force && s.hasSnapshotForDate(wallet.Address, date) {
			run.Skipped++
			continue
		}
		if _, err := s.takeSnapshot(ctx, run.RunID, wallet.Address, date); err != nil {
			log.Warnf("Snapshot service: failed to snapshot %s: %v", wallet.Address, err)
			metrics.SnapshotsTotal.WithLabelValues("failed").Inc()
			run.Failed = append(run.Failed, wallet.Address)
			continue
		}
		run.Recorded++
	}

	if run.Recorded > 0 {
		s.lastSnapshot = s.now()
	}
	return run, nil
}

// TakeSnapshot records one wallet now, whether tracked or not
func (s *SnapshotService) TakeSnapshot(ctx context.Context, address string) (*models.PortfolioSnapshot, error) {
	owner, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot, err := s.takeSnapshot(ctx, uuid.NewString(), owner, s.snapshotDate())
	if err != nil {
		return nil, err
	}
	s.lastSnapshot = s.now()
	return snapshot, nil
}

func (s *SnapshotService) takeSnapshot(ctx context.Context, runID, address string, date time.Time) (*models.PortfolioSnapshot, error) {
	report, err := s.trades.GetTrades(ctx, address, true)
	if err != nil {
		return nil, fmt.Errorf("failed to build trade report: %w", err)
	}
	holdings, err := s.holdings.GetHoldings(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to value holdings: %w", err)
	}

	profit, _ := report.TotalProfit.Float64()
	snapshot := models.PortfolioSnapshot{
		RunID:          runID,
		WalletAddress:  address,
		SnapshotDate:   date,
		RealizedProfit: profit,
		MatchedTrades:  report.Counts.Matched,
		Collections:    report.TradesByCollection.Len(),
		AssetCount:     holdings.AssetCount,
		FloorValue:     holdings.FloorValue,
		Partial:        report.Partial || holdings.Partial,
		CreatedAt:      s.now(),
	}
	if best := report.TotalTradeStats.BestTrade; best != nil {
		snapshot.BestCollection = best.Slug
	}
	if worst := report.TotalTradeStats.WorstTrade; worst != nil {
		snapshot.WorstCollection = worst.Slug
	}

	// Re-running a day replaces that day's row
	err = s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "wallet_address"}, {Name: "snapshot_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"run_id", "realized_profit", "matched_trades", "collections", "asset_count",
			"floor_value", "best_collection", "worst_collection", "partial", "created_at",
		}),
	}).Create(&snapshot).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}

	result := "ok"
	if snapshot.Partial {
		result = "partial"
	}
	metrics.SnapshotsTotal.WithLabelValues(result).Inc()
	log.Infof("Snapshot service: recorded %s for %s (profit: %.4f ETH, floor value: %.4f ETH, assets: %d)",
		address, date.Format("2006-01-02"), snapshot.RealizedProfit, snapshot.FloorValue, snapshot.AssetCount)

	return &snapshot, nil
}

// GetHistory retrieves a wallet's snapshots for a given period
func (s *SnapshotService) GetHistory(address, period string) ([]models.PortfolioSnapshot, error) {
	owner, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var startDate time.Time

	switch period {
	case "week":
		startDate = now.AddDate(0, 0, -7)
	case "month":
		startDate = now.AddDate(0, -1, 0)
	case "3month":
		startDate = now.AddDate(0, -3, 0)
	case "year":
		startDate = now.AddDate(-1, 0, 0)
	case "all":
		startDate = time.Time{} // No filter
	default:
		startDate = now.AddDate(0, -1, 0) // Default to 1 month
	}

	snapshots := []models.PortfolioSnapshot{}
	query := s.db.Where("wallet_address = ?", owner).Order("snapshot_date ASC")
	if !startDate.IsZero() {
		start := time.Date(startDate.Year(), startDate.Month(), startDate.Day(), 0, 0, 0, 0, time.UTC)
		query = query.Where("snapshot_date >= ?", start)
	}

	if err := query.Find(&snapshots).Error; err != nil {
		return nil, err
	}
	return snapshots, nil
}

// GetLastSnapshot returns the most recent snapshot of a wallet, or nil
func (s *SnapshotService) GetLastSnapshot(address string) *models.PortfolioSnapshot {
	owner, err := NormalizeAddress(address)
	if err != nil {
		return nil
	}
	var snapshot models.PortfolioSnapshot
	if err := s.db.Where("wallet_address = ?", owner).Order("snapshot_date DESC").First(&snapshot).Error; err != nil {
		return nil
	}
	return &snapshot
}

// ListWallets returns the tracked wallets, oldest first
func (s *SnapshotService) ListWallets() ([]models.TrackedWallet, error) {
	wallets := []models.TrackedWallet{}
	if err := s.db.Order("added_at ASC").Find(&wallets).Error; err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	metrics.TrackedWallets.Set(float64(len(wallets)))
	return wallets, nil
}

// TrackWallet adds a wallet to the daily snapshot run. created is false when
// it was already tracked; a non-empty label replaces the stored one.
func (s *SnapshotService) TrackWallet(address, label string) (wallet *models.TrackedWallet, created bool, err error) {
	owner, err := NormalizeAddress(address)
	if err != nil {
		return nil, false, err
	}

	var existing models.TrackedWallet
	err = s.db.First(&existing, "address = ?", owner).Error
	switch {
	case err == nil:
		if label != "" && label != existing.Label {
			existing.Label = label
			if err := s.db.Save(&existing).Error; err != nil {
				return nil, false, fmt.Errorf("failed to update wallet: %w", err)
			}
		}
		return &existing, false, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, false, fmt.Errorf("failed to look up wallet: %w", err)
	}

	wallet = &models.TrackedWallet{Address: owner, Label: label, AddedAt: s.now()}
	if err := s.db.Create(wallet).Error; err != nil {
		return nil, false, fmt.Errorf("failed to track wallet: %w", err)
	}
	log.Infof("Snapshot service: tracking wallet %s", owner)
	return wallet, true, nil
}

// UntrackWallet removes a wallet; its past snapshots are kept
func (s *SnapshotService) UntrackWallet(address string) error {
	owner, err := NormalizeAddress(address)
	if err != nil {
		return err
	}
	result := s.db.Delete(&models.TrackedWallet{}, "address = ?", owner)
	if result.Error != nil {
		return fmt.Errorf("failed to untrack wallet: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrWalletNotTracked, owner)
	}
	return nil
}

// LastSnapshotTime returns when the last run recorded anything
func (s *SnapshotService) LastSnapshotTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSnapshot
}
