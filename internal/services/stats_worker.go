package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shrimpynuts/ape-monitor-sub000/internal/metrics"
	"github.com/shrimpynuts/ape-monitor-sub000/internal/models"
)

const (
	defaultStatsBatchSize = 20
	defaultStatsInterval  = 15 * time.Minute
	defaultStatsStaleness = 24 * time.Hour
)

// CollectionStatsFetcher returns current market stats for a slug, nil if unknown
type CollectionStatsFetcher interface {
	GetCollectionStats(ctx context.Context, slug models.Slug) (*models.CollectionStats, error)
}

// UnknownCollection is a slug OpenSea answered 404 for
type UnknownCollection struct {
	Slug      models.Slug `json:"slug"`
	CheckedAt time.Time   `json:"checked_at"`
}

// StatsWorker keeps CollectionStats rows fresh in the background
type StatsWorker struct {
	fetcher        CollectionStatsFetcher
	db             *gorm.DB
	updateInterval time.Duration
	staleness      time.Duration
	mu             sync.RWMutex

	batchSize int

	// Priority queue for user-requested and newly seen collections
	urgentQueue []models.Slug
	urgentMu    sync.Mutex

	// Stats (reset at midnight)
	collectionsUpdatedToday int
	lastUpdateTime          time.Time
	lastStatsDay            time.Time

	unknownCollections []UnknownCollection
}

// StatsStatus is the worker state exposed at /api/stats/status
type StatsStatus struct {
	LastUpdateTime          time.Time           `json:"last_update_time"`
	NextUpdateTime          time.Time           `json:"next_update_time"`
	CollectionsUpdatedToday int                 `json:"collections_updated_today"`
	BatchSize               int                 `json:"batch_size"`
	QueueSize               int                 `json:"queue_size"`
	TrackedCollections      int64               `json:"tracked_collections"`
	StaleCollections        int64               `json:"stale_collections"`
	UnknownCollections      []UnknownCollection `json:"unknown_collections,omitempty"`
}

// NewStatsWorker creates a worker; zero settings fall back to defaults
func NewStatsWorker(fetcher CollectionStatsFetcher, db *gorm.DB, interval time.Duration, batchSize int, staleness time.Duration) *StatsWorker {
	if interval <= 0 {
		interval = defaultStatsInterval
	}
	if batchSize <= 0 {
		batchSize = defaultStatsBatchSize
	}
	if staleness <= 0 {
		staleness = defaultStatsStaleness
	}
	return &StatsWorker{
		fetcher:        fetcher,
		db:             db,
		updateInterval: interval,
		batchSize:      batchSize,
		staleness:      staleness,
	}
}

// QueueRefresh adds a collection to the high-priority refresh queue and
// returns its 1-indexed position
func (w *StatsWorker) QueueRefresh(slug models.Slug) int {
	w.urgentMu.Lock()
	defer w.urgentMu.Unlock()

	for i, queued := range w.urgentQueue {
		if queued == slug {
			return i + 1
		}
	}
	w.urgentQueue = append(w.urgentQueue, slug)
	metrics.StatsQueueSize.Set(float64(len(w.urgentQueue)))
	log.Debugf("Stats worker: queued refresh for %s (queue size: %d)", slug, len(w.urgentQueue))
	return len(w.urgentQueue)
}

// GetQueueSize returns current urgent queue size
func (w *StatsWorker) GetQueueSize() int {
	w.urgentMu.Lock()
	defer w.urgentMu.Unlock()
	return len(w.urgentQueue)
}

// TrackCollections records collections seen in holdings or trades. Slugs
// without a stats row get a placeholder and jump the refresh queue.
func (w *StatsWorker) TrackCollections(refs []models.CollectionRef) int {
	added := 0
	for _, ref := range refs {
		if ref.Slug == "" {
			continue
		}
		row := models.CollectionStats{Slug: ref.Slug, Name: ref.Name, ImageURL: ref.ImageURL}
		result := w.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
		if result.Error != nil {
			log.Warnf("Stats worker: failed to track collection %s: %v", ref.Slug, result.Error)
			continue
		}
		if result.RowsAffected > 0 {
			added++
			w.QueueRefresh(ref.Slug)
		}
	}
	if added > 0 {
		log.Infof("Stats worker: tracking %d new collections", added)
	}
	return added
}

// resetDailyStatsIfNeeded resets collectionsUpdatedToday at midnight
func (w *StatsWorker) resetDailyStatsIfNeeded() {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if w.lastStatsDay.Before(today) {
		if !w.lastStatsDay.IsZero() {
			log.Infof("Stats worker: daily stats reset (previous day: %d collections updated)", w.collectionsUpdatedToday)
		}
		w.collectionsUpdatedToday = 0
		w.lastStatsDay = today
	}
}

// Start begins the background stats refresh loop
func (w *StatsWorker) Start(ctx context.Context) {
	log.Infof("Stats worker started: will refresh %d collections every %v", w.batchSize, w.updateInterval)

	if updated, err := w.UpdateBatch(ctx); err != nil {
		log.Warnf("Stats worker: initial batch failed: %v", err)
	} else {
		log.Infof("Stats worker: initial batch refreshed %d collections", updated)
	}

	ticker := time.NewTicker(w.updateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("Stats worker stopping...")
			return
		case <-ticker.C:
			if updated, err := w.UpdateBatch(ctx); err != nil {
				log.Warnf("Stats worker: batch failed: %v", err)
			} else if updated > 0 {
				log.Infof("Stats worker: batch refreshed %d collections", updated)
			}
		}
	}
}

// UpdateBatch refreshes a batch of collections with priority ordering:
// 1. Queued refreshes
// 2. Collections never fetched
// 3. Collections with the oldest stats, if older than the staleness window
func (w *StatsWorker) UpdateBatch(ctx context.Context) (updated int, err error) {
	w.resetDailyStatsIfNeeded()
	start := time.Now()

	slugs := w.nextBatch()
	if len(slugs) == 0 {
		log.Debug("Stats worker: no collections to refresh")
		return 0, nil
	}

	log.Infof("Stats worker: refreshing stats for %d collections", len(slugs))

	for i, slug := range slugs {
		if _, err := w.RefreshCollection(ctx, slug); err != nil {
			if errors.Is(err, ErrCollectionNotFound) {
				continue
			}
			var upstreamErr *UpstreamError
			if ctx.Err() != nil || (errors.As(err, &upstreamErr) && upstreamErr.Throttled()) {
				// Put the rest back so the next batch picks them up first
				for _, rest := range slugs[i:] {
					w.QueueRefresh(rest)
				}
				w.finishBatch(updated, start)
				return updated, fmt.Errorf("batch stopped after %d collections: %w", updated, err)
			}
			log.Warnf("Stats worker: failed to refresh %s: %v (will retry)", slug, err)
			continue
		}
		updated++
	}

	w.finishBatch(updated, start)
	log.Infof("Stats worker: batch refreshed %d/%d collections", updated, len(slugs))
	return updated, nil
}

func (w *StatsWorker) nextBatch() []models.Slug {
	var slugs []models.Slug
	seen := make(map[models.Slug]bool)

	// Priority 1: queued refreshes
	w.urgentMu.Lock()
	urgent := w.urgentQueue
	if len(urgent) > w.batchSize {
		urgent = urgent[:w.batchSize]
		w.urgentQueue = w.urgentQueue[w.batchSize:]
	} else {
		w.urgentQueue = nil
	}
	metrics.StatsQueueSize.Set(float64(len(w.urgentQueue)))
	w.urgentMu.Unlock()

	for _, slug := range urgent {
		if !seen[slug] {
			seen[slug] = true
			slugs = append(slugs, slug)
		}
	}

	remaining := w.batchSize - len(slugs)

	// Priority 2: never fetched
	if remaining > 0 {
		var neverFetched []models.Slug
		query := w.db.Model(&models.CollectionStats{}).Where("stats_updated_at IS NULL")
		if len(slugs) > 0 {
			query = query.Where("slug NOT IN ?", slugs)
		}
		query.Order("last_stats_check ASC NULLS FIRST").Limit(remaining).Pluck("slug", &neverFetched)
		for _, slug := range neverFetched {
			seen[slug] = true
			slugs = append(slugs, slug)
		}
		remaining -= len(neverFetched)
	}

	// Priority 3: oldest stats past the staleness window
	if remaining > 0 {
		var oldest []models.Slug
		query := w.db.Model(&models.CollectionStats{}).
			Where("stats_updated_at IS NOT NULL AND stats_updated_at < ?", time.Now().Add(-w.staleness))
		if len(slugs) > 0 {
			query = query.Where("slug NOT IN ?", slugs)
		}
		query.Order("stats_updated_at ASC").Limit(remaining).Pluck("slug", &oldest)
		slugs = append(slugs, oldest...)
	}

	return slugs
}

func (w *StatsWorker) finishBatch(updated int, start time.Time) {
	w.mu.Lock()
	w.collectionsUpdatedToday += updated
	w.lastUpdateTime = time.Now()
	today := w.collectionsUpdatedToday
	w.mu.Unlock()

	var tracked int64
	w.db.Model(&models.CollectionStats{}).Count(&tracked)

	metrics.StatsUpdatesTotal.Add(float64(updated))
	metrics.StatsUpdatesToday.Set(float64(today))
	metrics.StatsQueueSize.Set(float64(w.GetQueueSize()))
	metrics.StatsBatchDuration.Observe(time.Since(start).Seconds())
	metrics.TrackedCollections.Set(float64(tracked))
}

// RefreshCollection fetches and stores stats for one collection now
func (w *StatsWorker) RefreshCollection(ctx context.Context, slug models.Slug) (*models.CollectionStats, error) {
	now := time.Now()
	stats, err := w.fetcher.GetCollectionStats(ctx, slug)
	if err != nil {
		w.markChecked(slug, now)
		return nil, err
	}
	if stats == nil {
		w.markChecked(slug, now)
		w.recordUnknown(slug, now)
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, slug)
	}

	stats.Slug = slug
	stats.LastStatsCheck = &now
	if stats.StatsUpdatedAt == nil {
		stats.StatsUpdatedAt = &now
	}

	err = w.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"floor_price", "one_day_volume", "one_day_change", "seven_day_volume",
			"total_volume", "num_owners", "total_supply", "market_cap",
			"stats_updated_at", "last_stats_check", "updated_at",
		}),
	}).Create(stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to save stats for %s: %w", slug, err)
	}

	w.clearUnknown(slug)

	// Reload so name and image from the tracked row come back too
	var saved models.CollectionStats
	if err := w.db.First(&saved, "slug = ?", slug).Error; err != nil {
		return stats, nil
	}
	return &saved, nil
}

// GetCollection returns the stored stats row, or gorm.ErrRecordNotFound
func (w *StatsWorker) GetCollection(slug models.Slug) (*models.CollectionStats, error) {
	var stats models.CollectionStats
	if err := w.db.First(&stats, "slug = ?", slug).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

func (w *StatsWorker) markChecked(slug models.Slug, at time.Time) {
	w.db.Model(&models.CollectionStats{}).Where("slug = ?", slug).Update("last_stats_check", at)
}

func (w *StatsWorker) recordUnknown(slug models.Slug, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, c := range w.unknownCollections {
		if c.Slug == slug {
			w.unknownCollections[i].CheckedAt = at
			return
		}
	}
	log.Warnf("Stats worker: OpenSea has no collection %q", slug)
	w.unknownCollections = append(w.unknownCollections, UnknownCollection{Slug: slug, CheckedAt: at})
}

func (w *StatsWorker) clearUnknown(slug models.Slug) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, c := range w.unknownCollections {
		if c.Slug == slug {
			w.unknownCollections = append(w.unknownCollections[:i], w.unknownCollections[i+1:]...)
			return
		}
	}
}

// GetStatus returns the current status
func (w *StatsWorker) GetStatus() StatsStatus {
	var tracked, stale int64
	w.db.Model(&models.CollectionStats{}).Count(&tracked)
	w.db.Model(&models.CollectionStats{}).
		Where("stats_updated_at IS NULL OR stats_updated_at < ?", time.Now().Add(-w.staleness)).
		Count(&stale)

	w.mu.RLock()
	defer w.mu.RUnlock()

	unknown := make([]UnknownCollection, len(w.unknownCollections))
	copy(unknown, w.unknownCollections)

	return StatsStatus{
		LastUpdateTime:          w.lastUpdateTime,
		NextUpdateTime:          w.lastUpdateTime.Add(w.updateInterval),
		CollectionsUpdatedToday: w.collectionsUpdatedToday,
		BatchSize:               w.batchSize,
		QueueSize:               w.GetQueueSize(),
		TrackedCollections:      tracked,
		StaleCollections:        stale,
		UnknownCollections:      unknown,
	}
}

// Staleness is the age after which stats count as stale
func (w *StatsWorker) Staleness() time.Duration {
	return w.staleness
}
