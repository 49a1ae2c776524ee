package services

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/shrimpynuts/ape-monitor-sub000/internal/models"
)

// AssetFetcher returns every asset an owner currently holds
type AssetFetcher interface {
	FetchAllAssets(ctx context.Context, owner string) (*AssetFetchResult, error)
}

// CollectionTracker registers collections so their stats get fetched
type CollectionTracker interface {
	TrackCollections(refs []models.CollectionRef) int
}

// PortfolioService values a wallet's current holdings at collection floor prices
type PortfolioService struct {
	assets       AssetFetcher
	tracker      CollectionTracker
	db           *gorm.DB
	allowPartial bool
}

// NewPortfolioService creates a portfolio service. tracker may be nil.
func NewPortfolioService(assets AssetFetcher, tracker CollectionTracker, db *gorm.DB, allowPartial bool) *PortfolioService {
	return &PortfolioService{
		assets:       assets,
		tracker:      tracker,
		db:           db,
		allowPartial: allowPartial,
	}
}

// GetHoldings groups the wallet's assets by collection, in the order first
// seen, and values each group at its stored floor price. Collections with no
// stats yet are valued at zero and handed to the tracker.
func (s *PortfolioService) GetHoldings(ctx context.Context, address string) (*models.Holdings, error) {
	owner, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	result, err := s.assets.FetchAllAssets(ctx, owner)
	partial := false
	if err != nil {
		if !errors.Is(err, ErrUpstreamUnavailable) || !s.allowPartial || result == nil || len(result.Assets) == 0 {
			return nil, fmt.Errorf("failed to fetch assets for %s: %w", owner, err)
		}
		log.Warnf("Portfolio: serving partial holdings for %s from %d assets: %v", owner, len(result.Assets), err)
		partial = true
	} else if result.Status == FetchPartial {
		partial = true
	}

	var refs []models.CollectionRef
	index := make(map[models.Slug]int)
	var groups []models.HoldingGroup
	for _, asset := range result.Assets {
		slug := asset.Collection.Slug
		if slug == "" {
			continue
		}
		i, ok := index[slug]
		if !ok {
			i = len(groups)
			index[slug] = i
			groups = append(groups, models.HoldingGroup{
				Slug:     slug,
				Name:     asset.Collection.Name,
				ImageURL: asset.Collection.ImageURL,
			})
			refs = append(refs, asset.Collection)
		}
		groups[i].Count++
	}

	stats, err := s.loadStats(refs)
	if err != nil {
		return nil, err
	}

	holdings := &models.Holdings{Address: owner, Groups: groups, Partial: partial}
	var missing []models.CollectionRef
	for i := range holdings.Groups {
		g := &holdings.Groups[i]
		holdings.AssetCount += g.Count

		st, ok := stats[g.Slug]
		if !ok || st.StatsUpdatedAt == nil {
			missing = append(missing, refs[i])
			continue
		}
		if g.Name == "" {
			g.Name = st.Name
		}
		g.StatsKnown = true
		g.FloorPrice = st.FloorPrice
		g.FloorValue = st.FloorPrice * float64(g.Count)
		holdings.FloorValue += g.FloorValue
	}

	if len(missing) > 0 && s.tracker != nil {
		s.tracker.TrackCollections(missing)
	}

	return holdings, nil
}

func (s *PortfolioService) loadStats(refs []models.CollectionRef) (map[models.Slug]models.CollectionStats, error) {
	out := make(map[models.Slug]models.CollectionStats, len(refs))
	if len(refs) == 0 {
		return out, nil
	}
	slugs := make([]models.Slug, len(refs))
	for i, ref := range refs {
		slugs[i] = ref.Slug
	}

	var rows []models.CollectionStats
	if err := s.db.Where("slug IN ?", slugs).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to load collection stats: %w", err)
	}
	for _, row := range rows {
		out[row.Slug] = row
	}
	return out, nil
}
