package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/shrimpynuts/ape-monitor-sub000/internal/metrics"
	"github.com/shrimpynuts/ape-monitor-sub000/internal/models"
	"github.com/shrimpynuts/ape-monitor-sub000/internal/trades"
)

// EventFetcher returns every marketplace event involving an account
type EventFetcher interface {
	FetchAllEvents(ctx context.Context, owner string) (*EventFetchResult, error)
}

// TradeService builds trade reports for wallets, fronted by a cache
type TradeService struct {
	fetcher      EventFetcher
	cache        TradeCache
	policy       models.SummaryPolicy
	allowPartial bool
	now          func() time.Time
}

// NewTradeService creates a trade service. A nil cache disables caching.
func NewTradeService(fetcher EventFetcher, cache TradeCache, policy models.SummaryPolicy, allowPartial bool) *TradeService {
	if policy == "" {
		policy = models.SummaryPolicyAny
	}
	return &TradeService{
		fetcher:      fetcher,
		cache:        cache,
		policy:       policy,
		allowPartial: allowPartial,
		now:          time.Now,
	}
}

// GetTrades returns the matched trades of a wallet. Complete reports are
// cached; refresh bypasses the cache. When OpenSea fails midway the report
// is built from what was fetched and flagged partial, if partial results are
// allowed and anything was fetched at all.
func (s *TradeService) GetTrades(ctx context.Context, address string, refresh bool) (*models.TradeReport, error) {
	owner, err := NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	if !refresh && s.cache != nil {
		if report, ok := s.cache.Get(ctx, owner); ok {
			metrics.TradeCacheHits.Inc()
			metrics.TradeReportsTotal.WithLabelValues("cached").Inc()
			return report, nil
		}
		metrics.TradeCacheMisses.Inc()
	}

	events, partial, err := s.fetchEvents(ctx, owner)
	if err != nil {
		metrics.TradeReportsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	start := time.Now()
	result := trades.Run(events, owner, s.policy)
	metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	metrics.MatchedTradesTotal.Add(float64(result.Counts.Matched))
	metrics.DroppedEventsTotal.Add(float64(result.Counts.Dropped))

	report := &models.TradeReport{
		Address:            owner,
		TradesByCollection: result.TradesByCollection,
		TotalTradeStats:    result.TotalTradeStats,
		TotalProfit:        result.TradesByCollection.TotalProfit(),
		Counts:             result.Counts,
		Policy:             s.policy,
		Partial:            partial,
		GeneratedAt:        s.now().UTC(),
	}

	log.Infof("TradeService: %s has %d matched trades across %d collections (events=%d dropped=%d partial=%v)",
		owner, result.Counts.Matched, result.TradesByCollection.Len(), result.Counts.Events, result.Counts.Dropped, partial)

	if partial {
		metrics.TradeReportsTotal.WithLabelValues("partial").Inc()
		return report, nil
	}
	metrics.TradeReportsTotal.WithLabelValues("complete").Inc()
	if s.cache != nil {
		s.cache.Set(ctx, owner, report)
	}
	return report, nil
}

// GetEvents returns the wallet's events with bundles already split into
// single-asset events. partial reports an incomplete fetch.
func (s *TradeService) GetEvents(ctx context.Context, address string) (events []models.MarketplaceEvent, partial bool, err error) {
	owner, err := NormalizeAddress(address)
	if err != nil {
		return nil, false, err
	}
	raw, partial, err := s.fetchEvents(ctx, owner)
	if err != nil {
		return nil, false, err
	}
	return trades.UnbundleEvents(raw), partial, nil
}

// Invalidate drops any cached report for the wallet
func (s *TradeService) Invalidate(ctx context.Context, address string) {
	if s.cache == nil {
		return
	}
	if owner, err := NormalizeAddress(address); err == nil {
		s.cache.Delete(ctx, owner)
	}
}

// fetchEvents applies the partial-result policy to a fetch
func (s *TradeService) fetchEvents(ctx context.Context, owner string) ([]models.MarketplaceEvent, bool, error) {
	result, err := s.fetcher.FetchAllEvents(ctx, owner)
	if err == nil {
		return result.Events, result.Status == FetchPartial, nil
	}

	if errors.Is(err, ErrUpstreamUnavailable) && s.allowPartial && result != nil && len(result.Events) > 0 {
		log.Warnf("TradeService: serving partial report for %s from %d events: %v", owner, len(result.Events), err)
		return result.Events, true, nil
	}
	return nil, false, fmt.Errorf("failed to fetch events for %s: %w", owner, err)
}
