package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/shrimpynuts/ape-monitor-sub000/internal/metrics"
	"github.com/shrimpynuts/ape-monitor-sub000/internal/models"
)

const (
	openSeaDefaultBaseURL   = "https://api.opensea.io/api/v1"
	openSeaDefaultTimeout   = 30 * time.Second
	openSeaDefaultPageSize  = 300
	openSeaDefaultAssetPage = 50

	// maxPages bounds a single paginated walk; a wallet with more history
	// than this comes back as a partial fetch.
	maxPages = 200

	maxBodyBytes  = 32 << 20
	maxDetailSize = 200
)

// FetchStatus tells the caller how much of a paginated resource was read
type FetchStatus string

const (
	FetchComplete FetchStatus = "complete"
	FetchPartial  FetchStatus = "partial"
	FetchFailed   FetchStatus = "failed"
)

// EventFetchResult holds every event accumulated for one account
type EventFetchResult struct {
	Events []models.MarketplaceEvent
	Pages  int
	Status FetchStatus
}

// AssetFetchResult holds every asset accumulated for one owner
type AssetFetchResult struct {
	Assets []models.Asset
	Pages  int
	Status FetchStatus
}

// OpenSeaConfig carries the client settings read from the environment
type OpenSeaConfig struct {
	APIKey            string
	BaseURL           string
	PageSize          int
	AssetPageSize     int
	RequestsPerSecond float64
	Timeout           time.Duration
}

// OpenSeaService handles API calls to OpenSea for events, assets and collection stats
type OpenSeaService struct {
	client        *http.Client
	apiKey        string
	baseURL       string
	pageSize      int
	assetPageSize int
	limiter       *rate.Limiter
}

// NewOpenSeaService creates a new OpenSea API service
func NewOpenSeaService(cfg OpenSeaConfig) *OpenSeaService {
	if cfg.BaseURL == "" {
		cfg.BaseURL = openSeaDefaultBaseURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = openSeaDefaultPageSize
	}
	if cfg.AssetPageSize <= 0 {
		cfg.AssetPageSize = openSeaDefaultAssetPage
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = openSeaDefaultTimeout
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &OpenSeaService{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiKey:        cfg.APIKey,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		pageSize:      cfg.PageSize,
		assetPageSize: cfg.AssetPageSize,
		limiter:       rate.NewLimiter(limit, 1),
	}
}

// FetchAllEvents pages through every marketplace event involving owner.
// The returned result always holds what was accumulated, even alongside an error.
func (s *OpenSeaService) FetchAllEvents(ctx context.Context, owner string) (*EventFetchResult, error) {
	params := url.Values{}
	params.Set("account_address", owner)
	params.Set("only_opensea", "false")

	events, pages, status, err := collectPages[models.MarketplaceEvent](ctx, s, pageRequest{
		endpoint: "events",
		path:     "/events",
		key:      "asset_events",
		params:   params,
		pageSize: s.pageSize,
	})
	metrics.OpenSeaEventsFetched.Add(float64(len(events)))

	return &EventFetchResult{Events: events, Pages: pages, Status: status}, err
}

// FetchAllAssets pages through every asset currently held by owner
func (s *OpenSeaService) FetchAllAssets(ctx context.Context, owner string) (*AssetFetchResult, error) {
	params := url.Values{}
	params.Set("owner", owner)

	assets, pages, status, err := collectPages[models.Asset](ctx, s, pageRequest{
		endpoint: "assets",
		path:     "/assets",
		key:      "assets",
		params:   params,
		pageSize: s.assetPageSize,
	})

	return &AssetFetchResult{Assets: assets, Pages: pages, Status: status}, err
}

// GetCollectionStats fetches market stats for one collection.
// Returns nil, nil when OpenSea does not know the slug.
func (s *OpenSeaService) GetCollectionStats(ctx context.Context, slug models.Slug) (*models.CollectionStats, error) {
	body, err := s.get(ctx, "stats", "/collection/"+url.PathEscape(string(slug))+"/stats", nil)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	stats := gjson.GetBytes(body, "stats")
	if !stats.IsObject() {
		return nil, &UpstreamError{Endpoint: "stats", Detail: errorDetail(body)}
	}

	now := time.Now()
	return &models.CollectionStats{
		Slug:           slug,
		FloorPrice:     stats.Get("floor_price").Float(), // null for collections without listings
		OneDayVolume:   stats.Get("one_day_volume").Float(),
		OneDayChange:   stats.Get("one_day_change").Float(),
		SevenDayVolume: stats.Get("seven_day_volume").Float(),
		TotalVolume:    stats.Get("total_volume").Float(),
		NumOwners:      int(stats.Get("num_owners").Int()),
		TotalSupply:    stats.Get("total_supply").Float(),
		MarketCap:      stats.Get("market_cap").Float(),
		StatsUpdatedAt: &now,
		LastStatsCheck: &now,
	}, nil
}

type pageRequest struct {
	endpoint string
	path     string
	key      string // array holding the page items
	params   url.Values
	pageSize int
}

// collectPages walks an offset/limit endpoint until a short page arrives.
// Items that fail to decode are skipped and counted; the offset follows the
// raw element count.
// A 200 body without the items key ends the walk quietly with FetchPartial;
// upstream failures end it with FetchPartial or FetchFailed plus the error.
func collectPages[T any](ctx context.Context, s *OpenSeaService, req pageRequest) ([]T, int, FetchStatus, error) {
	var items []T
	pages, offset := 0, 0

	stop := func(err error) ([]T, int, FetchStatus, error) {
		metrics.OpenSeaPartialFetches.WithLabelValues(req.endpoint).Inc()
		if len(items) == 0 && err != nil {
			return items, pages, FetchFailed, err
		}
		return items, pages, FetchPartial, err
	}

	for pages < maxPages {
		params := url.Values{}
		for k, v := range req.params {
			params[k] = v
		}
		params.Set("offset", strconv.Itoa(offset))
		params.Set("limit", strconv.Itoa(req.pageSize))

		body, err := s.get(ctx, req.endpoint, req.path, params)
		if err != nil {
			log.Warnf("OpenSea: %s fetch stopped after %d pages: %v", req.endpoint, pages, err)
			return stop(err)
		}

		raw := gjson.GetBytes(body, req.key)
		if !raw.IsArray() {
			if detail := gjson.GetBytes(body, "detail"); detail.Exists() {
				metrics.OpenSeaRequestsTotal.WithLabelValues(req.endpoint, "throttled").Inc()
				err := &UpstreamError{Endpoint: req.endpoint, Detail: truncate(detail.String())}
				log.Warnf("OpenSea: %s fetch stopped after %d pages: %v", req.endpoint, pages, err)
				return stop(err)
			}
			log.Warnf("OpenSea: %s page at offset %d has no %q, keeping %d items", req.endpoint, offset, req.key, len(items))
			return stop(nil)
		}

		received := 0
		raw.ForEach(func(_, elem gjson.Result) bool {
			var item T
			if err := json.Unmarshal([]byte(elem.Raw), &item); err != nil {
				metrics.OpenSeaMalformedItems.WithLabelValues(req.endpoint).Inc()
				log.Warnf("OpenSea: skipping malformed %s item at offset %d: %v", req.endpoint, offset+received, err)
			} else {
				items = append(items, item)
			}
			received++
			return true
		})

		offset += received
		pages++
		metrics.OpenSeaPagesFetched.WithLabelValues(req.endpoint).Inc()
		log.Debugf("OpenSea: %s page %d returned %d items", req.endpoint, pages, received)

		if received < req.pageSize {
			return items, pages, FetchComplete, nil
		}
	}

	log.Warnf("OpenSea: %s fetch hit the %d page cap with %d items", req.endpoint, maxPages, len(items))
	return stop(nil)
}

// get performs one paced GET and returns the body of a 200 response
func (s *OpenSeaService) get(ctx context.Context, endpoint, path string, params url.Values) ([]byte, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for rate limiter: %w", err)
	}

	reqURL := s.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("X-API-KEY", s.apiKey)
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	metrics.OpenSeaRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		metrics.OpenSeaRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, &UpstreamError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		metrics.OpenSeaRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, &UpstreamError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		metrics.OpenSeaRequestsTotal.WithLabelValues(endpoint, "ok").Inc()
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		metrics.OpenSeaRequestsTotal.WithLabelValues(endpoint, "not_found").Inc()
		return nil, errNotFound
	default:
		upstreamErr := &UpstreamError{Endpoint: endpoint, StatusCode: resp.StatusCode, Detail: errorDetail(body)}
		result := "error"
		if upstreamErr.Throttled() {
			result = "throttled"
		}
		metrics.OpenSeaRequestsTotal.WithLabelValues(endpoint, result).Inc()
		return nil, upstreamErr
	}
}

// errorDetail pulls a human-readable message out of an error body
func errorDetail(body []byte) string {
	for _, path := range []string{"detail", "message", "errors.0"} {
		if v := gjson.GetBytes(body, path); v.Exists() {
			return truncate(v.String())
		}
	}
	return truncate(strings.TrimSpace(string(body)))
}

func truncate(s string) string {
	if len(s) > maxDetailSize {
		return s[:maxDetailSize] + "..."
	}
	return s
}
