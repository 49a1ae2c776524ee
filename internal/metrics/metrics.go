// Package metrics provides Prometheus metrics for the ape-monitor backend.
// Scrape these at /metrics for Grafana dashboards and alerting.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ape_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ape_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// OpenSea API Metrics
	OpenSeaRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ape_opensea_requests_total",
			Help: "Total number of OpenSea API requests",
		},
		[]string{"endpoint", "result"}, // result: "ok", "not_found", "throttled", "error"
	)

	OpenSeaRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ape_opensea_request_duration_seconds",
			Help:    "OpenSea API call latency",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"endpoint"},
	)

	OpenSeaPagesFetched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ape_opensea_pages_fetched_total",
			Help: "Pages successfully read from paginated OpenSea endpoints",
		},
		[]string{"endpoint"},
	)

	OpenSeaEventsFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ape_opensea_events_fetched_total",
			Help: "Marketplace events received from OpenSea",
		},
	)

	OpenSeaMalformedItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ape_opensea_malformed_items_total",
			Help: "Page elements skipped because they failed to decode",
		},
		[]string{"endpoint"},
	)

	OpenSeaPartialFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ape_opensea_partial_fetches_total",
			Help: "Paginated fetches that stopped before the last page",
		},
		[]string{"endpoint"},
	)

	// Trade Pipeline Metrics
	TradeReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ape_trade_reports_total",
			Help: "Trade reports served by outcome",
		},
		[]string{"result"}, // "complete", "partial", "cached", "failed"
	)

	MatchedTradesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ape_matched_trades_total",
			Help: "Sale/buy pairs matched by the trade pipeline",
		},
	)

	DroppedEventsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ape_dropped_events_total",
			Help: "Successful events involving neither side of the owner",
		},
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ape_pipeline_duration_seconds",
			Help:    "Time spent classifying and aggregating one wallet",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	TradeCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ape_trade_cache_hits_total",
			Help: "Trade report cache hit count",
		},
	)

	TradeCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ape_trade_cache_misses_total",
			Help: "Trade report cache miss count",
		},
	)

	// Stats Worker Metrics
	StatsUpdatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ape_stats_updates_total",
			Help: "Total number of collection stats refreshed",
		},
	)

	StatsUpdatesToday = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ape_stats_updates_today",
			Help: "Number of collection stats refreshed today (resets at midnight)",
		},
	)

	StatsQueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ape_stats_queue_size",
			Help: "Number of collections waiting in the priority refresh queue",
		},
	)

	StatsBatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ape_stats_batch_duration_seconds",
			Help:    "Time taken to process a stats refresh batch",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	TrackedCollections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ape_tracked_collections",
			Help: "Number of collections with a stats row",
		},
	)

	// Portfolio Metrics
	TrackedWallets = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ape_tracked_wallets",
			Help: "Number of wallets included in daily snapshots",
		},
	)

	SnapshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ape_snapshots_total",
			Help: "Portfolio snapshots recorded by outcome",
		},
		[]string{"result"}, // "ok", "partial", "failed"
	)
)
