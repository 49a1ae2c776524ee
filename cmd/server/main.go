package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/shrimpynuts/ape-monitor-sub000/internal/api"
	"github.com/shrimpynuts/ape-monitor-sub000/internal/config"
	"github.com/shrimpynuts/ape-monitor-sub000/internal/database"
	"github.com/shrimpynuts/ape-monitor-sub000/internal/services"
)

func main() {
	cfg := config.Load()
	cfg.ConfigureLogging()

	warnings, err := cfg.Validate()
	for _, w := range warnings {
		log.Warnf("Config: %s", w)
	}
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	cfg.PrintConfig()

	// Initialize database
	if err := database.Initialize(cfg.DBPath); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	db := database.GetDB()

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	opensea := services.NewOpenSeaService(services.OpenSeaConfig{
		APIKey:            cfg.OpenSeaAPIKey,
		BaseURL:           cfg.OpenSeaBaseURL,
		PageSize:          cfg.OpenSeaPageSize,
		AssetPageSize:     cfg.OpenSeaAssetPageSize,
		RequestsPerSecond: cfg.OpenSeaRequestsPerSecond,
		Timeout:           cfg.OpenSeaTimeout,
	})

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	tradeCache := services.NewTradeCache(pingCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.TradeCacheSize, cfg.TradeCacheTTL)
	pingCancel()

	tradeService := services.NewTradeService(opensea, tradeCache, cfg.TradeSummaryPolicy, cfg.TradeAllowPartial)
	statsWorker := services.NewStatsWorker(opensea, db, cfg.StatsRefreshInterval, cfg.StatsBatchSize, cfg.StatsStaleness)
	portfolioService := services.NewPortfolioService(opensea, statsWorker, db, cfg.TradeAllowPartial)
	snapshotService := services.NewSnapshotService(db, tradeService, portfolioService, cfg.SnapshotHour)

	// Start background workers with panic recovery
	go runWithRecovery(ctx, "stats worker", statsWorker.Start)
	go runWithRecovery(ctx, "snapshot service", snapshotService.Start)

	// Setup router
	router := api.SetupRouter(api.Services{
		Trades:    tradeService,
		Portfolio: portfolioService,
		Snapshots: snapshotService,
		Stats:     statsWorker,
	}, cfg.CORSOrigins)

	// Create HTTP server for graceful shutdown
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Infof("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	// Cancel the context to stop the background workers
	cancel()

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnf("Server forced to shutdown: %v", err)
	}

	if closer, ok := tradeCache.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	log.Info("Server exited")
}

// runWithRecovery restarts a background loop 30 seconds after a panic
func runWithRecovery(ctx context.Context, name string, start func(context.Context)) {
	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("PANIC in %s: %v - restarting in 30 seconds", name, r)
				}
			}()
			start(ctx)
		}()

		select {
		case <-ctx.Done():
			return // Graceful shutdown
		case <-time.After(30 * time.Second):
			log.Infof("%s restarting after panic recovery...", name)
		}
	}
}
