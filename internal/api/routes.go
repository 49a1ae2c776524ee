package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shrimpynuts/ape-monitor-sub000/internal/api/handlers"
	"github.com/shrimpynuts/ape-monitor-sub000/internal/services"
)

// Services bundles what the router needs
type Services struct {
	Trades    *services.TradeService
	Portfolio *services.PortfolioService
	Snapshots *services.SnapshotService
	Stats     *services.StatsWorker
}

func SetupRouter(svc Services, corsOrigins []string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestMetrics())

	// CORS configuration - allow configured origins or use defaults
	config := cors.DefaultConfig()
	if len(corsOrigins) > 0 {
		config.AllowOrigins = corsOrigins
	} else {
		config.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	config.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader}
	config.ExposeHeaders = []string{requestIDHeader}
	config.AllowCredentials = false
	router.Use(cors.New(config))

	// Initialize handlers
	walletHandler := handlers.NewWalletHandler(svc.Trades, svc.Portfolio, svc.Snapshots)
	statsHandler := handlers.NewStatsHandler(svc.Stats)

	// API routes
	api := router.Group("/api")
	{
		// Wallet routes
		wallets := api.Group("/wallets")
		{
			wallets.GET("", walletHandler.ListWallets)
			wallets.POST("", walletHandler.AddWallet)
			wallets.DELETE("/:address", walletHandler.DeleteWallet)
			wallets.GET("/:address/trades", walletHandler.GetTrades)
			wallets.GET("/:address/events", walletHandler.GetEvents)
			wallets.GET("/:address/holdings", walletHandler.GetHoldings)
			wallets.GET("/:address/history", walletHandler.GetHistory)
			wallets.POST("/:address/snapshot", walletHandler.TakeSnapshot)
		}

		// Collection routes
		collections := api.Group("/collections")
		{
			collections.GET("/:slug/stats", statsHandler.GetCollectionStats)
			collections.POST("/:slug/refresh", statsHandler.RefreshCollection)
		}

		api.GET("/stats/status", statsHandler.GetStatsStatus)
		api.POST("/snapshots", walletHandler.TakeSnapshots)
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	return router
}
