package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shrimpynuts/ape-monitor-sub000/internal/models"
	"github.com/shrimpynuts/ape-monitor-sub000/internal/services"
)

type WalletHandler struct {
	tradeService     *services.TradeService
	portfolioService *services.PortfolioService
	snapshotService  *services.SnapshotService
}

func NewWalletHandler(tradeService *services.TradeService, portfolioService *services.PortfolioService, snapshotService *services.SnapshotService) *WalletHandler {
	return &WalletHandler{
		tradeService:     tradeService,
		portfolioService: portfolioService,
		snapshotService:  snapshotService,
	}
}

// GetTrades returns matched trades per collection plus best/worst summary.
// ?refresh=true skips the cache.
func (h *WalletHandler) GetTrades(c *gin.Context) {
	refresh := c.Query("refresh") == "true"

	report, err := h.tradeService.GetTrades(c.Request.Context(), c.Param("address"), refresh)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetEvents proxies the wallet's OpenSea events with bundles split apart
func (h *WalletHandler) GetEvents(c *gin.Context) {
	events, partial, err := h.tradeService.GetEvents(c.Request.Context(), c.Param("address"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"events":  events,
		"count":   len(events),
		"partial": partial,
	})
}

// GetHoldings values the wallet's current assets at floor
func (h *WalletHandler) GetHoldings(c *gin.Context) {
	holdings, err := h.portfolioService.GetHoldings(c.Request.Context(), c.Param("address"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, holdings)
}

// GetHistory returns daily snapshots for ?period=week|month|3month|year|all
func (h *WalletHandler) GetHistory(c *gin.Context) {
	period := c.DefaultQuery("period", "month")

	snapshots, err := h.snapshotService.GetHistory(c.Param("address"), period)
	if err != nil {
		respondError(c, err)
		return
	}
	address, _ := services.NormalizeAddress(c.Param("address"))
	c.JSON(http.StatusOK, models.ValueHistoryResponse{
		Address:   address,
		Snapshots: snapshots,
		Period:    period,
		Latest:    h.snapshotService.GetLastSnapshot(address),
	})
}

// ListWallets returns the wallets recorded by the daily snapshot
func (h *WalletHandler) ListWallets(c *gin.Context) {
	wallets, err := h.snapshotService.ListWallets()
	if err != nil {
		respondError(c, err)
		return
	}
	resp := gin.H{"wallets": wallets}
	if last := h.snapshotService.LastSnapshotTime(); !last.IsZero() {
		resp["last_snapshot_at"] = last
	}
	c.JSON(http.StatusOK, resp)
}

// AddWallet starts tracking a wallet
func (h *WalletHandler) AddWallet(c *gin.Context) {
	var req models.AddWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	wallet, created, err := h.snapshotService.TrackWallet(req.Address, req.Label)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, wallet)
}

// DeleteWallet stops tracking a wallet; past snapshots stay
func (h *WalletHandler) DeleteWallet(c *gin.Context) {
	if err := h.snapshotService.UntrackWallet(c.Param("address")); err != nil {
		respondError(c, err)
		return
	}
	h.tradeService.Invalidate(c.Request.Context(), c.Param("address"))
	c.JSON(http.StatusOK, gin.H{"message": "wallet removed"})
}

// TakeSnapshots records every tracked wallet now, replacing today's rows
func (h *WalletHandler) TakeSnapshots(c *gin.Context) {
	run, err := h.snapshotService.TakeSnapshots(c.Request.Context(), true)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// TakeSnapshot records one wallet now, tracked or not
func (h *WalletHandler) TakeSnapshot(c *gin.Context) {
	snapshot, err := h.snapshotService.TakeSnapshot(c.Request.Context(), c.Param("address"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, snapshot)
}
