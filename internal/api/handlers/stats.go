package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shrimpynuts/ape-monitor-sub000/internal/models"
	"github.com/shrimpynuts/ape-monitor-sub000/internal/services"
)

type StatsHandler struct {
	statsWorker *services.StatsWorker
}

func NewStatsHandler(statsWorker *services.StatsWorker) *StatsHandler {
	return &StatsHandler{
		statsWorker: statsWorker,
	}
}

// GetStatsStatus returns the refresh worker state
func (h *StatsHandler) GetStatsStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.statsWorker.GetStatus())
}

// GetCollectionStats returns stored stats for a collection
func (h *StatsHandler) GetCollectionStats(c *gin.Context) {
	slug, err := services.NormalizeSlug(c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}

	stats, err := h.statsWorker.GetCollection(models.Slug(slug))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"stats": stats,
		"fresh": stats.IsFresh(h.statsWorker.Staleness()),
	})
}

// RefreshCollection fetches a collection's stats from OpenSea right away.
// ?async=true only queues it for the next batch.
func (h *StatsHandler) RefreshCollection(c *gin.Context) {
	slug, err := services.NormalizeSlug(c.Param("slug"))
	if err != nil {
		respondError(c, err)
		return
	}

	if c.Query("async") == "true" {
		h.statsWorker.TrackCollections([]models.CollectionRef{{Slug: models.Slug(slug)}})
		position := h.statsWorker.QueueRefresh(models.Slug(slug))
		c.JSON(http.StatusAccepted, gin.H{"queued": slug, "position": position})
		return
	}

	stats, err := h.statsWorker.RefreshCollection(c.Request.Context(), models.Slug(slug))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}
