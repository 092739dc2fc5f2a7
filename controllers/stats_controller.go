package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/cppla/aishort/services"
	"github.com/cppla/aishort/utils"
)

// StatsController provides aggregate counters over all short URLs.
type StatsController struct {
	shortener *services.Shortener
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(shortener *services.Shortener) *StatsController {
	return &StatsController{shortener: shortener}
}

// GetStats returns total, active and click counts.
func (s *StatsController) GetStats(ctx *gin.Context) {
	st, err := s.shortener.Stats(ctx.Request.Context())
	if err != nil {
		// Fallback to zeros instead of failing the whole endpoint
		utils.Sugar.Warnf("stats query failed: %v", err)
		st = services.Stats{}
	}
	utils.Success(ctx, gin.H{
		"url_count":    st.Total,
		"active_count": st.Active,
		"click_count":  st.TotalClicks,
	})
}
