package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/limitd/limitd/internal/application/service"
	"github.com/limitd/limitd/pkg/logger"
)

// AnalyticsHandler serves the dashboard and history routes.
type AnalyticsHandler struct {
	analytics *service.AnalyticsAppService
	logger    logger.Logger
}

// NewAnalyticsHandler creates the analytics handler.
func NewAnalyticsHandler(analytics *service.AnalyticsAppService, log logger.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analytics: analytics,
		logger:    log.WithComponent("analytics_handler"),
	}
}

// Overview handles GET /api/v1/analytics?timeRange=.
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	overview, err := h.analytics.GetOverview(c.Request.Context(), c.Query("timeRange"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, overview)
}

// History handles GET /api/v1/history?timeRange=.
func (h *AnalyticsHandler) History(c *gin.Context) {
	history, err := h.analytics.GetHistory(c.Request.Context(), c.Query("timeRange"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, history)
}
