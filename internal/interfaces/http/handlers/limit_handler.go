package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/limitd/limitd/internal/application/dto"
	"github.com/limitd/limitd/internal/application/service"
	"github.com/limitd/limitd/internal/interfaces/http/middleware"
	"github.com/limitd/limitd/pkg/logger"
)

// LimitHandler serves the live counter inspection and reset routes.
type LimitHandler struct {
	limits *service.LimitAppService
	logger logger.Logger
}

// NewLimitHandler creates the active limit handler.
func NewLimitHandler(limits *service.LimitAppService, log logger.Logger) *LimitHandler {
	return &LimitHandler{
		limits: limits,
		logger: log.WithComponent("limit_handler"),
	}
}

// Active handles GET /api/v1/active. The optional config query parameter
// scopes the listing to one configuration's namespace.
func (h *LimitHandler) Active(c *gin.Context) {
	records, err := h.limits.ListActive(c.Request.Context(), c.Query("config"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, dto.ActiveLimitsResponse{Limits: records, Total: len(records)})
}

// Status handles GET /api/v1/status/:configName/:key.
func (h *LimitHandler) Status(c *gin.Context) {
	status, err := h.limits.Status(c.Request.Context(), c.Param("configName"), c.Param("key"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, status)
}

// Reset handles POST /api/v1/reset/:configName/:key.
func (h *LimitHandler) Reset(c *gin.Context) {
	result, err := h.limits.Reset(c.Request.Context(),
		c.Param("configName"), c.Param("key"), middleware.AdminSubject(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}

// ResetAll handles POST /api/v1/reset/:configName, clearing every bucket in
// the config's namespace.
func (h *LimitHandler) ResetAll(c *gin.Context) {
	result, err := h.limits.ResetAll(c.Request.Context(),
		c.Param("configName"), middleware.AdminSubject(c))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, result)
}
