package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	domainsvc "github.com/limitd/limitd/internal/domain/service"
	"github.com/limitd/limitd/pkg/logger"
)

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	db     *gorm.DB
	store  domainsvc.CounterStore
	logger logger.Logger
}

// NewHealthHandler creates the health handler.
func NewHealthHandler(db *gorm.DB, store domainsvc.CounterStore, log logger.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		store:  store,
		logger: log,
	}
}

// Live handles GET /health/live. The process is up; nothing else is checked.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
	})
}

// Ready handles GET /health/ready, verifying both backing stores.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{
		"database": h.checkDatabase(ctx),
		"counter":  h.checkStore(ctx),
	}

	status := http.StatusOK
	state := "ready"
	for _, v := range checks {
		if v != "ok" {
			status = http.StatusServiceUnavailable
			state = "unavailable"
			break
		}
	}

	c.JSON(status, gin.H{
		"status":    state,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}

func (h *HealthHandler) checkDatabase(ctx context.Context) string {
	if h.db == nil {
		return "disabled"
	}
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		h.logger.Warn(ctx, "database health check failed", logger.Error(err))
		return err.Error()
	}
	return "ok"
}

func (h *HealthHandler) checkStore(ctx context.Context) string {
	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn(ctx, "counter store health check failed", logger.Error(err))
		return err.Error()
	}
	return "ok"
}
