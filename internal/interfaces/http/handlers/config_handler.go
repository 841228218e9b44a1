package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/limitd/limitd/internal/application/dto"
	"github.com/limitd/limitd/internal/application/service"
	"github.com/limitd/limitd/internal/domain/repository"
	"github.com/limitd/limitd/internal/interfaces/http/middleware"
	"github.com/limitd/limitd/pkg/logger"
)

// ConfigHandler serves the configuration CRUD routes.
type ConfigHandler struct {
	configs     *service.ConfigAppService
	enforcement *service.EnforcementAppService
	logger      logger.Logger
}

// NewConfigHandler creates the configuration handler. enforcement may be nil
// when the admin surface runs without a local enforcement path.
func NewConfigHandler(configs *service.ConfigAppService, enforcement *service.EnforcementAppService, log logger.Logger) *ConfigHandler {
	return &ConfigHandler{
		configs:     configs,
		enforcement: enforcement,
		logger:      log.WithComponent("config_handler"),
	}
}

// List handles GET /api/v1/configs.
func (h *ConfigHandler) List(c *gin.Context) {
	var query dto.ListConfigsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondBindError(c, err)
		return
	}

	configs, err := h.configs.List(c.Request.Context(), repository.ConfigFilter{
		Type:    query.Type,
		Enabled: query.Enabled,
		Search:  query.Search,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	respond(c, http.StatusOK, dto.ConfigListResponse{Configs: configs, Total: len(configs)})
}

// Get handles GET /api/v1/configs/:id.
func (h *ConfigHandler) Get(c *gin.Context) {
	cfg, err := h.configs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, cfg)
}

// Create handles POST /api/v1/configs.
func (h *ConfigHandler) Create(c *gin.Context) {
	var req dto.CreateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	cfg, err := h.configs.Create(c.Request.Context(), &req, middleware.AdminSubject(c))
	if err != nil {
		respondError(c, err)
		return
	}

	h.invalidate(cfg.Name)
	respond(c, http.StatusCreated, cfg)
}

// Update handles PUT /api/v1/configs/:id.
func (h *ConfigHandler) Update(c *gin.Context) {
	var req dto.UpdateConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	cfg, err := h.configs.Update(c.Request.Context(), c.Param("id"), &req, middleware.AdminSubject(c))
	if err != nil {
		respondError(c, err)
		return
	}

	h.invalidate(cfg.Name)
	respond(c, http.StatusOK, cfg)
}

// Toggle handles POST /api/v1/configs/:id/toggle.
func (h *ConfigHandler) Toggle(c *gin.Context) {
	var req dto.ToggleConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	cfg, err := h.configs.Toggle(c.Request.Context(), c.Param("id"), *req.Enabled,
		middleware.AdminSubject(c), req.ChangeReason)
	if err != nil {
		respondError(c, err)
		return
	}

	h.invalidate(cfg.Name)
	respond(c, http.StatusOK, cfg)
}

// Delete handles DELETE /api/v1/configs/:id.
func (h *ConfigHandler) Delete(c *gin.Context) {
	var req dto.DeleteConfigRequest
	// Body is optional on delete.
	_ = c.ShouldBindJSON(&req)

	name := c.Param("id")
	if err := h.configs.Delete(c.Request.Context(), name, middleware.AdminSubject(c), req.ChangeReason); err != nil {
		respondError(c, err)
		return
	}

	h.invalidate(name)
	respond(c, http.StatusOK, gin.H{"deleted": name})
}

func (h *ConfigHandler) invalidate(name string) {
	if h.enforcement != nil {
		h.enforcement.InvalidateConfig(name)
	}
}
