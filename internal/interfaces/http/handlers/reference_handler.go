package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/limitd/limitd/internal/domain/repository"
	"github.com/limitd/limitd/pkg/logger"
)

// ReferenceHandler serves the reference data the override forms consume.
type ReferenceHandler struct {
	refs   repository.ReferenceRepository
	logger logger.Logger
}

// NewReferenceHandler creates the reference data handler.
func NewReferenceHandler(refs repository.ReferenceRepository, log logger.Logger) *ReferenceHandler {
	return &ReferenceHandler{
		refs:   refs,
		logger: log.WithComponent("reference_handler"),
	}
}

// Applications handles GET /api/v1/applications.
func (h *ReferenceHandler) Applications(c *gin.Context) {
	apps, err := h.refs.ListApplications(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"applications": apps})
}

// Roles handles GET /api/v1/roles.
func (h *ReferenceHandler) Roles(c *gin.Context) {
	roles, err := h.refs.ListRoles(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"roles": roles})
}

// Services handles GET /api/v1/services.
func (h *ReferenceHandler) Services(c *gin.Context) {
	services, err := h.refs.ListServices(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"services": services})
}
