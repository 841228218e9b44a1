// Package handlers implements the admin HTTP surface. Handlers are a thin
// authorization-gated façade: bind, delegate to an application service,
// render the envelope. No business logic lives here.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/limitd/limitd/internal/application/dto"
	"github.com/limitd/limitd/pkg/constants"
	"github.com/limitd/limitd/pkg/errors"
)

func requestID(c *gin.Context) string {
	return c.GetString(string(constants.ContextKeyRequestID))
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, dto.SuccessResponse(data, requestID(c)))
}

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if appErr, ok := errors.AsAppError(err); ok {
		status = appErr.HTTPStatus()
	}
	c.JSON(status, dto.ErrorResponse(err, requestID(c)))
}

func respondBindError(c *gin.Context, err error) {
	respondError(c, errors.ErrValidation(err.Error()))
}
