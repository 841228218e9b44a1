// Package middleware provides the gin middleware of the limitd service:
// rate limit enforcement, admin authentication, and request observability.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	appservice "github.com/limitd/limitd/internal/application/service"
	domainsvc "github.com/limitd/limitd/internal/domain/service"
	"github.com/limitd/limitd/pkg/errors"
)

// Caller identity headers trusted from the upstream gateway.
const (
	HeaderApplicationID = "X-Application-Id"
	HeaderRoleID        = "X-Role-Id"
	HeaderServiceID     = "X-Service-Id"
	HeaderProcedure     = "X-Procedure-Name"
)

// RateLimit enforces the named config on every request passing through.
// A throttled request gets 429 with the config's message; infrastructure
// trouble never turns into a 500 here.
func RateLimit(enforcement *appservice.EnforcementAppService, configName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := requestContext(c)
		outcome := enforcement.Check(c.Request.Context(), configName, req)

		if outcome.Passthrough {
			c.Next()
			return
		}

		now := time.Now()
		c.Header("X-RateLimit-Limit", strconv.Itoa(outcome.Limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(outcome.Remaining(), 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(outcome.ResetTime.Unix(), 10))

		if !outcome.Allowed {
			retryAfter := int(outcome.RetryAfter(now).Seconds() + 0.5)
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))

			appErr := errors.ErrRateLimited(outcome.Message, outcome.ResetTime)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      appErr.Code,
				"message":    appErr.Message,
				"reset_time": outcome.ResetTime.UnixMilli(),
			})
			enforcement.RecordOutcome(c.Request.Context(), outcome, http.StatusTooManyRequests)
			return
		}

		c.Next()

		enforcement.RecordOutcome(c.Request.Context(), outcome, c.Writer.Status())
	}
}

// requestContext snapshots the request for key derivation. Header and query
// views keep the first value per key; gin's ClientIP already honors the
// trusted forwarded-for chain.
func requestContext(c *gin.Context) *domainsvc.RequestContext {
	headers := make(map[string]string, len(c.Request.Header))
	for k, v := range c.Request.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}
	query := make(map[string]string)
	for k, v := range c.Request.URL.Query() {
		if len(v) > 0 {
			query[k] = v[0]
		}
	}

	return &domainsvc.RequestContext{
		ApplicationID: c.GetHeader(HeaderApplicationID),
		RoleID:        c.GetHeader(HeaderRoleID),
		ServiceID:     c.GetHeader(HeaderServiceID),
		ProcedureName: c.GetHeader(HeaderProcedure),
		ClientIP:      c.ClientIP(),
		Method:        c.Request.Method,
		Path:          c.Request.URL.Path,
		Headers:       headers,
		Query:         query,
	}
}
