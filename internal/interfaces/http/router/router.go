// Package router assembles the gin engine and HTTP server for the limitd
// admin surface.
package router

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/limitd/limitd/internal/config"
	"github.com/limitd/limitd/internal/interfaces/http/handlers"
	"github.com/limitd/limitd/internal/interfaces/http/middleware"
	"github.com/limitd/limitd/internal/infrastructure/monitoring"
	"github.com/limitd/limitd/pkg/logger"
)

// Router wires the middleware chain and route table onto a gin engine.
type Router struct {
	engine           *gin.Engine
	config           *config.Config
	logger           logger.Logger
	configHandler    *handlers.ConfigHandler
	limitHandler     *handlers.LimitHandler
	analyticsHandler *handlers.AnalyticsHandler
	referenceHandler *handlers.ReferenceHandler
	healthHandler    *handlers.HealthHandler
	tracer           trace.Tracer
	metrics          *monitoring.Metrics
	server           *http.Server
}

// NewRouter creates the router.
func NewRouter(
	cfg *config.Config,
	log logger.Logger,
	configHandler *handlers.ConfigHandler,
	limitHandler *handlers.LimitHandler,
	analyticsHandler *handlers.AnalyticsHandler,
	referenceHandler *handlers.ReferenceHandler,
	healthHandler *handlers.HealthHandler,
	tracer trace.Tracer,
	metrics *monitoring.Metrics,
) *Router {
	gin.SetMode(gin.ReleaseMode)

	return &Router{
		engine:           gin.New(),
		config:           cfg,
		logger:           log,
		configHandler:    configHandler,
		limitHandler:     limitHandler,
		analyticsHandler: analyticsHandler,
		referenceHandler: referenceHandler,
		healthHandler:    healthHandler,
		tracer:           tracer,
		metrics:          metrics,
	}
}

// SetupRoutes installs the middleware chain and the route table.
func (r *Router) SetupRoutes() {
	r.engine.Use(gin.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Observability(r.tracer, r.metrics))
	r.engine.Use(middleware.RequestLogger(r.logger))

	r.engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", "X-CSRF-Token"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.engine.GET("/health/live", r.healthHandler.Live)
	r.engine.GET("/health/ready", r.healthHandler.Ready)
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if r.config.Monitoring.PprofEnabled {
		pprof.Register(r.engine)
	}

	v1 := r.engine.Group("/api/v1")
	v1.Use(middleware.AdminAuth(r.config.Auth, r.logger))
	v1.Use(middleware.CSRFGuard(r.config.Auth))
	{
		configs := v1.Group("/configs")
		{
			configs.GET("", r.configHandler.List)
			configs.GET("/:id", r.configHandler.Get)
			configs.POST("", r.configHandler.Create)
			configs.PUT("/:id", r.configHandler.Update)
			configs.DELETE("/:id", r.configHandler.Delete)
			configs.POST("/:id/toggle", r.configHandler.Toggle)
		}

		v1.GET("/active", r.limitHandler.Active)
		v1.GET("/status/:configName/:key", r.limitHandler.Status)
		v1.POST("/reset/:configName", r.limitHandler.ResetAll)
		v1.POST("/reset/:configName/:key", r.limitHandler.Reset)

		v1.GET("/applications", r.referenceHandler.Applications)
		v1.GET("/roles", r.referenceHandler.Roles)
		v1.GET("/services", r.referenceHandler.Services)

		v1.GET("/analytics", r.analyticsHandler.Overview)
		v1.GET("/history", r.analyticsHandler.History)
	}

	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "the requested resource was not found",
		})
	})
}

// Engine exposes the underlying gin engine, mainly for tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Start runs the HTTP server until Shutdown is called.
func (r *Router) Start() error {
	r.SetupRoutes()

	addr := fmt.Sprintf("%s:%d", r.config.Server.Host, r.config.Server.Port)
	r.server = &http.Server{
		Addr:           addr,
		Handler:        r.engine,
		ReadTimeout:    time.Duration(r.config.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(r.config.Server.WriteTimeout) * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	r.logger.Info(context.Background(), "HTTP server listening", logger.String("addr", addr))
	if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (r *Router) Shutdown(ctx context.Context) error {
	if r.server == nil {
		return nil
	}
	return r.server.Shutdown(ctx)
}
