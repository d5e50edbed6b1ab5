package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/octobees/contact-enricher/internal/auth"
	"github.com/octobees/contact-enricher/internal/config"
	"github.com/octobees/contact-enricher/internal/handler"
	middlewarepkg "github.com/octobees/contact-enricher/internal/middleware"
)

// Handlers aggregates HTTP handlers used by the router.
type Handlers struct {
	Health  *handler.HealthHandler
	Auth    *handler.AuthHandler
	Enrich  *handler.EnrichHandler
	Credits *handler.CreditsHandler
	Jobs    *handler.JobsHandler
	Cache   *handler.CacheHandler
	// Metrics serves the Prometheus scrape endpoint; nil disables it.
	Metrics http.Handler
}

// Register wires all HTTP routes for the API.
func Register(e *echo.Echo, cfg *config.Config, jwtManager *auth.JWTManager, handlers Handlers) {
	e.GET("/healthz", handlers.Health.Healthz)
	if handlers.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(handlers.Metrics))
	}

	e.POST("/auth/token", handlers.Auth.Token)

	v1 := e.Group("/v1", middlewarepkg.JWT(jwtManager))

	service := v1.Group("", middlewarepkg.RequireRole(auth.RoleService))
	enrichLimit := middlewarepkg.ClientRateLimiter(cfg.RateLimitEnrich)
	service.POST("/enrich", handlers.Enrich.Enrich, enrichLimit)
	service.POST("/enrich/batch", handlers.Enrich.EnrichBatch, enrichLimit)
	service.POST("/enrich/upload", handlers.Enrich.UploadCSV, enrichLimit)

	service.GET("/credits/:user_id", handlers.Credits.Balance)
	service.GET("/credits/:user_id/logs", handlers.Credits.History)

	service.GET("/jobs/:job_id/contacts", handlers.Jobs.Contacts)
	service.GET("/jobs/:job_id/stats", handlers.Jobs.Stats)
	service.POST("/jobs/:job_id/complete", handlers.Jobs.Complete)

	service.GET("/cache/performance", handlers.Cache.Performance)

	admin := v1.Group("", middlewarepkg.RequireRole(auth.RoleAdmin))
	admin.POST("/credits/allocate", handlers.Credits.Allocate)
}
