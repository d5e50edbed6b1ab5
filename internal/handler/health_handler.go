package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

// Ping calls f.
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler answers liveness probes.
type HealthHandler struct {
	store Pinger
}

// NewHealthHandler constructs a HealthHandler. A nil store skips the ping.
func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

// Healthz handles GET /healthz.
func (h *HealthHandler) Healthz(c echo.Context) error {
	if h.store != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.store.Ping(ctx); err != nil {
			return Error(c, http.StatusServiceUnavailable, "store unreachable")
		}
	}
	return Success(c, http.StatusOK, "service healthy", map[string]any{"status": "ok"})
}
