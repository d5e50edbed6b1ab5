package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/octobees/contact-enricher/internal/service"
)

// CacheHandler reports cache efficiency.
type CacheHandler struct {
	reports *service.ReportsService
}

// NewCacheHandler constructs a CacheHandler.
func NewCacheHandler(reports *service.ReportsService) *CacheHandler {
	return &CacheHandler{reports: reports}
}

// Performance handles GET /v1/cache/performance?days=N.
func (h *CacheHandler) Performance(c echo.Context) error {
	days := 0
	if raw := c.QueryParam("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Error(c, http.StatusBadRequest, "days must be an integer")
		}
		days = n
	}

	report, err := h.reports.CachePerformance(c.Request().Context(), days)
	if err != nil {
		return serviceError(c, err, "failed to load cache performance")
	}
	return Success(c, http.StatusOK, "", report)
}
