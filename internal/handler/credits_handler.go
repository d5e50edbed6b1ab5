package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/octobees/contact-enricher/internal/dto"
	"github.com/octobees/contact-enricher/internal/service"
)

// CreditsHandler exposes balances, the audit trail and grants.
type CreditsHandler struct {
	credits *service.CreditsService
}

// NewCreditsHandler constructs a CreditsHandler.
func NewCreditsHandler(credits *service.CreditsService) *CreditsHandler {
	return &CreditsHandler{credits: credits}
}

// Balance handles GET /v1/credits/:user_id.
func (h *CreditsHandler) Balance(c echo.Context) error {
	balance, err := h.credits.Balance(c.Request().Context(), c.Param("user_id"))
	if err != nil {
		return serviceError(c, err, "failed to load balance")
	}
	return Success(c, http.StatusOK, "", balance)
}

// History handles GET /v1/credits/:user_id/logs?limit=N.
func (h *CreditsHandler) History(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return Error(c, http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}

	logs, err := h.credits.History(c.Request().Context(), c.Param("user_id"), limit)
	if err != nil {
		return serviceError(c, err, "failed to load credit history")
	}
	return Success(c, http.StatusOK, "", logs)
}

// Allocate handles POST /v1/credits/allocate.
func (h *CreditsHandler) Allocate(c echo.Context) error {
	var req dto.AllocateCreditsRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid JSON payload")
	}

	alloc, err := h.credits.Allocate(c.Request().Context(), req)
	if err != nil {
		return serviceError(c, err, "failed to allocate credits")
	}
	return Success(c, http.StatusCreated, "credits allocated", alloc)
}
