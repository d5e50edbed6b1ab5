package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/octobees/contact-enricher/internal/dto"
	"github.com/octobees/contact-enricher/internal/service"
)

// EnrichHandler resolves contacts synchronously.
type EnrichHandler struct {
	enrichment *service.EnrichmentService
	csvLimit   int
}

// NewEnrichHandler wires a new EnrichHandler instance. csvLimit caps uploaded rows.
func NewEnrichHandler(enrichment *service.EnrichmentService, csvLimit int) *EnrichHandler {
	return &EnrichHandler{enrichment: enrichment, csvLimit: csvLimit}
}

// Enrich handles POST /v1/enrich.
func (h *EnrichHandler) Enrich(c echo.Context) error {
	var req dto.EnrichRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid JSON payload")
	}

	outcome, err := h.enrichment.Enrich(c.Request().Context(), req)
	if err != nil {
		return serviceError(c, err, "failed to enrich contact")
	}
	return Success(c, http.StatusOK, "contact "+string(outcome.Status), outcome)
}

// EnrichBatch handles POST /v1/enrich/batch.
func (h *EnrichHandler) EnrichBatch(c echo.Context) error {
	var req dto.BatchEnrichRequest
	if err := c.Bind(&req); err != nil {
		return Error(c, http.StatusBadRequest, "invalid JSON payload")
	}

	resp, err := h.enrichment.EnrichBatch(c.Request().Context(), req)
	if err != nil {
		return serviceError(c, err, "failed to enrich batch")
	}
	return Success(c, http.StatusOK, "batch processed", resp)
}

// UploadCSV handles POST /v1/enrich/upload. The multipart form carries the
// file plus user_id, job_id, want_email and want_phone fields.
func (h *EnrichHandler) UploadCSV(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return Error(c, http.StatusBadRequest, "missing csv file")
	}

	wantEmail, err := formBool(c, "want_email")
	if err != nil {
		return Error(c, http.StatusBadRequest, "want_email must be a boolean")
	}
	wantPhone, err := formBool(c, "want_phone")
	if err != nil {
		return Error(c, http.StatusBadRequest, "want_phone must be a boolean")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return Error(c, http.StatusBadRequest, "unable to open file")
	}
	defer file.Close()

	contacts, err := service.ParseContactsCSV(file, h.csvLimit)
	if err != nil {
		return serviceError(c, err, "failed to process csv")
	}

	resp, err := h.enrichment.EnrichBatch(c.Request().Context(), dto.BatchEnrichRequest{
		JobID:     c.FormValue("job_id"),
		UserID:    c.FormValue("user_id"),
		Contacts:  contacts,
		WantEmail: wantEmail,
		WantPhone: wantPhone,
	})
	if err != nil {
		return serviceError(c, err, "failed to enrich csv")
	}
	return Success(c, http.StatusOK, "contacts CSV processed", resp)
}

func formBool(c echo.Context, name string) (bool, error) {
	raw := strings.TrimSpace(c.FormValue(name))
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}
