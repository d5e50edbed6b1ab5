package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/octobees/contact-enricher/internal/service"
)

// JobsHandler reports on enrichment jobs.
type JobsHandler struct {
	jobs *service.JobsService
}

// NewJobsHandler constructs a JobsHandler.
func NewJobsHandler(jobs *service.JobsService) *JobsHandler {
	return &JobsHandler{jobs: jobs}
}

// Contacts handles GET /v1/jobs/:job_id/contacts.
func (h *JobsHandler) Contacts(c echo.Context) error {
	outcomes, err := h.jobs.Contacts(c.Request().Context(), c.Param("job_id"))
	if err != nil {
		return serviceError(c, err, "failed to load job contacts")
	}
	return Success(c, http.StatusOK, "", map[string]any{
		"summary":  service.Summarize(outcomes),
		"contacts": outcomes,
	})
}

// Stats handles GET /v1/jobs/:job_id/stats.
func (h *JobsHandler) Stats(c echo.Context) error {
	stats, err := h.jobs.Stats(c.Param("job_id"))
	if err != nil {
		return serviceError(c, err, "failed to load job stats")
	}
	return Success(c, http.StatusOK, "", stats)
}

// Complete handles POST /v1/jobs/:job_id/complete.
func (h *JobsHandler) Complete(c echo.Context) error {
	stats, err := h.jobs.Complete(c.Param("job_id"))
	if err != nil {
		return serviceError(c, err, "failed to complete job")
	}
	return Success(c, http.StatusOK, "job completed", stats)
}
