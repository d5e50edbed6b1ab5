package dto

import "github.com/octobees/contact-enricher/internal/entity"

// EnrichRequest asks for one contact to be resolved on behalf of a user.
type EnrichRequest struct {
	JobID     string         `json:"job_id"`
	UserID    string         `json:"user_id"`
	Contact   entity.Contact `json:"contact"`
	WantEmail bool           `json:"want_email"`
	WantPhone bool           `json:"want_phone"`
}

// Options returns the requested data types.
func (r EnrichRequest) Options() entity.EnrichOptions {
	return entity.EnrichOptions{WantEmail: r.WantEmail, WantPhone: r.WantPhone}
}

// BatchEnrichRequest resolves several contacts of the same job.
type BatchEnrichRequest struct {
	JobID     string           `json:"job_id"`
	UserID    string           `json:"user_id"`
	Contacts  []entity.Contact `json:"contacts"`
	WantEmail bool             `json:"want_email"`
	WantPhone bool             `json:"want_phone"`
}

// Options returns the requested data types.
func (r BatchEnrichRequest) Options() entity.EnrichOptions {
	return entity.EnrichOptions{WantEmail: r.WantEmail, WantPhone: r.WantPhone}
}

// BatchSummary counts outcomes of a batch by status.
type BatchSummary struct {
	Total          int `json:"total"`
	Completed      int `json:"completed"`
	Failed         int `json:"failed"`
	Skipped        int `json:"skipped"`
	CreditsCharged int `json:"credits_charged"`
	CacheHits      int `json:"cache_hits"`
}

// BatchEnrichResponse returns every outcome in request order.
type BatchEnrichResponse struct {
	Summary  BatchSummary               `json:"summary"`
	Outcomes []entity.EnrichmentOutcome `json:"outcomes"`
}
