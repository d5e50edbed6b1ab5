package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/octobees/contact-enricher/internal/dto"
	"github.com/octobees/contact-enricher/internal/entity"
)

// JobMessage is the payload of the job topic. A message carries either one
// contact or a list of contacts of the same job.
type JobMessage struct {
	JobID     string           `json:"job_id"`
	UserID    string           `json:"user_id"`
	Contact   *entity.Contact  `json:"contact,omitempty"`
	Contacts  []entity.Contact `json:"contacts,omitempty"`
	WantEmail bool             `json:"want_email"`
	WantPhone bool             `json:"want_phone"`
}

// Enrichment is implemented by service.EnrichmentService.
type Enrichment interface {
	Enrich(ctx context.Context, req dto.EnrichRequest) (entity.EnrichmentOutcome, error)
	EnrichBatch(ctx context.Context, req dto.BatchEnrichRequest) (dto.BatchEnrichResponse, error)
}

type jobHandler struct {
	enrichment Enrichment
}

// NewJobHandler returns a MessageHandler that enriches job messages.
func NewJobHandler(enrichment Enrichment) MessageHandler {
	return &jobHandler{enrichment: enrichment}
}

func (h *jobHandler) HandleMessage(ctx context.Context, message []byte) error {
	var job JobMessage
	if err := json.Unmarshal(message, &job); err != nil {
		return fmt.Errorf("decode job message: %w", err)
	}
	logger := log.WithFields(log.Fields{"job_id": job.JobID, "user_id": job.UserID})

	if job.Contact != nil {
		outcome, err := h.enrichment.Enrich(ctx, dto.EnrichRequest{
			JobID:     job.JobID,
			UserID:    job.UserID,
			Contact:   *job.Contact,
			WantEmail: job.WantEmail,
			WantPhone: job.WantPhone,
		})
		if err != nil {
			return err
		}
		logger.WithFields(log.Fields{
			"status":  outcome.Status,
			"source":  outcome.Source,
			"credits": outcome.CreditsCharged,
		}).Info("Contact enriched")
		return nil
	}

	resp, err := h.enrichment.EnrichBatch(ctx, dto.BatchEnrichRequest{
		JobID:     job.JobID,
		UserID:    job.UserID,
		Contacts:  job.Contacts,
		WantEmail: job.WantEmail,
		WantPhone: job.WantPhone,
	})
	if err != nil {
		return err
	}
	logger.WithFields(log.Fields{
		"total":      resp.Summary.Total,
		"completed":  resp.Summary.Completed,
		"failed":     resp.Summary.Failed,
		"cache_hits": resp.Summary.CacheHits,
		"credits":    resp.Summary.CreditsCharged,
	}).Info("Job batch enriched")
	return nil
}
