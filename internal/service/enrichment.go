package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/octobees/contact-enricher/internal/dto"
	"github.com/octobees/contact-enricher/internal/entity"
)

// ReasonMissingIdentity marks batch rows that cannot be looked up.
const ReasonMissingIdentity = "contact needs first and last name plus company or domain, or a profile url"

// Enricher resolves a single contact.
type Enricher interface {
	Enrich(ctx context.Context, contact entity.Contact, jobID, userID string, opts entity.EnrichOptions) entity.EnrichmentOutcome
}

// EnrichmentService validates requests and fans batches out to the engine.
type EnrichmentService struct {
	engine  Enricher
	limit   int
	workers int
}

// NewEnrichmentService caps batches at limit contacts processed by workers goroutines.
func NewEnrichmentService(engine Enricher, limit, workers int) *EnrichmentService {
	if limit <= 0 {
		limit = 100
	}
	if workers <= 0 {
		workers = 1
	}
	return &EnrichmentService{engine: engine, limit: limit, workers: workers}
}

// Enrich resolves one contact.
func (s *EnrichmentService) Enrich(ctx context.Context, req dto.EnrichRequest) (entity.EnrichmentOutcome, error) {
	if err := validateCaller(req.UserID, req.Options()); err != nil {
		return entity.EnrichmentOutcome{}, err
	}
	if !req.Contact.HasIdentity() {
		return entity.EnrichmentOutcome{}, ValidationError{Message: ReasonMissingIdentity}
	}
	return s.engine.Enrich(ctx, trimContact(req.Contact), strings.TrimSpace(req.JobID), strings.TrimSpace(req.UserID), req.Options()), nil
}

// EnrichBatch resolves every contact of the request concurrently and returns
// outcomes in request order. Rows without identity are skipped, not rejected.
func (s *EnrichmentService) EnrichBatch(ctx context.Context, req dto.BatchEnrichRequest) (dto.BatchEnrichResponse, error) {
	if err := validateCaller(req.UserID, req.Options()); err != nil {
		return dto.BatchEnrichResponse{}, err
	}
	if len(req.Contacts) == 0 {
		return dto.BatchEnrichResponse{}, ValidationError{Message: "contacts must not be empty"}
	}
	if len(req.Contacts) > s.limit {
		return dto.BatchEnrichResponse{}, ValidationError{Message: fmt.Sprintf("batch exceeds %d contacts", s.limit)}
	}

	jobID := strings.TrimSpace(req.JobID)
	userID := strings.TrimSpace(req.UserID)
	opts := req.Options()
	outcomes := make([]entity.EnrichmentOutcome, len(req.Contacts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, contact := range req.Contacts {
		contact = trimContact(contact)
		if !contact.HasIdentity() {
			outcomes[i] = entity.EnrichmentOutcome{
				JobID:            jobID,
				UserID:           userID,
				Contact:          contact,
				Status:           entity.OutcomeSkipped,
				FailureReason:    ReasonMissingIdentity,
				EmailReliability: entity.ReliabilityNoEmail,
				CompletedAt:      time.Now().UTC(),
			}
			continue
		}
		g.Go(func() error {
			outcomes[i] = s.engine.Enrich(gctx, contact, jobID, userID, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return dto.BatchEnrichResponse{}, err
	}

	return dto.BatchEnrichResponse{Summary: Summarize(outcomes), Outcomes: outcomes}, nil
}

// Summarize counts outcomes by status and source.
func Summarize(outcomes []entity.EnrichmentOutcome) dto.BatchSummary {
	summary := dto.BatchSummary{Total: len(outcomes)}
	for _, o := range outcomes {
		switch o.Status {
		case entity.OutcomeCompleted:
			summary.Completed++
		case entity.OutcomeFailed:
			summary.Failed++
		case entity.OutcomeSkipped:
			summary.Skipped++
		}
		summary.CreditsCharged += o.CreditsCharged
		if o.Status == entity.OutcomeCompleted && o.Source != "" && o.Source != entity.SourceAPIFresh {
			summary.CacheHits++
		}
	}
	return summary
}

func validateCaller(userID string, opts entity.EnrichOptions) error {
	if strings.TrimSpace(userID) == "" {
		return ValidationError{Message: "user_id is required"}
	}
	if !opts.Any() {
		return ValidationError{Message: "request at least one of want_email or want_phone"}
	}
	return nil
}

func trimContact(c entity.Contact) entity.Contact {
	return entity.Contact{
		FirstName:  strings.TrimSpace(c.FirstName),
		LastName:   strings.TrimSpace(c.LastName),
		Company:    strings.TrimSpace(c.Company),
		Domain:     strings.TrimSpace(c.Domain),
		ProfileURL: strings.TrimSpace(c.ProfileURL),
		Location:   strings.TrimSpace(c.Location),
		Industry:   strings.TrimSpace(c.Industry),
	}
}
