package service

import (
	"context"
	"strings"

	"github.com/octobees/contact-enricher/internal/cascade"
	"github.com/octobees/contact-enricher/internal/dto"
	"github.com/octobees/contact-enricher/internal/entity"
)

// OutcomeLister reads the persisted outcomes of a job.
type OutcomeLister interface {
	ListByJob(ctx context.Context, jobID string) ([]entity.EnrichmentOutcome, error)
}

// JobsService reports on enrichment jobs.
type JobsService struct {
	outcomes OutcomeLister
	tracker  *cascade.BatchTracker
}

// NewJobsService creates a new instance of JobsService.
func NewJobsService(outcomes OutcomeLister, tracker *cascade.BatchTracker) *JobsService {
	return &JobsService{outcomes: outcomes, tracker: tracker}
}

// Contacts lists every stored outcome of jobID.
func (s *JobsService) Contacts(ctx context.Context, jobID string) ([]entity.EnrichmentOutcome, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, ValidationError{Message: "job_id is required"}
	}
	return s.outcomes.ListByJob(ctx, jobID)
}

// Stats returns the live success rate of jobID and the strategy its next contact gets.
func (s *JobsService) Stats(jobID string) (dto.JobStats, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return dto.JobStats{}, ValidationError{Message: "job_id is required"}
	}
	processed, found := s.tracker.Stats(jobID)
	stats := dto.JobStats{
		JobID:       jobID,
		Processed:   processed,
		EmailsFound: found,
		Strategy:    string(s.tracker.Strategy(jobID)),
	}
	if processed > 0 {
		stats.SuccessRate = float64(found) / float64(processed)
	}
	return stats, nil
}

// Complete releases the in-memory stats of a finished job and returns its final figures.
func (s *JobsService) Complete(jobID string) (dto.JobStats, error) {
	stats, err := s.Stats(jobID)
	if err != nil {
		return dto.JobStats{}, err
	}
	s.tracker.Forget(stats.JobID)
	return stats, nil
}
