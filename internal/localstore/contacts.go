package localstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/octobees/contact-enricher/internal/entity"
)

// ContactStore persists per-job outcomes on SQLite.
type ContactStore struct {
	db *gorm.DB
}

// NewContactStore wraps db.
func NewContactStore(db *gorm.DB) *ContactStore {
	return &ContactStore{db: db}
}

// SaveOutcome upserts the outcome keyed by (job_id, fingerprint).
func (s *ContactStore) SaveOutcome(ctx context.Context, o entity.EnrichmentOutcome) error {
	if strings.TrimSpace(o.JobID) == "" || strings.TrimSpace(o.Fingerprint) == "" {
		return fmt.Errorf("job_id and fingerprint are required")
	}
	row := contactFromEntity(o)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "job_id"}, {Name: "fingerprint"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert contact outcome: %w", err)
	}
	return nil
}

// FindOutcome loads one outcome; ErrNotFound when absent.
func (s *ContactStore) FindOutcome(ctx context.Context, jobID, fingerprint string) (*entity.EnrichmentOutcome, error) {
	var row contactRow
	err := s.db.WithContext(ctx).Where("job_id = ? AND fingerprint = ?", jobID, fingerprint).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query contact outcome: %w", err)
	}
	o := row.toEntity()
	return &o, nil
}

// ListByJob returns every outcome of a job in completion order.
func (s *ContactStore) ListByJob(ctx context.Context, jobID string) ([]entity.EnrichmentOutcome, error) {
	var rows []contactRow
	if err := s.db.WithContext(ctx).Where("job_id = ?", jobID).Order("completed_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query job contacts: %w", err)
	}
	out := make([]entity.EnrichmentOutcome, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toEntity())
	}
	return out, nil
}

func contactFromEntity(o entity.EnrichmentOutcome) contactRow {
	return contactRow{
		JobID:            o.JobID,
		Fingerprint:      o.Fingerprint,
		UserID:           o.UserID,
		FirstName:        o.Contact.FirstName,
		LastName:         o.Contact.LastName,
		Company:          o.Contact.Company,
		Domain:           o.Contact.Domain,
		ProfileURL:       o.Contact.ProfileURL,
		Status:           string(o.Status),
		Email:            o.Email,
		Phone:            o.Phone,
		Provider:         o.Provider,
		Confidence:       o.Confidence,
		EmailVerified:    o.EmailVerified,
		EmailScore:       o.EmailScore,
		PhoneVerified:    o.PhoneVerified,
		PhoneScore:       o.PhoneScore,
		PhoneType:        string(o.PhoneType),
		CreditsCharged:   o.CreditsCharged,
		Source:           string(o.Source),
		APICost:          o.APICost,
		CostSaved:        o.CostSaved,
		LeadScore:        o.LeadScore,
		EmailReliability: string(o.EmailReliability),
		Strategy:         o.Strategy,
		ProvidersTried:   o.ProvidersTried,
		FailureReason:    o.FailureReason,
		CompletedAt:      o.CompletedAt.UTC(),
	}
}

func (r contactRow) toEntity() entity.EnrichmentOutcome {
	return entity.EnrichmentOutcome{
		JobID:       r.JobID,
		Fingerprint: r.Fingerprint,
		UserID:      r.UserID,
		Contact: entity.Contact{
			FirstName:  r.FirstName,
			LastName:   r.LastName,
			Company:    r.Company,
			Domain:     r.Domain,
			ProfileURL: r.ProfileURL,
		},
		Status:           entity.OutcomeStatus(r.Status),
		Email:            r.Email,
		Phone:            r.Phone,
		Provider:         r.Provider,
		Confidence:       r.Confidence,
		EmailVerified:    r.EmailVerified,
		EmailScore:       r.EmailScore,
		PhoneVerified:    r.PhoneVerified,
		PhoneScore:       r.PhoneScore,
		PhoneType:        entity.PhoneType(r.PhoneType),
		CreditsCharged:   r.CreditsCharged,
		Source:           entity.CacheSource(r.Source),
		APICost:          r.APICost,
		CostSaved:        r.CostSaved,
		LeadScore:        r.LeadScore,
		EmailReliability: entity.EmailReliability(r.EmailReliability),
		Strategy:         r.Strategy,
		ProvidersTried:   r.ProvidersTried,
		FailureReason:    r.FailureReason,
		CompletedAt:      r.CompletedAt,
	}
}
