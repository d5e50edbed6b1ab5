package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/octobees/contact-enricher/internal/entity"
)

// PGXContactsRepository persists per-job enrichment outcomes.
type PGXContactsRepository struct {
	pool pgxPool
}

// NewPGXContactsRepository wires a pgx backed contacts store.
func NewPGXContactsRepository(pool *pgxpool.Pool) *PGXContactsRepository {
	return &PGXContactsRepository{pool: pool}
}

const contactColumns = `
            job_id, fingerprint, user_id, first_name, last_name, company, domain, profile_url,
            status, email, phone, provider, confidence, email_verified, email_score,
            phone_verified, phone_score, phone_type, credits_charged, source, api_cost,
            cost_saved, lead_score, email_reliability, strategy, providers_tried,
            failure_reason, completed_at`

// SaveOutcome upserts the outcome keyed by (job_id, fingerprint).
func (r *PGXContactsRepository) SaveOutcome(ctx context.Context, o entity.EnrichmentOutcome) error {
	if strings.TrimSpace(o.JobID) == "" || strings.TrimSpace(o.Fingerprint) == "" {
		return fmt.Errorf("job_id and fingerprint are required")
	}

	_, err := r.pool.Exec(ctx, `
        INSERT INTO contacts (`+contactColumns+`
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
            $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28
        )
        ON CONFLICT (job_id, fingerprint) DO UPDATE SET
            user_id = EXCLUDED.user_id,
            status = EXCLUDED.status,
            email = EXCLUDED.email,
            phone = EXCLUDED.phone,
            provider = EXCLUDED.provider,
            confidence = EXCLUDED.confidence,
            email_verified = EXCLUDED.email_verified,
            email_score = EXCLUDED.email_score,
            phone_verified = EXCLUDED.phone_verified,
            phone_score = EXCLUDED.phone_score,
            phone_type = EXCLUDED.phone_type,
            credits_charged = EXCLUDED.credits_charged,
            source = EXCLUDED.source,
            api_cost = EXCLUDED.api_cost,
            cost_saved = EXCLUDED.cost_saved,
            lead_score = EXCLUDED.lead_score,
            email_reliability = EXCLUDED.email_reliability,
            strategy = EXCLUDED.strategy,
            providers_tried = EXCLUDED.providers_tried,
            failure_reason = EXCLUDED.failure_reason,
            completed_at = EXCLUDED.completed_at
    `,
		o.JobID, o.Fingerprint, o.UserID,
		o.Contact.FirstName, o.Contact.LastName, o.Contact.Company, o.Contact.Domain, o.Contact.ProfileURL,
		string(o.Status), stringOrNil(o.Email), stringOrNil(o.Phone), o.Provider, o.Confidence,
		o.EmailVerified, o.EmailScore, o.PhoneVerified, o.PhoneScore, string(o.PhoneType),
		o.CreditsCharged, string(o.Source), o.APICost, o.CostSaved, o.LeadScore,
		string(o.EmailReliability), o.Strategy, stringSliceOrEmpty(o.ProvidersTried),
		o.FailureReason, o.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert contact outcome: %w", err)
	}
	return nil
}

// FindOutcome loads one outcome; ErrNotFound when absent.
func (r *PGXContactsRepository) FindOutcome(ctx context.Context, jobID, fingerprint string) (*entity.EnrichmentOutcome, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+contactColumns+` FROM contacts WHERE job_id = $1 AND fingerprint = $2`, jobID, fingerprint)
	o, err := scanOutcome(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query contact outcome: %w", err)
	}
	return &o, nil
}

// ListByJob returns every outcome of a job in completion order.
func (r *PGXContactsRepository) ListByJob(ctx context.Context, jobID string) ([]entity.EnrichmentOutcome, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+contactColumns+` FROM contacts WHERE job_id = $1 ORDER BY completed_at`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query job contacts: %w", err)
	}
	defer rows.Close()

	var out []entity.EnrichmentOutcome
	for rows.Next() {
		o, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job contact: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate job contacts: %w", err)
	}
	return out, nil
}

func scanOutcome(row pgx.Row) (entity.EnrichmentOutcome, error) {
	var (
		o                                   entity.EnrichmentOutcome
		status, phoneType, src, reliability string
	)
	err := row.Scan(
		&o.JobID, &o.Fingerprint, &o.UserID,
		&o.Contact.FirstName, &o.Contact.LastName, &o.Contact.Company, &o.Contact.Domain, &o.Contact.ProfileURL,
		&status, &o.Email, &o.Phone, &o.Provider, &o.Confidence,
		&o.EmailVerified, &o.EmailScore, &o.PhoneVerified, &o.PhoneScore, &phoneType,
		&o.CreditsCharged, &src, &o.APICost, &o.CostSaved, &o.LeadScore,
		&reliability, &o.Strategy, &o.ProvidersTried, &o.FailureReason, &o.CompletedAt,
	)
	if err != nil {
		return o, err
	}
	o.Status = entity.OutcomeStatus(status)
	o.PhoneType = entity.PhoneType(phoneType)
	o.Source = entity.CacheSource(src)
	o.EmailReliability = entity.EmailReliability(reliability)
	return o, nil
}
