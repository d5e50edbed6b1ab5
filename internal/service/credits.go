package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/octobees/contact-enricher/internal/dto"
	"github.com/octobees/contact-enricher/internal/entity"
	"github.com/octobees/contact-enricher/internal/ledger"
)

const (
	defaultGrantDays  = 30
	defaultLogLimit   = 50
	maxLogLimit       = 500
	maxGrantValidDays = 3650
)

// ValidationError marks a request the caller has to fix.
type ValidationError struct {
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return e.Message
}

// CreditLogReader lists the audit trail of a user.
type CreditLogReader interface {
	ListLogs(ctx context.Context, userID string, limit int) ([]entity.CreditLog, error)
}

// CreditsService fronts the ledger for the HTTP layer.
type CreditsService struct {
	ledger *ledger.Ledger
	logs   CreditLogReader
	now    func() time.Time
}

// NewCreditsService creates a new instance of CreditsService.
func NewCreditsService(l *ledger.Ledger, logs CreditLogReader) *CreditsService {
	return &CreditsService{ledger: l, logs: logs, now: time.Now}
}

// Balance returns the spendable and lifetime credits of userID.
func (s *CreditsService) Balance(ctx context.Context, userID string) (entity.CreditBalance, error) {
	if strings.TrimSpace(userID) == "" {
		return entity.CreditBalance{}, ValidationError{Message: "user_id is required"}
	}
	return s.ledger.Balance(ctx, userID)
}

// Allocate grants credits. Without an explicit expiry the grant lives for
// ValidDays, or thirty days when that is unset too.
func (s *CreditsService) Allocate(ctx context.Context, req dto.AllocateCreditsRequest) (entity.CreditAllocation, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return entity.CreditAllocation{}, ValidationError{Message: "user_id is required"}
	}
	if req.Credits <= 0 {
		return entity.CreditAllocation{}, ValidationError{Message: "credits must be positive"}
	}

	source := entity.CreditSource(strings.ToLower(strings.TrimSpace(req.Source)))
	switch source {
	case "":
		source = entity.CreditSourceSubscription
	case entity.CreditSourceSubscription, entity.CreditSourceTopUp:
	default:
		return entity.CreditAllocation{}, ValidationError{Message: fmt.Sprintf("unknown credit source %q", req.Source)}
	}

	now := s.now()
	var expiresAt time.Time
	switch {
	case req.ExpiresAt != nil:
		expiresAt = *req.ExpiresAt
		if !expiresAt.After(now) {
			return entity.CreditAllocation{}, ValidationError{Message: "expires_at must be in the future"}
		}
	case req.ValidDays < 0 || req.ValidDays > maxGrantValidDays:
		return entity.CreditAllocation{}, ValidationError{Message: fmt.Sprintf("valid_days must be between 1 and %d", maxGrantValidDays)}
	case req.ValidDays > 0:
		expiresAt = now.AddDate(0, 0, req.ValidDays)
	default:
		expiresAt = now.AddDate(0, 0, defaultGrantDays)
	}

	return s.ledger.Allocate(ctx, userID, req.Credits, source, expiresAt)
}

// History returns the most recent ledger entries of userID, newest first.
func (s *CreditsService) History(ctx context.Context, userID string, limit int) ([]entity.CreditLog, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ValidationError{Message: "user_id is required"}
	}
	if limit <= 0 {
		limit = defaultLogLimit
	}
	limit = min(limit, maxLogLimit)
	return s.logs.ListLogs(ctx, userID, limit)
}
