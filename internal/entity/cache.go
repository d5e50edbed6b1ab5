package entity

import (
	"time"

	"github.com/google/uuid"
)

// FingerprintType names the normalization strategy that produced a fingerprint.
type FingerprintType string

const (
	FingerprintExact           FingerprintType = "exact"
	FingerprintInitials        FingerprintType = "initials"
	FingerprintNameDomain      FingerprintType = "name_domain"
	FingerprintNameHash        FingerprintType = "name_hash"
	FingerprintNameEmailDomain FingerprintType = "name_email_domain"
)

// Specificity ranks how narrowly the fingerprint identifies one person.
// Lower is stronger; unknown types rank last.
func (t FingerprintType) Specificity() int {
	switch t {
	case FingerprintExact:
		return 0
	case FingerprintNameDomain:
		return 1
	case FingerprintNameEmailDomain:
		return 2
	case FingerprintNameHash:
		return 3
	case FingerprintInitials:
		return 4
	default:
		return 5
	}
}

// Fingerprint is a deterministic lookup key derived from a contact.
type Fingerprint struct {
	Type  FingerprintType `json:"type"`
	Value string          `json:"value"`
}

// CacheEntry is a resolved contact in the shared, cross-tenant knowledge base.
type CacheEntry struct {
	ID             uuid.UUID `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Company        string    `json:"company"`
	Domain         string    `json:"domain,omitempty"`
	Email          *string   `json:"email,omitempty"`
	Phone          *string   `json:"phone,omitempty"`
	EmailVerified  bool      `json:"email_verified"`
	EmailScore     int       `json:"email_score"`
	PhoneVerified  bool      `json:"phone_verified"`
	PhoneScore     int       `json:"phone_score"`
	PhoneType      string    `json:"phone_type,omitempty"`
	PhoneCountry   string    `json:"phone_country,omitempty"`
	IsDisposable   bool      `json:"is_disposable"`
	IsRoleBased    bool      `json:"is_role_based"`
	IsCatchAll     bool      `json:"is_catch_all"`
	Provider       string    `json:"provider"`
	Confidence     float64   `json:"confidence"`
	OriginalCost   float64   `json:"original_cost"`
	TimesReused    int       `json:"times_reused"`
	TotalCostSaved float64   `json:"total_cost_saved"`
	CreatedAt      time.Time `json:"created_at"`
	LastAccessedAt time.Time `json:"last_accessed_at"`
	// MatchedBy is the fingerprint type that selected the entry on lookup.
	MatchedBy FingerprintType `json:"-"`
}

// UserEnrichmentHistory records that a tenant already paid for a cache entry.
type UserEnrichmentHistory struct {
	UserID          string    `json:"user_id"`
	CacheEntryID    uuid.UUID `json:"cache_entry_id"`
	CreditsCharged  int       `json:"credits_charged"`
	TimesAccessed   int       `json:"times_accessed"`
	FirstEnrichedAt time.Time `json:"first_enriched_at"`
	LastAccessedAt  time.Time `json:"last_accessed_at"`
}

// CacheSource tells where an enrichment answer came from.
type CacheSource string

const (
	SourceUserDuplicate CacheSource = "cache_user_duplicate"
	SourceGlobalCache   CacheSource = "cache_global"
	SourceAPIFresh      CacheSource = "api_fresh"
)

// CachePerformance is a daily roll-up of cache effectiveness.
type CachePerformance struct {
	Day          time.Time `json:"day"`
	UserHits     int       `json:"user_hits"`
	GlobalHits   int       `json:"global_hits"`
	Misses       int       `json:"misses"`
	APICostSaved float64   `json:"api_cost_saved"`
	APICostSpent float64   `json:"api_cost_spent"`
}

// CacheMetricDelta is an increment applied to a daily roll-up row.
type CacheMetricDelta struct {
	UserHits     int
	GlobalHits   int
	Misses       int
	APICostSaved float64
	APICostSpent float64
}
