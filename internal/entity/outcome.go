package entity

import "time"

// EmailVerification is the scored verdict for one email address.
type EmailVerification struct {
	Email          string   `json:"email"`
	IsValid        bool     `json:"is_valid"`
	Score          int      `json:"score"`
	Reason         string   `json:"reason"`
	SyntaxValid    bool     `json:"syntax_valid"`
	DomainResolves bool     `json:"domain_resolves"`
	HasMX          bool     `json:"has_mx"`
	Deliverable    bool     `json:"deliverable"`
	IsDisposable   bool     `json:"is_disposable"`
	IsRoleBased    bool     `json:"is_role_based"`
	IsCatchAll     bool     `json:"is_catch_all"`
	MXHosts        []string `json:"mx_hosts,omitempty"`
}

// PhoneType classifies a phone line.
type PhoneType string

const (
	PhoneTypeMobile   PhoneType = "mobile"
	PhoneTypeLandline PhoneType = "landline"
	PhoneTypeVoIP     PhoneType = "voip"
	PhoneTypeUnknown  PhoneType = "unknown"
)

// PhoneVerification is the scored verdict for one phone number.
type PhoneVerification struct {
	Phone   string    `json:"phone"`
	E164    string    `json:"e164,omitempty"`
	IsValid bool      `json:"is_valid"`
	Score   int       `json:"score"`
	Reason  string    `json:"reason"`
	Type    PhoneType `json:"type"`
	Carrier string    `json:"carrier,omitempty"`
	Region  string    `json:"region,omitempty"`
}

// OutcomeStatus is the final state of a single enrichment call.
type OutcomeStatus string

const (
	OutcomeCompleted OutcomeStatus = "completed"
	OutcomeFailed    OutcomeStatus = "failed"
	OutcomeSkipped   OutcomeStatus = "skipped"
)

// EmailReliability buckets an email by how much it can be trusted.
type EmailReliability string

const (
	ReliabilityExcellent EmailReliability = "excellent"
	ReliabilityGood      EmailReliability = "good"
	ReliabilityFair      EmailReliability = "fair"
	ReliabilityPoor      EmailReliability = "poor"
	ReliabilityUnknown   EmailReliability = "unknown"
	ReliabilityNoEmail   EmailReliability = "no_email"
)

// EnrichmentOutcome is the persisted state of one contact within a job.
type EnrichmentOutcome struct {
	JobID            string             `json:"job_id"`
	UserID           string             `json:"user_id"`
	Contact          Contact            `json:"contact"`
	Status           OutcomeStatus      `json:"status"`
	Email            *string            `json:"email,omitempty"`
	Phone            *string            `json:"phone,omitempty"`
	Provider         string             `json:"provider,omitempty"`
	Confidence       float64            `json:"confidence"`
	EmailVerified    bool               `json:"email_verified"`
	EmailScore       int                `json:"email_score"`
	PhoneVerified    bool               `json:"phone_verified"`
	PhoneScore       int                `json:"phone_score"`
	PhoneType        PhoneType          `json:"phone_type,omitempty"`
	EmailCheck       *EmailVerification `json:"email_verification,omitempty"`
	PhoneCheck       *PhoneVerification `json:"phone_verification,omitempty"`
	CreditsCharged   int                `json:"credits_charged"`
	Source           CacheSource        `json:"source,omitempty"`
	APICost          float64            `json:"api_cost"`
	CostSaved        float64            `json:"cost_saved"`
	LeadScore        int                `json:"lead_score"`
	EmailReliability EmailReliability   `json:"email_reliability"`
	Strategy         string             `json:"strategy,omitempty"`
	ProvidersTried   []string           `json:"providers_tried,omitempty"`
	FailureReason    string             `json:"failure_reason,omitempty"`
	Fingerprint      string             `json:"fingerprint,omitempty"`
	CompletedAt      time.Time          `json:"completed_at"`
}
