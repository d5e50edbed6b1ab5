package dto

import "time"

// AllocateCreditsRequest grants credits to a user.
type AllocateCreditsRequest struct {
	UserID  string `json:"user_id"`
	Credits int    `json:"credits"`
	Source  string `json:"source"`
	// ExpiresAt wins over ValidDays when both are set.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	ValidDays int        `json:"valid_days,omitempty"`
}

// JobStats reports the running success rate of a job and the strategy the
// next contact will use.
type JobStats struct {
	JobID       string  `json:"job_id"`
	Processed   int     `json:"processed"`
	EmailsFound int     `json:"emails_found"`
	SuccessRate float64 `json:"success_rate"`
	Strategy    string  `json:"strategy"`
}
