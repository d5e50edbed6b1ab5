package localstore

import "time"

type cacheEntryRow struct {
	ID             string    `gorm:"type:TEXT;primaryKey"`
	FirstName      string    `gorm:"type:TEXT NOT NULL"`
	LastName       string    `gorm:"type:TEXT NOT NULL"`
	Company        string    `gorm:"type:TEXT NOT NULL;default:''"`
	Domain         string    `gorm:"type:TEXT NOT NULL;default:''"`
	Email          *string   `gorm:"type:TEXT"`
	Phone          *string   `gorm:"type:TEXT"`
	EmailVerified  bool      `gorm:"not null;default:false"`
	EmailScore     int       `gorm:"not null;default:0"`
	PhoneVerified  bool      `gorm:"not null;default:false"`
	PhoneScore     int       `gorm:"not null;default:0"`
	PhoneType      string    `gorm:"type:TEXT NOT NULL;default:''"`
	PhoneCountry   string    `gorm:"type:TEXT NOT NULL;default:''"`
	IsDisposable   bool      `gorm:"not null;default:false"`
	IsRoleBased    bool      `gorm:"not null;default:false"`
	IsCatchAll     bool      `gorm:"not null;default:false"`
	Provider       string    `gorm:"type:TEXT NOT NULL"`
	Confidence     float64   `gorm:"not null;default:0"`
	OriginalCost   float64   `gorm:"not null;default:0"`
	TimesReused    int       `gorm:"not null;default:0"`
	TotalCostSaved float64   `gorm:"not null;default:0"`
	CreatedAt      time.Time `gorm:"not null"`
	LastAccessedAt time.Time `gorm:"not null"`
}

func (cacheEntryRow) TableName() string { return "global_contact_cache" }

type fingerprintRow struct {
	Value        string    `gorm:"type:TEXT;primaryKey"`
	Type         string    `gorm:"type:TEXT NOT NULL"`
	CacheEntryID string    `gorm:"type:TEXT NOT NULL;index"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (fingerprintRow) TableName() string { return "contact_fingerprints" }

type historyRow struct {
	UserID          string    `gorm:"type:TEXT;primaryKey"`
	CacheEntryID    string    `gorm:"type:TEXT;primaryKey"`
	CreditsCharged  int       `gorm:"not null;default:0"`
	TimesAccessed   int       `gorm:"not null;default:1"`
	FirstEnrichedAt time.Time `gorm:"not null"`
	LastAccessedAt  time.Time `gorm:"not null"`
}

func (historyRow) TableName() string { return "user_contact_history" }

type allocationRow struct {
	ID               string    `gorm:"type:TEXT;primaryKey"`
	UserID           string    `gorm:"type:TEXT NOT NULL;index"`
	CreditsAllocated int       `gorm:"not null"`
	CreditsRemaining int       `gorm:"not null"`
	Source           string    `gorm:"type:TEXT NOT NULL"`
	ExpiresAt        time.Time `gorm:"not null"`
	CreatedAt        time.Time `gorm:"not null"`
}

func (allocationRow) TableName() string { return "credit_allocations" }

type creditLogRow struct {
	ID           string    `gorm:"type:TEXT;primaryKey"`
	UserID       string    `gorm:"type:TEXT NOT NULL;index"`
	JobID        string    `gorm:"type:TEXT NOT NULL;default:''"`
	Operation    string    `gorm:"type:TEXT NOT NULL"`
	Credits      int       `gorm:"not null"`
	ExternalCost float64   `gorm:"not null;default:0"`
	Reason       string    `gorm:"type:TEXT NOT NULL;default:''"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (creditLogRow) TableName() string { return "credit_logs" }

type creditTotalRow struct {
	UserID        string    `gorm:"type:TEXT;primaryKey"`
	LifetimeTotal int       `gorm:"not null;default:0"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (creditTotalRow) TableName() string { return "user_credit_totals" }

// performanceRow keys days as YYYY-MM-DD text so equality does not depend
// on how the driver renders timestamps.
type performanceRow struct {
	Day          string  `gorm:"type:TEXT;primaryKey"`
	UserHits     int     `gorm:"not null;default:0"`
	GlobalHits   int     `gorm:"not null;default:0"`
	Misses       int     `gorm:"not null;default:0"`
	APICostSaved float64 `gorm:"column:api_cost_saved;not null;default:0"`
	APICostSpent float64 `gorm:"column:api_cost_spent;not null;default:0"`
}

func (performanceRow) TableName() string { return "cache_performance_metrics" }

type contactRow struct {
	JobID            string    `gorm:"type:TEXT;primaryKey"`
	Fingerprint      string    `gorm:"type:TEXT;primaryKey"`
	UserID           string    `gorm:"type:TEXT NOT NULL;index"`
	FirstName        string    `gorm:"type:TEXT NOT NULL"`
	LastName         string    `gorm:"type:TEXT NOT NULL"`
	Company          string    `gorm:"type:TEXT NOT NULL"`
	Domain           string    `gorm:"type:TEXT NOT NULL"`
	ProfileURL       string    `gorm:"type:TEXT NOT NULL"`
	Status           string    `gorm:"type:TEXT NOT NULL"`
	Email            *string   `gorm:"type:TEXT"`
	Phone            *string   `gorm:"type:TEXT"`
	Provider         string    `gorm:"type:TEXT NOT NULL"`
	Confidence       float64   `gorm:"not null"`
	EmailVerified    bool      `gorm:"not null"`
	EmailScore       int       `gorm:"not null"`
	PhoneVerified    bool      `gorm:"not null"`
	PhoneScore       int       `gorm:"not null"`
	PhoneType        string    `gorm:"type:TEXT NOT NULL"`
	CreditsCharged   int       `gorm:"not null"`
	Source           string    `gorm:"type:TEXT NOT NULL"`
	APICost          float64   `gorm:"column:api_cost;not null"`
	CostSaved        float64   `gorm:"not null"`
	LeadScore        int       `gorm:"not null"`
	EmailReliability string    `gorm:"type:TEXT NOT NULL"`
	Strategy         string    `gorm:"type:TEXT NOT NULL"`
	ProvidersTried   []string  `gorm:"type:TEXT;serializer:json"`
	FailureReason    string    `gorm:"type:TEXT NOT NULL"`
	CompletedAt      time.Time `gorm:"not null;index"`
}

func (contactRow) TableName() string { return "contacts" }
