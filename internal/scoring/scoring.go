package scoring

import (
	"net/url"
	"strings"

	"github.com/octobees/contact-enricher/internal/entity"
)

const (
	categoryEmail      = "email_quality"
	categoryPhone      = "phone_quality"
	categoryConfidence = "provider_confidence"
	categoryProfile    = "profile_completeness"
)

var freeHostingDomains = []string{
	"wordpress.com",
	"blogspot.com",
	"wixsite.com",
	"weebly.com",
	"squarespace.com",
	"medium.com",
	"substack.com",
	"godaddysites.com",
	"notion.site",
	"googlepages.com",
}

var freeMailDomains = []string{
	"gmail.com",
	"googlemail.com",
	"yahoo.com",
	"hotmail.com",
	"outlook.com",
	"live.com",
	"aol.com",
	"icloud.com",
	"proton.me",
	"protonmail.com",
	"gmx.com",
}

// Thresholds are the provider-confidence levels considered high and excellent.
type Thresholds struct {
	High      float64
	Excellent float64
}

// DefaultThresholds matches the cascade defaults.
var DefaultThresholds = Thresholds{High: 75, Excellent: 90}

// LeadFeatures captures the enrichment signals used for scoring.
type LeadFeatures struct {
	Email      string
	EmailCheck *entity.EmailVerification
	Phone      string
	PhoneCheck *entity.PhoneVerification
	Confidence float64
	ProfileURL string
	Domain     string
	Location   string
	Industry   string
}

// ScoreResult reports the aggregate score and the per-category breakdown.
type ScoreResult struct {
	Total     int
	Breakdown map[string]int
}

// ComputeScore evaluates the provided features and returns the 0..100 lead score breakdown.
func ComputeScore(input LeadFeatures, th Thresholds) ScoreResult {
	breakdown := map[string]int{
		categoryEmail:      scoreEmail(input),
		categoryPhone:      scorePhone(input),
		categoryConfidence: scoreConfidence(input.Confidence, th),
		categoryProfile:    scoreProfile(input),
	}

	total := 0
	for _, value := range breakdown {
		total += value
	}

	return ScoreResult{
		Total:     total,
		Breakdown: breakdown,
	}
}

func scoreEmail(input LeadFeatures) int {
	if strings.TrimSpace(input.Email) == "" {
		return 0
	}
	score := 15
	if input.EmailCheck != nil && input.EmailCheck.IsValid {
		score += 25
		if input.EmailCheck.Score >= 80 {
			score += 10
		}
	}
	return min(score, 50)
}

func scorePhone(input LeadFeatures) int {
	if strings.TrimSpace(input.Phone) == "" {
		return 0
	}
	score := 5
	if input.PhoneCheck != nil && input.PhoneCheck.IsValid {
		score += 5
		if input.PhoneCheck.Type == entity.PhoneTypeMobile {
			score += 5
		}
	}
	return min(score, 15)
}

func scoreConfidence(confidence float64, th Thresholds) int {
	switch {
	case confidence >= th.Excellent:
		return 25
	case confidence >= th.High:
		return 20
	case confidence >= 50:
		return 10
	case confidence > 0:
		return 5
	default:
		return 0
	}
}

func scoreProfile(input LeadFeatures) int {
	score := 0
	if strings.TrimSpace(input.ProfileURL) != "" {
		score += 4
	}
	domain := extractDomain(input.Domain)
	if domain == "" {
		domain = emailDomain(input.Email)
	}
	if businessDomain(domain) {
		score += 3
	}
	if strings.TrimSpace(input.Location) != "" || strings.TrimSpace(input.Industry) != "" {
		score += 3
	}
	return min(score, 10)
}

// EmailReliability buckets an email by verification outcome and provider confidence.
func EmailReliability(email string, check *entity.EmailVerification, confidence float64, th Thresholds) entity.EmailReliability {
	if strings.TrimSpace(email) == "" {
		return entity.ReliabilityNoEmail
	}
	if check == nil {
		return entity.ReliabilityUnknown
	}
	if !check.IsValid {
		return entity.ReliabilityPoor
	}
	switch {
	case check.IsCatchAll:
		return entity.ReliabilityFair
	case check.Score >= 80 && confidence >= th.Excellent:
		return entity.ReliabilityExcellent
	case check.Score >= 70 && confidence >= th.High:
		return entity.ReliabilityGood
	default:
		return entity.ReliabilityFair
	}
}

func businessDomain(domain string) bool {
	if domain == "" || strings.Count(domain, ".") < 1 {
		return false
	}
	for _, list := range [][]string{freeHostingDomains, freeMailDomains} {
		for _, bad := range list {
			if domain == bad || strings.HasSuffix(domain, "."+bad) {
				return false
			}
		}
	}
	return true
}

func emailDomain(email string) string {
	_, domain, ok := strings.Cut(strings.ToLower(strings.TrimSpace(email)), "@")
	if !ok {
		return ""
	}
	return domain
}

func extractDomain(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	lowered := strings.ToLower(raw)
	if !strings.Contains(lowered, "://") {
		lowered = "https://" + lowered
	}
	parsed, err := url.Parse(lowered)
	if err != nil {
		return ""
	}
	host := strings.TrimSpace(strings.ToLower(parsed.Host))
	host = strings.TrimPrefix(host, "www.")
	return host
}
