package ledger

import "github.com/octobees/contact-enricher/internal/entity"

// Pricing holds the credit price of each resolved data type.
type Pricing struct {
	EmailCredits int
	PhoneCredits int
}

// DefaultPricing charges 1 credit per email and 10 per phone.
var DefaultPricing = Pricing{EmailCredits: 1, PhoneCredits: 10}

// Charge returns the credits owed for the requested data that was resolved.
// Re-reading a contact the user already paid for is free; global cache hits
// cost the same as a fresh lookup.
func (p Pricing) Charge(source entity.CacheSource, opts entity.EnrichOptions, hasEmail, hasPhone bool) int {
	if source == entity.SourceUserDuplicate {
		return 0
	}
	credits := 0
	if opts.WantEmail && hasEmail {
		credits += p.EmailCredits
	}
	if opts.WantPhone && hasPhone {
		credits += p.PhoneCredits
	}
	return credits
}

// Max is the most a single contact can cost for the given options.
func (p Pricing) Max(opts entity.EnrichOptions) int {
	credits := 0
	if opts.WantEmail {
		credits += p.EmailCredits
	}
	if opts.WantPhone {
		credits += p.PhoneCredits
	}
	return credits
}
