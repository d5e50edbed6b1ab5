package entity

import (
	"encoding/json"
	"strings"
	"time"
)

// Contact is the enrichment query for a single person. It is never persisted as-is.
type Contact struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Company    string `json:"company"`
	Domain     string `json:"domain,omitempty"`
	ProfileURL string `json:"profile_url,omitempty"`
	Location   string `json:"location,omitempty"`
	Industry   string `json:"industry,omitempty"`
}

// FullName joins the trimmed first and last name.
func (c Contact) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

// HasIdentity reports whether the contact carries enough data to be looked up.
func (c Contact) HasIdentity() bool {
	if strings.TrimSpace(c.ProfileURL) != "" {
		return true
	}
	hasName := strings.TrimSpace(c.FirstName) != "" && strings.TrimSpace(c.LastName) != ""
	hasOrg := strings.TrimSpace(c.Company) != "" || strings.TrimSpace(c.Domain) != ""
	return hasName && hasOrg
}

// EnrichOptions selects which data types the caller is paying for.
type EnrichOptions struct {
	WantEmail bool `json:"want_email"`
	WantPhone bool `json:"want_phone"`
}

// Any reports whether at least one data type was requested.
func (o EnrichOptions) Any() bool {
	return o.WantEmail || o.WantPhone
}

// Capability describes which data types a provider can resolve.
type Capability string

const (
	CapabilityEmail Capability = "email"
	CapabilityPhone Capability = "phone"
	CapabilityBoth  Capability = "both"
)

// ResolvesEmail reports whether the capability covers email lookups.
func (c Capability) ResolvesEmail() bool {
	return c == CapabilityEmail || c == CapabilityBoth
}

// ResolvesPhone reports whether the capability covers phone lookups.
func (c Capability) ResolvesPhone() bool {
	return c == CapabilityPhone || c == CapabilityBoth
}

// Serves reports whether a provider with this capability can satisfy any of the requested types.
func (c Capability) Serves(opts EnrichOptions) bool {
	return (opts.WantEmail && c.ResolvesEmail()) || (opts.WantPhone && c.ResolvesPhone())
}

// FailureKind classifies why a provider call produced no data.
type FailureKind string

const (
	FailureNone        FailureKind = ""
	FailureNoResult    FailureKind = "no_result"
	FailureUnavailable FailureKind = "unavailable"
	FailureTransient   FailureKind = "transient"
	FailureCancelled   FailureKind = "cancelled"
)

// ProviderResult is the outcome of a single provider call.
type ProviderResult struct {
	Provider   string          `json:"provider"`
	Email      *string         `json:"email,omitempty"`
	Phone      *string         `json:"phone,omitempty"`
	Confidence float64         `json:"confidence"`
	Raw        json.RawMessage `json:"raw,omitempty"`
	Cost       float64         `json:"cost"`
	Elapsed    time.Duration   `json:"elapsed"`
	Failure    FailureKind     `json:"failure,omitempty"`
	Detail     string          `json:"detail,omitempty"`
}

// HasEmail reports whether a non-empty email was returned.
func (r ProviderResult) HasEmail() bool {
	return r.Email != nil && strings.TrimSpace(*r.Email) != ""
}

// HasPhone reports whether a non-empty phone was returned.
func (r ProviderResult) HasPhone() bool {
	return r.Phone != nil && strings.TrimSpace(*r.Phone) != ""
}

// Satisfies reports whether the result carries at least one requested data type.
func (r ProviderResult) Satisfies(opts EnrichOptions) bool {
	return (opts.WantEmail && r.HasEmail()) || (opts.WantPhone && r.HasPhone())
}

// EmptyResult builds a zero-confidence result carrying the failure classification.
func EmptyResult(provider string, kind FailureKind, detail string) ProviderResult {
	return ProviderResult{
		Provider: provider,
		Failure:  kind,
		Detail:   detail,
	}
}
