package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/octobees/contact-enricher/internal/entity"
)

var apolloEmailStatus = map[string]float64{
	"verified":         90,
	"likely to engage": 75,
	"guessed":          60,
	"unverified":       50,
	"extrapolated":     45,
	"unavailable":      0,
}

// apollo matches a person and may return both email and phone numbers.
type apollo struct {
	http *jsonClient
}

func newApollo(_ Descriptor, apiKey string, client *jsonClient) Source {
	return &apollo{http: client.withHeader("X-Api-Key", apiKey)}
}

func (p *apollo) Lookup(ctx context.Context, contact entity.Contact) (Match, error) {
	payload := map[string]any{
		"first_name":        strings.TrimSpace(contact.FirstName),
		"last_name":         strings.TrimSpace(contact.LastName),
		"organization_name": strings.TrimSpace(contact.Company),
	}
	if contact.Domain != "" {
		payload["domain"] = strings.TrimSpace(contact.Domain)
	}
	if contact.ProfileURL != "" {
		payload["linkedin_url"] = strings.TrimSpace(contact.ProfileURL)
	}

	var resp struct {
		Person *struct {
			Email        string `json:"email"`
			EmailStatus  string `json:"email_status"`
			PhoneNumbers []struct {
				SanitizedNumber string `json:"sanitized_number"`
				RawNumber       string `json:"raw_number"`
			} `json:"phone_numbers"`
		} `json:"person"`
	}
	raw, err := p.http.do(ctx, http.MethodPost, "/people/match", nil, payload, &resp)
	if err != nil {
		return Match{}, err
	}
	if resp.Person == nil {
		return Match{}, fmt.Errorf("%w: no matching person", ErrNoResult)
	}

	m := Match{Raw: raw}
	if resp.Person.EmailStatus != "unavailable" && !strings.HasPrefix(resp.Person.Email, "email_not_unlocked") {
		m.Email = resp.Person.Email
	}
	for _, n := range resp.Person.PhoneNumbers {
		if n.SanitizedNumber != "" {
			m.Phone = n.SanitizedNumber
			break
		}
		if n.RawNumber != "" {
			m.Phone = n.RawNumber
			break
		}
	}
	if m.Email != "" {
		m.Confidence = bucket(resp.Person.EmailStatus, apolloEmailStatus, 50)
	} else if m.Phone != "" {
		m.Confidence = 65
	}
	return m, nil
}
