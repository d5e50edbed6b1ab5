package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/octobees/contact-enricher/internal/entity"
)

// kaspr resolves phone numbers from a LinkedIn profile.
type kaspr struct {
	http *jsonClient
}

func newKaspr(_ Descriptor, apiKey string, client *jsonClient) Source {
	return &kaspr{http: client.withHeader("Authorization", "Bearer "+apiKey).withHeader("accept-version", "v2.0")}
}

// kasprAccepts requires a profile URL since lookups are keyed by LinkedIn id.
func kasprAccepts(contact entity.Contact) bool {
	return linkedInID(contact.ProfileURL) != ""
}

// linkedInID extracts the public identifier from a /in/<id> profile URL.
func linkedInID(profile string) string {
	profile = strings.TrimSpace(profile)
	if profile == "" {
		return ""
	}
	if !strings.Contains(profile, "://") {
		profile = "https://" + profile
	}
	u, err := url.Parse(profile)
	if err != nil || !strings.Contains(u.Hostname(), "linkedin.") {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "in" {
		return ""
	}
	return parts[1]
}

func (p *kaspr) Lookup(ctx context.Context, contact entity.Contact) (Match, error) {
	id := linkedInID(contact.ProfileURL)
	if id == "" {
		return Match{}, fmt.Errorf("%w: linkedin profile required", ErrNoResult)
	}
	payload := map[string]string{"id": id, "name": contact.FullName()}

	var resp struct {
		Profile *struct {
			StarryPhone        string   `json:"starryPhone"`
			Phones             []string `json:"phones"`
			StarryProfessional string   `json:"starryProfessionalEmail"`
			ProfessionalEmails []string `json:"professionalEmails"`
		} `json:"profile"`
	}
	raw, err := p.http.do(ctx, http.MethodPost, "/profile/linkedin", nil, payload, &resp)
	if err != nil {
		return Match{}, err
	}
	if resp.Profile == nil {
		return Match{}, fmt.Errorf("%w: profile not found", ErrNoResult)
	}

	m := Match{Raw: raw, Phone: resp.Profile.StarryPhone, Email: resp.Profile.StarryProfessional}
	if m.Phone == "" && len(resp.Profile.Phones) > 0 {
		m.Phone = resp.Profile.Phones[0]
	}
	if m.Email == "" && len(resp.Profile.ProfessionalEmails) > 0 {
		m.Email = resp.Profile.ProfessionalEmails[0]
	}
	switch {
	case resp.Profile.StarryPhone != "":
		m.Confidence = 85
	case m.Phone != "":
		m.Confidence = 70
	case m.Email != "":
		m.Confidence = 60
	}
	return m, nil
}
