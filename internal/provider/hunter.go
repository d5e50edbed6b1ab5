package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/octobees/contact-enricher/internal/entity"
)

// hunter uses the synchronous email-finder endpoint; scores are already 0..100.
type hunter struct {
	http   *jsonClient
	apiKey string
}

func newHunter(_ Descriptor, apiKey string, client *jsonClient) Source {
	return &hunter{http: client, apiKey: apiKey}
}

func (p *hunter) Lookup(ctx context.Context, contact entity.Contact) (Match, error) {
	q := url.Values{}
	q.Set("first_name", strings.TrimSpace(contact.FirstName))
	q.Set("last_name", strings.TrimSpace(contact.LastName))
	if contact.Domain != "" {
		q.Set("domain", strings.TrimSpace(contact.Domain))
	} else {
		q.Set("company", strings.TrimSpace(contact.Company))
	}
	q.Set("api_key", p.apiKey)

	var resp struct {
		Data struct {
			Email       string  `json:"email"`
			Score       float64 `json:"score"`
			PhoneNumber string  `json:"phone_number"`
		} `json:"data"`
	}
	raw, err := p.http.do(ctx, http.MethodGet, "/email-finder", q, nil, &resp)
	if err != nil {
		return Match{}, err
	}
	if resp.Data.Email == "" {
		return Match{}, fmt.Errorf("%w: no email found", ErrNoResult)
	}
	return Match{
		Email:      resp.Data.Email,
		Phone:      resp.Data.PhoneNumber,
		Confidence: percent(resp.Data.Score),
		Raw:        raw,
	}, nil
}
