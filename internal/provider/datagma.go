package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/octobees/contact-enricher/internal/entity"
)

// datagma reports a 0..1 probability next to the email it finds.
type datagma struct {
	http   *jsonClient
	apiKey string
}

func newDatagma(_ Descriptor, apiKey string, client *jsonClient) Source {
	return &datagma{http: client, apiKey: apiKey}
}

func (p *datagma) Lookup(ctx context.Context, contact entity.Contact) (Match, error) {
	q := url.Values{}
	q.Set("apiId", p.apiKey)
	q.Set("fullName", contact.FullName())
	company := strings.TrimSpace(contact.Domain)
	if company == "" {
		company = strings.TrimSpace(contact.Company)
	}
	q.Set("company", company)

	var resp struct {
		Email       string  `json:"email"`
		Status      string  `json:"status"`
		Probability float64 `json:"probability"`
	}
	raw, err := p.http.do(ctx, http.MethodGet, "/v6/findEmail", q, nil, &resp)
	if err != nil {
		return Match{}, err
	}
	if resp.Email == "" || strings.EqualFold(resp.Status, "not_found") {
		return Match{}, fmt.Errorf("%w: no email found", ErrNoResult)
	}
	confidence := probability(resp.Probability)
	if resp.Probability == 0 && strings.EqualFold(resp.Status, "valid") {
		confidence = 80
	}
	return Match{Email: resp.Email, Confidence: confidence, Raw: raw}, nil
}
