package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/octobees/contact-enricher/internal/entity"
)

// findymail only returns verified addresses, so a hit carries a fixed high confidence.
type findymail struct {
	http *jsonClient
}

const findymailConfidence = 90

func newFindymail(_ Descriptor, apiKey string, client *jsonClient) Source {
	return &findymail{http: client.withHeader("Authorization", "Bearer "+apiKey)}
}

func (p *findymail) Lookup(ctx context.Context, contact entity.Contact) (Match, error) {
	domain := strings.TrimSpace(contact.Domain)
	if domain == "" {
		domain = strings.TrimSpace(contact.Company)
	}
	payload := map[string]string{"name": contact.FullName(), "domain": domain}

	var resp struct {
		Contact *struct {
			Email  string `json:"email"`
			Domain string `json:"domain"`
		} `json:"contact"`
	}
	raw, err := p.http.do(ctx, http.MethodPost, "/search/name", nil, payload, &resp)
	if err != nil {
		return Match{}, err
	}
	if resp.Contact == nil || resp.Contact.Email == "" {
		return Match{}, fmt.Errorf("%w: no verified email", ErrNoResult)
	}
	return Match{Email: resp.Contact.Email, Confidence: findymailConfidence, Raw: raw}, nil
}
