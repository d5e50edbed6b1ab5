package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/octobees/contact-enricher/internal/entity"
)

var icypeasCertainty = map[string]float64{
	"ultra_sure": 95,
	"very_sure":  90,
	"sure":       85,
	"probable":   60,
	"risky":      40,
}

// icypeas submits a single email search and polls until it settles.
type icypeas struct {
	http *jsonClient
	desc Descriptor
}

func newIcypeas(desc Descriptor, apiKey string, client *jsonClient) Source {
	return &icypeas{http: client.withHeader("Authorization", apiKey), desc: desc}
}

type icypeasItem struct {
	ID      string `json:"_id"`
	Status  string `json:"status"`
	Results struct {
		Emails []struct {
			Email     string `json:"email"`
			Certainty string `json:"certainty"`
		} `json:"emails"`
	} `json:"results"`
}

func (p *icypeas) Lookup(ctx context.Context, contact entity.Contact) (Match, error) {
	target := strings.TrimSpace(contact.Domain)
	if target == "" {
		target = strings.TrimSpace(contact.Company)
	}
	payload := map[string]string{
		"firstname":       strings.TrimSpace(contact.FirstName),
		"lastname":        strings.TrimSpace(contact.LastName),
		"domainOrCompany": target,
	}

	var submitted struct {
		Success bool        `json:"success"`
		Item    icypeasItem `json:"item"`
	}
	if _, err := p.http.do(ctx, http.MethodPost, "/email-search", nil, payload, &submitted); err != nil {
		return Match{}, err
	}
	if !submitted.Success || submitted.Item.ID == "" {
		return Match{}, fmt.Errorf("%w: search was not accepted", ErrNoResult)
	}

	var (
		final icypeasItem
		raw   []byte
	)
	err := poll(ctx, p.desc.PollSchedule, p.desc.PollTimeout, func(ctx context.Context) (bool, error) {
		var read struct {
			Success bool          `json:"success"`
			Items   []icypeasItem `json:"items"`
		}
		body, err := p.http.do(ctx, http.MethodPost, "/bulk-single-searchs/read", nil, map[string]string{"id": submitted.Item.ID}, &read)
		if err != nil {
			return false, err
		}
		if len(read.Items) == 0 {
			return false, nil
		}
		switch strings.ToUpper(read.Items[0].Status) {
		case "NONE", "SCHEDULED", "IN_PROGRESS":
			return false, nil
		}
		final, raw = read.Items[0], body
		return true, nil
	})
	if err != nil {
		return Match{}, err
	}

	switch strings.ToUpper(final.Status) {
	case "FOUND", "DEBITED":
	default:
		return Match{}, fmt.Errorf("%w: search settled as %s", ErrNoResult, final.Status)
	}
	if len(final.Results.Emails) == 0 {
		return Match{}, fmt.Errorf("%w: no email in results", ErrNoResult)
	}
	best := final.Results.Emails[0]
	return Match{
		Email:      best.Email,
		Confidence: bucket(best.Certainty, icypeasCertainty, 50),
		Raw:        raw,
	}, nil
}
