package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/octobees/contact-enricher/internal/entity"
)

var dropcontactQualification = map[string]float64{
	"nominative@pro":   90,
	"nominative@perso": 70,
	"catch_all@pro":    55,
	"generic@pro":      30,
}

// dropcontact submits a one-row batch and polls the batch endpoint.
type dropcontact struct {
	http *jsonClient
	desc Descriptor
}

func newDropcontact(desc Descriptor, apiKey string, client *jsonClient) Source {
	return &dropcontact{http: client.withHeader("X-Access-Token", apiKey), desc: desc}
}

type dropcontactRow struct {
	Email []struct {
		Email         string `json:"email"`
		Qualification string `json:"qualification"`
	} `json:"email"`
	Phone       string `json:"phone"`
	MobilePhone string `json:"mobile_phone"`
}

func (p *dropcontact) Lookup(ctx context.Context, contact entity.Contact) (Match, error) {
	row := map[string]string{
		"first_name": strings.TrimSpace(contact.FirstName),
		"last_name":  strings.TrimSpace(contact.LastName),
		"company":    strings.TrimSpace(contact.Company),
	}
	if contact.Domain != "" {
		row["website"] = strings.TrimSpace(contact.Domain)
	}
	if contact.ProfileURL != "" {
		row["linkedin"] = strings.TrimSpace(contact.ProfileURL)
	}
	payload := map[string]any{"data": []map[string]string{row}, "siren": false, "language": "en"}

	var submitted struct {
		Success   bool   `json:"success"`
		RequestID string `json:"request_id"`
		Error     bool   `json:"error"`
	}
	if _, err := p.http.do(ctx, http.MethodPost, "/batch", nil, payload, &submitted); err != nil {
		return Match{}, err
	}
	if !submitted.Success || submitted.RequestID == "" {
		return Match{}, fmt.Errorf("%w: batch was not accepted", ErrNoResult)
	}

	var (
		rows []dropcontactRow
		raw  []byte
	)
	err := poll(ctx, p.desc.PollSchedule, p.desc.PollTimeout, func(ctx context.Context) (bool, error) {
		var status struct {
			Success bool             `json:"success"`
			Error   bool             `json:"error"`
			Reason  string           `json:"reason"`
			Data    []dropcontactRow `json:"data"`
		}
		body, err := p.http.do(ctx, http.MethodGet, "/batch/"+submitted.RequestID, nil, nil, &status)
		if err != nil {
			return false, err
		}
		if status.Error {
			return false, fmt.Errorf("%w: %s", ErrNoResult, status.Reason)
		}
		if !status.Success {
			return false, nil
		}
		rows, raw = status.Data, body
		return true, nil
	})
	if err != nil {
		return Match{}, err
	}
	if len(rows) == 0 {
		return Match{}, fmt.Errorf("%w: empty batch result", ErrNoResult)
	}

	result := rows[0]
	m := Match{Raw: raw, Phone: result.MobilePhone}
	if m.Phone == "" {
		m.Phone = result.Phone
	}
	if len(result.Email) > 0 {
		m.Email = result.Email[0].Email
		m.Confidence = bucket(result.Email[0].Qualification, dropcontactQualification, 50)
	} else if m.Phone != "" {
		m.Confidence = 70
	}
	return m, nil
}
