package service

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/octobees/contact-enricher/internal/entity"
)

// CSVValidationError indicates that the provided CSV payload is invalid.
type CSVValidationError struct {
	Message string
}

// Error implements the error interface.
func (e CSVValidationError) Error() string {
	return e.Message
}

var requiredCSVHeaders = []string{"first_name", "last_name", "company"}

// ParseContactsCSV reads contacts from a CSV with a header row. Blank rows
// are dropped; at most limit contacts are accepted.
func ParseContactsCSV(r io.Reader, limit int) ([]entity.Contact, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, CSVValidationError{Message: "csv file is empty"}
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	index, valErr := buildHeaderIndex(header)
	if valErr != nil {
		return nil, valErr
	}

	var (
		contacts []entity.Contact
		rowNum   = 1
	)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		rowNum++

		field := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		contact := entity.Contact{
			FirstName:  field("first_name"),
			LastName:   field("last_name"),
			Company:    field("company"),
			Domain:     field("domain"),
			ProfileURL: field("profile_url"),
			Location:   field("location"),
			Industry:   field("industry"),
		}
		if contact == (entity.Contact{}) {
			continue
		}
		if limit > 0 && len(contacts) == limit {
			return nil, CSVValidationError{Message: fmt.Sprintf("csv exceeds %d contacts (row %d)", limit, rowNum)}
		}
		contacts = append(contacts, contact)
	}

	if len(contacts) == 0 {
		return nil, CSVValidationError{Message: "csv contains no contacts"}
	}
	return contacts, nil
}

func buildHeaderIndex(header []string) (map[string]int, error) {
	index := make(map[string]int)
	for i, col := range header {
		col = strings.TrimPrefix(col, "\ufeff")
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}

	missing := make([]string, 0)
	for _, required := range requiredCSVHeaders {
		if _, ok := index[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, CSVValidationError{Message: fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", "))}
	}
	return index, nil
}
