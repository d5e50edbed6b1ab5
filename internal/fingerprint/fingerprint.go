// Package fingerprint derives deterministic cache keys from a contact so that the
// same person written with different accents, casing, punctuation or company legal
// form resolves to the same cached enrichment.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/octobees/contact-enricher/internal/entity"
)

// Canonical holds the cleaned parts of a contact used to build fingerprints.
type Canonical struct {
	FirstName   string
	LastName    string
	Company     string
	Domain      string
	EmailDomain string
}

// Canonicalize cleans every identifying field of the contact.
func Canonicalize(contact entity.Contact) Canonical {
	c := Canonical{
		FirstName: CleanName(contact.FirstName),
		LastName:  CleanName(contact.LastName),
		Company:   CleanCompany(contact.Company),
		Domain:    CleanDomain(contact.Domain),
	}
	if c.Domain == "" && looksLikeDomain(contact.Company) {
		c.Domain = CleanDomain(contact.Company)
		c.Company = CleanCompany(strings.SplitN(c.Domain, ".", 2)[0])
	}
	if c.Domain != "" {
		c.EmailDomain = RegistrableDomain(c.Domain)
	}
	return c
}

// Generate returns every fingerprint that can be derived from the contact.
// The result is deterministic and free of duplicate values; the exact
// name+company fingerprint, when available, comes first.
func Generate(contact entity.Contact) []entity.Fingerprint {
	c := Canonicalize(contact)
	if c.FirstName == "" || c.LastName == "" {
		return nil
	}

	var out []entity.Fingerprint
	seen := make(map[string]struct{}, 5)
	add := func(kind entity.FingerprintType, parts ...string) {
		value := hashParts(kind, parts...)
		if _, dup := seen[value]; dup {
			return
		}
		seen[value] = struct{}{}
		out = append(out, entity.Fingerprint{Type: kind, Value: value})
	}

	if c.Company != "" {
		add(entity.FingerprintExact, c.FirstName, c.LastName, c.Company)
		add(entity.FingerprintInitials, initial(c.FirstName), c.LastName, c.Company)
		add(entity.FingerprintNameHash, nameKey(c.FirstName, c.LastName), compact(c.Company))
	}
	if c.Domain != "" {
		add(entity.FingerprintNameDomain, c.FirstName, c.LastName, c.Domain)
	}
	if c.EmailDomain != "" {
		add(entity.FingerprintNameEmailDomain, c.FirstName, c.LastName, c.EmailDomain)
	}
	return out
}

// Primary picks the fingerprint used as the contact's stable identity.
func Primary(fps []entity.Fingerprint) string {
	for _, fp := range fps {
		if fp.Type == entity.FingerprintExact {
			return fp.Value
		}
	}
	if len(fps) > 0 {
		return fps[0].Value
	}
	return ""
}

// FirstNamesAgree reports whether two canonical first names can belong to
// the same person: equal, or one is the bare initial of the other.
func FirstNamesAgree(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	if utf8.RuneCountInString(a) == 1 || utf8.RuneCountInString(b) == 1 {
		return initial(a) == initial(b)
	}
	return false
}

// Values flattens fingerprints into their lookup values.
func Values(fps []entity.Fingerprint) []string {
	values := make([]string, 0, len(fps))
	for _, fp := range fps {
		values = append(values, fp.Value)
	}
	return values
}

// nameKey is order independent so "Smith John" and "John Smith" collide.
func nameKey(first, last string) string {
	parts := strings.Fields(first + " " + last)
	sort.Strings(parts)
	return strings.Join(parts, "")
}

func compact(s string) string {
	return strings.ReplaceAll(s, " ", "")
}

func hashParts(kind entity.FingerprintType, parts ...string) string {
	sum := sha256.Sum256([]byte(string(kind) + "|" + strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}
