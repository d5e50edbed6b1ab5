package fingerprint

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var honorifics = map[string]struct{}{
	"MR": {}, "MRS": {}, "MS": {}, "MISS": {}, "DR": {}, "PROF": {}, "SIR": {}, "MME": {}, "MLLE": {}, "HERR": {}, "FRAU": {},
}

var nameSuffixes = map[string]struct{}{
	"JR": {}, "SR": {}, "II": {}, "III": {}, "IV": {}, "PHD": {}, "MD": {}, "MBA": {},
}

// legalSuffixes are stripped from the tail of a company name, repeatedly.
var legalSuffixes = map[string]struct{}{
	"INC": {}, "INCORPORATED": {}, "LTD": {}, "LIMITED": {}, "LLC": {}, "LLP": {}, "LP": {},
	"CORP": {}, "CORPORATION": {}, "CO": {}, "COMPANY": {}, "PLC": {}, "PTY": {}, "PTE": {},
	"GMBH": {}, "AG": {}, "KG": {}, "MBH": {}, "UG": {}, "SA": {}, "SAS": {}, "SARL": {}, "SRL": {},
	"SPA": {}, "SL": {}, "BV": {}, "NV": {}, "AB": {}, "AS": {}, "ASA": {}, "OY": {}, "KK": {},
	"GROUP": {}, "HOLDING": {}, "HOLDINGS": {},
}

func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// tokens folds accents, upper-cases and splits on anything that is not a letter or digit.
// Dots and apostrophes are dropped without splitting so "A.C.M.E." and "O'Brien" stay whole.
func tokens(s string) []string {
	s = strings.ToUpper(foldAccents(strings.TrimSpace(s)))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '.' || r == '\'' || r == '’':
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Fields(b.String())
}

// CleanName returns the canonical upper-case form of a personal name.
func CleanName(raw string) string {
	parts := tokens(raw)
	for len(parts) > 1 {
		if _, ok := honorifics[parts[0]]; !ok {
			break
		}
		parts = parts[1:]
	}
	for len(parts) > 1 {
		if _, ok := nameSuffixes[parts[len(parts)-1]]; !ok {
			break
		}
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, " ")
}

// CleanCompany returns the canonical company name without legal-form suffixes.
func CleanCompany(raw string) string {
	parts := tokens(raw)
	if len(parts) > 1 && parts[0] == "THE" {
		parts = parts[1:]
	}
	for len(parts) > 1 {
		if _, ok := legalSuffixes[parts[len(parts)-1]]; !ok {
			break
		}
		parts = parts[:len(parts)-1]
	}
	return strings.Join(parts, " ")
}

// CleanDomain reduces a URL or host to a lower-case ASCII host without "www.".
func CleanDomain(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return ""
	}
	if at := strings.LastIndex(raw, "@"); at >= 0 {
		raw = raw[at+1:]
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.Trim(u.Hostname(), ".")
	host = strings.TrimPrefix(host, "www.")
	if host == "" || !strings.Contains(host, ".") {
		return ""
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return ""
	}
	return ascii
}

// RegistrableDomain returns the eTLD+1 of a host, e.g. "mail.acme.co.uk" -> "acme.co.uk".
func RegistrableDomain(host string) string {
	host = CleanDomain(host)
	if host == "" {
		return ""
	}
	root, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return root
}

// looksLikeDomain reports whether a company field was filled with a website instead of a name.
func looksLikeDomain(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, " \t") {
		return false
	}
	host := CleanDomain(raw)
	if host == "" {
		return false
	}
	_, icann := publicsuffix.PublicSuffix(host)
	return icann
}

func initial(name string) string {
	for _, r := range name {
		return string(r)
	}
	return ""
}
