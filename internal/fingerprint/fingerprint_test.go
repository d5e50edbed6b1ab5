package fingerprint

import (
	"testing"

	"github.com/octobees/contact-enricher/internal/entity"
)

func shareValue(a, b []entity.Fingerprint) bool {
	set := make(map[string]struct{}, len(a))
	for _, fp := range a {
		set[fp.Value] = struct{}{}
	}
	for _, fp := range b {
		if _, ok := set[fp.Value]; ok {
			return true
		}
	}
	return false
}

func TestCleanName(t *testing.T) {
	cases := map[string]string{
		"  José  ":        "JOSE",
		"O'Brien":         "OBRIEN",
		"Dr. Jane":        "JANE",
		"Smith-Jones Jr.": "SMITH JONES",
		"Zoë":             "ZOE",
	}
	for in, want := range cases {
		if got := CleanName(in); got != want {
			t.Fatalf("CleanName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanCompany(t *testing.T) {
	cases := map[string]string{
		"Acme Corp":              "ACME",
		"ACME Corporation, Inc.": "ACME",
		"The Acme Company":       "ACME",
		"Société Générale SA":    "SOCIETE GENERALE",
		"Müller GmbH & Co. KG":   "MULLER",
		"Inc":                    "INC",
	}
	for in, want := range cases {
		if got := CleanCompany(in); got != want {
			t.Fatalf("CleanCompany(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanDomain(t *testing.T) {
	cases := map[string]string{
		"https://www.Acme.com/about": "acme.com",
		"acme.com":                   "acme.com",
		"john@acme.com":              "acme.com",
		"localhost":                  "",
		"":                           "",
	}
	for in, want := range cases {
		if got := CleanDomain(in); got != want {
			t.Fatalf("CleanDomain(%q) = %q, want %q", in, got, want)
		}
	}
	if got := RegistrableDomain("mail.acme.co.uk"); got != "acme.co.uk" {
		t.Fatalf("unexpected registrable domain %q", got)
	}
}

func TestGenerateIsStableAcrossFormattingVariants(t *testing.T) {
	canonical := Generate(entity.Contact{FirstName: "Jose", LastName: "Garcia", Company: "Acme"})
	if len(canonical) == 0 {
		t.Fatalf("expected fingerprints for canonical contact")
	}

	variants := []entity.Contact{
		{FirstName: "José", LastName: "García", Company: "Acme"},
		{FirstName: "JOSE", LastName: "garcia", Company: "acme"},
		{FirstName: "Jose", LastName: "Garcia", Company: "Acme Inc."},
		{FirstName: "Jose", LastName: "Garcia", Company: "ACME Corporation"},
		{FirstName: " jose ", LastName: "GARCÍA", Company: "Acme, LLC"},
		{FirstName: "Garcia", LastName: "Jose", Company: "Acme Ltd"},
	}
	for _, v := range variants {
		if !shareValue(canonical, Generate(v)) {
			t.Fatalf("variant %+v shares no fingerprint with canonical form", v)
		}
	}
}

func TestGenerateIsDeterministicAndUnique(t *testing.T) {
	contact := entity.Contact{FirstName: "John", LastName: "Smith", Company: "Acme Corp", Domain: "www.acme.com"}
	first := Generate(contact)
	second := Generate(contact)
	if len(first) != len(second) {
		t.Fatalf("expected deterministic output")
	}
	seen := map[string]bool{}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("fingerprint %d differs between runs", i)
		}
		if seen[first[i].Value] {
			t.Fatalf("duplicate fingerprint value %s", first[i].Value)
		}
		seen[first[i].Value] = true
	}
	if first[0].Type != entity.FingerprintExact {
		t.Fatalf("expected exact fingerprint first, got %s", first[0].Type)
	}
	if Primary(first) != first[0].Value {
		t.Fatalf("primary should be the exact fingerprint")
	}
	types := map[entity.FingerprintType]bool{}
	for _, fp := range first {
		types[fp.Type] = true
	}
	for _, want := range []entity.FingerprintType{
		entity.FingerprintExact,
		entity.FingerprintInitials,
		entity.FingerprintNameHash,
		entity.FingerprintNameDomain,
		entity.FingerprintNameEmailDomain,
	} {
		if !types[want] {
			t.Fatalf("missing fingerprint type %s", want)
		}
	}
}

func TestGenerateDomainOnlyContact(t *testing.T) {
	byDomain := Generate(entity.Contact{FirstName: "John", LastName: "Smith", Domain: "https://acme.com"})
	if len(byDomain) != 2 {
		t.Fatalf("expected name_domain and name_email_domain fingerprints, got %d", len(byDomain))
	}
	byCompanyURL := Generate(entity.Contact{FirstName: "John", LastName: "Smith", Company: "acme.com"})
	if !shareValue(byDomain, byCompanyURL) {
		t.Fatalf("company filled with a website should match the domain fingerprint")
	}
}

func TestGenerateRequiresName(t *testing.T) {
	if fps := Generate(entity.Contact{FirstName: "John", Company: "Acme"}); fps != nil {
		t.Fatalf("expected no fingerprints without last name, got %v", fps)
	}
	if fps := Generate(entity.Contact{FirstName: "John", LastName: "Smith"}); len(fps) != 0 {
		t.Fatalf("expected no fingerprints without company or domain, got %v", fps)
	}
}

func TestDifferentPeopleDoNotCollide(t *testing.T) {
	a := Generate(entity.Contact{FirstName: "John", LastName: "Smith", Company: "Acme"})
	b := Generate(entity.Contact{FirstName: "Jane", LastName: "Smith", Company: "Globex"})
	if shareValue(a, b) {
		t.Fatalf("distinct contacts must not share fingerprints")
	}
}

func TestColleaguesSharingSurnameShareOnlyInitials(t *testing.T) {
	john := Generate(entity.Contact{FirstName: "John", LastName: "Smith", Company: "Acme Corp"})
	jane := Generate(entity.Contact{FirstName: "Jane", LastName: "Smith", Company: "Acme Corp"})

	shared := map[string]entity.FingerprintType{}
	for _, fp := range john {
		shared[fp.Value] = fp.Type
	}
	for _, fp := range jane {
		kind, ok := shared[fp.Value]
		if ok && kind != entity.FingerprintInitials {
			t.Fatalf("only the initials fingerprint may be shared, got %s", kind)
		}
	}
	if !shareValue(john, jane) {
		t.Fatalf("expected the initials fingerprint to collide")
	}
}

func TestFirstNamesAgree(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"JOHN", "JOHN", true},
		{"J", "JOHN", true},
		{"JANE", "J", true},
		{"JOHN", "JANE", false},
		{"K", "JOHN", false},
		{"", "JOHN", false},
	}
	for _, tc := range cases {
		if got := FirstNamesAgree(tc.a, tc.b); got != tc.want {
			t.Fatalf("FirstNamesAgree(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}
