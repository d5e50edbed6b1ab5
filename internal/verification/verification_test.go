package verification

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/nyaruka/phonenumbers"

	"github.com/octobees/contact-enricher/internal/entity"
)

type stubDNSResolver struct {
	mx      map[string][]string
	hosts   map[string]bool
	failing map[string]bool
	calls   int
}

func (s *stubDNSResolver) LookupMX(_ context.Context, domain string) ([]*net.MX, error) {
	s.calls++
	if s.failing[domain] {
		return nil, &net.DNSError{Err: "i/o timeout", Name: domain, IsTimeout: true}
	}
	hosts, ok := s.mx[domain]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: domain, IsNotFound: true}
	}
	records := make([]*net.MX, 0, len(hosts))
	for i, h := range hosts {
		records = append(records, &net.MX{Host: h + ".", Pref: uint16(10 * (i + 1))})
	}
	return records, nil
}

func (s *stubDNSResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	if s.hosts[host] {
		return []string{"192.0.2.10"}, nil
	}
	return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
}

func newStubVerifier() (*EmailVerifier, *stubDNSResolver) {
	resolver := &stubDNSResolver{
		mx: map[string][]string{
			"acme.com":       {"mx1.acme.com", "mx2.acme.com"},
			"mailinator.com": {"mail.mailinator.com"},
			"globex.com":     {"globex-com.mail.protection.outlook.com"},
			"initech.com":    {"us-smtp-inbound-1.mimecast.com"},
		},
		hosts:   map[string]bool{"nomx.com": true},
		failing: map[string]bool{"flaky.com": true},
	}
	return NewEmailVerifier(WithDNSResolver(resolver), WithCatchAllDomains([]string{"GLOBEX.com"})), resolver
}

func TestVerifyEmailScores(t *testing.T) {
	v, _ := newStubVerifier()
	cases := []struct {
		email  string
		score  int
		valid  bool
		reason string
	}{
		{"John@Acme.com", 90, true, ReasonValid},
		{"info@acme.com", 75, true, ReasonRoleBased},
		{"jane@globex.com", 80, true, ReasonCatchAll},
		{"bob@initech.com", 80, true, ReasonCatchAll},
		{"temp@mailinator.com", 20, false, ReasonDisposable},
		{"someone@nomx.com", 35, false, ReasonNoMX},
		{"ghost@nowhere.invalid", 15, false, ReasonDomainNotFound},
		{"not-an-email", 0, false, ReasonInvalidSyntax},
		{"a@-bad-.com", 0, false, ReasonInvalidSyntax},
	}
	for _, tc := range cases {
		t.Run(tc.email, func(t *testing.T) {
			res, err := v.Verify(context.Background(), tc.email)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Score != tc.score || res.IsValid != tc.valid || res.Reason != tc.reason {
				t.Fatalf("got score=%d valid=%v reason=%s, want %d %v %s", res.Score, res.IsValid, res.Reason, tc.score, tc.valid, tc.reason)
			}
		})
	}
}

func TestVerifyEmailFlags(t *testing.T) {
	v, _ := newStubVerifier()
	res, _ := v.Verify(context.Background(), "temp@mailinator.com")
	if !res.IsDisposable || res.Deliverable || !res.HasMX {
		t.Fatalf("unexpected disposable verdict %+v", res)
	}
	res, _ = v.Verify(context.Background(), "sales+eu@acme.com")
	if !res.IsRoleBased {
		t.Fatalf("plus-addressed role account should be flagged")
	}
	if len(res.MXHosts) != 2 || res.MXHosts[0] != "mx1.acme.com" {
		t.Fatalf("unexpected mx hosts %v", res.MXHosts)
	}
}

func TestVerifyEmailDNSFailure(t *testing.T) {
	v, _ := newStubVerifier()
	res, err := v.Verify(context.Background(), "x@flaky.com")
	if !errors.Is(err, ErrVerification) {
		t.Fatalf("expected verification error, got %v", err)
	}
	if res.IsValid || res.Reason != ReasonDNSError {
		t.Fatalf("failed lookup must be unverified: %+v", res)
	}
}

func TestVerifyEmailCachesDomainLookups(t *testing.T) {
	v, resolver := newStubVerifier()
	for _, e := range []string{"a@acme.com", "b@acme.com", "c@acme.com"} {
		if _, err := v.Verify(context.Background(), e); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if resolver.calls != 1 {
		t.Fatalf("expected one MX lookup for a repeated domain, got %d", resolver.calls)
	}
}

func TestVerifyPhone(t *testing.T) {
	v := NewPhoneVerifier("US", []string{"us", "GB"})

	res := v.Verify(" (415) 555-1234 ")
	if !res.IsValid || res.E164 != "+14155551234" || res.Region != "US" {
		t.Fatalf("unexpected verdict %+v", res)
	}
	if res.Type != entity.PhoneTypeMobile {
		t.Fatalf("fixed-or-mobile numbers count as mobile, got %s", res.Type)
	}
	want := phoneScoreValid + phoneScoreMobile + phoneScoreHighValue
	if res.Carrier != "" {
		want += phoneScoreCarrier
	}
	if res.Score != want {
		t.Fatalf("expected score %d, got %d", want, res.Score)
	}

	if bad := v.Verify("12345"); bad.IsValid || bad.Score != 0 || bad.E164 != "" {
		t.Fatalf("short number should be invalid: %+v", bad)
	}
	if bad := v.Verify("not a phone"); bad.IsValid || bad.Reason != ReasonUnparseable {
		t.Fatalf("garbage should be unparseable: %+v", bad)
	}
	if empty := v.Verify(""); empty.IsValid {
		t.Fatalf("empty phone must be invalid")
	}
}

func TestVerifyPhoneOutsideHighValueRegion(t *testing.T) {
	plain := NewPhoneVerifier("US", nil).Verify("+14155551234")
	boosted := NewPhoneVerifier("US", []string{"US"}).Verify("+14155551234")
	if plain.Score != boosted.Score-phoneScoreHighValue {
		t.Fatalf("expected a %d point high-value bonus, got %d vs %d", phoneScoreHighValue, plain.Score, boosted.Score)
	}
}

func TestClassifyLine(t *testing.T) {
	cases := []struct {
		carrier string
		want    entity.PhoneType
	}{
		{"Twilio Inc", entity.PhoneTypeVoIP},
		{"Vonage", entity.PhoneTypeVoIP},
		{"", entity.PhoneTypeUnknown},
		{"Acme Wireless", entity.PhoneTypeMobile},
	}
	for _, tc := range cases {
		if got := classifyLine(phonenumbers.UNKNOWN, tc.carrier); got != tc.want {
			t.Fatalf("carrier %q: expected %s, got %s", tc.carrier, tc.want, got)
		}
	}
}
