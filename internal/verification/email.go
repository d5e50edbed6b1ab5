// Package verification scores emails and phone numbers returned by providers.
package verification

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/idna"

	"github.com/octobees/contact-enricher/internal/entity"
)

var (
	emailPattern = regexp.MustCompile(`^[a-z0-9._%+\-']+@[a-z0-9.-]+\.[a-z]{2,}$`)
	idnaProfile  = idna.Lookup
)

// ErrVerification wraps resolver failures that are neither success nor a definite "not found".
var ErrVerification = errors.New("verification failed")

const (
	scoreSyntax      = 15
	scoreDomain      = 20
	scoreMX          = 35
	scoreDeliverable = 20

	penaltyDisposable = 50
	penaltyRoleBased  = 15
	penaltyCatchAll   = 10

	validThreshold = 50

	defaultDNSTimeout = 3 * time.Second
	domainCacheTTL    = 10 * time.Minute
)

// DNSResolver abstracts DNS lookups to simplify testing.
type DNSResolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
	LookupMX(ctx context.Context, domain string) ([]*net.MX, error)
}

type domainFacts struct {
	resolves bool
	mxHosts  []string
	expires  time.Time
}

// EmailVerifier checks syntax, DNS and MX, then applies deliverability heuristics.
type EmailVerifier struct {
	resolver   DNSResolver
	timeout    time.Duration
	catchAll   map[string]struct{}
	disposable map[string]struct{}

	mu    sync.Mutex
	cache map[string]domainFacts
	now   func() time.Time
}

// EmailOption configures optional dependencies.
type EmailOption func(*EmailVerifier)

// WithDNSResolver overrides the default DNS resolver.
func WithDNSResolver(resolver DNSResolver) EmailOption {
	return func(v *EmailVerifier) {
		if resolver != nil {
			v.resolver = resolver
		}
	}
}

// WithDNSTimeout bounds each DNS lookup.
func WithDNSTimeout(d time.Duration) EmailOption {
	return func(v *EmailVerifier) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// WithCatchAllDomains flags domains known to accept every recipient.
func WithCatchAllDomains(domains []string) EmailOption {
	return func(v *EmailVerifier) {
		for _, d := range domains {
			if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
				v.catchAll[d] = struct{}{}
			}
		}
	}
}

// WithDisposableDomains extends the built-in disposable domain list.
func WithDisposableDomains(domains []string) EmailOption {
	return func(v *EmailVerifier) {
		for _, d := range domains {
			if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
				v.disposable[d] = struct{}{}
			}
		}
	}
}

// NewEmailVerifier builds a verifier using the system resolver by default.
func NewEmailVerifier(opts ...EmailOption) *EmailVerifier {
	v := &EmailVerifier{
		resolver:   net.DefaultResolver,
		timeout:    defaultDNSTimeout,
		catchAll:   make(map[string]struct{}),
		disposable: make(map[string]struct{}, len(disposableDomains)),
		cache:      make(map[string]domainFacts),
		now:        time.Now,
	}
	for d := range disposableDomains {
		v.disposable[d] = struct{}{}
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify scores an email. A non-nil error wraps ErrVerification and means the
// DNS checks could not complete; the returned result is then unverified.
func (v *EmailVerifier) Verify(ctx context.Context, raw string) (entity.EmailVerification, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	res := entity.EmailVerification{Email: email}
	if email == "" || !emailPattern.MatchString(email) {
		res.Reason = ReasonInvalidSyntax
		return res, nil
	}
	local, domain, _ := strings.Cut(email, "@")
	if !isDomainValid(domain) {
		res.Reason = ReasonInvalidSyntax
		return res, nil
	}
	asciiDomain, convErr := idnaProfile.ToASCII(domain)
	if convErr != nil || asciiDomain == "" {
		res.Reason = ReasonInvalidSyntax
		return res, nil
	}
	res.SyntaxValid = true
	score := scoreSyntax

	_, res.IsDisposable = v.disposable[asciiDomain]
	_, res.IsRoleBased = roleAccounts[strings.SplitN(local, "+", 2)[0]]

	facts, lookupErr := v.domainFacts(ctx, asciiDomain)
	if lookupErr != nil {
		res.Reason = ReasonDNSError
		return res, fmt.Errorf("%w: %s: %v", ErrVerification, asciiDomain, lookupErr)
	}
	res.DomainResolves = facts.resolves || len(facts.mxHosts) > 0
	res.HasMX = len(facts.mxHosts) > 0
	res.MXHosts = facts.mxHosts
	if res.DomainResolves {
		score += scoreDomain
	}
	if res.HasMX {
		score += scoreMX
	}
	res.Deliverable = res.HasMX && !res.IsDisposable
	if res.Deliverable {
		score += scoreDeliverable
	}
	res.IsCatchAll = v.catchAllSuspected(asciiDomain, facts.mxHosts)

	if res.IsDisposable {
		score -= penaltyDisposable
	}
	if res.IsRoleBased {
		score -= penaltyRoleBased
	}
	if res.IsCatchAll {
		score -= penaltyCatchAll
	}
	res.Score = clamp(score)
	res.IsValid = res.Deliverable && res.Score >= validThreshold

	switch {
	case !res.DomainResolves:
		res.Reason = ReasonDomainNotFound
	case !res.HasMX:
		res.Reason = ReasonNoMX
	case res.IsDisposable:
		res.Reason = ReasonDisposable
	case !res.IsValid:
		res.Reason = ReasonLowScore
	case res.IsRoleBased:
		res.Reason = ReasonRoleBased
	case res.IsCatchAll:
		res.Reason = ReasonCatchAll
	default:
		res.Reason = ReasonValid
	}
	return res, nil
}

func (v *EmailVerifier) catchAllSuspected(domain string, mxHosts []string) bool {
	if _, ok := v.catchAll[domain]; ok {
		return true
	}
	for _, host := range mxHosts {
		for _, gw := range catchAllGateways {
			if host == gw || strings.HasSuffix(host, "."+gw) {
				return true
			}
		}
	}
	return false
}

// domainFacts resolves and caches host and MX information for a domain.
func (v *EmailVerifier) domainFacts(ctx context.Context, domain string) (domainFacts, error) {
	v.mu.Lock()
	if cached, ok := v.cache[domain]; ok && v.now().Before(cached.expires) {
		v.mu.Unlock()
		return cached, nil
	}
	v.mu.Unlock()

	lookupCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	var facts domainFacts
	records, err := v.resolver.LookupMX(lookupCtx, domain)
	if err != nil && !isNotFound(err) {
		return domainFacts{}, err
	}
	for _, mx := range records {
		host := strings.ToLower(strings.TrimSuffix(mx.Host, "."))
		if host != "" {
			facts.mxHosts = append(facts.mxHosts, host)
		}
	}
	sort.Strings(facts.mxHosts)

	if len(facts.mxHosts) == 0 {
		addrs, err := v.resolver.LookupHost(lookupCtx, domain)
		if err != nil && !isNotFound(err) {
			return domainFacts{}, err
		}
		facts.resolves = len(addrs) > 0
	} else {
		facts.resolves = true
	}

	facts.expires = v.now().Add(domainCacheTTL)
	v.mu.Lock()
	v.cache[domain] = facts
	v.mu.Unlock()
	return facts, nil
}

func isNotFound(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}

func isDomainValid(domain string) bool {
	if strings.Count(domain, ".") == 0 {
		return false
	}
	parts := strings.Split(domain, ".")
	for _, part := range parts {
		if part == "" || strings.HasPrefix(part, "-") || strings.HasSuffix(part, "-") {
			return false
		}
	}
	return true
}

func clamp(score int) int {
	switch {
	case score < 0:
		return 0
	case score > 100:
		return 100
	default:
		return score
	}
}
