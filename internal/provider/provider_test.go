package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/octobees/contact-enricher/internal/config"
	"github.com/octobees/contact-enricher/internal/entity"
	"github.com/octobees/contact-enricher/internal/ratelimit"
)

type stubSource struct {
	match Match
	err   error
	calls int32
}

func (s *stubSource) Lookup(ctx context.Context, _ entity.Contact) (Match, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.match, s.err
}

type recordingObserver struct {
	outcomes []entity.FailureKind
}

func (o *recordingObserver) ProviderCall(_ string, outcome entity.FailureKind, _ time.Duration) {
	o.outcomes = append(o.outcomes, outcome)
}

func (o *recordingObserver) RateLimitWait(string, time.Duration) {}

var johnSmith = entity.Contact{FirstName: "John", LastName: "Smith", Company: "Acme Corp", Domain: "acme.com"}

func TestAdapterNormalisesMatch(t *testing.T) {
	src := &stubSource{match: Match{Email: " John@Acme.com ", Confidence: 130, Raw: []byte(`{"ok":true}`)}}
	obs := &recordingObserver{}
	a := NewAdapter(Descriptor{ID: "stub", Cost: 0.02, Capability: entity.CapabilityEmail}, src, nil, nil, WithObserver(obs))

	res := a.Enrich(context.Background(), johnSmith)
	if res.Failure != entity.FailureNone {
		t.Fatalf("unexpected failure %s: %s", res.Failure, res.Detail)
	}
	if !res.HasEmail() || *res.Email != "john@acme.com" {
		t.Fatalf("unexpected email %v", res.Email)
	}
	if res.Confidence != 100 {
		t.Fatalf("confidence should be clamped to 100, got %v", res.Confidence)
	}
	if res.Cost != 0.02 || res.Provider != "stub" || string(res.Raw) != `{"ok":true}` {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(obs.outcomes) != 1 || obs.outcomes[0] != entity.FailureNone {
		t.Fatalf("expected one successful observation, got %v", obs.outcomes)
	}
}

func TestAdapterClassifiesFailures(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		want      entity.FailureKind
		available bool
	}{
		{"unavailable", fmt.Errorf("%w: http 429", ErrUnavailable), entity.FailureUnavailable, false},
		{"transient", fmt.Errorf("%w: http 503", ErrTransient), entity.FailureTransient, true},
		{"no result", fmt.Errorf("%w: http 404", ErrNoResult), entity.FailureNoResult, true},
		{"unknown", errors.New("boom"), entity.FailureNoResult, true},
		{"cancelled", context.Canceled, entity.FailureCancelled, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAdapter(Descriptor{ID: "stub"}, &stubSource{err: tc.err}, nil, ratelimit.NewGate(time.Minute, 0))
			res := a.Enrich(context.Background(), johnSmith)
			if res.Failure != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, res.Failure)
			}
			if res.HasEmail() || res.HasPhone() || res.Confidence != 0 {
				t.Fatalf("failed result must carry no data: %+v", res)
			}
			if a.Available() != tc.available {
				t.Fatalf("expected available=%v", tc.available)
			}
		})
	}
}

func TestAdapterSkipsWhileCoolingDown(t *testing.T) {
	src := &stubSource{match: Match{Email: "a@b.com"}}
	gate := ratelimit.NewGate(time.Hour, 0)
	gate.MarkUnavailable("quota")
	a := NewAdapter(Descriptor{ID: "stub"}, src, nil, gate)

	res := a.Enrich(context.Background(), johnSmith)
	if res.Failure != entity.FailureUnavailable {
		t.Fatalf("expected unavailable, got %s", res.Failure)
	}
	if atomic.LoadInt32(&src.calls) != 0 {
		t.Fatalf("source must not be called while cooling down")
	}
	if a.State().Reason != "quota" {
		t.Fatalf("unexpected gate state %+v", a.State())
	}
}

func TestAdapterEmptyMatchIsNoResult(t *testing.T) {
	a := NewAdapter(Descriptor{ID: "stub"}, &stubSource{}, nil, nil)
	if res := a.Enrich(context.Background(), johnSmith); res.Failure != entity.FailureNoResult {
		t.Fatalf("expected no_result, got %s", res.Failure)
	}
}

func TestAdapterTripsAfterTransientStreak(t *testing.T) {
	a := NewAdapter(Descriptor{ID: "stub"}, &stubSource{err: ErrTransient}, nil, ratelimit.NewGate(time.Minute, 2))
	a.Enrich(context.Background(), johnSmith)
	if !a.Available() {
		t.Fatalf("one transient failure should not trip the gate")
	}
	a.Enrich(context.Background(), johnSmith)
	if a.Available() {
		t.Fatalf("second consecutive transient failure should trip the gate")
	}
}

type costOnly struct {
	id   string
	cost float64
}

func (c costOnly) Descriptor() Descriptor    { return Descriptor{ID: c.id, Cost: c.cost} }
func (costOnly) Available() bool             { return true }
func (costOnly) Accepts(entity.Contact) bool { return true }
func (costOnly) Enrich(context.Context, entity.Contact) entity.ProviderResult {
	return entity.ProviderResult{}
}

func TestRegistryOrdersByCostAndTiers(t *testing.T) {
	var ps []Provider
	costs := []float64{0.07, 0.01, 0.05, 0.03, 0.02, 0.06, 0.04, 0.08}
	for i, c := range costs {
		ps = append(ps, costOnly{id: fmt.Sprintf("p%d", i), cost: c})
	}
	reg, err := NewRegistry(ps...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ordered := reg.Ordered()
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].Descriptor().Cost > ordered[i].Descriptor().Cost {
			t.Fatalf("providers not sorted by cost at %d", i)
		}
	}

	tiers := reg.Tiers(3)
	if len(tiers) != 3 || len(tiers[0]) != 3 || len(tiers[1]) != 3 || len(tiers[2]) != 2 {
		t.Fatalf("unexpected tier shape: %d tiers", len(tiers))
	}
	if tiers[0][0].Descriptor().Cost != 0.01 || tiers[2][1].Descriptor().Cost != 0.08 {
		t.Fatalf("tiers should follow cost order")
	}
	if got := Partition(ordered[:2], 3); len(got) != 1 || len(got[0]) != 2 {
		t.Fatalf("small registries should form a single tier")
	}
	if got := Partition(ordered, 2); len(got[2]) != 4 {
		t.Fatalf("last tier should take the remainder, got %d", len(got[2]))
	}

	if _, err := NewRegistry(costOnly{id: "x"}, costOnly{id: "x"}); err == nil {
		t.Fatalf("expected duplicate id error")
	}
	if p, ok := reg.Get("p1"); !ok || p.Descriptor().Cost != 0.01 {
		t.Fatalf("lookup by id failed")
	}
}

func TestJSONClientRetriesTransientFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"value":"ok"}`))
	}))
	defer srv.Close()

	c := newJSONClient(srv.Client(), srv.URL, 2, 5*time.Millisecond)
	var out struct {
		Value string `json:"value"`
	}
	if _, err := c.do(context.Background(), http.MethodGet, "/x", nil, nil, &out); err != nil {
		t.Fatalf("expected success after retries: %v", err)
	}
	if out.Value != "ok" || atomic.LoadInt32(&hits) != 3 {
		t.Fatalf("unexpected result %q after %d hits", out.Value, hits)
	}

	atomic.StoreInt32(&hits, -10)
	c = newJSONClient(srv.Client(), srv.URL, 1, time.Millisecond)
	if _, err := c.do(context.Background(), http.MethodGet, "/x", nil, nil, nil); !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient error once retries are spent, got %v", err)
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := map[int]error{
		401: ErrUnavailable,
		402: ErrUnavailable,
		403: ErrUnavailable,
		429: ErrUnavailable,
		404: ErrNoResult,
		422: ErrNoResult,
		408: ErrTransient,
		500: ErrTransient,
		503: ErrTransient,
	}
	for status, want := range cases {
		if err := classifyStatus(status, "x"); !errors.Is(err, want) {
			t.Fatalf("status %d: expected %v, got %v", status, want, err)
		}
	}
	if msg := extractAPIError([]byte(`{"errors":[{"details":"bad key"}]}`)); msg != "bad key" {
		t.Fatalf("unexpected message %q", msg)
	}
	if msg := extractAPIError([]byte(`{"error":{"message":"quota"}}`)); msg != "quota" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestPollStopsWhenDone(t *testing.T) {
	calls := 0
	err := poll(context.Background(), []time.Duration{time.Millisecond}, time.Second, func(context.Context) (bool, error) {
		calls++
		return calls == 3, nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected completion on third check, got %v after %d", err, calls)
	}
}

func TestPollBudgetExhausted(t *testing.T) {
	start := time.Now()
	err := poll(context.Background(), []time.Duration{10 * time.Millisecond}, 60*time.Millisecond, func(context.Context) (bool, error) {
		return false, nil
	})
	if !errors.Is(err, ErrNoResult) {
		t.Fatalf("expected no result after budget, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("poll overran its budget")
	}
}

func TestPollHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := poll(ctx, []time.Duration{time.Second}, time.Minute, func(context.Context) (bool, error) {
		t.Fatalf("check must not run after cancellation")
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
}

func TestConfidenceScales(t *testing.T) {
	if probability(0.87) != 87 || percent(92) != 92 || percent(-3) != 0 {
		t.Fatalf("unexpected scale conversion")
	}
	if probability(1) != 100 || percent(1) != 1 {
		t.Fatalf("a score of 1 must follow the vendor's scale, got probability=%v percent=%v", probability(1), percent(1))
	}
	if probability(92) != 100 {
		t.Fatalf("out of range probabilities must clamp, got %v", probability(92))
	}
	if bucket("SURE", icypeasCertainty, 50) != 85 || bucket("weird", icypeasCertainty, 50) != 50 {
		t.Fatalf("unexpected bucket mapping")
	}
}

func TestBuildSkipsProvidersWithoutKeys(t *testing.T) {
	cfgs := []config.ProviderConfig{
		{ID: "hunter", BaseURL: "http://hunter", APIKey: "k", Cost: 0.03, RateLimit: 30, Capability: "email"},
		{ID: "icypeas", BaseURL: "http://icypeas", Cost: 0.01, RateLimit: 30, Capability: "email"},
		{ID: "kaspr", BaseURL: "http://kaspr", APIKey: "k", Cost: 0.2, RateLimit: 10, Capability: "phone"},
		{ID: "apollo", BaseURL: "http://apollo", APIKey: "k", Disabled: true},
	}
	reg, err := Build(cfgs, BuildOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reg.Len() != 2 {
		t.Fatalf("expected hunter and kaspr only, got %d", reg.Len())
	}
	kaspr, ok := reg.Get("kaspr")
	if !ok || kaspr.Descriptor().Capability != entity.CapabilityPhone {
		t.Fatalf("kaspr not registered as phone provider")
	}
	if kaspr.Accepts(johnSmith) {
		t.Fatalf("kaspr needs a linkedin profile")
	}
	withProfile := johnSmith
	withProfile.ProfileURL = "https://www.linkedin.com/in/john-smith-42/"
	if !kaspr.Accepts(withProfile) {
		t.Fatalf("kaspr should accept a contact with a profile url")
	}

	if _, err := Build([]config.ProviderConfig{{ID: "nope", APIKey: "k"}}, BuildOptions{}); err == nil {
		t.Fatalf("expected unknown provider error")
	}
	if _, err := Build([]config.ProviderConfig{{ID: "hunter", APIKey: "k", Capability: "fax"}}, BuildOptions{}); err == nil {
		t.Fatalf("expected capability error")
	}
}

func TestJSONClientWaitsOnLimiterForEveryRequest(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	limiter := ratelimit.New(3, ratelimit.WithWindow(300*time.Millisecond))
	var waits int32
	c := newJSONClient(srv.Client(), srv.URL, 2, time.Millisecond).
		throttledBy(limiter, ratelimit.NewGate(time.Minute, 0), func(time.Duration) { atomic.AddInt32(&waits, 1) })

	start := time.Now()
	if _, err := c.do(context.Background(), http.MethodGet, "/x", nil, nil, nil); err != nil {
		t.Fatalf("expected success after retries: %v", err)
	}
	elapsed := time.Since(start)

	if got := atomic.LoadInt32(&hits); int(got) != limiter.InWindow() || got != 3 {
		t.Fatalf("every vendor request must pass the limiter: requests=%d window=%d", got, limiter.InWindow())
	}
	if atomic.LoadInt32(&waits) != 3 {
		t.Fatalf("expected one observed wait per request, got %d", waits)
	}
	if elapsed < 150*time.Millisecond {
		t.Fatalf("retries were not spaced by the limiter: %s", elapsed)
	}
}

func TestIcypeasPollReadsPassTheLimiter(t *testing.T) {
	var hits, reads int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path == "/email-search" {
			w.Write([]byte(`{"success":true,"item":{"_id":"s"}}`))
			return
		}
		if atomic.AddInt32(&reads, 1) < 3 {
			w.Write([]byte(`{"success":true,"items":[{"status":"IN_PROGRESS"}]}`))
			return
		}
		w.Write([]byte(`{"success":true,"items":[{"status":"FOUND","results":{"emails":[{"email":"john@acme.com","certainty":"sure"}]}}]}`))
	}))
	defer srv.Close()

	limiter := ratelimit.New(100, ratelimit.WithWindow(time.Second))
	client := newJSONClient(srv.Client(), srv.URL, 0, time.Millisecond).throttledBy(limiter, nil, nil)
	desc := Descriptor{PollSchedule: []time.Duration{5 * time.Millisecond}, PollTimeout: time.Second}
	if _, err := newIcypeas(desc, "k", client).Lookup(context.Background(), johnSmith); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 4 || int(got) != limiter.InWindow() {
		t.Fatalf("submit and poll reads must all be counted: requests=%d window=%d", got, limiter.InWindow())
	}
}

func TestThrottledClientStopsWhenSidelinedWhileWaiting(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	limiter := ratelimit.New(1, ratelimit.WithWindow(300*time.Millisecond))
	if err := limiter.Acquire(context.Background()); err != nil {
		t.Fatalf("prime limiter: %v", err)
	}
	gate := ratelimit.NewGate(time.Hour, 0)
	c := newJSONClient(srv.Client(), srv.URL, 0, time.Millisecond).throttledBy(limiter, gate, nil)

	errs := make(chan error, 1)
	go func() {
		_, err := c.do(context.Background(), http.MethodGet, "/x", nil, nil, nil)
		errs <- err
	}()
	time.Sleep(50 * time.Millisecond)
	gate.MarkUnavailable("quota")

	if err := <-errs; !errors.Is(err, errCoolingDown) {
		t.Fatalf("expected cooling down error, got %v", err)
	}
	if atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("vendor must not be called once the provider is sidelined")
	}
}

func TestAdapterRechecksGateAfterWaiting(t *testing.T) {
	src := &stubSource{match: Match{Email: "a@b.com"}}
	limiter := ratelimit.New(1, ratelimit.WithWindow(300*time.Millisecond))
	gate := ratelimit.NewGate(time.Hour, 0)
	a := NewAdapter(Descriptor{ID: "stub"}, src, limiter, gate)

	if res := a.Enrich(context.Background(), johnSmith); res.Failure != entity.FailureNone {
		t.Fatalf("first call should succeed, got %s", res.Failure)
	}
	results := make(chan entity.ProviderResult, 1)
	go func() { results <- a.Enrich(context.Background(), johnSmith) }()
	time.Sleep(50 * time.Millisecond)
	gate.MarkUnavailable("quota")

	if res := <-results; res.Failure != entity.FailureUnavailable {
		t.Fatalf("expected unavailable after the wait, got %s", res.Failure)
	}
	if atomic.LoadInt32(&src.calls) != 1 {
		t.Fatalf("source must not be called once sidelined, got %d calls", src.calls)
	}
	if a.State().Reason != "quota" {
		t.Fatalf("gate reason must be kept, got %+v", a.State())
	}
}

func TestTransportErrorsHideQueryCredentials(t *testing.T) {
	client := newJSONClient(&http.Client{Timeout: time.Second}, "http://127.0.0.1:1", 0, time.Millisecond)
	a := NewAdapter(Descriptor{ID: "hunter"}, newHunter(Descriptor{}, "SECRET-KEY", client), nil, nil)

	res := a.Enrich(context.Background(), johnSmith)
	if res.Failure != entity.FailureTransient {
		t.Fatalf("expected transient failure, got %s: %s", res.Failure, res.Detail)
	}
	if strings.Contains(res.Detail, "SECRET-KEY") || strings.Contains(res.Detail, "api_key") {
		t.Fatalf("detail leaks the request query: %s", res.Detail)
	}
	if !strings.Contains(res.Detail, "/email-finder") {
		t.Fatalf("detail should still name the endpoint: %s", res.Detail)
	}

	bad := newJSONClient(nil, "http://exa mple.com", 0, time.Millisecond)
	_, err := bad.do(context.Background(), http.MethodGet, "/find", url.Values{"api_key": {"SECRET-KEY"}}, nil, nil)
	if err == nil || strings.Contains(err.Error(), "SECRET-KEY") {
		t.Fatalf("request build errors must not echo the URL, got %v", err)
	}
}
