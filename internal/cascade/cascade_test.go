package cascade

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/octobees/contact-enricher/internal/entity"
	"github.com/octobees/contact-enricher/internal/provider"
)

type stubProvider struct {
	desc        provider.Descriptor
	unavailable bool
	rejects     bool
	enrich      func(ctx context.Context) entity.ProviderResult
	calls       atomic.Int32
}

func (s *stubProvider) Descriptor() provider.Descriptor { return s.desc }

func (s *stubProvider) Available() bool { return !s.unavailable }

func (s *stubProvider) Accepts(entity.Contact) bool { return !s.rejects }

func (s *stubProvider) Enrich(ctx context.Context, _ entity.Contact) entity.ProviderResult {
	s.calls.Add(1)
	if s.enrich != nil {
		res := s.enrich(ctx)
		res.Provider = s.desc.ID
		return res
	}
	return entity.EmptyResult(s.desc.ID, entity.FailureNoResult, "nothing")
}

func strPtr(s string) *string { return &s }

func stub(id string, cost float64, capability entity.Capability) *stubProvider {
	return &stubProvider{desc: provider.Descriptor{ID: id, Cost: cost, Capability: capability}}
}

func found(email string, cost float64) func(context.Context) entity.ProviderResult {
	return func(context.Context) entity.ProviderResult {
		return entity.ProviderResult{Email: strPtr(email), Confidence: 80, Cost: cost}
	}
}

func registry(t *testing.T, providers ...*stubProvider) *provider.Registry {
	t.Helper()
	list := make([]provider.Provider, 0, len(providers))
	for _, p := range providers {
		list = append(list, p)
	}
	reg, err := provider.NewRegistry(list...)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return reg
}

var (
	emailOnly = entity.EnrichOptions{WantEmail: true}
	contact   = entity.Contact{FirstName: "John", LastName: "Smith", Company: "Acme"}
)

func TestSelectStrategy(t *testing.T) {
	cases := []struct {
		processed, found int
		want             Strategy
	}{
		{0, 0, StrategyFullCascade},
		{4, 0, StrategyFullCascade},
		{10, 9, StrategyCostOptimized},
		{20, 17, StrategyCostOptimized},
		{10, 8, StrategyBalanced},
		{10, 7, StrategyBalanced},
		{10, 6, StrategyFullCascade},
		{10, 5, StrategyFullCascade},
		{10, 4, StrategyRecovery},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d_of_%d", tc.found, tc.processed), func(t *testing.T) {
			if got := SelectStrategy(tc.processed, tc.found, DefaultThresholds); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestPlanRecoveryStartsWithMostExpensive(t *testing.T) {
	reg := registry(t,
		stub("a", 0.01, entity.CapabilityEmail), stub("b", 0.02, entity.CapabilityEmail),
		stub("c", 0.03, entity.CapabilityEmail), stub("d", 0.04, entity.CapabilityEmail),
		stub("e", 0.05, entity.CapabilityEmail),
	)
	tiers := reg.Tiers(2)
	plan := Plan(StrategyRecovery, tiers)
	if len(plan) != 3 || plan[0][0].Descriptor().ID != "e" {
		t.Fatalf("recovery should start with the most expensive tier, got %v", ids(plan))
	}
	if plan[1][0].Descriptor().ID != "d" || plan[2][1].Descriptor().ID != "a" {
		t.Fatalf("unexpected recovery order %v", ids(plan))
	}
	if tiers[0][0].Descriptor().ID != "a" {
		t.Fatalf("plan must not reorder the registry tiers")
	}
	if got := len(Plan(StrategyCostOptimized, tiers)); got != 1 {
		t.Fatalf("cost optimized should use one tier, got %d", got)
	}
	if got := len(Plan(StrategyBalanced, tiers)); got != 2 {
		t.Fatalf("balanced should use two tiers, got %d", got)
	}
}

func ids(plan [][]provider.Provider) [][]string {
	out := make([][]string, 0, len(plan))
	for _, tier := range plan {
		var row []string
		for _, p := range tier {
			row = append(row, p.Descriptor().ID)
		}
		out = append(out, row)
	}
	return out
}

func TestDispatchEscalatesToNextTier(t *testing.T) {
	cheap1 := stub("cheap1", 0.01, entity.CapabilityEmail)
	cheap2 := stub("cheap2", 0.02, entity.CapabilityEmail)
	mid := stub("mid", 0.05, entity.CapabilityEmail)
	mid.enrich = found("john@acme.com", 0.05)

	d := NewDispatcher(registry(t, cheap1, cheap2, mid), Config{TierSize: 2, FanOut: 2, MaxProviders: 7})
	out := d.Dispatch(context.Background(), contact, emailOnly, StrategyFullCascade)

	if !out.Found || out.Winner.Provider != "mid" {
		t.Fatalf("expected mid-tier winner, got %+v", out)
	}
	if out.Tiers != 2 || len(out.Attempts) != 3 {
		t.Fatalf("expected 2 tiers and 3 attempts, got %d/%d", out.Tiers, len(out.Attempts))
	}
	if out.APICost != 0.05 {
		t.Fatalf("only the hit should be billed, got %v", out.APICost)
	}
}

func TestDispatchFirstWinnerCancelsSiblings(t *testing.T) {
	fast := stub("fast", 0.01, entity.CapabilityEmail)
	started := make(chan struct{})
	slow := stub("slow", 0.02, entity.CapabilityEmail)
	slow.enrich = func(ctx context.Context) entity.ProviderResult {
		close(started)
		select {
		case <-ctx.Done():
			return entity.EmptyResult("slow", entity.FailureCancelled, ctx.Err().Error())
		case <-time.After(5 * time.Second):
			return entity.ProviderResult{Email: strPtr("late@acme.com")}
		}
	}
	fast.enrich = func(context.Context) entity.ProviderResult {
		<-started
		return entity.ProviderResult{Email: strPtr("john@acme.com"), Confidence: 85, Cost: 0.01}
	}
	never := stub("never", 0.5, entity.CapabilityEmail)

	d := NewDispatcher(registry(t, fast, slow, never), Config{TierSize: 2, FanOut: 2, MaxProviders: 7})
	begin := time.Now()
	out := d.Dispatch(context.Background(), contact, emailOnly, StrategyFullCascade)

	if time.Since(begin) > 2*time.Second {
		t.Fatalf("sibling was not cancelled")
	}
	if !out.Found || out.Winner.Provider != "fast" {
		t.Fatalf("expected fast to win, got %+v", out)
	}
	if never.calls.Load() != 0 {
		t.Fatalf("later tiers must not run after a win")
	}
	var slowResult entity.ProviderResult
	for _, a := range out.Attempts {
		if a.Provider == "slow" {
			slowResult = a
		}
	}
	if slowResult.Failure != entity.FailureCancelled {
		t.Fatalf("loser should report cancellation, got %+v", slowResult)
	}
}

func TestDispatchSkipsIneligibleProviders(t *testing.T) {
	down := stub("down", 0.01, entity.CapabilityEmail)
	down.unavailable = true
	picky := stub("picky", 0.02, entity.CapabilityEmail)
	picky.rejects = true
	phoneOnly := stub("phone", 0.03, entity.CapabilityPhone)
	good := stub("good", 0.04, entity.CapabilityBoth)
	good.enrich = found("john@acme.com", 0.04)

	d := NewDispatcher(registry(t, down, picky, phoneOnly, good), Config{TierSize: 4})
	out := d.Dispatch(context.Background(), contact, emailOnly, StrategyFullCascade)

	if !out.Found || out.Winner.Provider != "good" {
		t.Fatalf("expected good to win, got %+v", out)
	}
	for _, p := range []*stubProvider{down, picky, phoneOnly} {
		if p.calls.Load() != 0 {
			t.Fatalf("%s should have been skipped", p.desc.ID)
		}
	}
}

func TestDispatchRespectsAttemptBudget(t *testing.T) {
	var providers []*stubProvider
	for i := 0; i < 7; i++ {
		providers = append(providers, stub(fmt.Sprintf("p%d", i), float64(i+1)/100, entity.CapabilityEmail))
	}
	d := NewDispatcher(registry(t, providers...), Config{TierSize: 3, FanOut: 3, MaxProviders: 4})
	out := d.Dispatch(context.Background(), contact, emailOnly, StrategyFullCascade)

	if out.Found {
		t.Fatalf("nobody should find anything")
	}
	if len(out.Attempts) != 4 {
		t.Fatalf("expected the attempt budget of 4 to be honoured, got %d", len(out.Attempts))
	}

	unbounded := NewDispatcher(registry(t, providers...), Config{TierSize: 3, FanOut: 3, MaxProviders: 100})
	out = unbounded.Dispatch(context.Background(), contact, emailOnly, StrategyFullCascade)
	if len(out.Attempts) != 7 || out.Tiers != 3 {
		t.Fatalf("attempts should stop at tiers x tier size, got %d attempts over %d tiers", len(out.Attempts), out.Tiers)
	}
}

func TestDispatchCostOptimizedStaysInCheapTier(t *testing.T) {
	cheap := stub("cheap", 0.01, entity.CapabilityEmail)
	pricey := stub("pricey", 0.2, entity.CapabilityEmail)
	pricey.enrich = found("john@acme.com", 0.2)

	d := NewDispatcher(registry(t, cheap, pricey), Config{TierSize: 1})
	out := d.Dispatch(context.Background(), contact, emailOnly, StrategyCostOptimized)
	if out.Found || pricey.calls.Load() != 0 {
		t.Fatalf("cost optimized must not escalate, got %+v", out)
	}
}

func TestDispatchRecoveryCallsExpensiveFirst(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	record := func(id string) func(context.Context) entity.ProviderResult {
		return func(context.Context) entity.ProviderResult {
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			return entity.EmptyResult(id, entity.FailureNoResult, "")
		}
	}
	cheap := stub("cheap", 0.01, entity.CapabilityEmail)
	cheap.enrich = record("cheap")
	pricey := stub("pricey", 0.2, entity.CapabilityEmail)
	pricey.enrich = record("pricey")

	d := NewDispatcher(registry(t, cheap, pricey), Config{TierSize: 1, FanOut: 1})
	d.Dispatch(context.Background(), contact, emailOnly, StrategyRecovery)
	if len(order) != 2 || order[0] != "pricey" {
		t.Fatalf("recovery should call the expensive tier first, got %v", order)
	}
}

func TestDispatchWithoutRequestedTypesIsNoop(t *testing.T) {
	p := stub("p", 0.01, entity.CapabilityBoth)
	d := NewDispatcher(registry(t, p), DefaultConfig)
	out := d.Dispatch(context.Background(), contact, entity.EnrichOptions{}, StrategyFullCascade)
	if out.Found || p.calls.Load() != 0 {
		t.Fatalf("no requested type means no calls")
	}
}

func TestBatchTrackerFeedsStrategy(t *testing.T) {
	tracker := NewBatchTracker(DefaultThresholds)
	for i := 0; i < 10; i++ {
		tracker.Record("job-1", i < 4)
	}
	if got := tracker.Strategy("job-1"); got != StrategyRecovery {
		t.Fatalf("40%% after 10 contacts should be recovery, got %s", got)
	}
	if got := tracker.Strategy("job-2"); got != StrategyFullCascade {
		t.Fatalf("unknown job should start with full cascade, got %s", got)
	}
	tracker.Forget("job-1")
	if processed, _ := tracker.Stats("job-1"); processed != 0 {
		t.Fatalf("forgotten job should reset")
	}
}
