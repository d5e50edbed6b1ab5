package cascade

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/octobees/contact-enricher/internal/entity"
	"github.com/octobees/contact-enricher/internal/provider"
)

var tracer = otel.Tracer("github.com/octobees/contact-enricher/internal/cascade")

// Config bounds the dispatcher.
type Config struct {
	TierSize     int
	FanOut       int
	MaxProviders int
}

// DefaultConfig is 3 providers per tier, 3 concurrent calls, 7 attempts per contact.
var DefaultConfig = Config{TierSize: 3, FanOut: 3, MaxProviders: 7}

// Observer is told which strategy each dispatch used.
type Observer interface {
	StrategySelected(strategy string)
}

type nopObserver struct{}

func (nopObserver) StrategySelected(string) {}

// Outcome is the result of one dispatch.
type Outcome struct {
	Strategy Strategy
	// Winner is valid only when Found is true.
	Winner   entity.ProviderResult
	Found    bool
	Attempts []entity.ProviderResult
	// Tiers is how many tiers were entered.
	Tiers int
	// APICost sums the vendor cost of every call that returned data,
	// including hits that lost the race.
	APICost float64
}

// Tried lists the providers actually called, in completion order.
func (o Outcome) Tried() []string {
	ids := make([]string, 0, len(o.Attempts))
	for _, a := range o.Attempts {
		ids = append(ids, a.Provider)
	}
	return ids
}

// Dispatcher runs provider tiers for a single contact.
type Dispatcher struct {
	registry *provider.Registry
	cfg      Config
	observer Observer
	log      *logrus.Entry
}

// Option customises a Dispatcher.
type Option func(*Dispatcher)

// WithObserver reports strategies to o.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		if o != nil {
			d.observer = o
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.log = logger.WithField("component", "cascade")
		}
	}
}

// NewDispatcher builds a dispatcher over the registry. Non-positive config
// values fall back to DefaultConfig.
func NewDispatcher(registry *provider.Registry, cfg Config, opts ...Option) *Dispatcher {
	if cfg.TierSize <= 0 {
		cfg.TierSize = DefaultConfig.TierSize
	}
	if cfg.FanOut <= 0 {
		cfg.FanOut = DefaultConfig.FanOut
	}
	if cfg.MaxProviders <= 0 {
		cfg.MaxProviders = DefaultConfig.MaxProviders
	}
	d := &Dispatcher{
		registry: registry,
		cfg:      cfg,
		observer: nopObserver{},
		log:      logrus.StandardLogger().WithField("component", "cascade"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch walks the tiers chosen by strategy until one provider returns a
// requested data type. Within a tier providers run concurrently, and the
// first qualifying result cancels the rest of the tier.
func (d *Dispatcher) Dispatch(ctx context.Context, contact entity.Contact, opts entity.EnrichOptions, strategy Strategy) Outcome {
	out := Outcome{Strategy: strategy}
	if !opts.Any() {
		return out
	}
	d.observer.StrategySelected(string(strategy))

	budget := d.cfg.MaxProviders
	for i, tier := range Plan(strategy, d.registry.Tiers(d.cfg.TierSize)) {
		if ctx.Err() != nil || budget <= 0 {
			break
		}
		eligible := d.eligible(tier, contact, opts)
		if len(eligible) == 0 {
			continue
		}
		if len(eligible) > budget {
			eligible = eligible[:budget]
		}
		out.Tiers++

		winner, attempts := d.runTier(ctx, i, eligible, contact, opts, strategy)
		budget -= len(attempts)
		for _, a := range attempts {
			if a.Failure == entity.FailureNone {
				out.APICost += a.Cost
			}
		}
		out.Attempts = append(out.Attempts, attempts...)
		if winner != nil {
			out.Winner = *winner
			out.Found = true
			return out
		}
		d.log.WithFields(logrus.Fields{"strategy": strategy, "tier": i, "providers": len(attempts)}).Debug("tier exhausted, escalating")
	}
	return out
}

func (d *Dispatcher) eligible(tier []provider.Provider, contact entity.Contact, opts entity.EnrichOptions) []provider.Provider {
	out := make([]provider.Provider, 0, len(tier))
	for _, p := range tier {
		if !p.Descriptor().Capability.Serves(opts) || !p.Available() || !p.Accepts(contact) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (d *Dispatcher) runTier(ctx context.Context, index int, tier []provider.Provider, contact entity.Contact, opts entity.EnrichOptions, strategy Strategy) (*entity.ProviderResult, []entity.ProviderResult) {
	ctx, span := tracer.Start(ctx, "cascade.tier", trace.WithAttributes(
		attribute.Int("tier.index", index),
		attribute.Int("tier.providers", len(tier)),
		attribute.String("cascade.strategy", string(strategy)),
	))
	defer span.End()

	tierCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		winner   *entity.ProviderResult
		attempts []entity.ProviderResult
	)
	g, gctx := errgroup.WithContext(tierCtx)
	g.SetLimit(d.cfg.FanOut)
	for _, p := range tier {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res := p.Enrich(gctx, contact)

			mu.Lock()
			defer mu.Unlock()
			attempts = append(attempts, res)
			if winner == nil && res.Failure == entity.FailureNone && res.Satisfies(opts) {
				w := res
				winner = &w
				cancel()
			}
			return nil
		})
	}
	_ = g.Wait()

	if winner != nil {
		span.SetAttributes(attribute.String("tier.winner", winner.Provider))
	}
	return winner, attempts
}
