package provider

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/octobees/contact-enricher/internal/config"
	"github.com/octobees/contact-enricher/internal/entity"
	"github.com/octobees/contact-enricher/internal/ratelimit"
)

type constructor func(desc Descriptor, apiKey string, client *jsonClient) Source

var constructors = map[string]constructor{
	"icypeas":     newIcypeas,
	"dropcontact": newDropcontact,
	"hunter":      newHunter,
	"apollo":      newApollo,
	"findymail":   newFindymail,
	"kaspr":       newKaspr,
	"datagma":     newDatagma,
}

var acceptors = map[string]func(entity.Contact) bool{
	"kaspr": kasprAccepts,
}

// BuildOptions carries the shared plumbing handed to every adapter.
type BuildOptions struct {
	Client           *http.Client
	Cooldown         time.Duration
	FailureThreshold int
	Retries          int
	RetryBackoff     time.Duration
	Observer         Observer
	Logger           *logrus.Logger
}

// ParseCapability validates a capability name.
func ParseCapability(raw string) (entity.Capability, error) {
	switch c := entity.Capability(strings.ToLower(strings.TrimSpace(raw))); c {
	case entity.CapabilityEmail, entity.CapabilityPhone, entity.CapabilityBoth:
		return c, nil
	case "":
		return entity.CapabilityEmail, nil
	default:
		return "", fmt.Errorf("unknown capability %q", raw)
	}
}

// Build creates adapters for every enabled provider that has credentials.
func Build(cfgs []config.ProviderConfig, opts BuildOptions) (*Registry, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 5 * time.Minute
	}
	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	var providers []Provider
	for _, cfg := range cfgs {
		newSource, ok := constructors[cfg.ID]
		if !ok {
			return nil, fmt.Errorf("unknown provider %q", cfg.ID)
		}
		log := logger.WithField("provider", cfg.ID)
		if cfg.Disabled {
			log.Info("provider disabled by configuration")
			continue
		}
		if cfg.APIKey == "" {
			log.Warnf("provider skipped: %s is not set", cfg.KeyEnv())
			continue
		}
		capability, err := ParseCapability(cfg.Capability)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", cfg.ID, err)
		}

		desc := Descriptor{
			ID:           cfg.ID,
			BaseURL:      cfg.BaseURL,
			Cost:         cfg.Cost,
			RateLimit:    cfg.RateLimit,
			Capability:   capability,
			PollSchedule: cfg.PollSchedule,
			PollTimeout:  cfg.PollTimeout,
		}
		httpClient := opts.Client
		if httpClient == nil || cfg.Timeout > 0 {
			timeout := cfg.Timeout
			if timeout <= 0 {
				timeout = 15 * time.Second
			}
			httpClient = &http.Client{Timeout: timeout}
		}
		limiter := ratelimit.New(cfg.RateLimit)
		gate := ratelimit.NewGate(opts.Cooldown, opts.FailureThreshold)
		id := cfg.ID
		client := newJSONClient(httpClient, cfg.BaseURL, opts.Retries, opts.RetryBackoff).
			throttledBy(limiter, gate, func(d time.Duration) { observer.RateLimitWait(id, d) })

		adapterOpts := []AdapterOption{WithObserver(observer), WithLogger(logger), withSelfThrottledSource()}
		if accept, ok := acceptors[cfg.ID]; ok {
			adapterOpts = append(adapterOpts, WithAcceptor(accept))
		}
		providers = append(providers, NewAdapter(
			desc,
			newSource(desc, cfg.APIKey, client),
			limiter,
			gate,
			adapterOpts...,
		))
		log.WithFields(logrus.Fields{"cost": desc.Cost, "rate_limit": desc.RateLimit, "capability": desc.Capability}).Info("provider registered")
	}
	return NewRegistry(providers...)
}
