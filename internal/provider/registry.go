package provider

import (
	"fmt"
	"sort"
)

// DefaultTierCount is the number of cost tiers: cheap, mid and the remainder.
const DefaultTierCount = 3

// Registry indexes providers by id and keeps them ordered by ascending cost.
type Registry struct {
	byID    map[string]Provider
	ordered []Provider
}

// NewRegistry builds a registry; ids must be unique.
func NewRegistry(providers ...Provider) (*Registry, error) {
	r := &Registry{byID: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		id := p.Descriptor().ID
		if id == "" {
			return nil, fmt.Errorf("provider without id")
		}
		if _, dup := r.byID[id]; dup {
			return nil, fmt.Errorf("duplicate provider id %q", id)
		}
		r.byID[id] = p
		r.ordered = append(r.ordered, p)
	}
	sort.SliceStable(r.ordered, func(i, j int) bool {
		return r.ordered[i].Descriptor().Cost < r.ordered[j].Descriptor().Cost
	})
	return r, nil
}

// Get returns the provider registered under id.
func (r *Registry) Get(id string) (Provider, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// Len returns the number of registered providers.
func (r *Registry) Len() int { return len(r.ordered) }

// Ordered returns the providers cheapest first.
func (r *Registry) Ordered() []Provider {
	out := make([]Provider, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Tiers partitions the cost-ordered providers into DefaultTierCount tiers of
// size providers each, the last tier taking the remainder. Empty tiers are omitted.
func (r *Registry) Tiers(size int) [][]Provider {
	return Partition(r.ordered, size)
}

// Partition splits providers into at most DefaultTierCount tiers.
func Partition(providers []Provider, size int) [][]Provider {
	if len(providers) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(providers)
	}
	var tiers [][]Provider
	rest := providers
	for len(rest) > 0 {
		n := size
		if len(tiers) == DefaultTierCount-1 || n > len(rest) {
			n = len(rest)
		}
		tier := make([]Provider, n)
		copy(tier, rest[:n])
		tiers = append(tiers, tier)
		rest = rest[n:]
	}
	return tiers
}
