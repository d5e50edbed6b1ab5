// Package cascade decides which provider tiers to try for a contact and runs
// them, cheapest first unless the batch is going badly.
package cascade

import (
	"slices"

	"github.com/octobees/contact-enricher/internal/provider"
)

// Strategy selects the tiers a contact is dispatched to.
type Strategy string

const (
	StrategyCostOptimized Strategy = "cost_optimized"
	StrategyBalanced      Strategy = "balanced"
	StrategyFullCascade   Strategy = "full_cascade"
	StrategyRecovery      Strategy = "recovery"
)

// Thresholds are success-rate breakpoints in percent.
type Thresholds struct {
	MinSample     int
	CostOptimized float64
	Balanced      float64
	FullCascade   float64
}

// DefaultThresholds switches at 85, 70 and 50 percent after 5 contacts.
var DefaultThresholds = Thresholds{MinSample: 5, CostOptimized: 85, Balanced: 70, FullCascade: 50}

// SelectStrategy maps a batch success rate to a strategy. Below MinSample
// processed contacts there is no signal yet and every tier is tried.
func SelectStrategy(processed, found int, th Thresholds) Strategy {
	if processed < th.MinSample || processed <= 0 {
		return StrategyFullCascade
	}
	rate := float64(found) / float64(processed) * 100
	switch {
	case rate >= th.CostOptimized:
		return StrategyCostOptimized
	case rate >= th.Balanced:
		return StrategyBalanced
	case rate >= th.FullCascade:
		return StrategyFullCascade
	default:
		return StrategyRecovery
	}
}

// Plan orders the cost tiers for a strategy. Recovery walks the tiers most
// expensive first, and each tier most expensive first too.
func Plan(strategy Strategy, tiers [][]provider.Provider) [][]provider.Provider {
	switch strategy {
	case StrategyCostOptimized:
		return tiers[:min(1, len(tiers))]
	case StrategyBalanced:
		return tiers[:min(2, len(tiers))]
	case StrategyRecovery:
		out := make([][]provider.Provider, 0, len(tiers))
		for i := len(tiers) - 1; i >= 0; i-- {
			tier := slices.Clone(tiers[i])
			slices.Reverse(tier)
			out = append(out, tier)
		}
		return out
	default:
		return tiers
	}
}
