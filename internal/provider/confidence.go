package provider

import (
	"math"
	"strings"
)

// Vendors report confidence on different scales; everything is mapped to 0..100
// before results are compared. Each source picks the helper matching the scale
// its vendor documents; the value itself is never used to guess the scale.

// percent clamps a score reported on a 0..100 scale.
func percent(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}

// probability maps a score reported on a 0..1 scale to 0..100.
func probability(v float64) float64 {
	return percent(math.Round(v*1000) / 10)
}

// bucket maps a qualitative label to a score, falling back when unknown.
func bucket(label string, table map[string]float64, fallback float64) float64 {
	if score, ok := table[strings.ToLower(strings.TrimSpace(label))]; ok {
		return score
	}
	return fallback
}
