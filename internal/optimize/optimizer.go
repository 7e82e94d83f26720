// Package optimize derives a ranked provider configuration from reliability
// measurements, network conditions, and user preferences. Optimization runs
// on demand from operational tooling; the resolver consumes the persisted
// output and never recomputes it per cycle.
package optimize

import (
	"sort"
	"time"

	"github.com/couchcryptid/whereami/internal/domain"
	"github.com/couchcryptid/whereami/internal/netcheck"
)

// Candidate is one provider as seen at optimization time.
type Candidate struct {
	Descriptor domain.Descriptor

	// Available reports the provider's own availability probe.
	Available bool

	// Succeeded is the last observed resolution outcome, used to rank
	// providers that have no reliability assessment.
	Succeeded bool

	// Assessed marks providers with measured reliability data.
	Assessed         bool
	ReliabilityScore float64
	AvgResponseMs    float64
}

// Options are the caller-supplied optimization inputs.
type Options struct {
	// Preferred providers move to the front of the ranking, in the relative
	// order the ranking gave them.
	Preferred []string

	ConsentGranted bool

	// MaxAvgResponseMs drops measured providers slower than this ceiling.
	// Zero disables the filter.
	MaxAvgResponseMs float64
}

// RankedConfig is the optimizer's persisted output.
type RankedConfig struct {
	ProviderOrder []string                     `json:"provider_order"`
	Settings      map[string]map[string]string `json:"settings"`
	HybridEnabled bool                         `json:"hybrid_enabled"`
	Condition     netcheck.Condition           `json:"condition"`
	GeneratedAt   time.Time                    `json:"generated_at"`
}

// Optimize applies the ranking rules in a fixed order and returns a fully
// materialized configuration. It is pure apart from reading the clock.
func Optimize(candidates []Candidate, condition netcheck.Condition, opts Options) RankedConfig {
	remaining := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Descriptor.RequiresConsent && !opts.ConsentGranted {
			continue
		}
		if opts.MaxAvgResponseMs > 0 && c.AvgResponseMs > opts.MaxAvgResponseMs {
			continue
		}
		remaining = append(remaining, c)
	}

	// Assessed providers rank by measured score; unassessed ones follow,
	// last-known-good before last-known-bad. Ties keep input order.
	sort.SliceStable(remaining, func(i, j int) bool {
		a, b := remaining[i], remaining[j]
		if a.Assessed != b.Assessed {
			return a.Assessed
		}
		if a.Assessed {
			return a.ReliabilityScore > b.ReliabilityScore
		}
		return a.Succeeded && !b.Succeeded
	})

	remaining = frontload(remaining, func(c Candidate) bool {
		return containsName(opts.Preferred, c.Descriptor.Name)
	})

	if condition.IsMobile {
		remaining = frontload(remaining, func(c Candidate) bool {
			return c.Descriptor.Name == string(domain.MethodDevice) && c.Available
		})
	}

	// A VPN makes IP geolocation report the exit node, so it goes last.
	// It stays in the list as a final fallback.
	if condition.IsVPN {
		remaining = backload(remaining, func(c Candidate) bool {
			return c.Descriptor.Name == string(domain.MethodIP)
		})
	}

	cfg := RankedConfig{
		Settings:      make(map[string]map[string]string, len(remaining)),
		HybridEnabled: len(remaining) >= 2,
		Condition:     condition,
		GeneratedAt:   domain.Clock().Now().UTC(),
	}
	for _, c := range remaining {
		cfg.ProviderOrder = append(cfg.ProviderOrder, c.Descriptor.Name)
		if len(c.Descriptor.Settings) > 0 {
			cfg.Settings[c.Descriptor.Name] = copySettings(c.Descriptor.Settings)
		}
	}
	return cfg
}

// frontload moves matching candidates to the front, preserving relative order
// within both partitions.
func frontload(cs []Candidate, match func(Candidate) bool) []Candidate {
	front := make([]Candidate, 0, len(cs))
	back := make([]Candidate, 0, len(cs))
	for _, c := range cs {
		if match(c) {
			front = append(front, c)
		} else {
			back = append(back, c)
		}
	}
	return append(front, back...)
}

func backload(cs []Candidate, match func(Candidate) bool) []Candidate {
	return frontload(cs, func(c Candidate) bool { return !match(c) })
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func copySettings(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
