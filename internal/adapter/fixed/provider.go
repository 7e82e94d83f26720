// Package fixed serves a statically configured coordinate, the lowest-effort
// fallback when no live source can answer.
package fixed

import (
	"context"
	"fmt"
	"strconv"

	"github.com/couchcryptid/whereami/internal/domain"
)

// ProviderName is the descriptor name of the fixed-coordinate provider.
const ProviderName = "fixed"

// DefaultWeight ranks the static fallback below every live source.
const DefaultWeight = 0.5

// Provider implements domain.Provider for a configured coordinate pair.
type Provider struct {
	desc     domain.Descriptor
	lat, lon float64
}

// New builds the provider. The coordinates are range-checked again at
// resolve time; construction only records them.
func New(lat, lon float64, weight float64) *Provider {
	if weight == 0 {
		weight = DefaultWeight
	}
	return &Provider{
		desc: domain.Descriptor{
			Name:         ProviderName,
			StaticWeight: weight,
			Settings: map[string]string{
				"lat": strconv.FormatFloat(lat, 'f', -1, 64),
				"lon": strconv.FormatFloat(lon, 'f', -1, 64),
			},
		},
		lat: lat,
		lon: lon,
	}
}

func (p *Provider) Descriptor() domain.Descriptor { return p.desc }

func (p *Provider) Available(_ context.Context) bool { return true }

// Resolve re-validates the configured ranges on every call and fails cleanly
// rather than clamping, so a config edit that slipped past load-time
// validation still cannot produce a fabricated coordinate.
func (p *Provider) Resolve(_ context.Context) (domain.LocationResult, error) {
	result, err := domain.NewSuccess(domain.MethodFixed, ProviderName, p.lat, p.lon)
	if err != nil {
		return domain.LocationResult{}, fmt.Errorf("fixed coordinate: %w", err)
	}
	return result, nil
}
