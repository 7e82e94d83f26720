// Package geocode resolves a configured free-text address to coordinates via
// an external geocoding service. Two backends are supported: the Mapbox
// Geocoding API over plain HTTP and the Google Geocoding API through the
// official client library.
package geocode

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/whereami/internal/domain"
)

// ProviderName is the descriptor name of the address-geocoding provider.
const ProviderName = "geocode"

// DefaultWeight ranks a geocoded address above IP lookups (the user typed it
// in deliberately) but below a live sensor fix.
const DefaultWeight = 0.7

// Result is a backend's answer for one address.
type Result struct {
	Lat              float64
	Lon              float64
	City             string
	Region           string
	Country          string
	FormattedAddress string
}

// Backend converts a free-text address to coordinates.
type Backend interface {
	Name() string
	Geocode(ctx context.Context, address string) (Result, error)
}

// Options configures the geocoding provider.
type Options struct {
	Address      string
	Backend      string // "mapbox" or "google"
	MapboxToken  string
	GoogleAPIKey string
	Timeout      time.Duration
	Weight       float64
}

// Provider implements domain.Provider for a fixed configured address.
type Provider struct {
	desc    domain.Descriptor
	address string
	backend Backend
	credErr error // non-nil when the backend credential is missing
	logger  *slog.Logger

	// The configured address does not move; memoize the first successful
	// geocode so repeated cycles stop spending API quota.
	mu   sync.Mutex
	memo *Result
}

// New builds the provider. A missing credential is recorded rather than
// rejected so the provider can report a precise "credential required"
// failure at resolve time, distinct from network errors.
func New(opts Options, logger *slog.Logger) (*Provider, error) {
	if opts.Address == "" {
		return nil, fmt.Errorf("geocode provider requires an address")
	}
	weight := opts.Weight
	if weight == 0 {
		weight = DefaultWeight
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	backendName := opts.Backend
	if backendName == "" {
		backendName = "mapbox"
	}

	p := &Provider{
		desc: domain.Descriptor{
			Name:         ProviderName,
			StaticWeight: weight,
			Settings: map[string]string{
				"address": opts.Address,
				"backend": backendName,
			},
		},
		address: opts.Address,
		logger:  logger,
	}

	switch opts.Backend {
	case "", "mapbox":
		if opts.MapboxToken == "" {
			p.credErr = fmt.Errorf("mapbox credential required: %w", domain.ErrUnavailable)
			return p, nil
		}
		p.backend = NewMapbox(opts.MapboxToken, timeout, logger)
	case "google":
		if opts.GoogleAPIKey == "" {
			p.credErr = fmt.Errorf("google credential required: %w", domain.ErrUnavailable)
			return p, nil
		}
		backend, err := NewGoogle(opts.GoogleAPIKey)
		if err != nil {
			return nil, fmt.Errorf("google geocoding client: %w", err)
		}
		p.backend = backend
	default:
		return nil, fmt.Errorf("unknown geocode backend %q", opts.Backend)
	}

	return p, nil
}

func (p *Provider) Descriptor() domain.Descriptor { return p.desc }

// Available is false without a credential; an unavailable provider is never
// probed, so the quota-free failure mode costs nothing per cycle.
func (p *Provider) Available(_ context.Context) bool {
	return p.credErr == nil
}

// Resolve geocodes the configured address, serving the memoized answer on
// every call after the first success.
func (p *Provider) Resolve(ctx context.Context) (domain.LocationResult, error) {
	if p.credErr != nil {
		return domain.LocationResult{}, p.credErr
	}

	p.mu.Lock()
	memo := p.memo
	p.mu.Unlock()

	if memo != nil {
		return p.toResult(*memo)
	}

	res, err := p.backend.Geocode(ctx, p.address)
	if err != nil {
		if ctx.Err() != nil {
			return domain.LocationResult{}, fmt.Errorf("%s: %w", p.backend.Name(), domain.ErrTimeout)
		}
		return domain.LocationResult{}, fmt.Errorf("%s: %v: %w", p.backend.Name(), err, domain.ErrTransport)
	}

	p.mu.Lock()
	p.memo = &res
	p.mu.Unlock()

	return p.toResult(res)
}

func (p *Provider) toResult(res Result) (domain.LocationResult, error) {
	result, err := domain.NewSuccess(domain.MethodGeocode, p.backend.Name(), res.Lat, res.Lon)
	if err != nil {
		return domain.LocationResult{}, err
	}
	return result.WithPlace(domain.Place{
		City:    res.City,
		Region:  res.Region,
		Country: res.Country,
	}), nil
}
