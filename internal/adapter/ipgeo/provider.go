// Package ipgeo resolves the machine's location from its public IP address
// by querying a fixed fallback chain of geolocation endpoints, optionally
// backed by a local MaxMind database as a last resort.
package ipgeo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/whereami/internal/domain"
)

// ProviderName is the descriptor name of the IP-geolocation provider.
const ProviderName = "ip"

// DefaultWeight ranks IP geolocation below on-device sources but above a
// configured fallback coordinate.
const DefaultWeight = 0.6

// Options configures the IP provider.
type Options struct {
	Endpoints   []string // ordered endpoint names; empty selects the full chain
	IPInfoToken string
	MMDBPath    string // optional GeoLite2-City database for offline fallback
	Timeout     time.Duration
	Weight      float64
}

// Provider implements domain.Provider over public IP-geolocation services.
type Provider struct {
	desc       domain.Descriptor
	endpoints  []Endpoint
	httpClient *http.Client
	local      *localDB
	logger     *slog.Logger
}

// New builds the provider, validating the endpoint chain up front.
func New(opts Options, logger *slog.Logger) (*Provider, error) {
	names := opts.Endpoints
	if len(names) == 0 {
		names = []string{"ip-api", "ipwho.is", "ipapi.co"}
	}
	endpoints, err := defaultEndpoints(names, opts.IPInfoToken)
	if err != nil {
		return nil, err
	}

	weight := opts.Weight
	if weight == 0 {
		weight = DefaultWeight
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	p := &Provider{
		desc: domain.Descriptor{
			Name:         ProviderName,
			StaticWeight: weight,
			Settings: map[string]string{
				"endpoints": strings.Join(names, ","),
			},
		},
		endpoints:  endpoints,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}

	if opts.MMDBPath != "" {
		p.local = openLocalDB(opts.MMDBPath, logger)
	}

	return p, nil
}

func (p *Provider) Descriptor() domain.Descriptor { return p.desc }

// Available reports true while at least one endpoint is configured. No
// network traffic: reachability is discovered during Resolve.
func (p *Provider) Available(_ context.Context) bool {
	return len(p.endpoints) > 0 || p.local != nil
}

// Resolve tries each endpoint in order and returns the first answer that
// parses. All endpoints failing yields a combined error; a default
// coordinate is never invented.
func (p *Provider) Resolve(ctx context.Context) (domain.LocationResult, error) {
	var failures []string

	for _, ep := range p.endpoints {
		fix, _, err := p.lookup(ctx, ep)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return domain.LocationResult{}, fmt.Errorf("%s: %w", ep.Name, domain.ErrTimeout)
			}
			if ctx.Err() != nil {
				return domain.LocationResult{}, ctx.Err()
			}
			p.logger.Debug("ip endpoint failed", "endpoint", ep.Name, "error", err)
			failures = append(failures, fmt.Sprintf("%s: %v", ep.Name, err))
			continue
		}
		return p.toResult(ep.Name, fix)
	}

	if p.local != nil {
		fix, err := p.resolveLocal(ctx)
		if err == nil {
			return p.toResult("local-mmdb", fix)
		}
		failures = append(failures, fmt.Sprintf("local-mmdb: %v", err))
	}

	return domain.LocationResult{}, fmt.Errorf("%w: %s", domain.ErrTransport, strings.Join(failures, "; "))
}

// LookupEndpoint queries a single endpoint by name, returning the fix and
// observed latency. Used by reliability assessment and network-condition
// detection, which need per-endpoint answers rather than the fallback chain.
func (p *Provider) LookupEndpoint(ctx context.Context, name string) (Fix, time.Duration, error) {
	for _, ep := range p.endpoints {
		if ep.Name == name {
			return p.lookup(ctx, ep)
		}
	}
	return Fix{}, 0, fmt.Errorf("endpoint %q not configured", name)
}

// EndpointNames lists the configured endpoint chain in order.
func (p *Provider) EndpointNames() []string {
	names := make([]string, len(p.endpoints))
	for i, ep := range p.endpoints {
		names[i] = ep.Name
	}
	return names
}

// Close releases the local database, when one is open.
func (p *Provider) Close() error {
	if p.local != nil {
		return p.local.Close()
	}
	return nil
}

func (p *Provider) lookup(ctx context.Context, ep Endpoint) (Fix, time.Duration, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.URL, nil)
	if err != nil {
		return Fix{}, 0, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return Fix{}, time.Since(start), err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Fix{}, time.Since(start), fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Fix{}, time.Since(start), err
	}

	fix, err := ep.parse(body)
	if err != nil {
		return Fix{}, time.Since(start), err
	}
	if err := domain.ValidateCoordinates(fix.Lat, fix.Lon); err != nil {
		return Fix{}, time.Since(start), err
	}

	return fix, time.Since(start), nil
}

func (p *Provider) toResult(source string, fix Fix) (domain.LocationResult, error) {
	result, err := domain.NewSuccess(domain.MethodIP, source, fix.Lat, fix.Lon)
	if err != nil {
		return domain.LocationResult{}, err
	}
	return result.WithPlace(domain.Place{
		City:    fix.City,
		Region:  fix.Region,
		Country: fix.Country,
	}), nil
}

// resolveLocal discovers the public IP over a minimal plain-text endpoint and
// answers from the local database. Only reached when every remote
// geolocation endpoint has failed.
func (p *Provider) resolveLocal(ctx context.Context) (Fix, error) {
	if p.local == nil {
		return Fix{}, errors.New("no local database configured")
	}
	ip, err := p.publicIP(ctx)
	if err != nil {
		return Fix{}, fmt.Errorf("public IP discovery: %w", err)
	}
	return p.local.Lookup(ip)
}

func (p *Provider) publicIP(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.ipify.org", nil)
	if err != nil {
		return "", err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(body)), nil
}
