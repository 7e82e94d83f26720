// Package providers assembles the configured location providers in priority
// order. Both the daemon and the operational CLI build their provider set
// here so the two always agree on wiring.
package providers

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/whereami/internal/adapter/devloc"
	"github.com/couchcryptid/whereami/internal/adapter/fixed"
	"github.com/couchcryptid/whereami/internal/adapter/geocode"
	"github.com/couchcryptid/whereami/internal/adapter/ipgeo"
	"github.com/couchcryptid/whereami/internal/config"
	"github.com/couchcryptid/whereami/internal/domain"
)

// Set holds the assembled providers plus direct handles the assessor and
// network detector need.
type Set struct {
	// Ordered providers in resolution priority.
	Ordered []domain.Provider

	// IPGeo is non-nil when the IP provider is configured; it doubles as the
	// endpoint prober for reliability assessment and VPN detection.
	IPGeo *ipgeo.Provider
}

// Close releases provider-held resources.
func (s *Set) Close() error {
	if s.IPGeo != nil {
		return s.IPGeo.Close()
	}
	return nil
}

// Build constructs providers for every name in order. Names whose provider
// lacks its configuration (no fixed coordinates, no geocode address) are
// skipped with a log line rather than failing the whole set; an unknown name
// is a configuration error.
//
// settings carries persisted per-provider overrides from an optimization
// run, keyed by provider name: "endpoints" for ip, "accuracy" for devloc,
// "address" and "backend" for geocode. Unknown keys are ignored; nil applies
// the static configuration unchanged.
func Build(cfg *config.Config, order []string, settings map[string]map[string]string, logger *slog.Logger) (*Set, error) {
	set := &Set{}

	for _, name := range order {
		saved := domain.Descriptor{Name: name, Settings: settings[name]}

		switch name {
		case ipgeo.ProviderName:
			endpoints := cfg.IPGeoEndpoints
			if csv := saved.Setting("endpoints", ""); csv != "" {
				endpoints = splitCSV(csv)
			}
			p, err := ipgeo.New(ipgeo.Options{
				Endpoints:   endpoints,
				IPInfoToken: cfg.IPInfoToken,
				MMDBPath:    cfg.MMDBPath,
				Timeout:     cfg.IPTimeout,
			}, logger)
			if err != nil {
				return nil, fmt.Errorf("building ip provider: %w", err)
			}
			set.IPGeo = p
			set.Ordered = append(set.Ordered, p)

		case devloc.ProviderName:
			set.Ordered = append(set.Ordered, devloc.New(devloc.Options{
				Command:        cfg.DevlocCommand,
				Accuracy:       saved.Setting("accuracy", cfg.DevlocAccuracy),
				Timeout:        cfg.DevlocTimeout,
				ConsentGranted: cfg.ConsentGranted,
			}, logger))

		case fixed.ProviderName:
			if !cfg.FixedSet {
				logger.Info("fixed provider not configured, skipped")
				continue
			}
			set.Ordered = append(set.Ordered, fixed.New(cfg.FixedLat, cfg.FixedLon, 0))

		case geocode.ProviderName:
			address := saved.Setting("address", cfg.GeocodeAddress)
			if address == "" {
				logger.Info("geocode provider not configured, skipped")
				continue
			}
			p, err := geocode.New(geocode.Options{
				Address:      address,
				Backend:      saved.Setting("backend", cfg.GeocodeBackend),
				MapboxToken:  cfg.MapboxToken,
				GoogleAPIKey: cfg.GoogleAPIKey,
				Timeout:      cfg.GeocodeTimeout,
			}, logger)
			if err != nil {
				return nil, fmt.Errorf("building geocode provider: %w", err)
			}
			set.Ordered = append(set.Ordered, p)

		default:
			return nil, fmt.Errorf("unknown provider %q in order", name)
		}
	}

	if len(set.Ordered) == 0 {
		return nil, fmt.Errorf("no providers assembled from order %v", order)
	}
	return set, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
