package domain

import (
	"context"
	"fmt"
)

// Descriptor is the static configuration of one provider. Descriptors are
// validated once at load and immutable for the duration of a resolution cycle.
type Descriptor struct {
	Name            string            `json:"name"`
	RequiresConsent bool              `json:"requires_consent"`
	StaticWeight    float64           `json:"static_weight"`
	Settings        map[string]string `json:"settings,omitempty"`
}

// Validate fails fast on a descriptor that could never resolve.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("provider descriptor without a name")
	}
	if d.StaticWeight <= 0 || d.StaticWeight > 1 {
		return fmt.Errorf("provider %q: static weight %g outside (0,1]", d.Name, d.StaticWeight)
	}
	return nil
}

// Setting returns a settings value, or def when the key is unset.
func (d Descriptor) Setting(key, def string) string {
	if v, ok := d.Settings[key]; ok && v != "" {
		return v
	}
	return def
}

// Provider is one strategy for obtaining the machine's coordinates.
type Provider interface {
	// Descriptor returns the provider's static configuration.
	Descriptor() Descriptor

	// Available reports whether the provider's prerequisites are met. It
	// must be cheap and return within the caller's context deadline.
	Available(ctx context.Context) bool

	// Resolve attempts to determine the current location. It must honor ctx
	// cancellation and never block past its deadline; failures are reported
	// as errors classified by the package sentinels.
	Resolve(ctx context.Context) (LocationResult, error)
}
