package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/whereami/internal/domain"
	"github.com/couchcryptid/whereami/internal/observability"
)

// probeOutcome is one provider's contribution to a resolution cycle.
type probeOutcome struct {
	index      int
	descriptor domain.Descriptor
	result     domain.LocationResult
	err        error
	skipped    bool
}

// Selector runs the configured providers and picks the best answer. In
// hybrid mode all available providers are probed concurrently and the
// highest-weighted success wins, with ties broken by priority order. With
// hybrid off, providers are tried sequentially and the first success is
// returned untouched.
type Selector struct {
	providers []domain.Provider
	hybrid    bool

	// minShortCircuitWeight, when positive, lets a hybrid cycle finish early
	// once a success at or above this weight arrives. Zero waits for all.
	minShortCircuitWeight float64

	logger  *slog.Logger
	metrics *observability.Metrics
}

func NewSelector(providers []domain.Provider, hybrid bool, minShortCircuitWeight float64, logger *slog.Logger, metrics *observability.Metrics) *Selector {
	return &Selector{
		providers:             providers,
		hybrid:                hybrid,
		minShortCircuitWeight: minShortCircuitWeight,
		logger:                logger,
		metrics:               metrics,
	}
}

// Resolve runs one resolution cycle. Provider failures are logged and
// swallowed; only total exhaustion returns an error, alongside a failure
// result the caller can still serialize.
func (s *Selector) Resolve(ctx context.Context) (domain.LocationResult, error) {
	if len(s.providers) == 0 {
		return s.exhausted(nil)
	}
	if s.hybrid {
		return s.resolveHybrid(ctx)
	}
	return s.resolveSequential(ctx)
}

func (s *Selector) resolveSequential(ctx context.Context) (domain.LocationResult, error) {
	var consulted []string
	for i, p := range s.providers {
		out := s.probe(ctx, i, p)
		if out.skipped {
			continue
		}
		consulted = append(consulted, out.descriptor.Name)
		if out.err != nil {
			continue
		}
		res := out.result
		res.Weight = out.descriptor.StaticWeight
		res.Consulted = consulted
		return res, nil
	}
	return s.exhausted(consulted)
}

func (s *Selector) resolveHybrid(ctx context.Context) (domain.LocationResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcomes := make(chan probeOutcome, len(s.providers))
	for i, p := range s.providers {
		go func(i int, p domain.Provider) {
			outcomes <- s.probe(ctx, i, p)
		}(i, p)
	}

	collected := make([]probeOutcome, 0, len(s.providers))
	for range s.providers {
		out := <-outcomes
		collected = append(collected, out)

		if s.minShortCircuitWeight > 0 && out.err == nil && !out.skipped &&
			out.descriptor.StaticWeight >= s.minShortCircuitWeight {
			cancel()
			break
		}
	}

	return s.selectBest(collected)
}

// selectBest picks the highest-weighted success; among equal weights the
// provider earliest in priority order wins, regardless of probe completion
// order.
func (s *Selector) selectBest(collected []probeOutcome) (domain.LocationResult, error) {
	var (
		best      *probeOutcome
		consulted []string
	)

	// Consulted reflects priority order, not arrival order.
	byIndex := make(map[int]probeOutcome, len(collected))
	for _, out := range collected {
		byIndex[out.index] = out
	}
	for i := range s.providers {
		out, ok := byIndex[i]
		if !ok || out.skipped {
			continue
		}
		consulted = append(consulted, out.descriptor.Name)
		if out.err != nil {
			continue
		}
		if best == nil || out.descriptor.StaticWeight > best.descriptor.StaticWeight {
			o := out
			best = &o
		}
	}

	if best == nil {
		return s.exhausted(consulted)
	}

	res := best.result
	res.Method = domain.MethodHybrid
	res.Weight = best.descriptor.StaticWeight
	res.Consulted = consulted
	return res, nil
}

// probe checks availability and resolves, recording per-provider metrics.
func (s *Selector) probe(ctx context.Context, index int, p domain.Provider) probeOutcome {
	desc := p.Descriptor()
	out := probeOutcome{index: index, descriptor: desc}

	if !p.Available(ctx) {
		s.logger.Debug("provider unavailable, skipped", "provider", desc.Name)
		s.metrics.ProviderProbes.WithLabelValues(desc.Name, "skipped").Inc()
		out.skipped = true
		return out
	}

	start := time.Now()
	res, err := p.Resolve(ctx)
	s.metrics.ProbeDuration.WithLabelValues(desc.Name).Observe(time.Since(start).Seconds())

	if err != nil {
		s.logger.Warn("provider resolve failed", "provider", desc.Name, "error", err)
		s.metrics.ProviderProbes.WithLabelValues(desc.Name, "failure").Inc()
		out.err = err
		return out
	}

	s.metrics.ProviderProbes.WithLabelValues(desc.Name, "success").Inc()
	out.result = res
	return out
}

func (s *Selector) exhausted(consulted []string) (domain.LocationResult, error) {
	res := domain.NewFailure(domain.MethodHybrid, "selector", domain.ReasonExhausted)
	res.Consulted = consulted
	return res, fmt.Errorf("%w: %d providers configured", domain.ErrAllProvidersExhausted, len(s.providers))
}
