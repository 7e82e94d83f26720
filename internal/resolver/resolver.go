// Package resolver combines the configured location providers into a single
// cached resolution pipeline. One Resolver serves both the scheduled polling
// loop and on-demand refresh requests.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/whereami/internal/domain"
	"github.com/couchcryptid/whereami/internal/observability"
)

// Publisher forwards resolution outcomes to an external sink. Nil disables
// publishing.
type Publisher interface {
	Publish(ctx context.Context, result domain.LocationResult) error
}

// Resolver is the single entry point for location resolution. Cycles are
// serialized: a refresh arriving while a cycle is in flight waits for it and
// then reuses its freshly cached result instead of starting another.
type Resolver struct {
	selector  *Selector
	cache     *Cache
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics

	statusPath string

	// cycleMu serializes resolution cycles against the shared cache.
	cycleMu sync.Mutex
	ready   atomic.Bool
}

// Options carries the optional collaborators.
type Options struct {
	Publisher  Publisher
	StatusPath string
}

func New(selector *Selector, cache *Cache, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Resolver {
	return &Resolver{
		selector:   selector,
		cache:      cache,
		publisher:  opts.Publisher,
		logger:     logger,
		metrics:    metrics,
		statusPath: opts.StatusPath,
	}
}

// CheckReadiness returns nil once at least one resolution cycle has
// completed, successfully or not.
func (r *Resolver) CheckReadiness(_ context.Context) error {
	if !r.ready.Load() {
		return errors.New("no resolution cycle has completed yet")
	}
	return nil
}

// Resolve returns the current location. useCache allows serving a fresh
// cached result without touching any provider; forceRefresh bypasses the
// cache read but still populates it.
func (r *Resolver) Resolve(ctx context.Context, useCache, forceRefresh bool) (domain.LocationResult, error) {
	if useCache && !forceRefresh {
		if res, ok := r.cache.Get(); ok {
			r.metrics.CacheLookups.WithLabelValues("hit").Inc()
			return res, nil
		}
		r.metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	r.cycleMu.Lock()
	defer r.cycleMu.Unlock()

	// A concurrent cycle may have already produced a fresh answer while we
	// waited for the lock.
	if useCache && !forceRefresh {
		if res, ok := r.cache.Get(); ok {
			return res, nil
		}
	}

	return r.runCycle(ctx)
}

// ClearCache empties the result cache. The next Resolve triggers a full
// cycle.
func (r *Resolver) ClearCache() {
	r.cache.Clear()
	r.logger.Info("result cache cleared")
}

// runCycle executes one full resolution, updates the cache on success, and
// fans out to the status file and telemetry sink. Caller holds cycleMu.
func (r *Resolver) runCycle(ctx context.Context) (domain.LocationResult, error) {
	start := time.Now()
	res, err := r.selector.Resolve(ctx)
	r.metrics.CycleDuration.Observe(time.Since(start).Seconds())
	defer r.ready.Store(true)

	if err != nil {
		r.metrics.ResolveCycles.WithLabelValues("failure").Inc()
		r.logger.Error("resolution cycle failed", "error", err, "consulted", res.Consulted)
		r.sideEffects(ctx, res)
		return res, err
	}

	r.metrics.ResolveCycles.WithLabelValues("success").Inc()
	r.metrics.LastFixTime.Set(float64(res.ObservedAt.Unix()))
	r.logger.Info("location resolved",
		"method", res.Method, "source", res.Source,
		"lat", res.Lat, "lon", res.Lon,
		"weight", res.Weight, "consulted", res.Consulted,
		"duration", time.Since(start))

	r.cache.Put(res)
	r.sideEffects(ctx, res)
	return res, nil
}

// sideEffects writes the status file and publishes telemetry. Both are
// best-effort; neither failure affects the returned result.
func (r *Resolver) sideEffects(ctx context.Context, res domain.LocationResult) {
	if r.statusPath != "" {
		if err := WriteStatusFile(r.statusPath, res); err != nil {
			r.logger.Warn("writing status file failed", "path", r.statusPath, "error", err)
		}
	}

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, res); err != nil {
			r.metrics.TelemetryErrors.Inc()
			r.logger.Warn("publishing telemetry failed", "error", err)
		} else {
			r.metrics.TelemetryPublished.Inc()
		}
	}
}
