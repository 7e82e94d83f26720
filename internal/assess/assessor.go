// Package assess quantifies per-endpoint reliability of IP-geolocation
// services by probing them repeatedly and scoring success rate, latency, and
// cross-call coordinate consistency. It runs from operational tooling, never
// on the resolution hot path.
package assess

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/couchcryptid/whereami/internal/adapter/ipgeo"
	"github.com/couchcryptid/whereami/internal/domain"
)

// DefaultIterations is the probe count per endpoint.
const DefaultIterations = 3

// Score weights: success ratio 50%, latency 30%, consistency 20%.
const (
	successWeight     = 0.5
	latencyWeight     = 0.3
	consistencyWeight = 0.2
)

// Assessment is the measured reliability of one endpoint.
type Assessment struct {
	Endpoint        string    `json:"endpoint"`
	Attempts        int       `json:"attempts"`
	Successes       int       `json:"successes"`
	ResponseTimesMs []float64 `json:"response_times_ms"`

	// ReliabilityScore is in [0,100], higher is better.
	ReliabilityScore float64 `json:"reliability_score"`
}

// AvgResponseMs is the mean latency over successful probes, 0 with none.
func (a Assessment) AvgResponseMs() float64 {
	if len(a.ResponseTimesMs) == 0 {
		return 0
	}
	var sum float64
	for _, ms := range a.ResponseTimesMs {
		sum += ms
	}
	return sum / float64(len(a.ResponseTimesMs))
}

// Prober answers a single-endpoint location probe. *ipgeo.Provider satisfies
// it; tests substitute a stub.
type Prober interface {
	EndpointNames() []string
	LookupEndpoint(ctx context.Context, name string) (ipgeo.Fix, time.Duration, error)
}

// Assessor probes each endpoint a fixed number of times and derives scores.
type Assessor struct {
	prober     Prober
	iterations int
	logger     *slog.Logger
}

// New creates an Assessor. iterations <= 0 selects the default.
func New(prober Prober, iterations int, logger *slog.Logger) *Assessor {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return &Assessor{prober: prober, iterations: iterations, logger: logger}
}

// Run probes every endpoint and returns assessments sorted by descending
// score. Probe failures only lower the score; they never abort the run.
func (a *Assessor) Run(ctx context.Context) []Assessment {
	names := a.prober.EndpointNames()
	assessments := make([]Assessment, 0, len(names))

	for _, name := range names {
		assessments = append(assessments, a.assessEndpoint(ctx, name))
	}

	sort.SliceStable(assessments, func(i, j int) bool {
		return assessments[i].ReliabilityScore > assessments[j].ReliabilityScore
	})
	return assessments
}

func (a *Assessor) assessEndpoint(ctx context.Context, name string) Assessment {
	out := Assessment{Endpoint: name}

	type coord struct{ lat, lon float64 }
	var coords []coord

	for i := 0; i < a.iterations; i++ {
		if ctx.Err() != nil {
			break
		}
		out.Attempts++

		fix, latency, err := a.prober.LookupEndpoint(ctx, name)
		if err != nil {
			a.logger.Debug("reliability probe failed", "endpoint", name, "attempt", i+1, "error", err)
			continue
		}

		out.Successes++
		out.ResponseTimesMs = append(out.ResponseTimesMs, float64(latency)/float64(time.Millisecond))
		coords = append(coords, coord{fix.Lat, fix.Lon})
	}

	var maxDistanceKm float64
	for i := 0; i < len(coords); i++ {
		for j := i + 1; j < len(coords); j++ {
			d := domain.Distance(coords[i].lat, coords[i].lon, coords[j].lat, coords[j].lon)
			if d > maxDistanceKm {
				maxDistanceKm = d
			}
		}
	}

	out.ReliabilityScore = score(out, len(coords), maxDistanceKm)
	return out
}

// score combines the three signals into a 0-100 value rounded to one decimal.
func score(a Assessment, successCoords int, maxDistanceKm float64) float64 {
	if a.Attempts == 0 {
		return 0
	}

	successScore := float64(a.Successes) / float64(a.Attempts) * 100

	// Latency only counts measured (successful) responses: ~50ms scores ~99,
	// 5s and above scores 0. An endpoint with no successes earns nothing here.
	var latencyScore float64
	if len(a.ResponseTimesMs) > 0 {
		latencyScore = math.Max(0, 100-a.AvgResponseMs()/50)
	}

	// Consistency penalizes pairwise disagreement linearly past 10km. With
	// fewer than two successes there is no pair to compare, so no penalty.
	consistencyScore := 100.0
	if successCoords >= 2 && maxDistanceKm > 10 {
		consistencyScore = math.Max(0, 100-(maxDistanceKm-10))
	}

	total := successWeight*successScore + latencyWeight*latencyScore + consistencyWeight*consistencyScore
	return math.Round(total*10) / 10
}
