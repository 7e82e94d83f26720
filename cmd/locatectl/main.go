// Command locatectl is the operational companion to whereamid. It runs the
// paths that stay off the daemon's polling loop: one-shot resolution,
// endpoint reliability assessment, and configuration optimization.
//
// Usage:
//
//	locatectl -mode resolve
//	locatectl -mode assess -iterations 5
//	locatectl -mode optimize -prefer devloc -max-ms 2000
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/whereami/internal/assess"
	"github.com/couchcryptid/whereami/internal/config"
	"github.com/couchcryptid/whereami/internal/domain"
	"github.com/couchcryptid/whereami/internal/netcheck"
	"github.com/couchcryptid/whereami/internal/observability"
	"github.com/couchcryptid/whereami/internal/optimize"
	"github.com/couchcryptid/whereami/internal/providers"
	"github.com/couchcryptid/whereami/internal/resolver"
	"github.com/couchcryptid/whereami/internal/store"
)

// allProviders is every provider name the optimizer may consider, in default
// priority order. Unconfigured ones are skipped at build time.
var allProviders = []string{"devloc", "geocode", "ip", "fixed"}

func main() {
	mode := flag.String("mode", "resolve", "resolve | assess | optimize")
	iterations := flag.Int("iterations", assess.DefaultIterations, "probes per endpoint (assess)")
	prefer := flag.String("prefer", "", "comma-separated providers to move to the front (optimize)")
	maxMs := flag.Float64("max-ms", 0, "drop providers with a slower average response, in ms (optimize)")
	save := flag.Bool("save", true, "persist the optimized configuration (optimize)")
	jsonOut := flag.Bool("json", false, "emit JSON instead of a table")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(1)
	}

	logger := observability.NewLogger("warn", "text")
	metrics := observability.NewMetricsForTesting()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var code int
	switch *mode {
	case "resolve":
		code = runResolve(ctx, cfg, logger, metrics, *jsonOut)
	case "assess":
		code = runAssess(ctx, cfg, logger, *iterations, *jsonOut)
	case "optimize":
		code = runOptimize(ctx, cfg, logger, optimize.Options{
			Preferred:        splitList(*prefer),
			ConsentGranted:   cfg.ConsentGranted,
			MaxAvgResponseMs: *maxMs,
		}, *iterations, *save, *jsonOut)
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", *mode)
		code = 2
	}
	os.Exit(code)
}

func runResolve(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, jsonOut bool) int {
	set, err := providers.Build(cfg, cfg.ProviderOrder, nil, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to assemble providers:", err)
		return 1
	}
	defer set.Close()

	sel := resolver.NewSelector(set.Ordered, cfg.HybridEnabled, cfg.MinShortCircuitWeight, logger, metrics)
	res, err := sel.Resolve(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "resolution failed:", err)
		printResult(res, jsonOut)
		return 1
	}
	printResult(res, jsonOut)
	return 0
}

func runAssess(ctx context.Context, cfg *config.Config, logger *slog.Logger, iterations int, jsonOut bool) int {
	set, err := providers.Build(cfg, []string{"ip"}, nil, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to assemble ip provider:", err)
		return 1
	}
	defer set.Close()

	assessments := assess.New(set.IPGeo, iterations, logger).Run(ctx)
	if jsonOut {
		printJSON(assessments)
		return 0
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENDPOINT\tSCORE\tSUCCESS\tAVG MS")
	for _, a := range assessments {
		fmt.Fprintf(w, "%s\t%.1f\t%d/%d\t%.0f\n",
			a.Endpoint, a.ReliabilityScore, a.Successes, a.Attempts, a.AvgResponseMs())
	}
	w.Flush()
	return 0
}

func runOptimize(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts optimize.Options, iterations int, save, jsonOut bool) int {
	set, err := providers.Build(cfg, allProviders, nil, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to assemble providers:", err)
		return 1
	}
	defer set.Close()

	cond := netcheck.New(set.IPGeo, logger).Detect(ctx)
	candidates := gatherCandidates(ctx, set, logger, iterations)

	ranked := optimize.Optimize(candidates, cond, opts)

	if save {
		if err := persistRanked(cfg.StorePath, ranked); err != nil {
			fmt.Fprintln(os.Stderr, "failed to persist ranked config:", err)
			return 1
		}
	}

	if jsonOut {
		printJSON(ranked)
		return 0
	}

	fmt.Printf("network: %s (mobile=%v vpn=%v reliable=%v)\n",
		cond.ConnectionType, cond.IsMobile, cond.IsVPN, cond.IsReliable)
	fmt.Printf("provider order: %s\n", strings.Join(ranked.ProviderOrder, ", "))
	fmt.Printf("hybrid: %v\n", ranked.HybridEnabled)
	if save {
		fmt.Printf("saved to %s\n", cfg.StorePath)
	}
	return 0
}

// gatherCandidates measures each assembled provider. The IP provider gets a
// full endpoint assessment; the others get a single live probe so unassessed
// providers still rank by observed success.
func gatherCandidates(ctx context.Context, set *providers.Set, logger *slog.Logger, iterations int) []optimize.Candidate {
	var ipAssessments []assess.Assessment
	if set.IPGeo != nil {
		ipAssessments = assess.New(set.IPGeo, iterations, logger).Run(ctx)
	}

	candidates := make([]optimize.Candidate, 0, len(set.Ordered))
	for _, p := range set.Ordered {
		c := optimize.Candidate{
			Descriptor: p.Descriptor(),
			Available:  p.Available(ctx),
		}

		if c.Descriptor.Name == "ip" && len(ipAssessments) > 0 {
			best := ipAssessments[0]
			c.Assessed = true
			c.ReliabilityScore = best.ReliabilityScore
			c.AvgResponseMs = best.AvgResponseMs()
			c.Succeeded = best.Successes > 0
		} else if c.Available {
			probeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			_, err := p.Resolve(probeCtx)
			cancel()
			c.Succeeded = err == nil
		}

		candidates = append(candidates, c)
	}
	return candidates
}

func persistRanked(path string, ranked optimize.RankedConfig) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()
	return st.SaveRanked(ranked)
}

func printResult(res domain.LocationResult, jsonOut bool) {
	if jsonOut {
		printJSON(res)
		return
	}
	if !res.Success {
		fmt.Printf("unavailable (%s), consulted: %s\n", res.ErrorReason, strings.Join(res.Consulted, ", "))
		return
	}
	fmt.Printf("%.4f, %.4f via %s (%s)\n", res.Lat, res.Lon, res.Source, res.Method)
	if res.Place.City != "" {
		fmt.Printf("%s, %s, %s\n", res.Place.City, res.Place.Region, res.Place.Country)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v) //nolint:errcheck // stdout
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
