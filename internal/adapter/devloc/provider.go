// Package devloc wraps a platform location helper (a geoclue "where-am-i"
// style executable) as a location provider. The helper is the only source
// with sensor-grade accuracy, and the only one gated on user consent.
package devloc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/whereami/internal/domain"
)

// ProviderName is the descriptor name of the on-device location provider.
const ProviderName = "devloc"

// DefaultWeight ranks the on-device sensor above every network source.
const DefaultWeight = 0.9

// Accuracy hints understood by the helper. High asks for a sensor fix;
// balanced is accepted by helpers without positioning hardware.
const (
	AccuracyHigh     = "high"
	AccuracyBalanced = "balanced"
)

// geoclue accuracy levels passed via the -a flag.
var accuracyLevels = map[string]string{
	AccuracyHigh:     "8", // GCLUE_ACCURACY_LEVEL_EXACT
	AccuracyBalanced: "4", // GCLUE_ACCURACY_LEVEL_CITY
}

// Options configures the on-device provider.
type Options struct {
	Command        string // helper executable, resolved via PATH
	Accuracy       string // AccuracyHigh or AccuracyBalanced
	Timeout        time.Duration
	ConsentGranted bool
	Weight         float64
}

// Provider implements domain.Provider over the helper executable.
type Provider struct {
	desc     domain.Descriptor
	command  string
	accuracy string
	timeout  time.Duration
	consent  bool
	logger   *slog.Logger

	// runCommand is swapped in tests to avoid spawning processes.
	runCommand func(ctx context.Context, name string, args ...string) ([]byte, []byte, error)
}

// New builds the provider around the configured helper command.
func New(opts Options, logger *slog.Logger) *Provider {
	command := opts.Command
	if command == "" {
		command = "where-am-i"
	}
	accuracy := opts.Accuracy
	if _, ok := accuracyLevels[accuracy]; !ok {
		accuracy = AccuracyHigh
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 20 * time.Second
	}
	weight := opts.Weight
	if weight == 0 {
		weight = DefaultWeight
	}

	return &Provider{
		desc: domain.Descriptor{
			Name:            ProviderName,
			RequiresConsent: true,
			StaticWeight:    weight,
			Settings: map[string]string{
				"command":  command,
				"accuracy": accuracy,
			},
		},
		command:    command,
		accuracy:   accuracy,
		timeout:    timeout,
		consent:    opts.ConsentGranted,
		logger:     logger,
		runCommand: runCommand,
	}
}

func (p *Provider) Descriptor() domain.Descriptor { return p.desc }

// Available reports whether the helper executable exists on PATH. Consent is
// checked in Resolve so the two failure modes stay distinguishable.
func (p *Provider) Available(_ context.Context) bool {
	_, err := exec.LookPath(p.command)
	return err == nil
}

// Resolve runs the helper with the configured accuracy hint, retrying once
// at a lower accuracy when the high-accuracy request is rejected. Terminal
// states are success, consent denial, and timeout/unavailable.
func (p *Provider) Resolve(ctx context.Context) (domain.LocationResult, error) {
	if !p.consent {
		return domain.LocationResult{}, fmt.Errorf("%s: %w", p.command, domain.ErrConsentDenied)
	}
	if _, err := exec.LookPath(p.command); err != nil {
		return domain.LocationResult{}, fmt.Errorf("%s not found: %w", p.command, domain.ErrUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result, err := p.run(ctx, p.accuracy)
	if err != nil && p.accuracy == AccuracyHigh && !terminal(err) {
		p.logger.Debug("high accuracy fix failed, retrying at lower accuracy", "error", err)
		result, err = p.run(ctx, AccuracyBalanced)
	}
	return result, err
}

// terminal reports failures where retrying at lower accuracy cannot help.
func terminal(err error) bool {
	return errors.Is(err, domain.ErrConsentDenied) || errors.Is(err, domain.ErrTimeout)
}

func (p *Provider) run(ctx context.Context, accuracy string) (domain.LocationResult, error) {
	seconds := int(p.timeout / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	args := []string{"-t", strconv.Itoa(seconds), "-a", accuracyLevels[accuracy]}

	stdout, stderr, err := p.runCommand(ctx, p.command, args...)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return domain.LocationResult{}, fmt.Errorf("%s: %w", p.command, domain.ErrTimeout)
		}
		if deniedOutput(stderr) || deniedOutput(stdout) {
			return domain.LocationResult{}, fmt.Errorf("%s: %w", p.command, domain.ErrConsentDenied)
		}
		return domain.LocationResult{}, fmt.Errorf("%s: %v: %w", p.command, err, domain.ErrUnavailable)
	}

	lat, lon, acc, err := parseOutput(string(stdout))
	if err != nil {
		return domain.LocationResult{}, fmt.Errorf("%s output: %v: %w", p.command, err, domain.ErrUnavailable)
	}

	result, err := domain.NewSuccess(domain.MethodDevice, p.command, lat, lon)
	if err != nil {
		return domain.LocationResult{}, err
	}
	result.AccuracyMeters = acc
	return result, nil
}

// deniedOutput recognizes permission failures in helper output across the
// phrasings used by geoclue and the macOS location helper.
func deniedOutput(out []byte) bool {
	s := strings.ToLower(string(out))
	for _, marker := range []string{"denied", "not authorized", "disabled by user", "agent not active"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

// parseOutput accepts the "Latitude: x°" line format of the geoclue demo as
// well as a bare "lat,lon" pair from simpler helpers.
func parseOutput(out string) (lat, lon, accuracy float64, err error) {
	var haveLat, haveLon bool

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Latitude:"):
			lat, err = parseDegrees(strings.TrimPrefix(line, "Latitude:"))
			if err != nil {
				return 0, 0, 0, err
			}
			haveLat = true
		case strings.HasPrefix(line, "Longitude:"):
			lon, err = parseDegrees(strings.TrimPrefix(line, "Longitude:"))
			if err != nil {
				return 0, 0, 0, err
			}
			haveLon = true
		case strings.HasPrefix(line, "Accuracy:"):
			// Best effort; a missing accuracy line leaves 0 (unknown).
			fields := strings.Fields(strings.TrimPrefix(line, "Accuracy:"))
			if len(fields) > 0 {
				accuracy, _ = strconv.ParseFloat(fields[0], 64)
			}
		}
	}
	if haveLat && haveLon {
		return lat, lon, accuracy, nil
	}

	// Fallback: a single "lat,lon" token.
	if pair := strings.SplitN(strings.TrimSpace(out), ",", 2); len(pair) == 2 {
		lat, err1 := strconv.ParseFloat(strings.TrimSpace(pair[0]), 64)
		lon, err2 := strconv.ParseFloat(strings.TrimSpace(pair[1]), 64)
		if err1 == nil && err2 == nil {
			return lat, lon, 0, nil
		}
	}

	return 0, 0, 0, fmt.Errorf("no coordinates in output %q", strings.TrimSpace(out))
}

// parseDegrees strips the degree symbol the geoclue demo prints.
func parseDegrees(s string) (float64, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "°"))
	return strconv.ParseFloat(s, 64)
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}
