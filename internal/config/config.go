package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/whereami/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Resolution scheduling.
	PollInterval time.Duration // how often the daemon resolves
	CycleMargin  time.Duration // safety margin subtracted from the cycle deadline
	CacheTTL     time.Duration
	StatusFile   string // path the prompt renderer polls; empty disables the write
	StorePath    string // bbolt database holding the optimized ranked config

	// Selection behavior. The provider order is the fallback used when no
	// optimized configuration has been persisted.
	ProviderOrder         []string
	HybridEnabled         bool
	MinShortCircuitWeight float64 // 0 disables short-circuiting
	ConsentGranted        bool

	// Per-provider probe timeouts.
	IPTimeout      time.Duration
	DevlocTimeout  time.Duration
	GeocodeTimeout time.Duration

	// IP-geolocation provider.
	IPGeoEndpoints []string
	IPInfoToken    string
	MMDBPath       string // optional local GeoLite2-City database

	// On-device location provider.
	DevlocCommand  string
	DevlocAccuracy string // "high" or "balanced"

	// Fixed-coordinate provider. Enabled only when both values are set.
	FixedSet bool
	FixedLat float64
	FixedLon float64

	// Address-geocoding provider. Enabled only when an address is set.
	GeocodeAddress string
	GeocodeBackend string // "mapbox" or "google"
	MapboxToken    string
	GoogleAPIKey   string

	// Optional Kafka telemetry sink for resolution outcomes.
	TelemetryEnabled bool
	KafkaBrokers     []string
	KafkaTopic       string
}

// Load reads configuration from environment variables, applying defaults
// where unset and failing fast on values that could never resolve.
func Load() (*Config, error) {
	pollInterval, err := envDuration("POLL_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	cycleMargin, err := envDuration("CYCLE_MARGIN", 30*time.Second)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := envDuration("CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	ipTimeout, err := envDuration("IP_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	devlocTimeout, err := envDuration("DEVLOC_TIMEOUT", 20*time.Second)
	if err != nil {
		return nil, err
	}
	geocodeTimeout, err := envDuration("GEOCODE_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	minWeight, err := envFloat("MIN_SHORTCIRCUIT_WEIGHT", 0)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		PollInterval: pollInterval,
		CycleMargin:  cycleMargin,
		CacheTTL:     cacheTTL,
		StatusFile:   os.Getenv("STATUS_FILE"),
		StorePath:    envOrDefault("STORE_PATH", "whereami.db"),

		ProviderOrder:         splitCSV(envOrDefault("PROVIDER_ORDER", "ip,fixed")),
		HybridEnabled:         envBool("HYBRID_ENABLED", true),
		MinShortCircuitWeight: minWeight,
		ConsentGranted:        envBool("CONSENT_GRANTED", false),

		IPTimeout:      ipTimeout,
		DevlocTimeout:  devlocTimeout,
		GeocodeTimeout: geocodeTimeout,

		IPGeoEndpoints: splitCSV(envOrDefault("IPGEO_ENDPOINTS", "ip-api,ipwho.is,ipapi.co")),
		IPInfoToken:    os.Getenv("IPINFO_TOKEN"),
		MMDBPath:       os.Getenv("IPGEO_MMDB_PATH"),

		DevlocCommand:  envOrDefault("DEVLOC_COMMAND", "where-am-i"),
		DevlocAccuracy: envOrDefault("DEVLOC_ACCURACY", "high"),

		GeocodeAddress: os.Getenv("GEOCODE_ADDRESS"),
		GeocodeBackend: envOrDefault("GEOCODE_BACKEND", "mapbox"),
		MapboxToken:    os.Getenv("MAPBOX_TOKEN"),
		GoogleAPIKey:   os.Getenv("GOOGLE_API_KEY"),

		TelemetryEnabled: envBool("TELEMETRY_ENABLED", false),
		KafkaBrokers:     splitCSV(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:       envOrDefault("KAFKA_TOPIC", "location-fixes"),
	}

	if err := loadFixed(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFixed parses the fixed-coordinate settings. Both values must be present
// together, parse as floats, and sit inside coordinate ranges; a bad value
// fails here before any network activity. The provider re-validates at
// resolve time as well.
func loadFixed(cfg *Config) error {
	latStr, lonStr := os.Getenv("FIXED_LAT"), os.Getenv("FIXED_LON")
	if latStr == "" && lonStr == "" {
		return nil
	}
	if latStr == "" || lonStr == "" {
		return errors.New("FIXED_LAT and FIXED_LON must be set together")
	}
	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return fmt.Errorf("invalid FIXED_LAT %q", latStr)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return fmt.Errorf("invalid FIXED_LON %q", lonStr)
	}
	if err := domain.ValidateCoordinates(lat, lon); err != nil {
		return fmt.Errorf("fixed coordinate out of range: %w", err)
	}
	cfg.FixedSet = true
	cfg.FixedLat = lat
	cfg.FixedLon = lon
	return nil
}

func (c *Config) validate() error {
	if c.PollInterval <= 0 {
		return errors.New("POLL_INTERVAL must be positive")
	}
	if c.CacheTTL <= 0 {
		return errors.New("CACHE_TTL must be positive")
	}
	if len(c.ProviderOrder) == 0 {
		return errors.New("PROVIDER_ORDER must name at least one provider")
	}
	if c.GeocodeAddress != "" {
		switch c.GeocodeBackend {
		case "mapbox", "google":
		default:
			return fmt.Errorf("unknown GEOCODE_BACKEND %q", c.GeocodeBackend)
		}
	}
	if c.TelemetryEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("TELEMETRY_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if c.MinShortCircuitWeight < 0 || c.MinShortCircuitWeight > 1 {
		return errors.New("MIN_SHORTCIRCUIT_WEIGHT must be within [0,1]")
	}
	return nil
}

// CycleDeadline is the per-cycle time budget: the polling interval minus the
// safety margin, floored at one second.
func (c *Config) CycleDeadline() time.Duration {
	d := c.PollInterval - c.CycleMargin
	if d < time.Second {
		return time.Second
	}
	return d
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return d, nil
}

func envBool(key string, def bool) bool {
	switch os.Getenv(key) {
	case "true", "1":
		return true
	case "false", "0":
		return false
	default:
		return def
	}
}

func envFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return f, nil
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
