// Package config loads process configuration from FIRMOGRAPH_* environment
// variables and from optional YAML side files (country pattern packs,
// blacklist).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Robots policy values.
const (
	RobotsRespect = "respect"
	RobotsIgnore  = "ignore"
)

// Export profile values.
const (
	ExportStrict     = "strict"
	ExportPermissive = "permissive"
)

// EnvConfig is the process configuration, populated from environment
// variables by LoadEnvConfig.
type EnvConfig struct {
	// Worker pool.
	Workers          int
	LeaseTTL         time.Duration
	PerEntryDeadline time.Duration

	// Politeness.
	MinDelay time.Duration
	Jitter   time.Duration

	// Retry ladder.
	MaxRetries    int
	BackoffBase   time.Duration
	BackoffFactor float64
	BackoffCap    time.Duration

	// Fetch budget.
	HTTPTimeout         time.Duration
	MaxRedirects        int
	MaxBodyBytes        int64
	AllowedContentTypes []string
	UserAgents          []string
	RenderConcurrency   int64

	// Fallback ladder.
	ProxyPool       []string
	ArchiveFallback bool

	// Pre-flight.
	RespectRobots string
	RobotsTTL     time.Duration
	DNSTimeout    time.Duration
	DNSServers    []string
	BlacklistFile string
	Blacklist     []string

	// Discovery.
	MaxLegalPages int

	// Validation.
	MXCheck bool

	// Extraction.
	CountryPatternSet string

	// Orchestrator stop and error budget.
	StopSentinelPath  string
	FailureThreshold  float64
	BreakerMinEvents  int
	BreakerPause      time.Duration
	RecoveryBudget    int
	EmptyQueueBackoff time.Duration

	// Storage and export.
	DataDir        string
	ExportDir      string
	ExportProfile  string
	ExportSchedule string
	ExportJSONL    bool

	// Enrichment.
	RDAPEnrich bool
}

// LoadEnvConfig reads configuration from the environment. All variables have
// defaults; validation problems are collected and reported together.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{
		Workers:          envInt("FIRMOGRAPH_WORKERS", 8),
		LeaseTTL:         envDuration("FIRMOGRAPH_LEASE_TTL", 5*time.Minute),
		PerEntryDeadline: envDuration("FIRMOGRAPH_ENTRY_DEADLINE", 2*time.Minute),

		MinDelay: envDuration("FIRMOGRAPH_MIN_DELAY", 2*time.Second),
		Jitter:   envDuration("FIRMOGRAPH_JITTER", time.Second),

		MaxRetries:    envInt("FIRMOGRAPH_MAX_RETRIES", 3),
		BackoffBase:   envDuration("FIRMOGRAPH_BACKOFF_BASE", time.Second),
		BackoffFactor: envFloat("FIRMOGRAPH_BACKOFF_FACTOR", 2.0),
		BackoffCap:    envDuration("FIRMOGRAPH_BACKOFF_CAP", 30*time.Second),

		HTTPTimeout:         envDuration("FIRMOGRAPH_HTTP_TIMEOUT", 20*time.Second),
		MaxRedirects:        envInt("FIRMOGRAPH_MAX_REDIRECTS", 5),
		MaxBodyBytes:        envInt64("FIRMOGRAPH_MAX_BODY_BYTES", 5<<20),
		AllowedContentTypes: envStringSlice("FIRMOGRAPH_ALLOWED_CONTENT_TYPES", []string{"text/html", "application/xhtml+xml"}),
		UserAgents:          envStringSlice("FIRMOGRAPH_USER_AGENTS", nil),
		RenderConcurrency:   envInt64("FIRMOGRAPH_RENDER_CONCURRENCY", 2),

		ProxyPool:       envStringSlice("FIRMOGRAPH_PROXY_POOL", nil),
		ArchiveFallback: envBool("FIRMOGRAPH_ARCHIVE_FALLBACK", true),

		RespectRobots: envStr("FIRMOGRAPH_RESPECT_ROBOTS", RobotsRespect),
		RobotsTTL:     envDuration("FIRMOGRAPH_ROBOTS_TTL", time.Hour),
		DNSTimeout:    envDuration("FIRMOGRAPH_DNS_TIMEOUT", 5*time.Second),
		DNSServers:    envStringSlice("FIRMOGRAPH_DNS_SERVERS", []string{"8.8.8.8:53", "1.1.1.1:53"}),
		BlacklistFile: envStr("FIRMOGRAPH_BLACKLIST_FILE", ""),
		Blacklist:     envStringSlice("FIRMOGRAPH_BLACKLIST", nil),

		MaxLegalPages: envInt("FIRMOGRAPH_MAX_LEGAL_PAGES", 3),

		MXCheck: envBool("FIRMOGRAPH_MX_CHECK", false),

		CountryPatternSet: envStr("FIRMOGRAPH_COUNTRY_PATTERN_SET", ""),

		StopSentinelPath:  envStr("FIRMOGRAPH_STOP_SENTINEL", ""),
		FailureThreshold:  envFloat("FIRMOGRAPH_FAILURE_THRESHOLD", 0.5),
		BreakerMinEvents:  envInt("FIRMOGRAPH_BREAKER_MIN_EVENTS", 20),
		BreakerPause:      envDuration("FIRMOGRAPH_BREAKER_PAUSE", time.Minute),
		RecoveryBudget:    envInt("FIRMOGRAPH_RECOVERY_BUDGET", 3),
		EmptyQueueBackoff: envDuration("FIRMOGRAPH_EMPTY_QUEUE_BACKOFF", 10*time.Second),

		DataDir:        envStr("FIRMOGRAPH_DATA_DIR", "./data"),
		ExportDir:      envStr("FIRMOGRAPH_EXPORT_DIR", "./exports"),
		ExportProfile:  envStr("FIRMOGRAPH_EXPORT_PROFILE", ExportStrict),
		ExportSchedule: envStr("FIRMOGRAPH_EXPORT_SCHEDULE", ""),
		ExportJSONL:    envBool("FIRMOGRAPH_EXPORT_JSONL", false),

		RDAPEnrich: envBool("FIRMOGRAPH_RDAP_ENRICH", false),
	}

	var errs []string
	validatePositive(&errs, "FIRMOGRAPH_WORKERS", cfg.Workers)
	validatePositiveDuration(&errs, "FIRMOGRAPH_LEASE_TTL", cfg.LeaseTTL)
	validatePositiveDuration(&errs, "FIRMOGRAPH_ENTRY_DEADLINE", cfg.PerEntryDeadline)
	validatePositiveDuration(&errs, "FIRMOGRAPH_HTTP_TIMEOUT", cfg.HTTPTimeout)
	validatePositiveDuration(&errs, "FIRMOGRAPH_DNS_TIMEOUT", cfg.DNSTimeout)
	if cfg.MinDelay < 0 {
		errs = append(errs, "FIRMOGRAPH_MIN_DELAY must not be negative")
	}
	if cfg.MaxRetries < 0 {
		errs = append(errs, "FIRMOGRAPH_MAX_RETRIES must not be negative")
	}
	if cfg.BackoffFactor < 1 {
		errs = append(errs, "FIRMOGRAPH_BACKOFF_FACTOR must be >= 1")
	}
	if cfg.MaxBodyBytes <= 0 {
		errs = append(errs, "FIRMOGRAPH_MAX_BODY_BYTES must be positive")
	}
	validatePositive(&errs, "FIRMOGRAPH_MAX_LEGAL_PAGES", cfg.MaxLegalPages)
	validatePositive(&errs, "FIRMOGRAPH_MAX_REDIRECTS", cfg.MaxRedirects)
	if cfg.RenderConcurrency <= 0 {
		errs = append(errs, "FIRMOGRAPH_RENDER_CONCURRENCY must be positive")
	}
	if cfg.RespectRobots != RobotsRespect && cfg.RespectRobots != RobotsIgnore {
		errs = append(errs, fmt.Sprintf("FIRMOGRAPH_RESPECT_ROBOTS must be %q or %q", RobotsRespect, RobotsIgnore))
	}
	if cfg.ExportProfile != ExportStrict && cfg.ExportProfile != ExportPermissive {
		errs = append(errs, fmt.Sprintf("FIRMOGRAPH_EXPORT_PROFILE must be %q or %q", ExportStrict, ExportPermissive))
	}
	if cfg.FailureThreshold <= 0 || cfg.FailureThreshold > 1 {
		errs = append(errs, "FIRMOGRAPH_FAILURE_THRESHOLD must be in (0, 1]")
	}
	if cfg.ExportSchedule != "" {
		if _, err := cron.ParseStandard(cfg.ExportSchedule); err != nil {
			errs = append(errs, fmt.Sprintf("FIRMOGRAPH_EXPORT_SCHEDULE is not a valid cron expression: %v", err))
		}
	}
	for _, srv := range cfg.DNSServers {
		if !strings.Contains(srv, ":") {
			errs = append(errs, fmt.Sprintf("FIRMOGRAPH_DNS_SERVERS entry %q must be host:port", srv))
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// envStringSlice splits a comma-separated variable, trimming whitespace and
// dropping empty items.
func envStringSlice(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func validatePositive(errs *[]string, key string, v int) {
	if v <= 0 {
		*errs = append(*errs, key+" must be positive")
	}
}

func validatePositiveDuration(errs *[]string, key string, v time.Duration) {
	if v <= 0 {
		*errs = append(*errs, key+" must be a positive duration")
	}
}
