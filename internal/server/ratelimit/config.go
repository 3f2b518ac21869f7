package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig is the limit applied to one method and path pattern.
// Path is an exact path, or a prefix when it ends in "/"; a "*" segment
// matches any single path segment. Limit is the number of requests per
// Window, with 0 meaning unlimited. Burst defaults to Limit.
type EndpointConfig struct {
	Method string
	Path   string
	Limit  int
	Window time.Duration
	Burst  int
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	IdleTTL         time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	Endpoints       []EndpointConfig
}

// DefaultConfig returns the built-in limits for the job API.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		DefaultLimit:    600,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		IdleTTL:         time.Hour,
		Whitelist:       map[string]bool{},
		Blacklist:       map[string]bool{},
		Endpoints:       DefaultEndpoints(),
	}
}

// DefaultEndpoints returns per-endpoint limits. Submissions and publishes
// trigger generation or remote writes and get the strictest limits.
func DefaultEndpoints() []EndpointConfig {
	return []EndpointConfig{
		{Method: "POST", Path: "/jobs", Limit: 60, Window: time.Hour, Burst: 10},
		{Method: "POST", Path: "/jobs/*/publish", Limit: 20, Window: time.Hour, Burst: 3},
		{Method: "GET", Path: "/jobs/*/download", Limit: 120, Window: time.Minute, Burst: 20},

		// Long-lived streams and probes are not limited.
		{Method: "GET", Path: "/jobs/*/events", Limit: 0},
		{Method: "GET", Path: "/health", Limit: 0},
		{Method: "GET", Path: "/metrics", Limit: 0},
	}
}

// LoadConfig reads RATE_LIMIT_* variables over DefaultConfig.
func LoadConfig() *Config {
	cfg := DefaultConfig()
	cfg.Enabled = getEnvBool("RATE_LIMIT_ENABLED", cfg.Enabled)
	cfg.DefaultLimit = getEnvInt("RATE_LIMIT_DEFAULT_LIMIT", cfg.DefaultLimit)
	cfg.DefaultWindow = getEnvDuration("RATE_LIMIT_DEFAULT_WINDOW", cfg.DefaultWindow)
	cfg.CleanupInterval = getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", cfg.CleanupInterval)
	cfg.Whitelist = parseIPList(os.Getenv("RATE_LIMIT_WHITELIST"))
	cfg.Blacklist = parseIPList(os.Getenv("RATE_LIMIT_BLACKLIST"))
	if n := getEnvInt("RATE_LIMIT_SUBMIT_PER_HOUR", 0); n > 0 {
		for i := range cfg.Endpoints {
			if cfg.Endpoints[i].Method == "POST" && cfg.Endpoints[i].Path == "/jobs" {
				cfg.Endpoints[i].Limit = n
			}
		}
	}
	return cfg
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseIPList(list string) map[string]bool {
	out := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			out[ip] = true
		}
	}
	return out
}
