// Package config loads service configuration from defaults, an optional YAML
// file and environment variables, in that order of precedence (env wins).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/jonathan/mapping-testgen/internal/llm"
	"github.com/jonathan/mapping-testgen/internal/store"
)

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Generator GeneratorConfig `yaml:"generator"`
	GitHub    GitHubConfig    `yaml:"github"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORSOrigins     []string      `yaml:"cors_origins"`
	RateLimit       bool          `yaml:"rate_limit"`
}

// StorageConfig selects and configures the job store backend.
type StorageConfig struct {
	Backend     string `yaml:"backend"` // auto, local, nats, postgres
	Dir         string `yaml:"dir"`
	NATSURL     string `yaml:"nats_url"`
	NATSBucket  string `yaml:"nats_bucket"`
	DatabaseURL string `yaml:"database_url"`
}

// GeneratorConfig selects the test case generator.
type GeneratorConfig struct {
	Name    string        `yaml:"name"` // auto, template, llm
	APIKey  string        `yaml:"-"`
	Model   string        `yaml:"model"`
	Tier    string        `yaml:"tier"` // standard, advanced
	Timeout time.Duration `yaml:"timeout"`
}

// GitHubConfig configures remote sources and publishing.
type GitHubConfig struct {
	Token         string `yaml:"-"`
	APIBaseURL    string `yaml:"api_base_url"`
	PublishRepo   string `yaml:"publish_repo"`
	PublishBranch string `yaml:"publish_branch"`
	PublishDir    string `yaml:"publish_dir"`
}

// JobsConfig tunes the orchestrator.
type JobsConfig struct {
	// MaxConcurrent bounds simultaneous background runs; 0 is unbounded.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimit:       true,
		},
		Storage: StorageConfig{
			Backend:    store.BackendAuto,
			Dir:        "./data",
			NATSBucket: store.DefaultNATSBucket,
		},
		Generator: GeneratorConfig{
			Name:    "auto",
			Tier:    string(llm.TierStandard),
			Timeout: 2 * time.Minute,
		},
		GitHub: GitHubConfig{
			PublishBranch: "main",
			PublishDir:    "testcases",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// non-empty), then environment variables. The result is validated.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	num("PORT", &c.Server.Port)
	dur("SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)
	boolean("RATE_LIMIT_ENABLED", &c.Server.RateLimit)
	if v := strings.TrimSpace(getenv("CORS_ORIGINS")); v != "" {
		c.Server.CORSOrigins = splitList(v)
	}

	str("STORAGE_BACKEND", &c.Storage.Backend)
	str("STORAGE_DIR", &c.Storage.Dir)
	str("NATS_URL", &c.Storage.NATSURL)
	str("NATS_BUCKET", &c.Storage.NATSBucket)
	str("DATABASE_URL", &c.Storage.DatabaseURL)

	str("GENERATOR", &c.Generator.Name)
	str("GEMINI_API_KEY", &c.Generator.APIKey)
	str("GEMINI_MODEL", &c.Generator.Model)
	str("GEMINI_TIER", &c.Generator.Tier)
	dur("GENERATOR_TIMEOUT", &c.Generator.Timeout)

	str("GITHUB_TOKEN", &c.GitHub.Token)
	str("GITHUB_API_URL", &c.GitHub.APIBaseURL)
	str("PUBLISH_REPO", &c.GitHub.PublishRepo)
	str("PUBLISH_BRANCH", &c.GitHub.PublishBranch)
	str("PUBLISH_DIR", &c.GitHub.PublishDir)

	num("MAX_CONCURRENT_JOBS", &c.Jobs.MaxConcurrent)

	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	return errors.Join(errs...)
}

// Validate checks enums and ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 0 and 65535, got %d", c.Server.Port))
	}
	switch strings.ToLower(c.Storage.Backend) {
	case "", store.BackendAuto, store.BackendLocal, store.BackendNATS, store.BackendPostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q (want auto, local, nats or postgres)", c.Storage.Backend))
	}
	switch strings.ToLower(c.Generator.Name) {
	case "auto", "template", "llm":
	default:
		errs = append(errs, fmt.Errorf("unknown generator %q (want auto, template or llm)", c.Generator.Name))
	}
	if strings.EqualFold(c.Generator.Name, "llm") && c.Generator.APIKey == "" {
		errs = append(errs, errors.New("generator llm requires GEMINI_API_KEY"))
	}
	if _, err := llm.ParseTier(c.Generator.Tier); err != nil {
		errs = append(errs, err)
	}
	if c.Jobs.MaxConcurrent < 0 {
		errs = append(errs, fmt.Errorf("max_concurrent must be non-negative, got %d", c.Jobs.MaxConcurrent))
	}
	if c.GitHub.PublishRepo != "" && strings.Count(c.GitHub.PublishRepo, "/") != 1 {
		errs = append(errs, fmt.Errorf("publish_repo must be owner/name, got %q", c.GitHub.PublishRepo))
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log format must be json or console, got %q", c.Log.Format))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

// StoreOptions converts the storage section for store.Open.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Backend: c.Storage.Backend,
		Dir:     c.Storage.Dir,
		NATS: store.NATSOptions{
			URL:    c.Storage.NATSURL,
			Bucket: c.Storage.NATSBucket,
		},
		DatabaseURL: c.Storage.DatabaseURL,
	}
}

// NewLogger builds a zap logger for the log section.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	var zc zap.Config
	if c.Log.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
