// Load envs from .env
// Load YAML config
// Apply env overrides
// Validate config

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/baxromumarov/job-extractor/internal/extractor"
	"github.com/baxromumarov/job-extractor/internal/httpx"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	Port        string `yaml:"port"`
	DatabaseURL string `yaml:"database_url"`
	// Retention deletes saved postings older than this; zero keeps them.
	Retention   time.Duration `yaml:"retention"`
	LogLevel    string        `yaml:"log_level"`
	CORSOrigins []string      `yaml:"cors_origins"`

	Fetch   FetchConfig            `yaml:"fetch"`
	Browser BrowserConfig          `yaml:"browser"`
	Watch   WatchConfig            `yaml:"watch"`
	Events  EventsConfig           `yaml:"events"`
	Retry   map[string]RetryConfig `yaml:"retry"`
}

type FetchConfig struct {
	// Fetcher is "colly" or "polite".
	Fetcher    string               `yaml:"fetcher"`
	UserAgent  string               `yaml:"user_agent"`
	Timeout    time.Duration        `yaml:"timeout"`
	HostLimits map[string]HostLimit `yaml:"host_limits"`
}

type HostLimit = httpx.HostLimit

type BrowserConfig struct {
	Enabled  bool   `yaml:"enabled"`
	ExecPath string `yaml:"exec_path"`
	Headless bool   `yaml:"headless"`
}

type WatchConfig struct {
	SettleDelay time.Duration `yaml:"settle_delay"`
	MaxSessions int           `yaml:"max_sessions"`
}

type EventsConfig struct {
	Buffer int `yaml:"buffer"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Delay       time.Duration `yaml:"delay"`
}

// Default returns the configuration used when nothing overrides it.
func Default() *Config {
	retry := make(map[string]RetryConfig)
	for kind, p := range extractor.DefaultPolicies() {
		retry[kind.String()] = RetryConfig{MaxAttempts: p.MaxAttempts, Delay: p.Delay}
	}
	return &Config{
		Port:     "8080",
		LogLevel: "info",
		Fetch: FetchConfig{
			Fetcher: "colly",
			Timeout: 15 * time.Second,
		},
		Browser: BrowserConfig{Headless: true},
		Watch: WatchConfig{
			SettleDelay: 500 * time.Millisecond,
			MaxSessions: 4,
		},
		Events: EventsConfig{Buffer: 16},
		Retry:  retry,
	}
}

// Load reads .env, then the YAML file at path (DefaultPath when empty; a
// missing file is not an error), then environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path == "" {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Debug("config file not found, using defaults", "path", path)
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv("USER_AGENT"); v != "" {
		c.Fetch.UserAgent = v
	}
	if v := os.Getenv("FETCHER"); v != "" {
		c.Fetch.Fetcher = v
	}
	if v := os.Getenv("CHROME_PATH"); v != "" {
		c.Browser.ExecPath = v
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = strings.Split(v, ",")
	}

	var err error
	if c.Fetch.Timeout, err = envDuration("FETCH_TIMEOUT", c.Fetch.Timeout); err != nil {
		return err
	}
	if c.Watch.SettleDelay, err = envDuration("SETTLE_DELAY", c.Watch.SettleDelay); err != nil {
		return err
	}
	if v := os.Getenv("BROWSER_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid BROWSER_ENABLED: %w", err)
		}
		c.Browser.Enabled = enabled
	}
	return nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("port is required"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	switch c.Fetch.Fetcher {
	case "colly", "polite":
	default:
		errs = append(errs, fmt.Errorf("fetch.fetcher must be colly or polite, got %q", c.Fetch.Fetcher))
	}
	if c.Fetch.Timeout <= 0 {
		errs = append(errs, errors.New("fetch.timeout must be positive"))
	}
	for host, limit := range c.Fetch.HostLimits {
		if limit.Every <= 0 || limit.Burst <= 0 {
			errs = append(errs, fmt.Errorf("fetch.host_limits.%s needs positive every and burst", host))
		}
	}
	if c.Watch.SettleDelay <= 0 {
		errs = append(errs, errors.New("watch.settle_delay must be positive"))
	}
	if c.Retention < 0 {
		errs = append(errs, errors.New("retention must not be negative"))
	}
	if c.Watch.MaxSessions < 0 {
		errs = append(errs, errors.New("watch.max_sessions must not be negative"))
	}
	for name, r := range c.Retry {
		if _, ok := extractor.ParseAdapterKind(name); !ok {
			errs = append(errs, fmt.Errorf("retry.%s: unknown adapter", name))
			continue
		}
		if r.MaxAttempts < 1 {
			errs = append(errs, fmt.Errorf("retry.%s.max_attempts must be at least 1", name))
		}
		if r.Delay < 0 {
			errs = append(errs, fmt.Errorf("retry.%s.delay must not be negative", name))
		}
	}
	return errors.Join(errs...)
}

// Policies converts the retry section into extractor options.
func (c *Config) Policies() []extractor.Option {
	opts := make([]extractor.Option, 0, len(c.Retry))
	for name, r := range c.Retry {
		kind, ok := extractor.ParseAdapterKind(name)
		if !ok {
			continue
		}
		opts = append(opts, extractor.WithPolicy(kind, extractor.RetryPolicy{MaxAttempts: r.MaxAttempts, Delay: r.Delay}))
	}
	return opts
}

// Fetcher builds the configured page fetcher.
func (c *Config) Fetcher() (httpx.Getter, error) {
	return httpx.NewGetter(c.Fetch.Fetcher, c.Fetch.UserAgent, c.Fetch.Timeout, c.Fetch.HostLimits)
}

func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}
