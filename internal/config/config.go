package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"quotesync/internal/fetcher"
)

// Config holds all configuration for the quote-sync engine. Every knob is
// an explicit named field; nothing is read from ambient globals.
type Config struct {
	// Symbols is the ordered list of symbols to sync each cycle.
	Symbols []string `mapstructure:"symbols"`

	// Remote API access
	APIKey     string `mapstructure:"api_key"`
	APIBaseURL string `mapstructure:"api_base_url"`

	// Scheduling
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// Calling discipline against the remote API
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	RetryBaseWait   time.Duration `mapstructure:"retry_base_wait"`
	RetryMaxWait    time.Duration `mapstructure:"retry_max_wait"`
	RateLimitPerSec float64       `mapstructure:"rate_limit_per_sec"`
	RateBurst       int           `mapstructure:"rate_burst"`
	RateCooldown    time.Duration `mapstructure:"rate_cooldown"`
	MaxConcurrency  int           `mapstructure:"max_concurrency"`

	// RevalidateAfter is how long a known-invalid symbol stays skipped
	// before it is re-checked.
	RevalidateAfter time.Duration `mapstructure:"revalidate_after"`

	// State store. An empty redis_addr selects the in-memory store.
	RedisAddr   string `mapstructure:"redis_addr"`
	RedisDB     int    `mapstructure:"redis_db"`
	StatePrefix string `mapstructure:"state_prefix"`

	LogLevel string `mapstructure:"log_level"`
}

// Load reads configuration from environment variables and an optional
// config file. Environment variables take precedence over file values.
//
// Expected environment variables:
//   - QUOTESYNC_API_KEY (required)
//   - QUOTESYNC_SYMBOLS (comma-separated, required unless set in file)
//   - QUOTESYNC_API_BASE_URL (optional, defaults to production)
//   - QUOTESYNC_REDIS_ADDR (optional)
//
// Validation failures are reported together as a single config error.
func Load() (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("QUOTESYNC")
	v.AutomaticEnv()

	v.SetDefault("api_base_url", "https://api.quotewire.io/v1")
	v.SetDefault("poll_interval", "1m")
	v.SetDefault("request_timeout", "10s")
	v.SetDefault("max_retries", 3)
	v.SetDefault("retry_base_wait", "500ms")
	v.SetDefault("retry_max_wait", "5s")
	v.SetDefault("rate_limit_per_sec", 5.0)
	v.SetDefault("rate_burst", 1)
	v.SetDefault("rate_cooldown", "30s")
	v.SetDefault("max_concurrency", 4)
	v.SetDefault("revalidate_after", "24h")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("state_prefix", "quotes")
	v.SetDefault("log_level", "info")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.quotesync")

	// Read config file (ignore if not found)
	_ = v.ReadInConfig()

	v.BindEnv("api_key", "QUOTESYNC_API_KEY")
	v.BindEnv("api_base_url", "QUOTESYNC_API_BASE_URL")
	v.BindEnv("symbols", "QUOTESYNC_SYMBOLS")
	v.BindEnv("poll_interval", "QUOTESYNC_POLL_INTERVAL")
	v.BindEnv("redis_addr", "QUOTESYNC_REDIS_ADDR")
	v.BindEnv("redis_db", "QUOTESYNC_REDIS_DB")
	v.BindEnv("state_prefix", "QUOTESYNC_STATE_PREFIX")
	v.BindEnv("log_level", "QUOTESYNC_LOG_LEVEL")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fetcher.NewConfigError(fmt.Sprintf("failed to unmarshal config: %v", err))
	}

	// Env vars deliver the symbol list as one comma-separated string.
	if len(cfg.Symbols) == 1 && strings.Contains(cfg.Symbols[0], ",") {
		cfg.Symbols = splitCSV(cfg.Symbols[0])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var problems []string

	if c.APIKey == "" {
		problems = append(problems, "api_key is required")
	}
	if c.APIBaseURL == "" {
		problems = append(problems, "api_base_url is required")
	}
	if len(c.Symbols) == 0 {
		problems = append(problems, "symbols must not be empty")
	}
	for _, s := range c.Symbols {
		if strings.TrimSpace(s) == "" {
			problems = append(problems, "symbols must not contain blank entries")
			break
		}
	}
	if c.PollInterval <= 0 {
		problems = append(problems, "poll_interval must be positive")
	}
	if c.RequestTimeout <= 0 {
		problems = append(problems, "request_timeout must be positive")
	}
	if c.MaxRetries < 0 {
		problems = append(problems, "max_retries must not be negative")
	}
	if c.RateLimitPerSec <= 0 {
		problems = append(problems, "rate_limit_per_sec must be positive")
	}
	if c.MaxConcurrency < 1 {
		problems = append(problems, "max_concurrency must be at least 1")
	}
	if c.StatePrefix == "" {
		problems = append(problems, "state_prefix is required")
	}

	if len(problems) > 0 {
		return fetcher.NewConfigError("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
