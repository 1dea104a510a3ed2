package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrMissingCredential is reported when BOT_ACCESS_TOKEN is absent.
var ErrMissingCredential = errors.New("BOT_ACCESS_TOKEN is required (get it from @BotFather)")

// Config holds all runtime configuration for the service.
type Config struct {
	// Required
	BotAccessToken string `env:"BOT_ACCESS_TOKEN"`

	// Optional (with defaults)
	DataPath         string        `env:"DATA_PATH" envDefault:"data.json"`
	JournalPath      string        `env:"JOURNAL_PATH" envDefault:"evmwatch.db"`
	JournalRetention time.Duration `env:"JOURNAL_RETENTION" envDefault:"24h"`
	Networks         []string      `env:"NETWORKS" envDefault:"mainnet" envSeparator:","`
	PollInterval     time.Duration `env:"POLL_INTERVAL" envDefault:"5s"`
	NotifyRate       float64       `env:"NOTIFY_RATE" envDefault:"1"`
	NotifyBurst      int           `env:"NOTIFY_BURST" envDefault:"5"`
	MetricsAddr      string        `env:"METRICS_ADDR"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`

	// RPCURLs maps a network name to its <NAME>_RPC_URL override, if set.
	RPCURLs map[string]string `env:"-"`
}

// ValidationError lists every problem found while loading, so one run
// reports all of them.
type ValidationError struct {
	Problems []error
}

func (e *ValidationError) Error() string {
	lines := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		lines = append(lines, p.Error())
	}
	return "config validation error:\n  - " + strings.Join(lines, "\n  - ")
}

func (e *ValidationError) Unwrap() []error { return e.Problems }

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Load reads environment variables, applies defaults, validates,
// and returns a Config instance. It attempts to load .env if present.
func Load() (Config, error) {
	// Load .env if it exists; ignore if missing.
	_ = godotenv.Load()
	return parse()
}

func parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, &ValidationError{Problems: []error{err}}
	}

	var errs []error

	cfg.BotAccessToken = strings.TrimSpace(cfg.BotAccessToken)
	if cfg.BotAccessToken == "" {
		errs = append(errs, ErrMissingCredential)
	}

	cfg.DataPath = strings.TrimSpace(cfg.DataPath)
	if cfg.DataPath == "" {
		errs = append(errs, errors.New("DATA_PATH must not be empty"))
	}

	if cfg.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("POLL_INTERVAL must be positive, got %s", cfg.PollInterval))
	}
	if cfg.JournalRetention <= 0 {
		errs = append(errs, fmt.Errorf("JOURNAL_RETENTION must be positive, got %s", cfg.JournalRetention))
	}

	if cfg.NotifyRate <= 0 {
		errs = append(errs, fmt.Errorf("NOTIFY_RATE must be positive, got %v", cfg.NotifyRate))
	}
	if cfg.NotifyBurst < 1 {
		errs = append(errs, fmt.Errorf("NOTIFY_BURST must be at least 1, got %d", cfg.NotifyBurst))
	}

	// NETWORKS: trimmed, deduplicated, at least one.
	seen := make(map[string]struct{}, len(cfg.Networks))
	names := cfg.Networks[:0]
	for _, n := range cfg.Networks {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		names = append(names, n)
	}
	cfg.Networks = names
	if len(cfg.Networks) == 0 {
		errs = append(errs, errors.New("NETWORKS must name at least one network"))
	}

	cfg.RPCURLs = make(map[string]string, len(cfg.Networks))
	for _, n := range cfg.Networks {
		key := RPCURLVar(n)
		u := strings.TrimSpace(os.Getenv(key))
		if u == "" {
			continue
		}
		lower := strings.ToLower(u)
		if !strings.HasPrefix(lower, "wss://") && !strings.HasPrefix(lower, "ws://") {
			errs = append(errs, fmt.Errorf("%s must start with wss:// or ws://, got %q", key, redactURL(u)))
			continue
		}
		cfg.RPCURLs[n] = u
	}

	cfg.LogLevel = strings.TrimSpace(strings.ToLower(cfg.LogLevel))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if _, ok := logLevels[cfg.LogLevel]; !ok {
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of debug|info|warn|error, got %q", cfg.LogLevel))
	}

	if len(errs) > 0 {
		return Config{}, &ValidationError{Problems: errs}
	}
	return cfg, nil
}

// RPCURLVar returns the environment variable overriding a network's RPC URL,
// e.g. "arbitrumNova" -> "ARBITRUMNOVA_RPC_URL".
func RPCURLVar(network string) string {
	return strings.ToUpper(network) + "_RPC_URL"
}

// MustLoad is a convenience for main(): exit fast with a readable error.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		// Print a clean error (no stack trace) so non-Go users can fix env quickly.
		fmt.Fprintf(os.Stderr, "\nFATAL: %v\n\n", err)
		os.Exit(1)
	}
	return cfg
}

// SlogLevel maps LOG_LEVEL onto a slog level.
func (c Config) SlogLevel() slog.Level {
	if lvl, ok := logLevels[c.LogLevel]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// RedactedSummary returns a safe human-readable snapshot of the config.
// Useful to log at startup for quick debugging without leaking secrets.
func (c Config) RedactedSummary() string {
	rpcs := make([]string, 0, len(c.RPCURLs))
	for _, n := range c.Networks {
		if u, ok := c.RPCURLs[n]; ok {
			rpcs = append(rpcs, n+"="+redactURL(u))
		}
	}
	metrics := c.MetricsAddr
	if metrics == "" {
		metrics = "(off)"
	}
	return fmt.Sprintf(
		"config{ networks=%s, rpc_overrides=[%s], poll=%s, notify=%.2f/s burst %d, data=%s, journal=%s, retention=%s, metrics=%s, bot_token=%s, log_level=%s }",
		strings.Join(c.Networks, ","),
		strings.Join(rpcs, " "),
		c.PollInterval,
		c.NotifyRate,
		c.NotifyBurst,
		c.DataPath,
		c.JournalPath,
		c.JournalRetention,
		metrics,
		redactToken(c.BotAccessToken),
		c.LogLevel,
	)
}

func redactToken(tok string) string {
	if len(tok) > 6 {
		return tok[:6] + "...(redacted)"
	}
	if tok == "" {
		return "(empty)"
	}
	return "***"
}

// redactURL hides provider API keys, which appear either as a query
// parameter or as the last path segment (wss://host/v2/<key>).
func redactURL(u string) string {
	if parts := strings.SplitN(u, "api-key=", 2); len(parts) == 2 {
		tail := parts[1]
		if i := strings.IndexAny(tail, "&;"); i >= 0 {
			tail = tail[:i]
		}
		return strings.Replace(u, "api-key="+tail, "api-key=***", 1)
	}
	scheme := strings.Index(u, "://")
	last := strings.LastIndex(u, "/")
	if scheme < 0 || last <= scheme+2 || last == len(u)-1 {
		return u
	}
	if len(u)-last-1 >= 16 {
		return u[:last+1] + "***"
	}
	return u
}
