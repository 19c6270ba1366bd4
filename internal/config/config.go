// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/robfig/cron/v3"

	"cubesql/internal/dialect"
)

// Discovery drivers accepted in CUBESQL_DISCOVERY_DRIVER.
var discoveryDrivers = map[string]bool{"duckdb": true, "sqlite3": true}

// Config holds the configuration of the CLI and the HTTP API.
type Config struct {
	Dialect         string // default dialect of new models (default "duckdb")
	ModelDBPath     string // path to the SQLite model store
	DiscoveryDriver string // duckdb or sqlite3; empty disables discovery
	DiscoveryDSN    string // data source name of the discovery database
	ListenAddr      string // HTTP listen address (default ":8080")
	LogLevel        string // log level: debug, info, warn, error (default "info")

	// Rate limiting
	RateLimitRPS   float64 // sustained requests per second (default 100)
	RateLimitBurst int     // burst capacity (default 200)

	// CORS
	CORSAllowedOrigins []string // allowed origins for CORS (default: ["*"])

	// SchemaRefreshCron schedules invalidation of resolved entity types so
	// discovered tables are re-read. Empty disables the schedule.
	SchemaRefreshCron string

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DiscoveryEnabled returns true when a discovery database is configured.
func (c *Config) DiscoveryEnabled() bool {
	return c.DiscoveryDriver != "" && c.DiscoveryDSN != ""
}

// LoadFromEnv loads configuration from environment variables.
// Invalid values fall back to defaults and are reported in Warnings.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Dialect:           strings.ToLower(strings.TrimSpace(os.Getenv("CUBESQL_DIALECT"))),
		ModelDBPath:       os.Getenv("CUBESQL_MODEL_DB"),
		DiscoveryDriver:   strings.ToLower(strings.TrimSpace(os.Getenv("CUBESQL_DISCOVERY_DRIVER"))),
		DiscoveryDSN:      os.Getenv("CUBESQL_DISCOVERY_DSN"),
		ListenAddr:        os.Getenv("LISTEN_ADDR"),
		LogLevel:          os.Getenv("LOG_LEVEL"),
		SchemaRefreshCron: strings.TrimSpace(os.Getenv("SCHEMA_REFRESH_CRON")),
	}

	// Rate limiting
	if v := os.Getenv("RATE_LIMIT_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.RateLimitRPS = f
		} else {
			cfg.warnf("RATE_LIMIT_RPS %q is invalid, using default", v)
		}
	}
	if v := os.Getenv("RATE_LIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateLimitBurst = n
		} else {
			cfg.warnf("RATE_LIMIT_BURST %q is invalid, using default", v)
		}
	}

	// CORS
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = compactNonEmpty(origins)
	}

	if cfg.Dialect != "" {
		if _, err := dialect.Lookup(cfg.Dialect); err != nil {
			cfg.warnf("CUBESQL_DIALECT %q is not supported, using duckdb", cfg.Dialect)
			cfg.Dialect = ""
		}
	}
	if cfg.DiscoveryDriver != "" && !discoveryDrivers[cfg.DiscoveryDriver] {
		cfg.warnf("CUBESQL_DISCOVERY_DRIVER %q is not supported, discovery disabled", cfg.DiscoveryDriver)
		cfg.DiscoveryDriver = ""
	}
	if cfg.DiscoveryDriver != "" && cfg.DiscoveryDSN == "" {
		cfg.warnf("CUBESQL_DISCOVERY_DSN is not set, discovery disabled")
	}
	if cfg.SchemaRefreshCron != "" {
		if _, err := cron.ParseStandard(cfg.SchemaRefreshCron); err != nil {
			cfg.warnf("SCHEMA_REFRESH_CRON %q is invalid: %v", cfg.SchemaRefreshCron, err)
			cfg.SchemaRefreshCron = ""
		}
	}

	// Defaults
	if cfg.Dialect == "" {
		cfg.Dialect = "duckdb"
	}
	if cfg.ModelDBPath == "" {
		cfg.ModelDBPath = "cubesql.sqlite"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.RateLimitRPS == 0 {
		cfg.RateLimitRPS = 100
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 200
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{"*"}
	}
	return cfg, nil
}

func (c *Config) warnf(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(strings.TrimPrefix(key, "export "))
		value = stripQuotes(strings.TrimSpace(value))
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes matching surrounding double or single quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
