// Package config provides application configuration management with support
// for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Server   ServerConfig
	Database DatabaseConfig
	Upstream UpstreamConfig
	Sync     SyncConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 30s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
	QueryTimeout time.Duration // Per-request query engine timeout (default: 10s)
}

// DatabaseConfig holds local cache database configuration.
type DatabaseConfig struct {
	// Path to the SQLite database file (default: {data}/mirror.db).
	Path string
	// DataPath is the base directory for locally persisted state.
	DataPath string
}

// UpstreamConfig holds upstream catalog API configuration.
type UpstreamConfig struct {
	// BaseURL of the upstream catalog query API.
	BaseURL string
	// APIKey sent as a bearer token on every request (optional).
	APIKey string
	// Timeout per upstream HTTP request (default: 30s).
	Timeout time.Duration
	// RequestsPerSecond per entity-type endpoint (default: 4).
	RequestsPerSecond float64
	// PageSize for paged bulk fetches (default: 200).
	PageSize int
}

// SyncConfig holds synchronization scheduling configuration.
type SyncConfig struct {
	// Enabled allows disabling the background scheduler entirely (default: true).
	Enabled bool
	// IncrementalInterval between incremental syncs (default: 15m).
	IncrementalInterval time.Duration
	// FullInterval between full syncs; full syncs are the only mechanism
	// that reconciles upstream deletions (default: 24h).
	FullInterval time.Duration
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig() (*Config, error) {
	env := flag.String("env", "", "Environment (development, staging, production)")
	logLevel := flag.String("log-level", "", "Log level (debug, info, warn, error)")
	dataPath := flag.String("data-path", "", "Base path for local data storage")
	dbPath := flag.String("db-path", "", "Path to the SQLite cache database")

	serverPort := flag.String("port", "", "Server port (default: 8080)")
	readTimeout := flag.String("read-timeout", "", "HTTP read timeout (default: 15s)")
	writeTimeout := flag.String("write-timeout", "", "HTTP write timeout (default: 30s)")
	idleTimeout := flag.String("idle-timeout", "", "HTTP idle timeout (default: 60s)")
	queryTimeout := flag.String("query-timeout", "", "Query engine per-request timeout (default: 10s)")

	upstreamURL := flag.String("upstream-url", "", "Base URL of the upstream catalog API")
	upstreamKey := flag.String("upstream-key", "", "API key for the upstream catalog")
	upstreamTimeout := flag.String("upstream-timeout", "", "Upstream request timeout (default: 30s)")
	upstreamRPS := flag.String("upstream-rps", "", "Upstream requests per second per endpoint (default: 4)")
	upstreamPageSize := flag.String("upstream-page-size", "", "Upstream fetch page size (default: 200)")

	syncEnabled := flag.String("sync-enabled", "", "Enable the background sync scheduler (default: true)")
	incrementalInterval := flag.String("sync-incremental-interval", "", "Interval between incremental syncs (default: 15m)")
	fullInterval := flag.String("sync-full-interval", "", "Interval between full syncs (default: 24h)")

	envFile := flag.String("env-file", ".env", "Path to .env file")

	flag.Parse()

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(*envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(*env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(*logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port: getConfigValue(*serverPort, "SERVER_PORT", "8080"),
		},
		Database: DatabaseConfig{
			Path:     getConfigValue(*dbPath, "DB_PATH", ""),
			DataPath: getConfigValue(*dataPath, "DATA_PATH", ""),
		},
		Upstream: UpstreamConfig{
			BaseURL:           getConfigValue(*upstreamURL, "UPSTREAM_URL", ""),
			APIKey:            getConfigValue(*upstreamKey, "UPSTREAM_API_KEY", ""),
			RequestsPerSecond: getFloatConfigValue(*upstreamRPS, "UPSTREAM_RPS", 4),
			PageSize:          getIntConfigValue(*upstreamPageSize, "UPSTREAM_PAGE_SIZE", 200),
		},
		Sync: SyncConfig{
			Enabled: getBoolConfigValue(*syncEnabled, "SYNC_ENABLED", true),
		},
	}

	// Parse durations.
	durations := []struct {
		dst      *time.Duration
		flagVal  string
		envKey   string
		fallback string
	}{
		{&cfg.Server.ReadTimeout, *readTimeout, "SERVER_READ_TIMEOUT", "15s"},
		{&cfg.Server.WriteTimeout, *writeTimeout, "SERVER_WRITE_TIMEOUT", "30s"},
		{&cfg.Server.IdleTimeout, *idleTimeout, "SERVER_IDLE_TIMEOUT", "60s"},
		{&cfg.Server.QueryTimeout, *queryTimeout, "QUERY_TIMEOUT", "10s"},
		{&cfg.Upstream.Timeout, *upstreamTimeout, "UPSTREAM_TIMEOUT", "30s"},
		{&cfg.Sync.IncrementalInterval, *incrementalInterval, "SYNC_INCREMENTAL_INTERVAL", "15m"},
		{&cfg.Sync.FullInterval, *fullInterval, "SYNC_FULL_INTERVAL", "24h"},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flagVal, d.envKey, d.fallback)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", d.envKey, raw, err)
		}
		*d.dst = parsed
	}

	// Expand and default data/database paths.
	if err := cfg.expandPaths(); err != nil {
		return nil, fmt.Errorf("invalid data path: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, staging, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	if c.Database.Path == "" {
		return errors.New("database path cannot be empty after expansion")
	}

	// UPSTREAM_URL may be empty in development; the sync scheduler refuses
	// to start without it but the query engine still serves cached data.
	if c.Sync.Enabled && c.Upstream.BaseURL == "" {
		return errors.New("UPSTREAM_URL is required when sync is enabled")
	}

	if c.Upstream.PageSize < 1 || c.Upstream.PageSize > 1000 {
		return fmt.Errorf("upstream page size %d out of range [1,1000]", c.Upstream.PageSize)
	}

	return nil
}

// expandPaths expands ~ in the data path, makes it absolute, and derives
// the database path default ({data}/mirror.db).
func (c *Config) expandPaths() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	defaultData := filepath.Join(homeDir, "MirrorServer", "data")

	expanded, err := expandPath(c.Database.DataPath, defaultData)
	if err != nil {
		return err
	}
	c.Database.DataPath = expanded

	dbPath, err := expandPath(c.Database.Path, filepath.Join(c.Database.DataPath, "mirror.db"))
	if err != nil {
		return err
	}
	c.Database.Path = dbPath
	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getBoolConfigValue returns a bool from flag, env var, or default.
// Accepts: "true", "1", "yes" (case-insensitive) as true; anything else is false.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	strValue = strings.ToLower(strValue)
	return strValue == "true" || strValue == "1" || strValue == "yes"
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float64 from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(strValue, "%g", &result); err != nil {
		return defaultValue
	}
	return result
}

// loadEnvFile loads environment variables from a .env file.
// Format: KEY=value (one per line, # for comments).
func loadEnvFile(path string) error {
	file, err := os.Open(path) //#nosec G304 -- Config file path from user input is expected
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)

		// Env vars take precedence over .env file.
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("failed to set env var %s: %w", key, err)
			}
		}
	}

	return scanner.Err()
}
