// Package config handles TOML configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"os"
	"slices"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/apiproxy/config.toml",
	"configs/config.toml",
}

// ReservedRoutes are served by the gateway itself and cannot host metrics.
var ReservedRoutes = []string{"/ApiProxy", "/apiproxy", "/healthz", "/proxy/status"}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config   string `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host     string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port     int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	LogLevel string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig      `toml:"server"`
	Upstream UpstreamConfig    `toml:"upstream"`
	Servers  map[string]string `toml:"servers"`
	Gateway  GatewayConfig     `toml:"gateway"`
	Log      LogConfig         `toml:"log"`
	Metrics  MetricsConfig     `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (8000); TOML cannot distinguish 0 from unset
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// UpstreamConfig holds upstream connection settings shared by all servers.
type UpstreamConfig struct {
	TimeoutSeconds   int   `toml:"timeout_seconds"`
	IdleConnections  int   `toml:"idle_connections"`
	MaxResponseBytes int64 `toml:"max_response_bytes"`
}

// GatewayConfig toggles behavior that differs from the legacy gateway.
type GatewayConfig struct {
	// StrictRepresentation rejects an unknown representation before the
	// upstream call instead of after it.
	StrictRepresentation bool `toml:"strict_representation"`
	// EscapeQuery percent-encodes query keys and values.
	EscapeQuery bool `toml:"escape_query"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/apiproxy/config.toml then configs/config.toml.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path == "" {
		return nil, fmt.Errorf("config: no config file found (searched %v)", configSearchPaths)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.filePath = path
	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

// validate reports every problem found in the file, not just the first.
func (c *Config) validate() error {
	return errors.Join(
		c.validateServers(),
		c.validateLimits(),
		c.Log.validate(),
		c.Metrics.validate(),
	)
}

func (c *Config) validateServers() error {
	if len(c.Servers) == 0 {
		return errors.New("servers: at least one server must be configured")
	}
	var errs []error
	for _, name := range slices.Sorted(maps.Keys(c.Servers)) {
		if name == "" {
			errs = append(errs, errors.New("servers: empty server name"))
			continue
		}
		if err := validateBaseURL(c.Servers[name]); err != nil {
			errs = append(errs, fmt.Errorf("servers.%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) validateLimits() error {
	var errs []error
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be 0-65535; got %d", c.Server.Port))
	}
	nonNegative := []struct {
		key string
		val int64
	}{
		{"server.body_max_bytes", c.Server.BodyMaxBytes},
		{"upstream.timeout_seconds", int64(c.Upstream.TimeoutSeconds)},
		{"upstream.idle_connections", int64(c.Upstream.IdleConnections)},
		{"upstream.max_response_bytes", c.Upstream.MaxResponseBytes},
	}
	for _, f := range nonNegative {
		if f.val < 0 {
			errs = append(errs, fmt.Errorf("%s must be non-negative; got %d", f.key, f.val))
		}
	}
	if rl := c.Server.RateLimit; rl.Enabled && rl.RequestsPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", rl.RequestsPerSecond))
	}
	return errors.Join(errs...)
}

func (l *LogConfig) validate() error {
	var errs []error
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		errs = append(errs, fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", l.Level))
	}
	switch strings.ToLower(l.Format) {
	case "json", "text", "":
	default:
		errs = append(errs, fmt.Errorf("log.format must be one of: json, text; got %q", l.Format))
	}
	return errors.Join(errs...)
}

// validate checks the scrape path only when metrics are enabled.
func (m *MetricsConfig) validate() error {
	if !m.Enabled || m.Path == "" {
		return nil
	}
	if m.Path[0] != '/' {
		return fmt.Errorf("metrics.path must start with '/'; got %q", m.Path)
	}
	for _, reserved := range ReservedRoutes {
		if m.Path == reserved || strings.HasPrefix(m.Path, reserved+"/") {
			return fmt.Errorf("metrics.path %q conflicts with reserved route %q", m.Path, reserved)
		}
	}
	return nil
}

// validateBaseURL requires an absolute http or https URL. The value is kept
// verbatim; option paths are appended to it without slash normalization.
func validateBaseURL(base string) error {
	if base == "" {
		return errors.New("base URL is required")
	}
	u, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("must use http or https; got %q", base)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", base)
	}
	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields (Port, BodyMaxBytes, etc.), zero means "unset" because TOML
// cannot distinguish between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 1024 * 1024 // 1 MB
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 100
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.Upstream.MaxResponseBytes == 0 {
		c.Upstream.MaxResponseBytes = 32 * 1024 * 1024 // 32 MB
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnPermissions logs a warning if the config file is readable by group or others.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
