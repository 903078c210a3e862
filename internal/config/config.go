// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading for taskpilot.
//
// Configuration is TOML with sensible defaults, environment variable
// overrides, and validation. The default location is ~/.taskpilot/config.toml.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Resolver strategy names accepted in [command].
const (
	ResolverKeyword = "keyword"
	ResolverOracle  = "oracle"
)

// Matcher backend names accepted in [command].
const (
	MatcherLevenshtein = "levenshtein"
	MatcherRanked      = "ranked"
)

// Config represents the complete taskpilot configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Store   StoreConfig   `toml:"store"`
	Oracle  OracleConfig  `toml:"oracle"`
	Command CommandConfig `toml:"command"`
	Auth    AuthConfig    `toml:"auth"`
}

// ServerConfig contains the HTTP listener configuration.
type ServerConfig struct {
	// Host is the bind address. Defaults to loopback; set 0.0.0.0 to
	// expose the service beyond the local machine.
	Host string `toml:"host"`
	// Port is the listen port.
	Port int `toml:"port"`
	// RateLimitPerSec is the sustained request rate allowed per client IP.
	RateLimitPerSec float64 `toml:"rate_limit_per_sec"`
	// RateLimitBurst is the burst allowance per client IP.
	RateLimitBurst int `toml:"rate_limit_burst"`
	// SecureCookies marks session cookies Secure. Enable whenever the
	// service is reached over HTTPS.
	SecureCookies bool `toml:"secure_cookies"`
}

// StoreConfig contains persistence configuration.
type StoreConfig struct {
	// Path is the SQLite database file (empty = ~/.taskpilot/taskpilot.db).
	Path string `toml:"path"`
}

// OracleConfig contains the language-model endpoint configuration.
type OracleConfig struct {
	// URL is the Ollama-compatible API base URL.
	URL string `toml:"url"`
	// Model is the model used for command resolution. This field is
	// hot-reloadable: the config watcher applies changes to a running
	// server without restart.
	Model string `toml:"model"`
	// TimeoutSecs bounds each oracle request.
	TimeoutSecs int `toml:"timeout_secs"`
}

// CommandConfig selects the command resolution strategy.
type CommandConfig struct {
	// Resolver is "keyword" (deterministic cascade, no model needed) or
	// "oracle" (model-backed tool calling).
	Resolver string `toml:"resolver"`
	// Matcher is the fuzzy backend used to resolve todo references:
	// "levenshtein" or "ranked".
	Matcher string `toml:"matcher"`
}

// AuthConfig contains session configuration.
type AuthConfig struct {
	// JWTSecret signs session tokens. When empty, the server generates an
	// ephemeral secret at startup and all sessions die with the process.
	JWTSecret string `toml:"jwt_secret"`
}

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8787,
			RateLimitPerSec: 10,
			RateLimitBurst:  20,
			SecureCookies:   false,
		},
		Store: StoreConfig{
			Path: "", // resolved lazily against the config dir
		},
		Oracle: OracleConfig{
			URL:         "http://127.0.0.1:11434",
			Model:       "qwen2.5-coder:14b",
			TimeoutSecs: 30,
		},
		Command: CommandConfig{
			Resolver: ResolverKeyword,
			Matcher:  MatcherLevenshtein,
		},
		Auth: AuthConfig{
			JWTSecret: "",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the taskpilot configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".taskpilot"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// StorePath returns the configured database path, falling back to the
// default location inside the config directory.
func (c *Config) StorePath() (string, error) {
	if c.Store.Path != "" {
		return c.Store.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "taskpilot.db"), nil
}

// Addr returns the host:port pair the server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// SplitAddr parses a host:port pair like the -addr flag accepts.
func SplitAddr(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	return host, port, nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the default config file. A missing file is
// not an error; defaults (plus environment overrides) apply.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	if _, statErr := os.Stat(path); statErr != nil {
		cfg := Default()
		cfg.ApplyEnvOverrides()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
		return cfg, nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific TOML file with full
// validation. Missing fields fall back to defaults; environment overrides
// are applied last.
func LoadFromPath(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}

	cfg.SetDefaults()
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SetDefaults fills in any missing or zero-value fields with defaults.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Server.Host == "" {
		c.Server.Host = defaults.Server.Host
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaults.Server.Port
	}
	if c.Server.RateLimitPerSec == 0 {
		c.Server.RateLimitPerSec = defaults.Server.RateLimitPerSec
	}
	if c.Server.RateLimitBurst == 0 {
		c.Server.RateLimitBurst = defaults.Server.RateLimitBurst
	}

	if c.Oracle.URL == "" {
		c.Oracle.URL = defaults.Oracle.URL
	}
	if c.Oracle.Model == "" {
		c.Oracle.Model = defaults.Oracle.Model
	}
	if c.Oracle.TimeoutSecs == 0 {
		c.Oracle.TimeoutSecs = defaults.Oracle.TimeoutSecs
	}

	if c.Command.Resolver == "" {
		c.Command.Resolver = defaults.Command.Resolver
	}
	if c.Command.Matcher == "" {
		c.Command.Matcher = defaults.Command.Matcher
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - TASKPILOT_HOST: overrides server.host
//   - TASKPILOT_PORT: overrides server.port
//   - TASKPILOT_DB: overrides store.path
//   - TASKPILOT_ORACLE_URL: overrides oracle.url
//   - TASKPILOT_MODEL: overrides oracle.model
//   - TASKPILOT_RESOLVER: overrides command.resolver
//   - TASKPILOT_JWT_SECRET: overrides auth.jwt_secret
func (c *Config) ApplyEnvOverrides() {
	if host := os.Getenv("TASKPILOT_HOST"); host != "" {
		c.Server.Host = host
	}
	if port := os.Getenv("TASKPILOT_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil {
			c.Server.Port = n
		}
	}
	if path := os.Getenv("TASKPILOT_DB"); path != "" {
		c.Store.Path = path
	}
	if u := os.Getenv("TASKPILOT_ORACLE_URL"); u != "" {
		c.Oracle.URL = u
	}
	if model := os.Getenv("TASKPILOT_MODEL"); model != "" {
		c.Oracle.Model = model
	}
	if resolver := os.Getenv("TASKPILOT_RESOLVER"); resolver != "" {
		c.Command.Resolver = resolver
	}
	if secret := os.Getenv("TASKPILOT_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("must be 1-65535, got %d", c.Server.Port),
		})
	}

	if c.Server.RateLimitPerSec < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.rate_limit_per_sec",
			Message: "must be non-negative",
		})
	}
	if c.Server.RateLimitBurst < 0 {
		errs = append(errs, ValidationError{
			Field:   "server.rate_limit_burst",
			Message: "must be non-negative",
		})
	}

	if c.Oracle.URL != "" {
		if u, err := url.Parse(c.Oracle.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "oracle.url",
				Message: fmt.Sprintf("invalid URL '%s'", c.Oracle.URL),
			})
		}
	}
	if c.Oracle.TimeoutSecs < 1 {
		errs = append(errs, ValidationError{
			Field:   "oracle.timeout_secs",
			Message: fmt.Sprintf("must be at least 1, got %d", c.Oracle.TimeoutSecs),
		})
	}

	validResolvers := map[string]bool{ResolverKeyword: true, ResolverOracle: true}
	if !validResolvers[strings.ToLower(c.Command.Resolver)] {
		errs = append(errs, ValidationError{
			Field:   "command.resolver",
			Message: fmt.Sprintf("invalid resolver '%s', must be one of: keyword, oracle", c.Command.Resolver),
		})
	}

	validMatchers := map[string]bool{MatcherLevenshtein: true, MatcherRanked: true}
	if !validMatchers[strings.ToLower(c.Command.Matcher)] {
		errs = append(errs, ValidationError{
			Field:   "command.matcher",
			Message: fmt.Sprintf("invalid matcher '%s', must be one of: levenshtein, ranked", c.Command.Matcher),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML saves the configuration to a TOML file. Config files carry the
// JWT secret, so they are created 0600 (owner read/write only).
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# taskpilot configuration file")
	fmt.Fprintln(file, "# Generated by taskpilot - edit with care")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}
