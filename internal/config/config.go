// Package config loads server configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Redirect URI allowlist modes.
const (
	AllowlistExact  = "exact"
	AllowlistPrefix = "prefix"
)

// Token modes.
const (
	TokenModeJWT     = "jwt"
	TokenModeSession = "session"
)

// RateLimit is a ceiling per window for one protected surface.
type RateLimit struct {
	Max    int           `env:"MAX"`
	Window time.Duration `env:"WINDOW"`
}

// Config holds all environment-based configuration for status-mcp.
type Config struct {
	// Environment controls log format
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL"`

	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8090"`
	// ServerURL is the public base URL used to build absolute discovery
	// URLs and as the token issuer.
	ServerURL string `env:"SERVER_URL"`
	// TrustProxyHeaders makes X-Forwarded-For / X-Real-IP the source IP
	// for rate limiting and audit logs.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`

	StateDBPath string `env:"STATE_DB_PATH"`

	// MasterKey is the operator secret all encryption and token signing
	// keys derive from.
	MasterKey string `env:"MASTER_KEY"`

	RedirectURIAllowlist     string `env:"REDIRECT_URI_ALLOWLIST"`
	RedirectURIAllowlistMode string `env:"REDIRECT_URI_ALLOWLIST_MODE" envDefault:"exact"`
	MaxClients               int    `env:"MAX_CLIENTS" envDefault:"1000"`

	// GlobalAPIKeys is a single key or a comma-separated list.
	GlobalAPIKeys       string        `env:"GLOBAL_API_KEYS"`
	UserAPIKeysEnabled  bool          `env:"USER_API_KEYS_ENABLED" envDefault:"false"`
	APIKeyInactiveAfter time.Duration `env:"API_KEY_INACTIVE_AFTER" envDefault:"2160h"`

	TokenMode string        `env:"TOKEN_MODE" envDefault:"jwt"`
	TokenTTL  time.Duration `env:"TOKEN_TTL" envDefault:"720h"`
	CodeTTL   time.Duration `env:"CODE_TTL" envDefault:"60s"`

	ConnectFieldsFile string `env:"CONNECT_FIELDS_FILE"`

	RateLimitRedisURL    string        `env:"RATE_LIMIT_REDIS_URL"`
	RateLimitSweepPeriod time.Duration `env:"RATE_LIMIT_SWEEP_PERIOD" envDefault:"1m"`
	RegisterLimit        RateLimit     `envPrefix:"RATE_LIMIT_REGISTER_"`
	ConnectLimit         RateLimit     `envPrefix:"RATE_LIMIT_CONNECT_"`
	TokenLimit           RateLimit     `envPrefix:"RATE_LIMIT_TOKEN_"`
	APIKeyLimit          RateLimit     `envPrefix:"RATE_LIMIT_API_KEYS_"`
	MCPLimit             RateLimit     `envPrefix:"RATE_LIMIT_MCP_"`

	PurgeInterval time.Duration `env:"PURGE_INTERVAL" envDefault:"5m"`
}

// defaultLimits apply to any rate limit left unset.
var defaultLimits = map[string]RateLimit{
	"register": {Max: 10, Window: time.Minute},
	"connect":  {Max: 20, Window: 15 * time.Minute},
	"token":    {Max: 30, Window: time.Minute},
	"api_keys": {Max: 5, Window: time.Hour},
	"mcp":      {Max: 120, Window: time.Minute},
}

// warnInsecureEnvFile checks whether the .env file (if present) has
// overly permissive permissions. On Unix systems, group or world
// readable files risk exposing the master key to other users.
func warnInsecureEnvFile() {
	if runtime.GOOS == "windows" {
		return
	}

	info, err := os.Stat(".env")
	if err != nil {
		return // file does not exist, nothing to check
	}

	mode := info.Mode().Perm()
	if mode&0o077 != 0 {
		log.Printf("WARNING: .env file has insecure permissions %04o; recommended 0600", mode)
	}
}

// Load reads configuration from environment variables.
// It first attempts to load a .env file if present, then parses env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	warnInsecureEnvFile()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")

	return cfg, nil
}

func (c *Config) applyDefaults() {
	for name, rl := range c.limits() {
		def := defaultLimits[name]
		if rl.Max == 0 {
			rl.Max = def.Max
		}

		if rl.Window == 0 {
			rl.Window = def.Window
		}
	}
}

// limits returns pointers to every rate limit keyed by surface name.
func (c *Config) limits() map[string]*RateLimit {
	return map[string]*RateLimit{
		"register": &c.RegisterLimit,
		"connect":  &c.ConnectLimit,
		"token":    &c.TokenLimit,
		"api_keys": &c.APIKeyLimit,
		"mcp":      &c.MCPLimit,
	}
}

func (c *Config) validate() error {
	if c.ServerURL == "" {
		return errors.New("SERVER_URL is required")
	}

	u, err := url.Parse(c.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("SERVER_URL must be an absolute http(s) URL")
	}

	switch c.RedirectURIAllowlistMode {
	case AllowlistExact, AllowlistPrefix:
	default:
		return fmt.Errorf("REDIRECT_URI_ALLOWLIST_MODE must be %q or %q", AllowlistExact, AllowlistPrefix)
	}

	switch c.TokenMode {
	case TokenModeJWT, TokenModeSession:
	default:
		return fmt.Errorf("TOKEN_MODE must be %q or %q", TokenModeJWT, TokenModeSession)
	}

	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be positive")
	}

	if c.CodeTTL <= 0 || c.CodeTTL > 10*time.Minute {
		return errors.New("CODE_TTL must be between 1s and 10m")
	}

	if c.MaxClients <= 0 {
		return errors.New("MAX_CLIENTS must be positive")
	}

	for name, rl := range c.limits() {
		if rl.Max < 0 || rl.Window < 0 {
			return fmt.Errorf("RATE_LIMIT_%s_* must not be negative", strings.ToUpper(name))
		}
	}

	return nil
}

// ParseGlobalAPIKeys splits GLOBAL_API_KEYS on commas, trimming blanks.
func (c *Config) ParseGlobalAPIKeys() []string {
	return splitList(c.GlobalAPIKeys)
}

// ParseRedirectAllowlist splits REDIRECT_URI_ALLOWLIST on commas.
func (c *Config) ParseRedirectAllowlist() []string {
	return splitList(c.RedirectURIAllowlist)
}

func splitList(s string) []string {
	var out []string

	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}

	return out
}
