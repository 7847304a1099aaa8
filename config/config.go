package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type ServerConfig struct {
	Port          int    `toml:"port"`
	SecureCookies bool   `toml:"secure_cookies"` // true behind HTTPS
	Templates     string `toml:"templates"`
	Locales       string `toml:"locales"`
	Assets        string `toml:"assets"`
}

type APIConfig struct {
	BaseURL        string `toml:"base_url"` // Remote mail API root, e.g. http://localhost:8000
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Token          string `toml:"token"` // Optional bearer token sent to the remote API
}

type JWTConfig struct {
	Secret   string `toml:"secret"` // For JWT signing
	TTLHours int    `toml:"ttl_hours"`
}

type StorageConfig struct {
	Folder string `toml:"folder"`
}

type SearchConfig struct {
	DefaultK int `toml:"default_k"`
}

type RateLimitConfig struct {
	Requests      int `toml:"requests"`
	WindowSeconds int `toml:"window_seconds"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type Config struct {
	Server    ServerConfig    `toml:"server"`
	API       APIConfig       `toml:"api"`
	JWT       JWTConfig       `toml:"jwt"`
	Storage   StorageConfig   `toml:"storage"`
	Search    SearchConfig    `toml:"search"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	Log       LogConfig       `toml:"log"`
}

// Environment overrides applied after the file is decoded
const (
	EnvAPIBaseURL = "MAILDASH_API_BASE_URL"
	EnvJWTSecret  = "MAILDASH_JWT_SECRET"
)

// Default returns the configuration used when no file is present
func Default() *Config {
	var config Config

	config.Server.Port = 3000
	config.Server.Templates = "./templates"
	config.Server.Locales = "./locales"
	config.Server.Assets = "./assets"

	config.API.BaseURL = "http://localhost:8000"
	config.API.TimeoutSeconds = 60

	config.JWT.TTLHours = 24

	config.Storage.Folder = "./data"

	config.Search.DefaultK = 5

	config.RateLimit.Requests = 100
	config.RateLimit.WindowSeconds = 60

	config.Log.Level = "info"

	return &config
}

// LoadConfig reads the TOML file at filepath on top of Default. A missing
// file is not an error.
func LoadConfig(filepath string) (*Config, error) {
	config := Default()

	if filepath != "" {
		if _, err := toml.DecodeFile(filepath, config); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to decode %s: %w", filepath, err)
			}
		}
	}

	if v := os.Getenv(EnvAPIBaseURL); v != "" {
		config.API.BaseURL = v
	}
	if v := os.Getenv(EnvJWTSecret); v != "" {
		config.JWT.Secret = v
	}

	config.API.BaseURL = strings.TrimRight(config.API.BaseURL, "/")

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	return config, nil
}

// Validate checks the values that would otherwise fail at first use
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("api.base_url %q must be an absolute http(s) URL", c.API.BaseURL)
	}
	if c.API.TimeoutSeconds <= 0 {
		return fmt.Errorf("api.timeout_seconds must be positive, got %d", c.API.TimeoutSeconds)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Storage.Folder == "" {
		return fmt.Errorf("storage.folder is required")
	}
	if c.Search.DefaultK <= 0 {
		return fmt.Errorf("search.default_k must be positive, got %d", c.Search.DefaultK)
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("rate_limit requests and window_seconds must be positive")
	}
	if c.JWT.TTLHours <= 0 {
		return fmt.Errorf("jwt.ttl_hours must be positive, got %d", c.JWT.TTLHours)
	}
	return nil
}

// Timeout is the per-request timeout for the remote API
func (c *APIConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Window is the rate limiter window
func (c *RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// TTL is the lifetime of issued access tokens
func (c *JWTConfig) TTL() time.Duration {
	return time.Duration(c.TTLHours) * time.Hour
}

// GetSecurityHeaders returns the extra headers sent when cookies are secure
func (c *Config) GetSecurityHeaders() map[string]string {
	headers := make(map[string]string)

	if c.Server.SecureCookies {
		headers["Strict-Transport-Security"] = "max-age=31536000; includeSubDomains"
		headers["Referrer-Policy"] = "strict-origin-when-cross-origin"
	}

	return headers
}
