// Package config loads and validates the platform configuration.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full platform configuration, loaded from YAML with
// environment overrides for the secrets.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Backend    BackendConfig    `yaml:"backend"`
	Mail       MailConfig       `yaml:"mail"`
	Newsletter NewsletterConfig `yaml:"newsletter"`
	Market     MarketConfig     `yaml:"market"`
	News       NewsConfig       `yaml:"news"`
	Assistant  AssistantConfig  `yaml:"assistant"`
	Auth       AuthConfig       `yaml:"auth"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	IdleTimeout    time.Duration `yaml:"idle_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
	RatePerSecond  int           `yaml:"rate_per_second"`
	RateBurst      int           `yaml:"rate_burst"`
}

type BackendConfig struct {
	Endpoint   string `yaml:"endpoint"`
	ProjectID  string `yaml:"project_id"`
	APIKey     string `yaml:"api_key"`
	DatabaseID string `yaml:"database_id"`
}

type MailConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	From    string `yaml:"from"`
}

type NewsletterConfig struct {
	Password    string `yaml:"password"`
	Subject     string `yaml:"subject"`
	Concurrency int    `yaml:"concurrency"`
}

type MarketConfig struct {
	BaseURL       string `yaml:"base_url"`
	APIKey        string `yaml:"api_key"`
	RatePerMinute int    `yaml:"rate_per_minute"`
}

type NewsConfig struct {
	BaseURL string `yaml:"base_url"`
}

type AssistantConfig struct {
	Model   string `yaml:"model"`
	Enabled *bool  `yaml:"enabled"`
}

type AuthConfig struct {
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// Load reads the configuration file, applies environment overrides and
// defaults, and validates that the required secrets are present.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	setIfEnv(&c.Server.Addr, "SERVER_ADDR")
	setIfEnv(&c.Backend.Endpoint, "APPWRITE_ENDPOINT")
	setIfEnv(&c.Backend.ProjectID, "APPWRITE_PROJECT_ID")
	setIfEnv(&c.Backend.APIKey, "APPWRITE_API_KEY")
	setIfEnv(&c.Mail.APIKey, "RESEND_API_KEY")
	setIfEnv(&c.Mail.From, "MAIL_FROM")
	setIfEnv(&c.Newsletter.Password, "NEWSLETTER_PASSWORD")
	setIfEnv(&c.Market.APIKey, "COINGECKO_API_KEY")
	setIfEnv(&c.Auth.JWTSecret, "JWT_SECRET")

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		c.Server.AllowedOrigins = splitAndTrim(origins)
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 60 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 120 * time.Second
	}
	if c.Server.RatePerSecond == 0 {
		c.Server.RatePerSecond = 20
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = 40
	}
	if c.Backend.DatabaseID == "" {
		c.Backend.DatabaseID = "crypto_portfolio"
	}
	if c.Mail.From == "" {
		c.Mail.From = "Crypto Talks <news@crypto-talks.dev>"
	}
}

// Validate checks that every required secret is present. Values are treated
// as opaque; only presence is enforced.
func (c *Config) Validate() error {
	var missing []string
	if c.Backend.Endpoint == "" {
		missing = append(missing, "backend.endpoint")
	}
	if c.Backend.ProjectID == "" {
		missing = append(missing, "backend.project_id")
	}
	if c.Backend.APIKey == "" {
		missing = append(missing, "backend.api_key")
	}
	if c.Mail.APIKey == "" {
		missing = append(missing, "mail.api_key")
	}
	if c.Newsletter.Password == "" {
		missing = append(missing, "newsletter.password")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "auth.jwt_secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// AssistantEnabled reports whether the LLM features should start. The
// assistant defaults to on when a Gemini API key is present.
func (c *Config) AssistantEnabled() bool {
	if c.Assistant.Enabled != nil {
		return *c.Assistant.Enabled
	}
	return os.Getenv("GEMINI_API_KEY") != ""
}

func setIfEnv(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
