// Package config loads service settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/mailer"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Session  SessionConfig  `yaml:"session"`
	Signup   SignupConfig   `yaml:"signup"`
	Mail     MailConfig     `yaml:"mail"`
	Rewards  RewardsConfig  `yaml:"rewards"`
	Carbon   CarbonConfig   `yaml:"carbon"`
}

type HTTPConfig struct {
	Addr          string `yaml:"addr"`
	PublicBaseURL string `yaml:"public_base_url"`
	SignInPath    string `yaml:"signin_path"`
	SecureCookie  bool   `yaml:"secure_cookie"`
}

type DatabaseConfig struct {
	// URL selects the store; empty means the in-memory store.
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
}

type SessionConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
	TTL    string `yaml:"ttl"`
}

type SignupConfig struct {
	PasswordMinLength       int    `yaml:"password_min_length"`
	ResetClearsVerification bool   `yaml:"reset_clears_verification"`
	VerifyTemplateID        string `yaml:"verify_template_id"`
	ResetTemplateID         string `yaml:"reset_template_id"`
}

type MailConfig struct {
	Endpoint   string `yaml:"endpoint"`
	ServiceID  string `yaml:"service_id"`
	PublicKey  string `yaml:"public_key"`
	PrivateKey string `yaml:"private_key"`
	Timeout    string `yaml:"timeout"`
}

type RewardsConfig struct {
	PageSize           int  `yaml:"page_size"`
	MemoizeCursors     bool `yaml:"memoize_cursors"`
	ExpiringWithinDays int  `yaml:"expiring_within_days"`
}

type CarbonConfig struct {
	PageBytes int64 `yaml:"page_bytes"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Addr:          "0.0.0.0:8431",
			PublicBaseURL: "http://localhost:8431",
			SignInPath:    "/signin",
		},
		Database: DatabaseConfig{MaxConns: 10},
		Session:  SessionConfig{Issuer: "rewards", TTL: "24h"},
		Signup: SignupConfig{
			PasswordMinLength:       6,
			ResetClearsVerification: true,
			VerifyTemplateID:        "template_verify",
			ResetTemplateID:         "template_reset",
		},
		Mail:    MailConfig{Timeout: "10s"},
		Rewards: RewardsConfig{PageSize: 10, ExpiringWithinDays: 7},
		Carbon:  CarbonConfig{PageBytes: 2_000_000},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	if c.Rewards.PageSize <= 0 {
		return fmt.Errorf("rewards.page_size must be positive")
	}
	if c.Rewards.ExpiringWithinDays < 0 {
		return fmt.Errorf("rewards.expiring_within_days must not be negative")
	}
	if _, err := c.SessionTTL(); err != nil {
		return fmt.Errorf("session.ttl: %w", err)
	}
	if _, err := c.MailTimeout(); err != nil {
		return fmt.Errorf("mail.timeout: %w", err)
	}
	return nil
}

func (c *Config) SessionTTL() (time.Duration, error) { return time.ParseDuration(c.Session.TTL) }

func (c *Config) MailTimeout() (time.Duration, error) { return time.ParseDuration(c.Mail.Timeout) }

// ExpiringWithin is the expiring window of the reward statistics.
func (c *Config) ExpiringWithin() time.Duration {
	return time.Duration(c.Rewards.ExpiringWithinDays) * 24 * time.Hour
}

func (c *Config) applyEnvOverrides() {
	setString(&c.HTTP.Addr, "HTTP_ADDR")
	setString(&c.HTTP.PublicBaseURL, "PUBLIC_BASE_URL")
	setString(&c.Database.URL, "DATABASE_URL")
	setString(&c.Session.Secret, "SESSION_SECRET")
	setString(&c.Session.TTL, "SESSION_TTL")
	setString(&c.Mail.Endpoint, "EMAILJS_ENDPOINT")
	setString(&c.Mail.ServiceID, "EMAILJS_SERVICE_ID")
	setString(&c.Mail.PublicKey, "EMAILJS_PUBLIC_KEY")
	setString(&c.Mail.PrivateKey, "EMAILJS_PRIVATE_KEY")
	setString(&c.Signup.VerifyTemplateID, "EMAILJS_VERIFY_TEMPLATE_ID")
	setString(&c.Signup.ResetTemplateID, "EMAILJS_RESET_TEMPLATE_ID")
	setBool(&c.Signup.ResetClearsVerification, "RESET_CLEARS_VERIFICATION")
	setBool(&c.Rewards.MemoizeCursors, "REWARDS_MEMOIZE_CURSORS")
	setBool(&c.HTTP.SecureCookie, "SECURE_COOKIE")
	if v, err := strconv.ParseInt(os.Getenv("CARBON_PAGE_BYTES"), 10, 64); err == nil {
		c.Carbon.PageBytes = v
	}
	if c.Mail.Endpoint == "" && c.Mail.ServiceID != "" {
		c.Mail.Endpoint = mailer.DefaultEndpoint
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		*dst = v
	}
}
