package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Redis      RedisConfig
	Session    SessionConfig
	Server     ServerConfig
	OAuth      OAuthConfig
	Slack      SlackConfig
	SelfHosted bool
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// SessionConfig holds JWT session token settings.
type SessionConfig struct {
	Secret string //nolint:gosec // G117: JWT signing secret config
	TTL    time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	PublicURL    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// OAuthProviderConfig holds one OAuth2 provider's credentials.
type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
}

// Enabled reports whether the provider is fully configured.
func (p OAuthProviderConfig) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

// OAuthConfig holds the supported external login providers.
type OAuthConfig struct {
	GitHub    OAuthProviderConfig
	Microsoft OAuthProviderConfig
	// MicrosoftTenant restricts Microsoft sign-in; "common" accepts any account.
	MicrosoftTenant string
}

// SlackConfig holds optional Slack notification settings.
type SlackConfig struct {
	BotToken string
	Channel  string
}

// Enabled reports whether Slack pushes are configured.
func (s SlackConfig) Enabled() bool {
	return s.BotToken != "" && s.Channel != ""
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// sensitive values (session secret, Redis password) must be set explicitly.
func Load() (*Config, error) {
	redisDB, err := getEnvInt("EPITRELLO_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	sessionTTL, err := getEnvDuration("EPITRELLO_SESSION_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("EPITRELLO_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	// Write timeout must leave room for long-lived event streams; the
	// stream endpoints clear their per-response deadline themselves.
	writeTimeout, err := getEnvDuration("EPITRELLO_SERVER_WRITE_TIMEOUT", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	selfHosted, err := getEnvBool("EPITRELLO_SELF_HOSTED", false)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("EPITRELLO_CORS_ORIGINS", []string{"http://localhost:5173"})

	cfg := &Config{
		Redis: RedisConfig{
			Addr:     getEnv("EPITRELLO_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("EPITRELLO_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Session: SessionConfig{
			Secret: getEnv("EPITRELLO_SESSION_SECRET", ""),
			TTL:    sessionTTL,
		},
		Server: ServerConfig{
			Addr:         getEnv("EPITRELLO_SERVER_ADDR", ":8080"),
			PublicURL:    getEnv("EPITRELLO_PUBLIC_URL", "http://localhost:8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  corsOrigins,
		},
		OAuth: OAuthConfig{
			GitHub: OAuthProviderConfig{
				ClientID:     getEnv("EPITRELLO_GITHUB_CLIENT_ID", ""),
				ClientSecret: getEnv("EPITRELLO_GITHUB_CLIENT_SECRET", ""),
			},
			Microsoft: OAuthProviderConfig{
				ClientID:     getEnv("EPITRELLO_MICROSOFT_CLIENT_ID", ""),
				ClientSecret: getEnv("EPITRELLO_MICROSOFT_CLIENT_SECRET", ""),
			},
			MicrosoftTenant: getEnv("EPITRELLO_MICROSOFT_TENANT", "common"),
		},
		Slack: SlackConfig{
			BotToken: getEnv("EPITRELLO_SLACK_BOT_TOKEN", ""),
			Channel:  getEnv("EPITRELLO_SLACK_CHANNEL", ""),
		},
		SelfHosted: selfHosted,
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// Session secret is required (no insecure default).
	if c.Session.Secret == "" {
		return errors.New("EPITRELLO_SESSION_SECRET is required")
	}
	if len(c.Session.Secret) < 32 {
		return errors.New("EPITRELLO_SESSION_SECRET must be at least 32 characters")
	}

	if c.Redis.Password == "" && !c.SelfHosted {
		log.Warn().Msg("EPITRELLO_REDIS_PASSWORD is empty; set it for production deployments")
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("EPITRELLO_SESSION_TTL must be positive, got %s", c.Session.TTL)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("EPITRELLO_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("EPITRELLO_SERVER_WRITE_TIMEOUT must be zero or positive, got %s", c.Server.WriteTimeout)
	}
	if !strings.HasPrefix(c.Server.PublicURL, "http://") && !strings.HasPrefix(c.Server.PublicURL, "https://") {
		return fmt.Errorf("EPITRELLO_PUBLIC_URL must be an http(s) URL, got %q", c.Server.PublicURL)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
