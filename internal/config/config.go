package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/smartsoil/smartsoil/internal/i18n"
)

type Config struct {
	// Server config
	Server ServerConfig

	// CSRF, session cookie and CORS
	Security SecurityConfig

	// session state storage
	Store StoreConfig

	// Gemini config
	AI AIConfig

	// UI defaults and logging
	App AppConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string
	Environment     string // development, staging, production
	BaseURL         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	CSRFSecret         string
	CSRFTrustedOrigins []string
	SessionCookieName  string
	SessionDuration    time.Duration
	SecureCookies      bool // true in production
	CORSAllowedOrigins []string
}

// StoreConfig selects the session state backend. An empty RedisURL keeps
// state in process memory. EncryptionKey, a base64 AES-256 key, seals values
// written to Redis.
type StoreConfig struct {
	RedisURL      string
	EncryptionKey string
}

// AIConfig holds the generative model settings. The API key is not checked
// here; a missing key fails each analysis request instead.
type AIConfig struct {
	GeminiAPIKey    string
	GeminiModel     string
	GeminiBaseURL   string
	RequestTimeout  time.Duration
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

type AppConfig struct {
	DefaultLanguage i18n.Language
	LogLevel        string
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []error

	durationVar := func(key, def string) time.Duration {
		d, err := time.ParseDuration(getEnvOrDefault(key, def))
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
		return d
	}

	cfg.Server = ServerConfig{
		Port:            getEnvOrDefault("SERVER_PORT", "8080"),
		Environment:     getEnvOrDefault("APP_ENV", "development"),
		BaseURL:         getEnvOrDefault("BASE_URL", "http://localhost:8080"),
		ReadTimeout:     durationVar("SERVER_READ_TIMEOUT", "15s"),
		WriteTimeout:    durationVar("SERVER_WRITE_TIMEOUT", "120s"),
		IdleTimeout:     durationVar("SERVER_IDLE_TIMEOUT", "60s"),
		ShutdownTimeout: durationVar("SERVER_SHUTDOWN_TIMEOUT", "10s"),
	}

	sessionHours, err := strconv.Atoi(getEnvOrDefault("SESSION_DURATION_HOURS", "24"))
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid SESSION_DURATION_HOURS: %w", err))
	}

	cfg.Security = SecurityConfig{
		CSRFSecret:         os.Getenv("CSRF_SECRET"),
		CSRFTrustedOrigins: splitList(os.Getenv("CSRF_TRUSTED_ORIGINS")),
		SessionCookieName:  getEnvOrDefault("SESSION_COOKIE_NAME", "smartsoil_session"),
		SessionDuration:    time.Duration(sessionHours) * time.Hour,
		SecureCookies:      cfg.Server.Environment == "production",
		CORSAllowedOrigins: splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*")),
	}

	cfg.Store = StoreConfig{
		RedisURL:      os.Getenv("REDIS_URL"),
		EncryptionKey: os.Getenv("STATE_ENCRYPTION_KEY"),
	}

	breakerFailures, err := strconv.ParseUint(getEnvOrDefault("AI_BREAKER_FAILURES", "5"), 10, 32)
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid AI_BREAKER_FAILURES: %w", err))
	}

	cfg.AI = AIConfig{
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL:   os.Getenv("GEMINI_BASE_URL"),
		RequestTimeout:  durationVar("AI_REQUEST_TIMEOUT", "90s"),
		BreakerFailures: uint32(breakerFailures),
		BreakerCooldown: durationVar("AI_BREAKER_COOLDOWN", "60s"),
	}

	lang, err := i18n.Parse(getEnvOrDefault("DEFAULT_LANGUAGE", string(i18n.DefaultLanguage)))
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid DEFAULT_LANGUAGE: %w", err))
	}
	cfg.App = AppConfig{
		DefaultLanguage: lang,
		LogLevel:        getEnvOrDefault("LOG_LEVEL", "info"),
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration parse failed:\n%w", errors.Join(errs...))
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that all required configuration is present and valid.
func (c *Config) validate() error {
	var errs []error

	// CSRF secret must be set and sufficiently long
	if c.Security.CSRFSecret == "" {
		errs = append(errs, errors.New("CSRF_SECRET is required"))
	} else if len(c.Security.CSRFSecret) < 32 {
		errs = append(errs, errors.New("CSRF_SECRET must be at least 32 characters"))
	}

	if c.Security.SessionDuration <= 0 {
		errs = append(errs, errors.New("SESSION_DURATION_HOURS must be positive"))
	}

	if c.AI.RequestTimeout <= 0 {
		errs = append(errs, errors.New("AI_REQUEST_TIMEOUT must be positive"))
	}

	if c.AI.BreakerFailures == 0 {
		errs = append(errs, errors.New("AI_BREAKER_FAILURES must be at least 1"))
	}

	validEnvs := map[string]bool{
		"development": true,
		"staging":     true,
		"production":  true,
	}
	if !validEnvs[c.Server.Environment] {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of: development, staging, production (got: %s)", c.Server.Environment))
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.App.LogLevel] {
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", c.App.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%w", errors.Join(errs...))
	}

	return nil
}

// getEnvOrDefault returns the .env value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// splitList parses a comma separated env value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// MustLoad is like Load but panics on error.
// Used in main() where its required to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
