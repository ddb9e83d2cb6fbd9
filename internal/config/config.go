// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Public base URL, used when building OAuth redirect URLs for integrations
	BaseURL string

	// Integrations (marketing platform backends)
	KitClientID           string
	KitClientSecret       string
	MailchimpClientID     string
	MailchimpClientSecret string
	BufferClientID        string
	BufferClientSecret    string

	// Billing
	StripeSecretKey     string
	StripeWebhookSecret string
	StripePriceStarter  string
	StripePricePro      string
	StripePriceGrowth   string

	// Security
	AdminSecret    string
	AllowedOrigins []string

	// Observability
	OTLPEndpoint string // OTEL_EXPORTER_OTLP_ENDPOINT; empty disables tracing
}

// Defaults
const (
	DefaultPort     = "8080"
	DefaultEnv      = "development"
	DefaultLogLevel = "info"
	DefaultBaseURL  = "http://localhost:8080"
)

// Load reads configuration from environment variables.
// It loads .env file if present (for local development).
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                  getEnv("PORT", DefaultPort),
		Env:                   getEnv("ENV", DefaultEnv),
		LogLevel:              getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:           os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		BaseURL:               getEnv("BASE_URL", DefaultBaseURL),
		KitClientID:           os.Getenv("KIT_CLIENT_ID"),
		KitClientSecret:       os.Getenv("KIT_CLIENT_SECRET"),
		MailchimpClientID:     os.Getenv("MAILCHIMP_CLIENT_ID"),
		MailchimpClientSecret: os.Getenv("MAILCHIMP_CLIENT_SECRET"),
		BufferClientID:        os.Getenv("BUFFER_CLIENT_ID"),
		BufferClientSecret:    os.Getenv("BUFFER_CLIENT_SECRET"),
		StripeSecretKey:       os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret:   os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripePriceStarter:    os.Getenv("STRIPE_PRICE_STARTER"),
		StripePricePro:        os.Getenv("STRIPE_PRICE_PRO"),
		StripePriceGrowth:     os.Getenv("STRIPE_PRICE_GROWTH"),
		AdminSecret:           os.Getenv("ADMIN_SECRET"),
		AllowedOrigins:        splitCSV(getEnv("ALLOWED_ORIGINS", "*")),
		OTLPEndpoint:          os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present and consistent.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be numeric: %q", c.Port)
	}
	if c.IsProduction() && c.AdminSecret == "" {
		return fmt.Errorf("ADMIN_SECRET is required in production")
	}
	if c.StripeWebhookSecret != "" && c.StripeSecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is required when STRIPE_WEBHOOK_SECRET is set")
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
