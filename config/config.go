package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// TLS modes for the outbound SMTP connection
const (
	TLSModeStartTLS = "starttls" // upgrade when the server advertises STARTTLS
	TLSModeRequired = "required" // STARTTLS must succeed
	TLSModeImplicit = "implicit" // TLS from the first byte (port 465)
	TLSModeNone     = "none"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string
	// Comma-separated origins allowed to call the API from a browser
	AllowedOrigins []string
	// SMTP Configuration (Google Workspace app password by default)
	SMTPHost       string
	SMTPPort       string
	SMTPTLSMode    string
	SMTPUsername   string
	SMTPPassword   string
	SMTPTimeout    time.Duration
	ContactEmailTo string
	// Branding used in outbound mail
	BrandName      string
	FormSenderName string
	SupportEmail   string
	// Redis/Upstash Configuration
	UpstashRedisURL      string
	UpstashRedisPassword string
	// Rate Limiting Configuration
	RateLimitWindowSeconds    int
	RateLimitContactThreshold int
}

func LoadConfig() (*Config, error) {
	// Only effective locally; production relies on the real environment
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: strings.ToLower(getEnv("APP_ENV", EnvProduction)),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS",
			"https://truelensinternational.com,https://www.truelensinternational.com")),
		// SMTP Configuration
		SMTPHost:       getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:       getEnv("SMTP_PORT", "587"),
		SMTPTLSMode:    strings.ToLower(getEnv("SMTP_TLS_MODE", TLSModeStartTLS)),
		SMTPUsername:   getEnv("SMTP_USERNAME", getEnv("GOOGLE_EMAIL", "")),
		SMTPPassword:   getEnv("SMTP_PASSWORD", getEnv("GOOGLE_APP_PASSWORD", "")),
		SMTPTimeout:    getEnvDuration("SMTP_TIMEOUT", 15*time.Second),
		ContactEmailTo: getEnv("CONTACT_EMAIL_TO", getEnv("COMPANY_EMAIL", "")),
		// Branding
		BrandName:      getEnv("BRAND_NAME", "TrueLens International"),
		FormSenderName: getEnv("FORM_SENDER_NAME", "TrueLens Contact Form"),
		SupportEmail:   getEnv("SUPPORT_EMAIL", "orders@truelensinternational.com"),
		// Redis/Upstash Configuration
		UpstashRedisURL:      getEnv("UPSTASH_REDIS_URL", ""),
		UpstashRedisPassword: getEnv("UPSTASH_REDIS_PASSWORD", ""),
		// Rate Limiting Configuration
		RateLimitWindowSeconds:    getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitContactThreshold: getEnvInt("RATE_LIMIT_CONTACT_THRESHOLD", 5),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.UpstashRedisURL == "" {
		log.Println("WARNING: UPSTASH_REDIS_URL not configured. Rate limiting will use in-memory fallback.")
	}

	return cfg, nil
}

// Validate checks the fields the inquiry pipeline cannot run without.
// It runs once at startup so requests never see a half-configured transport.
func (c *Config) Validate() error {
	var errs []error
	if c.SMTPHost == "" {
		errs = append(errs, errors.New("SMTP_HOST is required"))
	}
	if _, err := strconv.Atoi(c.SMTPPort); err != nil {
		errs = append(errs, fmt.Errorf("SMTP_PORT must be numeric: %q", c.SMTPPort))
	}
	if c.SMTPUsername == "" {
		errs = append(errs, errors.New("SMTP_USERNAME is required"))
	}
	if c.SMTPPassword == "" {
		errs = append(errs, errors.New("SMTP_PASSWORD is required"))
	}
	switch c.SMTPTLSMode {
	case TLSModeStartTLS, TLSModeRequired, TLSModeImplicit, TLSModeNone:
	default:
		errs = append(errs, fmt.Errorf("SMTP_TLS_MODE %q is not one of starttls, required, implicit, none", c.SMTPTLSMode))
	}
	if c.SMTPTimeout <= 0 {
		errs = append(errs, errors.New("SMTP_TIMEOUT must be positive"))
	}
	if c.RateLimitWindowSeconds <= 0 || c.RateLimitContactThreshold <= 0 {
		errs = append(errs, errors.New("rate limit window and threshold must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// IsDevelopment reports whether diagnostic details may be returned to clients
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

// BusinessInbox is where notification copies go; falls back to the sender account
func (c *Config) BusinessInbox() string {
	if c.ContactEmailTo != "" {
		return c.ContactEmailTo
	}
	return c.SMTPUsername
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt returns an integer environment variable or fallback if not set/invalid
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// getEnvDuration accepts Go durations ("10s") or plain seconds ("10")
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimRight(strings.TrimSpace(part), "/"); p != "" {
			out = append(out, p)
		}
	}
	return out
}
