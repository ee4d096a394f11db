// Package config loads application configuration from the environment.
package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application settings. Modules receive it through the
// narrow interfaces in platform/config.
type Config struct {
	Env      string
	HTTPAddr string

	DatabaseURL string

	JWTAccessSecret string
	AccessTokenTTL  time.Duration
	SessionTokenTTL time.Duration

	CORSAllowAll   bool
	CORSOrigins    []string
	CORSAllowCreds bool
	AppBaseURL     string

	EmailEnabled     bool
	BrevoAPIKey      string
	EmailFromName    string
	EmailFromAddress string
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string

	SessionCookieName     string
	SessionCookieDomain   string
	SessionCookiePath     string
	SessionCookieSecure   bool
	SessionCookieSameSite http.SameSite

	StripeSecretKey     string
	StripeSetupFeeCents int64
	CheckoutSuccessURL  string
	CheckoutCancelURL   string

	HubSpotAPIKey string

	PipelineAPIKey  string
	PipelineBaseURL string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	RedisURL         string
	RedisTLSInsecure bool
	AsynqQueueName   string
	AsynqConcurrency int
	BillingCronSpec  string

	BillingCallTimeout       time.Duration
	BillingRequestsPerSec    float64
	BillingLookupConcurrency int
}

// Load reads configuration from the environment (and an optional .env file)
// and validates required settings.
func Load() (*Config, error) {
	_ = godotenv.Load()

	corsOrigins := splitCSV(getEnv("CORS_ORIGINS", "http://localhost:3000"))
	corsAllowAll := strings.EqualFold(getEnv("CORS_ALLOW_ALL", "false"), "true")
	if containsWildcard(corsOrigins) {
		corsAllowAll = true
	}

	brevoAPIKey := getEnv("BREVO_API_KEY", "")
	emailEnabled := strings.EqualFold(getEnv("EMAIL_ENABLED", "true"), "true")

	cookieSecure := strings.EqualFold(getEnv("SESSION_COOKIE_SECURE", ""), "true")
	if getEnv("SESSION_COOKIE_SECURE", "") == "" {
		cookieSecure = strings.EqualFold(getEnv("APP_ENV", "development"), "production")
	}

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		JWTAccessSecret: getEnv("JWT_ACCESS_SECRET", ""),
		AccessTokenTTL:  mustDuration(getEnv("JWT_ACCESS_TTL", "15m"), 15*time.Minute),
		SessionTokenTTL: mustDuration(getEnv("SESSION_TOKEN_TTL", "720h"), 720*time.Hour),

		CORSAllowAll:   corsAllowAll,
		CORSOrigins:    corsOrigins,
		CORSAllowCreds: strings.EqualFold(getEnv("CORS_ALLOW_CREDENTIALS", "true"), "true"),
		AppBaseURL:     getEnv("APP_BASE_URL", "http://localhost:3000"),

		EmailEnabled:     emailEnabled && brevoAPIKey != "",
		BrevoAPIKey:      brevoAPIKey,
		EmailFromName:    getEnv("EMAIL_FROM_NAME", "LeadMarket"),
		EmailFromAddress: getEnv("EMAIL_FROM_ADDRESS", ""),
		SMTPHost:         getEnv("SMTP_HOST", ""),
		SMTPPort:         mustInt(getEnv("SMTP_PORT", "587"), 587),
		SMTPUsername:     getEnv("SMTP_USERNAME", ""),
		SMTPPassword:     getEnv("SMTP_PASSWORD", ""),

		SessionCookieName:     getEnv("SESSION_COOKIE_NAME", "leadmarket_session"),
		SessionCookieDomain:   getEnv("SESSION_COOKIE_DOMAIN", ""),
		SessionCookiePath:     getEnv("SESSION_COOKIE_PATH", "/api/v1/auth"),
		SessionCookieSecure:   cookieSecure,
		SessionCookieSameSite: parseSameSite(getEnv("SESSION_COOKIE_SAMESITE", "Lax")),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeSetupFeeCents: mustInt64(getEnv("STRIPE_SETUP_FEE_CENTS", "50000"), 50000),
		CheckoutSuccessURL:  getEnv("CHECKOUT_SUCCESS_URL", ""),
		CheckoutCancelURL:   getEnv("CHECKOUT_CANCEL_URL", ""),

		HubSpotAPIKey: getEnv("HUBSPOT_API_KEY", ""),

		PipelineAPIKey:  getEnv("PIPELINE_API_KEY", ""),
		PipelineBaseURL: getEnv("PIPELINE_BASE_URL", "https://rest.gohighlevel.com/v1"),

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),

		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
		AsynqConcurrency: mustInt(getEnv("ASYNQ_CONCURRENCY", "10"), 10),
		BillingCronSpec:  getEnv("BILLING_CRON", "0 6 * * *"),

		BillingCallTimeout:       mustDuration(getEnv("BILLING_CALL_TIMEOUT", "30s"), 30*time.Second),
		BillingRequestsPerSec:    mustFloat(getEnv("BILLING_RPS", "4"), 4),
		BillingLookupConcurrency: mustInt(getEnv("BILLING_LOOKUP_CONCURRENCY", "5"), 5),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTAccessSecret == "" {
		return nil, fmt.Errorf("JWT_ACCESS_SECRET is required")
	}
	if cfg.StripeSecretKey == "" {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	if cfg.HubSpotAPIKey == "" {
		return nil, fmt.Errorf("HUBSPOT_API_KEY is required")
	}
	if emailEnabled && cfg.BrevoAPIKey == "" && cfg.SMTPHost == "" {
		return nil, fmt.Errorf("BREVO_API_KEY or SMTP_HOST is required when EMAIL_ENABLED is true")
	}
	if cfg.EmailEnabled && cfg.EmailFromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is required when email is enabled")
	}
	if cfg.CORSAllowAll && cfg.CORSAllowCreds {
		return nil, fmt.Errorf("CORS_ALLOW_CREDENTIALS cannot be true when CORS_ALLOW_ALL is true")
	}

	return cfg, nil
}

// IsProduction reports whether the app runs with the production guard on.
// Destructive scheduled jobs only fire when this is true or when forced.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Getter methods satisfy the platform/config interfaces.

func (c *Config) GetDatabaseURL() string     { return c.DatabaseURL }
func (c *Config) GetJWTAccessSecret() string { return c.JWTAccessSecret }

func (c *Config) GetAccessTokenTTL() time.Duration  { return c.AccessTokenTTL }
func (c *Config) GetSessionTokenTTL() time.Duration { return c.SessionTokenTTL }

func (c *Config) GetSessionCookieName() string              { return c.SessionCookieName }
func (c *Config) GetSessionCookieDomain() string            { return c.SessionCookieDomain }
func (c *Config) GetSessionCookiePath() string              { return c.SessionCookiePath }
func (c *Config) GetSessionCookieSecure() bool              { return c.SessionCookieSecure }
func (c *Config) GetSessionCookieSameSite() http.SameSite   { return c.SessionCookieSameSite }

func (c *Config) GetHTTPAddr() string       { return c.HTTPAddr }
func (c *Config) GetCORSAllowAll() bool     { return c.CORSAllowAll }
func (c *Config) GetCORSOrigins() []string  { return c.CORSOrigins }
func (c *Config) GetCORSAllowCreds() bool   { return c.CORSAllowCreds }

func (c *Config) GetEmailEnabled() bool     { return c.EmailEnabled }
func (c *Config) GetBrevoAPIKey() string    { return c.BrevoAPIKey }
func (c *Config) GetEmailFromName() string  { return c.EmailFromName }
func (c *Config) GetEmailFromAddress() string { return c.EmailFromAddress }
func (c *Config) GetSMTPHost() string       { return c.SMTPHost }
func (c *Config) GetSMTPPort() int          { return c.SMTPPort }
func (c *Config) GetSMTPUsername() string   { return c.SMTPUsername }
func (c *Config) GetSMTPPassword() string   { return c.SMTPPassword }

func (c *Config) GetStripeSecretKey() string     { return c.StripeSecretKey }
func (c *Config) GetStripeSetupFeeCents() int64  { return c.StripeSetupFeeCents }
func (c *Config) GetCheckoutSuccessURL() string  { return c.CheckoutSuccessURL }
func (c *Config) GetCheckoutCancelURL() string   { return c.CheckoutCancelURL }

func (c *Config) GetHubSpotAPIKey() string { return c.HubSpotAPIKey }

func (c *Config) GetPipelineAPIKey() string  { return c.PipelineAPIKey }
func (c *Config) GetPipelineBaseURL() string { return c.PipelineBaseURL }

func (c *Config) GetTwilioAccountSID() string { return c.TwilioAccountSID }
func (c *Config) GetTwilioAuthToken() string  { return c.TwilioAuthToken }
func (c *Config) GetTwilioFromNumber() string { return c.TwilioFromNumber }
func (c *Config) IsSMSEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != ""
}

func (c *Config) GetRedisURL() string       { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int  { return c.AsynqConcurrency }
func (c *Config) GetBillingCronSpec() string { return c.BillingCronSpec }

func (c *Config) GetEnv() string { return c.Env }
func (c *Config) GetBillingCallTimeout() time.Duration    { return c.BillingCallTimeout }
func (c *Config) GetBillingRequestsPerSecond() float64    { return c.BillingRequestsPerSec }
func (c *Config) GetBillingLookupConcurrency() int        { return c.BillingLookupConcurrency }

func (c *Config) GetAppBaseURL() string { return c.AppBaseURL }

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func mustDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func mustInt(value string, fallback int) int {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

func mustInt64(value string, fallback int64) int64 {
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func mustFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return f
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	results := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			results = append(results, trimmed)
		}
	}
	return results
}

func containsWildcard(values []string) bool {
	for _, value := range values {
		if value == "*" {
			return true
		}
	}
	return false
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "none":
		return http.SameSiteNoneMode
	case "strict":
		return http.SameSiteStrictMode
	default:
		return http.SameSiteLaxMode
	}
}
