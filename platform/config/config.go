// Package config provides least-privilege configuration interfaces.
// Modules depend on the narrow interface they need instead of the full
// application config. This is part of the platform layer.
package config

import (
	"net/http"
	"time"
)

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// JWTConfig provides JWT validation settings for middleware.
type JWTConfig interface {
	GetJWTAccessSecret() string
}

// AuthServiceConfig provides settings needed by the auth service.
type AuthServiceConfig interface {
	JWTConfig
	GetAccessTokenTTL() time.Duration
	GetSessionTokenTTL() time.Duration
}

// CookieConfig provides settings for session token cookies.
type CookieConfig interface {
	GetSessionCookieName() string
	GetSessionCookieDomain() string
	GetSessionCookiePath() string
	GetSessionCookieSecure() bool
	GetSessionCookieSameSite() http.SameSite
	GetSessionTokenTTL() time.Duration
}

// HTTPConfig provides settings for the HTTP server.
type HTTPConfig interface {
	GetHTTPAddr() string
	GetCORSAllowAll() bool
	GetCORSOrigins() []string
	GetCORSAllowCreds() bool
}

// EmailConfig provides settings for email sending.
type EmailConfig interface {
	GetEmailEnabled() bool
	GetBrevoAPIKey() string
	GetEmailFromName() string
	GetEmailFromAddress() string
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
}

// PaymentsConfig provides settings for the payment processor client.
type PaymentsConfig interface {
	GetStripeSecretKey() string
	GetStripeSetupFeeCents() int64
	GetCheckoutSuccessURL() string
	GetCheckoutCancelURL() string
}

// CRMConfig provides settings for the canonical CRM client.
type CRMConfig interface {
	GetHubSpotAPIKey() string
}

// PipelineConfig provides settings for the sales-pipeline client.
type PipelineConfig interface {
	GetPipelineAPIKey() string
	GetPipelineBaseURL() string
}

// TwilioConfig provides settings for phone lookup and SMS.
type TwilioConfig interface {
	GetTwilioAccountSID() string
	GetTwilioAuthToken() string
	GetTwilioFromNumber() string
	IsSMSEnabled() bool
}

// SchedulerConfig provides settings for the asynq scheduler and worker.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetBillingCronSpec() string
}

// BillingConfig provides settings for the reconciliation job.
type BillingConfig interface {
	GetEnv() string
	GetBillingCallTimeout() time.Duration
	GetBillingRequestsPerSecond() float64
	GetBillingLookupConcurrency() int
}

// NotificationConfig provides settings for the notification module.
type NotificationConfig interface {
	GetAppBaseURL() string
}
