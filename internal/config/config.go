// Package config defines the global configuration structure for the lexflow
// alert engine. Configuration is loaded once at process initialization and is
// immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> SecretProvider (Lowest)
//
// Any missing required value or invalid format aborts startup before the
// engine touches the database or the email provider (fail fast): a partially
// configured run must never be partially applied.
package config

import (
	"time"

	"lexflow/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the alert engine.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"lexflow-alerts"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server        ServerConfig
	Database      DatabaseConfig
	Email         EmailConfig
	Alerts        AlertConfig
	Scheduler     SchedulerConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server and public URL configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
	// AppBaseURL is the public dashboard URL used to build links embedded in
	// email bodies (no trailing slash), e.g. https://app.lexflow.com.br
	AppBaseURL string `envconfig:"APP_BASE_URL" validate:"required,url"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	// Tuning Parameters
	MaxConns          int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns          int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout    time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
	HealthCheckPeriod time.Duration `envconfig:"DB_HEALTH_CHECK_PERIOD" default:"1m"`
}

// EmailConfig holds email delivery provider credentials and sender identity.
type EmailConfig struct {
	SendGridAPIKey SecretString  `envconfig:"SENDGRID_API_KEY" validate:"required"`
	FromAddress    string        `envconfig:"EMAIL_FROM_ADDRESS" default:"prazos@lexflow.com.br"`
	FromName       string        `envconfig:"EMAIL_FROM_NAME" default:"LexFlow Prazos"`
	SendTimeout    time.Duration `envconfig:"EMAIL_SEND_TIMEOUT" default:"10s"`
}

// AlertConfig holds the tunables of the deadline alert run.
type AlertConfig struct {
	// RetryBackoff is the fixed wait between the first and second attempt
	// against the primary address after a transient failure.
	RetryBackoff time.Duration `envconfig:"ALERT_RETRY_BACKOFF" default:"2s"`

	// Workers bounds the fan-out across deadlines within one run. Correctness
	// does not depend on this value; the atomic claim in Postgres does.
	Workers int `envconfig:"ALERT_WORKERS" default:"4" validate:"min=1,max=32"`

	// BatchLimit caps the deadlines loaded per run to keep a single
	// invocation bounded.
	BatchLimit int `envconfig:"ALERT_BATCH_LIMIT" default:"500" validate:"min=1"`

	// RetentionDays is how long notification rows are kept before the cleanup
	// task hard-deletes them.
	RetentionDays int `envconfig:"NOTIFICATION_RETENTION_DAYS" default:"90" validate:"min=1"`
}

// SchedulerConfig holds the trigger-endpoint authentication settings.
type SchedulerConfig struct {
	// TokenHash is the bcrypt hash of the bearer token presented by the
	// external scheduler. Storing the hash instead of the raw token keeps the
	// secret out of environment dumps and config logs.
	TokenHash SecretString `envconfig:"SCHEDULER_TOKEN_HASH" validate:"required"`
}

// ObservabilityConfig holds telemetry and monitoring settings.
type ObservabilityConfig struct {
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"LexFlow/Alerts"`
	EnableMetrics   bool   `envconfig:"ENABLE_METRICS" default:"true"`
	AWSRegion       string `envconfig:"AWS_REGION" default:"sa-east-1"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSecretResolution indicates a failure when fetching values from the
	// SecretProvider.
	ErrSecretResolution ConfigErrorType = "SECRET_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
