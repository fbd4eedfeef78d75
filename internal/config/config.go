package config

import (
	"time"

	"github.com/quizai/quizai/internal/ailink"
)

// Config represents the complete application configuration.
// Values come from, in increasing precedence: built-in defaults
// (SetDefaults), the YAML config file, QUIZAI_* environment variables,
// and runtime overrides passed to Load.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Store    StoreConfig    `mapstructure:"store"`
	AILink   ailink.Config  `mapstructure:"ailink"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Security SecurityConfig `mapstructure:"security"`
	Grading  GradingConfig  `mapstructure:"grading"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Health   HealthConfig   `mapstructure:"health"`
	Debug    DebugConfig    `mapstructure:"debug"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// PublicURL is the externally visible base URL used in notification links.
	PublicURL string `mapstructure:"public_url"`

	// CORSOrigins lists browser origins allowed to call the API.
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// StoreConfig contains database configuration. The libsql driver uses
// Path or URL/AuthToken; the mongo driver uses MongoURI/MongoDatabase.
type StoreConfig struct {
	Driver        string `mapstructure:"driver"`
	Path          string `mapstructure:"path"`
	URL           string `mapstructure:"url"`
	AuthToken     string `mapstructure:"auth_token"`
	MongoURI      string `mapstructure:"mongo_uri"`
	MongoDatabase string `mapstructure:"mongo_database"`
}

// NotifyConfig selects how grade notifications are delivered.
type NotifyConfig struct {
	// Provider is one of: sendgrid, console, none
	Provider       string        `mapstructure:"provider"`
	SendgridAPIKey string        `mapstructure:"sendgrid_api_key"`
	FromEmail      string        `mapstructure:"from_email"`
	FromName       string        `mapstructure:"from_name"`
	SubjectPrefix  string        `mapstructure:"subject_prefix"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// AuthConfig contains session token and account defaults.
type AuthConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret"`
	TokenTTL        time.Duration `mapstructure:"token_ttl"`
	VerificationTTL time.Duration `mapstructure:"verification_ttl"`
	DefaultAILimit  int           `mapstructure:"default_ai_limit"`
}

// SecurityConfig tunes the failed-attempt limiter.
type SecurityConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	BaseLockDuration time.Duration `mapstructure:"base_lock_duration"`
}

// GradingConfig tunes the batch grading pipeline.
type GradingConfig struct {
	SaveWorkers         int    `mapstructure:"save_workers"`
	FeedbackPlaceholder string `mapstructure:"feedback_placeholder"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: simple, structured
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DebugConfig contains debug configuration
type DebugConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
