// Package config provides centralized configuration management for QuizAI.
// Settings are collected by viper (defaults, config file, environment) and
// decoded into the typed Config with mapstructure decode hooks.
package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	// AppName is used for XDG directories and the binary name.
	AppName = "quizai"
	// EnvPrefix prefixes every environment variable override.
	EnvPrefix = "QUIZAI"
)

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// SetDefaults registers every configuration key with its default value.
// Registering all keys also lets viper resolve nested keys from the environment.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "90s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.public_url", "http://localhost:8080")
	v.SetDefault("server.cors_origins", []string{})

	// Store defaults
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")
	v.SetDefault("store.mongo_uri", "")
	v.SetDefault("store.mongo_database", AppName)

	// AILink defaults
	v.SetDefault("ailink.provider", "gemini")
	v.SetDefault("ailink.model", "gemini-1.5-flash")
	v.SetDefault("ailink.base_url", "")
	v.SetDefault("ailink.api_key", "")
	v.SetDefault("ailink.timeout", "120s")
	v.SetDefault("ailink.max_output_tokens", 8192)
	v.SetDefault("ailink.temperature", 0.7)
	v.SetDefault("ailink.context_limit", 20000)
	v.SetDefault("ailink.prompts_dir", "")

	// Notification defaults
	v.SetDefault("notify.provider", "console")
	v.SetDefault("notify.sendgrid_api_key", "")
	v.SetDefault("notify.from_email", "no-reply@quizai.local")
	v.SetDefault("notify.from_name", "QuizAI")
	v.SetDefault("notify.subject_prefix", "Grade Update")
	v.SetDefault("notify.timeout", "30s")

	// Auth defaults
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.verification_ttl", "15m")
	v.SetDefault("auth.default_ai_limit", 5)

	// Security defaults
	v.SetDefault("security.failure_threshold", 3)
	v.SetDefault("security.base_lock_duration", "100s")

	// Grading defaults
	v.SetDefault("grading.save_workers", 4)
	v.SetDefault("grading.feedback_placeholder", "No feedback provided.")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Health check defaults
	v.SetDefault("health.enabled", true)

	// Debug defaults
	v.SetDefault("debug.enabled", false)
}

// BindEnv makes QUIZAI_SECTION_KEY override section.key.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes the settings held by the global viper instance, applies
// runtimeOverrides on top, and stores the result as the current config.
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(ctx context.Context, runtimeOverrides ...map[string]any) (*Config, error) {
	_ = ctx
	settings := viper.AllSettings()
	for _, override := range runtimeOverrides {
		mergeSettings(settings, override)
	}

	cfg, err := Decode(settings)
	if err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// Decode converts a nested settings map into a Config and fills derived defaults.
func Decode(settings map[string]any) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}
	cfg.Notify.Provider = strings.ToLower(strings.TrimSpace(cfg.Notify.Provider))
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))

	return cfg, nil
}

// Validate reports settings that would make the server unusable.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("auth.jwt_secret is required (set %s_AUTH_JWT_SECRET)", EnvPrefix)
	}
	switch c.Store.Driver {
	case "", "libsql", "mongo":
	default:
		return fmt.Errorf("unsupported store.driver %q", c.Store.Driver)
	}
	switch c.Notify.Provider {
	case "", "none", "console":
	case "sendgrid":
		if strings.TrimSpace(c.Notify.SendgridAPIKey) == "" {
			return fmt.Errorf("notify.sendgrid_api_key is required for the sendgrid provider")
		}
	default:
		return fmt.Errorf("unsupported notify.provider %q", c.Notify.Provider)
	}
	if c.Security.FailureThreshold < 0 {
		return fmt.Errorf("security.failure_threshold must not be negative")
	}
	return nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigDir returns the XDG-compliant config directory for the app.
func DefaultConfigDir() string {
	return gfconfig.GetAppConfigDir(AppName)
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := DefaultConfigDir()
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(AppName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + AppName + ".db"
	}
	return filepath.Join(dataDir, AppName+".db")
}

func mergeSettings(dst, src map[string]any) {
	for key, value := range src {
		key = strings.ToLower(key)
		if nested, ok := value.(map[string]any); ok {
			existing, ok := dst[key].(map[string]any)
			if !ok {
				existing = map[string]any{}
				dst[key] = existing
			}
			mergeSettings(existing, nested)
			continue
		}
		dst[key] = value
	}
}
