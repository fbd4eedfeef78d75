package config

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultSettings(t *testing.T) map[string]any {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	return v.AllSettings()
}

func TestDecodeDefaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg, err := Decode(defaultSettings(t))
	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Verify server defaults
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 90*time.Second, cfg.Server.WriteTimeout)
	assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.Empty(t, cfg.Server.CORSOrigins)

	// Verify store defaults
	assert.Equal(t, "libsql", cfg.Store.Driver)
	expectedStorePath := filepath.Join(gfconfig.GetAppDataDir(AppName), AppName+".db")
	assert.Equal(t, expectedStorePath, cfg.Store.Path)
	assert.Equal(t, "quizai", cfg.Store.MongoDatabase)

	// Verify ailink defaults
	assert.Equal(t, "gemini", cfg.AILink.Provider)
	assert.Equal(t, 120*time.Second, cfg.AILink.Timeout)
	assert.Equal(t, 8192, cfg.AILink.MaxOutputTokens)
	assert.InDelta(t, 0.7, cfg.AILink.Temperature, 0.0001)
	assert.Equal(t, 20000, cfg.AILink.ContextLimit)

	// Verify auth and security defaults
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 15*time.Minute, cfg.Auth.VerificationTTL)
	assert.Equal(t, 5, cfg.Auth.DefaultAILimit)
	assert.Equal(t, 3, cfg.Security.FailureThreshold)
	assert.Equal(t, 100*time.Second, cfg.Security.BaseLockDuration)

	// Verify grading and notify defaults
	assert.Equal(t, 4, cfg.Grading.SaveWorkers)
	assert.Equal(t, "No feedback provided.", cfg.Grading.FeedbackPlaceholder)
	assert.Equal(t, "console", cfg.Notify.Provider)
	assert.Equal(t, "Grade Update", cfg.Notify.SubjectPrefix)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9090, cfg.Metrics.Port)
}

func TestDecodeWeakTypes(t *testing.T) {
	settings := defaultSettings(t)
	mergeSettings(settings, map[string]any{
		"server": map[string]any{
			"port":         "9000",
			"cors_origins": "https://a.example,https://b.example",
		},
		"ailink": map[string]any{
			"temperature": "0.2",
		},
		"notify": map[string]any{
			"provider": " SendGrid ",
		},
	})

	cfg, err := Decode(settings)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.InDelta(t, 0.2, cfg.AILink.Temperature, 0.0001)
	assert.Equal(t, "sendgrid", cfg.Notify.Provider)
}

func TestDecodeEmptyStorePathFallsBack(t *testing.T) {
	settings := defaultSettings(t)
	mergeSettings(settings, map[string]any{"store": map[string]any{"path": ""}})

	cfg, err := Decode(settings)
	require.NoError(t, err)
	assert.Equal(t, DefaultStorePath(), cfg.Store.Path)
}

func TestLoadAppliesOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults(viper.GetViper())

	cfg, err := Load(context.Background(), map[string]any{
		"Auth":     map[string]any{"jwt_secret": "s3cret"},
		"security": map[string]any{"failure_threshold": 5},
	})
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, 5, cfg.Security.FailureThreshold)
	assert.Same(t, cfg, GetConfig())
}

func TestLoadReadsEnvironment(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	SetDefaults(viper.GetViper())
	BindEnv(viper.GetViper())
	t.Setenv("QUIZAI_AUTH_JWT_SECRET", "from-env")
	t.Setenv("QUIZAI_SERVER_PORT", "7000")

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, 7000, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Decode(defaultSettings(t))
		require.NoError(t, err)
		cfg.Auth.JWTSecret = "secret"
		return cfg
	}

	require.NoError(t, base().Validate())

	var nilCfg *Config
	require.Error(t, nilCfg.Validate())

	cfg := base()
	cfg.Auth.JWTSecret = " "
	require.ErrorContains(t, cfg.Validate(), "jwt_secret")

	cfg = base()
	cfg.Store.Driver = "postgres"
	require.ErrorContains(t, cfg.Validate(), "store.driver")

	cfg = base()
	cfg.Notify.Provider = "sendgrid"
	require.ErrorContains(t, cfg.Validate(), "sendgrid_api_key")
	cfg.Notify.SendgridAPIKey = "SG.key"
	require.NoError(t, cfg.Validate())

	cfg = base()
	cfg.Notify.Provider = "pigeon"
	require.ErrorContains(t, cfg.Validate(), "notify.provider")
}
