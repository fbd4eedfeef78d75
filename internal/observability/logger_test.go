package observability

import (
	"testing"

	"github.com/fulmenhq/gofulmen/crucible"
	"github.com/fulmenhq/gofulmen/logging"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/quizai/quizai/internal/config"
)

func TestParseLogLevel(t *testing.T) {
	require.Equal(t, "DEBUG", parseLogLevel("debug"))
	require.Equal(t, "WARN", parseLogLevel(" Warning "))
	require.Equal(t, "TRACE", parseLogLevel("trace"))
	require.Equal(t, "INFO", parseLogLevel("loud"))
}

func TestServerLoggerConfigStructured(t *testing.T) {
	cfg := ServerLoggerConfig("quizai", config.LoggingConfig{Level: "error", Profile: "structured"}, "quizai")
	require.Equal(t, logging.ProfileStructured, cfg.Profile)
	require.Equal(t, "ERROR", cfg.DefaultLevel)
	require.Equal(t, "quizai", cfg.StaticFields["namespace"])
	require.Len(t, cfg.Middleware, 1)
	require.Equal(t, "json", cfg.Sinks[0].Format)
}

func TestServerLoggerConfigSimple(t *testing.T) {
	cfg := ServerLoggerConfig("quizai", config.LoggingConfig{Profile: "SIMPLE"}, "")
	require.Equal(t, logging.ProfileSimple, cfg.Profile)
	require.Equal(t, "INFO", cfg.DefaultLevel)
	require.Empty(t, cfg.StaticFields)
	require.Empty(t, cfg.Middleware)
}

func TestInitLoggers(t *testing.T) {
	InitCLILogger("quizai-test", true)
	require.NotNil(t, CLILogger)
	CLILogger.Debug("cli logger ready", zap.String("test", "value"))

	InitServerLogger("quizai-test", config.LoggingConfig{Level: "info", Profile: "structured"}, "quizai")
	require.NotNil(t, ServerLogger)
	ServerLogger.Info("server logger ready", zap.String("component", "test"))
}

func TestEmbeddedCrucibleVersion(t *testing.T) {
	version := crucible.GetVersion()
	require.NotEmpty(t, version.Gofulmen)
	require.NotEmpty(t, version.Crucible)
}
