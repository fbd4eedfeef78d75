package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/quizai/quizai/internal/account"
	"github.com/quizai/quizai/internal/config"
	"github.com/quizai/quizai/internal/core"
	"github.com/quizai/quizai/internal/core/engine"
	"github.com/quizai/quizai/internal/output"
)

func TestSanitizeFilename(t *testing.T) {
	require.Equal(t, "room-42", sanitizeFilename(" Room 42 "))
	require.Equal(t, "a.b_c", sanitizeFilename("a.b_c"))
	require.Equal(t, "output", sanitizeFilename("///"))
}

func TestOutputExtension(t *testing.T) {
	require.Equal(t, "json", outputExtension(output.FormatJSON))
	require.Equal(t, "yaml", outputExtension(output.FormatYAML))
	require.Equal(t, "txt", outputExtension(output.FormatTable))
}

func TestOpenCommandSinkWritesToDir(t *testing.T) {
	dir := t.TempDir()
	cmd := &cobra.Command{Use: "test"}
	addOutputFlags(cmd)
	require.NoError(t, cmd.Flags().Set("out-dir", dir))

	sink, err := openCommandSink(cmd, output.FormatJSON, "grade.room-1")
	require.NoError(t, err)
	require.NoError(t, writeOutput(sink.writer, `{"ok":true}`))
	require.NoError(t, sink.close())

	data, err := os.ReadFile(filepath.Join(dir, "grade.room-1.json"))
	require.NoError(t, err)
	require.Equal(t, "{\"ok\":true}\n", string(data))
}

func TestOpenCommandSinkRejectsBothTargets(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	addOutputFlags(cmd)
	require.NoError(t, cmd.Flags().Set("out", "a.json"))
	require.NoError(t, cmd.Flags().Set("out-dir", "b"))

	_, err := openCommandSink(cmd, output.FormatJSON, "x")
	require.Error(t, err)
}

func TestTokenVerifier(t *testing.T) {
	tokens, err := account.NewTokenIssuer("secret", time.Hour)
	require.NoError(t, err)

	token, _, err := tokens.Issue(&core.Account{ID: "acct-1", Email: "a@x.com"})
	require.NoError(t, err)

	verify := tokenVerifier(tokens)
	id, err := verify(token)
	require.NoError(t, err)
	require.Equal(t, "acct-1", id)

	_, err = verify("garbage")
	require.ErrorIs(t, err, core.ErrInvalidCredentials)
}

type memLimits struct {
	records map[string]core.RateLimitRecord
}

func (m *memLimits) GetRateLimit(_ context.Context, key string) (*core.RateLimitRecord, error) {
	rec, ok := m.records[key]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memLimits) UpdateRateLimit(_ context.Context, key string, record *core.RateLimitRecord) error {
	m.records[key] = *record
	return nil
}

func (m *memLimits) DeleteRateLimit(_ context.Context, key string) error {
	delete(m.records, key)
	return nil
}

func TestNewLimiterUsesSecurityConfig(t *testing.T) {
	store := &memLimits{records: map[string]core.RateLimitRecord{}}
	limiter := newLimiter(store, config.SecurityConfig{FailureThreshold: 1, BaseLockDuration: 10 * time.Second})

	require.NoError(t, limiter.RecordFailure(context.Background(), "a@x.com", engine.ActionLogin))

	var limited *core.RateLimitedError
	err := limiter.Check(context.Background(), "a@x.com", engine.ActionLogin)
	require.ErrorAs(t, err, &limited)
}

func TestVersionCommand(t *testing.T) {
	SetVersionInfo("1.2.3", "abc", "today")
	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	defer versionCmd.SetOut(nil)

	require.NoError(t, versionCmd.RunE(versionCmd, nil))
	require.Equal(t, "quizai 1.2.3\n", buf.String())
}
