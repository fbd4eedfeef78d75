package ailink

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quizai/quizai/internal/ailink/driver"
)

func TestMapProviderErrorStatusCodes(t *testing.T) {
	cases := []struct {
		name       string
		statusCode int
		wantReason string
	}{
		{"auth", 401, "authentication failed"},
		{"forbidden", 403, "authentication failed"},
		{"rate", 429, "rate limited"},
		{"bad", 400, "rejected request"},
		{"unavail", 503, "unavailable"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := &driver.ProviderError{Provider: "gemini", StatusCode: tc.statusCode, Message: "boom"}
			mapped := mapProviderError(err)
			require.NotNil(t, mapped)
			require.Equal(t, tc.statusCode, mapped.StatusCode)
			require.Contains(t, mapped.Error(), tc.wantReason)
			require.ErrorIs(t, mapped, err)
		})
	}
}

func TestMapProviderErrorTimeoutAndPlain(t *testing.T) {
	mapped := mapProviderError(fmt.Errorf("request failed: %w", context.DeadlineExceeded))
	require.Zero(t, mapped.StatusCode)
	require.Contains(t, mapped.Error(), "timed out")

	plain := errors.New("dial tcp: refused")
	mapped = mapProviderError(plain)
	require.ErrorIs(t, mapped, plain)

	require.Nil(t, mapProviderError(nil))
}
