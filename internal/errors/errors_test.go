package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/quizai/quizai/internal/core"
)

func TestFromDomainStatusCodes(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"not found", fmt.Errorf("room x: %w", core.ErrNotFound), CodeNotFound, http.StatusNotFound},
		{"forbidden", core.ErrForbidden, CodeForbidden, http.StatusForbidden},
		{"credentials", core.ErrInvalidCredentials, CodeUnauthorized, http.StatusUnauthorized},
		{"conflict", core.ErrConflict, CodeConflict, http.StatusConflict},
		{"rate limited", &core.RateLimitedError{Action: "login", Remaining: 1500 * time.Millisecond}, CodeRateLimited, http.StatusTooManyRequests},
		{"quota", &core.QuotaExceededError{AccountID: "a", Usage: 5, Limit: 5}, CodeQuotaExceeded, http.StatusForbidden},
		{"ai", &core.AIServiceError{Err: fmt.Errorf("boom")}, CodeExternalService, http.StatusBadGateway},
		{"validation", &core.ValidationError{Fields: map[string]string{"email": "is required"}}, CodeValidationFailed, http.StatusBadRequest},
		{"timeout", context.DeadlineExceeded, CodeTimeout, http.StatusGatewayTimeout},
		{"unknown", fmt.Errorf("disk on fire"), CodeInternal, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := FromDomain(ctx, tc.err)
			require.Equal(t, tc.code, env.Code)
			require.Equal(t, tc.status, HTTPStatusFromEnvelope(env))
		})
	}
}

func TestRespondWithErrorRateLimited(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	rec := httptest.NewRecorder()

	RespondWithError(rec, req, &core.RateLimitedError{Action: "login", Remaining: 1500 * time.Millisecond})

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "2", rec.Header().Get("Retry-After"))

	var body HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, CodeRateLimited, body.Error.Code)
	require.EqualValues(t, 2, body.Error.Details["retry_after"])
	require.NotEmpty(t, body.Error.RequestID)
}

func TestRespondWithErrorHidesInternalDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/rooms/mine", nil)
	rec := httptest.NewRecorder()

	RespondWithError(rec, req, fmt.Errorf("dial tcp 10.0.0.1: refused"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "10.0.0.1")
}

func TestRespondWithErrorValidationFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", nil)
	rec := httptest.NewRecorder()

	RespondWithError(rec, req, &core.ValidationError{Fields: map[string]string{"email": "is required"}})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body HTTPErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	fields, ok := body.Error.Details["fields"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "is required", fields["email"])
}

func TestHTTPStatusFromCodeDefaults(t *testing.T) {
	require.Equal(t, http.StatusInternalServerError, HTTPStatusFromCode("SOMETHING_ELSE"))
	require.Equal(t, http.StatusInternalServerError, HTTPStatusFromEnvelope(nil))
	require.Equal(t, http.StatusMethodNotAllowed, HTTPStatusFromCode(CodeMethodNotAllowed))
}
