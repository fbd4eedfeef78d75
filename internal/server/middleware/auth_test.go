package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuthenticateAndRequireAccount(t *testing.T) {
	verify := func(token string) (string, error) {
		if token == "good" {
			return "acct-1", nil
		}
		return "", errors.New("bad token")
	}
	var seen string
	protected := Authenticate(verify)(RequireAccount(func(w http.ResponseWriter, r *http.Request, err error) {
		require.ErrorIs(t, err, ErrAuthRequired)
		w.WriteHeader(http.StatusUnauthorized)
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetAccountID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	cases := []struct {
		header string
		status int
	}{
		{"Bearer good", http.StatusNoContent},
		{"bearer good", http.StatusNoContent},
		{"Bearer bad", http.StatusUnauthorized},
		{"good", http.StatusUnauthorized},
		{"", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		seen = ""
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		require.Equal(t, tc.status, rec.Code, tc.header)
		if tc.status == http.StatusNoContent {
			require.Equal(t, "acct-1", seen)
		}
	}
}
