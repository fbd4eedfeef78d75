package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

type accountContextKey struct{}

// ErrAuthRequired is passed to the error responder when a protected route is
// called without a valid session.
var ErrAuthRequired = errors.New("authentication required")

// TokenVerifier resolves a bearer token to an account id.
type TokenVerifier func(token string) (string, error)

// Authenticate attaches the account id of a valid bearer token to the request
// context. Requests without a token, or with an invalid one, pass through
// anonymously; RequireAccount rejects them on protected routes.
func Authenticate(verify TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verify == nil {
				next.ServeHTTP(w, r)
				return
			}
			token := bearerToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			accountID, err := verify(token)
			if err != nil || accountID == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), accountContextKey{}, accountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAccount rejects requests that Authenticate did not sign in.
func RequireAccount(respond func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if GetAccountID(r.Context()) == "" {
				respond(w, r, ErrAuthRequired)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetAccountID returns the signed-in account id, or "".
func GetAccountID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(accountContextKey{}).(string)
	return id
}

// WithAccountID returns a context signed in as accountID.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountContextKey{}, accountID)
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}
