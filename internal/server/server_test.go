package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/quizai/quizai/internal/account"
	"github.com/quizai/quizai/internal/classroom"
	"github.com/quizai/quizai/internal/config"
	"github.com/quizai/quizai/internal/core"
	"github.com/quizai/quizai/internal/core/engine"
	apperrors "github.com/quizai/quizai/internal/errors"
	"github.com/quizai/quizai/internal/notify"
	"github.com/quizai/quizai/internal/server/handlers"
)

func TestServerUsesStandardErrorHandlers(t *testing.T) {
	srv := New(config.ServerConfig{Host: "127.0.0.1"})

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	rec := httptest.NewRecorder()

	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rec.Code)
	}

	var body apperrors.HTTPErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}

	if body.Error.Code != "NOT_FOUND" {
		t.Fatalf("expected error code NOT_FOUND, got %s", body.Error.Code)
	}
}

type codeBox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (c *codeBox) SendCode(_ context.Context, _ notify.Kind, to mail.Address, code string, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[to.Address] = code
}

type gradedBox struct {
	mu   sync.Mutex
	subs []string
}

func (g *gradedBox) NotifyGraded(_ context.Context, _ *core.Room, sub *core.Submission) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subs = append(g.subs, sub.ID)
}

type apiHarness struct {
	t       *testing.T
	handler http.Handler
	store   *memBackend
	ai      *scriptedAI
	graded  *gradedBox
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	store := newMemBackend()
	ai := &scriptedAI{score: "8 points"}
	graded := &gradedBox{}

	tokens, err := account.NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)

	limiter := &engine.Limiter{Store: store}
	grader := &engine.BatchGrader{Store: store, AI: ai, Notifier: graded}
	api := &handlers.API{
		Accounts: &account.Service{
			Store:      store,
			Limiter:    limiter,
			Tokens:     tokens,
			Codes:      &codeBox{codes: map[string]string{}},
			BcryptCost: bcrypt.MinCost,
		},
		Rooms:  &classroom.Service{Store: store, Grader: grader},
		Grader: grader,
	}

	verify := func(token string) (string, error) {
		session, err := tokens.Verify(token)
		if err != nil {
			return "", err
		}
		return session.AccountID, nil
	}
	srv := New(config.ServerConfig{Host: "127.0.0.1"}, WithAPI(api), WithTokenVerifier(verify))
	return &apiHarness{t: t, handler: srv.Handler(), store: store, ai: ai, graded: graded}
}

func (h *apiHarness) do(method, path, token string, body any, out any) int {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(h.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

func (h *apiHarness) signupAndLogin(email string) string {
	h.t.Helper()
	status := h.do(http.MethodPost, "/api/auth/signup", "", account.SignupRequest{Email: email, Password: "password-123", Name: "Host"}, nil)
	require.Equal(h.t, http.StatusCreated, status)

	var res account.LoginResult
	status = h.do(http.MethodPost, "/api/auth/login", "", account.LoginRequest{Email: email, Password: "password-123"}, &res)
	require.Equal(h.t, http.StatusOK, status)
	require.NotEmpty(h.t, res.Token)
	return res.Token
}

func TestAPIGradingFlow(t *testing.T) {
	h := newAPIHarness(t)
	token := h.signupAndLogin("host@example.com")

	var me account.AccountView
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/me", token, nil, &me))
	require.Equal(t, 5, me.QuotaRemaining)

	var room core.Room
	status := h.do(http.MethodPost, "/api/rooms", token, classroom.CreateRoomRequest{
		Title: "Cells",
		Questions: []classroom.QuestionInput{
			{Type: core.QuestionShort, Prompt: "What is a cell?", GradingKey: "unit of life"},
			{Type: core.QuestionLong, Prompt: "Explain mitosis"},
		},
	}, &room)
	require.Equal(t, http.StatusCreated, status)

	var joined struct {
		RoomID string    `json:"room_id"`
		Room   core.Room `json:"room"`
	}
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/api/rooms/join", "", classroom.JoinRoomRequest{Code: room.Code}, &joined))
	require.Equal(t, room.ID, joined.RoomID)
	require.Empty(t, joined.Room.Questions[0].GradingKey)

	for _, name := range []string{"Ada", "Bob"} {
		status = h.do(http.MethodPost, "/api/rooms/"+room.ID+"/submissions", "", classroom.SubmitRequest{
			StudentName:  name,
			StudentEmail: name + "@example.com",
			Answers:      map[string]string{"q1": "answer", "q2": "answer"},
		}, nil)
		require.Equal(t, http.StatusCreated, status)
	}

	var summary core.BatchSummary
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/api/rooms/"+room.ID+"/grade-batch", token, nil, &summary))
	require.Equal(t, core.BatchGraded, summary.Outcome)
	require.Equal(t, 2, summary.Processed)
	require.Equal(t, 1, h.ai.calls)

	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/me", token, nil, &me))
	require.Equal(t, 1, me.AIUsage)

	var listed struct {
		Submissions []core.Submission `json:"submissions"`
	}
	require.Equal(t, http.StatusOK, h.do(http.MethodGet, "/api/rooms/"+room.ID+"/submissions", token, nil, &listed))
	require.Len(t, listed.Submissions, 2)
	for _, sub := range listed.Submissions {
		require.Equal(t, core.SubmissionGraded, sub.Status)
		require.Equal(t, 16, sub.TotalScore)
	}

	// Re-running finds nothing pending and charges nothing.
	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/api/rooms/"+room.ID+"/grade-batch", token, nil, &summary))
	require.Equal(t, core.BatchNoPending, summary.Outcome)
	require.Equal(t, 1, h.ai.calls)

	subID := listed.Submissions[0].ID
	var updated core.Submission
	status = h.do(http.MethodPatch, "/api/submissions/"+subID+"/grades/q1", token, map[string]any{"score": 3}, &updated)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, 11, updated.TotalScore)

	require.Equal(t, http.StatusOK, h.do(http.MethodPost, "/api/submissions/"+subID+"/finalize", token, nil, &updated))
	require.Equal(t, core.SubmissionGraded, updated.Status)
}

func TestAPIOwnershipAndAuth(t *testing.T) {
	h := newAPIHarness(t)
	host := h.signupAndLogin("host@example.com")
	other := h.signupAndLogin("other@example.com")

	var room core.Room
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/rooms", host, classroom.CreateRoomRequest{
		Title:     "Quiz",
		Questions: []classroom.QuestionInput{{Type: core.QuestionShort, Prompt: "Q"}},
	}, &room))

	var errBody apperrors.HTTPErrorResponse
	require.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/api/rooms/mine", "", nil, &errBody))
	require.Equal(t, "UNAUTHORIZED", errBody.Error.Code)

	require.Equal(t, http.StatusForbidden, h.do(http.MethodPost, "/api/rooms/"+room.ID+"/grade-batch", other, nil, &errBody))
	require.Equal(t, "FORBIDDEN", errBody.Error.Code)

	require.Equal(t, http.StatusForbidden, h.do(http.MethodDelete, "/api/rooms/"+room.ID, other, nil, nil))
	require.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/api/rooms/"+room.ID, host, nil, nil))
	require.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/api/rooms/"+room.ID, host, nil, nil))
}

func TestAPIQuotaExceeded(t *testing.T) {
	h := newAPIHarness(t)
	token := h.signupAndLogin("host@example.com")

	var room core.Room
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/rooms", token, classroom.CreateRoomRequest{
		Title:     "Quiz",
		Questions: []classroom.QuestionInput{{Type: core.QuestionShort, Prompt: "Q"}},
	}, &room))
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/api/rooms/"+room.ID+"/submissions", "",
		classroom.SubmitRequest{StudentName: "Ada", Answers: map[string]string{"q1": "a"}}, nil))

	require.NoError(t, h.store.IncrementAIUsage(context.Background(), room.HostID, 5))

	var errBody apperrors.HTTPErrorResponse
	require.Equal(t, http.StatusForbidden, h.do(http.MethodPost, "/api/rooms/"+room.ID+"/grade-batch", token, nil, &errBody))
	require.Equal(t, "QUOTA_EXCEEDED", errBody.Error.Code)
	require.Equal(t, 0, h.ai.calls)
}

func TestAPILoginLockout(t *testing.T) {
	h := newAPIHarness(t)
	h.signupAndLogin("host@example.com")

	for i := 0; i < 3; i++ {
		status := h.do(http.MethodPost, "/api/auth/login", "", account.LoginRequest{Email: "host@example.com", Password: "wrong-pass"}, nil)
		require.Equal(t, http.StatusUnauthorized, status)
	}

	var errBody apperrors.HTTPErrorResponse
	status := h.do(http.MethodPost, "/api/auth/login", "", account.LoginRequest{Email: "host@example.com", Password: "password-123"}, &errBody)
	require.Equal(t, http.StatusTooManyRequests, status)
	require.Equal(t, "RATE_LIMITED", errBody.Error.Code)
	require.EqualValues(t, 100, errBody.Error.Details["retry_after"])
}

func TestAPIRejectsBadBodies(t *testing.T) {
	h := newAPIHarness(t)

	var errBody apperrors.HTTPErrorResponse
	req := httptest.NewRequest(http.MethodPost, "/api/auth/signup", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errBody))
	require.Equal(t, "INVALID_INPUT", errBody.Error.Code)

	status := h.do(http.MethodPost, "/api/auth/signup", "", account.SignupRequest{Email: "bad", Password: "x"}, &errBody)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, "VALIDATION_FAILED", errBody.Error.Code)
}
