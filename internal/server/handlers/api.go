package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/quizai/quizai/internal/account"
	"github.com/quizai/quizai/internal/classroom"
	"github.com/quizai/quizai/internal/core"
	"github.com/quizai/quizai/internal/core/engine"
	apperrors "github.com/quizai/quizai/internal/errors"
	"github.com/quizai/quizai/internal/metrics"
	"github.com/quizai/quizai/internal/server/middleware"
)

// maxBodyBytes bounds request bodies; rooms may carry base64 materials.
const maxBodyBytes = 16 << 20

// API serves the quiz endpoints.
type API struct {
	Accounts *account.Service
	Rooms    *classroom.Service
	Grader   *engine.BatchGrader
}

// Mount registers the API routes on r. Routes wrapped by requireAuth need a
// signed-in account.
func (a *API) Mount(r chi.Router, requireAuth func(http.Handler) http.Handler) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/signup", a.Signup)
		r.Post("/login", a.Login)
		r.Post("/verify", a.Verify)
		r.Post("/password-reset", a.RequestPasswordReset)
		r.Post("/password-reset/confirm", a.ConfirmPasswordReset)
	})

	r.Post("/rooms/join", a.JoinRoom)
	r.Get("/rooms/{roomID}", a.GetRoom)
	r.Post("/rooms/{roomID}/submissions", a.Submit)

	r.Group(func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/me", a.Me)

		r.Post("/rooms", a.CreateRoom)
		r.Get("/rooms/mine", a.ListMyRooms)
		r.Patch("/rooms/{roomID}", a.UpdateRoom)
		r.Delete("/rooms/{roomID}", a.DeleteRoom)
		r.Get("/rooms/{roomID}/submissions", a.ListSubmissions)
		r.Post("/rooms/{roomID}/grade-batch", a.GradeBatch)

		r.Get("/submissions/mine", a.ListMySubmissions)
		r.Patch("/submissions/{submissionID}/grades/{questionID}", a.SetGrade)
		r.Post("/submissions/{submissionID}/finalize", a.Finalize)
	})
}

// Signup handles POST /api/auth/signup.
func (a *API) Signup(w http.ResponseWriter, r *http.Request) {
	var req account.SignupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	view, err := a.Accounts.Signup(r.Context(), req)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// Login handles POST /api/auth/login.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req account.LoginRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := a.Accounts.Login(r.Context(), req)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Verify handles POST /api/auth/verify.
func (a *API) Verify(w http.ResponseWriter, r *http.Request) {
	var req account.VerifyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	view, err := a.Accounts.Verify(r.Context(), req)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// RequestPasswordReset handles POST /api/auth/password-reset.
func (a *API) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req account.PasswordResetRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := a.Accounts.RequestPasswordReset(r.Context(), req); err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

// ConfirmPasswordReset handles POST /api/auth/password-reset/confirm.
func (a *API) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req account.PasswordResetConfirmRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := a.Accounts.ConfirmPasswordReset(r.Context(), req); err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// Me handles GET /api/me.
func (a *API) Me(w http.ResponseWriter, r *http.Request) {
	view, err := a.Accounts.Me(r.Context(), middleware.GetAccountID(r.Context()))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// CreateRoom handles POST /api/rooms.
func (a *API) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req classroom.CreateRoomRequest
	if !decodeBody(w, r, &req) {
		return
	}
	room, err := a.Rooms.CreateRoom(r.Context(), middleware.GetAccountID(r.Context()), req)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, room)
}

// ListMyRooms handles GET /api/rooms/mine.
func (a *API) ListMyRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := a.Rooms.ListMine(r.Context(), middleware.GetAccountID(r.Context()))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rooms": nonNil(rooms)})
}

// JoinRoom handles POST /api/rooms/join.
func (a *API) JoinRoom(w http.ResponseWriter, r *http.Request) {
	var req classroom.JoinRoomRequest
	if !decodeBody(w, r, &req) {
		return
	}
	room, err := a.Rooms.Join(r.Context(), req)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"room_id": room.ID, "room": room})
}

// GetRoom handles GET /api/rooms/{roomID}.
func (a *API) GetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := a.Rooms.GetRoom(r.Context(), chi.URLParam(r, "roomID"), middleware.GetAccountID(r.Context()))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// UpdateRoom handles PATCH /api/rooms/{roomID}.
func (a *API) UpdateRoom(w http.ResponseWriter, r *http.Request) {
	var req classroom.UpdateRoomRequest
	if !decodeBody(w, r, &req) {
		return
	}
	room, err := a.Rooms.UpdateRoom(r.Context(), middleware.GetAccountID(r.Context()), chi.URLParam(r, "roomID"), req)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// DeleteRoom handles DELETE /api/rooms/{roomID}.
func (a *API) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	if err := a.Rooms.DeleteRoom(r.Context(), middleware.GetAccountID(r.Context()), chi.URLParam(r, "roomID")); err != nil {
		respondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Submit handles POST /api/rooms/{roomID}/submissions. Signed-in students
// have the submission linked to their account.
func (a *API) Submit(w http.ResponseWriter, r *http.Request) {
	var req classroom.SubmitRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := a.Rooms.Submit(r.Context(), chi.URLParam(r, "roomID"), req,
		middleware.GetAccountID(r.Context()), clientIP(r))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	if res.Grading != nil {
		recordGrading(res.Grading, "instant")
	}
	writeJSON(w, http.StatusCreated, res)
}

// ListSubmissions handles GET /api/rooms/{roomID}/submissions.
func (a *API) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	subs, err := a.Rooms.ListSubmissions(r.Context(), middleware.GetAccountID(r.Context()), chi.URLParam(r, "roomID"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": nonNil(subs)})
}

// ListMySubmissions handles GET /api/submissions/mine.
func (a *API) ListMySubmissions(w http.ResponseWriter, r *http.Request) {
	subs, err := a.Rooms.ListMySubmissions(r.Context(), middleware.GetAccountID(r.Context()))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"submissions": nonNil(subs)})
}

// GradeBatch handles POST /api/rooms/{roomID}/grade-batch.
func (a *API) GradeBatch(w http.ResponseWriter, r *http.Request) {
	summary, err := a.Grader.RunBatch(r.Context(), chi.URLParam(r, "roomID"), middleware.GetAccountID(r.Context()))
	if err != nil {
		metrics.RecordOperation("grade_batch", false)
		respondWithError(w, r, err)
		return
	}
	metrics.RecordOperation("grade_batch", true)
	recordGrading(summary, "batch")
	writeJSON(w, http.StatusOK, summary)
}

// SetGradeRequest overrides one question score. Score accepts numbers and
// numeric strings.
type SetGradeRequest struct {
	Score    any    `json:"score"`
	Feedback string `json:"feedback,omitempty"`
}

// SetGrade handles PATCH /api/submissions/{submissionID}/grades/{questionID}.
func (a *API) SetGrade(w http.ResponseWriter, r *http.Request) {
	var req SetGradeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Score == nil {
		respondWithError(w, r, &core.ValidationError{Fields: map[string]string{"score": "is required"}})
		return
	}
	sub, err := a.Grader.SetGrade(r.Context(), middleware.GetAccountID(r.Context()),
		chi.URLParam(r, "submissionID"), chi.URLParam(r, "questionID"), req.Score, req.Feedback)
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// Finalize handles POST /api/submissions/{submissionID}/finalize.
func (a *API) Finalize(w http.ResponseWriter, r *http.Request) {
	sub, err := a.Grader.Finalize(r.Context(), middleware.GetAccountID(r.Context()), chi.URLParam(r, "submissionID"))
	if err != nil {
		respondWithError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func recordGrading(summary *core.BatchSummary, trigger string) {
	metrics.RecordGradingBatch(string(summary.Outcome), summary.Processed, summary.Skipped, summary.Failed)
	if summary.Outcome == core.BatchGraded {
		metrics.RecordAIUsage(trigger)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		message := "request body must be valid JSON"
		if errors.Is(err, io.EOF) {
			message = "request body is required"
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			message = "request body is too large"
		}
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, message))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
