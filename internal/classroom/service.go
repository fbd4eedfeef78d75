package classroom

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/quizai/quizai/internal/core"
)

const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
	codeAttempts = 5
)

// Store is the persistence the classroom service needs.
type Store interface {
	CreateRoom(ctx context.Context, room *core.Room) error
	GetRoom(ctx context.Context, id string) (*core.Room, error)
	GetRoomByCode(ctx context.Context, code string) (*core.Room, error)
	ListRooms(ctx context.Context, hostID string) ([]*core.Room, error)
	UpdateRoom(ctx context.Context, room *core.Room) error
	DeleteRoom(ctx context.Context, id string) error

	CreateSubmission(ctx context.Context, sub *core.Submission) error
	ListSubmissions(ctx context.Context, filter core.SubmissionFilter) ([]*core.Submission, error)
}

// InstantGrader grades new submissions of instant-marking rooms.
type InstantGrader interface {
	GradeNow(ctx context.Context, room *core.Room, subs ...*core.Submission) (*core.BatchSummary, error)
}

// Service hosts rooms and collects submissions.
type Service struct {
	Store  Store
	Grader InstantGrader
	Logger *logging.Logger
	Clock  func() time.Time
}

// CreateRoom stores a new active room with a fresh join code.
func (s *Service) CreateRoom(ctx context.Context, hostID string, req CreateRoomRequest) (*core.Room, error) {
	if err := core.Validate(req); err != nil {
		return nil, err
	}
	questions, err := buildQuestions(req.Questions)
	if err != nil {
		return nil, err
	}

	now := s.now()
	room := &core.Room{
		ID:        uuid.NewString(),
		HostID:    hostID,
		Title:     strings.TrimSpace(req.Title),
		Active:    true,
		Questions: questions,
		Materials: lo.Map(req.Materials, func(m MaterialInput, _ int) core.Material {
			return core.Material{Name: m.Name, MIMEType: strings.ToLower(strings.TrimSpace(m.MIMEType)), Content: m.Content}
		}),
		Config:    applyConfig(core.RoomConfig{}, req.Config),
		CreatedAt: now,
		UpdatedAt: now,
	}

	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := newJoinCode()
		if err != nil {
			return nil, err
		}
		room.Code = code
		err = s.Store.CreateRoom(ctx, room)
		if err == nil {
			s.logInfo("Room created", zap.String("room_id", room.ID), zap.Int("questions", len(room.Questions)))
			return room, nil
		}
		if !errors.Is(err, core.ErrConflict) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("allocate join code: %w", core.ErrConflict)
}

// Join resolves a join code to an active room. The returned room is the
// student view without grading keys.
func (s *Service) Join(ctx context.Context, req JoinRoomRequest) (*core.Room, error) {
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	if err := core.Validate(req); err != nil {
		return nil, err
	}
	room, err := s.Store.GetRoomByCode(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	if !room.Active {
		return nil, fmt.Errorf("room %s is closed: %w", req.Code, core.ErrNotFound)
	}
	return StudentView(room), nil
}

// GetRoom returns a room. Only the host sees grading keys and materials.
func (s *Service) GetRoom(ctx context.Context, roomID, viewerID string) (*core.Room, error) {
	room, err := s.Store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if viewerID != "" && room.HostID == viewerID {
		return room, nil
	}
	return StudentView(room), nil
}

// ListMine returns the rooms hosted by hostID.
func (s *Service) ListMine(ctx context.Context, hostID string) ([]*core.Room, error) {
	return s.Store.ListRooms(ctx, hostID)
}

// UpdateRoom applies the set fields of req to a room owned by hostID.
func (s *Service) UpdateRoom(ctx context.Context, hostID, roomID string, req UpdateRoomRequest) (*core.Room, error) {
	if err := core.Validate(req); err != nil {
		return nil, err
	}
	room, err := s.owned(ctx, hostID, roomID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		room.Title = strings.TrimSpace(*req.Title)
	}
	if req.Questions != nil {
		questions, err := buildQuestions(req.Questions)
		if err != nil {
			return nil, err
		}
		room.Questions = questions
	}
	if req.Active != nil {
		room.Active = *req.Active
	}
	if req.Config != nil {
		room.Config = applyConfig(room.Config, *req.Config)
	}
	room.UpdatedAt = s.now()

	if err := s.Store.UpdateRoom(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// DeleteRoom removes a room owned by hostID together with its submissions.
func (s *Service) DeleteRoom(ctx context.Context, hostID, roomID string) error {
	if _, err := s.owned(ctx, hostID, roomID); err != nil {
		return err
	}
	if err := s.Store.DeleteRoom(ctx, roomID); err != nil {
		return err
	}
	s.logInfo("Room deleted", zap.String("room_id", roomID))
	return nil
}

// Submit stores a pending submission. Answers to unknown questions are
// dropped. Instant-marking rooms grade the submission right away; a grading
// failure leaves it pending for a later batch and is not returned.
func (s *Service) Submit(ctx context.Context, roomID string, req SubmitRequest, studentID, ipAddress string) (*SubmitResult, error) {
	if err := core.Validate(req); err != nil {
		return nil, err
	}
	room, err := s.Store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.Active {
		return nil, fmt.Errorf("room %s is closed: %w", roomID, core.ErrForbidden)
	}

	answers := make(map[string]string, len(room.Questions))
	for _, q := range room.Questions {
		if answer, ok := req.Answers[q.ID]; ok {
			answers[q.ID] = answer
		}
	}

	now := s.now()
	sub := &core.Submission{
		ID:           uuid.NewString(),
		RoomID:       room.ID,
		StudentName:  strings.TrimSpace(req.StudentName),
		StudentEmail: strings.TrimSpace(req.StudentEmail),
		StudentID:    studentID,
		IPAddress:    ipAddress,
		Answers:      answers,
		Grades:       map[string]core.Grade{},
		Status:       core.SubmissionPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.CreateSubmission(ctx, sub); err != nil {
		return nil, err
	}

	result := &SubmitResult{Submission: sub}
	if room.Config.MarkingType != core.MarkingInstant || s.Grader == nil {
		return result, nil
	}

	summary, err := s.Grader.GradeNow(ctx, room, sub)
	if err != nil {
		s.logWarn("Instant grading failed; submission left pending",
			zap.String("room_id", room.ID),
			zap.String("submission_id", sub.ID),
			zap.Error(err))
		return result, nil
	}
	result.Grading = summary
	return result, nil
}

// ListSubmissions returns every submission of a room owned by hostID.
func (s *Service) ListSubmissions(ctx context.Context, hostID, roomID string) ([]*core.Submission, error) {
	if _, err := s.owned(ctx, hostID, roomID); err != nil {
		return nil, err
	}
	return s.Store.ListSubmissions(ctx, core.SubmissionFilter{RoomID: roomID})
}

// ListMySubmissions returns the submissions made by a signed-in student.
func (s *Service) ListMySubmissions(ctx context.Context, studentID string) ([]*core.Submission, error) {
	if strings.TrimSpace(studentID) == "" {
		return nil, core.ErrInvalidCredentials
	}
	return s.Store.ListSubmissions(ctx, core.SubmissionFilter{StudentID: studentID})
}

// StudentView strips grading keys and materials from a room.
func StudentView(room *core.Room) *core.Room {
	if room == nil {
		return nil
	}
	view := *room
	view.Materials = nil
	view.Questions = lo.Map(room.Questions, func(q core.Question, _ int) core.Question {
		q.GradingKey = ""
		return q
	})
	return &view
}

func (s *Service) owned(ctx context.Context, hostID, roomID string) (*core.Room, error) {
	room, err := s.Store.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.HostID != hostID {
		return nil, core.ErrForbidden
	}
	return room, nil
}

func buildQuestions(inputs []QuestionInput) ([]core.Question, error) {
	seen := make(map[string]struct{}, len(inputs))
	questions := make([]core.Question, 0, len(inputs))
	for i, in := range inputs {
		id := strings.TrimSpace(in.ID)
		if id == "" {
			id = fmt.Sprintf("q%d", i+1)
		}
		if _, dup := seen[id]; dup {
			return nil, &core.ValidationError{Fields: map[string]string{
				fmt.Sprintf("questions[%d].id", i): "must be unique",
			}}
		}
		seen[id] = struct{}{}
		questions = append(questions, core.Question{
			ID:         id,
			Type:       in.Type,
			Prompt:     strings.TrimSpace(in.Prompt),
			Options:    in.Options,
			GradingKey: strings.TrimSpace(in.GradingKey),
		})
	}
	return questions, nil
}

func applyConfig(cfg core.RoomConfig, in ConfigInput) core.RoomConfig {
	if in.GradingMode != "" {
		cfg.GradingMode = in.GradingMode
	}
	if in.MarkingType != "" {
		cfg.MarkingType = in.MarkingType
	}
	if cfg.GradingMode == "" {
		cfg.GradingMode = core.GradingOpen
	}
	if cfg.MarkingType == "" {
		cfg.MarkingType = core.MarkingBatch
	}
	return cfg
}

func newJoinCode() (string, error) {
	var b strings.Builder
	limit := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < codeLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("generate join code: %w", err)
		}
		b.WriteByte(codeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) logInfo(msg string, fields ...zap.Field) {
	if s.Logger != nil {
		s.Logger.Info(msg, fields...)
	}
}

func (s *Service) logWarn(msg string, fields ...zap.Field) {
	if s.Logger != nil {
		s.Logger.Warn(msg, fields...)
	}
}
