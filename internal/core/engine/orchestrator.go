package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/quizai/quizai/internal/core"
)

const (
	// DefaultContextLimit caps the grading context sent to the model, in characters.
	DefaultContextLimit = 20000
	// DefaultFeedbackPlaceholder is stored when the model omits feedback.
	DefaultFeedbackPlaceholder = "No feedback provided."
	// ManualFeedback is stored when a host overrides a score.
	ManualFeedback = "Graded by host."

	defaultSaveWorkers = 4
)

// GradingStore is the persistence the grader needs.
type GradingStore interface {
	GetRoom(ctx context.Context, id string) (*core.Room, error)
	GetAccount(ctx context.Context, id string) (*core.Account, error)
	GetSubmission(ctx context.Context, id string) (*core.Submission, error)
	ListSubmissions(ctx context.Context, filter core.SubmissionFilter) ([]*core.Submission, error)
	UpdateSubmission(ctx context.Context, sub *core.Submission) error
	IncrementAIUsage(ctx context.Context, accountID string, delta int) error
}

// AIGrader grades many submissions in one model call.
type AIGrader interface {
	GradeBatch(ctx context.Context, req core.BatchGradingRequest) (core.BatchGrades, error)
}

// GradeNotifier hands graded submissions to a background delivery task.
// Implementations must return without waiting for delivery.
type GradeNotifier interface {
	NotifyGraded(ctx context.Context, room *core.Room, sub *core.Submission)
}

// BatchGrader runs the grading pipeline for a room: one model call for every
// pending submission, then sanitize, persist, charge, and notify.
type BatchGrader struct {
	Store               GradingStore
	AI                  AIGrader
	Notifier            GradeNotifier
	Logger              *logging.Logger
	Clock               func() time.Time
	ContextLimit        int
	SaveWorkers         int
	FeedbackPlaceholder string
}

// RunBatch grades every pending submission of roomID on behalf of accountID.
// An empty accountID skips the ownership check and is reserved for operator
// tooling.
func (g *BatchGrader) RunBatch(ctx context.Context, roomID, accountID string) (*core.BatchSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if g == nil || g.Store == nil || g.AI == nil {
		return nil, errors.New("batch grader is not configured")
	}

	summary := &core.BatchSummary{RoomID: roomID}

	room, err := g.Store.GetRoom(ctx, roomID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("load room: %w", err)
	}
	if room == nil {
		summary.Outcome = core.BatchRoomNotFound
		summary.CompletedAt = g.now()
		return summary, nil
	}
	if accountID != "" && room.HostID != accountID {
		return nil, core.ErrForbidden
	}

	pending, err := g.Store.ListSubmissions(ctx, core.SubmissionFilter{
		RoomID: room.ID,
		Status: core.SubmissionPending,
	})
	if err != nil {
		return nil, fmt.Errorf("load pending submissions: %w", err)
	}
	if len(pending) == 0 {
		summary.Outcome = core.BatchNoPending
		summary.CompletedAt = g.now()
		g.logInfo("no pending submissions", zap.String("room_id", room.ID))
		return summary, nil
	}

	return g.grade(ctx, room, pending)
}

// GradeNow grades the given submissions of room immediately. It backs
// instant marking, where each new submission is a batch of one.
func (g *BatchGrader) GradeNow(ctx context.Context, room *core.Room, subs ...*core.Submission) (*core.BatchSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if g == nil || g.Store == nil || g.AI == nil {
		return nil, errors.New("batch grader is not configured")
	}
	if room == nil {
		return nil, core.ErrNotFound
	}
	if len(subs) == 0 {
		return &core.BatchSummary{RoomID: room.ID, Outcome: core.BatchNoPending, CompletedAt: g.now()}, nil
	}
	return g.grade(ctx, room, subs)
}

func (g *BatchGrader) grade(ctx context.Context, room *core.Room, pending []*core.Submission) (*core.BatchSummary, error) {
	owner, err := g.Store.GetAccount(ctx, room.HostID)
	if err != nil {
		return nil, fmt.Errorf("load room owner: %w", err)
	}
	if owner.AIUsage >= owner.AILimit {
		return nil, &core.QuotaExceededError{AccountID: owner.ID, Usage: owner.AIUsage, Limit: owner.AILimit}
	}

	req := g.buildRequest(room, pending)
	start := g.now()
	grades, err := g.AI.GradeBatch(ctx, req)
	if err != nil {
		var aiErr *core.AIServiceError
		if !errors.As(err, &aiErr) {
			err = &core.AIServiceError{Err: err}
		}
		g.logError("batch grading call failed",
			zap.String("room_id", room.ID),
			zap.Int("submissions", len(pending)),
			zap.Error(err),
		)
		return nil, err
	}
	g.logInfo("batch grading call completed",
		zap.String("room_id", room.ID),
		zap.Int("submissions", len(pending)),
		zap.Int("results", len(grades)),
		zap.Duration("duration", g.now().Sub(start)),
	)

	// The model call succeeded, so it is charged even if nothing below persists.
	// A failed charge is logged rather than undoing work the model already did.
	if err := g.Store.IncrementAIUsage(ctx, owner.ID, 1); err != nil {
		g.logError("failed to record ai usage",
			zap.String("account_id", owner.ID),
			zap.Error(err),
		)
	}

	summary := &core.BatchSummary{RoomID: room.ID, Outcome: core.BatchGraded}
	graded := make([]*core.Submission, 0, len(pending))
	for _, sub := range pending {
		result, ok := grades[sub.ID]
		if !ok || result == nil {
			summary.Skipped++
			summary.SkippedIDs = append(summary.SkippedIDs, sub.ID)
			continue
		}
		graded = append(graded, g.applyGrades(room, sub, result))
	}
	if summary.Skipped > 0 {
		g.logWarn("grading results missing for submissions",
			zap.String("room_id", room.ID),
			zap.Strings("submission_ids", summary.SkippedIDs),
		)
	}

	saved, failed := g.persist(ctx, graded)
	summary.Processed = len(saved)
	summary.Failed = len(failed)
	summary.FailedIDs = failed

	for _, sub := range saved {
		if sub.StudentEmail == "" || g.Notifier == nil {
			continue
		}
		g.Notifier.NotifyGraded(context.WithoutCancel(ctx), room, sub)
		summary.Notified++
	}

	sort.Strings(summary.SkippedIDs)
	sort.Strings(summary.FailedIDs)
	summary.CompletedAt = g.now()
	return summary, nil
}

func (g *BatchGrader) buildRequest(room *core.Room, pending []*core.Submission) core.BatchGradingRequest {
	texts := lo.FilterMap(room.Materials, func(m core.Material, _ int) (string, bool) {
		content := strings.TrimSpace(m.Content)
		return content, m.IsText() && content != ""
	})
	attachments := lo.Filter(room.Materials, func(m core.Material, _ int) bool {
		return !m.IsText() && m.Content != ""
	})

	mode := room.Config.GradingMode
	if mode == "" {
		mode = core.GradingStrict
	}

	return core.BatchGradingRequest{
		Context:     truncateRunes(strings.Join(texts, "\n\n"), g.contextLimit()),
		Attachments: attachments,
		GradingMode: mode,
		Questions:   room.Questions,
		Submissions: lo.Map(pending, func(sub *core.Submission, _ int) core.GradingItem {
			return core.GradingItem{SubmissionID: sub.ID, Answers: sub.Answers}
		}),
	}
}

// applyGrades returns a graded copy of sub. Grades for question ids that are
// not part of the room are dropped.
func (g *BatchGrader) applyGrades(room *core.Room, sub *core.Submission, result map[string]core.RawGrade) *core.Submission {
	updated := *sub
	updated.Grades = make(map[string]core.Grade, len(result))
	for questionID, raw := range result {
		if _, ok := room.Question(questionID); !ok {
			continue
		}
		feedback := strings.TrimSpace(raw.Feedback)
		if !raw.HasFeedback || feedback == "" {
			feedback = g.placeholder()
		}
		updated.Grades[questionID] = core.Grade{Score: ParseScore(raw.Score), Feedback: feedback}
	}
	updated.RecomputeTotal()
	updated.Status = core.SubmissionGraded
	updated.UpdatedAt = g.now()
	return &updated
}

// persist saves each submission independently. Saves ignore caller
// cancellation so that a disconnecting client does not leave half a batch.
func (g *BatchGrader) persist(ctx context.Context, subs []*core.Submission) ([]*core.Submission, []string) {
	if len(subs) == 0 {
		return nil, nil
	}

	saveCtx := context.WithoutCancel(ctx)
	workers := g.SaveWorkers
	if workers <= 0 {
		workers = defaultSaveWorkers
	}
	if workers > len(subs) {
		workers = len(subs)
	}

	jobs := make(chan *core.Submission)
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		saved  []*core.Submission
		failed []string
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range jobs {
				err := g.Store.UpdateSubmission(saveCtx, sub)
				mu.Lock()
				if err != nil {
					failed = append(failed, sub.ID)
				} else {
					saved = append(saved, sub)
				}
				mu.Unlock()
				if err != nil {
					g.logError("failed to save graded submission",
						zap.String("submission_id", sub.ID),
						zap.Error(err),
					)
				}
			}
		}()
	}
	for _, sub := range subs {
		jobs <- sub
	}
	close(jobs)
	wg.Wait()

	sort.Slice(saved, func(i, j int) bool { return saved[i].ID < saved[j].ID })
	return saved, failed
}

// SetGrade overrides one question score on a submission owned by accountID's
// room and recomputes the total from every stored grade.
func (g *BatchGrader) SetGrade(ctx context.Context, accountID, submissionID, questionID string, score any, feedback string) (*core.Submission, error) {
	sub, room, err := g.ownedSubmission(ctx, accountID, submissionID)
	if err != nil {
		return nil, err
	}
	if _, ok := room.Question(questionID); !ok {
		return nil, fmt.Errorf("question %q: %w", questionID, core.ErrNotFound)
	}

	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		feedback = ManualFeedback
		if existing, ok := sub.Grades[questionID]; ok && existing.Feedback != "" {
			feedback = existing.Feedback
		}
	}
	if sub.Grades == nil {
		sub.Grades = make(map[string]core.Grade)
	}
	sub.Grades[questionID] = core.Grade{Score: ParseScore(score), Feedback: feedback}
	sub.RecomputeTotal()
	sub.UpdatedAt = g.now()

	if err := g.Store.UpdateSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("save submission: %w", err)
	}
	return sub, nil
}

// Finalize marks a submission graded and notifies the student.
func (g *BatchGrader) Finalize(ctx context.Context, accountID, submissionID string) (*core.Submission, error) {
	sub, room, err := g.ownedSubmission(ctx, accountID, submissionID)
	if err != nil {
		return nil, err
	}

	sub.Status = core.SubmissionGraded
	sub.RecomputeTotal()
	sub.UpdatedAt = g.now()
	if err := g.Store.UpdateSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("save submission: %w", err)
	}

	if sub.StudentEmail != "" && g.Notifier != nil {
		g.Notifier.NotifyGraded(context.WithoutCancel(ctx), room, sub)
	}
	return sub, nil
}

func (g *BatchGrader) ownedSubmission(ctx context.Context, accountID, submissionID string) (*core.Submission, *core.Room, error) {
	if g == nil || g.Store == nil {
		return nil, nil, errors.New("batch grader is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	sub, err := g.Store.GetSubmission(ctx, submissionID)
	if err != nil {
		return nil, nil, err
	}
	if sub == nil {
		return nil, nil, core.ErrNotFound
	}
	room, err := g.Store.GetRoom(ctx, sub.RoomID)
	if err != nil {
		return nil, nil, err
	}
	if room == nil {
		return nil, nil, core.ErrNotFound
	}
	if room.HostID != accountID {
		return nil, nil, core.ErrForbidden
	}
	return sub, room, nil
}

func (g *BatchGrader) contextLimit() int {
	if g.ContextLimit > 0 {
		return g.ContextLimit
	}
	return DefaultContextLimit
}

func (g *BatchGrader) placeholder() string {
	if g.FeedbackPlaceholder != "" {
		return g.FeedbackPlaceholder
	}
	return DefaultFeedbackPlaceholder
}

func (g *BatchGrader) now() time.Time {
	if g != nil && g.Clock != nil {
		return g.Clock()
	}
	return time.Now().UTC()
}

func (g *BatchGrader) logInfo(msg string, fields ...zap.Field) {
	if g.Logger != nil {
		g.Logger.Info(msg, fields...)
	}
}

func (g *BatchGrader) logWarn(msg string, fields ...zap.Field) {
	if g.Logger != nil {
		g.Logger.Warn(msg, fields...)
	}
}

func (g *BatchGrader) logError(msg string, fields ...zap.Field) {
	if g.Logger != nil {
		g.Logger.Error(msg, fields...)
	}
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
