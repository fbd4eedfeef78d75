package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/quizai/quizai/internal/core"
)

const submissionColumns = `id, room_id, student_name, student_email, student_id, ip_address,
	answers, grades, total_score, status, created_at, updated_at`

// CreateSubmission inserts a new submission.
func (s *Store) CreateSubmission(ctx context.Context, sub *core.Submission) error {
	if s == nil || s.DB == nil {
		return ErrNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if sub == nil || strings.TrimSpace(sub.ID) == "" {
		return errors.New("submission id is required")
	}

	answers, grades, err := encodeSubmissionDocs(sub)
	if err != nil {
		return err
	}

	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO submissions (`+submissionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, sub.ID, sub.RoomID, sub.StudentName, nullString(sub.StudentEmail), nullString(sub.StudentID),
		nullString(sub.IPAddress), answers, grades, sub.TotalScore, string(sub.Status),
		sub.CreatedAt.UTC().Unix(), sub.UpdatedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// GetSubmission returns the submission with the given id.
func (s *Store) GetSubmission(ctx context.Context, id string) (*core.Submission, error) {
	if s == nil || s.DB == nil {
		return nil, ErrNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}

	row := s.DB.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id)
	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("fetch submission: %w", err)
	}
	return sub, nil
}

// ListSubmissions returns submissions matching filter, oldest first.
func (s *Store) ListSubmissions(ctx context.Context, filter core.SubmissionFilter) ([]*core.Submission, error) {
	if s == nil || s.DB == nil {
		return nil, ErrNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args := submissionWhere(filter)
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM submissions
		%s
		ORDER BY created_at, id
	`, submissionColumns, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	subs := []*core.Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submissions: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return subs, nil
}

// UpdateSubmission replaces grades, total, and status of a submission.
func (s *Store) UpdateSubmission(ctx context.Context, sub *core.Submission) error {
	if s == nil || s.DB == nil {
		return ErrNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if sub == nil {
		return errors.New("submission is required")
	}

	answers, grades, err := encodeSubmissionDocs(sub)
	if err != nil {
		return err
	}

	result, err := s.DB.ExecContext(ctx, `
		UPDATE submissions SET
			answers = ?, grades = ?, total_score = ?, status = ?, updated_at = ?
		WHERE id = ?
	`, answers, grades, sub.TotalScore, string(sub.Status), sub.UpdatedAt.UTC().Unix(), sub.ID)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	return requireAffected(result, "update submission")
}

// DeleteSubmissions removes every submission matching filter.
func (s *Store) DeleteSubmissions(ctx context.Context, filter core.SubmissionFilter) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, ErrNotInitialized
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args := submissionWhere(filter)
	if where == "" {
		return 0, errors.New("refusing to delete submissions without a filter")
	}
	result, err := s.DB.ExecContext(ctx, `DELETE FROM submissions `+where, args...)
	if err != nil {
		return 0, fmt.Errorf("delete submissions: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete submissions: %w", err)
	}
	return affected, nil
}

func submissionWhere(filter core.SubmissionFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if filter.RoomID != "" {
		clauses = append(clauses, "room_id = ?")
		args = append(args, filter.RoomID)
	}
	if filter.StudentID != "" {
		clauses = append(clauses, "student_id = ?")
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

func encodeSubmissionDocs(sub *core.Submission) (string, string, error) {
	answers := sub.Answers
	if answers == nil {
		answers = map[string]string{}
	}
	grades := sub.Grades
	if grades == nil {
		grades = map[string]core.Grade{}
	}
	encodedAnswers, err := encodeJSON(answers)
	if err != nil {
		return "", "", err
	}
	encodedGrades, err := encodeJSON(grades)
	if err != nil {
		return "", "", err
	}
	return encodedAnswers, encodedGrades, nil
}

func scanSubmission(row rowScanner) (*core.Submission, error) {
	var (
		sub          core.Submission
		studentEmail sql.NullString
		studentID    sql.NullString
		ipAddress    sql.NullString
		answers      string
		grades       string
		status       string
		createdAt    int64
		updatedAt    int64
	)
	if err := row.Scan(&sub.ID, &sub.RoomID, &sub.StudentName, &studentEmail, &studentID, &ipAddress,
		&answers, &grades, &sub.TotalScore, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := decodeJSON(answers, &sub.Answers); err != nil {
		return nil, err
	}
	if err := decodeJSON(grades, &sub.Grades); err != nil {
		return nil, err
	}
	sub.StudentEmail = studentEmail.String
	sub.StudentID = studentID.String
	sub.IPAddress = ipAddress.String
	sub.Status = core.SubmissionStatus(status)
	sub.CreatedAt = unixTime(createdAt)
	sub.UpdatedAt = unixTime(updatedAt)
	return &sub, nil
}
