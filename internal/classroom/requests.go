package classroom

import "github.com/quizai/quizai/internal/core"

// QuestionInput is a question as supplied by the host. Empty ids are
// assigned in order as q1, q2, ...
type QuestionInput struct {
	ID         string            `json:"id,omitempty" validate:"omitempty,max=64"`
	Type       core.QuestionType `json:"type" validate:"required,oneof=MC Short Long"`
	Prompt     string            `json:"question" validate:"required,max=4000"`
	Options    []string          `json:"options,omitempty" validate:"omitempty,dive,max=1000"`
	GradingKey string            `json:"model_answer,omitempty" validate:"omitempty,max=8000"`
}

// MaterialInput is reference content for grading.
type MaterialInput struct {
	Name     string `json:"name,omitempty" validate:"omitempty,max=200"`
	MIMEType string `json:"mime_type,omitempty" validate:"omitempty,max=100"`
	Content  string `json:"content" validate:"required"`
}

// ConfigInput holds per-room grading settings. Empty values take defaults.
type ConfigInput struct {
	GradingMode core.GradingMode `json:"grading_mode,omitempty" validate:"omitempty,oneof=strict open"`
	MarkingType core.MarkingType `json:"marking_type,omitempty" validate:"omitempty,oneof=batch instant"`
}

// CreateRoomRequest creates a room owned by the caller.
type CreateRoomRequest struct {
	Title     string          `json:"title" validate:"required,max=200"`
	Questions []QuestionInput `json:"questions" validate:"required,min=1,max=100,dive"`
	Materials []MaterialInput `json:"materials,omitempty" validate:"omitempty,max=20,dive"`
	Config    ConfigInput     `json:"config"`
}

// UpdateRoomRequest changes the fields that are set.
type UpdateRoomRequest struct {
	Title     *string         `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Questions []QuestionInput `json:"questions,omitempty" validate:"omitempty,min=1,max=100,dive"`
	Active    *bool           `json:"active,omitempty"`
	Config    *ConfigInput    `json:"config,omitempty"`
}

// JoinRoomRequest looks up an active room by its join code.
type JoinRoomRequest struct {
	Code string `json:"code" validate:"required,len=6,alphanum"`
}

// SubmitRequest is one student attempt.
type SubmitRequest struct {
	StudentName  string            `json:"student_name" validate:"required,max=120"`
	StudentEmail string            `json:"student_email,omitempty" validate:"omitempty,email,max=254"`
	Answers      map[string]string `json:"answers" validate:"required"`
}

// SubmitResult is returned after a submission is stored. Grading is set when
// the room grades instantly and the grading call succeeded.
type SubmitResult struct {
	Submission *core.Submission   `json:"submission"`
	Grading    *core.BatchSummary `json:"grading,omitempty"`
}
