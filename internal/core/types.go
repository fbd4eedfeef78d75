package core

import "time"

// SubmissionStatus tracks where a submission is in the grading lifecycle.
type SubmissionStatus string

const (
	SubmissionPending SubmissionStatus = "pending"
	SubmissionGraded  SubmissionStatus = "graded"
)

// QuestionType identifies how a question is answered.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "MC"
	QuestionShort          QuestionType = "Short"
	QuestionLong           QuestionType = "Long"
)

// GradingMode controls how strictly answers are compared with the grading key.
type GradingMode string

const (
	GradingStrict GradingMode = "strict"
	GradingOpen   GradingMode = "open"
)

// MarkingType decides whether submissions are graded on arrival or in batches.
type MarkingType string

const (
	MarkingBatch   MarkingType = "batch"
	MarkingInstant MarkingType = "instant"
)

// MaxQuestionScore is the upper bound of a single question grade.
const MaxQuestionScore = 10

// Account is a host (teacher) or student account.
type Account struct {
	ID                  string     `json:"id"`
	Email               string     `json:"email"`
	Name                string     `json:"name"`
	PasswordHash        string     `json:"-"`
	Verified            bool       `json:"verified"`
	VerificationCode    string     `json:"-"`
	VerificationExpires *time.Time `json:"-"`
	ResetCode           string     `json:"-"`
	ResetExpires        *time.Time `json:"-"`
	AIUsage             int        `json:"ai_usage"`
	AILimit             int        `json:"ai_limit"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// QuotaRemaining reports how many AI calls the account may still make.
func (a *Account) QuotaRemaining() int {
	if a == nil || a.AIUsage >= a.AILimit {
		return 0
	}
	return a.AILimit - a.AIUsage
}

// Question is one quiz item. GradingKey holds the model answer when one exists.
type Question struct {
	ID         string       `json:"id"`
	Type       QuestionType `json:"type"`
	Prompt     string       `json:"question"`
	Options    []string     `json:"options,omitempty"`
	GradingKey string       `json:"model_answer,omitempty"`
}

// Material is reference content attached to a room. Text materials carry
// Content; binary materials carry a base64 data URL in Content and set MIMEType.
type Material struct {
	Name     string `json:"name,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
	Content  string `json:"content"`
}

// IsText reports whether the material contributes to the textual grading context.
func (m Material) IsText() bool {
	return m.MIMEType == "" || m.MIMEType == "text/plain" || m.MIMEType == "text/markdown"
}

// RoomConfig holds per-room grading settings.
type RoomConfig struct {
	GradingMode GradingMode `json:"grading_mode"`
	MarkingType MarkingType `json:"marking_type"`
}

// Room is a quiz hosted by one account.
type Room struct {
	ID        string     `json:"id"`
	HostID    string     `json:"host_id"`
	Code      string     `json:"code"`
	Title     string     `json:"title"`
	Active    bool       `json:"active"`
	Questions []Question `json:"questions"`
	Materials []Material `json:"materials,omitempty"`
	Config    RoomConfig `json:"config"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Question returns the question with the given id.
func (r *Room) Question(id string) (Question, bool) {
	if r == nil {
		return Question{}, false
	}
	for _, q := range r.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// MaxScore is the best total a submission to this room can reach.
func (r *Room) MaxScore() int {
	if r == nil {
		return 0
	}
	return len(r.Questions) * MaxQuestionScore
}

// Grade is the result for one question.
type Grade struct {
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// Submission is one student attempt at a room.
type Submission struct {
	ID           string            `json:"id"`
	RoomID       string            `json:"room_id"`
	StudentName  string            `json:"student_name"`
	StudentEmail string            `json:"student_email,omitempty"`
	StudentID    string            `json:"student_id,omitempty"`
	IPAddress    string            `json:"ip_address,omitempty"`
	Answers      map[string]string `json:"answers"`
	Grades       map[string]Grade  `json:"grades"`
	TotalScore   int               `json:"total_score"`
	Status       SubmissionStatus  `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// RecomputeTotal sets TotalScore to the sum of all grade scores.
func (s *Submission) RecomputeTotal() int {
	if s == nil {
		return 0
	}
	total := 0
	for _, g := range s.Grades {
		total += g.Score
	}
	s.TotalScore = total
	return total
}

// SubmissionFilter selects submissions. Empty fields match everything.
type SubmissionFilter struct {
	RoomID    string
	StudentID string
	Status    SubmissionStatus
}

// RateLimitRecord tracks failures and lockouts for one (action, identifier) pair.
type RateLimitRecord struct {
	Key          string     `json:"key"`
	FailureCount int        `json:"failure_count"`
	LockCount    int        `json:"lock_count"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Blocked reports whether the record blocks attempts at now.
func (r *RateLimitRecord) Blocked(now time.Time) bool {
	return r != nil && r.BlockedUntil != nil && now.Before(*r.BlockedUntil)
}
