package core

import "time"

// BatchOutcome describes how a grading run ended.
type BatchOutcome string

const (
	BatchGraded       BatchOutcome = "graded"
	BatchNoPending    BatchOutcome = "no_pending"
	BatchRoomNotFound BatchOutcome = "room_not_found"
)

// BatchSummary reports the result of one grading run over a room.
type BatchSummary struct {
	RoomID      string       `json:"room_id"`
	Outcome     BatchOutcome `json:"outcome"`
	Processed   int          `json:"processed"`
	Skipped     int          `json:"skipped"`
	Failed      int          `json:"failed"`
	SkippedIDs  []string     `json:"skipped_ids,omitempty"`
	FailedIDs   []string     `json:"failed_ids,omitempty"`
	Notified    int          `json:"notified"`
	CompletedAt time.Time    `json:"completed_at"`
}

// GradingItem is one submission sent to the grading model.
type GradingItem struct {
	SubmissionID string            `json:"id"`
	Answers      map[string]string `json:"answers"`
}

// BatchGradingRequest is everything the grading model sees for one call.
type BatchGradingRequest struct {
	Context     string
	Attachments []Material
	GradingMode GradingMode
	Questions   []Question
	Submissions []GradingItem
}

// RawGrade is a model-reported grade before sanitizing. Score keeps whatever
// JSON type the model produced.
type RawGrade struct {
	Score       any
	Feedback    string
	HasFeedback bool
}

// BatchGrades maps submission id to question id to raw grade. A nil inner map
// marks a submission whose entry was present but unusable.
type BatchGrades map[string]map[string]RawGrade
