package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/quizai/quizai/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// Formatter renders CLI results.
type Formatter interface {
	FormatSummary(summary *core.BatchSummary) (string, error)
	FormatRateLimits(records []core.RateLimitRecord, now time.Time) (string, error)
	FormatReset(result ResetResult) (string, error)
}

// ResetResult reports a rate limit reset.
type ResetResult struct {
	Matched int   `json:"matched" yaml:"matched"`
	Deleted int64 `json:"deleted" yaml:"deleted"`
	DryRun  bool  `json:"dry_run" yaml:"dry_run"`
}

// RateLimitRow is the rendered view of one rate limit record.
type RateLimitRow struct {
	Action       string     `json:"action" yaml:"action"`
	Identifier   string     `json:"identifier" yaml:"identifier"`
	FailureCount int        `json:"failure_count" yaml:"failure_count"`
	LockCount    int        `json:"lock_count" yaml:"lock_count"`
	Blocked      bool       `json:"blocked" yaml:"blocked"`
	BlockedUntil *time.Time `json:"blocked_until,omitempty" yaml:"blocked_until,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at" yaml:"updated_at"`
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatYAML), "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatYAML:
		return &YAMLFormatter{}
	default:
		return &TableFormatter{}
	}
}

// RateLimitRows splits stored records into their action and identifier.
func RateLimitRows(records []core.RateLimitRecord, now time.Time) []RateLimitRow {
	rows := make([]RateLimitRow, 0, len(records))
	for _, rec := range records {
		action, identifier, found := strings.Cut(rec.Key, ":")
		if !found {
			action, identifier = "", rec.Key
		}
		rows = append(rows, RateLimitRow{
			Action:       action,
			Identifier:   identifier,
			FailureCount: rec.FailureCount,
			LockCount:    rec.LockCount,
			Blocked:      rec.Blocked(now),
			BlockedUntil: rec.BlockedUntil,
			UpdatedAt:    rec.UpdatedAt,
		})
	}
	return rows
}
