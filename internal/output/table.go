package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/quizai/quizai/internal/core"
)

// TableFormatter renders results as an ASCII table.
type TableFormatter struct{}

// FormatSummary renders a grading run as a table with the affected
// submission ids listed below it.
func (f *TableFormatter) FormatSummary(summary *core.BatchSummary) (string, error) {
	if summary == nil {
		return "", nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetTitle("Grading run " + summary.RoomID)
	t.AppendHeader(table.Row{"Outcome", "Graded", "Skipped", "Failed", "Notified"})
	t.AppendRow(table.Row{
		string(summary.Outcome),
		summary.Processed,
		summary.Skipped,
		summary.Failed,
		summary.Notified,
	})

	var b strings.Builder
	b.WriteString(t.Render())
	writeIDList(&b, "Skipped (left pending)", summary.SkippedIDs)
	writeIDList(&b, "Failed to save", summary.FailedIDs)
	return b.String(), nil
}

// FormatRateLimits renders stored rate limit records.
func (f *TableFormatter) FormatRateLimits(records []core.RateLimitRecord, now time.Time) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Action", "Identifier", "Failures", "Lockouts", "Blocked Until"})

	rows := RateLimitRows(records, now)
	for _, row := range rows {
		until := "-"
		if row.Blocked && row.BlockedUntil != nil {
			until = fmt.Sprintf("%s (%s left)",
				row.BlockedUntil.UTC().Format(time.RFC3339),
				row.BlockedUntil.Sub(now).Round(time.Second))
		}
		t.AppendRow(table.Row{row.Action, row.Identifier, row.FailureCount, row.LockCount, until})
	}
	if len(rows) == 0 {
		t.AppendRow(table.Row{"", "(no stored rate limit state)", "", "", ""})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d record(s)", len(rows)), "", "", ""})
	return t.Render(), nil
}

// FormatReset renders the result of a rate limit reset.
func (f *TableFormatter) FormatReset(result ResetResult) (string, error) {
	if result.DryRun {
		return fmt.Sprintf("Would delete %d rate limit record(s)", result.Matched), nil
	}
	return fmt.Sprintf("Deleted %d/%d rate limit record(s)", result.Deleted, result.Matched), nil
}

func writeIDList(b *strings.Builder, title string, ids []string) {
	if len(ids) == 0 {
		return
	}
	b.WriteString("\n\n")
	b.WriteString(title)
	b.WriteString(":\n")
	for _, id := range ids {
		b.WriteString("  - ")
		b.WriteString(id)
		b.WriteString("\n")
	}
}
