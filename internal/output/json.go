package output

import (
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quizai/quizai/internal/core"
)

// JSONFormatter renders results as JSON.
type JSONFormatter struct {
	Indent bool
}

func (f *JSONFormatter) FormatSummary(summary *core.BatchSummary) (string, error) {
	if summary == nil {
		return "", nil
	}
	return f.marshal(summary)
}

func (f *JSONFormatter) FormatRateLimits(records []core.RateLimitRecord, now time.Time) (string, error) {
	return f.marshal(RateLimitRows(records, now))
}

func (f *JSONFormatter) FormatReset(result ResetResult) (string, error) {
	return f.marshal(result)
}

func (f *JSONFormatter) marshal(v any) (string, error) {
	var (
		data []byte
		err  error
	)

	if f.Indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// YAMLFormatter renders results as YAML.
type YAMLFormatter struct{}

func (f *YAMLFormatter) FormatSummary(summary *core.BatchSummary) (string, error) {
	if summary == nil {
		return "", nil
	}
	return marshalYAML(summaryView(summary))
}

func (f *YAMLFormatter) FormatRateLimits(records []core.RateLimitRecord, now time.Time) (string, error) {
	return marshalYAML(RateLimitRows(records, now))
}

func (f *YAMLFormatter) FormatReset(result ResetResult) (string, error) {
	return marshalYAML(result)
}

func marshalYAML(v any) (string, error) {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type yamlSummary struct {
	RoomID      string    `yaml:"room_id"`
	Outcome     string    `yaml:"outcome"`
	Processed   int       `yaml:"processed"`
	Skipped     int       `yaml:"skipped"`
	Failed      int       `yaml:"failed"`
	SkippedIDs  []string  `yaml:"skipped_ids,omitempty"`
	FailedIDs   []string  `yaml:"failed_ids,omitempty"`
	Notified    int       `yaml:"notified"`
	CompletedAt time.Time `yaml:"completed_at"`
}

func summaryView(s *core.BatchSummary) yamlSummary {
	return yamlSummary{
		RoomID:      s.RoomID,
		Outcome:     string(s.Outcome),
		Processed:   s.Processed,
		Skipped:     s.Skipped,
		Failed:      s.Failed,
		SkippedIDs:  s.SkippedIDs,
		FailedIDs:   s.FailedIDs,
		Notified:    s.Notified,
		CompletedAt: s.CompletedAt,
	}
}
