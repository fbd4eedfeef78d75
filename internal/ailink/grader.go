package ailink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/samber/lo"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/quizai/quizai/internal/ailink/content"
	"github.com/quizai/quizai/internal/ailink/driver"
	"github.com/quizai/quizai/internal/ailink/encode"
	"github.com/quizai/quizai/internal/ailink/prompt"
	"github.com/quizai/quizai/internal/core"
)

const (
	defaultMaxOutputTokens = 8192
	defaultTemperature     = 0.7
	rawLogLimit            = 2048
)

var errEmptyResponse = errors.New("empty response from grading model")

// Grader sends batch grading requests to a model driver and decodes the
// reply into raw per-question grades. It implements engine.AIGrader.
type Grader struct {
	Driver          driver.Driver
	Prompts         prompt.Registry
	Model           string
	MaxOutputTokens int
	Temperature     *float64
	Logger          *logging.Logger
}

// NewGrader resolves the configured provider and loads the prompt set.
func NewGrader(cfg Config, logger *logging.Logger) (*Grader, error) {
	resolved, err := Resolve(cfg)
	if err != nil {
		return nil, err
	}
	prompts, err := prompt.DefaultRegistry(strings.TrimSpace(cfg.PromptsDir))
	if err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}

	temperature := cfg.Temperature
	return &Grader{
		Driver:          resolved.Driver,
		Prompts:         prompts,
		Model:           resolved.Model,
		MaxOutputTokens: cfg.MaxOutputTokens,
		Temperature:     &temperature,
		Logger:          logger,
	}, nil
}

type gradingQuestion struct {
	ID          string   `json:"id"`
	Type        string   `json:"type"`
	Text        string   `json:"text"`
	Options     []string `json:"options,omitempty"`
	ModelAnswer string   `json:"modelAnswer"`
}

type gradingSubmission struct {
	SubmissionID string            `json:"submissionId"`
	Answers      map[string]string `json:"answers"`
}

type gradingPayload struct {
	Role               string              `json:"role"`
	GradingMode        string              `json:"gradingMode"`
	Context            string              `json:"context"`
	Questions          []gradingQuestion   `json:"questions"`
	StudentSubmissions []gradingSubmission `json:"studentSubmissions"`
}

// GradeBatch performs exactly one model call for the whole request. Every
// failure is returned as *core.AIServiceError.
func (g *Grader) GradeBatch(ctx context.Context, req core.BatchGradingRequest) (core.BatchGrades, error) {
	if g == nil || g.Driver == nil {
		return nil, &core.AIServiceError{Err: errors.New("grading model not configured")}
	}

	driverReq, err := g.buildRequest(req)
	if err != nil {
		return nil, &core.AIServiceError{Err: err}
	}

	g.logInfo("Sending grading batch",
		zap.String("driver", g.Driver.Name()),
		zap.String("model", driverReq.Model),
		zap.Int("submissions", len(req.Submissions)),
		zap.Int("questions", len(req.Questions)))

	resp, err := g.Driver.Complete(ctx, driverReq)
	if err != nil {
		return nil, mapProviderError(err)
	}

	raw := resp.Text()
	if strings.TrimSpace(raw) == "" {
		return nil, &core.AIServiceError{Err: errEmptyResponse}
	}

	grades, err := DecodeBatchGrades(raw)
	if err != nil {
		g.logWarn("Grading response was not valid JSON",
			zap.String("raw", truncate(raw, rawLogLimit)),
			zap.Error(err))
		return nil, &core.AIServiceError{Err: err}
	}

	if resp.Usage != nil {
		g.logInfo("Grading batch completed",
			zap.Int("entries", len(grades)),
			zap.Int("total_tokens", resp.Usage.TotalTokens))
	}
	return grades, nil
}

func (g *Grader) buildRequest(req core.BatchGradingRequest) (*driver.Request, error) {
	if g.Prompts == nil {
		return nil, errors.New("prompt registry not configured")
	}
	def, err := g.Prompts.Get(prompt.BatchGrading)
	if err != nil {
		return nil, err
	}

	mode := req.GradingMode
	if mode == "" {
		mode = core.GradingStrict
	}

	payload := gradingPayload{
		Role:        "grader",
		GradingMode: string(mode),
		Context:     req.Context,
		Questions: lo.Map(req.Questions, func(q core.Question, _ int) gradingQuestion {
			answer := strings.TrimSpace(q.GradingKey)
			if answer == "" {
				answer = "N/A"
			}
			return gradingQuestion{ID: q.ID, Type: string(q.Type), Text: q.Prompt, Options: q.Options, ModelAnswer: answer}
		}),
		StudentSubmissions: lo.Map(req.Submissions, func(item core.GradingItem, _ int) gradingSubmission {
			answers := item.Answers
			if answers == nil {
				answers = map[string]string{}
			}
			return gradingSubmission{SubmissionID: item.SubmissionID, Answers: answers}
		}),
	}

	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode grading payload: %w", err)
	}

	system, user := def.Render(map[string]string{
		"payload": string(encoded),
		"mode":    string(mode),
	})

	userBlocks := []content.ContentBlock{content.Text(user)}
	userBlocks = append(userBlocks, g.attachmentBlocks(req.Attachments)...)

	driverReq := &driver.Request{
		Model: g.Model,
		Messages: []content.Message{
			{Role: "system", Content: []content.ContentBlock{content.Text(system)}},
			content.UserMessage(userBlocks...),
		},
		Temperature: g.temperature(),
		MaxTokens:   g.maxTokens(),
		Metadata:    map[string]string{"prompt": def.Config.Slug},
	}
	if def.WantsJSON() {
		driverReq.ResponseFormat = driver.JSONObject
	}
	return driverReq, nil
}

// attachmentBlocks decodes binary materials the driver can accept. Materials
// that cannot be decoded or sent are dropped with a warning.
func (g *Grader) attachmentBlocks(materials []core.Material) []content.ContentBlock {
	caps := g.Driver.Capabilities()
	blocks := make([]content.ContentBlock, 0, len(materials))
	for _, m := range materials {
		mimeType, data, err := encode.DecodeDataURL(m.Content, m.MIMEType)
		if err != nil {
			g.logWarn("Skipping undecodable material", zap.String("material", m.Name), zap.Error(err))
			continue
		}
		isImage := strings.HasPrefix(strings.ToLower(mimeType), "image/")
		if (isImage && !caps.SupportsImages) || (!isImage && !caps.SupportsDocuments) {
			g.logWarn("Skipping material unsupported by driver",
				zap.String("material", m.Name),
				zap.String("mime_type", mimeType),
				zap.String("driver", g.Driver.Name()))
			continue
		}
		blocks = append(blocks, content.Inline(mimeType, data))
	}
	return blocks
}

// DecodeBatchGrades parses a model reply shaped as
// {submissionId: {questionId: {score, feedback}}}. Markdown fences are
// stripped first. A submission entry that is not an object decodes to a nil
// map; question entries that are not objects are dropped. Scores keep their
// JSON type (json.Number for numbers).
func DecodeBatchGrades(raw string) (core.BatchGrades, error) {
	cleaned := StripCodeFences(raw)
	if cleaned == "" {
		return nil, errEmptyResponse
	}

	var top map[string]json.RawMessage
	if err := decodeJSON([]byte(cleaned), &top); err != nil {
		return nil, fmt.Errorf("decode grading response: %w", err)
	}
	if top == nil {
		return nil, errors.New("decode grading response: expected a JSON object")
	}

	grades := make(core.BatchGrades, len(top))
	for submissionID, entry := range top {
		var questions map[string]json.RawMessage
		if err := decodeJSON(entry, &questions); err != nil || questions == nil {
			grades[submissionID] = nil
			continue
		}

		parsed := make(map[string]core.RawGrade, len(questions))
		for questionID, rawGrade := range questions {
			var fields struct {
				Score    any `json:"score"`
				Feedback any `json:"feedback"`
			}
			if err := decodeJSON(rawGrade, &fields); err != nil {
				continue
			}
			grade := core.RawGrade{Score: fields.Score}
			if fields.Feedback != nil {
				feedback, err := cast.ToStringE(fields.Feedback)
				if err == nil {
					grade.Feedback = strings.TrimSpace(feedback)
					grade.HasFeedback = grade.Feedback != ""
				}
			}
			parsed[questionID] = grade
		}
		grades[submissionID] = parsed
	}
	return grades, nil
}

// StripCodeFences removes markdown ``` and ```json fences around a reply.
func StripCodeFences(raw string) string {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```JSON", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	return strings.TrimSpace(cleaned)
}

func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("unexpected content after JSON reply")
	}
	return nil
}

func (g *Grader) temperature() *float64 {
	if g.Temperature != nil {
		return g.Temperature
	}
	t := defaultTemperature
	return &t
}

func (g *Grader) maxTokens() *int {
	n := g.MaxOutputTokens
	if n <= 0 {
		n = defaultMaxOutputTokens
	}
	return &n
}

func (g *Grader) logInfo(msg string, fields ...zap.Field) {
	if g.Logger != nil {
		g.Logger.Info(msg, fields...)
	}
}

func (g *Grader) logWarn(msg string, fields ...zap.Field) {
	if g.Logger != nil {
		g.Logger.Warn(msg, fields...)
	}
}
