package ailink

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quizai/quizai/internal/ailink/content"
	"github.com/quizai/quizai/internal/ailink/driver"
	"github.com/quizai/quizai/internal/ailink/encode"
	"github.com/quizai/quizai/internal/ailink/prompt"
	"github.com/quizai/quizai/internal/core"
)

type fakeDriver struct {
	caps  driver.Capabilities
	reply string
	err   error
	calls []*driver.Request
}

func (d *fakeDriver) Complete(_ context.Context, req *driver.Request) (*driver.Response, error) {
	d.calls = append(d.calls, req)
	if d.err != nil {
		return nil, d.err
	}
	return &driver.Response{Content: []content.ContentBlock{content.Text(d.reply)}}, nil
}

func (d *fakeDriver) Name() string { return "fake" }

func (d *fakeDriver) Capabilities() driver.Capabilities { return d.caps }

func newTestGrader(t *testing.T, drv *fakeDriver) *Grader {
	t.Helper()
	prompts, err := prompt.DefaultRegistry("")
	require.NoError(t, err)
	return &Grader{Driver: drv, Prompts: prompts, Model: "test-model"}
}

func sampleRequest() core.BatchGradingRequest {
	return core.BatchGradingRequest{
		Context:     "Cells are the basic unit of life.",
		GradingMode: core.GradingOpen,
		Questions: []core.Question{
			{ID: "q1", Type: core.QuestionShort, Prompt: "What is a cell?", GradingKey: "basic unit of life"},
			{ID: "q2", Type: core.QuestionMultipleChoice, Prompt: "Pick one", Options: []string{"A", "B"}},
		},
		Submissions: []core.GradingItem{
			{SubmissionID: "sub1", Answers: map[string]string{"q1": "unit of life", "q2": "A"}},
			{SubmissionID: "sub2"},
		},
	}
}

func TestGradeBatchSendsOneRequest(t *testing.T) {
	drv := &fakeDriver{
		caps:  driver.Capabilities{SupportsImages: true},
		reply: "```json\n{\"sub1\":{\"q1\":{\"score\":8,\"feedback\":\"Good\"}}}\n```",
	}
	grader := newTestGrader(t, drv)

	req := sampleRequest()
	req.Attachments = []core.Material{
		{Name: "diagram", MIMEType: "image/png", Content: encode.EncodeDataURL("image/png", []byte("png"))},
		{Name: "notes", MIMEType: "application/pdf", Content: encode.EncodeDataURL("application/pdf", []byte("%PDF"))},
		{Name: "broken", MIMEType: "image/png", Content: "data:image/png;base64,@@"},
	}

	grades, err := grader.GradeBatch(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, drv.calls, 1)

	sent := drv.calls[0]
	require.Equal(t, "test-model", sent.Model)
	require.Equal(t, driver.JSONObject, sent.ResponseFormat)
	require.Equal(t, 8192, *sent.MaxTokens)
	require.InDelta(t, 0.7, *sent.Temperature, 0.0001)
	require.Len(t, sent.Messages, 2)
	require.Equal(t, "system", sent.Messages[0].Role)

	user := sent.Messages[1]
	// Text prompt plus the image; the pdf is unsupported and the broken one undecodable.
	require.Len(t, user.Content, 2)
	require.Equal(t, content.ContentType("image/png"), user.Content[1].Type)
	require.Equal(t, []byte("png"), user.Content[1].Data)

	text := user.Content[0].Text
	require.Contains(t, text, `"gradingMode": "open"`)
	require.Contains(t, text, `"submissionId": "sub2"`)
	require.Contains(t, text, `"modelAnswer": "N/A"`)
	require.Contains(t, text, "Cells are the basic unit of life.")

	require.Len(t, grades, 1)
	grade := grades["sub1"]["q1"]
	require.Equal(t, json.Number("8"), grade.Score)
	require.Equal(t, "Good", grade.Feedback)
	require.True(t, grade.HasFeedback)
}

func TestGradeBatchWrapsFailures(t *testing.T) {
	cases := []struct {
		name       string
		drv        *fakeDriver
		wantStatus int
	}{
		{"provider", &fakeDriver{err: &driver.ProviderError{Provider: "fake", StatusCode: 503, Message: "down"}}, 503},
		{"transport", &fakeDriver{err: errors.New("connection reset")}, 0},
		{"empty", &fakeDriver{reply: "   "}, 0},
		{"not json", &fakeDriver{reply: "I could not grade this"}, 0},
		{"array", &fakeDriver{reply: "[1,2]"}, 0},
		{"null", &fakeDriver{reply: "null"}, 0},
		{"trailing text", &fakeDriver{reply: `{"sub1":{"q1":{"score":7}}} graded above`}, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			grader := newTestGrader(t, tc.drv)
			_, err := grader.GradeBatch(context.Background(), sampleRequest())
			require.Error(t, err)

			var aiErr *core.AIServiceError
			require.ErrorAs(t, err, &aiErr)
			require.Equal(t, tc.wantStatus, aiErr.StatusCode)
		})
	}
}

func TestGradeBatchWithoutDriver(t *testing.T) {
	var grader *Grader
	_, err := grader.GradeBatch(context.Background(), sampleRequest())

	var aiErr *core.AIServiceError
	require.ErrorAs(t, err, &aiErr)
}

func TestDecodeBatchGradesLenient(t *testing.T) {
	grades, err := DecodeBatchGrades(`{
		"sub1": {"q1": {"score": "12", "feedback": 42}, "q2": "bad", "q3": {"score": 7.6}},
		"sub2": "unusable",
		"sub3": null,
		"sub4": {}
	}`)
	require.NoError(t, err)
	require.Len(t, grades, 4)

	sub1 := grades["sub1"]
	require.Len(t, sub1, 2)
	require.Equal(t, "12", sub1["q1"].Score)
	require.Equal(t, "42", sub1["q1"].Feedback)
	require.Equal(t, json.Number("7.6"), sub1["q3"].Score)
	require.False(t, sub1["q3"].HasFeedback)

	require.Nil(t, grades["sub2"])
	require.Nil(t, grades["sub3"])
	require.NotNil(t, grades["sub4"])
	require.Empty(t, grades["sub4"])
}

func TestDecodeBatchGradesRejectsTrailingContent(t *testing.T) {
	for _, raw := range []string{
		`{"s1":{"q1":{"score":7,"feedback":"ok"}}} this is not json`,
		`{"s1":{}} {"s2":{}}`,
		"```json\n{\"s1\":{}}\n``` done",
	} {
		grades, err := DecodeBatchGrades(raw)
		require.Error(t, err, raw)
		require.Nil(t, grades)
	}

	grades, err := DecodeBatchGrades("{\"s1\":{\"q1\":{\"score\":7}}}\n\n")
	require.NoError(t, err)
	require.Equal(t, json.Number("7"), grades["s1"]["q1"].Score)
}

func TestStripCodeFences(t *testing.T) {
	require.Equal(t, `{"a":1}`, StripCodeFences("```json\n{\"a\":1}\n```"))
	require.Equal(t, `{"a":1}`, StripCodeFences("  {\"a\":1} "))
	require.Equal(t, "", StripCodeFences("```"))
}
