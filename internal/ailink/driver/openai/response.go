package openai

import (
	"errors"
	"fmt"

	"github.com/quizai/quizai/internal/ailink/content"
	"github.com/quizai/quizai/internal/ailink/driver"
)

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *driver.Usage `json:"usage,omitempty"`
}

// toDriverResponse keeps the first choice. A refusal with no content is an
// error so the batch is retried or failed rather than graded as empty.
func (r *chatCompletionResponse) toDriverResponse() (*driver.Response, error) {
	if r == nil || len(r.Choices) == 0 {
		return nil, errors.New("empty response choices")
	}
	first := r.Choices[0]
	if first.Message.Content == "" && first.Message.Refusal != "" {
		return nil, fmt.Errorf("model refused: %s", first.Message.Refusal)
	}
	return &driver.Response{
		Content:      []content.ContentBlock{content.Text(first.Message.Content)},
		FinishReason: first.FinishReason,
		Usage:        r.Usage,
	}, nil
}
