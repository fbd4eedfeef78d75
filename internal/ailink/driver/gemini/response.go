package gemini

import (
	"fmt"

	"github.com/quizai/quizai/internal/ailink/content"
	"github.com/quizai/quizai/internal/ailink/driver"
)

type generateResponse struct {
	Candidates    []candidate    `json:"candidates"`
	UsageMetadata *usageMetadata `json:"usageMetadata,omitempty"`
}

type candidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason"`
}

type usageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
	TotalTokenCount      int `json:"totalTokenCount"`
}

func toDriverResponse(resp *generateResponse) (*driver.Response, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("empty response candidates")
	}

	first := resp.Candidates[0]
	blocks := make([]content.ContentBlock, 0, len(first.Content.Parts))
	for _, p := range first.Content.Parts {
		if p.Text == "" {
			continue
		}
		blocks = append(blocks, content.Text(p.Text))
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("empty response text (finish reason %q)", first.FinishReason)
	}

	response := &driver.Response{
		Content:      blocks,
		FinishReason: first.FinishReason,
	}
	if resp.UsageMetadata != nil {
		response.Usage = &driver.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		}
	}
	return response, nil
}
