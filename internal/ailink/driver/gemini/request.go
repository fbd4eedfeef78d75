package gemini

import (
	"fmt"
	"strings"

	"github.com/quizai/quizai/internal/ailink/content"
	"github.com/quizai/quizai/internal/ailink/driver"
	"github.com/quizai/quizai/internal/ailink/encode"
)

type generateRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  *generationCfg  `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationCfg struct {
	ResponseMIMEType string   `json:"response_mime_type,omitempty"`
	MaxOutputTokens  *int     `json:"max_output_tokens,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
}

func buildGenerateRequest(req *driver.Request) (*generateRequest, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if strings.TrimSpace(req.Model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("messages are required")
	}

	payload := &generateRequest{}
	for _, msg := range req.Messages {
		parts := convertParts(msg.Content)
		if len(parts) == 0 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(msg.Role)) {
		case "system":
			if payload.SystemInstruction == nil {
				payload.SystemInstruction = &geminiContent{}
			}
			payload.SystemInstruction.Parts = append(payload.SystemInstruction.Parts, parts...)
		case "assistant", "model":
			payload.Contents = append(payload.Contents, geminiContent{Role: "model", Parts: parts})
		default:
			payload.Contents = append(payload.Contents, geminiContent{Role: "user", Parts: parts})
		}
	}
	if len(payload.Contents) == 0 {
		return nil, fmt.Errorf("at least one user message with content is required")
	}

	cfg := &generationCfg{
		MaxOutputTokens: req.MaxTokens,
		Temperature:     req.Temperature,
	}
	if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_object" {
		cfg.ResponseMIMEType = "application/json"
	}
	if cfg.ResponseMIMEType != "" || cfg.MaxOutputTokens != nil || cfg.Temperature != nil {
		payload.GenerationConfig = cfg
	}

	return payload, nil
}

func convertParts(blocks []content.ContentBlock) []part {
	parts := make([]part, 0, len(blocks))
	for _, block := range blocks {
		if block.IsText() {
			if block.Text == "" {
				continue
			}
			parts = append(parts, part{Text: block.Text})
			continue
		}
		if len(block.Data) == 0 {
			continue
		}
		parts = append(parts, part{InlineData: &inlineData{
			MIMEType: string(block.Type),
			Data:     encode.EncodeBase64String(block.Data),
		}})
	}
	return parts
}
