package content

import "strings"

// ContentType represents supported content types using IANA media types.
// Binary attachments carry their own media type (image/png, application/pdf, ...).
type ContentType string

const (
	ContentTypeText ContentType = "text/plain"
	ContentTypeJSON ContentType = "application/json"
)

// ContentBlock represents a single piece of content.
type ContentBlock struct {
	Type ContentType `json:"type"`
	Text string      `json:"text,omitempty"`
	Data []byte      `json:"data,omitempty"`
}

// IsText reports whether the block is sent as plain text.
func (b ContentBlock) IsText() bool {
	return b.Type == "" || b.Type == ContentTypeText || b.Type == ContentTypeJSON
}

// Text builds a text block.
func Text(text string) ContentBlock {
	return ContentBlock{Type: ContentTypeText, Text: text}
}

// Inline builds a binary block with the given media type.
func Inline(mimeType string, data []byte) ContentBlock {
	return ContentBlock{Type: ContentType(strings.ToLower(strings.TrimSpace(mimeType))), Data: data}
}

// Message represents a chat message.
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// UserMessage wraps blocks in a single user-role message.
func UserMessage(blocks ...ContentBlock) Message {
	return Message{Role: "user", Content: blocks}
}
