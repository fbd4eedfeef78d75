package notify

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/quizai/quizai/internal/config"
)

// Sender delivers one rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// NewSender builds the sender selected by cfg.Provider.
func NewSender(cfg config.NotifyConfig) (Sender, error) {
	from := mail.Address{Name: strings.TrimSpace(cfg.FromName), Address: strings.TrimSpace(cfg.FromEmail)}
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "none":
		return NoopSender{}, nil
	case "console":
		return NewConsoleSender(os.Stderr, from), nil
	case "sendgrid":
		if strings.TrimSpace(cfg.SendgridAPIKey) == "" {
			return nil, fmt.Errorf("notify.sendgrid_api_key is required")
		}
		if from.Address == "" {
			return nil, fmt.Errorf("notify.from_email is required")
		}
		return NewSendgridSender(cfg.SendgridAPIKey, from), nil
	default:
		return nil, fmt.Errorf("unsupported notify provider %q", cfg.Provider)
	}
}

// NoopSender drops every message.
type NoopSender struct{}

func (NoopSender) Send(context.Context, Message) error { return nil }

func (NoopSender) Name() string { return "none" }

// ConsoleSender writes messages to a writer instead of delivering them and
// keeps a copy of everything sent.
type ConsoleSender struct {
	from mail.Address

	mu   sync.Mutex
	w    io.Writer
	sent []Message
}

// NewConsoleSender writes messages to w.
func NewConsoleSender(w io.Writer, from mail.Address) *ConsoleSender {
	if w == nil {
		w = io.Discard
	}
	return &ConsoleSender{w: w, from: from}
}

func (s *ConsoleSender) Name() string { return "console" }

func (s *ConsoleSender) Send(_ context.Context, msg Message) error {
	if !msg.HasRecipient() {
		return fmt.Errorf("message has no recipient")
	}

	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "From: %s\r\n", s.from.String())
	_, _ = fmt.Fprintf(&b, "To: %s\r\n", msg.To.String())
	_, _ = fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	_, _ = fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	_, _ = fmt.Fprint(&b, "Content-Type: text/plain; charset=utf-8\r\n\r\n")
	_, _ = fmt.Fprint(&b, msg.Text)
	_, _ = fmt.Fprint(&b, "\r\n")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	_, err := io.WriteString(s.w, b.String())
	return err
}

// Sent returns a copy of the messages written so far.
func (s *ConsoleSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.sent))
	copy(out, s.sent)
	return out
}
