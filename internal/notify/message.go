// Package notify delivers outbound email: grade results and account codes.
// Delivery runs on a background Dispatcher; failures are logged and never
// reach the request that triggered them.
package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"net/mail"
	"strings"
	"time"

	"github.com/quizai/quizai/internal/core"
)

// Kind labels a message for logs and metrics.
type Kind string

const (
	KindGrade         Kind = "grade"
	KindVerification  Kind = "verification"
	KindPasswordReset Kind = "password_reset"
)

// Message is a rendered email ready for a Sender.
type Message struct {
	Kind    Kind
	To      mail.Address
	Subject string
	Text    string
	HTML    string
}

// HasRecipient reports whether the message has a usable address.
func (m Message) HasRecipient() bool {
	return strings.TrimSpace(m.To.Address) != ""
}

var gradeHTML = template.Must(template.New("grade").Parse(`<div style="font-family: sans-serif; padding: 20px; border: 1px solid #ddd; border-radius: 10px;">
  <h2 style="color: #00BCD4;">Quiz Results: {{.Title}}</h2>
  <p>Hi <strong>{{.Name}}</strong>,</p>
  <p>Your quiz has been marked.</p>
  <div style="background: #f0fdf4; padding: 15px; border-radius: 8px; margin: 20px 0;">
    <h1 style="margin: 0; color: #166534;">{{.Score}} / {{.MaxScore}}</h1>
  </div>
  <p>Click the link below to see your detailed feedback:</p>
  <a href="{{.Link}}" style="background: #000; color: #fff; padding: 10px 20px; text-decoration: none; border-radius: 5px;">View Feedback</a>
  <p style="margin-top: 30px; font-size: 12px; color: #666;">Sent by QuizAI.</p>
</div>`))

var codeHTML = template.Must(template.New("code").Parse(`<div style="font-family: sans-serif; padding: 20px;">
  <p>Hi <strong>{{.Name}}</strong>,</p>
  <p>{{.Intro}}</p>
  <h1 style="letter-spacing: 6px;">{{.Code}}</h1>
  <p style="font-size: 12px; color: #666;">This code expires in {{.Expires}}.</p>
</div>`))

// GradeMessage renders the result notification for a graded submission.
// The link points at the student dashboard under publicURL.
func GradeMessage(subjectPrefix, publicURL string, room *core.Room, sub *core.Submission) (Message, error) {
	if room == nil || sub == nil {
		return Message{}, fmt.Errorf("room and submission are required")
	}
	title := strings.TrimSpace(room.Title)
	if title == "" {
		title = "Quiz"
	}
	name := strings.TrimSpace(sub.StudentName)
	if name == "" {
		name = "there"
	}
	if strings.TrimSpace(subjectPrefix) == "" {
		subjectPrefix = "Grade Update"
	}
	link := strings.TrimRight(strings.TrimSpace(publicURL), "/") + "/dashboard"

	data := struct {
		Title, Name, Link string
		Score, MaxScore   int
	}{title, name, link, sub.TotalScore, room.MaxScore()}

	var html bytes.Buffer
	if err := gradeHTML.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render grade email: %w", err)
	}

	text := fmt.Sprintf("Hi %s,\n\nYour quiz %q has been marked: %d / %d.\nSee your detailed feedback at %s\n",
		name, title, data.Score, data.MaxScore, link)

	return Message{
		Kind:    KindGrade,
		To:      mail.Address{Name: sub.StudentName, Address: strings.TrimSpace(sub.StudentEmail)},
		Subject: subjectPrefix + ": " + title,
		Text:    text,
		HTML:    html.String(),
	}, nil
}

// CodeMessage renders a verification or password reset code email.
func CodeMessage(kind Kind, to mail.Address, code string, ttl time.Duration) (Message, error) {
	var subject, intro string
	switch kind {
	case KindVerification:
		subject = "Verify your email"
		intro = "Use this code to verify your QuizAI account:"
	case KindPasswordReset:
		subject = "Reset your password"
		intro = "Use this code to reset your QuizAI password:"
	default:
		return Message{}, fmt.Errorf("unsupported code message kind %q", kind)
	}

	name := strings.TrimSpace(to.Name)
	if name == "" {
		name = "there"
	}
	expires := ttl.Round(time.Minute).String()

	data := struct{ Name, Intro, Code, Expires string }{name, intro, code, expires}
	var html bytes.Buffer
	if err := codeHTML.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render code email: %w", err)
	}

	return Message{
		Kind:    kind,
		To:      to,
		Subject: subject,
		Text:    fmt.Sprintf("Hi %s,\n\n%s %s\nThis code expires in %s.\n", name, intro, code, expires),
		HTML:    html.String(),
	}, nil
}
