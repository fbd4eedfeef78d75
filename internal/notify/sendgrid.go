package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/mail"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// SendgridSender delivers messages through the SendGrid v3 mail API.
type SendgridSender struct {
	key  string
	from *sgmail.Email
	host string
}

// NewSendgridSender returns a sender using the given API key and from address.
func NewSendgridSender(key string, from mail.Address) *SendgridSender {
	return &SendgridSender{
		key:  key,
		from: sgmail.NewEmail(from.Name, from.Address),
		host: sendgridHost,
	}
}

func (s *SendgridSender) Name() string { return "sendgrid" }

// Send posts the message. The SendGrid client has no context support, so
// ctx is only checked before the request starts.
func (s *SendgridSender) Send(ctx context.Context, msg Message) error {
	if !msg.HasRecipient() {
		return fmt.Errorf("message has no recipient")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	req := sendgrid.GetRequest(s.key, sendgridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sending email: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

func (s *SendgridSender) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail(msg.To.Name, msg.To.Address))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)

	contents := []*sgmail.Content{sgmail.NewContent("text/plain", msg.Text)}
	if msg.HTML != "" {
		contents = append(contents, sgmail.NewContent("text/html", msg.HTML))
	}
	m.AddContent(contents...)
	return m
}
