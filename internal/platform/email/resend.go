// Package email sends transactional notifications through Resend.
package email

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"

	"github.com/resendlabs/resend-go"
	"go.uber.org/zap"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
)

var contactTemplate = template.Must(template.New("contact").Parse(`<h2>New contact message</h2>
<table>
<tr><th align="left">Name</th><td>{{.Name}}</td></tr>
<tr><th align="left">Email</th><td><a href="mailto:{{.Email}}">{{.Email}}</a></td></tr>
{{if .Phone}}<tr><th align="left">Phone</th><td>{{.Phone}}</td></tr>{{end}}
{{if .Source}}<tr><th align="left">Page</th><td>{{.Source}}</td></tr>{{end}}
<tr><th align="left">Received</th><td>{{.CreatedAt.Format "2006-01-02 15:04 MST"}}</td></tr>
</table>
<p style="white-space:pre-wrap">{{.Message}}</p>
`))

// ResendNotifier emails new contact submissions to the site operators.
type ResendNotifier struct {
	send   func(*resend.SendEmailRequest) error
	from   string
	to     []string
	logger *zap.Logger
}

type Option func(*ResendNotifier)

func WithLogger(logger *zap.Logger) Option {
	return func(n *ResendNotifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// withSender replaces the Resend API call.
func withSender(send func(*resend.SendEmailRequest) error) Option {
	return func(n *ResendNotifier) { n.send = send }
}

func NewResendNotifier(apiKey, from string, to []string, opts ...Option) (*ResendNotifier, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("email: resend api key is required")
	}
	from = strings.TrimSpace(from)
	if from == "" {
		return nil, errors.New("email: sender address is required")
	}
	recipients := make([]string, 0, len(to))
	for _, addr := range to {
		if addr = strings.TrimSpace(addr); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	if len(recipients) == 0 {
		return nil, errors.New("email: at least one recipient is required")
	}

	client := resend.NewClient(apiKey)
	n := &ResendNotifier{
		send: func(req *resend.SendEmailRequest) error {
			_, err := client.Emails.Send(req)
			return err
		},
		from:   from,
		to:     recipients,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(n)
		}
	}
	return n, nil
}

// NotifyContact sends one message per submission. The Resend client has no context
// support, so cancellation is only checked before the call.
func (n *ResendNotifier) NotifyContact(ctx context.Context, contact domain.Contact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var body bytes.Buffer
	if err := contactTemplate.Execute(&body, contact); err != nil {
		return fmt.Errorf("email: render contact template: %w", err)
	}
	subject := strings.TrimSpace(contact.Subject)
	if subject == "" {
		subject = "New contact message"
	}
	req := &resend.SendEmailRequest{
		From:    n.from,
		To:      n.to,
		Subject: "[Contact] " + subject,
		Html:    body.String(),
		Text:    contact.Name + " <" + contact.Email + ">\n\n" + contact.Message,
	}
	if err := n.send(req); err != nil {
		return fmt.Errorf("email: send contact notification: %w", err)
	}
	n.logger.Debug("contact notification sent", zap.String("contactId", contact.ID), zap.Int("recipients", len(n.to)))
	return nil
}
