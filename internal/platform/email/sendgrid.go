// Package email sends outbound patient email through SendGrid. Delivery is
// best-effort: a failed send is reported to the caller but never retried.
package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Sender is satisfied by the SendGrid client and by test fakes.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Client struct {
	apiKey    string
	fromEmail string
	fromName  string
}

func New(apiKey, fromEmail string) *Client {
	return &Client{apiKey: apiKey, fromEmail: fromEmail, fromName: "Clinic Care Team"}
}

// Send delivers one plain-text message. The body is also wrapped in a minimal
// HTML part so clients that ignore text/plain still render it.
func (c *Client) Send(ctx context.Context, to, subject, body string) error {
	if c.apiKey == "" {
		return fmt.Errorf("email is not configured")
	}

	from := mail.NewEmail(c.fromName, c.fromEmail)
	recipient := mail.NewEmail("", to)
	html := "<p>" + strings.ReplaceAll(body, "\n", "<br>") + "</p>"
	message := mail.NewSingleEmail(from, subject, recipient, body, html)

	client := sendgrid.NewSendClient(c.apiKey)
	resp, err := client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid rejected message (%d): %s", resp.StatusCode, strings.TrimSpace(resp.Body))
	}
	return nil
}
