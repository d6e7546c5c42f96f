package email

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
)

// Client sends escalation emails through Resend
type Client struct {
	resendCli *resend.Client
	from      string
	to        string
}

// NewClient creates a new email client
func NewClient(apiKey, from, to string) *Client {
	return &Client{
		resendCli: resend.NewClient(apiKey),
		from:      from,
		to:        to,
	}
}

// Send sends one plain text email and returns the provider message ID
func (c *Client) Send(ctx context.Context, subject, body string) (string, error) {
	params := &resend.SendEmailRequest{
		From:    c.from,
		To:      []string{c.to},
		Subject: subject,
		Text:    body,
	}

	sent, err := c.resendCli.Emails.SendWithContext(ctx, params)
	if err != nil {
		return "", fmt.Errorf("send email failed: %w", err)
	}
	return sent.Id, nil
}
