package data

import (
	"context"

	"github.com/vigilhq/vigil/internal/biz/domain"
	"github.com/vigilhq/vigil/internal/biz/repo"
	"github.com/vigilhq/vigil/internal/infra/email"
)

// SubjectFunc renders the subject line for an escalated alert
type SubjectFunc func(*domain.PendingAlert) string

// emailNotifier implements the Notifier using the Resend email client
type emailNotifier struct {
	client  *email.Client
	subject SubjectFunc
}

// NewEmailNotifier creates a Notifier that escalates alerts over email
func NewEmailNotifier(client *email.Client, subject SubjectFunc) repo.Notifier {
	return &emailNotifier{client: client, subject: subject}
}

// Name identifies the channel in logs
func (n *emailNotifier) Name() string {
	return "email"
}

// Send delivers a rendered alert to the escalation address
func (n *emailNotifier) Send(ctx context.Context, alert *domain.PendingAlert, rendered string) (string, error) {
	return n.client.Send(ctx, n.subject(alert), rendered)
}
