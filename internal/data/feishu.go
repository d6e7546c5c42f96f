package data

import (
	"context"

	"github.com/vigilhq/vigil/internal/biz/domain"
	"github.com/vigilhq/vigil/internal/biz/repo"
	"github.com/vigilhq/vigil/internal/infra/feishu"
)

// feishuNotifier implements the Notifier using the Feishu client
type feishuNotifier struct {
	client *feishu.Client
	chatID string
}

// NewFeishuNotifier creates a Notifier that posts alerts to one chat
func NewFeishuNotifier(client *feishu.Client, chatID string) repo.Notifier {
	return &feishuNotifier{client: client, chatID: chatID}
}

// Name identifies the channel in logs
func (n *feishuNotifier) Name() string {
	return "feishu"
}

// Send delivers a rendered alert to the alert chat
func (n *feishuNotifier) Send(ctx context.Context, alert *domain.PendingAlert, rendered string) (string, error) {
	return n.client.SendText(ctx, n.chatID, rendered)
}
