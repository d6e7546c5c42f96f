package repo

import (
	"context"

	"github.com/vigilhq/vigil/internal/biz/domain"
)

// Notifier is the outbound delivery channel interface
// Implementations send a rendered alert and return the channel message ID, if any
type Notifier interface {
	// Name identifies the channel in logs
	Name() string

	// Send delivers a rendered alert, returning the external message ID or ""
	Send(ctx context.Context, alert *domain.PendingAlert, rendered string) (string, error)
}
