package repo

import (
	"context"
	"time"

	"github.com/vigilhq/vigil/internal/biz/domain"
)

// PendingRepo is the pending alert repository interface
// Responsible for the outbound alert queue (SQLite)
type PendingRepo interface {
	// Add inserts a record unless its alert key already exists,
	// reporting whether a row was inserted
	Add(ctx context.Context, alert *domain.PendingAlert) (bool, error)

	// GetByKey gets a record by alert key, (nil, nil) when absent
	GetByKey(ctx context.Context, alertKey string) (*domain.PendingAlert, error)

	// SelectDue lists unacknowledged records eligible for delivery at now,
	// most urgent and oldest first
	SelectDue(ctx context.Context, now time.Time, policy domain.DeliveryPolicy) ([]*domain.PendingAlert, error)

	// ListUnacknowledged lists all unacknowledged records
	ListUnacknowledged(ctx context.Context) ([]*domain.PendingAlert, error)

	// MarkSent records a delivery attempt, bumping the send count
	MarkSent(ctx context.Context, alertKey string, externalMessageID string, at time.Time) error

	// Acknowledge marks a record acknowledged by alert key,
	// reporting whether an unacknowledged record was found
	Acknowledge(ctx context.Context, alertKey string, at time.Time) (bool, error)

	// AcknowledgeByMessageID marks a record acknowledged by the external
	// message ID of its last delivery, returning the alert key or ""
	AcknowledgeByMessageID(ctx context.Context, messageID string, at time.Time) (string, error)

	// Cleanup removes acknowledged records older than the cutoff and
	// exhausted unacknowledged ones, returning the ignored count
	Cleanup(ctx context.Context, olderThan time.Time, maxResends int) (int64, error)

	// Stats returns queue counters
	Stats(ctx context.Context) (*domain.PendingStats, error)
}
