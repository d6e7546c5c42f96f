package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/vigilhq/vigil/internal/biz/domain"
	"github.com/vigilhq/vigil/internal/biz/repo"
)

// DeliveryUsecase owns the pending alert queue: enqueueing admitted
// candidates, selecting what is due for a send, and retiring records on
// acknowledgment or expiry.
type DeliveryUsecase struct {
	pendingRepo repo.PendingRepo
	policy      domain.DeliveryPolicy
}

// NewDeliveryUsecase creates a new delivery usecase
func NewDeliveryUsecase(pendingRepo repo.PendingRepo, policy domain.DeliveryPolicy) *DeliveryUsecase {
	return &DeliveryUsecase{
		pendingRepo: pendingRepo,
		policy:      policy,
	}
}

// Enqueue records the candidate as a pending alert. Enqueueing the same
// alert key twice is a no-op that returns the existing record.
func (uc *DeliveryUsecase) Enqueue(ctx context.Context, c *domain.Candidate) (*domain.PendingAlert, bool, error) {
	alert := domain.FromCandidate(c)
	inserted, err := uc.pendingRepo.Add(ctx, alert)
	if err != nil {
		return nil, false, fmt.Errorf("enqueue alert: %w", err)
	}
	if !inserted {
		existing, err := uc.pendingRepo.GetByKey(ctx, alert.AlertKey)
		if err != nil {
			return nil, false, fmt.Errorf("load existing alert: %w", err)
		}
		return existing, false, nil
	}
	return alert, true, nil
}

// ByKey returns the pending record for an alert key, nil when absent
func (uc *DeliveryUsecase) ByKey(ctx context.Context, alertKey string) (*domain.PendingAlert, error) {
	return uc.pendingRepo.GetByKey(ctx, alertKey)
}

// CanDeliver reports whether sends are allowed at now. During quiet hours
// nothing is delivered; records accumulate and go out once the window ends.
func (uc *DeliveryUsecase) CanDeliver(now time.Time) bool {
	return !uc.policy.InQuietHours(now)
}

// DueForDelivery lists the records owed a send at now, most urgent first.
// Returns nothing during quiet hours.
func (uc *DeliveryUsecase) DueForDelivery(ctx context.Context, now time.Time) ([]*domain.PendingAlert, error) {
	if !uc.CanDeliver(now) {
		return nil, nil
	}
	return uc.pendingRepo.SelectDue(ctx, now, uc.policy)
}

// MarkSent records a completed send attempt
func (uc *DeliveryUsecase) MarkSent(ctx context.Context, alertKey string, externalMessageID string, at time.Time) error {
	if err := uc.pendingRepo.MarkSent(ctx, alertKey, externalMessageID, at); err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return nil
}

// Acknowledge retires a pending alert by key
func (uc *DeliveryUsecase) Acknowledge(ctx context.Context, alertKey string, now time.Time) (bool, error) {
	return uc.pendingRepo.Acknowledge(ctx, alertKey, now)
}

// AcknowledgeByMessageID retires the pending alert whose last delivery
// produced the given chat message, returning its alert key or ""
func (uc *DeliveryUsecase) AcknowledgeByMessageID(ctx context.Context, messageID string, now time.Time) (string, error) {
	return uc.pendingRepo.AcknowledgeByMessageID(ctx, messageID, now)
}

// Cleanup removes records past the retention window. Acknowledged ones are
// simply dropped; unacknowledged ones that used up their resends count as
// ignored and are reported back.
func (uc *DeliveryUsecase) Cleanup(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-uc.policy.Retention)
	ignored, err := uc.pendingRepo.Cleanup(ctx, cutoff, uc.policy.MaxResends)
	if err != nil {
		return 0, fmt.Errorf("cleanup pending alerts: %w", err)
	}
	return ignored, nil
}

// Unacknowledged lists every record still waiting for an acknowledgment
func (uc *DeliveryUsecase) Unacknowledged(ctx context.Context) ([]*domain.PendingAlert, error) {
	return uc.pendingRepo.ListUnacknowledged(ctx)
}

// Stats returns queue counters
func (uc *DeliveryUsecase) Stats(ctx context.Context) (*domain.PendingStats, error) {
	return uc.pendingRepo.Stats(ctx)
}

// Policy returns the delivery policy in effect
func (uc *DeliveryUsecase) Policy() domain.DeliveryPolicy {
	return uc.policy
}
