package domain

import "time"

// PendingAlert is a durable, not-yet-acknowledged alert delivery.
// Created once per alert key, mutated on each send attempt and on
// acknowledgment, reclaimed by retention cleanup.
type PendingAlert struct {
	ID                int64             `json:"id"`
	AlertKey          string            `json:"alert_key"`
	Category          string            `json:"category"`
	Title             string            `json:"title"`
	Message           string            `json:"message"`
	Priority          Priority          `json:"priority"`
	CreatedAt         time.Time         `json:"created_at"`
	LastSentAt        *time.Time        `json:"last_sent_at,omitempty"`
	SendCount         int               `json:"send_count"`
	Acknowledged      bool              `json:"acknowledged"`
	AcknowledgedAt    *time.Time        `json:"acknowledged_at,omitempty"`
	ExternalMessageID string            `json:"external_message_id,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// Exhausted reports whether the record has used up its resend attempts
func (p *PendingAlert) Exhausted(maxResends int) bool {
	return p.SendCount >= maxResends
}

// FromCandidate builds the pending record for an admitted candidate
func FromCandidate(c *Candidate) *PendingAlert {
	created := c.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return &PendingAlert{
		AlertKey:  c.AlertKey(),
		Category:  c.Category,
		Title:     c.Title,
		Message:   c.Message,
		Priority:  c.Priority,
		CreatedAt: created,
		Metadata:  c.Payload,
	}
}

// DeliveryPolicy bundles the knobs governing sending and resending
type DeliveryPolicy struct {
	ResendInterval time.Duration
	MaxResends     int
	QuietStart     int // local hour, inclusive
	QuietEnd       int // local hour, exclusive
	Retention      time.Duration
}

// DefaultDeliveryPolicy mirrors the daemon defaults
func DefaultDeliveryPolicy() DeliveryPolicy {
	return DeliveryPolicy{
		ResendInterval: 30 * time.Minute,
		MaxResends:     5,
		QuietStart:     22,
		QuietEnd:       7,
		Retention:      7 * 24 * time.Hour,
	}
}

// InQuietHours reports whether now falls inside the local quiet window.
// A window with start > end wraps midnight (22..7 means 22:00 to 06:59).
func (p DeliveryPolicy) InQuietHours(now time.Time) bool {
	if p.QuietStart == p.QuietEnd {
		return false
	}
	hour := now.Hour()
	if p.QuietStart > p.QuietEnd {
		return hour >= p.QuietStart || hour < p.QuietEnd
	}
	return hour >= p.QuietStart && hour < p.QuietEnd
}

// PendingStats summarizes the outbound queue
type PendingStats struct {
	Total          int            `json:"total"`
	Unacknowledged int            `json:"unacknowledged"`
	ByCategory     map[string]int `json:"by_category"`
}
