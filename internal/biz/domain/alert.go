package domain

import (
	"strings"
	"time"
)

// Priority orders alert candidates from least to most important
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank returns the numeric order of a priority, higher is more important
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

// ParsePriority normalizes a priority string, defaulting to medium
func ParsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow
	case "high":
		return PriorityHigh
	case "urgent":
		return PriorityUrgent
	default:
		return PriorityMedium
	}
}

// Alert categories
const (
	CategoryHealth   = "health"
	CategoryCalendar = "calendar"
	CategoryTask     = "task"
	CategoryReminder = "reminder"
	CategoryWeather  = "weather"
	CategoryInfra    = "infra"
)

// Candidate is the common value every detector and the definition evaluator
// produce. It is never persisted on its own: it is either dropped (cooldown,
// budget) or converted into a PendingAlert.
type Candidate struct {
	Key       string // optional explicit alert key; derived from content when empty
	Category  string
	Title     string
	Message   string
	Priority  Priority
	Payload   map[string]string
	CreatedAt time.Time
}

// AlertKey returns the deterministic identity of the underlying condition.
// Detectors that track a stable condition set Key explicitly; otherwise the
// key derives from category and title so the same condition always maps to
// the same pending record.
func (c *Candidate) AlertKey() string {
	if c.Key != "" {
		return c.Key
	}
	return c.Category + ":" + Slug(c.Title)
}

// Slug lowercases s and collapses every non-alphanumeric run into a single dash
func Slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
