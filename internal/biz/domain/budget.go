package domain

import "time"

// BudgetState tracks one local calendar day of notification spend.
// Exactly one state is current at a time, keyed by its date; rolling to a
// new day creates a fresh state and keeps the old one as history.
type BudgetState struct {
	Date          string         `json:"date"` // local day, 2006-01-02
	MessagesSent  int            `json:"messages_sent"`
	UserResponses int            `json:"user_responses"`
	Ignored       int            `json:"ignored"`
	Skipped       []SkippedAlert `json:"skipped,omitempty"`
}

// SkippedAlert records one candidate withheld by admission control so the
// user can inspect what never arrived
type SkippedAlert struct {
	Title     string    `json:"title"`
	Priority  Priority  `json:"priority"`
	Preview   string    `json:"preview,omitempty"`
	Reason    string    `json:"reason"`
	SkippedAt time.Time `json:"skipped_at"`
}

const previewLen = 100

// PreviewOf truncates a message body for the skipped log
func PreviewOf(message string) string {
	runes := []rune(message)
	if len(runes) <= previewLen {
		return message
	}
	return string(runes[:previewLen])
}

// BudgetPolicy bundles admission-control knobs
type BudgetPolicy struct {
	DailyLimit    int
	MaxSkippedLog int
}

// DefaultBudgetPolicy mirrors the daemon defaults
func DefaultBudgetPolicy() BudgetPolicy {
	return BudgetPolicy{DailyLimit: 5, MaxSkippedLog: 20}
}

// LocalDay formats the local calendar day used as the budget key
func LocalDay(now time.Time) string {
	return now.Format("2006-01-02")
}

// Remaining returns how many non-urgent admissions the day still allows
func (b *BudgetState) Remaining(policy BudgetPolicy) int {
	r := policy.DailyLimit - b.MessagesSent
	if r < 0 {
		return 0
	}
	return r
}
