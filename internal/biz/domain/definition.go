package domain

import (
	"fmt"
	"strings"
	"time"
)

// TriggerKind discriminates the closed set of trigger variants
type TriggerKind string

const (
	TriggerFixedDate TriggerKind = "fixed_date"
	TriggerRecurring TriggerKind = "recurring"
	TriggerCondition TriggerKind = "condition"
)

// RecurrencePattern is the repeat cadence of a recurring trigger
type RecurrencePattern string

const (
	RecurDaily   RecurrencePattern = "daily"
	RecurWeekly  RecurrencePattern = "weekly"
	RecurMonthly RecurrencePattern = "monthly"
)

// Interval returns the fixed gap between firings. Monthly is a flat 30 days,
// not "same day next month".
func (p RecurrencePattern) Interval() time.Duration {
	switch p {
	case RecurDaily:
		return 24 * time.Hour
	case RecurWeekly:
		return 7 * 24 * time.Hour
	case RecurMonthly:
		return 30 * 24 * time.Hour
	}
	return 0
}

// Trigger is a tagged variant: exactly one of the three kinds, built through
// the constructors below so a definition can never hold an ambiguous mix of
// a fixed date and a recurrence pattern.
type Trigger struct {
	Kind      TriggerKind       `json:"kind"`
	At        time.Time         `json:"at"`                  // fixed_date: fire time; recurring: anchor
	Pattern   RecurrencePattern `json:"pattern,omitempty"`   // recurring only
	Condition string            `json:"condition,omitempty"` // condition only
}

// NewFixedDateTrigger fires once at the given time
func NewFixedDateTrigger(at time.Time) Trigger {
	return Trigger{Kind: TriggerFixedDate, At: at}
}

// NewRecurringTrigger fires repeatedly on the pattern's interval, starting at anchor
func NewRecurringTrigger(pattern RecurrencePattern, anchor time.Time) Trigger {
	return Trigger{Kind: TriggerRecurring, At: anchor, Pattern: pattern}
}

// NewConditionTrigger is fired externally once the described condition holds
func NewConditionTrigger(text string) Trigger {
	return Trigger{Kind: TriggerCondition, Condition: text}
}

// Validate checks the variant is well-formed
func (t Trigger) Validate() error {
	switch t.Kind {
	case TriggerFixedDate:
		if t.At.IsZero() {
			return fmt.Errorf("fixed_date trigger requires a time")
		}
	case TriggerRecurring:
		switch t.Pattern {
		case RecurDaily, RecurWeekly, RecurMonthly:
		default:
			return fmt.Errorf("unknown recurrence pattern %q", t.Pattern)
		}
	case TriggerCondition:
		if strings.TrimSpace(t.Condition) == "" {
			return fmt.Errorf("condition trigger requires a description")
		}
	default:
		return fmt.Errorf("unknown trigger kind %q", t.Kind)
	}
	return nil
}

// Definition is a user-declared rule describing when a reminder should fire,
// independent of the generic detector pipeline.
type Definition struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	Trigger       Trigger    `json:"trigger"`
	Priority      Priority   `json:"priority"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
	LastTriggered *time.Time `json:"last_triggered,omitempty"`
	Tags          []string   `json:"tags,omitempty"`
}

// ShouldFire reports whether the definition is due at now.
// Inactive definitions never fire. Condition definitions are fired externally
// via MarkTriggered once their condition is observed, never here. Date-anchored
// definitions wait for their time, then fixed-date ones fire at most once while
// recurring ones are gated by the pattern interval since the last firing.
func (d *Definition) ShouldFire(now time.Time) bool {
	if !d.Active {
		return false
	}
	switch d.Trigger.Kind {
	case TriggerFixedDate:
		return !now.Before(d.Trigger.At) && d.LastTriggered == nil
	case TriggerRecurring:
		if now.Before(d.Trigger.At) {
			return false
		}
		if d.LastTriggered == nil {
			return true
		}
		return now.Sub(*d.LastTriggered) >= d.Trigger.Pattern.Interval()
	}
	return false
}

// Recurring reports whether the definition survives a firing
func (d *Definition) Recurring() bool {
	return d.Trigger.Kind == TriggerRecurring
}

// TitleWords returns the normalized word set of the title
func (d *Definition) TitleWords() map[string]struct{} {
	return titleWords(d.Title)
}

// DuplicateOf reports whether d and other describe the same reminder: same
// trigger kind, and title word sets either equal or overlapping by more than
// 70% of the larger set.
func (d *Definition) DuplicateOf(other *Definition) bool {
	if d.Trigger.Kind != other.Trigger.Kind {
		return false
	}
	a, b := d.TitleWords(), other.TitleWords()
	if len(a) == 0 || len(b) == 0 {
		return len(a) == len(b)
	}
	overlap := 0
	for w := range a {
		if _, ok := b[w]; ok {
			overlap++
		}
	}
	if overlap == len(a) && overlap == len(b) {
		return true
	}
	max := len(a)
	if len(b) > max {
		max = len(b)
	}
	return float64(overlap)/float64(max) > 0.7
}

func titleWords(title string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(title)) {
		words[w] = struct{}{}
	}
	return words
}
