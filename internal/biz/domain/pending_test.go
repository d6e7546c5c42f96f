package domain

import (
	"testing"
	"time"
)

func TestDeliveryPolicy_InQuietHours_WrappingWindow(t *testing.T) {
	policy := DefaultDeliveryPolicy() // 22:00 - 07:00

	cases := []struct {
		hour  int
		quiet bool
	}{
		{23, true},
		{3, true},
		{22, true},
		{7, false},
		{12, false},
		{21, false},
	}
	for _, c := range cases {
		now := time.Date(2026, 3, 10, c.hour, 30, 0, 0, time.Local)
		if policy.InQuietHours(now) != c.quiet {
			t.Errorf("Expected quiet=%v at hour %d", c.quiet, c.hour)
		}
	}
}

func TestDeliveryPolicy_InQuietHours_NonWrappingWindow(t *testing.T) {
	policy := DefaultDeliveryPolicy()
	policy.QuietStart = 13
	policy.QuietEnd = 15

	if !policy.InQuietHours(time.Date(2026, 3, 10, 14, 0, 0, 0, time.Local)) {
		t.Error("Expected 14:00 to be quiet in a 13-15 window")
	}
	if policy.InQuietHours(time.Date(2026, 3, 10, 12, 0, 0, 0, time.Local)) {
		t.Error("Expected 12:00 to be loud in a 13-15 window")
	}
	if policy.InQuietHours(time.Date(2026, 3, 10, 15, 0, 0, 0, time.Local)) {
		t.Error("Expected 15:00 to be loud in a 13-15 window")
	}
}

func TestDeliveryPolicy_InQuietHours_DisabledWindow(t *testing.T) {
	policy := DefaultDeliveryPolicy()
	policy.QuietStart = 0
	policy.QuietEnd = 0 // disabled

	if policy.InQuietHours(time.Date(2026, 3, 10, 0, 30, 0, 0, time.Local)) {
		t.Error("Expected equal start and end to disable quiet hours")
	}
}

func TestPendingAlert_Exhausted(t *testing.T) {
	a := &PendingAlert{SendCount: 4}
	if a.Exhausted(5) {
		t.Error("Expected alert with sends remaining to not be exhausted")
	}
	a.SendCount = 5
	if !a.Exhausted(5) {
		t.Error("Expected alert at the resend cap to be exhausted")
	}
}

func TestPendingAlert_FromCandidate(t *testing.T) {
	c := Candidate{
		Category: CategoryInfra,
		Title:    "Disk space low on /",
		Message:  "Root filesystem is 91% full",
		Priority: PriorityUrgent,
	}

	a := FromCandidate(&c)
	if a.AlertKey != "infra:disk-space-low-on" {
		t.Errorf("Unexpected alert key: %s", a.AlertKey)
	}
	if a.CreatedAt.IsZero() {
		t.Error("Expected creation time to be filled in")
	}
	if a.SendCount != 0 || a.Acknowledged {
		t.Error("Expected a fresh record")
	}
}

func TestCandidate_AlertKey_ExplicitOverridesDerived(t *testing.T) {
	c := Candidate{
		Key:      "reminder:abc12345:2026-03-10",
		Category: CategoryReminder,
		Title:    "Call dentist",
	}
	if c.AlertKey() != "reminder:abc12345:2026-03-10" {
		t.Errorf("Unexpected alert key: %s", c.AlertKey())
	}
}

func TestSlug_CollapsesPunctuationAndCase(t *testing.T) {
	if got := Slug("Take Vitamin D!"); got != "take-vitamin-d" {
		t.Errorf("Unexpected slug: %s", got)
	}
	if got := Slug("  spaced   out  "); got != "spaced-out" {
		t.Errorf("Unexpected slug: %s", got)
	}
}
