package server

import (
	"strings"
	"testing"
	"time"

	"github.com/vigilhq/vigil/internal/biz/domain"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		name  string
		arg   string
	}{
		{"ack infra:disk-root", "ack", "infra:disk-root"},
		{"ACK infra:disk-root", "ack", "infra:disk-root"},
		{"  status  ", "status", ""},
		{"pending", "pending", ""},
		{"ack", "ack", ""},
		{"ack two words here", "ack", "two words here"},
		{"", "", ""},
		{"   ", "", ""},
	}

	for _, tt := range tests {
		cmd := parseCommand(tt.input)
		if cmd.Name != tt.name {
			t.Errorf("parseCommand(%q).Name = %q, want %q", tt.input, cmd.Name, tt.name)
		}
		if cmd.Arg != tt.arg {
			t.Errorf("parseCommand(%q).Arg = %q, want %q", tt.input, cmd.Arg, tt.arg)
		}
	}
}

func TestFormatStatus(t *testing.T) {
	budget := &domain.BudgetState{
		Date:          "2025-06-10",
		MessagesSent:  3,
		UserResponses: 2,
		Ignored:       1,
	}
	pending := &domain.PendingStats{Total: 4, Unacknowledged: 2}

	out := formatStatus(budget, pending, 5)

	if !strings.Contains(out, "2025-06-10") {
		t.Errorf("Expected date in status, got %q", out)
	}
	if !strings.Contains(out, "Sent 3/5") {
		t.Errorf("Expected sent counter, got %q", out)
	}
	if !strings.Contains(out, "2 open of 4 total") {
		t.Errorf("Expected queue summary, got %q", out)
	}
	if strings.Contains(out, "Skipped today") {
		t.Errorf("Should not mention skipped when log empty, got %q", out)
	}
}

func TestFormatStatus_WithSkipped(t *testing.T) {
	budget := &domain.BudgetState{
		Date:         "2025-06-10",
		MessagesSent: 5,
		Skipped: []domain.SkippedAlert{
			{Title: "Standup", Reason: "budget exhausted"},
			{Title: "Water plants", Reason: "budget exhausted"},
		},
	}
	pending := &domain.PendingStats{}

	out := formatStatus(budget, pending, 5)

	if !strings.Contains(out, "Skipped today: 2") {
		t.Errorf("Expected skipped count, got %q", out)
	}
}

func TestFormatPendingList(t *testing.T) {
	alerts := []*domain.PendingAlert{
		{AlertKey: "infra:disk-root", Title: "Disk space low on /", Priority: domain.PriorityMedium, SendCount: 2},
		{AlertKey: "health:take-vitamin-d", Title: "Take vitamin D", Priority: domain.PriorityLow, SendCount: 1},
	}

	out := formatPendingList(alerts)

	if !strings.Contains(out, "2 open alert(s)") {
		t.Errorf("Expected count header, got %q", out)
	}
	if !strings.Contains(out, "infra:disk-root") {
		t.Errorf("Expected alert key in list, got %q", out)
	}
	if !strings.Contains(out, "sent 2") {
		t.Errorf("Expected send count in list, got %q", out)
	}
}

func TestFormatPendingList_Empty(t *testing.T) {
	out := formatPendingList(nil)
	if !strings.Contains(out, "No open alerts") {
		t.Errorf("Expected empty queue message, got %q", out)
	}
}

func TestMessageDeduplication(t *testing.T) {
	s := &FeishuServer{seenMsgs: make(map[string]time.Time)}

	if s.isMessageSeen("om_1") {
		t.Error("Fresh message should not be seen")
	}
	s.markMessageSeen("om_1")
	if !s.isMessageSeen("om_1") {
		t.Error("Marked message should be seen")
	}

	// Stale entries are swept on the next mark
	s.seenMsgs["om_old"] = time.Now().Add(-10 * time.Minute)
	s.markMessageSeen("om_2")
	if s.isMessageSeen("om_old") {
		t.Error("Expired entry should have been swept")
	}
}
