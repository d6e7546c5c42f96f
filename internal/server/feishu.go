package server

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vigilhq/vigil/internal/biz"
	"github.com/vigilhq/vigil/internal/biz/domain"
	"github.com/vigilhq/vigil/internal/infra/feishu"
)

const helpText = `Commands:
ack <key> - acknowledge an alert
pending - list open alerts
status - today's budget and queue
help - this message

Reacting to an alert message also acknowledges it.`

// FeishuServer handles inbound Feishu traffic: operator commands in the
// alert chat and emoji reactions used as acknowledgments
type FeishuServer struct {
	client *feishu.Client
	uc     *biz.Usecases

	// Message deduplication cache
	seenMsgsMu sync.RWMutex
	seenMsgs   map[string]time.Time // msgID -> timestamp
}

// NewFeishuServer creates a new Feishu server
func NewFeishuServer(client *feishu.Client, uc *biz.Usecases) *FeishuServer {
	s := &FeishuServer{
		client:   client,
		uc:       uc,
		seenMsgs: make(map[string]time.Time),
	}

	client.OnCommand(s.handleCommand)
	client.OnAck(s.handleAck)

	return s
}

// Start connects to Feishu and blocks until Stop
func (s *FeishuServer) Start() error {
	return s.client.Start()
}

// Stop disconnects from Feishu
func (s *FeishuServer) Stop() {
	s.client.Stop()
}

// handleCommand processes an operator command from the chat
func (s *FeishuServer) handleCommand(chatID, msgID, text string) {
	if s.isMessageSeen(msgID) {
		fmt.Printf("[Server] Duplicate message ignored: %s\n", msgID)
		return
	}
	s.markMessageSeen(msgID)

	ctx := context.Background()
	cmd := parseCommand(text)

	var reply string
	switch cmd.Name {
	case "ack":
		reply = s.ackCommand(ctx, cmd.Arg)
	case "pending":
		reply = s.pendingCommand(ctx)
	case "status":
		reply = s.statusCommand(ctx)
	case "help":
		reply = helpText
	case "":
		return
	default:
		reply = "Unknown command.\n\n" + helpText
	}

	if _, err := s.client.SendText(ctx, chatID, reply); err != nil {
		fmt.Printf("[Server] Failed to send reply: %v\n", err)
	}
}

// handleAck acknowledges the alert behind a reacted-to message
func (s *FeishuServer) handleAck(messageID string) {
	ctx := context.Background()
	now := time.Now()

	key, err := s.uc.Delivery.AcknowledgeByMessageID(ctx, messageID, now)
	if err != nil {
		fmt.Printf("[Server] Ack by reaction failed: %v\n", err)
		return
	}
	if key == "" {
		// Reaction on something that is not an open alert
		return
	}

	if err := s.uc.Admission.RecordResponse(ctx, now); err != nil {
		fmt.Printf("[Server] Failed to record response: %v\n", err)
	}
	_ = s.client.AddReaction(ctx, messageID, "DONE")

	fmt.Printf("[Server] Alert %s acknowledged via reaction\n", key)
}

func (s *FeishuServer) ackCommand(ctx context.Context, key string) string {
	if key == "" {
		return "Usage: ack <alert-key>"
	}

	now := time.Now()
	acked, err := s.uc.Delivery.Acknowledge(ctx, key, now)
	if err != nil {
		return fmt.Sprintf("Failed to acknowledge %s: %v", key, err)
	}
	if !acked {
		return fmt.Sprintf("No open alert with key %s", key)
	}

	if err := s.uc.Admission.RecordResponse(ctx, now); err != nil {
		fmt.Printf("[Server] Failed to record response: %v\n", err)
	}
	return fmt.Sprintf("✅ Acknowledged %s", key)
}

func (s *FeishuServer) pendingCommand(ctx context.Context) string {
	alerts, err := s.uc.Delivery.Unacknowledged(ctx)
	if err != nil {
		return fmt.Sprintf("Failed to list alerts: %v", err)
	}
	return formatPendingList(alerts)
}

func (s *FeishuServer) statusCommand(ctx context.Context) string {
	budget, err := s.uc.Admission.Stats(ctx, time.Now())
	if err != nil {
		return fmt.Sprintf("Failed to read budget: %v", err)
	}
	pending, err := s.uc.Delivery.Stats(ctx)
	if err != nil {
		return fmt.Sprintf("Failed to read queue: %v", err)
	}
	return formatStatus(budget, pending, s.uc.Admission.Policy().DailyLimit)
}

// Command is a parsed operator command
type Command struct {
	Name string
	Arg  string
}

// parseCommand splits a chat message into command name and argument
func parseCommand(text string) Command {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return Command{}
	}

	cmd := Command{Name: strings.ToLower(fields[0])}
	if len(fields) > 1 {
		cmd.Arg = strings.Join(fields[1:], " ")
	}
	return cmd
}

// formatStatus renders the status reply
func formatStatus(budget *domain.BudgetState, pending *domain.PendingStats, dailyLimit int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📊 %s\n", budget.Date))
	sb.WriteString(fmt.Sprintf("Sent %d/%d, responses %d, ignored %d\n",
		budget.MessagesSent, dailyLimit, budget.UserResponses, budget.Ignored))
	sb.WriteString(fmt.Sprintf("Queue: %d open of %d total", pending.Unacknowledged, pending.Total))
	if len(budget.Skipped) > 0 {
		sb.WriteString(fmt.Sprintf("\nSkipped today: %d", len(budget.Skipped)))
	}
	return sb.String()
}

// formatPendingList renders the open alert list reply
func formatPendingList(alerts []*domain.PendingAlert) string {
	if len(alerts) == 0 {
		return "No open alerts 🎉"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d open alert(s):\n", len(alerts)))
	for _, a := range alerts {
		sb.WriteString(fmt.Sprintf("• [%s] %s (%s, sent %d)\n",
			a.Priority, a.Title, a.AlertKey, a.SendCount))
	}
	sb.WriteString("\nReply \"ack <key>\" or react to the alert message to acknowledge.")
	return sb.String()
}

// isMessageSeen checks if a message has been processed
func (s *FeishuServer) isMessageSeen(msgID string) bool {
	s.seenMsgsMu.RLock()
	defer s.seenMsgsMu.RUnlock()
	_, exists := s.seenMsgs[msgID]
	return exists
}

// markMessageSeen marks a message as processed
func (s *FeishuServer) markMessageSeen(msgID string) {
	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()
	s.seenMsgs[msgID] = time.Now()

	// Clean up expired records (older than 5 minutes) while marking,
	// to prevent unbounded growth
	cutoff := time.Now().Add(-5 * time.Minute)
	for id, ts := range s.seenMsgs {
		if ts.Before(cutoff) {
			delete(s.seenMsgs, id)
		}
	}
}
