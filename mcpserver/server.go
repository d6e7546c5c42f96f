package mcpserver

import (
	"context"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// VigilMCPServer exposes alert management tools over MCP so an agent
// can create, inspect and acknowledge alerts on the user's behalf.
type VigilMCPServer struct {
	server *mcp.Server
}

// AlertSummary is a compact view of an alert definition
type AlertSummary struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Kind          string `json:"kind"`
	At            string `json:"at,omitempty"`
	Pattern       string `json:"pattern,omitempty"`
	Condition     string `json:"condition,omitempty"`
	Priority      string `json:"priority"`
	Active        bool   `json:"active"`
	LastTriggered string `json:"last_triggered,omitempty"`
}

// PendingSummary is a compact view of a queued alert
type PendingSummary struct {
	Key        string `json:"key"`
	Title      string `json:"title"`
	Priority   string `json:"priority"`
	SendCount  int    `json:"send_count"`
	CreatedAt  string `json:"created_at"`
	LastSentAt string `json:"last_sent_at,omitempty"`
}

// BudgetSummary reports today's delivery budget
type BudgetSummary struct {
	Date         string `json:"date"`
	Sent         int    `json:"sent"`
	Limit        int    `json:"limit"`
	Remaining    int    `json:"remaining"`
	Responses    int    `json:"responses"`
	Ignored      int    `json:"ignored"`
	SkippedToday int    `json:"skipped_today"`
}

// Callbacks holds the callback functions for MCP tools. The binary
// wires these to the daemon's admin API.
type Callbacks struct {
	CreateAlert     func(ctx context.Context, in CreateAlertInput) (CreateAlertOutput, error)
	ListAlerts      func(ctx context.Context, includeInactive bool) ([]AlertSummary, error)
	DeactivateAlert func(ctx context.Context, id string) error
	DeleteAlert     func(ctx context.Context, id string) error
	TriggerAlert    func(ctx context.Context, id string) (TriggerAlertOutput, error)
	PendingAlerts   func(ctx context.Context) ([]PendingSummary, error)
	Acknowledge     func(ctx context.Context, key string) (bool, error)
	BudgetStatus    func(ctx context.Context) (*BudgetSummary, error)
	ResetBudget     func(ctx context.Context) error
}

var (
	globalServer    *VigilMCPServer
	globalCallbacks *Callbacks
	serverMu        sync.Mutex
)

// NewServer creates a new Vigil MCP server
func NewServer(callbacks *Callbacks) *VigilMCPServer {
	serverMu.Lock()
	defer serverMu.Unlock()

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "vigil-alerts",
		Version: "v1.0.0",
	}, nil)

	vs := &VigilMCPServer{
		server: server,
	}

	globalServer = vs
	globalCallbacks = callbacks

	// Register tools
	vs.registerTools()

	return vs
}

// registerTools registers all alert-related MCP tools
func (s *VigilMCPServer) registerTools() {
	// Tool: create_alert - Create a new alert definition
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vigil_create_alert",
		Description: "Create an alert definition. Kinds: fixed_date fires once at a given time, recurring repeats daily/weekly/monthly, condition fires only when you trigger it with vigil_trigger_alert.",
	}, handleCreateAlert)

	// Tool: list_alerts - List alert definitions
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vigil_list_alerts",
		Description: "List alert definitions. By default only active ones; set include_inactive to see fired and deactivated definitions too.",
	}, handleListAlerts)

	// Tool: deactivate_alert - Disarm a definition without deleting it
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vigil_deactivate_alert",
		Description: "Deactivate an alert definition so it stops firing, keeping it for later reactivation or audit.",
	}, handleDeactivateAlert)

	// Tool: delete_alert - Remove a definition entirely
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vigil_delete_alert",
		Description: "Delete an alert definition permanently. Use when the user says the reminder is no longer needed.",
	}, handleDeleteAlert)

	// Tool: trigger_alert - Fire a condition alert now
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vigil_trigger_alert",
		Description: "Fire a condition alert immediately. Use when the condition you are watching for has become true. The alert still passes cooldown, budget and quiet-hours checks.",
	}, handleTriggerAlert)

	// Tool: pending_alerts - Show the open queue
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vigil_pending_alerts",
		Description: "List alerts that were delivered but not yet acknowledged by the user.",
	}, handlePendingAlerts)

	// Tool: acknowledge - Mark an alert handled
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vigil_acknowledge",
		Description: "Acknowledge a pending alert by its key so it stops being resent. Use when the user says they handled it.",
	}, handleAcknowledge)

	// Tool: budget_status - Inspect today's message budget
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vigil_budget_status",
		Description: "Show today's notification budget: how many messages were sent, the daily limit, and how many alerts were skipped.",
	}, handleBudgetStatus)

	// Tool: reset_budget - Clear today's counters
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "vigil_reset_budget",
		Description: "Reset today's notification budget counters to zero. Only do this when the user explicitly asks.",
	}, handleResetBudget)
}

// CreateAlertInput is the input for create_alert
type CreateAlertInput struct {
	Title       string   `json:"title" jsonschema:"description=Short title shown in the notification"`
	Description string   `json:"description,omitempty" jsonschema:"description=Optional longer description"`
	Kind        string   `json:"kind" jsonschema:"description=Trigger kind: fixed_date, recurring or condition"`
	At          string   `json:"at,omitempty" jsonschema:"description=RFC3339 time the alert fires (fixed_date) or the recurrence anchor (recurring)"`
	Pattern     string   `json:"pattern,omitempty" jsonschema:"description=Recurrence pattern for recurring alerts: daily, weekly or monthly"`
	Condition   string   `json:"condition,omitempty" jsonschema:"description=Human-readable condition for condition alerts, e.g. 'the deploy finishes'"`
	Priority    string   `json:"priority,omitempty" jsonschema:"description=low, medium, high or urgent (default medium)"`
	Tags        []string `json:"tags,omitempty" jsonschema:"description=Free-form tags"`
}

// CreateAlertOutput is the output for create_alert
type CreateAlertOutput struct {
	Created     bool   `json:"created"`
	ID          string `json:"id,omitempty"`
	DuplicateOf string `json:"duplicate_of,omitempty"`
	Error       string `json:"error,omitempty"`
}

func handleCreateAlert(ctx context.Context, req *mcp.CallToolRequest, input CreateAlertInput) (*mcp.CallToolResult, CreateAlertOutput, error) {
	if globalCallbacks == nil || globalCallbacks.CreateAlert == nil {
		return nil, CreateAlertOutput{Error: "callback not configured"}, nil
	}

	out, err := globalCallbacks.CreateAlert(ctx, input)
	if err != nil {
		return nil, CreateAlertOutput{Error: err.Error()}, nil
	}

	return nil, out, nil
}

// ListAlertsInput is the input for list_alerts
type ListAlertsInput struct {
	IncludeInactive bool `json:"include_inactive,omitempty" jsonschema:"description=Include fired and deactivated definitions"`
}

// ListAlertsOutput contains the definitions
type ListAlertsOutput struct {
	Alerts []AlertSummary `json:"alerts"`
	Error  string         `json:"error,omitempty"`
}

func handleListAlerts(ctx context.Context, req *mcp.CallToolRequest, input ListAlertsInput) (*mcp.CallToolResult, ListAlertsOutput, error) {
	if globalCallbacks == nil || globalCallbacks.ListAlerts == nil {
		return nil, ListAlertsOutput{Error: "callback not configured"}, nil
	}

	alerts, err := globalCallbacks.ListAlerts(ctx, input.IncludeInactive)
	if err != nil {
		return nil, ListAlertsOutput{Error: err.Error()}, nil
	}

	return nil, ListAlertsOutput{Alerts: alerts}, nil
}

// AlertIDInput identifies a definition by its id
type AlertIDInput struct {
	ID string `json:"id" jsonschema:"description=The definition id, as returned by create_alert or list_alerts"`
}

// AlertIDOutput is the output for tools acting on one definition
type AlertIDOutput struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func handleDeactivateAlert(ctx context.Context, req *mcp.CallToolRequest, input AlertIDInput) (*mcp.CallToolResult, AlertIDOutput, error) {
	if globalCallbacks == nil || globalCallbacks.DeactivateAlert == nil {
		return nil, AlertIDOutput{Success: false, Error: "callback not configured"}, nil
	}

	if err := globalCallbacks.DeactivateAlert(ctx, input.ID); err != nil {
		return nil, AlertIDOutput{Success: false, Error: err.Error()}, nil
	}

	return nil, AlertIDOutput{Success: true}, nil
}

func handleDeleteAlert(ctx context.Context, req *mcp.CallToolRequest, input AlertIDInput) (*mcp.CallToolResult, AlertIDOutput, error) {
	if globalCallbacks == nil || globalCallbacks.DeleteAlert == nil {
		return nil, AlertIDOutput{Success: false, Error: "callback not configured"}, nil
	}

	if err := globalCallbacks.DeleteAlert(ctx, input.ID); err != nil {
		return nil, AlertIDOutput{Success: false, Error: err.Error()}, nil
	}

	return nil, AlertIDOutput{Success: true}, nil
}

// TriggerAlertOutput reports what the pipeline did with the fired alert
type TriggerAlertOutput struct {
	Triggered bool   `json:"triggered"`
	Delivered bool   `json:"delivered"`
	Note      string `json:"note,omitempty"`
	Error     string `json:"error,omitempty"`
}

func handleTriggerAlert(ctx context.Context, req *mcp.CallToolRequest, input AlertIDInput) (*mcp.CallToolResult, TriggerAlertOutput, error) {
	if globalCallbacks == nil || globalCallbacks.TriggerAlert == nil {
		return nil, TriggerAlertOutput{Error: "callback not configured"}, nil
	}

	out, err := globalCallbacks.TriggerAlert(ctx, input.ID)
	if err != nil {
		return nil, TriggerAlertOutput{Error: err.Error()}, nil
	}

	return nil, out, nil
}

// PendingAlertsInput is empty - no input needed
type PendingAlertsInput struct{}

// PendingAlertsOutput contains the open queue
type PendingAlertsOutput struct {
	Alerts []PendingSummary `json:"alerts"`
	Error  string           `json:"error,omitempty"`
}

func handlePendingAlerts(ctx context.Context, req *mcp.CallToolRequest, input PendingAlertsInput) (*mcp.CallToolResult, PendingAlertsOutput, error) {
	if globalCallbacks == nil || globalCallbacks.PendingAlerts == nil {
		return nil, PendingAlertsOutput{Error: "callback not configured"}, nil
	}

	alerts, err := globalCallbacks.PendingAlerts(ctx)
	if err != nil {
		return nil, PendingAlertsOutput{Error: err.Error()}, nil
	}

	return nil, PendingAlertsOutput{Alerts: alerts}, nil
}

// AcknowledgeInput is the input for acknowledge
type AcknowledgeInput struct {
	Key string `json:"key" jsonschema:"description=The alert key, e.g. infra:disk-space-low"`
}

// AcknowledgeOutput is the output for acknowledge
type AcknowledgeOutput struct {
	Acknowledged bool   `json:"acknowledged"`
	Error        string `json:"error,omitempty"`
}

func handleAcknowledge(ctx context.Context, req *mcp.CallToolRequest, input AcknowledgeInput) (*mcp.CallToolResult, AcknowledgeOutput, error) {
	if globalCallbacks == nil || globalCallbacks.Acknowledge == nil {
		return nil, AcknowledgeOutput{Error: "callback not configured"}, nil
	}

	acked, err := globalCallbacks.Acknowledge(ctx, input.Key)
	if err != nil {
		return nil, AcknowledgeOutput{Error: err.Error()}, nil
	}

	return nil, AcknowledgeOutput{Acknowledged: acked}, nil
}

// BudgetStatusInput is empty - no input needed
type BudgetStatusInput struct{}

// BudgetStatusOutput contains today's budget counters
type BudgetStatusOutput struct {
	Budget *BudgetSummary `json:"budget,omitempty"`
	Error  string         `json:"error,omitempty"`
}

func handleBudgetStatus(ctx context.Context, req *mcp.CallToolRequest, input BudgetStatusInput) (*mcp.CallToolResult, BudgetStatusOutput, error) {
	if globalCallbacks == nil || globalCallbacks.BudgetStatus == nil {
		return nil, BudgetStatusOutput{Error: "callback not configured"}, nil
	}

	budget, err := globalCallbacks.BudgetStatus(ctx)
	if err != nil {
		return nil, BudgetStatusOutput{Error: err.Error()}, nil
	}

	return nil, BudgetStatusOutput{Budget: budget}, nil
}

// ResetBudgetInput is empty - no input needed
type ResetBudgetInput struct{}

// ResetBudgetOutput is the output for reset_budget
type ResetBudgetOutput struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func handleResetBudget(ctx context.Context, req *mcp.CallToolRequest, input ResetBudgetInput) (*mcp.CallToolResult, ResetBudgetOutput, error) {
	if globalCallbacks == nil || globalCallbacks.ResetBudget == nil {
		return nil, ResetBudgetOutput{Success: false, Error: "callback not configured"}, nil
	}

	if err := globalCallbacks.ResetBudget(ctx); err != nil {
		return nil, ResetBudgetOutput{Success: false, Error: err.Error()}, nil
	}

	return nil, ResetBudgetOutput{Success: true}, nil
}

// Run starts the MCP server with stdio transport
func (s *VigilMCPServer) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// GetServer returns the underlying MCP server
func (s *VigilMCPServer) GetServer() *mcp.Server {
	return s.server
}
