package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vigilhq/vigil/internal/api"
	"github.com/vigilhq/vigil/internal/biz/domain"
	"github.com/vigilhq/vigil/internal/biz/usecase"
	"github.com/vigilhq/vigil/internal/service"
	"github.com/vigilhq/vigil/mcpserver"
)

// This MCP server runs standalone over stdio and relays tool calls to the
// vigil daemon's admin API.

const defaultAPIURL = "http://127.0.0.1:9877"

func main() {
	_ = godotenv.Load()

	apiURL := os.Getenv("VIGIL_API_URL")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	client := &apiClient{
		baseURL: strings.TrimRight(apiURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
	}

	srv := mcpserver.NewServer(&mcpserver.Callbacks{
		CreateAlert:     client.createAlert,
		ListAlerts:      client.listAlerts,
		DeactivateAlert: client.deactivateAlert,
		DeleteAlert:     client.deleteAlert,
		TriggerAlert:    client.triggerAlert,
		PendingAlerts:   client.pendingAlerts,
		Acknowledge:     client.acknowledge,
		BudgetStatus:    client.budgetStatus,
		ResetBudget:     client.resetBudget,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("MCP server error: %v", err)
	}
}

// apiClient talks to the daemon's admin API
type apiClient struct {
	baseURL string
	http    *http.Client
}

func (c *apiClient) call(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("vigil daemon not reachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api error (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}

func (c *apiClient) createAlert(ctx context.Context, in mcpserver.CreateAlertInput) (mcpserver.CreateAlertOutput, error) {
	var result usecase.CreateResult
	if err := c.call(ctx, http.MethodPost, "/api/alerts", in, &result); err != nil {
		return mcpserver.CreateAlertOutput{}, err
	}

	out := mcpserver.CreateAlertOutput{Created: result.Created}
	if result.Definition != nil {
		out.ID = result.Definition.ID
	}
	if result.DuplicateOf != nil {
		out.DuplicateOf = result.DuplicateOf.ID
	}
	return out, nil
}

func (c *apiClient) listAlerts(ctx context.Context, includeInactive bool) ([]mcpserver.AlertSummary, error) {
	path := "/api/alerts"
	if includeInactive {
		path += "?all=true"
	}

	var result struct {
		Alerts []*domain.Definition `json:"alerts"`
	}
	if err := c.call(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}

	var out []mcpserver.AlertSummary
	for _, def := range result.Alerts {
		out = append(out, alertSummary(def))
	}
	return out, nil
}

func alertSummary(def *domain.Definition) mcpserver.AlertSummary {
	s := mcpserver.AlertSummary{
		ID:        def.ID,
		Title:     def.Title,
		Kind:      string(def.Trigger.Kind),
		Pattern:   string(def.Trigger.Pattern),
		Condition: def.Trigger.Condition,
		Priority:  string(def.Priority),
		Active:    def.Active,
	}
	if !def.Trigger.At.IsZero() {
		s.At = def.Trigger.At.Format(time.RFC3339)
	}
	if def.LastTriggered != nil {
		s.LastTriggered = def.LastTriggered.Format(time.RFC3339)
	}
	return s
}

func (c *apiClient) deactivateAlert(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("id is required")
	}
	return c.call(ctx, http.MethodPost, "/api/alerts/"+id+"/deactivate", nil, nil)
}

func (c *apiClient) deleteAlert(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("id is required")
	}
	return c.call(ctx, http.MethodDelete, "/api/alerts/"+id, nil, nil)
}

func (c *apiClient) triggerAlert(ctx context.Context, id string) (mcpserver.TriggerAlertOutput, error) {
	if id == "" {
		return mcpserver.TriggerAlertOutput{}, fmt.Errorf("id is required")
	}

	var res service.TickResult
	if err := c.call(ctx, http.MethodPost, "/api/alerts/"+id+"/trigger", nil, &res); err != nil {
		return mcpserver.TriggerAlertOutput{}, err
	}

	out := mcpserver.TriggerAlertOutput{Triggered: true, Delivered: res.Delivered > 0}
	switch {
	case res.Suppressed > 0:
		out.Note = "suppressed: an alert with this key fired recently"
	case res.Throttled > 0:
		out.Note = "throttled: daily notification budget exhausted"
	case res.Admitted > 0 && res.Delivered == 0:
		out.Note = "queued: delivery deferred until quiet hours end"
	}
	return out, nil
}

func (c *apiClient) pendingAlerts(ctx context.Context) ([]mcpserver.PendingSummary, error) {
	var result struct {
		Alerts []*domain.PendingAlert `json:"alerts"`
	}
	if err := c.call(ctx, http.MethodGet, "/api/pending", nil, &result); err != nil {
		return nil, err
	}

	var out []mcpserver.PendingSummary
	for _, a := range result.Alerts {
		s := mcpserver.PendingSummary{
			Key:       a.AlertKey,
			Title:     a.Title,
			Priority:  string(a.Priority),
			SendCount: a.SendCount,
			CreatedAt: a.CreatedAt.Format(time.RFC3339),
		}
		if a.LastSentAt != nil {
			s.LastSentAt = a.LastSentAt.Format(time.RFC3339)
		}
		out = append(out, s)
	}
	return out, nil
}

func (c *apiClient) acknowledge(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("key is required")
	}

	var result struct {
		Acknowledged bool `json:"acknowledged"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/ack", map[string]string{"key": key}, &result); err != nil {
		return false, err
	}
	return result.Acknowledged, nil
}

func (c *apiClient) budgetStatus(ctx context.Context) (*mcpserver.BudgetSummary, error) {
	var status api.StatusResponse
	if err := c.call(ctx, http.MethodGet, "/api/status", nil, &status); err != nil {
		return nil, err
	}
	if status.Budget == nil {
		return nil, fmt.Errorf("no budget in status response")
	}

	return &mcpserver.BudgetSummary{
		Date:         status.Budget.Date,
		Sent:         status.Budget.MessagesSent,
		Limit:        status.DailyLimit,
		Remaining:    status.Remaining,
		Responses:    status.Budget.UserResponses,
		Ignored:      status.Budget.Ignored,
		SkippedToday: len(status.Budget.Skipped),
	}, nil
}

func (c *apiClient) resetBudget(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/api/budget/reset", nil, nil)
}
