package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vigilhq/vigil/internal/biz"
	"github.com/vigilhq/vigil/internal/biz/domain"
	"github.com/vigilhq/vigil/internal/service"
)

// Server provides the local HTTP API used by vigil-mcp and vigil-status
type Server struct {
	uc      *biz.Usecases
	monitor *service.Monitor

	server *http.Server
	port   int
}

// NewServer creates a new API server
func NewServer(uc *biz.Usecases, monitor *service.Monitor, port int) *Server {
	return &Server{
		uc:      uc,
		monitor: monitor,
		port:    port,
	}
}

// StatusResponse is the GET /api/status payload
type StatusResponse struct {
	Budget            *domain.BudgetState  `json:"budget"`
	DailyLimit        int                  `json:"daily_limit"`
	Remaining         int                  `json:"remaining"`
	Queue             *domain.PendingStats `json:"queue"`
	QuietHours        bool                 `json:"quiet_hours"`
	ActiveDefinitions int                  `json:"active_definitions"`
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler: s.routes(),
	}

	fmt.Printf("[API] Starting HTTP server on port %d\n", s.port)
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server
func (s *Server) Stop() error {
	if s.server != nil {
		return s.server.Shutdown(context.Background())
	}
	return nil
}

// GetPort returns the server port
func (s *Server) GetPort() int {
	return s.port
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Pipeline state
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/pending", s.handlePending)
	mux.HandleFunc("/api/ack", s.handleAck)
	mux.HandleFunc("/api/tick", s.handleTick)

	// Budget
	mux.HandleFunc("/api/budget", s.handleBudget)
	mux.HandleFunc("/api/budget/history", s.handleBudgetHistory)
	mux.HandleFunc("/api/budget/reset", s.handleBudgetReset)

	// Alert definitions
	mux.HandleFunc("/api/alerts", s.handleAlerts)
	mux.HandleFunc("/api/alerts/", s.handleAlertItem)

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}

// ============ Status Handlers ============

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	now := time.Now()

	budget, err := s.uc.Admission.Stats(ctx, now)
	if err != nil {
		s.writeError(w, err)
		return
	}
	queue, err := s.uc.Delivery.Stats(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	active, err := s.uc.Definitions.ListActive(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}

	policy := s.uc.Admission.Policy()
	s.writeJSON(w, &StatusResponse{
		Budget:            budget,
		DailyLimit:        policy.DailyLimit,
		Remaining:         budget.Remaining(policy),
		Queue:             queue,
		QuietHours:        !s.uc.Delivery.CanDeliver(now),
		ActiveDefinitions: len(active),
	})
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	alerts, err := s.uc.Delivery.Unacknowledged(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"alerts": alerts, "count": len(alerts)})
}

func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Key       string `json:"key"`
		MessageID string `json:"message_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	now := time.Now()

	var key string
	var acked bool
	switch {
	case req.Key != "":
		ok, err := s.uc.Delivery.Acknowledge(ctx, req.Key, now)
		if err != nil {
			s.writeError(w, err)
			return
		}
		key, acked = req.Key, ok

	case req.MessageID != "":
		resolved, err := s.uc.Delivery.AcknowledgeByMessageID(ctx, req.MessageID, now)
		if err != nil {
			s.writeError(w, err)
			return
		}
		key, acked = resolved, resolved != ""

	default:
		http.Error(w, "key or message_id is required", http.StatusBadRequest)
		return
	}

	if acked {
		if err := s.uc.Admission.RecordResponse(ctx, now); err != nil {
			fmt.Printf("[API] Failed to record response: %v\n", err)
		}
	}
	s.writeJSON(w, map[string]interface{}{"acknowledged": acked, "key": key})
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.monitor == nil {
		http.Error(w, "monitor not running", http.StatusServiceUnavailable)
		return
	}

	res := s.monitor.RunTick(r.Context())
	s.writeJSON(w, res)
}

// ============ Budget Handlers ============

func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	budget, err := s.uc.Admission.Stats(r.Context(), time.Now())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, budget)
}

func (s *Server) handleBudgetHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 7
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	days, err := s.uc.Admission.History(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"days": days})
}

func (s *Server) handleBudgetReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.uc.Admission.Reset(r.Context(), time.Now()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, map[string]interface{}{"success": true})
}

// ============ Alert Definition Handlers ============

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		// Active definitions by default, ?all=true includes fired and
		// deactivated ones
		var defs []*domain.Definition
		var err error
		if r.URL.Query().Get("all") == "true" {
			defs, err = s.uc.Definitions.ListAll(ctx)
		} else {
			defs, err = s.uc.Definitions.ListActive(ctx)
		}
		if err != nil {
			s.writeError(w, err)
			return
		}
		s.writeJSON(w, map[string]interface{}{"alerts": defs})

	case http.MethodPost:
		var req struct {
			Title       string   `json:"title"`
			Description string   `json:"description"`
			Kind        string   `json:"kind"`
			At          string   `json:"at"`
			Pattern     string   `json:"pattern"`
			Condition   string   `json:"condition"`
			Priority    string   `json:"priority"`
			Tags        []string `json:"tags"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.Title == "" {
			http.Error(w, "title is required", http.StatusBadRequest)
			return
		}

		trigger, err := buildTrigger(req.Kind, req.At, req.Pattern, req.Condition)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		result, err := s.uc.Definitions.Create(ctx, &domain.Definition{
			Title:       req.Title,
			Description: req.Description,
			Trigger:     trigger,
			Priority:    domain.ParsePriority(req.Priority),
			Tags:        req.Tags,
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.writeJSON(w, result)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleAlertItem(w http.ResponseWriter, r *http.Request) {
	// Parse path: /api/alerts/{id} or /api/alerts/{id}/{action}
	path := strings.TrimPrefix(r.URL.Path, "/api/alerts/")
	parts := strings.Split(path, "/")

	id := parts[0]
	if id == "" {
		http.Error(w, "alert id is required", http.StatusBadRequest)
		return
	}

	if len(parts) > 1 && parts[1] != "" {
		switch parts[1] {
		case "deactivate":
			s.handleAlertDeactivate(w, r, id)
		case "trigger":
			s.handleAlertTrigger(w, r, id)
		default:
			http.Error(w, "unknown action", http.StatusNotFound)
		}
		return
	}

	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		def, err := s.uc.Definitions.Get(ctx, id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if def == nil {
			http.Error(w, "alert not found", http.StatusNotFound)
			return
		}
		s.writeJSON(w, def)

	case http.MethodDelete:
		found, err := s.uc.Definitions.Delete(ctx, id)
		if err != nil {
			s.writeError(w, err)
			return
		}
		if !found {
			http.Error(w, "alert not found", http.StatusNotFound)
			return
		}
		s.writeJSON(w, map[string]interface{}{"success": true})

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleAlertDeactivate(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	found, err := s.uc.Definitions.Deactivate(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !found {
		http.Error(w, "alert not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, map[string]interface{}{"success": true})
}

func (s *Server) handleAlertTrigger(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.monitor == nil {
		http.Error(w, "monitor not running", http.StatusServiceUnavailable)
		return
	}

	cand, err := s.uc.Definitions.TriggerNow(r.Context(), id, time.Now())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if cand == nil {
		http.Error(w, "alert not found or inactive", http.StatusNotFound)
		return
	}

	res := s.monitor.Dispatch(r.Context(), *cand)
	s.writeJSON(w, res)
}

// buildTrigger assembles a trigger from the wire fields. A recurring trigger
// without an anchor starts one interval from now.
func buildTrigger(kind, at, pattern, condition string) (domain.Trigger, error) {
	var anchor time.Time
	if at != "" {
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return domain.Trigger{}, fmt.Errorf("invalid at: %w", err)
		}
		anchor = parsed
	}

	switch domain.TriggerKind(kind) {
	case domain.TriggerFixedDate:
		return domain.NewFixedDateTrigger(anchor), nil
	case domain.TriggerRecurring:
		if anchor.IsZero() {
			anchor = time.Now()
		}
		return domain.NewRecurringTrigger(domain.RecurrencePattern(pattern), anchor), nil
	case domain.TriggerCondition:
		return domain.NewConditionTrigger(condition), nil
	}
	return domain.Trigger{}, fmt.Errorf("unknown trigger kind %q", kind)
}

// ============ Helpers ============

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
