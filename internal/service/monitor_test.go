package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vigilhq/vigil/internal/biz"
	"github.com/vigilhq/vigil/internal/biz/domain"
	"github.com/vigilhq/vigil/internal/biz/usecase"
	"github.com/vigilhq/vigil/internal/conf"
	"github.com/vigilhq/vigil/internal/detector"
	"github.com/vigilhq/vigil/internal/logging"
)

// Mock implementations

type memDefinitionRepo struct {
	defs map[string]*domain.Definition
}

func (m *memDefinitionRepo) Save(ctx context.Context, def *domain.Definition) error {
	copied := *def
	m.defs[def.ID] = &copied
	return nil
}

func (m *memDefinitionRepo) GetByID(ctx context.Context, id string) (*domain.Definition, error) {
	return m.defs[id], nil
}

func (m *memDefinitionRepo) ListActive(ctx context.Context) ([]*domain.Definition, error) {
	var result []*domain.Definition
	for _, def := range m.defs {
		if def.Active {
			result = append(result, def)
		}
	}
	return result, nil
}

func (m *memDefinitionRepo) ListAll(ctx context.Context) ([]*domain.Definition, error) {
	var result []*domain.Definition
	for _, def := range m.defs {
		result = append(result, def)
	}
	return result, nil
}

func (m *memDefinitionRepo) MarkTriggered(ctx context.Context, id string, at time.Time) error {
	if def, ok := m.defs[id]; ok {
		fired := at
		def.LastTriggered = &fired
	}
	return nil
}

func (m *memDefinitionRepo) SetActive(ctx context.Context, id string, active bool) error {
	if def, ok := m.defs[id]; ok {
		def.Active = active
	}
	return nil
}

func (m *memDefinitionRepo) Delete(ctx context.Context, id string) error {
	delete(m.defs, id)
	return nil
}

type memPendingRepo struct {
	alerts map[string]*domain.PendingAlert
}

func (m *memPendingRepo) Add(ctx context.Context, alert *domain.PendingAlert) (bool, error) {
	if _, exists := m.alerts[alert.AlertKey]; exists {
		return false, nil
	}
	m.alerts[alert.AlertKey] = alert
	return true, nil
}

func (m *memPendingRepo) GetByKey(ctx context.Context, alertKey string) (*domain.PendingAlert, error) {
	return m.alerts[alertKey], nil
}

func (m *memPendingRepo) SelectDue(ctx context.Context, now time.Time, policy domain.DeliveryPolicy) ([]*domain.PendingAlert, error) {
	var due []*domain.PendingAlert
	for _, a := range m.alerts {
		if a.Acknowledged || a.SendCount >= policy.MaxResends {
			continue
		}
		if a.LastSentAt != nil && now.Sub(*a.LastSentAt) < policy.ResendInterval {
			continue
		}
		due = append(due, a)
	}
	return due, nil
}

func (m *memPendingRepo) ListUnacknowledged(ctx context.Context) ([]*domain.PendingAlert, error) {
	var result []*domain.PendingAlert
	for _, a := range m.alerts {
		if !a.Acknowledged {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *memPendingRepo) MarkSent(ctx context.Context, alertKey string, externalMessageID string, at time.Time) error {
	if a, ok := m.alerts[alertKey]; ok {
		sent := at
		a.LastSentAt = &sent
		a.SendCount++
		if externalMessageID != "" {
			a.ExternalMessageID = externalMessageID
		}
	}
	return nil
}

func (m *memPendingRepo) Acknowledge(ctx context.Context, alertKey string, at time.Time) (bool, error) {
	a, ok := m.alerts[alertKey]
	if !ok || a.Acknowledged {
		return false, nil
	}
	acked := at
	a.Acknowledged = true
	a.AcknowledgedAt = &acked
	return true, nil
}

func (m *memPendingRepo) AcknowledgeByMessageID(ctx context.Context, messageID string, at time.Time) (string, error) {
	for _, a := range m.alerts {
		if a.ExternalMessageID == messageID && !a.Acknowledged {
			_, err := m.Acknowledge(ctx, a.AlertKey, at)
			return a.AlertKey, err
		}
	}
	return "", nil
}

func (m *memPendingRepo) Cleanup(ctx context.Context, olderThan time.Time, maxResends int) (int64, error) {
	var ignored int64
	for key, a := range m.alerts {
		if !a.CreatedAt.Before(olderThan) {
			continue
		}
		if a.Acknowledged {
			delete(m.alerts, key)
		} else if a.SendCount >= maxResends {
			delete(m.alerts, key)
			ignored++
		}
	}
	return ignored, nil
}

func (m *memPendingRepo) Stats(ctx context.Context) (*domain.PendingStats, error) {
	stats := &domain.PendingStats{ByCategory: map[string]int{}}
	for _, a := range m.alerts {
		stats.Total++
		if !a.Acknowledged {
			stats.Unacknowledged++
			stats.ByCategory[a.Category]++
		}
	}
	return stats, nil
}

type memBudgetRepo struct {
	days    map[string]*domain.BudgetState
	skipped map[string][]domain.SkippedAlert
}

func (m *memBudgetRepo) GetDay(ctx context.Context, date string) (*domain.BudgetState, error) {
	state, ok := m.days[date]
	if !ok {
		return nil, nil
	}
	copied := *state
	copied.Skipped = m.skipped[date]
	return &copied, nil
}

func (m *memBudgetRepo) SaveDay(ctx context.Context, state *domain.BudgetState) error {
	copied := *state
	m.days[state.Date] = &copied
	return nil
}

func (m *memBudgetRepo) IncrementSent(ctx context.Context, date string) error {
	m.ensure(date).MessagesSent++
	return nil
}

func (m *memBudgetRepo) IncrementResponses(ctx context.Context, date string) error {
	m.ensure(date).UserResponses++
	return nil
}

func (m *memBudgetRepo) AddIgnored(ctx context.Context, date string, n int) error {
	m.ensure(date).Ignored += n
	return nil
}

func (m *memBudgetRepo) AddSkipped(ctx context.Context, date string, skipped domain.SkippedAlert, maxLog int) error {
	m.skipped[date] = append(m.skipped[date], skipped)
	return nil
}

func (m *memBudgetRepo) ResetDay(ctx context.Context, date string) error {
	m.days[date] = &domain.BudgetState{Date: date}
	delete(m.skipped, date)
	return nil
}

func (m *memBudgetRepo) History(ctx context.Context, limit int) ([]*domain.BudgetState, error) {
	var result []*domain.BudgetState
	for _, state := range m.days {
		result = append(result, state)
	}
	return result, nil
}

func (m *memBudgetRepo) ensure(date string) *domain.BudgetState {
	if _, ok := m.days[date]; !ok {
		m.days[date] = &domain.BudgetState{Date: date}
	}
	return m.days[date]
}

type stubDetector struct {
	name       string
	candidates []domain.Candidate
	err        error
	delay      time.Duration
}

func (d *stubDetector) Name() string { return d.name }

func (d *stubDetector) Check(ctx context.Context) ([]domain.Candidate, error) {
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	return d.candidates, d.err
}

type sentMessage struct {
	key      string
	rendered string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (n *fakeNotifier) Name() string { return "fake" }

func (n *fakeNotifier) Send(ctx context.Context, alert *domain.PendingAlert, rendered string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return "", n.err
	}
	n.sent = append(n.sent, sentMessage{key: alert.AlertKey, rendered: rendered})
	return "om_" + strconv.Itoa(len(n.sent)), nil
}

func (n *fakeNotifier) sentCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type testMonitor struct {
	*Monitor
	defs     *memDefinitionRepo
	pending  *memPendingRepo
	budget   *memBudgetRepo
	notifier *fakeNotifier
}

func newTestMonitor(detectors ...detector.Detector) *testMonitor {
	defs := &memDefinitionRepo{defs: make(map[string]*domain.Definition)}
	pending := &memPendingRepo{alerts: make(map[string]*domain.PendingAlert)}
	budget := &memBudgetRepo{
		days:    make(map[string]*domain.BudgetState),
		skipped: make(map[string][]domain.SkippedAlert),
	}
	notifier := &fakeNotifier{}

	uc := &biz.Usecases{
		Definitions: usecase.NewDefinitionUsecase(defs),
		Admission:   usecase.NewAdmissionUsecase(budget, domain.DefaultBudgetPolicy()),
		Delivery:    usecase.NewDeliveryUsecase(pending, domain.DefaultDeliveryPolicy()),
		Cooldown:    usecase.NewCooldownTracker(time.Hour),
	}

	m := NewMonitor(uc, detectors, notifier, conf.DefaultTemplatesConfig(),
		logging.Nop(), time.Minute, 100*time.Millisecond)

	return &testMonitor{Monitor: m, defs: defs, pending: pending, budget: budget, notifier: notifier}
}

func diskCandidate(priority domain.Priority) domain.Candidate {
	return domain.Candidate{
		Key:      "infra:disk-root",
		Category: domain.CategoryInfra,
		Title:    "Disk space low on /",
		Message:  "/ is 85% full, 12.3 GB free",
		Priority: priority,
	}
}

// Tests

func TestRunTick_DeliversDetectedAlert(t *testing.T) {
	d := &stubDetector{name: "disk", candidates: []domain.Candidate{diskCandidate(domain.PriorityMedium)}}
	tm := newTestMonitor(d)
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	tm.nowFn = func() time.Time { return now }

	res := tm.RunTick(context.Background())

	if res.Candidates != 1 {
		t.Errorf("Expected 1 candidate, got %d", res.Candidates)
	}
	if res.Delivered != 1 {
		t.Errorf("Expected 1 delivered, got %d", res.Delivered)
	}
	if tm.notifier.sentCount() != 1 {
		t.Fatalf("Expected 1 send, got %d", tm.notifier.sentCount())
	}
	if !strings.Contains(tm.notifier.sent[0].rendered, "Disk space low on /") {
		t.Errorf("Unexpected rendered message: %q", tm.notifier.sent[0].rendered)
	}

	alert := tm.pending.alerts["infra:disk-root"]
	if alert == nil {
		t.Fatal("Expected a queued alert")
	}
	if alert.SendCount != 1 {
		t.Errorf("Expected send count 1, got %d", alert.SendCount)
	}
	if alert.ExternalMessageID == "" {
		t.Error("Expected external message ID recorded")
	}

	day := tm.budget.days["2025-06-10"]
	if day == nil || day.MessagesSent != 1 {
		t.Errorf("Expected 1 budget slot spent, got %+v", day)
	}
}

func TestRunTick_CooldownSuppressesRepeat(t *testing.T) {
	d := &stubDetector{name: "disk", candidates: []domain.Candidate{diskCandidate(domain.PriorityMedium)}}
	tm := newTestMonitor(d)
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	tm.nowFn = func() time.Time { return now }

	tm.RunTick(context.Background())

	// Same condition 10 minutes later, inside the cooldown window
	now = now.Add(10 * time.Minute)
	res := tm.RunTick(context.Background())

	if res.Suppressed != 1 {
		t.Errorf("Expected 1 suppressed, got %d", res.Suppressed)
	}
	if tm.notifier.sentCount() != 1 {
		t.Errorf("Expected no extra sends, got %d total", tm.notifier.sentCount())
	}
	if tm.budget.days["2025-06-10"].MessagesSent != 1 {
		t.Errorf("Expected budget untouched, got %d", tm.budget.days["2025-06-10"].MessagesSent)
	}
}

func TestRunTick_ExistingAlertResendsWithoutNewBudget(t *testing.T) {
	d := &stubDetector{name: "disk", candidates: []domain.Candidate{diskCandidate(domain.PriorityMedium)}}
	tm := newTestMonitor(d)
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	tm.nowFn = func() time.Time { return now }

	tm.RunTick(context.Background())

	// Two hours later the cooldown has lapsed but the alert is still queued:
	// it resends without spending another budget slot
	now = now.Add(2 * time.Hour)
	res := tm.RunTick(context.Background())

	if res.Resent != 1 {
		t.Errorf("Expected 1 resend, got %d", res.Resent)
	}
	if res.Admitted != 0 {
		t.Errorf("Expected no new admissions, got %d", res.Admitted)
	}
	if tm.notifier.sentCount() != 2 {
		t.Fatalf("Expected 2 sends, got %d", tm.notifier.sentCount())
	}
	if !strings.Contains(tm.notifier.sent[1].rendered, "Reminder (2/5)") {
		t.Errorf("Expected resend counter in message, got %q", tm.notifier.sent[1].rendered)
	}
	if tm.budget.days["2025-06-10"].MessagesSent != 1 {
		t.Errorf("Expected budget untouched by resend, got %d", tm.budget.days["2025-06-10"].MessagesSent)
	}
	if tm.pending.alerts["infra:disk-root"].SendCount != 2 {
		t.Errorf("Expected send count 2, got %d", tm.pending.alerts["infra:disk-root"].SendCount)
	}
}

func TestRunTick_QuietHoursQueueWithoutSend(t *testing.T) {
	d := &stubDetector{name: "disk", candidates: []domain.Candidate{diskCandidate(domain.PriorityMedium)}}
	tm := newTestMonitor(d)
	now := time.Date(2025, 6, 10, 23, 0, 0, 0, time.UTC)
	tm.nowFn = func() time.Time { return now }

	res := tm.RunTick(context.Background())

	if res.Admitted != 1 {
		t.Errorf("Expected 1 admitted, got %d", res.Admitted)
	}
	if res.Delivered != 0 {
		t.Errorf("Expected no deliveries during quiet hours, got %d", res.Delivered)
	}
	if tm.notifier.sentCount() != 0 {
		t.Fatalf("Expected no sends during quiet hours, got %d", tm.notifier.sentCount())
	}
	if tm.budget.days["2025-06-10"].MessagesSent != 1 {
		t.Errorf("Expected budget spent at admission, got %d", tm.budget.days["2025-06-10"].MessagesSent)
	}

	// Next morning the queued alert goes out as a first send
	now = time.Date(2025, 6, 11, 8, 0, 0, 0, time.UTC)
	res = tm.RunTick(context.Background())

	if res.Resent != 1 {
		t.Errorf("Expected queued alert delivered in morning pass, got %d", res.Resent)
	}
	if tm.notifier.sentCount() != 1 {
		t.Fatalf("Expected 1 send, got %d", tm.notifier.sentCount())
	}
	if strings.Contains(tm.notifier.sent[0].rendered, "Reminder") {
		t.Errorf("First send should not carry the resend prefix: %q", tm.notifier.sent[0].rendered)
	}
}

func TestRunTick_BudgetExhaustedThrottles(t *testing.T) {
	d := &stubDetector{name: "disk", candidates: []domain.Candidate{diskCandidate(domain.PriorityMedium)}}
	tm := newTestMonitor(d)
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	tm.nowFn = func() time.Time { return now }

	tm.budget.SaveDay(context.Background(), &domain.BudgetState{Date: "2025-06-10", MessagesSent: 5})

	res := tm.RunTick(context.Background())

	if res.Throttled != 1 {
		t.Errorf("Expected 1 throttled, got %d", res.Throttled)
	}
	if tm.notifier.sentCount() != 0 {
		t.Errorf("Expected no sends, got %d", tm.notifier.sentCount())
	}
	if len(tm.pending.alerts) != 0 {
		t.Errorf("Expected nothing queued, got %d", len(tm.pending.alerts))
	}
	if len(tm.budget.skipped["2025-06-10"]) != 1 {
		t.Errorf("Expected skipped log entry, got %d", len(tm.budget.skipped["2025-06-10"]))
	}
}

func TestRunTick_UrgentBypassesBudget(t *testing.T) {
	d := &stubDetector{name: "disk", candidates: []domain.Candidate{diskCandidate(domain.PriorityUrgent)}}
	tm := newTestMonitor(d)
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	tm.nowFn = func() time.Time { return now }

	tm.budget.SaveDay(context.Background(), &domain.BudgetState{Date: "2025-06-10", MessagesSent: 5})

	res := tm.RunTick(context.Background())

	if res.Delivered != 1 {
		t.Errorf("Expected urgent alert delivered, got %d", res.Delivered)
	}
	if tm.budget.days["2025-06-10"].MessagesSent != 6 {
		t.Errorf("Expected urgent send counted, got %d", tm.budget.days["2025-06-10"].MessagesSent)
	}
}

func TestRunTick_DetectorFailureIsIsolated(t *testing.T) {
	broken := &stubDetector{name: "thermal", err: errors.New("sysfs unreadable")}
	working := &stubDetector{name: "disk", candidates: []domain.Candidate{diskCandidate(domain.PriorityMedium)}}
	tm := newTestMonitor(broken, working)
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	tm.nowFn = func() time.Time { return now }

	res := tm.RunTick(context.Background())

	if res.Delivered != 1 {
		t.Errorf("Expected working detector's alert delivered, got %d", res.Delivered)
	}
}

func TestRunTick_HungDetectorTimesOut(t *testing.T) {
	hung := &stubDetector{
		name:       "systemd",
		delay:      300 * time.Millisecond,
		candidates: []domain.Candidate{{Key: "infra:service-late", Category: domain.CategoryInfra, Title: "Late"}},
	}
	working := &stubDetector{name: "disk", candidates: []domain.Candidate{diskCandidate(domain.PriorityMedium)}}
	tm := newTestMonitor(hung, working)
	tm.detectorTimeout = 50 * time.Millisecond
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	tm.nowFn = func() time.Time { return now }

	res := tm.RunTick(context.Background())

	if res.Candidates != 1 {
		t.Errorf("Expected only the fast detector's candidate, got %d", res.Candidates)
	}
	if _, exists := tm.pending.alerts["infra:service-late"]; exists {
		t.Error("Hung detector's candidate should have been discarded")
	}
}

func TestRunTick_SendFailureKeepsAlertQueued(t *testing.T) {
	d := &stubDetector{name: "disk", candidates: []domain.Candidate{diskCandidate(domain.PriorityMedium)}}
	tm := newTestMonitor(d)
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	tm.nowFn = func() time.Time { return now }

	tm.notifier.err = errors.New("feishu unreachable")
	res := tm.RunTick(context.Background())

	if res.Errors != 1 {
		t.Errorf("Expected 1 error, got %d", res.Errors)
	}
	alert := tm.pending.alerts["infra:disk-root"]
	if alert == nil {
		t.Fatal("Expected alert still queued after failed send")
	}
	if alert.SendCount != 0 || alert.LastSentAt != nil {
		t.Errorf("Failed send should not touch delivery state: count=%d", alert.SendCount)
	}

	// Channel recovers: the next tick picks the alert up as a first send
	tm.notifier.err = nil
	now = now.Add(10 * time.Minute)
	res = tm.RunTick(context.Background())

	if res.Resent != 1 {
		t.Errorf("Expected queued alert delivered after recovery, got %d", res.Resent)
	}
	if tm.pending.alerts["infra:disk-root"].SendCount != 1 {
		t.Errorf("Expected send count 1, got %d", tm.pending.alerts["infra:disk-root"].SendCount)
	}
}

func TestRunTick_SkipsWhenTickInProgress(t *testing.T) {
	tm := newTestMonitor()
	tm.ticking = true

	res := tm.RunTick(context.Background())

	if !res.Skipped {
		t.Error("Expected tick to be skipped while another is running")
	}
}

func TestRunTick_FiredDefinitionDelivered(t *testing.T) {
	tm := newTestMonitor()
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	tm.nowFn = func() time.Time { return now }

	def := &domain.Definition{
		ID:        "abc12345",
		Title:     "Call dentist",
		Trigger:   domain.NewFixedDateTrigger(time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)),
		Priority:  domain.PriorityHigh,
		Active:    true,
		CreatedAt: now.Add(-24 * time.Hour),
	}
	tm.defs.Save(context.Background(), def)

	res := tm.RunTick(context.Background())

	if res.Delivered != 1 {
		t.Fatalf("Expected reminder delivered, got %d", res.Delivered)
	}
	if !strings.Contains(tm.notifier.sent[0].rendered, "Call dentist") {
		t.Errorf("Unexpected rendered message: %q", tm.notifier.sent[0].rendered)
	}
	if tm.pending.alerts["reminder:abc12345:2025-06-10"] == nil {
		t.Error("Expected queue entry keyed by definition and day")
	}

	saved := tm.defs.defs["abc12345"]
	if saved.Active {
		t.Error("Fired one-shot definition should be deactivated")
	}
	if saved.LastTriggered == nil {
		t.Error("Expected last trigger time recorded")
	}
}

func TestRunTick_UrgentEscalation(t *testing.T) {
	d := &stubDetector{name: "disk", candidates: []domain.Candidate{diskCandidate(domain.PriorityUrgent)}}
	tm := newTestMonitor(d)
	escalation := &fakeNotifier{}
	tm.SetEscalationNotifier(escalation)
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	tm.nowFn = func() time.Time { return now }

	tm.RunTick(context.Background())

	// Give the async escalation time to run
	time.Sleep(100 * time.Millisecond)

	if escalation.sentCount() != 1 {
		t.Fatalf("Expected 1 escalation send, got %d", escalation.sentCount())
	}
	if escalation.sent[0].key != "infra:disk-root" {
		t.Errorf("Unexpected escalated alert: %s", escalation.sent[0].key)
	}
}

func TestRunCleanup_CountsIgnored(t *testing.T) {
	tm := newTestMonitor()
	now := time.Date(2025, 6, 10, 10, 0, 0, 0, time.UTC)
	tm.nowFn = func() time.Time { return now }

	old := now.Add(-8 * 24 * time.Hour)
	tm.pending.alerts["task:stale"] = &domain.PendingAlert{
		AlertKey:  "task:stale",
		Category:  domain.CategoryTask,
		Title:     "Stale",
		CreatedAt: old,
		SendCount: 5,
	}

	tm.runCleanup()

	if len(tm.pending.alerts) != 0 {
		t.Errorf("Expected stale alert removed, got %d", len(tm.pending.alerts))
	}
	if tm.budget.days["2025-06-10"].Ignored != 1 {
		t.Errorf("Expected 1 ignored recorded, got %+v", tm.budget.days["2025-06-10"])
	}
}
