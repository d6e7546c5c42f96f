package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vigilhq/vigil/internal/biz"
	"github.com/vigilhq/vigil/internal/biz/domain"
	"github.com/vigilhq/vigil/internal/biz/repo"
	"github.com/vigilhq/vigil/internal/conf"
	"github.com/vigilhq/vigil/internal/detector"
	"github.com/vigilhq/vigil/internal/logging"
)

// Monitor drives the alert pipeline: it polls detectors and due reminder
// definitions on a fixed interval, pushes admitted alerts through delivery,
// and retires stale queue entries in the background.
type Monitor struct {
	uc        *biz.Usecases
	detectors []detector.Detector
	notifier  repo.Notifier
	templates *conf.TemplatesConfig
	log       *logging.Logger

	interval        time.Duration
	detectorTimeout time.Duration

	// Optional second channel for urgent alerts
	escalation repo.Notifier

	nowFn func() time.Time

	tickMu  sync.Mutex
	ticking bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitor creates the pipeline driver
func NewMonitor(
	uc *biz.Usecases,
	detectors []detector.Detector,
	notifier repo.Notifier,
	templates *conf.TemplatesConfig,
	log *logging.Logger,
	interval time.Duration,
	detectorTimeout time.Duration,
) *Monitor {
	return &Monitor{
		uc:              uc,
		detectors:       detectors,
		notifier:        notifier,
		templates:       templates,
		log:             log.Component("monitor"),
		interval:        interval,
		detectorTimeout: detectorTimeout,
		nowFn:           time.Now,
	}
}

// SetEscalationNotifier wires the channel urgent alerts escalate to,
// typically email. Optional.
func (m *Monitor) SetEscalationNotifier(n repo.Notifier) {
	m.escalation = n
}

// TickResult summarizes one pipeline pass
type TickResult struct {
	Skipped    bool `json:"skipped,omitempty"`
	Candidates int  `json:"candidates"`
	Admitted   int  `json:"admitted"`
	Suppressed int  `json:"suppressed"`
	Throttled  int  `json:"throttled"`
	Delivered  int  `json:"delivered"`
	Resent     int  `json:"resent"`
	Errors     int  `json:"errors"`
}

// Start starts the monitor loops
func (m *Monitor) Start(ctx context.Context) {
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(2)
	go m.tickLoop()
	go m.cleanupLoop()

	m.log.Info("started", "interval", m.interval, "detectors", len(m.detectors))
}

// Stop stops the monitor and waits for in-flight work
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.log.Info("stopped")
}

func (m *Monitor) tickLoop() {
	defer m.wg.Done()

	// First pass on startup
	m.RunTick(m.ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.RunTick(m.ctx)
		}
	}
}

// cleanupLoop retires old queue entries every 6 hours
func (m *Monitor) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.runCleanup()
		}
	}
}

// RunTick executes one full pipeline pass: resend due alerts, collect
// candidates from detectors and reminder definitions, then admit and deliver
// new ones. Passes never overlap; if one is still running the call is a no-op.
func (m *Monitor) RunTick(ctx context.Context) TickResult {
	m.tickMu.Lock()
	if m.ticking {
		m.tickMu.Unlock()
		m.log.Warn("tick still running, skipping")
		return TickResult{Skipped: true}
	}
	m.ticking = true
	m.tickMu.Unlock()

	defer func() {
		m.tickMu.Lock()
		m.ticking = false
		m.tickMu.Unlock()
	}()

	now := m.nowFn()
	var res TickResult

	m.resendPass(ctx, now, &res)

	candidates := m.collect(ctx, now)
	res.Candidates = len(candidates)
	m.admitPass(ctx, now, candidates, &res)

	m.log.Debug("tick done",
		"candidates", res.Candidates,
		"delivered", res.Delivered,
		"resent", res.Resent,
		"errors", res.Errors)
	return res
}

// Dispatch pushes externally produced candidates through the same admission
// and delivery path a tick uses. Used for manually triggered definitions.
func (m *Monitor) Dispatch(ctx context.Context, candidates ...domain.Candidate) TickResult {
	now := m.nowFn()
	res := TickResult{Candidates: len(candidates)}
	m.admitPass(ctx, now, candidates, &res)
	return res
}

// resendPass redelivers queued alerts whose resend interval has elapsed
func (m *Monitor) resendPass(ctx context.Context, now time.Time, res *TickResult) {
	due, err := m.uc.Delivery.DueForDelivery(ctx, now)
	if err != nil {
		m.log.Error("select due alerts", "err", err)
		res.Errors++
		return
	}

	for _, alert := range due {
		if err := m.deliver(ctx, alert, now); err != nil {
			m.log.Error("redeliver alert", "key", alert.AlertKey, "err", err)
			res.Errors++
			continue
		}
		res.Resent++
	}
}

// collect gathers candidates from all detectors concurrently plus due
// reminder definitions, sorted by priority so urgent ones hit the budget
// first. Detector failures are logged and the rest of the pass continues.
func (m *Monitor) collect(ctx context.Context, now time.Time) []domain.Candidate {
	var (
		mu         sync.Mutex
		candidates []domain.Candidate
		wg         sync.WaitGroup
	)

	for _, d := range m.detectors {
		wg.Add(1)
		go func(d detector.Detector) {
			defer wg.Done()

			found, err := m.runDetector(ctx, d)
			if err != nil {
				m.log.Error("detector failed", "detector", d.Name(), "err", err)
				return
			}
			mu.Lock()
			candidates = append(candidates, found...)
			mu.Unlock()
		}(d)
	}
	wg.Wait()

	due, err := m.uc.Definitions.EvaluateDue(ctx, now)
	if err != nil {
		m.log.Error("evaluate reminder definitions", "err", err)
	}
	for _, c := range due {
		candidates = append(candidates, *c)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Priority.Rank() > candidates[j].Priority.Rank()
	})
	return candidates
}

// runDetector runs one detector under the per-detector timeout. A hung
// detector cannot stall the tick: after the timeout its eventual result is
// discarded.
func (m *Monitor) runDetector(ctx context.Context, d detector.Detector) ([]domain.Candidate, error) {
	dctx, cancel := context.WithTimeout(ctx, m.detectorTimeout)
	defer cancel()

	type result struct {
		candidates []domain.Candidate
		err        error
	}
	ch := make(chan result, 1)
	go func() {
		found, err := d.Check(dctx)
		ch <- result{found, err}
	}()

	select {
	case r := <-ch:
		return r.candidates, r.err
	case <-dctx.Done():
		return nil, fmt.Errorf("timed out after %v", m.detectorTimeout)
	}
}

// admitPass pushes candidates through cooldown, dedup and budget admission,
// then delivers the admitted ones
func (m *Monitor) admitPass(ctx context.Context, now time.Time, candidates []domain.Candidate, res *TickResult) {
	for i := range candidates {
		c := &candidates[i]
		key := c.AlertKey()

		if !m.uc.Cooldown.ShouldEmit(key, now) {
			res.Suppressed++
			continue
		}

		existing, err := m.uc.Delivery.ByKey(ctx, key)
		if err != nil {
			m.log.Error("lookup alert", "key", key, "err", err)
			res.Errors++
			continue
		}
		if existing != nil {
			// Already queued: refresh the cooldown, spend no budget
			m.uc.Cooldown.MarkEmitted(key, now)
			res.Suppressed++
			continue
		}

		admission, err := m.uc.Admission.TryAdmit(ctx, c, now)
		if err != nil {
			m.log.Error("budget admission", "key", key, "err", err)
			res.Errors++
			continue
		}
		m.uc.Cooldown.MarkEmitted(key, now)

		if !admission.Admitted {
			m.log.Info("alert throttled", "key", key, "reason", admission.Reason)
			res.Throttled++
			continue
		}

		alert, inserted, err := m.uc.Delivery.Enqueue(ctx, c)
		if err != nil {
			m.log.Error("enqueue alert", "key", key, "err", err)
			res.Errors++
			continue
		}
		res.Admitted++

		if !inserted || !m.uc.Delivery.CanDeliver(now) {
			// Quiet hours: the queue holds it until the next allowed tick
			continue
		}

		if err := m.deliver(ctx, alert, now); err != nil {
			m.log.Error("deliver alert", "key", key, "err", err)
			res.Errors++
			continue
		}
		res.Delivered++
	}
}

// deliver sends one alert through the primary channel and records the send.
// Failed sends leave the queue entry untouched so the next tick retries.
func (m *Monitor) deliver(ctx context.Context, alert *domain.PendingAlert, now time.Time) error {
	firstSend := alert.SendCount == 0

	rendered := m.templates.FormatAlert(alert)
	if !firstSend {
		rendered = m.templates.FormatResend(alert, m.uc.Delivery.Policy().MaxResends)
	}

	msgID, err := m.notifier.Send(ctx, alert, rendered)
	if err != nil {
		return fmt.Errorf("send via %s: %w", m.notifier.Name(), err)
	}

	if err := m.uc.Delivery.MarkSent(ctx, alert.AlertKey, msgID, now); err != nil {
		return fmt.Errorf("record send: %w", err)
	}

	if alert.Priority == domain.PriorityUrgent && firstSend && m.escalation != nil {
		m.escalate(alert)
	}
	return nil
}

// escalate pushes an urgent alert through the escalation channel without
// blocking the tick
func (m *Monitor) escalate(alert *domain.PendingAlert) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if _, err := m.escalation.Send(ctx, alert, m.templates.FormatAlert(alert)); err != nil {
			m.log.Error("escalation failed", "key", alert.AlertKey, "channel", m.escalation.Name(), "err", err)
		}
	}()
}

// runCleanup removes retired queue entries and counts the never-acknowledged
// ones as ignored in the budget ledger
func (m *Monitor) runCleanup() {
	ctx := context.Background()
	now := m.nowFn()

	ignored, err := m.uc.Delivery.Cleanup(ctx, now)
	if err != nil {
		m.log.Error("cleanup", "err", err)
		return
	}
	if ignored > 0 {
		if err := m.uc.Admission.RecordIgnored(ctx, now, int(ignored)); err != nil {
			m.log.Error("record ignored", "err", err)
		}
		m.log.Info("retired unacknowledged alerts", "count", ignored)
	}
}
