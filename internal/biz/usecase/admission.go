package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/vigilhq/vigil/internal/biz/domain"
	"github.com/vigilhq/vigil/internal/biz/repo"
)

// Skip reasons recorded in the daily log
const (
	ReasonBudgetExhausted = "budget exhausted"
)

// AdmissionUsecase enforces the daily notification budget
type AdmissionUsecase struct {
	budgetRepo repo.BudgetRepo
	policy     domain.BudgetPolicy
}

// NewAdmissionUsecase creates a new admission usecase
func NewAdmissionUsecase(budgetRepo repo.BudgetRepo, policy domain.BudgetPolicy) *AdmissionUsecase {
	return &AdmissionUsecase{
		budgetRepo: budgetRepo,
		policy:     policy,
	}
}

// AdmissionResult represents the outcome of budget admission
type AdmissionResult struct {
	Admitted bool
	Reason   string
}

// TryAdmit spends one unit of the day's budget on the candidate. Urgent
// candidates are always admitted and still consume budget; anything else is
// skipped once the day's limit is reached, with the skip recorded so the
// user can review what was withheld.
func (uc *AdmissionUsecase) TryAdmit(ctx context.Context, c *domain.Candidate, now time.Time) (*AdmissionResult, error) {
	date := domain.LocalDay(now)
	state, err := uc.ensureDay(ctx, date)
	if err != nil {
		return nil, err
	}

	if c.Priority != domain.PriorityUrgent && state.MessagesSent >= uc.policy.DailyLimit {
		skipped := domain.SkippedAlert{
			Title:     c.Title,
			Priority:  c.Priority,
			Preview:   domain.PreviewOf(c.Message),
			Reason:    ReasonBudgetExhausted,
			SkippedAt: now,
		}
		if err := uc.budgetRepo.AddSkipped(ctx, date, skipped, uc.policy.MaxSkippedLog); err != nil {
			return nil, fmt.Errorf("record skipped alert: %w", err)
		}
		return &AdmissionResult{Admitted: false, Reason: ReasonBudgetExhausted}, nil
	}

	if err := uc.budgetRepo.IncrementSent(ctx, date); err != nil {
		return nil, fmt.Errorf("increment sent: %w", err)
	}
	return &AdmissionResult{Admitted: true}, nil
}

// Stats returns the state of the current day, creating it on first read
// after midnight
func (uc *AdmissionUsecase) Stats(ctx context.Context, now time.Time) (*domain.BudgetState, error) {
	return uc.ensureDay(ctx, domain.LocalDay(now))
}

// History lists recent days, newest first
func (uc *AdmissionUsecase) History(ctx context.Context, limit int) ([]*domain.BudgetState, error) {
	if limit <= 0 {
		limit = 7
	}
	return uc.budgetRepo.History(ctx, limit)
}

// Reset zeroes the current day
func (uc *AdmissionUsecase) Reset(ctx context.Context, now time.Time) error {
	if err := uc.budgetRepo.ResetDay(ctx, domain.LocalDay(now)); err != nil {
		return fmt.Errorf("reset budget: %w", err)
	}
	return nil
}

// RecordResponse counts one user acknowledgment toward the day
func (uc *AdmissionUsecase) RecordResponse(ctx context.Context, now time.Time) error {
	if err := uc.budgetRepo.IncrementResponses(ctx, domain.LocalDay(now)); err != nil {
		return fmt.Errorf("record response: %w", err)
	}
	return nil
}

// RecordIgnored counts alerts that aged out without ever being acknowledged
func (uc *AdmissionUsecase) RecordIgnored(ctx context.Context, now time.Time, n int) error {
	if n <= 0 {
		return nil
	}
	if err := uc.budgetRepo.AddIgnored(ctx, domain.LocalDay(now), n); err != nil {
		return fmt.Errorf("record ignored: %w", err)
	}
	return nil
}

// Policy returns the admission policy in effect
func (uc *AdmissionUsecase) Policy() domain.BudgetPolicy {
	return uc.policy
}

// ensureDay reads the day's state, rolling over to a fresh one the first
// time a new day is touched. Old days stay behind as history.
func (uc *AdmissionUsecase) ensureDay(ctx context.Context, date string) (*domain.BudgetState, error) {
	state, err := uc.budgetRepo.GetDay(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("get budget day: %w", err)
	}
	if state != nil {
		return state, nil
	}

	state = &domain.BudgetState{Date: date}
	if err := uc.budgetRepo.SaveDay(ctx, state); err != nil {
		return nil, fmt.Errorf("create budget day: %w", err)
	}
	return state, nil
}
