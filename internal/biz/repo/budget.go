package repo

import (
	"context"

	"github.com/vigilhq/vigil/internal/biz/domain"
)

// BudgetRepo is the daily budget repository interface
// Responsible for per-day send counters and the skipped alert log (SQLite)
type BudgetRepo interface {
	// GetDay gets the state for a local day, (nil, nil) when absent
	GetDay(ctx context.Context, date string) (*domain.BudgetState, error)

	// SaveDay creates or replaces the counters for a day
	SaveDay(ctx context.Context, state *domain.BudgetState) error

	// IncrementSent bumps the sent counter for a day
	IncrementSent(ctx context.Context, date string) error

	// IncrementResponses bumps the user response counter for a day
	IncrementResponses(ctx context.Context, date string) error

	// AddIgnored adds to the ignored counter for a day
	AddIgnored(ctx context.Context, date string, n int) error

	// AddSkipped appends to the skipped log for a day, keeping at most maxLog entries
	AddSkipped(ctx context.Context, date string, skipped domain.SkippedAlert, maxLog int) error

	// ResetDay zeroes the counters and skipped log for a day
	ResetDay(ctx context.Context, date string) error

	// History lists recent days, newest first
	History(ctx context.Context, limit int) ([]*domain.BudgetState, error)
}
