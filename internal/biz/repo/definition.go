package repo

import (
	"context"
	"time"

	"github.com/vigilhq/vigil/internal/biz/domain"
)

// DefinitionRepo is the alert definition repository interface
// Responsible for user-created alert definition persistence (SQLite)
type DefinitionRepo interface {
	// Save saves a definition (create or update)
	Save(ctx context.Context, def *domain.Definition) error

	// GetByID gets a definition by ID, (nil, nil) when absent
	GetByID(ctx context.Context, id string) (*domain.Definition, error)

	// ListActive lists active definitions
	ListActive(ctx context.Context) ([]*domain.Definition, error)

	// ListAll lists all definitions, newest first
	ListAll(ctx context.Context) ([]*domain.Definition, error)

	// MarkTriggered records the last trigger time for a definition
	MarkTriggered(ctx context.Context, id string, at time.Time) error

	// SetActive toggles a definition on or off
	SetActive(ctx context.Context, id string, active bool) error

	// Delete removes a definition
	Delete(ctx context.Context, id string) error
}
