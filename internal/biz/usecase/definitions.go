package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vigilhq/vigil/internal/biz/domain"
	"github.com/vigilhq/vigil/internal/biz/repo"
)

// DefinitionUsecase handles user-created alert definitions
type DefinitionUsecase struct {
	definitionRepo repo.DefinitionRepo
}

// NewDefinitionUsecase creates a new definition usecase
func NewDefinitionUsecase(definitionRepo repo.DefinitionRepo) *DefinitionUsecase {
	return &DefinitionUsecase{definitionRepo: definitionRepo}
}

// CreateResult represents the outcome of a create attempt
type CreateResult struct {
	Created    bool               `json:"created"`
	Definition *domain.Definition `json:"definition,omitempty"`
	// DuplicateOf is the existing definition that suppressed the create
	DuplicateOf *domain.Definition `json:"duplicate_of,omitempty"`
}

// Create validates and saves a definition. A definition too similar to an
// active one with the same trigger kind is suppressed, not saved.
func (uc *DefinitionUsecase) Create(ctx context.Context, def *domain.Definition) (*CreateResult, error) {
	if strings.TrimSpace(def.Title) == "" {
		return nil, fmt.Errorf("definition title is required")
	}
	if err := def.Trigger.Validate(); err != nil {
		return nil, fmt.Errorf("invalid trigger: %w", err)
	}

	if def.ID == "" {
		def.ID = uuid.NewString()[:8]
	}
	if def.Priority == "" {
		def.Priority = domain.PriorityMedium
	}
	if def.CreatedAt.IsZero() {
		def.CreatedAt = time.Now()
	}
	def.Active = true

	active, err := uc.definitionRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active definitions: %w", err)
	}
	for _, existing := range active {
		if def.DuplicateOf(existing) {
			return &CreateResult{Created: false, Definition: def, DuplicateOf: existing}, nil
		}
	}

	if err := uc.definitionRepo.Save(ctx, def); err != nil {
		return nil, fmt.Errorf("save definition: %w", err)
	}
	return &CreateResult{Created: true, Definition: def}, nil
}

// EvaluateDue fires every active definition that is due at now, returning one
// candidate per firing. Recurring definitions stay active with their trigger
// time recorded, one-shot ones are deactivated after firing.
func (uc *DefinitionUsecase) EvaluateDue(ctx context.Context, now time.Time) ([]*domain.Candidate, error) {
	active, err := uc.definitionRepo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active definitions: %w", err)
	}

	var candidates []*domain.Candidate
	for _, def := range active {
		if !def.ShouldFire(now) {
			continue
		}
		if err := uc.markFired(ctx, def, now); err != nil {
			return candidates, err
		}
		candidates = append(candidates, CandidateFor(def, now))
	}
	return candidates, nil
}

// TriggerNow fires a definition regardless of its schedule. This is the only
// way a condition definition produces a candidate. Returns nil for unknown or
// inactive definitions.
func (uc *DefinitionUsecase) TriggerNow(ctx context.Context, id string, now time.Time) (*domain.Candidate, error) {
	def, err := uc.definitionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get definition: %w", err)
	}
	if def == nil || !def.Active {
		return nil, nil
	}

	if err := uc.markFired(ctx, def, now); err != nil {
		return nil, err
	}
	return CandidateFor(def, now), nil
}

func (uc *DefinitionUsecase) markFired(ctx context.Context, def *domain.Definition, now time.Time) error {
	if err := uc.definitionRepo.MarkTriggered(ctx, def.ID, now); err != nil {
		return fmt.Errorf("mark triggered: %w", err)
	}
	if !def.Recurring() {
		if err := uc.definitionRepo.SetActive(ctx, def.ID, false); err != nil {
			return fmt.Errorf("deactivate definition: %w", err)
		}
	}
	return nil
}

// Deactivate turns a definition off without deleting it
func (uc *DefinitionUsecase) Deactivate(ctx context.Context, id string) (bool, error) {
	def, err := uc.definitionRepo.GetByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("get definition: %w", err)
	}
	if def == nil {
		return false, nil
	}
	if err := uc.definitionRepo.SetActive(ctx, id, false); err != nil {
		return false, fmt.Errorf("deactivate definition: %w", err)
	}
	return true, nil
}

// Delete removes a definition
func (uc *DefinitionUsecase) Delete(ctx context.Context, id string) (bool, error) {
	def, err := uc.definitionRepo.GetByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("get definition: %w", err)
	}
	if def == nil {
		return false, nil
	}
	if err := uc.definitionRepo.Delete(ctx, id); err != nil {
		return false, fmt.Errorf("delete definition: %w", err)
	}
	return true, nil
}

// Get returns a definition by ID, nil when absent
func (uc *DefinitionUsecase) Get(ctx context.Context, id string) (*domain.Definition, error) {
	return uc.definitionRepo.GetByID(ctx, id)
}

// ListAll lists all definitions, newest first
func (uc *DefinitionUsecase) ListAll(ctx context.Context) ([]*domain.Definition, error) {
	return uc.definitionRepo.ListAll(ctx)
}

// ListActive lists active definitions
func (uc *DefinitionUsecase) ListActive(ctx context.Context) ([]*domain.Definition, error) {
	return uc.definitionRepo.ListActive(ctx)
}

// CandidateFor builds the alert candidate for one firing of a definition.
// The alert key embeds the local day so a recurring definition produces a
// distinct pending record each day it fires.
func CandidateFor(def *domain.Definition, now time.Time) *domain.Candidate {
	message := def.Description
	if message == "" {
		message = def.Title
	}
	return &domain.Candidate{
		Key:       "reminder:" + def.ID + ":" + domain.LocalDay(now),
		Category:  domain.CategoryReminder,
		Title:     def.Title,
		Message:   message,
		Priority:  def.Priority,
		Payload:   map[string]string{"definition_id": def.ID},
		CreatedAt: now,
	}
}
