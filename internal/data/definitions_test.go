package data

import (
	"context"
	"testing"
	"time"

	"github.com/vigilhq/vigil/internal/biz/domain"
)

func TestDefinitionRoundTrip(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	at := time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

	def := &domain.Definition{
		ID:          "ab12cd34",
		Title:       "Dentist appointment",
		Description: "Dr. Lee, bring insurance card",
		Trigger:     domain.NewFixedDateTrigger(at),
		Priority:    domain.PriorityHigh,
		Active:      true,
		CreatedAt:   time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC),
		Tags:        []string{"health", "appointment"},
	}
	if err := stores.Definitions.Save(ctx, def); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	got, err := stores.Definitions.GetByID(ctx, "ab12cd34")
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if got == nil {
		t.Fatal("Expected definition")
	}
	if got.Title != def.Title || got.Description != def.Description {
		t.Errorf("Unexpected fields: %+v", got)
	}
	if got.Trigger.Kind != domain.TriggerFixedDate {
		t.Errorf("Expected fixed_date kind, got %s", got.Trigger.Kind)
	}
	if got.Trigger.At.Unix() != at.Unix() {
		t.Errorf("Expected trigger at %v, got %v", at, got.Trigger.At)
	}
	if got.Priority != domain.PriorityHigh {
		t.Errorf("Expected high priority, got %s", got.Priority)
	}
	if !got.Active {
		t.Error("Expected active")
	}
	if got.LastTriggered != nil {
		t.Error("Expected no trigger time yet")
	}
	if len(got.Tags) != 2 || got.Tags[0] != "health" {
		t.Errorf("Unexpected tags: %v", got.Tags)
	}
}

func TestDefinitionRoundTrip_Condition(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	def := &domain.Definition{
		ID:        "cond0001",
		Title:     "Deploy finished",
		Trigger:   domain.NewConditionTrigger("the release pipeline completes"),
		Priority:  domain.PriorityMedium,
		Active:    true,
		CreatedAt: time.Now(),
	}
	if err := stores.Definitions.Save(ctx, def); err != nil {
		t.Fatalf("Failed to save: %v", err)
	}

	got, err := stores.Definitions.GetByID(ctx, "cond0001")
	if err != nil {
		t.Fatalf("Failed to get: %v", err)
	}
	if got.Trigger.Kind != domain.TriggerCondition {
		t.Errorf("Expected condition kind, got %s", got.Trigger.Kind)
	}
	if got.Trigger.Condition != "the release pipeline completes" {
		t.Errorf("Unexpected condition: %q", got.Trigger.Condition)
	}
	if !got.Trigger.At.IsZero() {
		t.Errorf("Expected zero trigger time, got %v", got.Trigger.At)
	}
}

func TestDefinitionGetByID_Missing(t *testing.T) {
	stores := newTestStores(t)

	got, err := stores.Definitions.GetByID(context.Background(), "nope1234")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != nil {
		t.Errorf("Expected nil for missing id, got %+v", got)
	}
}

func TestListActiveAndAll(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)

	for i, d := range []struct {
		id     string
		active bool
	}{
		{"def00001", true},
		{"def00002", false},
		{"def00003", true},
	} {
		stores.Definitions.Save(ctx, &domain.Definition{
			ID:        d.id,
			Title:     "Alert " + d.id,
			Trigger:   domain.NewRecurringTrigger(domain.RecurDaily, base),
			Priority:  domain.PriorityMedium,
			Active:    d.active,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}

	active, err := stores.Definitions.ListActive(ctx)
	if err != nil {
		t.Fatalf("Failed to list active: %v", err)
	}
	if len(active) != 2 {
		t.Fatalf("Expected 2 active, got %d", len(active))
	}
	// Oldest first
	if active[0].ID != "def00001" || active[1].ID != "def00003" {
		t.Errorf("Unexpected active order: %s, %s", active[0].ID, active[1].ID)
	}

	all, err := stores.Definitions.ListAll(ctx)
	if err != nil {
		t.Fatalf("Failed to list all: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 definitions, got %d", len(all))
	}
	// Newest first
	if all[0].ID != "def00003" {
		t.Errorf("Expected newest first, got %s", all[0].ID)
	}
}

func TestMarkTriggeredAndSetActive(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	stores.Definitions.Save(ctx, &domain.Definition{
		ID:        "def00009",
		Title:     "Water the plants",
		Trigger:   domain.NewRecurringTrigger(domain.RecurDaily, now),
		Priority:  domain.PriorityLow,
		Active:    true,
		CreatedAt: now,
	})

	if err := stores.Definitions.MarkTriggered(ctx, "def00009", now.Add(24*time.Hour)); err != nil {
		t.Fatalf("Failed to mark triggered: %v", err)
	}
	if err := stores.Definitions.SetActive(ctx, "def00009", false); err != nil {
		t.Fatalf("Failed to deactivate: %v", err)
	}

	got, _ := stores.Definitions.GetByID(ctx, "def00009")
	if got.LastTriggered == nil || got.LastTriggered.Unix() != now.Add(24*time.Hour).Unix() {
		t.Errorf("Expected trigger time recorded, got %v", got.LastTriggered)
	}
	if got.Active {
		t.Error("Expected inactive")
	}
}

func TestDefinitionDelete(t *testing.T) {
	stores := newTestStores(t)
	ctx := context.Background()

	stores.Definitions.Save(ctx, &domain.Definition{
		ID:        "def00011",
		Title:     "Temporary",
		Trigger:   domain.NewConditionTrigger("something"),
		Priority:  domain.PriorityMedium,
		Active:    true,
		CreatedAt: time.Now(),
	})

	if err := stores.Definitions.Delete(ctx, "def00011"); err != nil {
		t.Fatalf("Failed to delete: %v", err)
	}

	got, _ := stores.Definitions.GetByID(ctx, "def00011")
	if got != nil {
		t.Error("Expected definition removed")
	}
}
