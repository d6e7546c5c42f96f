package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vigilhq/vigil/internal/biz/domain"
	"github.com/vigilhq/vigil/internal/biz/repo"
)

// definitionStore implements the Definition repository
type definitionStore struct {
	db *sql.DB
}

// newDefinitionStore prepares the alert_definitions table
func newDefinitionStore(db *sql.DB) (repo.DefinitionRepo, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS alert_definitions (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			trigger_kind TEXT NOT NULL,
			trigger_at INTEGER,
			recur_pattern TEXT NOT NULL DEFAULT '',
			condition_text TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL DEFAULT 'medium',
			active INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL,
			last_triggered INTEGER,
			tags TEXT NOT NULL DEFAULT '[]'
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create alert_definitions table: %w", err)
	}

	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_definitions_active ON alert_definitions(active)`)

	return &definitionStore{db: db}, nil
}

// Save saves a definition (create or update)
func (s *definitionStore) Save(ctx context.Context, def *domain.Definition) error {
	tags := def.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, _ := json.Marshal(tags)

	var triggerAt interface{}
	if !def.Trigger.At.IsZero() {
		triggerAt = def.Trigger.At.Unix()
	}
	var lastTriggered interface{}
	if def.LastTriggered != nil {
		lastTriggered = def.LastTriggered.Unix()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO alert_definitions
			(id, title, description, trigger_kind, trigger_at, recur_pattern, condition_text, priority, active, created_at, last_triggered, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		def.ID,
		def.Title,
		def.Description,
		string(def.Trigger.Kind),
		triggerAt,
		string(def.Trigger.Pattern),
		def.Trigger.Condition,
		string(def.Priority),
		boolToInt(def.Active),
		def.CreatedAt.Unix(),
		lastTriggered,
		string(tagsJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save definition: %w", err)
	}
	return nil
}

// GetByID gets a definition by ID
func (s *definitionStore) GetByID(ctx context.Context, id string) (*domain.Definition, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, trigger_kind, trigger_at, recur_pattern, condition_text, priority, active, created_at, last_triggered, tags
		FROM alert_definitions
		WHERE id = ?
	`, id)

	def, err := scanDefinition(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query definition: %w", err)
	}
	return def, nil
}

// ListActive lists active definitions
func (s *definitionStore) ListActive(ctx context.Context) ([]*domain.Definition, error) {
	return s.list(ctx, `
		SELECT id, title, description, trigger_kind, trigger_at, recur_pattern, condition_text, priority, active, created_at, last_triggered, tags
		FROM alert_definitions
		WHERE active = 1
		ORDER BY created_at ASC
	`)
}

// ListAll lists all definitions, newest first
func (s *definitionStore) ListAll(ctx context.Context) ([]*domain.Definition, error) {
	return s.list(ctx, `
		SELECT id, title, description, trigger_kind, trigger_at, recur_pattern, condition_text, priority, active, created_at, last_triggered, tags
		FROM alert_definitions
		ORDER BY created_at DESC
	`)
}

func (s *definitionStore) list(ctx context.Context, query string) ([]*domain.Definition, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	defer rows.Close()

	var defs []*domain.Definition
	for rows.Next() {
		def, err := scanDefinition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan definition: %w", err)
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// MarkTriggered records the last trigger time for a definition
func (s *definitionStore) MarkTriggered(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE alert_definitions SET last_triggered = ? WHERE id = ?
	`, at.Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to mark triggered: %w", err)
	}
	return nil
}

// SetActive toggles a definition on or off
func (s *definitionStore) SetActive(ctx context.Context, id string, active bool) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE alert_definitions SET active = ? WHERE id = ?
	`, boolToInt(active), id)
	if err != nil {
		return fmt.Errorf("failed to set active: %w", err)
	}
	return nil
}

// Delete removes a definition
func (s *definitionStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM alert_definitions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete definition: %w", err)
	}
	return nil
}

// scanner covers both sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDefinition(row scanner) (*domain.Definition, error) {
	var def domain.Definition
	var kind, pattern, condition, priority, tagsJSON string
	var active int
	var createdAt int64
	var triggerAt, lastTriggered sql.NullInt64

	err := row.Scan(&def.ID, &def.Title, &def.Description, &kind, &triggerAt, &pattern, &condition, &priority, &active, &createdAt, &lastTriggered, &tagsJSON)
	if err != nil {
		return nil, err
	}

	def.Trigger = domain.Trigger{
		Kind:      domain.TriggerKind(kind),
		Pattern:   domain.RecurrencePattern(pattern),
		Condition: condition,
	}
	if triggerAt.Valid {
		def.Trigger.At = time.Unix(triggerAt.Int64, 0)
	}
	def.Priority = domain.Priority(priority)
	def.Active = active == 1
	def.CreatedAt = time.Unix(createdAt, 0)
	if lastTriggered.Valid {
		t := time.Unix(lastTriggered.Int64, 0)
		def.LastTriggered = &t
	}
	if tagsJSON != "" {
		_ = json.Unmarshal([]byte(tagsJSON), &def.Tags)
	}

	return &def, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
