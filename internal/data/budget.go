package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vigilhq/vigil/internal/biz/domain"
	"github.com/vigilhq/vigil/internal/biz/repo"
)

// budgetStore implements the Budget repository
type budgetStore struct {
	db *sql.DB
}

// newBudgetStore prepares the budget_days and skipped_alerts tables
func newBudgetStore(db *sql.DB) (repo.BudgetRepo, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS budget_days (
			date TEXT PRIMARY KEY,
			messages_sent INTEGER NOT NULL DEFAULT 0,
			user_responses INTEGER NOT NULL DEFAULT 0,
			ignored INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create budget_days table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS skipped_alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL,
			title TEXT NOT NULL,
			priority TEXT NOT NULL,
			preview TEXT NOT NULL,
			reason TEXT NOT NULL,
			skipped_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create skipped_alerts table: %w", err)
	}

	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_skipped_date ON skipped_alerts(date)`)

	return &budgetStore{db: db}, nil
}

// GetDay gets the state for a local day
func (s *budgetStore) GetDay(ctx context.Context, date string) (*domain.BudgetState, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT date, messages_sent, user_responses, ignored
		FROM budget_days
		WHERE date = ?
	`, date)

	var state domain.BudgetState
	err := row.Scan(&state.Date, &state.MessagesSent, &state.UserResponses, &state.Ignored)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query budget day: %w", err)
	}

	skipped, err := s.loadSkipped(ctx, date)
	if err != nil {
		return nil, err
	}
	state.Skipped = skipped

	return &state, nil
}

// SaveDay creates or replaces the counters for a day
func (s *budgetStore) SaveDay(ctx context.Context, state *domain.BudgetState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO budget_days (date, messages_sent, user_responses, ignored)
		VALUES (?, ?, ?, ?)
	`, state.Date, state.MessagesSent, state.UserResponses, state.Ignored)
	if err != nil {
		return fmt.Errorf("failed to save budget day: %w", err)
	}
	return nil
}

// IncrementSent bumps the sent counter for a day
func (s *budgetStore) IncrementSent(ctx context.Context, date string) error {
	return s.increment(ctx, date, "messages_sent", 1)
}

// IncrementResponses bumps the user response counter for a day
func (s *budgetStore) IncrementResponses(ctx context.Context, date string) error {
	return s.increment(ctx, date, "user_responses", 1)
}

// AddIgnored adds to the ignored counter for a day
func (s *budgetStore) AddIgnored(ctx context.Context, date string, n int) error {
	if n <= 0 {
		return nil
	}
	return s.increment(ctx, date, "ignored", n)
}

func (s *budgetStore) increment(ctx context.Context, date string, column string, n int) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO budget_days (date) VALUES (?)`, date)
	if err != nil {
		return fmt.Errorf("failed to ensure budget day: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE budget_days SET `+column+` = `+column+` + ? WHERE date = ?`, n, date)
	if err != nil {
		return fmt.Errorf("failed to increment %s: %w", column, err)
	}
	return nil
}

// AddSkipped appends to the skipped log for a day, keeping at most maxLog entries
func (s *budgetStore) AddSkipped(ctx context.Context, date string, skipped domain.SkippedAlert, maxLog int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO skipped_alerts (date, title, priority, preview, reason, skipped_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, date, skipped.Title, string(skipped.Priority), skipped.Preview, skipped.Reason, skipped.SkippedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to add skipped alert: %w", err)
	}

	if maxLog > 0 {
		// Keep only the newest entries for the day
		_, err = s.db.ExecContext(ctx, `
			DELETE FROM skipped_alerts
			WHERE date = ? AND id NOT IN (
				SELECT id FROM skipped_alerts WHERE date = ? ORDER BY id DESC LIMIT ?
			)
		`, date, date, maxLog)
		if err != nil {
			return fmt.Errorf("failed to trim skipped log: %w", err)
		}
	}
	return nil
}

// ResetDay zeroes the counters and skipped log for a day
func (s *budgetStore) ResetDay(ctx context.Context, date string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO budget_days (date, messages_sent, user_responses, ignored)
		VALUES (?, 0, 0, 0)
	`, date)
	if err != nil {
		return fmt.Errorf("failed to reset budget day: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM skipped_alerts WHERE date = ?`, date)
	if err != nil {
		return fmt.Errorf("failed to reset skipped log: %w", err)
	}
	return nil
}

// History lists recent days, newest first
func (s *budgetStore) History(ctx context.Context, limit int) ([]*domain.BudgetState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, messages_sent, user_responses, ignored
		FROM budget_days
		ORDER BY date DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list budget history: %w", err)
	}
	defer rows.Close()

	var days []*domain.BudgetState
	for rows.Next() {
		var state domain.BudgetState
		if err := rows.Scan(&state.Date, &state.MessagesSent, &state.UserResponses, &state.Ignored); err != nil {
			return nil, fmt.Errorf("failed to scan budget day: %w", err)
		}
		days = append(days, &state)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, day := range days {
		skipped, err := s.loadSkipped(ctx, day.Date)
		if err != nil {
			return nil, err
		}
		day.Skipped = skipped
	}
	return days, nil
}

func (s *budgetStore) loadSkipped(ctx context.Context, date string) ([]domain.SkippedAlert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT title, priority, preview, reason, skipped_at
		FROM skipped_alerts
		WHERE date = ?
		ORDER BY id ASC
	`, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list skipped alerts: %w", err)
	}
	defer rows.Close()

	var skipped []domain.SkippedAlert
	for rows.Next() {
		var entry domain.SkippedAlert
		var priority string
		var skippedAt int64
		if err := rows.Scan(&entry.Title, &priority, &entry.Preview, &entry.Reason, &skippedAt); err != nil {
			return nil, fmt.Errorf("failed to scan skipped alert: %w", err)
		}
		entry.Priority = domain.Priority(priority)
		entry.SkippedAt = time.Unix(skippedAt, 0)
		skipped = append(skipped, entry)
	}
	return skipped, rows.Err()
}
