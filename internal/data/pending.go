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

// pendingStore implements the Pending repository
type pendingStore struct {
	db *sql.DB
}

// newPendingStore prepares the pending_alerts table
func newPendingStore(db *sql.DB) (repo.PendingRepo, error) {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS pending_alerts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			alert_key TEXT NOT NULL UNIQUE,
			category TEXT NOT NULL,
			title TEXT NOT NULL,
			message TEXT NOT NULL,
			priority TEXT NOT NULL DEFAULT 'medium',
			created_at INTEGER NOT NULL,
			last_sent_at INTEGER,
			send_count INTEGER NOT NULL DEFAULT 0,
			acknowledged INTEGER NOT NULL DEFAULT 0,
			acknowledged_at INTEGER,
			external_message_id TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}'
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create pending_alerts table: %w", err)
	}

	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_pending_acknowledged ON pending_alerts(acknowledged)`)
	_, _ = db.Exec(`CREATE INDEX IF NOT EXISTS idx_pending_message_id ON pending_alerts(external_message_id)`)

	return &pendingStore{db: db}, nil
}

// ========== Enqueue ==========

// Add inserts a record unless its alert key already exists
func (s *pendingStore) Add(ctx context.Context, alert *domain.PendingAlert) (bool, error) {
	metadata := alert.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	metadataJSON, _ := json.Marshal(metadata)

	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO pending_alerts
			(alert_key, category, title, message, priority, created_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		alert.AlertKey,
		alert.Category,
		alert.Title,
		alert.Message,
		string(alert.Priority),
		alert.CreatedAt.Unix(),
		string(metadataJSON),
	)
	if err != nil {
		return false, fmt.Errorf("failed to add pending alert: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check insert: %w", err)
	}
	return inserted > 0, nil
}

// ========== Queries ==========

// GetByKey gets a record by alert key
func (s *pendingStore) GetByKey(ctx context.Context, alertKey string) (*domain.PendingAlert, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, alert_key, category, title, message, priority, created_at, last_sent_at, send_count, acknowledged, acknowledged_at, external_message_id, metadata
		FROM pending_alerts
		WHERE alert_key = ?
	`, alertKey)

	alert, err := scanPendingAlert(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query pending alert: %w", err)
	}
	return alert, nil
}

// SelectDue lists unacknowledged records eligible for delivery at now.
// Most urgent first, oldest first within a priority.
func (s *pendingStore) SelectDue(ctx context.Context, now time.Time, policy domain.DeliveryPolicy) ([]*domain.PendingAlert, error) {
	return s.list(ctx, `
		SELECT id, alert_key, category, title, message, priority, created_at, last_sent_at, send_count, acknowledged, acknowledged_at, external_message_id, metadata
		FROM pending_alerts
		WHERE acknowledged = 0
		  AND send_count < ?
		  AND (last_sent_at IS NULL OR ? - last_sent_at >= ?)
		ORDER BY
			CASE priority
				WHEN 'urgent' THEN 1
				WHEN 'high' THEN 2
				WHEN 'medium' THEN 3
				ELSE 4
			END,
			created_at ASC
	`, policy.MaxResends, now.Unix(), int64(policy.ResendInterval.Seconds()))
}

// ListUnacknowledged lists all unacknowledged records
func (s *pendingStore) ListUnacknowledged(ctx context.Context) ([]*domain.PendingAlert, error) {
	return s.list(ctx, `
		SELECT id, alert_key, category, title, message, priority, created_at, last_sent_at, send_count, acknowledged, acknowledged_at, external_message_id, metadata
		FROM pending_alerts
		WHERE acknowledged = 0
		ORDER BY created_at ASC
	`)
}

func (s *pendingStore) list(ctx context.Context, query string, args ...interface{}) ([]*domain.PendingAlert, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*domain.PendingAlert
	for rows.Next() {
		alert, err := scanPendingAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pending alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

// ========== Mutations ==========

// MarkSent records a delivery attempt, bumping the send count
func (s *pendingStore) MarkSent(ctx context.Context, alertKey string, externalMessageID string, at time.Time) error {
	var err error
	if externalMessageID != "" {
		_, err = s.db.ExecContext(ctx, `
			UPDATE pending_alerts
			SET last_sent_at = ?, send_count = send_count + 1, external_message_id = ?
			WHERE alert_key = ?
		`, at.Unix(), externalMessageID, alertKey)
	} else {
		_, err = s.db.ExecContext(ctx, `
			UPDATE pending_alerts
			SET last_sent_at = ?, send_count = send_count + 1
			WHERE alert_key = ?
		`, at.Unix(), alertKey)
	}
	if err != nil {
		return fmt.Errorf("failed to mark sent: %w", err)
	}
	return nil
}

// Acknowledge marks a record acknowledged by alert key
func (s *pendingStore) Acknowledge(ctx context.Context, alertKey string, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE pending_alerts
		SET acknowledged = 1, acknowledged_at = ?
		WHERE alert_key = ? AND acknowledged = 0
	`, at.Unix(), alertKey)
	if err != nil {
		return false, fmt.Errorf("failed to acknowledge: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check acknowledge: %w", err)
	}
	return affected > 0, nil
}

// AcknowledgeByMessageID marks a record acknowledged by the external message
// ID of its last delivery, returning the alert key or ""
func (s *pendingStore) AcknowledgeByMessageID(ctx context.Context, messageID string, at time.Time) (string, error) {
	if messageID == "" {
		return "", nil
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT alert_key FROM pending_alerts
		WHERE external_message_id = ? AND acknowledged = 0
	`, messageID)

	var alertKey string
	err := row.Scan(&alertKey)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve message id: %w", err)
	}

	if _, err := s.Acknowledge(ctx, alertKey, at); err != nil {
		return "", err
	}
	return alertKey, nil
}

// Cleanup removes acknowledged records older than the cutoff and exhausted
// unacknowledged ones, returning how many were never acknowledged
func (s *pendingStore) Cleanup(ctx context.Context, olderThan time.Time, maxResends int) (int64, error) {
	cutoff := olderThan.Unix()

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM pending_alerts
		WHERE acknowledged = 0 AND send_count >= ? AND created_at < ?
	`, maxResends, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup ignored alerts: %w", err)
	}
	ignored, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check cleanup: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		DELETE FROM pending_alerts
		WHERE acknowledged = 1 AND created_at < ?
	`, cutoff)
	if err != nil {
		return ignored, fmt.Errorf("failed to cleanup acknowledged alerts: %w", err)
	}

	return ignored, nil
}

// Stats returns queue counters
func (s *pendingStore) Stats(ctx context.Context) (*domain.PendingStats, error) {
	stats := &domain.PendingStats{ByCategory: map[string]int{}}

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN acknowledged = 0 THEN 1 ELSE 0 END), 0)
		FROM pending_alerts
	`)
	if err := row.Scan(&stats.Total, &stats.Unacknowledged); err != nil {
		return nil, fmt.Errorf("failed to count pending alerts: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT category, COUNT(*) FROM pending_alerts
		WHERE acknowledged = 0
		GROUP BY category
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count categories: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		stats.ByCategory[category] = count
	}
	return stats, rows.Err()
}

func scanPendingAlert(row scanner) (*domain.PendingAlert, error) {
	var alert domain.PendingAlert
	var priority, metadataJSON string
	var createdAt int64
	var lastSentAt, acknowledgedAt sql.NullInt64
	var acknowledged int

	err := row.Scan(&alert.ID, &alert.AlertKey, &alert.Category, &alert.Title, &alert.Message, &priority, &createdAt, &lastSentAt, &alert.SendCount, &acknowledged, &acknowledgedAt, &alert.ExternalMessageID, &metadataJSON)
	if err != nil {
		return nil, err
	}

	alert.Priority = domain.Priority(priority)
	alert.CreatedAt = time.Unix(createdAt, 0)
	if lastSentAt.Valid {
		t := time.Unix(lastSentAt.Int64, 0)
		alert.LastSentAt = &t
	}
	alert.Acknowledged = acknowledged == 1
	if acknowledgedAt.Valid {
		t := time.Unix(acknowledgedAt.Int64, 0)
		alert.AcknowledgedAt = &t
	}
	if metadataJSON != "" {
		_ = json.Unmarshal([]byte(metadataJSON), &alert.Metadata)
	}

	return &alert, nil
}
