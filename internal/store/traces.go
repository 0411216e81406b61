package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/iammorganparry/clive/apps/understanding/internal/models"
)

// TraceStore archives telemetry traces beyond the in-memory window.
type TraceStore struct {
	db *DB
}

func NewTraceStore(db *DB) *TraceStore {
	return &TraceStore{db: db}
}

// SaveTrace inserts or replaces a trace.
func (s *TraceStore) SaveTrace(ctx context.Context, t models.Trace) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO traces (id, ts, body, intent_label) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET body = excluded.body, intent_label = excluded.intent_label
	`, t.ID, t.Timestamp, string(body), t.IntentLabel)
	if err != nil {
		return fmt.Errorf("save trace: %w", err)
	}
	return nil
}

// GetTrace returns an archived trace, or nil if absent.
func (s *TraceStore) GetTrace(ctx context.Context, id string) (*models.Trace, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM traces WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get trace: %w", err)
	}
	var t models.Trace
	if err := json.Unmarshal([]byte(body), &t); err != nil {
		return nil, fmt.Errorf("decode trace: %w", err)
	}
	return &t, nil
}

// ListTraces returns archived traces newest first, optionally filtered by label.
func (s *TraceStore) ListTraces(ctx context.Context, label string, limit int) ([]models.Trace, error) {
	query := `SELECT body FROM traces`
	var args []any
	if label != "" {
		query += ` WHERE intent_label = ?`
		args = append(args, label)
	}
	query += ` ORDER BY ts DESC, rowid DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list traces: %w", err)
	}
	defer rows.Close()

	var out []models.Trace
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan trace: %w", err)
		}
		var t models.Trace
		if err := json.Unmarshal([]byte(body), &t); err != nil {
			return nil, fmt.Errorf("decode trace: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// TraceCount returns the number of archived traces.
func (s *TraceStore) TraceCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM traces`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count traces: %w", err)
	}
	return n, nil
}
