package store

import (
	"context"
	"fmt"

	"github.com/iammorganparry/clive/apps/understanding/internal/models"
	"github.com/iammorganparry/clive/apps/understanding/internal/search"
)

// MemoryRowStore snapshots in-memory rows so a restarted process can warm up.
type MemoryRowStore struct {
	db *DB
}

func NewMemoryRowStore(db *DB) *MemoryRowStore {
	return &MemoryRowStore{db: db}
}

// SaveRows upserts rows in a single transaction.
func (s *MemoryRowStore) SaveRows(ctx context.Context, rows []models.MemoryRow) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save rows: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO memory_rows (owner, id, kind, text, ts, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner, id) DO UPDATE SET
			kind = excluded.kind,
			text = excluded.text,
			ts = excluded.ts,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("prepare save rows: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Owner, r.ID, string(r.Kind), r.Text, r.Timestamp, search.Float32ToBytes(r.Embedding)); err != nil {
			return fmt.Errorf("save row %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save rows: %w", err)
	}
	return nil
}

// DeleteRow removes the owner's row snapshot; absent ids are not an error.
func (s *MemoryRowStore) DeleteRow(ctx context.Context, owner, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM memory_rows WHERE owner = ? AND id = ?`, owner, id); err != nil {
		return fmt.Errorf("delete row: %w", err)
	}
	return nil
}

// Prune keeps only the newest keep rows by timestamp.
func (s *MemoryRowStore) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM memory_rows WHERE rowid NOT IN (
			SELECT rowid FROM memory_rows ORDER BY ts DESC, owner ASC, id ASC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune rows: %w", err)
	}
	return res.RowsAffected()
}

// LoadNewest returns up to limit rows of every owner, newest first.
func (s *MemoryRowStore) LoadNewest(ctx context.Context, limit int) ([]models.MemoryRow, error) {
	return s.queryRows(ctx, `
		SELECT owner, id, kind, text, ts, embedding FROM memory_rows
		ORDER BY ts DESC, owner ASC, id ASC LIMIT ?
	`, limit)
}

// LoadNewestFor returns up to limit of the owner's rows and shared rows,
// newest first.
func (s *MemoryRowStore) LoadNewestFor(ctx context.Context, owner string, limit int) ([]models.MemoryRow, error) {
	return s.queryRows(ctx, `
		SELECT owner, id, kind, text, ts, embedding FROM memory_rows
		WHERE owner IN ('', ?)
		ORDER BY ts DESC, owner ASC, id ASC LIMIT ?
	`, owner, limit)
}

func (s *MemoryRowStore) queryRows(ctx context.Context, query string, args ...any) ([]models.MemoryRow, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load rows: %w", err)
	}
	defer rows.Close()

	var out []models.MemoryRow
	for rows.Next() {
		var (
			r    models.MemoryRow
			kind string
			emb  []byte
		)
		if err := rows.Scan(&r.Owner, &r.ID, &kind, &r.Text, &r.Timestamp, &emb); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Kind = models.MemoryKind(kind)
		r.Embedding = search.BytesToFloat32(emb)
		out = append(out, r)
	}
	return out, rows.Err()
}
