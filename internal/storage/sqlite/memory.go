package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sandevgo/agora/internal/core"
)

// MemoryRepo keeps every version of a point's memory record. Put appends a
// new version, Get returns the latest.
type MemoryRepo struct {
	db *sql.DB
}

func NewMemoryRepo(db *sql.DB) *MemoryRepo {
	return &MemoryRepo{db: db}
}

func (r *MemoryRepo) Get(ctx context.Context, pointID string) (core.MemoryRecord, error) {
	var (
		rec       core.MemoryRecord
		windowRaw string
		updatedAt string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT point_id, version, summary, window_seqs, updated_round, updated_at
		 FROM memory_records WHERE point_id = ? ORDER BY version DESC LIMIT 1`,
		pointID,
	).Scan(&rec.PointID, &rec.Version, &rec.Summary, &windowRaw, &rec.UpdatedRound, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.MemoryRecord{}, core.NotFound("get memory record", "point %s", pointID)
	}
	if err != nil {
		return core.MemoryRecord{}, fmt.Errorf("failed to query memory record: %w", err)
	}

	if err := json.Unmarshal([]byte(windowRaw), &rec.WindowSeqs); err != nil {
		return core.MemoryRecord{}, fmt.Errorf("failed to unmarshal window seqs: %w", err)
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return core.MemoryRecord{}, err
	}
	return rec, nil
}

// Put stores rec as the next version for pointID. A version lower than or
// equal to the stored one is bumped past it.
func (r *MemoryRepo) Put(ctx context.Context, pointID string, rec core.MemoryRecord) error {
	windowJSON, err := json.Marshal(rec.WindowSeqs)
	if err != nil {
		return fmt.Errorf("failed to marshal window seqs: %w", err)
	}
	if rec.WindowSeqs == nil {
		windowJSON = []byte("[]")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var latest int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM memory_records WHERE point_id = ?`, pointID,
	).Scan(&latest); err != nil {
		return fmt.Errorf("failed to query memory version: %w", err)
	}

	version := rec.Version
	if version <= latest {
		version = latest + 1
	}
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO memory_records (point_id, version, summary, window_seqs, updated_round, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		pointID, version, rec.Summary, string(windowJSON), rec.UpdatedRound, formatTime(updatedAt),
	); err != nil {
		return fmt.Errorf("failed to insert memory record: %w", err)
	}

	return tx.Commit()
}
