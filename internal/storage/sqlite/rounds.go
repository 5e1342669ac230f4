package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sandevgo/agora/internal/core"
	"github.com/sandevgo/agora/pkg/log"
)

const timeLayout = time.RFC3339Nano

// RoundsRepo is the append-only round log. A round is written in a single
// transaction, so it is either fully present or absent.
type RoundsRepo struct {
	db *sql.DB
}

func NewRoundsRepo(db *sql.DB) *RoundsRepo {
	return &RoundsRepo{db: db}
}

func (r *RoundsRepo) AppendRound(ctx context.Context, rec core.RoundRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM rounds WHERE round_num = ?`, rec.RoundNum).Scan(&exists)
	switch {
	case err == nil:
		return fmt.Errorf("round %d: %w", rec.RoundNum, core.ErrRoundCommitted)
	case !errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("failed to check round: %w", err)
	}

	committedAt := rec.CommittedAt
	if committedAt.IsZero() {
		committedAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO rounds (round_num, committed_at) VALUES (?, ?)`,
		rec.RoundNum, formatTime(committedAt),
	); err != nil {
		return fmt.Errorf("failed to insert round: %w", err)
	}

	for _, ev := range rec.Events {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO point_events (round_num, kind, point_id, parent_id, content, point_round, agree_delta, disagree_delta, at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.RoundNum, string(ev.Kind), ev.PointID, ev.ParentID, ev.Content, ev.RoundNum, ev.AgreeDelta, ev.DisagreeDelta, formatTime(ev.At),
		); err != nil {
			return fmt.Errorf("failed to insert point event: %w", err)
		}
	}

	for _, m := range rec.Messages {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (seq, round_num, point_id, model, content, stance, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.Seq, rec.RoundNum, m.PointID, m.Model, m.Content, string(m.Stance), formatTime(m.Timestamp),
		); err != nil {
			return fmt.Errorf("failed to insert message %d: %w", m.Seq, err)
		}
	}

	for _, f := range rec.Failures {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO thinker_failures (round_num, point_id, model, kind, error) VALUES (?, ?, ?, ?, ?)`,
			rec.RoundNum, f.PointID, f.Model, string(f.Kind), f.Error,
		); err != nil {
			return fmt.Errorf("failed to insert thinker failure: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit round %d: %w", rec.RoundNum, err)
	}

	log.FromCtx(ctx).Debug().
		Int("round", rec.RoundNum).
		Int("events", len(rec.Events)).
		Int("messages", len(rec.Messages)).
		Msg("round appended")
	return nil
}

// LoadRounds returns every committed round in order.
func (r *RoundsRepo) LoadRounds(ctx context.Context) ([]core.RoundRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	recs, index, err := loadRoundHeaders(ctx, tx)
	if err != nil {
		return nil, err
	}
	if err := loadEvents(ctx, tx, recs, index); err != nil {
		return nil, err
	}
	if err := loadMessages(ctx, tx, recs, index); err != nil {
		return nil, err
	}
	if err := loadFailures(ctx, tx, recs, index); err != nil {
		return nil, err
	}

	return recs, nil
}

func (r *RoundsRepo) LatestRound(ctx context.Context) (int, error) {
	var latest int
	if err := r.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(round_num), 0) FROM rounds`).Scan(&latest); err != nil {
		return 0, fmt.Errorf("failed to query latest round: %w", err)
	}
	return latest, nil
}

func loadRoundHeaders(ctx context.Context, tx *sql.Tx) ([]core.RoundRecord, map[int]int, error) {
	rows, err := tx.QueryContext(ctx, `SELECT round_num, committed_at FROM rounds ORDER BY round_num`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query rounds: %w", err)
	}
	defer rows.Close()

	var recs []core.RoundRecord
	index := make(map[int]int)
	for rows.Next() {
		var (
			rec core.RoundRecord
			at  string
		)
		if err := rows.Scan(&rec.RoundNum, &at); err != nil {
			return nil, nil, fmt.Errorf("failed to scan round: %w", err)
		}
		if rec.CommittedAt, err = parseTime(at); err != nil {
			return nil, nil, err
		}
		index[rec.RoundNum] = len(recs)
		recs = append(recs, rec)
	}
	return recs, index, rows.Err()
}

func loadEvents(ctx context.Context, tx *sql.Tx, recs []core.RoundRecord, index map[int]int) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT round_num, kind, point_id, parent_id, content, point_round, agree_delta, disagree_delta, at
		 FROM point_events ORDER BY round_num, id`)
	if err != nil {
		return fmt.Errorf("failed to query point events: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			round int
			kind  string
			at    string
			ev    core.PointEvent
		)
		if err := rows.Scan(&round, &kind, &ev.PointID, &ev.ParentID, &ev.Content, &ev.RoundNum, &ev.AgreeDelta, &ev.DisagreeDelta, &at); err != nil {
			return fmt.Errorf("failed to scan point event: %w", err)
		}
		ev.Kind = core.PointEventKind(kind)
		if ev.At, err = parseTime(at); err != nil {
			return err
		}
		i := index[round]
		recs[i].Events = append(recs[i].Events, ev)
	}
	return rows.Err()
}

func loadMessages(ctx context.Context, tx *sql.Tx, recs []core.RoundRecord, index map[int]int) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT seq, round_num, point_id, model, content, stance, timestamp FROM messages ORDER BY round_num, seq`)
	if err != nil {
		return fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			m      core.Message
			stance string
			ts     string
		)
		if err := rows.Scan(&m.Seq, &m.RoundNum, &m.PointID, &m.Model, &m.Content, &stance, &ts); err != nil {
			return fmt.Errorf("failed to scan message: %w", err)
		}
		m.Stance = core.Stance(stance)
		if m.Timestamp, err = parseTime(ts); err != nil {
			return err
		}
		i := index[m.RoundNum]
		recs[i].Messages = append(recs[i].Messages, m)
	}
	return rows.Err()
}

func loadFailures(ctx context.Context, tx *sql.Tx, recs []core.RoundRecord, index map[int]int) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT round_num, point_id, model, kind, error FROM thinker_failures ORDER BY round_num, id`)
	if err != nil {
		return fmt.Errorf("failed to query thinker failures: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			f    core.ThinkerFailure
			kind string
		)
		if err := rows.Scan(&f.RoundNum, &f.PointID, &f.Model, &kind, &f.Error); err != nil {
			return fmt.Errorf("failed to scan thinker failure: %w", err)
		}
		f.Kind = core.FailureKind(kind)
		i := index[f.RoundNum]
		recs[i].Failures = append(recs[i].Failures, f)
	}
	return rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse time %q: %w", s, err)
	}
	return t, nil
}
