package repository

import (
	"context"
	"database/sql"
	"time"
)

// RunRepo records bot sessions and their fills.
type RunRepo struct{ db DBTX }

func NewRunRepo(db DBTX) *RunRepo { return &RunRepo{db: db} }

func (r *RunRepo) Start(ctx context.Context, run BotRun) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO bot_runs(id, config_id, status, started_at) VALUES (?, ?, ?, ?)
	`, run.ID, run.ConfigID, run.Status, run.StartedAt)
	return err
}

func (r *RunRepo) Finish(ctx context.Context, id, status string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE bot_runs SET status = ?, stopped_at = ? WHERE id = ?`, status, at, id)
	return err
}

// Latest returns the most recently started run, or nil, nil when there is none.
func (r *RunRepo) Latest(ctx context.Context) (*BotRun, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT id, config_id, status, started_at, stopped_at FROM bot_runs
	ORDER BY started_at DESC, rowid DESC LIMIT 1`)
	var run BotRun
	if err := row.Scan(&run.ID, &run.ConfigID, &run.Status, &run.StartedAt, &run.StoppedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &run, nil
}

// MarkInterrupted closes runs left open by a crash.
func (r *RunRepo) MarkInterrupted(ctx context.Context, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE bot_runs SET status = ?, stopped_at = ? WHERE status = ?`, RunFailed, at, RunRunning)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *RunRepo) AddFill(ctx context.Context, f BotFill) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO bot_fills(id, run_id, side, level, price, volume, filled_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.RunID, f.Side, f.Level, f.Price.String(), f.Volume.String(), f.FilledAt)
	return err
}

func (r *RunRepo) Fills(ctx context.Context, runID string) ([]BotFill, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, run_id, side, level, price, volume, filled_at FROM bot_fills
	WHERE run_id = ? ORDER BY filled_at, rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []BotFill
	for rows.Next() {
		var f BotFill
		if err := rows.Scan(&f.ID, &f.RunID, &f.Side, &f.Level, &f.Price, &f.Volume, &f.FilledAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
