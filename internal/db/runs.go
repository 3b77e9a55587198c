package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is one basecalling batch.
type Run struct {
	ID          string
	Model       string
	StartedAt   time.Time
	FinishedAt  time.Time // zero while the run is in progress
	ReadsOK     int
	ReadsFailed int
}

// Basecall is the stored outcome of one read. Err is empty on success.
type Basecall struct {
	RunID    string
	ReadID   string
	Score    float32
	Start    int
	End      int
	Sequence string
	Elapsed  time.Duration
	Empty    bool
	Err      string
}

// StartRun records a new run and returns its id. An empty id is replaced
// with a fresh uuid.
func (db *DB) StartRun(ctx context.Context, id, model string, startedAt time.Time) (string, error) {
	if id == "" {
		id = uuid.NewString()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO runs (run_id, model, started_at) VALUES (?, ?, ?)`,
		id, model, startedAt.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

// RecordBasecall stores one read's outcome.
func (db *DB) RecordBasecall(ctx context.Context, b Basecall) error {
	var errText sql.NullString
	if b.Err != "" {
		errText = sql.NullString{String: b.Err, Valid: true}
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO basecalls (run_id, read_id, score, start_sample, end_sample, sequence, elapsed_ms, empty, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.RunID, b.ReadID, b.Score, b.Start, b.End, b.Sequence,
		b.Elapsed.Milliseconds(), b.Empty, errText,
	)
	if err != nil {
		return fmt.Errorf("failed to record basecall for %s: %w", b.ReadID, err)
	}
	return nil
}

// FinishRun stamps the run's end time and read counts.
func (db *DB) FinishRun(ctx context.Context, id string, finishedAt time.Time, ok, failed int) error {
	res, err := db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, reads_ok = ?, reads_failed = ? WHERE run_id = ?`,
		finishedAt.UnixNano(), ok, failed, id,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}

// GetRun loads a run by id.
func (db *DB) GetRun(ctx context.Context, id string) (Run, error) {
	var (
		r        Run
		started  int64
		finished sql.NullInt64
	)
	err := db.QueryRowContext(ctx,
		`SELECT run_id, model, started_at, finished_at, reads_ok, reads_failed
		FROM runs WHERE run_id = ?`, id,
	).Scan(&r.ID, &r.Model, &started, &finished, &r.ReadsOK, &r.ReadsFailed)
	if err != nil {
		return Run{}, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	r.StartedAt = time.Unix(0, started).UTC()
	if finished.Valid {
		r.FinishedAt = time.Unix(0, finished.Int64).UTC()
	}
	return r, nil
}

// Basecalls returns a run's results in the order they were recorded.
func (db *DB) Basecalls(ctx context.Context, runID string) ([]Basecall, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT run_id, read_id, score, start_sample, end_sample, sequence, elapsed_ms, empty, error
		FROM basecalls WHERE run_id = ? ORDER BY basecall_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query basecalls: %w", err)
	}
	defer rows.Close()

	var out []Basecall
	for rows.Next() {
		var (
			b         Basecall
			elapsedMs int64
			seq       sql.NullString
			errText   sql.NullString
		)
		if err := rows.Scan(&b.RunID, &b.ReadID, &b.Score, &b.Start, &b.End, &seq, &elapsedMs, &b.Empty, &errText); err != nil {
			return nil, fmt.Errorf("failed to scan basecall: %w", err)
		}
		b.Sequence = seq.String
		b.Err = errText.String
		b.Elapsed = time.Duration(elapsedMs) * time.Millisecond
		out = append(out, b)
	}
	return out, rows.Err()
}
