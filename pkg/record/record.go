// Package record keeps a sqlite history of mission runs: one row per
// change of mission-level state.
package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gwillem/linecart/pkg/mission"
)

const schema = `
CREATE TABLE IF NOT EXISTS transitions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    at TEXT NOT NULL,
    mission TEXT NOT NULL,
    suspended INTEGER NOT NULL,
    navigation TEXT NOT NULL,
    turn TEXT NOT NULL,
    junction TEXT NOT NULL,
    zone INTEGER NOT NULL,
    color_counter INTEGER NOT NULL,
    blocks INTEGER NOT NULL,
    color TEXT NOT NULL,
    fault TEXT NOT NULL,
    distance_cm REAL
);
CREATE INDEX IF NOT EXISTS transitions_run ON transitions (run_id, id);`

// timeFormat is fixed width so that timestamps sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// ErrNoRuns is returned when the history is empty.
var ErrNoRuns = errors.New("no recorded runs")

// Recorder writes telemetry rows. It implements cart.Sink.
type Recorder struct {
	db *sql.DB

	mu   sync.Mutex
	last map[string]mission.Telemetry
}

// Open opens or creates the history database at path.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// one writer; sqlite serializes anyway
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Recorder{db: db, last: map[string]mission.Telemetry{}}, nil
}

// Close closes the database.
func (r *Recorder) Close() error { return r.db.Close() }

// Publish records t if its mission-level state differs from the last
// snapshot of the same run that was written.
func (r *Recorder) Publish(ctx context.Context, t mission.Telemetry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, seen := r.last[t.RunID]
	if seen && !t.Changed(prev) {
		return nil
	}

	var dist sql.NullFloat64
	if t.HasDistance {
		dist = sql.NullFloat64{Float64: t.Distance, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO transitions
		(run_id, at, mission, suspended, navigation, turn, junction, zone, color_counter, blocks, color, fault, distance_cm)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.RunID, t.Time.UTC().Format(timeFormat), t.Mission.String(), t.Suspended,
		t.Navigation.String(), t.Turn.String(), t.Junction.String(),
		t.Zone, t.ColorCounter, t.Blocks, t.Color.String(), t.Fault.String(), dist)
	if err != nil {
		return fmt.Errorf("record transition: %w", err)
	}
	r.last[t.RunID] = t
	return nil
}

// Row is one recorded transition.
type Row struct {
	ID           int64
	RunID        string
	Time         time.Time
	Mission      string
	Suspended    bool
	Navigation   string
	Turn         string
	Junction     string
	Zone         int
	ColorCounter int
	Blocks       int
	Color        string
	Fault        string
	Distance     sql.NullFloat64
}

// Run summarizes one recorded run.
type Run struct {
	ID        string
	Started   time.Time
	Ended     time.Time
	Rows      int
	Final     string
	Delivered int
}

// Runs lists recorded runs, newest first.
func (r *Recorder) Runs(ctx context.Context) ([]Run, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.run_id, MIN(t.at), MAX(t.at), COUNT(*), MAX(t.blocks),
		       (SELECT l.mission FROM transitions l WHERE l.run_id = t.run_id ORDER BY l.id DESC LIMIT 1)
		FROM transitions t
		GROUP BY t.run_id
		ORDER BY MAX(t.id) DESC`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started, ended string
		if err := rows.Scan(&run.ID, &started, &ended, &run.Rows, &run.Delivered, &run.Final); err != nil {
			return nil, err
		}
		if run.Started, err = time.Parse(timeFormat, started); err != nil {
			return nil, err
		}
		if run.Ended, err = time.Parse(timeFormat, ended); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LatestRun returns the id of the most recently recorded run.
func (r *Recorder) LatestRun(ctx context.Context) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `SELECT run_id FROM transitions ORDER BY id DESC LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoRuns
	}
	return id, err
}

// Transitions returns the rows of one run in order.
func (r *Recorder) Transitions(ctx context.Context, runID string) ([]Row, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_id, at, mission, suspended, navigation, turn, junction,
		       zone, color_counter, blocks, color, fault, distance_cm
		FROM transitions WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var row Row
		var at string
		if err := rows.Scan(&row.ID, &row.RunID, &at, &row.Mission, &row.Suspended,
			&row.Navigation, &row.Turn, &row.Junction, &row.Zone, &row.ColorCounter,
			&row.Blocks, &row.Color, &row.Fault, &row.Distance); err != nil {
			return nil, err
		}
		if row.Time, err = time.Parse(timeFormat, at); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
