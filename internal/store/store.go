// Package store keeps extraction runs and their events in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"calscan/internal/model"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("store: run not found")

const (
	// migrations
	createRunsTableSQL = `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source_id TEXT NOT NULL DEFAULT '',
		filename TEXT NOT NULL DEFAULT '',
		mode TEXT NOT NULL,
		academic_year_start INTEGER NOT NULL,
		timezone TEXT NOT NULL,
		raw_text TEXT NOT NULL DEFAULT '',
		created_at REAL NOT NULL
	)`

	createEventsTableSQL = `
	CREATE TABLE IF NOT EXISTS events (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		title TEXT NOT NULL,
		date TEXT NOT NULL,
		start_time TEXT,
		end_time TEXT,
		description TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		confidence REAL NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`

	createRunsSourceIndexSQL = `CREATE INDEX IF NOT EXISTS runs_source ON runs (source_id, created_at)`

	// run queries
	insertRunSQL = `
	INSERT INTO runs (id, source_id, filename, mode, academic_year_start, timezone, raw_text, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	runColumns         = `r.id, r.source_id, r.filename, r.mode, r.academic_year_start, r.timezone, r.raw_text, r.created_at`
	getRunSQL          = `SELECT ` + runColumns + `, (SELECT COUNT(*) FROM events e WHERE e.run_id = r.id) FROM runs r WHERE r.id = ?`
	listRunsSQL        = `SELECT ` + runColumns + `, (SELECT COUNT(*) FROM events e WHERE e.run_id = r.id) FROM runs r ORDER BY r.created_at DESC, r.rowid DESC LIMIT ?`
	latestRunSQL       = `SELECT ` + runColumns + `, (SELECT COUNT(*) FROM events e WHERE e.run_id = r.id) FROM runs r WHERE r.source_id = ? ORDER BY r.created_at DESC, r.rowid DESC LIMIT 1`
	deleteRunSQL       = `DELETE FROM runs WHERE id = ?`
	deleteRunEventsSQL = `DELETE FROM events WHERE run_id = ?`

	// event queries
	insertEventSQL = `
	INSERT INTO events (run_id, seq, title, date, start_time, end_time, description, location, confidence)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	getEventsSQL = `
	SELECT title, date, start_time, end_time, description, location, confidence
	FROM events WHERE run_id = ? ORDER BY seq`
)

// DefaultListLimit bounds ListRuns when the caller passes zero.
const DefaultListLimit = 50

// Run is one extraction: the input it came from and the events it produced.
type Run struct {
	ID                string
	SourceID          string
	Filename          string
	Mode              string
	AcademicYearStart int
	Timezone          string
	RawText           string
	CreatedAt         time.Time
	EventCount        int
	// Events is only filled by Store.Run.
	Events []model.Event
}

// Store wraps the SQLite handle.
type Store struct {
	db *sql.DB
}

// Open opens (creating when needed) the database at path and applies
// migrations. MemoryPath gives a throwaway database.
func Open(path string) (*Store, error) {
	dsn := MemoryPath
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: create directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	// One connection serialises writers and keeps :memory: a single database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	for _, q := range []string{createRunsTableSQL, createEventsTableSQL, createRunsSourceIndexSQL} {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores run and its events in one transaction. An empty ID gets a
// fresh UUID and a zero CreatedAt becomes now; both are written back.
func (s *Store) SaveRun(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	run.EventCount = len(run.Events)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, insertRunSQL,
		run.ID, run.SourceID, run.Filename, run.Mode, run.AcademicYearStart,
		run.Timezone, run.RawText, unixSeconds(run.CreatedAt),
	); err != nil {
		return fmt.Errorf("store: insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertEventSQL)
	if err != nil {
		return fmt.Errorf("store: prepare event insert: %w", err)
	}
	defer stmt.Close()
	for i, ev := range run.Events {
		r := ev.Record()
		if _, err := stmt.ExecContext(ctx, run.ID, i, r.Title, r.Date,
			nullable(r.StartTime), nullable(r.EndTime), r.Description, r.Location, r.Confidence,
		); err != nil {
			return fmt.Errorf("store: insert event %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Run returns a run with its events in stored order.
func (s *Store) Run(ctx context.Context, id string) (*Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, getRunSQL, id))
	if err != nil {
		return nil, err
	}
	if run.Events, err = s.events(ctx, id); err != nil {
		return nil, err
	}
	return run, nil
}

// LatestForSource returns the newest run recorded for a configured source,
// including its events.
func (s *Store) LatestForSource(ctx context.Context, sourceID string) (*Run, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, latestRunSQL, sourceID))
	if err != nil {
		return nil, err
	}
	if run.Events, err = s.events(ctx, run.ID); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRuns returns run summaries, newest first, without events.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, listRunsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("store: query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and its events.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, deleteRunEventsSQL, id); err != nil {
		return fmt.Errorf("store: delete events: %w", err)
	}
	res, err := tx.ExecContext(ctx, deleteRunSQL, id)
	if err != nil {
		return fmt.Errorf("store: delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *Store) events(ctx context.Context, runID string) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx, getEventsSQL, runID)
	if err != nil {
		return nil, fmt.Errorf("store: query events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var (
			r          model.Record
			start, end sql.NullString
		)
		if err := rows.Scan(&r.Title, &r.Date, &start, &end, &r.Description, &r.Location, &r.Confidence); err != nil {
			return nil, fmt.Errorf("store: scan event: %w", err)
		}
		if start.Valid {
			r.StartTime = &start.String
		}
		if end.Valid {
			r.EndTime = &end.String
		}
		ev, err := r.Event()
		if err != nil {
			return nil, fmt.Errorf("store: decode event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run     Run
		created float64
	)
	err := row.Scan(&run.ID, &run.SourceID, &run.Filename, &run.Mode,
		&run.AcademicYearStart, &run.Timezone, &run.RawText, &created, &run.EventCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scan run: %w", err)
	}
	run.CreatedAt = timeFromUnix(created)
	return &run, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(f float64) time.Time {
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9))
}
