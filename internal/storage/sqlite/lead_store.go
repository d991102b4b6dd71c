// Package sqlite provides a pure-Go SQLite lead store for local runs and tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/freelance-lead-finder/internal/lead"
)

const (
	createLeadsTable = `
CREATE TABLE IF NOT EXISTS leads (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	score      INTEGER NOT NULL,
	title      TEXT NOT NULL,
	channel    TEXT NOT NULL,
	url        TEXT NOT NULL UNIQUE,
	author     TEXT NOT NULL,
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
)`
	createScanRunsTable = `
CREATE TABLE IF NOT EXISTS scan_runs (
	id            TEXT PRIMARY KEY,
	trigger       TEXT NOT NULL,
	status        TEXT NOT NULL,
	started_at    TEXT NOT NULL,
	finished_at   TEXT,
	new_leads     INTEGER NOT NULL DEFAULT 0,
	search_errors INTEGER NOT NULL DEFAULT 0,
	error_message TEXT
)`
	insertLead = `
INSERT INTO leads (score, title, channel, url, author)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (url) DO NOTHING
RETURNING id, created_at`
	selectLeads = `
SELECT id, score, title, channel, url, author, created_at
FROM leads
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?`
	insertScanRun = `
INSERT INTO scan_runs (id, trigger, status, started_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (id) DO NOTHING`
	upsertScanRun = `
INSERT INTO scan_runs (id, trigger, status, started_at, finished_at, new_leads, search_errors, error_message)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	finished_at = EXCLUDED.finished_at,
	new_leads = EXCLUDED.new_leads,
	search_errors = EXCLUDED.search_errors,
	error_message = EXCLUDED.error_message`
	selectScanRuns = `
SELECT id, trigger, status, started_at, finished_at, new_leads, search_errors, error_message
FROM scan_runs
ORDER BY started_at DESC
LIMIT ?`
)

// LeadStore implements lead.Store on SQLite.
type LeadStore struct {
	db *sql.DB
}

// NewLeadStore opens the database at dsn (for example "file:leads.db" or
// ":memory:"). SQLite allows one writer, so the pool holds a single connection.
func NewLeadStore(ctx context.Context, dsn string) (*LeadStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close() //nolint:errcheck // unusable handle
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &LeadStore{db: db}, nil
}

// Close releases the database handle.
func (s *LeadStore) Close() {
	if s == nil || s.db == nil {
		return
	}
	_ = s.db.Close() //nolint:errcheck // nothing left to flush
}

// EnsureSchema creates the leads and scan_runs tables if they do not exist.
func (s *LeadStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, createLeadsTable); err != nil {
		return fmt.Errorf("create leads table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, createScanRunsTable); err != nil {
		return fmt.Errorf("create scan_runs table: %w", err)
	}
	return nil
}

// InsertLeads inserts the batch in one transaction and returns the new rows.
func (s *LeadStore) InsertLeads(ctx context.Context, leads []lead.Lead) ([]lead.Lead, error) {
	if len(leads) == 0 {
		return nil, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin lead batch: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback() //nolint:errcheck // best-effort after a failed batch
		}
	}()

	var inserted []lead.Lead
	for _, l := range leads {
		row := l
		var created string
		err := tx.QueryRowContext(ctx, insertLead, l.Score, l.Title, l.Channel, l.URL, l.Author).
			Scan(&row.ID, &created)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("insert lead %q: %w", l.URL, err)
		}
		if row.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		inserted = append(inserted, row)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit lead batch: %w", err)
	}
	committed = true
	return inserted, nil
}

// ListLeads returns leads newest first.
func (s *LeadStore) ListLeads(ctx context.Context, limit, offset int) ([]lead.Lead, error) {
	rows, err := s.db.QueryContext(ctx, selectLeads, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var leads []lead.Lead
	for rows.Next() {
		var (
			l       lead.Lead
			created string
		)
		if err := rows.Scan(&l.ID, &l.Score, &l.Title, &l.Channel, &l.URL, &l.Author, &created); err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		if l.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate leads: %w", err)
	}
	return leads, nil
}

// StartScan records a running scan pass.
func (s *LeadStore) StartScan(ctx context.Context, run lead.ScanRun) error {
	_, err := s.db.ExecContext(ctx, insertScanRun,
		run.ID, string(run.Trigger), string(run.Status), formatTime(run.StartedAt))
	if err != nil {
		return fmt.Errorf("failed to insert scan run: %w", err)
	}
	return nil
}

// FinishScan stores the final status and counters of a scan pass, creating
// the row when StartScan never recorded it.
func (s *LeadStore) FinishScan(ctx context.Context, run lead.ScanRun) error {
	var finished, errMsg sql.NullString
	if run.FinishedAt != nil {
		finished = sql.NullString{String: formatTime(*run.FinishedAt), Valid: true}
	}
	if run.ErrorMessage != "" {
		errMsg = sql.NullString{String: run.ErrorMessage, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, upsertScanRun,
		run.ID, string(run.Trigger), string(run.Status), formatTime(run.StartedAt),
		finished, run.NewLeads, run.SearchErrors, errMsg)
	if err != nil {
		return fmt.Errorf("failed to record scan run: %w", err)
	}
	return nil
}

// ListScans returns the most recent scan runs.
func (s *LeadStore) ListScans(ctx context.Context, limit int) ([]lead.ScanRun, error) {
	rows, err := s.db.QueryContext(ctx, selectScanRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scan runs: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var runs []lead.ScanRun
	for rows.Next() {
		var (
			run              lead.ScanRun
			trigger, status  string
			started          string
			finished, errMsg sql.NullString
		)
		if err := rows.Scan(&run.ID, &trigger, &status, &started, &finished,
			&run.NewLeads, &run.SearchErrors, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan scan run: %w", err)
		}
		run.Trigger = lead.Trigger(trigger)
		run.Status = lead.ScanStatus(status)
		if run.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if finished.Valid {
			t, err := parseTime(finished.String)
			if err != nil {
				return nil, err
			}
			run.FinishedAt = &t
		}
		run.ErrorMessage = errMsg.String
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scan runs: %w", err)
	}
	return runs, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
