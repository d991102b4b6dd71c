// Package postgres provides the Postgres-backed lead store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/freelance-lead-finder/internal/lead"
)

const (
	createLeadsTable = `
CREATE TABLE IF NOT EXISTS leads (
	id         BIGSERIAL PRIMARY KEY,
	score      INTEGER NOT NULL,
	title      TEXT NOT NULL,
	channel    TEXT NOT NULL,
	url        TEXT NOT NULL UNIQUE,
	author     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	createScanRunsTable = `
CREATE TABLE IF NOT EXISTS scan_runs (
	id            TEXT PRIMARY KEY,
	trigger       TEXT NOT NULL,
	status        TEXT NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ,
	new_leads     INTEGER NOT NULL DEFAULT 0,
	search_errors INTEGER NOT NULL DEFAULT 0,
	error_message TEXT
)`
	insertLead = `
INSERT INTO leads (score, title, channel, url, author)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (url) DO NOTHING
RETURNING id, created_at`
	selectLeads = `
SELECT id, score, title, channel, url, author, created_at
FROM leads
ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2`
	insertScanRun = `
INSERT INTO scan_runs (id, trigger, status, started_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO NOTHING`
	upsertScanRun = `
INSERT INTO scan_runs (id, trigger, status, started_at, finished_at, new_leads, search_errors, error_message)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
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
LIMIT $1`
)

// StoreConfig controls the Postgres connection pool used for leads.
type StoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// LeadStore implements lead.Store on Postgres. Uniqueness of lead URLs is
// enforced by the table constraint, so concurrent passes never duplicate rows.
type LeadStore struct {
	pool pool
}

// NewLeadStore creates a pgx pool for the DSN. The pool dials lazily, so an
// unreachable database surfaces on the first EnsureSchema call.
func NewLeadStore(ctx context.Context, cfg StoreConfig) (*LeadStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &LeadStore{pool: p}, nil
}

// NewLeadStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewLeadStoreWithPool(p pool) (*LeadStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &LeadStore{pool: p}, nil
}

// Close releases the underlying pool resources.
func (s *LeadStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the leads and scan_runs tables if they do not exist.
func (s *LeadStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createLeadsTable); err != nil {
		return fmt.Errorf("create leads table: %w", err)
	}
	if _, err := s.pool.Exec(ctx, createScanRunsTable); err != nil {
		return fmt.Errorf("create scan_runs table: %w", err)
	}
	return nil
}

// InsertLeads inserts the batch in one transaction. Rows whose URL already
// exists (including earlier rows of the same batch) are skipped and not
// returned.
func (s *LeadStore) InsertLeads(ctx context.Context, leads []lead.Lead) ([]lead.Lead, error) {
	if len(leads) == 0 {
		return nil, nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin lead batch: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx) //nolint:errcheck // best-effort after a failed batch
		}
	}()

	var inserted []lead.Lead
	for _, l := range leads {
		row := l
		err := tx.QueryRow(ctx, insertLead, l.Score, l.Title, l.Channel, l.URL, l.Author).
			Scan(&row.ID, &row.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("insert lead %q: %w", l.URL, err)
		}
		inserted = append(inserted, row)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit lead batch: %w", err)
	}
	committed = true
	return inserted, nil
}

// ListLeads returns leads newest first.
func (s *LeadStore) ListLeads(ctx context.Context, limit, offset int) ([]lead.Lead, error) {
	rows, err := s.pool.Query(ctx, selectLeads, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	var leads []lead.Lead
	for rows.Next() {
		var l lead.Lead
		if err := rows.Scan(&l.ID, &l.Score, &l.Title, &l.Channel, &l.URL, &l.Author, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
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
	if _, err := s.pool.Exec(ctx, insertScanRun, run.ID, string(run.Trigger), string(run.Status), run.StartedAt); err != nil {
		return fmt.Errorf("failed to insert scan run: %w", err)
	}
	return nil
}

// FinishScan stores the final status and counters of a scan pass. The row is
// created when StartScan never recorded it.
func (s *LeadStore) FinishScan(ctx context.Context, run lead.ScanRun) error {
	var errMsg *string
	if run.ErrorMessage != "" {
		errMsg = &run.ErrorMessage
	}
	_, err := s.pool.Exec(ctx, upsertScanRun,
		run.ID, string(run.Trigger), string(run.Status), run.StartedAt,
		run.FinishedAt, run.NewLeads, run.SearchErrors, errMsg)
	if err != nil {
		return fmt.Errorf("failed to record scan run: %w", err)
	}
	return nil
}

// ListScans returns the most recent scan runs.
func (s *LeadStore) ListScans(ctx context.Context, limit int) ([]lead.ScanRun, error) {
	rows, err := s.pool.Query(ctx, selectScanRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scan runs: %w", err)
	}
	defer rows.Close()

	var runs []lead.ScanRun
	for rows.Next() {
		var (
			run     lead.ScanRun
			trigger string
			status  string
			errMsg  *string
		)
		if err := rows.Scan(&run.ID, &trigger, &status, &run.StartedAt, &run.FinishedAt,
			&run.NewLeads, &run.SearchErrors, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan scan run: %w", err)
		}
		run.Trigger = lead.Trigger(trigger)
		run.Status = lead.ScanStatus(status)
		if errMsg != nil {
			run.ErrorMessage = *errMsg
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate scan runs: %w", err)
	}
	return runs, nil
}
