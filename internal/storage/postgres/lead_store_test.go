package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/freelance-lead-finder/internal/lead"
)

func newMockStore(t *testing.T) (*LeadStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewLeadStoreWithPool(mock)
	require.NoError(t, err)
	return store, mock
}

func TestNewLeadStoreRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := NewLeadStore(context.Background(), StoreConfig{})
	require.Error(t, err)
	_, err = NewLeadStoreWithPool(nil)
	require.Error(t, err)
}

func TestEnsureSchemaCreatesTables(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS leads").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS scan_runs").WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchemaUnreachable(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS leads").WillReturnError(errors.New("connection refused"))

	err := store.EnsureSchema(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "create leads table")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertLeadsSkipsConflicts(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()
	first := lead.Lead{Score: 18, Title: "Need a website built", Channel: "forhire", URL: "https://x/1", Author: "alice"}
	dup := first

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO leads").
		WithArgs(first.Score, first.Title, first.Channel, first.URL, first.Author).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), now))
	mock.ExpectQuery("INSERT INTO leads").
		WithArgs(dup.Score, dup.Title, dup.Channel, dup.URL, dup.Author).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}))
	mock.ExpectCommit()

	inserted, err := store.InsertLeads(context.Background(), []lead.Lead{first, dup})
	require.NoError(t, err)
	require.Len(t, inserted, 1)
	require.Equal(t, int64(7), inserted[0].ID)
	require.Equal(t, now, inserted[0].CreatedAt)
	require.Equal(t, "https://x/1", inserted[0].URL)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertLeadsRollsBackOnError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	l := lead.Lead{Score: 1, Title: "t", Channel: "c", URL: "https://x/9", Author: "a"}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO leads").
		WithArgs(l.Score, l.Title, l.Channel, l.URL, l.Author).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	inserted, err := store.InsertLeads(context.Background(), []lead.Lead{l})
	require.Error(t, err)
	require.Nil(t, inserted)
	require.Contains(t, err.Error(), "https://x/9")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertLeadsCommitFailure(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	l := lead.Lead{Score: 1, Title: "t", Channel: "c", URL: "https://x/3", Author: "a"}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO leads").
		WithArgs(l.Score, l.Title, l.Channel, l.URL, l.Author).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(int64(1), time.Now()))
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))
	mock.ExpectRollback()

	_, err := store.InsertLeads(context.Background(), []lead.Lead{l})
	require.Error(t, err)
	require.Contains(t, err.Error(), "commit lead batch")
}

func TestInsertLeadsEmptyBatch(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	inserted, err := store.InsertLeads(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListLeads(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()
	mock.ExpectQuery("SELECT id, score, title, channel, url, author, created_at").
		WithArgs(10, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "score", "title", "channel", "url", "author", "created_at"}).
			AddRow(int64(2), 18, "Need a website built", "forhire", "https://x/1", "alice", now).
			AddRow(int64(1), 3, "Other", "jobbit", "https://x/2", "N/A", now.Add(-time.Hour)))

	leads, err := store.ListLeads(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, leads, 2)
	require.Equal(t, lead.Lead{
		ID: 2, Score: 18, Title: "Need a website built", Channel: "forhire",
		URL: "https://x/1", Author: "alice", CreatedAt: now,
	}, leads[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScanRunLifecycle(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	started := time.Unix(1700000000, 0).UTC()
	finished := started.Add(time.Minute)
	run := lead.ScanRun{ID: "scan-1", Trigger: lead.TriggerManual, Status: lead.ScanStatusRunning, StartedAt: started}

	mock.ExpectExec("INSERT INTO scan_runs").
		WithArgs("scan-1", "manual", "running", started).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("ON CONFLICT \\(id\\) DO UPDATE").
		WithArgs("scan-1", "manual", "succeeded", started, pgxmock.AnyArg(), 3, 1, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.StartScan(context.Background(), run))
	run.Status = lead.ScanStatusSucceeded
	run.FinishedAt = &finished
	run.NewLeads = 3
	run.SearchErrors = 1
	require.NoError(t, store.FinishScan(context.Background(), run))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishScanWithoutStartInsertsRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	started := time.Unix(1700000000, 0).UTC()
	finished := started.Add(time.Minute)
	msg := "authenticate forum client: 401"
	run := lead.ScanRun{
		ID:           "scan-2",
		Trigger:      lead.TriggerScheduled,
		Status:       lead.ScanStatusFailed,
		StartedAt:    started,
		FinishedAt:   &finished,
		ErrorMessage: msg,
	}
	mock.ExpectExec("INSERT INTO scan_runs \\(id, trigger, status, started_at, finished_at").
		WithArgs("scan-2", "scheduled", "failed", started, &finished, 0, 0, &msg).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.FinishScan(context.Background(), run))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListScans(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	started := time.Unix(1700000000, 0).UTC()
	finished := started.Add(2 * time.Minute)
	msg := "connect postgres: refused"
	mock.ExpectQuery("SELECT id, trigger, status, started_at").
		WithArgs(5).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "trigger", "status", "started_at", "finished_at", "new_leads", "search_errors", "error_message",
		}).AddRow("scan-2", "scheduled", "failed", started, &finished, 0, 0, &msg))

	runs, err := store.ListScans(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, lead.TriggerScheduled, runs[0].Trigger)
	require.Equal(t, lead.ScanStatusFailed, runs[0].Status)
	require.NotNil(t, runs[0].FinishedAt)
	require.Equal(t, finished, *runs[0].FinishedAt)
	require.Equal(t, msg, runs[0].ErrorMessage)
	require.NoError(t, mock.ExpectationsWereMet())
}
