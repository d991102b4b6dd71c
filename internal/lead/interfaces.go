package lead

import (
	"context"
	"io"
	"time"
)

// Forum searches discussion channels for candidate posts.
type Forum interface {
	// Authenticate obtains (or refreshes) credentials before a pass starts.
	Authenticate(ctx context.Context) error
	Search(ctx context.Context, query SearchQuery) ([]Post, error)
}

// Store persists leads and scan runs.
type Store interface {
	// EnsureSchema creates the leads and scan_runs tables when absent.
	EnsureSchema(ctx context.Context) error
	// InsertLeads inserts the batch in a single transaction, skipping URLs that
	// already exist, and returns only the rows that were newly created.
	InsertLeads(ctx context.Context, leads []Lead) ([]Lead, error)
	ListLeads(ctx context.Context, limit, offset int) ([]Lead, error)
	StartScan(ctx context.Context, run ScanRun) error
	FinishScan(ctx context.Context, run ScanRun) error
	ListScans(ctx context.Context, limit int) ([]ScanRun, error)
	Close()
}

// Publisher pushes lead events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// BlobStore writes scan archives and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces scan IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
