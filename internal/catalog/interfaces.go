package catalog

import (
	"context"
	"time"
)

// PageFetcher fetches one catalog search result page. An empty slice with a
// nil error signals that the catalog is exhausted for this query.
type PageFetcher interface {
	Fetch(ctx context.Context, request SearchRequest) ([]CatalogItem, error)
}

// SnapshotStore persists tracking snapshots. Snapshots are append-only.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snapshot Snapshot) error
	ListSnapshots(ctx context.Context, userID string, limit int) ([]Snapshot, error)
}

// QueryRecord is one persisted search history row. Each field holds one or
// more semicolon-joined sub-values; sub-value i of one field corresponds to
// sub-value i of every other field in the record.
type QueryRecord struct {
	Query         string
	Discriminator string
	City          string
	Dest          string
}

// QueryStore reads persisted per-user search history.
type QueryStore interface {
	ListQueries(ctx context.Context, userID string, mode Mode) ([]QueryRecord, error)
}

// User is the subset of account state the scheduler needs.
type User struct {
	ID      string
	Blocked bool
}

// UserStore enumerates tracking-eligible users.
type UserStore interface {
	ListActiveUsers(ctx context.Context) ([]User, error)
	IsBlocked(ctx context.Context, userID string) (bool, error)
}

// Publisher pushes snapshot-created events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock with the real time.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }
