package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/sellermetrics/position-tracker/internal/catalog"
)

// SnapshotStore persists tracking snapshots. Snapshots are append-only;
// retention and deletion are handled outside the engine.
type SnapshotStore struct {
	pool dbConn
}

// NewSnapshotStore constructs a SnapshotStore over an existing pool.
func NewSnapshotStore(pool dbConn) (*SnapshotStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &SnapshotStore{pool: pool}, nil
}

// SaveSnapshot inserts one snapshot row. A missing ID is generated here so
// callers can stay ignorant of the ID scheme.
func (s *SnapshotStore) SaveSnapshot(ctx context.Context, snapshot catalog.Snapshot) error {
	if snapshot.UserID == "" {
		return fmt.Errorf("snapshot user id is required")
	}
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	matchesJSON, err := json.Marshal(snapshot.Matches)
	if err != nil {
		return fmt.Errorf("marshal matches: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
INSERT INTO tracking_snapshots (id, user_id, mode, query, city, matches, created_at, auto_query)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		snapshot.ID,
		snapshot.UserID,
		string(snapshot.Mode),
		snapshot.Query,
		snapshot.City,
		matchesJSON,
		snapshot.CreatedAt,
		snapshot.AutoQuery,
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns the user's most recent snapshots, newest first.
func (s *SnapshotStore) ListSnapshots(ctx context.Context, userID string, limit int) ([]catalog.Snapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, user_id, mode, query, city, matches, created_at, auto_query
FROM tracking_snapshots
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []catalog.Snapshot
	for rows.Next() {
		var (
			snap        catalog.Snapshot
			mode        string
			matchesJSON []byte
		)
		if err := rows.Scan(&snap.ID, &snap.UserID, &mode, &snap.Query, &snap.City, &matchesJSON, &snap.CreatedAt, &snap.AutoQuery); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.Mode = catalog.Mode(mode)
		if len(matchesJSON) > 0 {
			if err := json.Unmarshal(matchesJSON, &snap.Matches); err != nil {
				return nil, fmt.Errorf("unmarshal matches for snapshot %s: %w", snap.ID, err)
			}
		}
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snapshots, nil
}
