package postgres

import (
	"context"
	"fmt"

	"github.com/sellermetrics/position-tracker/internal/catalog"
)

// QueryStore reads persisted per-user search history rows.
type QueryStore struct {
	pool dbConn
}

// NewQueryStore constructs a QueryStore over an existing pool.
func NewQueryStore(pool dbConn) (*QueryStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &QueryStore{pool: pool}, nil
}

// ListQueries returns every history record of the given mode for the user,
// oldest first. The semicolon-joined columns are returned verbatim; the
// combinator owns their expansion.
func (s *QueryStore) ListQueries(ctx context.Context, userID string, mode catalog.Mode) ([]catalog.QueryRecord, error) {
	rows, err := s.pool.Query(ctx, `
SELECT query, discriminator, city, COALESCE(dest, '')
FROM search_queries
WHERE user_id = $1 AND mode = $2
ORDER BY created_at`, userID, string(mode))
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	defer rows.Close()

	var records []catalog.QueryRecord
	for rows.Next() {
		var r catalog.QueryRecord
		if err := rows.Scan(&r.Query, &r.Discriminator, &r.City, &r.Dest); err != nil {
			return nil, fmt.Errorf("scan query record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate query records: %w", err)
	}
	return records, nil
}
