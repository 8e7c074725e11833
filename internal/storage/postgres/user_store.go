package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sellermetrics/position-tracker/internal/catalog"
)

// UserStore reads the account state the scheduler needs. Account lifecycle
// itself (billing, blocking) lives outside the engine; this store only
// observes it.
type UserStore struct {
	pool dbConn
}

// NewUserStore constructs a UserStore over an existing pool.
func NewUserStore(pool dbConn) (*UserStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &UserStore{pool: pool}, nil
}

// ListActiveUsers returns every user eligible for scheduled tracking.
func (s *UserStore) ListActiveUsers(ctx context.Context) ([]catalog.User, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, blocked
FROM users
WHERE blocked = FALSE
ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	defer rows.Close()

	var users []catalog.User
	for rows.Next() {
		var u catalog.User
		if err := rows.Scan(&u.ID, &u.Blocked); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// IsBlocked re-checks one user's blocked flag. A vanished user counts as
// blocked.
func (s *UserStore) IsBlocked(ctx context.Context, userID string) (bool, error) {
	var blocked bool
	err := s.pool.QueryRow(ctx, `SELECT blocked FROM users WHERE id = $1`, userID).Scan(&blocked)
	if errors.Is(err, pgx.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("check user blocked: %w", err)
	}
	return blocked, nil
}
