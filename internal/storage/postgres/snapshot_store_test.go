package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/sellermetrics/position-tracker/internal/catalog"
)

func TestSaveSnapshotInsertsRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewSnapshotStore(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	snap := catalog.Snapshot{
		ID:        "snap-1",
		UserID:    "user-1",
		Mode:      catalog.ModeBrand,
		Query:     "носки",
		City:      "Москва",
		CreatedAt: now,
		AutoQuery: true,
		Matches: []catalog.Match{{
			ID: 42, Brand: "Acme", Rank: 7, Page: 1, Index: 7,
			Query: "носки", City: "Москва", ObservedAt: now,
		}},
	}

	mock.ExpectExec("INSERT INTO tracking_snapshots").
		WithArgs(
			snap.ID,
			snap.UserID,
			"brand",
			snap.Query,
			snap.City,
			pgxmock.AnyArg(),
			snap.CreatedAt,
			true,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.SaveSnapshot(context.Background(), snap))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSnapshotGeneratesID(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewSnapshotStore(mock)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO tracking_snapshots").
		WithArgs(
			pgxmock.AnyArg(),
			"user-1",
			"article",
			"шапка",
			"Казань",
			pgxmock.AnyArg(),
			pgxmock.AnyArg(),
			false,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	snap := catalog.Snapshot{
		UserID: "user-1",
		Mode:   catalog.ModeArticle,
		Query:  "шапка",
		City:   "Казань",
	}
	require.NoError(t, store.SaveSnapshot(context.Background(), snap))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSnapshotRequiresUser(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewSnapshotStore(mock)
	require.NoError(t, err)

	require.Error(t, store.SaveSnapshot(context.Background(), catalog.Snapshot{}))
}

func TestListSnapshots(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewSnapshotStore(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	rows := pgxmock.NewRows([]string{"id", "user_id", "mode", "query", "city", "matches", "created_at", "auto_query"}).
		AddRow("snap-1", "user-1", "brand", "носки", "Москва", []byte(`[{"id":42,"rank":7}]`), now, true)

	mock.ExpectQuery("SELECT id, user_id, mode, query, city, matches, created_at, auto_query").
		WithArgs("user-1", 20).
		WillReturnRows(rows)

	snapshots, err := store.ListSnapshots(context.Background(), "user-1", 0)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	require.Equal(t, catalog.ModeBrand, snapshots[0].Mode)
	require.Len(t, snapshots[0].Matches, 1)
	require.Equal(t, 7, snapshots[0].Matches[0].Rank)
	require.NoError(t, mock.ExpectationsWereMet())
}
