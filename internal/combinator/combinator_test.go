package combinator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sellermetrics/position-tracker/internal/catalog"
)

func TestCombinationsExpandsJoinedFields(t *testing.T) {
	t.Parallel()

	records := []catalog.QueryRecord{{
		Query:         "носки; футболка",
		Discriminator: "Acme;Acme",
		City:          "Москва;Казань",
		Dest:          "-1257786;-2133463",
	}}

	out := Combinations(records, catalog.ModeBrand)
	require.Len(t, out, 2)
	require.Equal(t, "носки", out[0].Query)
	require.Equal(t, "Acme", out[0].Brand)
	require.Equal(t, "-1257786", out[0].Dest)
	require.Equal(t, "футболка", out[1].Query)
	require.Equal(t, "-2133463", out[1].Dest)
}

func TestCombinationsDeduplicatesLowercased(t *testing.T) {
	t.Parallel()

	records := []catalog.QueryRecord{
		{Query: "Носки", Discriminator: "ACME", City: "Москва"},
		{Query: "носки", Discriminator: "acme", City: "москва"},
	}

	out := Combinations(records, catalog.ModeBrand)
	require.Len(t, out, 1)
}

func TestCombinationsBoundedByShortestField(t *testing.T) {
	t.Parallel()

	// Three queries but only two discriminators: the shorter field bounds
	// the expansion, and the blank city slot is tolerated.
	records := []catalog.QueryRecord{{
		Query:         "a;b;c",
		Discriminator: "Acme;Brandx",
		City:          "Москва;",
	}}

	out := Combinations(records, catalog.ModeBrand)
	require.Len(t, out, 2)
	require.Equal(t, "a", out[0].Query)
	require.Equal(t, "b", out[1].Query)
}

func TestCombinationsFiltersBlankSlots(t *testing.T) {
	t.Parallel()

	records := []catalog.QueryRecord{{
		Query:         "носки;;шапка",
		Discriminator: "Acme;Acme;",
		City:          "Москва;Москва;Москва",
	}}

	out := Combinations(records, catalog.ModeBrand)
	require.Len(t, out, 1)
	require.Equal(t, "носки", out[0].Query)
}

func TestCombinationsReconstructsDestFromCity(t *testing.T) {
	t.Parallel()

	records := []catalog.QueryRecord{
		{Query: "носки", Discriminator: "Acme", City: "Санкт-Петербург"},
		{Query: "шапка", Discriminator: "Acme", City: "Неизвестск"},
	}

	out := Combinations(records, catalog.ModeBrand)
	require.Len(t, out, 2)
	require.Equal(t, "-1181032", out[0].Dest)
	require.Equal(t, defaultDest, out[1].Dest)
}

func TestCombinationsArticleMode(t *testing.T) {
	t.Parallel()

	records := []catalog.QueryRecord{{
		Query:         "носки;шапка",
		Discriminator: "12345678;not-a-number",
		City:          "Москва;Москва",
	}}

	out := Combinations(records, catalog.ModeArticle)
	require.Len(t, out, 1)
	require.Equal(t, int64(12345678), out[0].Article)
	require.Equal(t, catalog.ModeArticle, out[0].Mode)
}

type stubQueryStore struct {
	brand   []catalog.QueryRecord
	article []catalog.QueryRecord
}

func (s *stubQueryStore) ListQueries(_ context.Context, _ string, mode catalog.Mode) ([]catalog.QueryRecord, error) {
	if mode == catalog.ModeArticle {
		return s.article, nil
	}
	return s.brand, nil
}

func TestForUserIsIdempotent(t *testing.T) {
	t.Parallel()

	store := &stubQueryStore{
		brand: []catalog.QueryRecord{
			{Query: "носки;носки", Discriminator: "Acme;Acme", City: "Москва;Москва"},
		},
		article: []catalog.QueryRecord{
			{Query: "шапка", Discriminator: "555", City: "Казань"},
		},
	}
	c := New(store)

	brand1, article1, err := c.ForUser(context.Background(), "user-1")
	require.NoError(t, err)
	brand2, article2, err := c.ForUser(context.Background(), "user-1")
	require.NoError(t, err)

	require.Equal(t, brand1, brand2)
	require.Equal(t, article1, article2)
	require.Len(t, brand1, 1)
	require.Len(t, article1, 1)
}
