package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// scriptedFetcher serves canned pages and records every requested page
// number.
type scriptedFetcher struct {
	mu        sync.Mutex
	pages     map[int][]CatalogItem
	failPages map[int]error
	requested []int
	infinite  []CatalogItem // served for any page not in pages
}

func (f *scriptedFetcher) Fetch(_ context.Context, req SearchRequest) ([]CatalogItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, req.Page)
	if err, ok := f.failPages[req.Page]; ok {
		return nil, err
	}
	if items, ok := f.pages[req.Page]; ok {
		return items, nil
	}
	return f.infinite, nil
}

func (f *scriptedFetcher) maxRequested() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	max := 0
	for _, p := range f.requested {
		if p > max {
			max = p
		}
	}
	return max
}

func testPager(fetcher PageFetcher, cfg PagerConfig) *Pager {
	return NewPager(fetcher, fastRetry(), cfg, fixedClock{}, nil)
}

type fixedClock struct{}

func (fixedClock) Now() time.Time {
	return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
}

func TestPagerStopsAfterEmptyPage(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{
		pages: map[int][]CatalogItem{
			1: {
				{ID: 11, Brand: "Other"},
				{ID: 12, Brand: "Acme"},
			},
			2: {},
		},
	}
	pager := testPager(fetcher, PagerConfig{MaxConcurrentPages: 2, PageCeiling: 60})

	matches, err := pager.Run(context.Background(), Search{Query: "socks", Mode: ModeBrand, Brand: "Acme", City: "Москва"})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, int64(12), matches[0].ID)
	require.Equal(t, 2, matches[0].Rank)
	require.Equal(t, "Москва", matches[0].City)

	// The empty page 2 ends the run; no later batch is issued.
	require.Equal(t, 2, fetcher.maxRequested())
}

func TestPagerRespectsCeiling(t *testing.T) {
	t.Parallel()

	// The catalog never runs dry; the ceiling must end the run.
	fetcher := &scriptedFetcher{infinite: []CatalogItem{{ID: 1, Brand: "Other"}}}
	pager := testPager(fetcher, PagerConfig{MaxConcurrentPages: 4, PageCeiling: 60})

	matches, err := pager.Run(context.Background(), Search{Query: "socks", Mode: ModeBrand, Brand: "Acme"})
	require.NoError(t, err)
	require.Empty(t, matches)
	require.Equal(t, 60, fetcher.maxRequested())
}

func TestPagerArticleModeStopsOnTarget(t *testing.T) {
	t.Parallel()

	page2 := make([]CatalogItem, 8)
	for i := range page2 {
		page2[i] = CatalogItem{ID: int64(100 + i), Brand: "Filler"}
	}
	page2[4] = CatalogItem{ID: 777, Brand: "Acme", Name: "Target"}

	fetcher := &scriptedFetcher{
		pages: map[int][]CatalogItem{
			1: {{ID: 1, Brand: "Filler"}},
			2: page2,
		},
		infinite: []CatalogItem{{ID: 2, Brand: "Filler"}},
	}
	pager := testPager(fetcher, PagerConfig{MaxConcurrentPages: 2, PageCeiling: 60})

	matches, err := pager.Run(context.Background(), Search{Query: "socks", Mode: ModeArticle, Article: 777})
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, 205, matches[0].Rank)

	// Found in the first batch; no later batch is issued.
	require.Equal(t, 2, fetcher.maxRequested())
}

func TestPagerSinglePageFailureAbortsRun(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{
		infinite: []CatalogItem{{ID: 5, Brand: "Acme"}},
		failPages: map[int]error{
			3: &TransientError{Err: errors.New("503")},
		},
	}
	pager := testPager(fetcher, PagerConfig{MaxConcurrentPages: 4, PageCeiling: 8})

	_, err := pager.Run(context.Background(), Search{Query: "socks", Mode: ModeBrand, Brand: "Acme"})
	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, 3, exhausted.Page)
}

func TestEngineBrandModeDedupes(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{
		pages: map[int][]CatalogItem{
			1: {{ID: 42, Brand: "Acme"}},
			2: {{ID: 42, Brand: "Acme"}, {ID: 43, Brand: "Acme"}},
			3: {},
		},
	}
	engine := NewEngine(testPager(fetcher, PagerConfig{MaxConcurrentPages: 4, PageCeiling: 60}))

	matches, err := engine.Execute(context.Background(), Search{Query: "socks", Mode: ModeBrand, Brand: "Acme"})
	require.NoError(t, err)
	require.Len(t, matches, 2)
	// Product 42 keeps its page-1 rank, not the page-2 duplicate.
	require.Equal(t, int64(42), matches[0].ID)
	require.Equal(t, 1, matches[0].Rank)
	require.Equal(t, 202, matches[1].Rank)
}

func TestEngineArticleModeNoMatch(t *testing.T) {
	t.Parallel()

	fetcher := &scriptedFetcher{
		pages: map[int][]CatalogItem{
			1: {{ID: 1, Brand: "Filler"}},
			2: {},
		},
	}
	engine := NewEngine(testPager(fetcher, PagerConfig{MaxConcurrentPages: 2, PageCeiling: 60}))

	matches, err := engine.Execute(context.Background(), Search{Query: "socks", Mode: ModeArticle, Article: 999})
	require.NoError(t, err)
	require.Empty(t, matches)
}
