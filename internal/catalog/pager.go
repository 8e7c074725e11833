package catalog

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// PagerConfig tunes the concurrent pagination window.
type PagerConfig struct {
	MaxConcurrentPages int
	PageCeiling        int
	InterBatchDelay    time.Duration
}

// DefaultPagerConfig returns the production pagination settings.
func DefaultPagerConfig() PagerConfig {
	return PagerConfig{
		MaxConcurrentPages: 4,
		PageCeiling:        60,
		InterBatchDelay:    time.Second,
	}
}

func (c PagerConfig) normalized() PagerConfig {
	if c.MaxConcurrentPages <= 0 {
		c.MaxConcurrentPages = 4
	}
	if c.PageCeiling <= 0 {
		c.PageCeiling = 60
	}
	if c.InterBatchDelay < 0 {
		c.InterBatchDelay = 0
	}
	return c
}

// Pager drives a PageFetcher across a bounded window of concurrent page
// numbers until the catalog returns an empty page or the ceiling is hit.
type Pager struct {
	fetcher PageFetcher
	retry   RetryPolicy
	cfg     PagerConfig
	clock   Clock
	logger  *zap.Logger
}

// NewPager constructs a Pager.
func NewPager(fetcher PageFetcher, retry RetryPolicy, cfg PagerConfig, clock Clock, logger *zap.Logger) *Pager {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pager{
		fetcher: fetcher,
		retry:   retry,
		cfg:     cfg.normalized(),
		clock:   clock,
		logger:  logger,
	}
}

// Run fetches result pages in fixed-size concurrent batches and returns
// every candidate match for the search. Batches are issued in ascending
// page order; completion order within a batch is unordered, so callers must
// rely on composite ranks, never on arrival order. Pagination stops once
// any page in a batch comes back empty, the page ceiling is reached, or an
// article-mode search finds its target. A single page exhausting its
// retries fails the whole run.
func (p *Pager) Run(ctx context.Context, search Search) ([]Match, error) {
	var (
		mu      sync.Mutex
		matches []Match
		runErr  error
		stop    atomic.Bool
	)

	recordErr := func(err error) {
		mu.Lock()
		if runErr == nil {
			runErr = err
		}
		mu.Unlock()
		stop.Store(true)
	}

	for first := 1; first <= p.cfg.PageCeiling && !stop.Load(); first += p.cfg.MaxConcurrentPages {
		if first > 1 && p.cfg.InterBatchDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.cfg.InterBatchDelay):
			}
		}

		last := first + p.cfg.MaxConcurrentPages - 1
		if last > p.cfg.PageCeiling {
			last = p.cfg.PageCeiling
		}

		var wg sync.WaitGroup
		for page := first; page <= last; page++ {
			wg.Add(1)
			go func(page int) {
				defer wg.Done()
				items, err := FetchWithRetry(ctx, p.fetcher, p.retry, SearchRequest{
					Query: search.Query,
					Dest:  search.Dest,
					Page:  page,
				})
				if err != nil {
					recordErr(err)
					return
				}
				if len(items) == 0 {
					p.logger.Debug("catalog exhausted",
						zap.String("query", search.Query),
						zap.Int("page", page),
					)
					stop.Store(true)
					return
				}
				p.collectPage(search, page, items, &mu, &matches, &stop)
			}(page)
		}
		wg.Wait()

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if runErr != nil {
		return nil, runErr
	}
	return matches, nil
}

func (p *Pager) collectPage(search Search, page int, items []CatalogItem, mu *sync.Mutex, matches *[]Match, stop *atomic.Bool) {
	observedAt := p.clock.Now()
	for i, item := range items {
		if !search.Matches(item) {
			continue
		}
		index := i + 1
		match := Match{
			ID:         item.ID,
			Brand:      item.Brand,
			Name:       item.Name,
			Page:       page,
			Index:      index,
			Rank:       EncodePosition(page, index),
			City:       search.City,
			Query:      search.Query,
			ObservedAt: observedAt,
			ImageURL:   AssetURL(item.ID),
			Promotion:  item.Promotion,
		}
		mu.Lock()
		*matches = append(*matches, match)
		mu.Unlock()
		if search.Mode == ModeArticle {
			// The target is found; no later batch is issued.
			stop.Store(true)
			return
		}
	}
}
