// Package catalogapi implements catalog.PageFetcher against the
// marketplace search endpoint using gocolly.
package catalogapi

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/sellermetrics/position-tracker/internal/archive"
	"github.com/sellermetrics/position-tracker/internal/catalog"
	"github.com/sellermetrics/position-tracker/internal/metrics"
)

// Fixed query parameters the search endpoint expects on every call.
var fixedParams = map[string]string{
	"appType":   "1",
	"curr":      "rub",
	"lang":      "ru",
	"sort":      "popular",
	"resultset": "catalog",
	"spp":       "30",
}

// Config controls fetcher behavior.
type Config struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
}

// Fetcher fetches single catalog search pages through a cloned Colly
// collector per request. It performs no caching and no retries; callers
// decide whether to retry.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	archiver      archive.Provider
	clock         catalog.Clock
	logger        *zap.Logger
}

// New builds a Fetcher. The archiver may be nil; raw responses are then
// discarded after decoding.
func New(cfg Config, archiver archive.Provider, clock catalog.Clock, logger *zap.Logger) *Fetcher {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://search.wb.ru/exactmatch/ru/common/v4/search"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 13 * time.Second
	}
	if clock == nil {
		clock = catalog.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		archiver:      archiver,
		clock:         clock,
		logger:        logger,
	}
}

// searchResponse mirrors the endpoint's envelope. Only the product fields
// the engine consumes are decoded.
type searchResponse struct {
	Data *struct {
		Products []rawProduct `json:"products"`
	} `json:"data"`
}

type rawProduct struct {
	ID    int64  `json:"id"`
	Brand string `json:"brand"`
	Name  string `json:"name"`
	Log   *struct {
		PromoPosition int `json:"promoPosition"`
		Position      int `json:"position"`
	} `json:"log"`
}

// Fetch retrieves one result page. An empty item slice with a nil error
// means the catalog is exhausted for this query.
func (f *Fetcher) Fetch(ctx context.Context, request catalog.SearchRequest) ([]catalog.CatalogItem, error) {
	start := time.Now()
	body, status, err := f.get(ctx, f.requestURL(request))
	metrics.ObserveFetchDuration(time.Since(start))
	if err != nil {
		metrics.IncPagesFetched("error")
		return nil, err
	}
	metrics.IncPagesFetched(strconv.Itoa(status))

	if f.archiver != nil {
		f.archiveResponse(ctx, request, body)
	}

	var decoded searchResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, &catalog.PermanentError{Err: fmt.Errorf("decode search response: %w", err)}
	}
	if decoded.Data == nil {
		return nil, &catalog.PermanentError{Err: fmt.Errorf("search response has no data envelope")}
	}

	items := make([]catalog.CatalogItem, 0, len(decoded.Data.Products))
	for _, p := range decoded.Data.Products {
		item := catalog.CatalogItem{
			ID:    p.ID,
			Brand: p.Brand,
			Name:  p.Name,
		}
		if p.Log != nil && p.Log.PromoPosition > 0 {
			item.Promotion = &catalog.Promotion{
				PromotedPos: p.Log.PromoPosition,
				OrganicPos:  p.Log.Position,
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func (f *Fetcher) requestURL(request catalog.SearchRequest) string {
	params := url.Values{}
	for k, v := range fixedParams {
		params.Set(k, v)
	}
	params.Set("query", request.Query)
	params.Set("dest", request.Dest)
	params.Set("page", strconv.Itoa(request.Page))
	return f.cfg.BaseURL + "?" + params.Encode()
}

// get runs one HTTP GET through a cloned collector and returns the raw body.
func (f *Fetcher) get(ctx context.Context, target string) ([]byte, int, error) {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	var (
		body     []byte
		status   int
		fetchErr error
	)
	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		// A request-scoped deadline is retryable; outright cancellation
		// is not.
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, 0, &catalog.TransientError{Err: ctx.Err()}
		}
		return nil, 0, ctx.Err()
	case err := <-done:
		if err == nil && fetchErr == nil {
			return body, status, nil
		}
	}

	cause := fetchErr
	if cause == nil {
		cause = fmt.Errorf("visit %s failed", target)
	}
	return nil, status, classify(status, cause)
}

// classify sorts HTTP failures into the retryable/terminal taxonomy.
func classify(status int, err error) error {
	switch {
	case status >= 500 || status == http.StatusTooManyRequests:
		return &catalog.TransientError{Err: fmt.Errorf("catalog returned %d: %w", status, err)}
	case status >= 400:
		return &catalog.PermanentError{Err: fmt.Errorf("catalog returned %d: %w", status, err)}
	default:
		// No response at all: timeouts and connection failures are
		// worth retrying.
		return &catalog.TransientError{Err: err}
	}
}

func (f *Fetcher) archiveResponse(ctx context.Context, request catalog.SearchRequest, body []byte) {
	name := f.objectName(request)
	if err := f.archiver.Save(ctx, name, body); err != nil {
		f.logger.Warn("failed to archive catalog response",
			zap.String("object", name),
			zap.Error(err),
		)
	}
}

func (f *Fetcher) objectName(request catalog.SearchRequest) string {
	queryHash := fmt.Sprintf("%x", sha256.Sum256([]byte(request.Query+"|"+request.Dest)))
	return path.Join(
		f.clock.Now().Format("2006-01-02"),
		queryHash[:16],
		fmt.Sprintf("page-%d.json", request.Page),
	)
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
