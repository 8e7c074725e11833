package catalogapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sellermetrics/position-tracker/internal/catalog"
)

const productEnvelope = `{
  "data": {
    "products": [
      {"id": 100123456, "brand": "Acme", "name": "Платье летнее"},
      {"id": 100123457, "brand": "Acme", "name": "Платье вечернее", "log": {"promoPosition": 3, "position": 41}}
    ]
  }
}`

func testFetcher(t *testing.T, handler http.HandlerFunc) *Fetcher {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{BaseURL: server.URL, Timeout: 2 * time.Second}, nil, nil, zap.NewNop())
}

func TestFetchDecodesProducts(t *testing.T) {
	var gotQuery, gotDest, gotPage string
	fetcher := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		gotQuery = q.Get("query")
		gotDest = q.Get("dest")
		gotPage = q.Get("page")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(productEnvelope))
	})

	items, err := fetcher.Fetch(context.Background(), catalog.SearchRequest{
		Query: "платье",
		Dest:  "-1257786",
		Page:  2,
	})
	require.NoError(t, err)
	require.Equal(t, "платье", gotQuery)
	require.Equal(t, "-1257786", gotDest)
	require.Equal(t, "2", gotPage)

	require.Len(t, items, 2)
	require.Equal(t, int64(100123456), items[0].ID)
	require.Equal(t, "Acme", items[0].Brand)
	require.Nil(t, items[0].Promotion)
	require.NotNil(t, items[1].Promotion)
	require.Equal(t, 3, items[1].Promotion.PromotedPos)
	require.Equal(t, 41, items[1].Promotion.OrganicPos)
}

func TestFetchSendsFixedParams(t *testing.T) {
	var got map[string]string
	fetcher := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		got = map[string]string{}
		for k := range r.URL.Query() {
			got[k] = r.URL.Query().Get(k)
		}
		_, _ = w.Write([]byte(`{"data":{"products":[]}}`))
	})

	_, err := fetcher.Fetch(context.Background(), catalog.SearchRequest{Query: "платье", Dest: "-1257786", Page: 1})
	require.NoError(t, err)
	require.Equal(t, "1", got["appType"])
	require.Equal(t, "rub", got["curr"])
	require.Equal(t, "ru", got["lang"])
	require.Equal(t, "popular", got["sort"])
	require.Equal(t, "catalog", got["resultset"])
	require.Equal(t, "30", got["spp"])
}

func TestFetchEmptyPage(t *testing.T) {
	fetcher := testFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"products":[]}}`))
	})

	items, err := fetcher.Fetch(context.Background(), catalog.SearchRequest{Query: "платье", Page: 1})
	require.NoError(t, err)
	require.Empty(t, items)
}

func TestFetchServerErrorIsTransient(t *testing.T) {
	fetcher := testFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := fetcher.Fetch(context.Background(), catalog.SearchRequest{Query: "платье", Page: 1})
	require.Error(t, err)
	var transient *catalog.TransientError
	require.ErrorAs(t, err, &transient)
}

func TestFetchTooManyRequestsIsTransient(t *testing.T) {
	fetcher := testFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := fetcher.Fetch(context.Background(), catalog.SearchRequest{Query: "платье", Page: 1})
	var transient *catalog.TransientError
	require.ErrorAs(t, err, &transient)
}

func TestFetchRequestDeadlineIsTransient(t *testing.T) {
	fetcher := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		_, _ = w.Write([]byte(`{"data":{"products":[]}}`))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := fetcher.Fetch(ctx, catalog.SearchRequest{Query: "платье", Page: 1})
	require.Error(t, err)
	var transient *catalog.TransientError
	require.ErrorAs(t, err, &transient)
	require.True(t, catalog.IsTransient(err))
}

func TestFetchSlowCatalogExhaustsRetryBudget(t *testing.T) {
	fetcher := testFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		_, _ = w.Write([]byte(`{"data":{"products":[]}}`))
	})

	policy := catalog.RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, RequestTimeout: 50 * time.Millisecond}
	_, err := catalog.FetchWithRetry(context.Background(), fetcher, policy, catalog.SearchRequest{Query: "платье", Page: 3})
	require.Error(t, err)

	var exhausted *catalog.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Equal(t, 3, exhausted.Page)
}

func TestFetchClientErrorIsPermanent(t *testing.T) {
	fetcher := testFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := fetcher.Fetch(context.Background(), catalog.SearchRequest{Query: "платье", Page: 1})
	var permanent *catalog.PermanentError
	require.ErrorAs(t, err, &permanent)
}

func TestFetchMissingDataEnvelopeIsPermanent(t *testing.T) {
	fetcher := testFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := fetcher.Fetch(context.Background(), catalog.SearchRequest{Query: "платье", Page: 1})
	var permanent *catalog.PermanentError
	require.ErrorAs(t, err, &permanent)
}

func TestFetchMalformedJSONIsPermanent(t *testing.T) {
	fetcher := testFetcher(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":`))
	})

	_, err := fetcher.Fetch(context.Background(), catalog.SearchRequest{Query: "платье", Page: 1})
	var permanent *catalog.PermanentError
	require.ErrorAs(t, err, &permanent)
}

// recordingArchiver captures archived bodies.
type recordingArchiver struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (a *recordingArchiver) Save(_ context.Context, objectName string, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.objects == nil {
		a.objects = map[string][]byte{}
	}
	a.objects[objectName] = append([]byte(nil), data...)
	return nil
}

func TestFetchArchivesRawResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(productEnvelope))
	}))
	t.Cleanup(server.Close)

	archiver := &recordingArchiver{}
	fetcher := New(Config{BaseURL: server.URL, Timeout: 2 * time.Second}, archiver, nil, zap.NewNop())

	_, err := fetcher.Fetch(context.Background(), catalog.SearchRequest{Query: "платье", Dest: "-1257786", Page: 4})
	require.NoError(t, err)

	archiver.mu.Lock()
	defer archiver.mu.Unlock()
	require.Len(t, archiver.objects, 1)
	for name, body := range archiver.objects {
		require.Contains(t, name, "page-4.json")
		require.JSONEq(t, productEnvelope, string(body))
	}
}
