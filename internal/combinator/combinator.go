// Package combinator derives the distinct set of searches a user has ever
// issued from their persisted query history. History records store multiple
// semicolon-joined sub-queries per field; sub-field i of one field belongs
// to sub-field i of every other field in the same record.
package combinator

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sellermetrics/position-tracker/internal/catalog"
)

// Combinator turns persisted query records into deduplicated searches.
type Combinator struct {
	store catalog.QueryStore
}

// New constructs a Combinator.
func New(store catalog.QueryStore) *Combinator {
	return &Combinator{store: store}
}

// ForUser returns the user's distinct brand-mode and article-mode searches.
func (c *Combinator) ForUser(ctx context.Context, userID string) (brand, article []catalog.Search, err error) {
	brandRecords, err := c.store.ListQueries(ctx, userID, catalog.ModeBrand)
	if err != nil {
		return nil, nil, fmt.Errorf("list brand queries: %w", err)
	}
	articleRecords, err := c.store.ListQueries(ctx, userID, catalog.ModeArticle)
	if err != nil {
		return nil, nil, fmt.Errorf("list article queries: %w", err)
	}
	return Combinations(brandRecords, catalog.ModeBrand), Combinations(articleRecords, catalog.ModeArticle), nil
}

// Combinations expands every record's semicolon-joined sub-fields
// positionally and deduplicates the result by the lowercase
// (text, discriminator, city) tuple. Missing dest codes are reconstructed
// from the city lookup table. Records whose fields disagree on sub-field
// count are bounded by the shortest field; blank slots are dropped.
func Combinations(records []catalog.QueryRecord, mode catalog.Mode) []catalog.Search {
	seen := make(map[string]struct{})
	var out []catalog.Search

	for _, record := range records {
		queries := splitJoined(record.Query)
		discriminators := splitJoined(record.Discriminator)
		cities := splitJoined(record.City)
		dests := splitJoined(record.Dest)

		n := len(queries)
		if len(discriminators) < n {
			n = len(discriminators)
		}
		if len(cities) < n {
			n = len(cities)
		}

		for i := 0; i < n; i++ {
			query := queries[i]
			discriminator := discriminators[i]
			city := cities[i]
			if query == "" || discriminator == "" {
				continue
			}

			key := strings.ToLower(query) + "|" + strings.ToLower(discriminator) + "|" + strings.ToLower(city)
			if _, dup := seen[key]; dup {
				continue
			}

			search, ok := buildSearch(mode, query, discriminator, city, destAt(dests, i, city))
			if !ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, search)
		}
	}
	return out
}

func buildSearch(mode catalog.Mode, query, discriminator, city, dest string) (catalog.Search, bool) {
	search := catalog.Search{
		Query: query,
		Mode:  mode,
		City:  city,
		Dest:  dest,
	}
	switch mode {
	case catalog.ModeArticle:
		id, err := strconv.ParseInt(discriminator, 10, 64)
		if err != nil {
			// A non-numeric article identifier cannot be tracked.
			return catalog.Search{}, false
		}
		search.Article = id
	default:
		search.Brand = discriminator
	}
	return search, true
}

func destAt(dests []string, i int, city string) string {
	if i < len(dests) && dests[i] != "" {
		return dests[i]
	}
	return DestForCity(city)
}

func splitJoined(field string) []string {
	parts := strings.Split(field, ";")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}
