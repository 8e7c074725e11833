package catalog

import (
	"strings"
	"time"
)

// Mode selects how search results are matched.
type Mode string

// Search modes persisted alongside snapshots.
const (
	// ModeBrand keeps every result whose brand matches; many matches per run.
	ModeBrand Mode = "brand"
	// ModeArticle stops at the first result whose identifier matches; at most one match.
	ModeArticle Mode = "article"
)

// SearchRequest identifies a single catalog result page. Immutable,
// constructed per fetch attempt.
type SearchRequest struct {
	Query string
	Dest  string
	Page  int
}

// Promotion carries paid-placement positions reported by the catalog for a
// promoted item.
type Promotion struct {
	PromotedPos int `json:"promoted_pos"`
	OrganicPos  int `json:"organic_pos"`
}

// CatalogItem is the normalized form of one raw result returned by the
// catalog search API.
type CatalogItem struct {
	ID        int64
	Brand     string
	Name      string
	Promotion *Promotion
}

// Search is one unit of tracking work: a query text plus the mode-specific
// discriminator and the destination region it runs against.
type Search struct {
	Query   string
	Mode    Mode
	Brand   string
	Article int64
	City    string
	Dest    string
}

// Matches reports whether the item satisfies this search's predicate.
func (s Search) Matches(item CatalogItem) bool {
	switch s.Mode {
	case ModeArticle:
		return item.ID == s.Article
	default:
		return strings.EqualFold(item.Brand, s.Brand)
	}
}

// Match is one located product with its composite rank. Within a single
// aggregation run at most one Match per identifier survives, always the one
// with the smallest Rank.
type Match struct {
	ID         int64      `json:"id"`
	Brand      string     `json:"brand"`
	Name       string     `json:"name"`
	Page       int        `json:"page"`
	Index      int        `json:"index"`
	Rank       int        `json:"rank"`
	City       string     `json:"city"`
	Query      string     `json:"query"`
	ObservedAt time.Time  `json:"observed_at"`
	ImageURL   string     `json:"image_url"`
	Promotion  *Promotion `json:"promotion,omitempty"`
}

// Snapshot is the persisted, append-only result of executing one search.
type Snapshot struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Mode      Mode      `json:"mode"`
	Query     string    `json:"query"`
	City      string    `json:"city"`
	Matches   []Match   `json:"matches"`
	CreatedAt time.Time `json:"created_at"`
	AutoQuery bool      `json:"auto_query"`
}
