// Package report exports tracking snapshots to the external reporting
// sink. The sink is a spreadsheet-like append-only target with its own
// rate limits; export failures never roll back a persisted snapshot.
package report

import (
	"context"
	"fmt"
	"strconv"

	"github.com/sellermetrics/position-tracker/internal/catalog"
)

// SheetTarget names the per-mode sheet rows are appended to.
type SheetTarget string

// Sheet targets for the two search modes.
const (
	TargetBrand   SheetTarget = "brand-positions"
	TargetArticle SheetTarget = "article-positions"
)

// TargetFor maps a search mode to its sheet target.
func TargetFor(mode catalog.Mode) SheetTarget {
	if mode == catalog.ModeArticle {
		return TargetArticle
	}
	return TargetBrand
}

// Sink appends rows to the external report target. Implementations are
// treated as black boxes; highlightPromoted asks the target to mark rows
// containing promoted placements.
type Sink interface {
	AppendRows(ctx context.Context, target SheetTarget, rows [][]string, highlightPromoted bool) error
}

// SinkError wraps a sink rejection or timeout. The snapshot stays
// persisted; the export is simply lost.
type SinkError struct {
	Err error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("reporting sink: %v", e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// Rows renders a snapshot into 9-field export rows:
// (query, identifier-or-counterpart, city, imageURL,
// counterpart-or-identifier, name, rank, time, date).
// Brand-mode rows put the product identifier in field 2 and the brand in
// field 5; article-mode rows swap the two.
func Rows(snapshot catalog.Snapshot) [][]string {
	rows := make([][]string, 0, len(snapshot.Matches))
	for _, m := range snapshot.Matches {
		id := strconv.FormatInt(m.ID, 10)
		second, fifth := id, m.Brand
		if snapshot.Mode == catalog.ModeArticle {
			second, fifth = m.Brand, id
		}
		rows = append(rows, []string{
			m.Query,
			second,
			m.City,
			m.ImageURL,
			fifth,
			m.Name,
			rankDisplay(m),
			m.ObservedAt.Format("15:04"),
			m.ObservedAt.Format("02.01.2006"),
		})
	}
	return rows
}

// rankDisplay renders the composite rank; promoted placements also show
// the paid position.
func rankDisplay(m catalog.Match) string {
	if m.Promotion != nil {
		return fmt.Sprintf("%d (промо %d)", m.Rank, m.Promotion.PromotedPos)
	}
	return strconv.Itoa(m.Rank)
}

// HasPromoted reports whether any match in the snapshot carries promotion
// info.
func HasPromoted(snapshot catalog.Snapshot) bool {
	for _, m := range snapshot.Matches {
		if m.Promotion != nil {
			return true
		}
	}
	return false
}
