package catalog

import "sort"

// Dedupe keeps exactly one Match per product identifier, retaining the
// smallest composite rank whenever the same product was observed on more
// than one page (pages shift between requests, so duplicates are expected).
// The result is sorted ascending by rank. The dedup map is scoped to this
// call; aggregation runs share no state.
func Dedupe(matches []Match) []Match {
	best := make(map[int64]Match, len(matches))
	for _, m := range matches {
		current, seen := best[m.ID]
		if !seen || m.Rank < current.Rank {
			best[m.ID] = m
		}
	}

	out := make([]Match, 0, len(best))
	for _, m := range best {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}

// First returns the single article-mode match, or nil when the run found
// nothing. Completion order within a batch is unordered, so when pages of
// the same batch each saw the target the best-known rank wins.
func First(matches []Match) *Match {
	if len(matches) == 0 {
		return nil
	}
	best := matches[0]
	for _, m := range matches[1:] {
		if m.Rank < best.Rank {
			best = m
		}
	}
	return &best
}
