package catalog

import "context"

// Engine ties pagination and aggregation together: one Execute call is one
// aggregation run for one search.
type Engine struct {
	pager *Pager
}

// NewEngine constructs an Engine around an existing Pager.
func NewEngine(pager *Pager) *Engine {
	return &Engine{pager: pager}
}

// Execute runs the search and returns the finalized match list. Brand mode
// returns the deduplicated matches sorted ascending by rank; article mode
// returns at most one match.
func (e *Engine) Execute(ctx context.Context, search Search) ([]Match, error) {
	candidates, err := e.pager.Run(ctx, search)
	if err != nil {
		return nil, err
	}
	if search.Mode == ModeArticle {
		if m := First(candidates); m != nil {
			return []Match{*m}, nil
		}
		return nil, nil
	}
	return Dedupe(candidates), nil
}
