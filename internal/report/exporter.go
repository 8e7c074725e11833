package report

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sellermetrics/position-tracker/internal/catalog"
	"github.com/sellermetrics/position-tracker/internal/metrics"
)

// Exporter forwards snapshots to the sink behind a token-bucket limiter, so
// a batch of users cannot exceed the sink's request budget.
type Exporter struct {
	sink    Sink
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewExporter builds an Exporter. rps <= 0 disables rate limiting.
func NewExporter(sink Sink, rps float64, burst int, logger *zap.Logger) *Exporter {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{
		sink:    sink,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

// Export appends the snapshot's rows to the sink. Empty snapshots export
// nothing. Failures return a SinkError; the caller's snapshot stays
// persisted either way.
func (e *Exporter) Export(ctx context.Context, snapshot catalog.Snapshot) error {
	rows := Rows(snapshot)
	if len(rows) == 0 {
		return nil
	}
	if err := e.limiter.Wait(ctx); err != nil {
		return &SinkError{Err: err}
	}

	target := TargetFor(snapshot.Mode)
	if err := e.sink.AppendRows(ctx, target, rows, HasPromoted(snapshot)); err != nil {
		metrics.IncSinkError()
		e.logger.Error("sink append failed",
			zap.String("snapshot_id", snapshot.ID),
			zap.String("target", string(target)),
			zap.Error(err),
		)
		return &SinkError{Err: err}
	}
	metrics.AddSinkRows(string(target), len(rows))
	return nil
}
