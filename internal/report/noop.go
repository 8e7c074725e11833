package report

import "context"

// NoOpSink discards rows. Useful for local runs without sheet credentials.
type NoOpSink struct{}

// AppendRows for NoOpSink does nothing and always returns nil.
func (NoOpSink) AppendRows(_ context.Context, _ SheetTarget, _ [][]string, _ bool) error {
	return nil
}
