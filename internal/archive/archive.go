// Package archive defines the interface for archiving raw catalog
// responses. The archive exists for auditing rank disputes; the engine
// works identically with archiving disabled.
package archive

import (
	"context"
)

// Provider abstracts the operation of saving a raw response body.
type Provider interface {
	// Save uploads data to a specified object path/key in the blob store.
	Save(ctx context.Context, objectName string, data []byte) error
}

// NoOpProvider discards everything. It is the default when no archive
// bucket is configured.
type NoOpProvider struct{}

// Save for NoOpProvider does nothing and always returns nil.
func (n *NoOpProvider) Save(_ context.Context, _ string, _ []byte) error {
	return nil
}
