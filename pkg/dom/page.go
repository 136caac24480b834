package dom

import "context"

// Page is a live page that can be snapshotted and that reports mutations.
type Page interface {
	// Document returns a fresh snapshot of the page.
	Document(ctx context.Context) (*Document, error)

	// Mutations delivers mutation batches until the page is closed.
	Mutations() <-chan Batch

	// HasFocus reports whether the page currently has input focus.
	HasFocus(ctx context.Context) (bool, error)

	// Close releases the page connection.
	Close() error
}
