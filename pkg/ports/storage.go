package ports

import (
	"context"

	"github.com/evhart/bivouac/pkg/domain"
)

// Storage persists raw document blobs. Implementations store whatever map
// they are given and return it unchanged; defaulting happens above this
// port, in the document store.
type Storage interface {
	// Save persists the blob under the given document key.
	Save(ctx context.Context, key domain.DocName, blob map[string]any) error

	// Load retrieves the blob for a document key.
	// Returns domain.ErrDocumentNotFound if the key was never written.
	Load(ctx context.Context, key domain.DocName) (map[string]any, error)

	// List returns the keys currently present in storage.
	List(ctx context.Context) ([]domain.DocName, error)

	// Close releases backend resources.
	Close() error
}

// WatchableStorage is implemented by backends that emit change
// notifications. The channel carries the document key that changed,
// including changes caused by this process's own Save calls; the suppression
// ledger filters those out upstream.
type WatchableStorage interface {
	Storage

	// Watch returns a channel signaled with the key of each changed
	// document. The channel closes when ctx is done.
	Watch(ctx context.Context) (<-chan domain.DocName, error)
}
