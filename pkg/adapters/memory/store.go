// Package memory provides in-process adapters for every Bivouac port. They
// back the test suites and single-process embeddings where no external
// backend is wanted.
package memory

import (
	"context"
	"sync"

	"github.com/evhart/bivouac/pkg/domain"
)

// Store implements ports.WatchableStorage in memory.
// Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	data     map[domain.DocName]map[string]any
	watchers []chan domain.DocName
}

// NewStore creates a new in-memory document storage.
func NewStore() *Store {
	return &Store{
		data: make(map[domain.DocName]map[string]any),
	}
}

// Save persists a deep copy of the blob, then notifies watchers.
func (s *Store) Save(ctx context.Context, key domain.DocName, blob map[string]any) error {
	s.mu.Lock()
	s.data[key] = copyBlob(blob)
	watchers := make([]chan domain.DocName, len(s.watchers))
	copy(watchers, s.watchers)
	s.mu.Unlock()

	for _, w := range watchers {
		// Watchers that stopped draining lose notifications rather than
		// block writers.
		select {
		case w <- key:
		default:
		}
	}
	return nil
}

// Load retrieves a copy of the stored blob.
func (s *Store) Load(ctx context.Context, key domain.DocName) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	blob, ok := s.data[key]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return copyBlob(blob), nil
}

// List returns the stored document keys.
func (s *Store) List(ctx context.Context) ([]domain.DocName, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]domain.DocName, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

// Watch returns a channel signaled with the key of each save, including this
// process's own.
func (s *Store) Watch(ctx context.Context) (<-chan domain.DocName, error) {
	ch := make(chan domain.DocName, 16)

	s.mu.Lock()
	s.watchers = append(s.watchers, ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		for i, w := range s.watchers {
			if w == ch {
				s.watchers = append(s.watchers[:i], s.watchers[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

// Close drops all stored documents.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[domain.DocName]map[string]any)
	return nil
}

// copyBlob deep-copies the map layers of a blob so the caller and the store
// never share mutable structure. Leaf values are treated as immutable.
func copyBlob(blob map[string]any) map[string]any {
	out := make(map[string]any, len(blob))
	for k, v := range blob {
		if m, ok := v.(map[string]any); ok {
			out[k] = copyBlob(m)
			continue
		}
		if l, ok := v.([]any); ok {
			cp := make([]any, len(l))
			for i, item := range l {
				if m, ok := item.(map[string]any); ok {
					cp[i] = copyBlob(m)
				} else {
					cp[i] = item
				}
			}
			out[k] = cp
			continue
		}
		out[k] = v
	}
	return out
}
