// Package loam keeps the session documents as plain files in a Loam
// repository, one document per file. The files stay hand-editable: Loam's
// watcher reports every change, including edits made outside the process,
// which the host treats as external writes.
package loam

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/aretw0/loam"

	"github.com/evhart/bivouac/internal/logging"
	"github.com/evhart/bivouac/pkg/domain"
)

// Store implements ports.WatchableStorage on a Loam repository.
type Store struct {
	repo   *loam.TypedRepository[map[string]any]
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Open initializes a Loam repository at the given path and wraps it as
// document storage. Versioning is off: the documents are live session state,
// not history.
func Open(path string, opts ...Option) (*Store, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	repo, err := loam.Init(absPath, loam.WithVersioning(false))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}

	s := &Store{
		repo:   loam.NewTypedRepository[map[string]any](repo),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Save writes the blob to the document's file.
func (s *Store) Save(ctx context.Context, name domain.DocName, blob map[string]any) error {
	err := s.repo.Save(ctx, &loam.DocumentModel[map[string]any]{
		ID:   string(name),
		Data: blob,
	})
	if err != nil {
		return fmt.Errorf("loam save failed for %s: %w", name, err)
	}
	return nil
}

// Load reads the blob from the document's file.
func (s *Store) Load(ctx context.Context, name domain.DocName) (map[string]any, error) {
	doc, err := s.repo.Get(ctx, string(name))
	if err != nil {
		// Loam's not-found error is adapter-specific; distinguish a
		// missing document from a broken one by listing.
		names, listErr := s.List(ctx)
		if listErr == nil && !contains(names, name) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("loam get failed for %s: %w", name, err)
	}
	return doc.Data, nil
}

// List returns the session documents present in the repository. Stray files
// that are not session documents are ignored.
func (s *Store) List(ctx context.Context) ([]domain.DocName, error) {
	docs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	var names []domain.DocName
	for _, doc := range docs {
		name := domain.DocName(trimExtension(doc.ID))
		if contains(domain.DocNames, name) {
			names = append(names, name)
		}
	}
	return names, nil
}

// Watch reports every changed document, whoever wrote it. The channel
// closes when ctx is done.
func (s *Store) Watch(ctx context.Context) (<-chan domain.DocName, error) {
	events, err := s.repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan domain.DocName, 16)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				name := domain.DocName(trimExtension(evt.ID))
				if !contains(domain.DocNames, name) {
					s.logger.Debug("ignoring change to non-document file", "id", evt.ID)
					continue
				}
				select {
				case ch <- name:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

// Close is a no-op: Loam holds no resources beyond per-Watch watchers,
// which are tied to their contexts.
func (s *Store) Close() error {
	return nil
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}

func contains(names []domain.DocName, name domain.DocName) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
