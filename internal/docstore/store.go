// Package docstore layers schema defaulting and self-write suppression on
// top of a raw storage backend. It is the only component that touches the
// storage port; everything above it sees fully-defaulted documents.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/evhart/bivouac/internal/logging"
	"github.com/evhart/bivouac/pkg/domain"
	"github.com/evhart/bivouac/pkg/ports"
)

// Store reads and writes the session's documents. Reads always return a
// fully-defaulted blob: a never-written document reads as its defaults, and
// stored blobs are gap-filled through domain.MergeMissing before use.
//
// Writes mark the suppression ledger first, so the backend's own change
// notification for that write can be recognized and absorbed exactly once.
type Store struct {
	backend ports.Storage
	ledger  *Ledger
	logger  *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a document store over a raw storage backend.
func New(backend ports.Storage, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		ledger:  NewLedger(),
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ledger exposes the suppression ledger so the host loop can match incoming
// change notifications against pending self-writes.
func (s *Store) Ledger() *Ledger {
	return s.ledger
}

// ReadBlob returns the defaulted blob for a document. A key that was never
// written is not an error; it reads as pure defaults.
func (s *Store) ReadBlob(ctx context.Context, name domain.DocName) (map[string]any, error) {
	stored, err := s.backend.Load(ctx, name)
	if err != nil {
		if errors.Is(err, domain.ErrDocumentNotFound) {
			return domain.DefaultDoc(name), nil
		}
		return nil, fmt.Errorf("load document %q: %w", name, err)
	}
	return domain.MergeMissing(stored, domain.DefaultDoc(name)), nil
}

// WriteBlob persists a raw blob under a document key, marking the ledger
// before the backend call so the resulting notification is self-attributed.
func (s *Store) WriteBlob(ctx context.Context, name domain.DocName, blob map[string]any) error {
	s.ledger.Mark(name)
	if err := s.backend.Save(ctx, name, blob); err != nil {
		// The write never happened; take the mark back or the next
		// external notification for this key would be swallowed.
		s.ledger.Absorb(name)
		return fmt.Errorf("save document %q: %w", name, err)
	}
	s.logger.Debug("document written", "doc", name)
	return nil
}

// Write persists a typed document.
func (s *Store) Write(ctx context.Context, name domain.DocName, doc any) error {
	return s.WriteBlob(ctx, name, domain.ToBlob(doc))
}

// Read loads and decodes a typed, fully-defaulted document.
func Read[T any](ctx context.Context, s *Store, name domain.DocName) (T, error) {
	blob, err := s.ReadBlob(ctx, name)
	if err != nil {
		var zero T
		return zero, err
	}
	return domain.DecodeDoc[T](blob)
}
