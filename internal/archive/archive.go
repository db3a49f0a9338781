// Package archive lets an operator pull a materialized effect out of the
// live reconciliation set and later put it back unchanged. Reconciliation
// never reads or writes archive entries.
package archive

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/evhart/bivouac/pkg/domain"
	"github.com/evhart/bivouac/pkg/ports"
)

// Entry is an immutable snapshot of one effect at archive time.
type Entry struct {
	ID         string                `json:"id"`
	Entity     domain.EntityRef      `json:"entity"`
	Category   domain.EffectCategory `json:"category"`
	Label      string                `json:"label"`
	Snapshot   domain.EffectPayload  `json:"snapshot"`
	ArchivedAt time.Time             `json:"archivedAt"`
}

// Store holds archive entries and moves effects across the live boundary
// through the effect port.
type Store struct {
	effects ports.EffectPort
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]Entry
}

// Option configures the Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty archive over the given effect port.
func New(effects ports.EffectPort, opts ...Option) *Store {
	s := &Store{
		effects: effects,
		now:     time.Now,
		entries: make(map[string]Entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Archive snapshots the live (entity, category) effect, removes it from the
// live set, and returns the new entry.
func (s *Store) Archive(ctx context.Context, entity domain.EntityRef, category domain.EffectCategory, label string) (Entry, error) {
	live, err := s.effects.List(ctx, entity)
	if err != nil {
		return Entry{}, fmt.Errorf("archive %s/%s: %w", entity, category, err)
	}
	var found *domain.Effect
	for i := range live {
		if live[i].Category == category {
			found = &live[i]
			break
		}
	}
	if found == nil {
		return Entry{}, fmt.Errorf("archive %s/%s: %w", entity, category, domain.ErrEffectNotFound)
	}

	if err := s.effects.Remove(ctx, entity, category); err != nil {
		return Entry{}, fmt.Errorf("archive %s/%s: %w", entity, category, err)
	}

	if label == "" {
		label = found.Payload.Label
	}
	entry := Entry{
		ID:         ulid.Make().String(),
		Entity:     entity,
		Category:   category,
		Label:      label,
		Snapshot:   *found.Payload.Clone(),
		ArchivedAt: s.now(),
	}

	s.mu.Lock()
	s.entries[entry.ID] = entry
	s.mu.Unlock()
	return entry, nil
}

// Restore re-materializes an archived effect with its snapshot content and
// destroys the entry. The restored effect re-enters the live set; the next
// reconciliation pass may re-diff it like anything else.
func (s *Store) Restore(ctx context.Context, id string) (domain.Effect, error) {
	s.mu.Lock()
	entry, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return domain.Effect{}, domain.ErrArchiveEntryNotFound
	}

	effectID, err := s.effects.Apply(ctx, entry.Entity, entry.Category, entry.Snapshot)
	if err != nil {
		return domain.Effect{}, fmt.Errorf("restore %s: %w", id, err)
	}

	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()

	return domain.Effect{
		ID:       effectID,
		Entity:   entry.Entity,
		Category: entry.Category,
		Payload:  entry.Snapshot,
	}, nil
}

// Delete discards an entry without restoring it.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id]; !ok {
		return domain.ErrArchiveEntryNotFound
	}
	delete(s.entries, id)
	return nil
}

// List returns the entries ordered by archive time.
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ArchivedAt.Equal(out[j].ArchivedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ArchivedAt.Before(out[j].ArchivedAt)
	})
	return out
}
