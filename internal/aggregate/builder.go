// Package aggregate builds the global read model a reconciliation pass works
// from: all documents, roster facts, and the static modifier catalog.
package aggregate

import (
	"context"
	"fmt"
	"sync"

	"github.com/evhart/bivouac/internal/docstore"
	"github.com/evhart/bivouac/pkg/domain"
	"github.com/evhart/bivouac/pkg/ports"
)

// Builder produces a fresh GlobalContext from current state at every call.
// It keeps no state between calls except the memoized modifier catalog,
// which is a pure function of static configuration and only reloaded after
// an explicit InvalidateCatalog.
type Builder struct {
	docs   *docstore.Store
	roster ports.Roster

	catalogSource func() ([]byte, error)

	mu      sync.Mutex
	catalog domain.ModifierCatalog
}

// Option configures the Builder.
type Option func(*Builder)

// WithCatalogSource sets where the modifier catalog YAML comes from.
// Without one the catalog is empty.
func WithCatalogSource(src func() ([]byte, error)) Option {
	return func(b *Builder) {
		b.catalogSource = src
	}
}

// New creates a context builder.
func New(docs *docstore.Store, roster ports.Roster, opts ...Option) *Builder {
	b := &Builder{docs: docs, roster: roster}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build reads every document and the roster and assembles the aggregate.
// The result is a value: callers can hold it across await points without
// seeing later mutations.
func (b *Builder) Build(ctx context.Context) (domain.GlobalContext, error) {
	var g domain.GlobalContext
	var err error

	if g.Watch, err = docstore.Read[domain.WatchDoc](ctx, b.docs, domain.DocWatch); err != nil {
		return g, err
	}
	if g.March, err = docstore.Read[domain.MarchDoc](ctx, b.docs, domain.DocMarch); err != nil {
		return g, err
	}
	if g.Injuries, err = docstore.Read[domain.InjuryDoc](ctx, b.docs, domain.DocInjuries); err != nil {
		return g, err
	}
	if g.Hazard, err = docstore.Read[domain.HazardDoc](ctx, b.docs, domain.DocHazard); err != nil {
		return g, err
	}
	if g.Reputation, err = docstore.Read[domain.ReputationDoc](ctx, b.docs, domain.DocReputation); err != nil {
		return g, err
	}
	if g.Supplies, err = docstore.Read[domain.SupplyDoc](ctx, b.docs, domain.DocSupplies); err != nil {
		return g, err
	}
	if g.Sync, err = docstore.Read[domain.SyncDoc](ctx, b.docs, domain.DocSync); err != nil {
		return g, err
	}

	if g.AllEntities, err = b.roster.Entities(ctx); err != nil {
		return g, fmt.Errorf("roster entities: %w", err)
	}
	if g.SceneEntities, err = b.roster.SceneEntities(ctx); err != nil {
		return g, fmt.Errorf("roster scene: %w", err)
	}

	if g.Modifiers, err = b.Catalog(); err != nil {
		return g, err
	}
	return g, nil
}

// Catalog returns the memoized modifier catalog, loading it on first use.
func (b *Builder) Catalog() (domain.ModifierCatalog, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.catalog != nil {
		return b.catalog, nil
	}
	if b.catalogSource == nil {
		b.catalog = domain.ModifierCatalog{}
		return b.catalog, nil
	}
	data, err := b.catalogSource()
	if err != nil {
		return nil, fmt.Errorf("load modifier catalog: %w", err)
	}
	catalog, err := ParseCatalog(data)
	if err != nil {
		return nil, err
	}
	b.catalog = catalog
	return b.catalog, nil
}

// InvalidateCatalog drops the memoized catalog so the next Build reloads it.
// Call it when the static configuration source changes.
func (b *Builder) InvalidateCatalog() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.catalog = nil
}
