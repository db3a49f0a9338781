package ports

import (
	"context"

	"github.com/evhart/bivouac/pkg/domain"
)

// EffectPort is the upsert/delete surface for materialized effects. The port
// guarantees at most one live effect per (entity, category); Apply on an
// existing pair replaces its payload and keeps (or reissues) the handle.
//
// What an effect looks like to end users (token aura, status icon, overlay)
// is the adapter's business; the engine only cares about identity and
// content equality.
type EffectPort interface {
	// List returns the live effects attached to an entity.
	List(ctx context.Context, entity domain.EntityRef) ([]domain.Effect, error)

	// Apply upserts the effect for (entity, category) and returns its
	// handle.
	Apply(ctx context.Context, entity domain.EntityRef, category domain.EffectCategory, payload domain.EffectPayload) (domain.EffectID, error)

	// Remove deletes the effect for (entity, category). Removing an
	// absent effect is a no-op.
	Remove(ctx context.Context, entity domain.EntityRef, category domain.EffectCategory) error

	// Resolve looks an effect up by handle. ok is false when the handle
	// has gone stale; the engine then recreates instead of failing.
	Resolve(ctx context.Context, id domain.EffectID) (domain.Effect, bool, error)

	// Entities returns every entity currently carrying at least one
	// effect. The reconciliation engine uses it to find strays left by
	// entities that fell out of tracking.
	Entities(ctx context.Context) ([]domain.EntityRef, error)
}
