package memory

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"

	"github.com/evhart/bivouac/pkg/domain"
)

// EffectOp records one call against the effect surface, for tests that
// assert on reconciliation behavior (idempotence, coalescing, cleanup).
type EffectOp struct {
	Verb     string // "apply" or "remove"
	Entity   domain.EntityRef
	Category domain.EffectCategory
}

// Effects implements ports.EffectPort in memory.
// Safe for concurrent use.
type Effects struct {
	mu   sync.Mutex
	live map[domain.EntityRef]map[domain.EffectCategory]domain.Effect
	byID map[domain.EffectID]domain.Effect
	ops  []EffectOp

	// FailFor makes Apply fail for the given entities, to exercise the
	// engine's per-entity error isolation.
	FailFor map[domain.EntityRef]error
}

// NewEffects creates an empty effect surface.
func NewEffects() *Effects {
	return &Effects{
		live: make(map[domain.EntityRef]map[domain.EffectCategory]domain.Effect),
		byID: make(map[domain.EffectID]domain.Effect),
	}
}

// List returns the live effects on an entity.
func (e *Effects) List(ctx context.Context, entity domain.EntityRef) ([]domain.Effect, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []domain.Effect
	for _, cat := range domain.EffectCategories {
		if eff, ok := e.live[entity][cat]; ok {
			out = append(out, eff)
		}
	}
	return out, nil
}

// Apply upserts the (entity, category) effect.
func (e *Effects) Apply(ctx context.Context, entity domain.EntityRef, category domain.EffectCategory, payload domain.EffectPayload) (domain.EffectID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err, ok := e.FailFor[entity]; ok {
		return "", err
	}

	e.ops = append(e.ops, EffectOp{Verb: "apply", Entity: entity, Category: category})

	cats, ok := e.live[entity]
	if !ok {
		cats = make(map[domain.EffectCategory]domain.Effect)
		e.live[entity] = cats
	}

	eff, exists := cats[category]
	if exists {
		delete(e.byID, eff.ID)
	} else {
		eff = domain.Effect{
			ID:       domain.EffectID(ulid.Make().String()),
			Entity:   entity,
			Category: category,
		}
	}
	eff.Payload = *payload.Clone()
	cats[category] = eff
	e.byID[eff.ID] = eff
	return eff.ID, nil
}

// Remove deletes the (entity, category) effect; absent is a no-op.
func (e *Effects) Remove(ctx context.Context, entity domain.EntityRef, category domain.EffectCategory) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cats, ok := e.live[entity]
	if !ok {
		return nil
	}
	eff, ok := cats[category]
	if !ok {
		return nil
	}

	e.ops = append(e.ops, EffectOp{Verb: "remove", Entity: entity, Category: category})
	delete(e.byID, eff.ID)
	delete(cats, category)
	if len(cats) == 0 {
		delete(e.live, entity)
	}
	return nil
}

// Resolve looks an effect up by handle.
func (e *Effects) Resolve(ctx context.Context, id domain.EffectID) (domain.Effect, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	eff, ok := e.byID[id]
	return eff, ok, nil
}

// Entities returns every entity carrying at least one effect.
func (e *Effects) Entities(ctx context.Context) ([]domain.EntityRef, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]domain.EntityRef, 0, len(e.live))
	for entity := range e.live {
		out = append(out, entity)
	}
	return out, nil
}

// Ops returns the calls recorded since the last Reset.
func (e *Effects) Ops() []EffectOp {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]EffectOp, len(e.ops))
	copy(out, e.ops)
	return out
}

// Reset clears the recorded call log, not the live effects.
func (e *Effects) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ops = nil
}

// Forget drops the handle index entry for an effect while keeping it live,
// simulating a backend whose references went stale.
func (e *Effects) Forget(id domain.EffectID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.byID, id)
}
