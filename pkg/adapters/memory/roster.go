package memory

import (
	"context"
	"sync"

	"github.com/evhart/bivouac/pkg/domain"
)

// Roster implements ports.Roster from static assignments. The host process
// feeds it whatever its platform knows about players and scenes.
type Roster struct {
	mu         sync.RWMutex
	controlled map[domain.Identity][]domain.EntityRef
	active     map[domain.Identity]bool
	entities   []domain.EntityRef
	scene      []domain.EntityRef
}

// NewRoster creates an empty roster.
func NewRoster() *Roster {
	return &Roster{
		controlled: make(map[domain.Identity][]domain.EntityRef),
		active:     make(map[domain.Identity]bool),
	}
}

// Grant registers an active identity and the entities it controls.
func (r *Roster) Grant(id domain.Identity, entities ...domain.EntityRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.controlled[id] = append(r.controlled[id], entities...)
	r.active[id] = true
}

// Deactivate marks an identity as no longer part of the session.
func (r *Roster) Deactivate(id domain.Identity) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active[id] = false
}

// SetEntities sets the world entity list.
func (r *Roster) SetEntities(entities ...domain.EntityRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entities = entities
}

// SetScene sets the active scene membership; call with no arguments to
// clear the scene.
func (r *Roster) SetScene(entities ...domain.EntityRef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scene = entities
}

// Controlled returns the entities an identity may act for.
func (r *Roster) Controlled(ctx context.Context, id domain.Identity) ([]domain.EntityRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.EntityRef, len(r.controlled[id]))
	copy(out, r.controlled[id])
	return out, nil
}

// Active reports whether the identity is live; unknown identities are not.
func (r *Roster) Active(ctx context.Context, id domain.Identity) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active[id], nil
}

// Entities returns every known entity.
func (r *Roster) Entities(ctx context.Context) ([]domain.EntityRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.EntityRef, len(r.entities))
	copy(out, r.entities)
	return out, nil
}

// SceneEntities returns the active scene membership, empty when no scene.
func (r *Roster) SceneEntities(ctx context.Context) ([]domain.EntityRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.EntityRef, len(r.scene))
	copy(out, r.scene)
	return out, nil
}
