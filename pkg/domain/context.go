package domain

import "sort"

// Modifier is one entry of the static modifier catalog (keyed bonuses the
// projection carries into payloads).
type Modifier struct {
	Key   string `json:"key" yaml:"key"`
	Label string `json:"label" yaml:"label"`
	Bonus int    `json:"bonus" yaml:"bonus"`
}

// ModifierCatalog maps modifier keys to their definitions. It is a pure
// function of static configuration and safe to share between passes.
type ModifierCatalog map[string]Modifier

// GlobalContext is the aggregate read model one reconciliation pass works
// from. It is rebuilt from the documents on every pass and holds no state of
// its own in between.
type GlobalContext struct {
	Watch      WatchDoc
	March      MarchDoc
	Injuries   InjuryDoc
	Hazard     HazardDoc
	Reputation ReputationDoc
	Supplies   SupplyDoc
	Sync       SyncDoc

	// AllEntities is every entity the roster knows about.
	AllEntities []EntityRef
	// SceneEntities is the membership of the active scene; empty when no
	// scene is active (scope resolution then yields empty candidates, not
	// an error).
	SceneEntities []EntityRef

	Modifiers ModifierCatalog
}

// Tracked derives the tracked-entity set: every entity referenced by at
// least one document. Membership is recomputed on demand, never stored.
// The result is sorted for deterministic pass order.
func (g GlobalContext) Tracked() []EntityRef {
	set := make(map[EntityRef]struct{})
	for _, slot := range g.Watch.Slots {
		if slot.Entity != "" {
			set[slot.Entity] = struct{}{}
		}
	}
	for _, rank := range g.March.Ranks {
		for _, e := range rank.Entities {
			if e != "" {
				set[e] = struct{}{}
			}
		}
	}
	for e, records := range g.Injuries.Records {
		if len(records) > 0 {
			set[e] = struct{}{}
		}
	}
	for e := range g.Supplies.Bindings {
		set[e] = struct{}{}
	}
	for _, e := range g.Hazard.Selected {
		if e != "" {
			set[e] = struct{}{}
		}
	}
	out := make([]EntityRef, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsTracked reports whether e is referenced by any document.
func (g GlobalContext) IsTracked(e EntityRef) bool {
	for _, t := range g.Tracked() {
		if t == e {
			return true
		}
	}
	return false
}

// InScene reports whether e belongs to the active scene.
func (g GlobalContext) InScene(e EntityRef) bool {
	for _, s := range g.SceneEntities {
		if s == e {
			return true
		}
	}
	return false
}

// ScopeCandidates resolves the hazard's scope policy into the additional
// entities eligible for environment sync beyond explicit selection.
//
// ScopeSceneTracked contributes nothing (tracked scene members are already
// part of every pass). ScopeNonTracked yields all untracked entities, on
// scene or off. ScopeAll yields everything the roster knows.
func (g GlobalContext) ScopeCandidates() []EntityRef {
	switch g.Hazard.Scope {
	case ScopeNonTracked:
		tracked := make(map[EntityRef]struct{})
		for _, t := range g.Tracked() {
			tracked[t] = struct{}{}
		}
		var out []EntityRef
		for _, e := range g.AllEntities {
			if _, ok := tracked[e]; !ok {
				out = append(out, e)
			}
		}
		return out
	case ScopeAll:
		out := make([]EntityRef, len(g.AllEntities))
		copy(out, g.AllEntities)
		return out
	default:
		return nil
	}
}

// WatchSlotOf returns the slot ID e is assigned to, empty when unassigned.
func (g GlobalContext) WatchSlotOf(e EntityRef) string {
	ids := make([]string, 0, len(g.Watch.Slots))
	for id := range g.Watch.Slots {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if g.Watch.Slots[id].Entity == e {
			return id
		}
	}
	return ""
}
