package domain

// ScopePolicy selects which untracked entities qualify for environment sync.
//
// Tracked entities are handled by the reconciliation pass regardless; the
// scope only widens the candidate set beyond explicit per-entity selection.
type ScopePolicy string

const (
	// ScopeSceneTracked limits sync to tracked entities in the current
	// scene. It contributes no extra candidates: tracked scene members are
	// already in the pass.
	ScopeSceneTracked ScopePolicy = "scene-tracked"

	// ScopeNonTracked includes every known entity that is not tracked,
	// on scene or off.
	ScopeNonTracked ScopePolicy = "non-tracked"

	// ScopeAll includes every known entity.
	ScopeAll ScopePolicy = "all"
)

// ValidScope reports whether p is one of the three policies.
func ValidScope(p ScopePolicy) bool {
	switch p {
	case ScopeSceneTracked, ScopeNonTracked, ScopeAll:
		return true
	}
	return false
}
