package domain

import "fmt"

// DocName is the well-known key of a shared document.
type DocName string

const (
	DocWatch      DocName = "watch"
	DocMarch      DocName = "march"
	DocInjuries   DocName = "injuries"
	DocHazard     DocName = "hazard"
	DocReputation DocName = "reputation"
	DocSupplies   DocName = "supplies"
	DocSync       DocName = "sync"
)

// DocNames lists every document the engine owns, in a stable order.
var DocNames = []DocName{
	DocWatch,
	DocMarch,
	DocInjuries,
	DocHazard,
	DocReputation,
	DocSupplies,
	DocSync,
}

// DefaultWatchSlots is the number of watch slots created by the default
// builder. Stored documents with more slots keep them (defaults never prune).
const DefaultWatchSlots = 4

// DefaultMarchRanks is the number of marching ranks in a fresh formation.
const DefaultMarchRanks = 3

// HazardNone is the hazard preset meaning "no hazard active".
const HazardNone = "none"

// Sync modes for the integration/aura effect.
const (
	SyncOff   = "off"
	SyncParty = "party"
	SyncScene = "scene"
)

// WatchSlot is one entry of the rest-tracking document.
type WatchSlot struct {
	Entity EntityRef `json:"entity"`
	Notes  string    `json:"notes"`
}

// WatchDoc is the rest-tracking document: who stands which watch.
// While Locked, peer mutations are rejected; the host may still edit.
type WatchDoc struct {
	Locked bool                 `json:"locked"`
	Slots  map[string]WatchSlot `json:"slots"`
}

// MarchRank is one row of the marching formation.
type MarchRank struct {
	Entities []EntityRef `json:"entities"`
	Note     string      `json:"note"`
}

// MarchDoc is the marching-order document.
type MarchDoc struct {
	Ranks []MarchRank `json:"ranks"`
}

// InjuryRecord describes a single injury carried by an entity.
// Stabilized injuries still project a status effect; only the absence of
// records clears it.
type InjuryRecord struct {
	Name         string `json:"name"`
	Severity     int    `json:"severity"`
	Stabilized   bool   `json:"stabilized"`
	RecoveryDays int    `json:"recoveryDays"`
	Notes        string `json:"notes"`
}

// InjuryDoc is the injury registry, host-mutated only.
type InjuryDoc struct {
	Records map[EntityRef][]InjuryRecord `json:"records"`
}

// HazardDoc describes the active environmental hazard.
// DC and Bonus are carried verbatim into environment effect payloads.
type HazardDoc struct {
	Preset         string      `json:"preset"`
	DC             int         `json:"dc"`
	Bonus          int         `json:"bonus"`
	Scope          ScopePolicy `json:"scope"`
	SyncNonTracked bool        `json:"syncNonTracked"`
	Selected       []EntityRef `json:"selected"`
}

// Active reports whether any hazard preset is in force.
func (h HazardDoc) Active() bool {
	return h.Preset != "" && h.Preset != HazardNone
}

// IsSelected reports whether the entity was explicitly picked for the hazard.
func (h HazardDoc) IsSelected(e EntityRef) bool {
	for _, s := range h.Selected {
		if s == e {
			return true
		}
	}
	return false
}

// ReputationDoc tracks the party's standing.
type ReputationDoc struct {
	Score     int    `json:"score"`
	Notoriety string `json:"notoriety"`
}

// SupplyDoc tracks consumable resource levels and which entity carries what.
type SupplyDoc struct {
	Levels   map[string]int       `json:"levels"`
	Bindings map[EntityRef]string `json:"bindings"`
}

// SyncDoc holds the integration/aura sync mode.
type SyncDoc struct {
	Mode string `json:"mode"`
}

// DefaultWatch builds a fresh rest-tracking document.
func DefaultWatch() WatchDoc {
	slots := make(map[string]WatchSlot, DefaultWatchSlots)
	for i := 1; i <= DefaultWatchSlots; i++ {
		slots[fmt.Sprintf("watch-%d", i)] = WatchSlot{}
	}
	return WatchDoc{Slots: slots}
}

// DefaultMarch builds an empty marching formation.
func DefaultMarch() MarchDoc {
	return MarchDoc{Ranks: make([]MarchRank, DefaultMarchRanks)}
}

// DefaultInjuries builds an empty injury registry.
func DefaultInjuries() InjuryDoc {
	return InjuryDoc{Records: make(map[EntityRef][]InjuryRecord)}
}

// DefaultHazard builds the inactive hazard document.
func DefaultHazard() HazardDoc {
	return HazardDoc{
		Preset:   HazardNone,
		Scope:    ScopeSceneTracked,
		Selected: []EntityRef{},
	}
}

// DefaultReputation builds a neutral reputation document.
func DefaultReputation() ReputationDoc {
	return ReputationDoc{Notoriety: "unknown"}
}

// DefaultSupplies builds an empty supply ledger.
func DefaultSupplies() SupplyDoc {
	return SupplyDoc{
		Levels:   make(map[string]int),
		Bindings: make(map[EntityRef]string),
	}
}

// DefaultSync builds the sync document with syncing disabled.
func DefaultSync() SyncDoc {
	return SyncDoc{Mode: SyncOff}
}

// DefaultDoc returns the default blob for a well-known document key.
// It panics on unknown names: document names form a closed set and a miss is
// a programming error, not input.
func DefaultDoc(name DocName) map[string]any {
	switch name {
	case DocWatch:
		return toBlob(DefaultWatch())
	case DocMarch:
		return toBlob(DefaultMarch())
	case DocInjuries:
		return toBlob(DefaultInjuries())
	case DocHazard:
		return toBlob(DefaultHazard())
	case DocReputation:
		return toBlob(DefaultReputation())
	case DocSupplies:
		return toBlob(DefaultSupplies())
	case DocSync:
		return toBlob(DefaultSync())
	}
	panic(fmt.Sprintf("unknown document name %q", name))
}

// KnownDoc reports whether name is one of the engine's documents.
func KnownDoc(name DocName) bool {
	for _, n := range DocNames {
		if n == name {
			return true
		}
	}
	return false
}
