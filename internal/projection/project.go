// Package projection maps (global context, entity) to the desired effect
// payloads per category. It is pure: no I/O, no randomness, no clock.
package projection

import "github.com/evhart/bivouac/pkg/domain"

// Options carries per-pass precomputations. The reconciliation engine
// derives the tracked set and scope candidates once per pass and hands them
// to every Project call; when left nil they are recomputed from the context.
type Options struct {
	Tracked         []domain.EntityRef
	ScopeCandidates []domain.EntityRef
}

// Project computes the desired effects for one entity. A nil category means
// "must not exist"; the absence of a category is a valid terminal state.
func Project(g domain.GlobalContext, e domain.EntityRef, opts Options) domain.DesiredEffects {
	tracked := opts.Tracked
	if tracked == nil {
		tracked = g.Tracked()
	}
	candidates := opts.ScopeCandidates
	if candidates == nil {
		candidates = g.ScopeCandidates()
	}

	return domain.DesiredEffects{
		Aura:        auraPayload(g, e, tracked),
		Injury:      injuryPayload(g, e),
		Environment: environmentPayload(g, e, candidates),
	}
}

// auraPayload is nil iff the sync mode is off or the entity is outside the
// applicable scope (party: tracked; scene: tracked and on scene).
func auraPayload(g domain.GlobalContext, e domain.EntityRef, tracked []domain.EntityRef) *domain.EffectPayload {
	switch g.Sync.Mode {
	case domain.SyncParty:
		if !contains(tracked, e) {
			return nil
		}
	case domain.SyncScene:
		if !contains(tracked, e) || !g.InScene(e) {
			return nil
		}
	default:
		return nil
	}

	data := map[string]any{
		"score":     g.Reputation.Score,
		"notoriety": g.Reputation.Notoriety,
	}
	if slot := g.WatchSlotOf(e); slot != "" {
		data["watchSlot"] = slot
	}
	if resource, ok := g.Supplies.Bindings[e]; ok {
		data["supply"] = resource
		data["supplyLevel"] = g.Supplies.Levels[resource]
	}
	return &domain.EffectPayload{
		Label: "Party Integration",
		Icon:  "aura",
		Data:  data,
	}
}

// injuryPayload is present iff the entity has at least one injury record.
// Stabilized injuries still render; only the absence of records clears it.
func injuryPayload(g domain.GlobalContext, e domain.EntityRef) *domain.EffectPayload {
	records := g.Injuries.Records[e]
	if len(records) == 0 {
		return nil
	}

	worst := 0
	recovery := 0
	stabilized := true
	for _, rec := range records {
		if rec.Severity > worst {
			worst = rec.Severity
		}
		if rec.RecoveryDays > recovery {
			recovery = rec.RecoveryDays
		}
		if !rec.Stabilized {
			stabilized = false
		}
	}

	label := "Injured"
	if stabilized {
		label = "Injured (stabilized)"
	}
	return &domain.EffectPayload{
		Label: label,
		Icon:  "injury",
		Data: map[string]any{
			"count":        len(records),
			"severity":     worst,
			"recoveryDays": recovery,
			"stabilized":   stabilized,
		},
	}
}

// environmentPayload is present iff a hazard is active and the entity is
// explicitly selected, or non-tracked sync is on and the entity qualifies
// under the scope policy. Explicit selection wins the tie-break.
func environmentPayload(g domain.GlobalContext, e domain.EntityRef, candidates []domain.EntityRef) *domain.EffectPayload {
	if !g.Hazard.Active() {
		return nil
	}

	source := ""
	switch {
	case g.Hazard.IsSelected(e):
		source = "selected"
	case g.Hazard.SyncNonTracked && contains(candidates, e):
		source = "scope"
	default:
		return nil
	}

	label := g.Hazard.Preset
	icon := "environment"
	if mod, ok := g.Modifiers[g.Hazard.Preset]; ok {
		label = mod.Label
	}
	return &domain.EffectPayload{
		Label: label,
		Icon:  icon,
		Data: map[string]any{
			// DC and bonus pass through verbatim from the context.
			"dc":     g.Hazard.DC,
			"bonus":  g.Hazard.Bonus,
			"source": source,
		},
	}
}

func contains(list []domain.EntityRef, e domain.EntityRef) bool {
	for _, m := range list {
		if m == e {
			return true
		}
	}
	return false
}
