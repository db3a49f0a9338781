package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func trackedScopeContext() GlobalContext {
	// Three entities: A1 tracked and on scene, B1 untracked on scene,
	// C1 untracked off scene.
	ctx := GlobalContext{
		Watch:         DefaultWatch(),
		March:         DefaultMarch(),
		Injuries:      DefaultInjuries(),
		Hazard:        DefaultHazard(),
		Supplies:      DefaultSupplies(),
		AllEntities:   []EntityRef{"A1", "B1", "C1"},
		SceneEntities: []EntityRef{"A1", "B1"},
	}
	ctx.Watch.Slots["watch-1"] = WatchSlot{Entity: "A1"}
	return ctx
}

func TestTracked(t *testing.T) {
	ctx := trackedScopeContext()
	ctx.March.Ranks[0].Entities = []EntityRef{"A1", "D4"}
	ctx.Injuries.Records["E5"] = []InjuryRecord{{Name: "broken rib", Severity: 2}}
	ctx.Supplies.Bindings["F6"] = "rations"

	assert.Equal(t, []EntityRef{"A1", "D4", "E5", "F6"}, ctx.Tracked())
	assert.True(t, ctx.IsTracked("A1"))
	assert.False(t, ctx.IsTracked("B1"))
}

func TestTrackedIgnoresEmptyInjuryLists(t *testing.T) {
	ctx := trackedScopeContext()
	ctx.Injuries.Records["B1"] = nil
	assert.False(t, ctx.IsTracked("B1"))
}

func TestScopeCandidates(t *testing.T) {
	cases := []struct {
		name  string
		scope ScopePolicy
		want  []EntityRef
	}{
		{"scene tracked-only adds nothing", ScopeSceneTracked, nil},
		{"non-tracked yields both untracked", ScopeNonTracked, []EntityRef{"B1", "C1"}},
		{"all yields everything", ScopeAll, []EntityRef{"A1", "B1", "C1"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := trackedScopeContext()
			ctx.Hazard.Scope = tc.scope
			assert.Equal(t, tc.want, ctx.ScopeCandidates())
		})
	}
}

func TestScopeCandidatesNoScene(t *testing.T) {
	// No active scene resolves to empty membership, not an error.
	ctx := trackedScopeContext()
	ctx.SceneEntities = nil
	ctx.Hazard.Scope = ScopeNonTracked
	assert.Equal(t, []EntityRef{"B1", "C1"}, ctx.ScopeCandidates())
	assert.False(t, ctx.InScene("A1"))
}

func TestWatchSlotOf(t *testing.T) {
	ctx := trackedScopeContext()
	assert.Equal(t, "watch-1", ctx.WatchSlotOf("A1"))
	assert.Equal(t, "", ctx.WatchSlotOf("B1"))
}

func TestEffectPayloadEqual(t *testing.T) {
	a := &EffectPayload{Label: "Injured", Data: map[string]any{"severity": 2}}
	b := &EffectPayload{Label: "Injured", Data: map[string]any{"severity": 2}}
	c := &EffectPayload{Label: "Injured", Data: map[string]any{"severity": 3}}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))

	var nilA, nilB *EffectPayload
	assert.True(t, nilA.Equal(nilB))
}

func TestEffectPayloadClone(t *testing.T) {
	a := &EffectPayload{Label: "Aura", Data: map[string]any{"score": 1}}
	cp := a.Clone()
	cp.Data["score"] = 2
	assert.Equal(t, 1, a.Data["score"], "clone must detach the data map")
}

func TestPolicyFor(t *testing.T) {
	p, ok := PolicyFor(CmdAssignMe)
	assert.True(t, ok)
	assert.Equal(t, DocWatch, p.Doc)
	assert.Equal(t, RuleOwnActor, p.Rule)

	_, ok = PolicyFor("stealTheLoot")
	assert.False(t, ok, "unknown kinds are outside the closed set")
}

func TestDocOps(t *testing.T) {
	ops := DocOps(DocWatch)
	assert.ElementsMatch(t, []CommandKind{CmdAssignMe, CmdClearEntry, CmdSetEntryNotes}, ops)
	assert.ElementsMatch(t, []CommandKind{CmdJoinRank, CmdSetNote}, DocOps(DocMarch))
	assert.Empty(t, DocOps(DocHazard), "hazard has no peer ops")
}
