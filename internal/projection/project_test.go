package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evhart/bivouac/pkg/domain"
)

// baseContext has A1 tracked (watch-1) and on scene, B1 untracked on scene,
// C1 untracked off scene.
func baseContext() domain.GlobalContext {
	g := domain.GlobalContext{
		Watch:         domain.DefaultWatch(),
		March:         domain.DefaultMarch(),
		Injuries:      domain.DefaultInjuries(),
		Hazard:        domain.DefaultHazard(),
		Reputation:    domain.ReputationDoc{Score: 3, Notoriety: "heroes"},
		Supplies:      domain.DefaultSupplies(),
		Sync:          domain.SyncDoc{Mode: domain.SyncOff},
		AllEntities:   []domain.EntityRef{"A1", "B1", "C1"},
		SceneEntities: []domain.EntityRef{"A1", "B1"},
		Modifiers:     domain.ModifierCatalog{},
	}
	g.Watch.Slots["watch-1"] = domain.WatchSlot{Entity: "A1"}
	return g
}

func TestAuraOffMode(t *testing.T) {
	g := baseContext()
	d := Project(g, "A1", Options{})
	assert.Nil(t, d.Aura, "sync off yields no aura for anyone")
}

func TestAuraPartyMode(t *testing.T) {
	g := baseContext()
	g.Sync.Mode = domain.SyncParty

	d := Project(g, "A1", Options{})
	require.NotNil(t, d.Aura)
	assert.Equal(t, 3, d.Aura.Data["score"])
	assert.Equal(t, "watch-1", d.Aura.Data["watchSlot"])

	assert.Nil(t, Project(g, "B1", Options{}).Aura, "untracked entities get no aura")
}

func TestAuraSceneMode(t *testing.T) {
	g := baseContext()
	g.Sync.Mode = domain.SyncScene

	assert.NotNil(t, Project(g, "A1", Options{}).Aura)

	// Tracked but off scene: no aura in scene mode.
	g.SceneEntities = []domain.EntityRef{"B1"}
	assert.Nil(t, Project(g, "A1", Options{}).Aura)
}

func TestAuraCarriesSupplyBinding(t *testing.T) {
	g := baseContext()
	g.Sync.Mode = domain.SyncParty
	g.Supplies.Levels["rations"] = 5
	g.Supplies.Bindings["A1"] = "rations"

	d := Project(g, "A1", Options{})
	require.NotNil(t, d.Aura)
	assert.Equal(t, "rations", d.Aura.Data["supply"])
	assert.Equal(t, 5, d.Aura.Data["supplyLevel"])
}

func TestInjuryPayload(t *testing.T) {
	g := baseContext()

	t.Run("no records means none", func(t *testing.T) {
		assert.Nil(t, Project(g, "A1", Options{}).Injury)
	})

	t.Run("active injury renders", func(t *testing.T) {
		g := baseContext()
		g.Injuries.Records["A1"] = []domain.InjuryRecord{
			{Name: "broken rib", Severity: 2, RecoveryDays: 5},
			{Name: "sprained ankle", Severity: 1, RecoveryDays: 9, Stabilized: true},
		}
		d := Project(g, "A1", Options{})
		require.NotNil(t, d.Injury)
		assert.Equal(t, "Injured", d.Injury.Label)
		assert.Equal(t, 2, d.Injury.Data["severity"], "worst severity wins")
		assert.Equal(t, 9, d.Injury.Data["recoveryDays"], "longest recovery wins")
		assert.Equal(t, 2, d.Injury.Data["count"])
	})

	t.Run("stabilized still renders", func(t *testing.T) {
		g := baseContext()
		g.Injuries.Records["A1"] = []domain.InjuryRecord{
			{Name: "burn", Severity: 1, Stabilized: true},
		}
		d := Project(g, "A1", Options{})
		require.NotNil(t, d.Injury, "only absence of records yields none")
		assert.Equal(t, "Injured (stabilized)", d.Injury.Label)
	})
}

func TestEnvironmentPayload(t *testing.T) {
	activeHazard := func() domain.GlobalContext {
		g := baseContext()
		g.Hazard.Preset = "cold"
		g.Hazard.DC = 12
		g.Hazard.Bonus = -2
		return g
	}

	t.Run("no hazard means none", func(t *testing.T) {
		g := baseContext()
		g.Hazard.Selected = []domain.EntityRef{"A1"}
		assert.Nil(t, Project(g, "A1", Options{}).Environment)
	})

	t.Run("explicit selection", func(t *testing.T) {
		g := activeHazard()
		g.Hazard.Selected = []domain.EntityRef{"B1"}
		d := Project(g, "B1", Options{})
		require.NotNil(t, d.Environment)
		assert.Equal(t, 12, d.Environment.Data["dc"])
		assert.Equal(t, -2, d.Environment.Data["bonus"])
		assert.Equal(t, "selected", d.Environment.Data["source"])

		assert.Nil(t, Project(g, "C1", Options{}).Environment, "unselected entity gets nothing")
	})

	t.Run("scope sync disabled", func(t *testing.T) {
		g := activeHazard()
		g.Hazard.Scope = domain.ScopeNonTracked
		assert.Nil(t, Project(g, "B1", Options{}).Environment)
	})

	t.Run("scope sync to non-tracked", func(t *testing.T) {
		g := activeHazard()
		g.Hazard.Scope = domain.ScopeNonTracked
		g.Hazard.SyncNonTracked = true
		assert.NotNil(t, Project(g, "B1", Options{}).Environment)
		assert.NotNil(t, Project(g, "C1", Options{}).Environment)
		assert.Nil(t, Project(g, "A1", Options{}).Environment, "tracked entity not in candidate set")
	})

	t.Run("selection wins the tie-break", func(t *testing.T) {
		g := activeHazard()
		g.Hazard.Scope = domain.ScopeAll
		g.Hazard.SyncNonTracked = true
		g.Hazard.Selected = []domain.EntityRef{"B1"}
		d := Project(g, "B1", Options{})
		require.NotNil(t, d.Environment)
		assert.Equal(t, "selected", d.Environment.Data["source"])
	})

	t.Run("catalog supplies the label", func(t *testing.T) {
		g := activeHazard()
		g.Modifiers = domain.ModifierCatalog{
			"cold": {Key: "cold", Label: "Biting Cold", Bonus: -2},
		}
		g.Hazard.Selected = []domain.EntityRef{"A1"}
		d := Project(g, "A1", Options{})
		require.NotNil(t, d.Environment)
		assert.Equal(t, "Biting Cold", d.Environment.Label)
	})
}

func TestProjectUsesPrecomputedOptions(t *testing.T) {
	g := baseContext()
	g.Sync.Mode = domain.SyncParty

	// A caller-supplied tracked set overrides derivation.
	d := Project(g, "B1", Options{Tracked: []domain.EntityRef{"B1"}})
	assert.NotNil(t, d.Aura)
}

func TestProjectIsPure(t *testing.T) {
	g := baseContext()
	g.Sync.Mode = domain.SyncParty
	g.Hazard.Preset = "cold"
	g.Hazard.Selected = []domain.EntityRef{"A1"}

	first := Project(g, "A1", Options{})
	second := Project(g, "A1", Options{})
	assert.True(t, first.Aura.Equal(second.Aura))
	assert.True(t, first.Environment.Equal(second.Environment))
}
