package bivouac_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evhart/bivouac"
	"github.com/evhart/bivouac/pkg/adapters/memory"
	"github.com/evhart/bivouac/pkg/domain"
	"github.com/evhart/bivouac/pkg/peer"
)

type fixture struct {
	hub     *memory.Hub
	store   *memory.Store
	effects *memory.Effects
	roster  *memory.Roster
	host    *bivouac.Host
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		hub:     memory.NewHub(),
		store:   memory.NewStore(),
		effects: memory.NewEffects(),
		roster:  memory.NewRoster(),
	}
	t.Cleanup(func() { f.hub.Close() })
	f.roster.Grant("player-1", "hero-1")
	f.roster.SetEntities("hero-1", "hero-2")
	f.host = bivouac.New("host", f.store, f.hub.Client(), f.effects, f.roster,
		bivouac.WithQuietPeriod(15*time.Millisecond))
	return f
}

// waitRefresh drains the inbox until a refresh for the wanted document
// arrives or the deadline passes.
func waitRefresh(t *testing.T, inbox <-chan domain.Envelope, doc domain.DocName) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case env := <-inbox:
			if env.Type == domain.MsgRefresh && env.App == string(doc) {
				return
			}
		case <-deadline:
			t.Fatalf("no refresh for %q arrived", doc)
		}
	}
}

func TestPeerAssignTakesSlotAndTracks(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.host.Run(ctx)

	peerBus := f.hub.Client()
	inbox, err := peerBus.Subscribe(ctx)
	require.NoError(t, err)
	p := peer.New(peerBus, "player-1")

	time.Sleep(20 * time.Millisecond) // host loop subscribing
	require.NoError(t, p.Submit(ctx, domain.Command{
		Kind:    domain.CmdAssignMe,
		Actor:   "hero-1",
		Payload: map[string]any{"slotId": "watch-2"},
	}))

	waitRefresh(t, inbox, domain.DocWatch)

	watch, err := f.host.Document(ctx, domain.DocWatch)
	require.NoError(t, err)
	slots := watch["slots"].(map[string]any)
	slot := slots["watch-2"].(map[string]any)
	assert.Equal(t, "hero-1", slot["entity"])

	status, err := f.host.Status(ctx)
	require.NoError(t, err)
	assert.Contains(t, status.Tracked(), domain.EntityRef("hero-1"))
}

func TestLockedWatchDropsPeerCommand(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.host.Run(ctx)

	require.NoError(t, f.host.SetWatchLocked(ctx, true))

	peerBus := f.hub.Client()
	inbox, err := peerBus.Subscribe(ctx)
	require.NoError(t, err)
	p := peer.New(peerBus, "player-1")

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, p.Submit(ctx, domain.Command{
		Kind:    domain.CmdAssignMe,
		Actor:   "hero-1",
		Payload: map[string]any{"slotId": "watch-1"},
	}))

	// No mutation and no refresh: the peer sees only silence.
	select {
	case env := <-inbox:
		if env.Type == domain.MsgRefresh {
			t.Fatalf("unexpected refresh for %q", env.App)
		}
	case <-time.After(150 * time.Millisecond):
	}

	watch, err := f.host.Document(ctx, domain.DocWatch)
	require.NoError(t, err)
	slots := watch["slots"].(map[string]any)
	slot := slots["watch-1"].(map[string]any)
	assert.Empty(t, slot["entity"])
}

func TestHostMutationNoOpSkipsRefresh(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inbox, err := f.hub.Client().Subscribe(ctx)
	require.NoError(t, err)

	// Already unlocked: nothing to do, nothing to announce.
	require.NoError(t, f.host.SetWatchLocked(ctx, false))
	select {
	case env := <-inbox:
		t.Fatalf("unexpected envelope %q", env.Type)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestInjuryFlowMaterializesEffect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.host.AddInjury(ctx, "hero-2", domain.InjuryRecord{
		Name:         "Broken Rib",
		Severity:     2,
		RecoveryDays: 5,
	}))
	require.NoError(t, f.host.Reconcile(ctx))

	live, err := f.host.Effects(ctx, "hero-2")
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, domain.EffectInjury, live[0].Category)

	require.NoError(t, f.host.RemoveInjury(ctx, "hero-2", "Broken Rib"))
	require.NoError(t, f.host.Reconcile(ctx))

	live, err = f.host.Effects(ctx, "hero-2")
	require.NoError(t, err)
	assert.Empty(t, live)
}

func TestStabilizeKeepsEffect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.host.AddInjury(ctx, "hero-1", domain.InjuryRecord{
		Name: "Sprain", Severity: 1, RecoveryDays: 2,
	}))
	require.NoError(t, f.host.StabilizeInjury(ctx, "hero-1", "Sprain"))
	require.NoError(t, f.host.Reconcile(ctx))

	live, err := f.host.Effects(ctx, "hero-1")
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, "Injured (stabilized)", live[0].Payload.Label)

	// Stabilizing twice changes nothing.
	require.NoError(t, f.host.StabilizeInjury(ctx, "hero-1", "Sprain"))
}

func TestSelfWritesAbsorbedOnce(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.host.Run(ctx)

	inbox, err := f.hub.Client().Subscribe(ctx)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, f.host.SetReputation(ctx, 3, "respected"))

	// Exactly one refresh: the host's own broadcast. The backend's change
	// notification for the same save is matched on the ledger and dropped.
	refreshes := 0
	timeout := time.After(300 * time.Millisecond)
drain:
	for {
		select {
		case env := <-inbox:
			if env.Type == domain.MsgRefresh && env.App == string(domain.DocReputation) {
				refreshes++
			}
		case <-timeout:
			break drain
		}
	}
	assert.Equal(t, 1, refreshes)
}

func TestExternalStorageEditTriggersRefresh(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.host.Run(ctx)

	inbox, err := f.hub.Client().Subscribe(ctx)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	// A write that bypasses the host: no ledger mark, so the change
	// notification must be treated as external.
	require.NoError(t, f.store.Save(ctx, domain.DocReputation, map[string]any{
		"score": 7, "notoriety": "famous",
	}))

	waitRefresh(t, inbox, domain.DocReputation)
}

func TestSetSyncModeValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Error(t, f.host.SetSyncMode(ctx, "sideways"))
	require.NoError(t, f.host.SetSyncMode(ctx, domain.SyncParty))

	sync, err := f.host.Document(ctx, domain.DocSync)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncParty, sync["mode"])
}

func TestOpenAckRoundTripThroughHost(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.host.Run(ctx)

	p := peer.New(f.hub.Client(), "player-1")
	go p.Run(ctx)

	time.Sleep(20 * time.Millisecond)
	_, results, err := f.host.OpenApp(ctx, "watch")
	require.NoError(t, err)

	select {
	case res := <-results:
		assert.True(t, res.Acked)
		assert.Equal(t, domain.Identity("player-1"), res.AckedBy)
	case <-time.After(2 * time.Second):
		t.Fatal("no ack result delivered")
	}
}
