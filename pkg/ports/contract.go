package ports

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evhart/bivouac/pkg/domain"
)

// RunStorageContract runs a suite of tests to verify that a Storage
// implementation adheres to the semantics the document store relies on.
func RunStorageContract(t *testing.T, store Storage) {
	ctx := context.Background()

	t.Run("Save and Load", func(t *testing.T) {
		blob := map[string]any{
			"locked": true,
			"slots": map[string]any{
				"watch-1": map[string]any{"entity": "A1", "notes": "first"},
			},
		}
		require.NoError(t, store.Save(ctx, domain.DocWatch, blob))

		loaded, err := store.Load(ctx, domain.DocWatch)
		require.NoError(t, err)
		assert.Equal(t, true, loaded["locked"])
		slots, ok := loaded["slots"].(map[string]any)
		require.True(t, ok, "nested maps must survive the round trip")
		w1, ok := slots["watch-1"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "A1", w1["entity"])
	})

	t.Run("Load Never Written", func(t *testing.T) {
		_, err := store.Load(ctx, domain.DocReputation)
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, domain.DocSync, map[string]any{"mode": "off"}))
		require.NoError(t, store.Save(ctx, domain.DocSync, map[string]any{"mode": "party"}))

		loaded, err := store.Load(ctx, domain.DocSync)
		require.NoError(t, err)
		assert.Equal(t, "party", loaded["mode"])
	})

	t.Run("Unknown Keys Preserved", func(t *testing.T) {
		blob := map[string]any{"mode": "off", "futureField": "keep"}
		require.NoError(t, store.Save(ctx, domain.DocSync, blob))

		loaded, err := store.Load(ctx, domain.DocSync)
		require.NoError(t, err)
		assert.Equal(t, "keep", loaded["futureField"])
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, domain.DocHazard, map[string]any{"preset": "none"}))

		keys, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, domain.DocHazard)
	})
}

// RunWatchContract verifies that a WatchableStorage emits a notification for
// its own saves (the suppression ledger depends on seeing exactly those).
func RunWatchContract(t *testing.T, store WatchableStorage) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := store.Watch(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, domain.DocMarch, map[string]any{"ranks": []any{}}))

	select {
	case key := <-events:
		assert.Equal(t, domain.DocMarch, key)
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification for save")
	}
}

// RunBusContract verifies the pub/sub semantics every bus adapter must hold:
// subscribers see envelopes published by others, and publishing after Close
// fails cleanly.
func RunBusContract(t *testing.T, publisher Bus, subscriber Bus) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := subscriber.Subscribe(ctx)
	require.NoError(t, err)

	env := domain.Envelope{
		Type: domain.MsgRefresh,
		From: "contract-host",
	}
	require.NoError(t, publisher.Publish(ctx, env))

	select {
	case got, ok := <-stream:
		require.True(t, ok, "stream closed before delivery")
		assert.Equal(t, domain.MsgRefresh, got.Type)
		assert.Equal(t, domain.Identity("contract-host"), got.From)
	case <-time.After(2 * time.Second):
		t.Fatal("envelope not delivered")
	}

	t.Run("Mutate Round Trip", func(t *testing.T) {
		cmd := &domain.Command{
			Kind:    domain.CmdAssignMe,
			Actor:   "A1",
			From:    "peer-1",
			Payload: map[string]any{"slotId": "watch-2"},
		}
		require.NoError(t, publisher.Publish(ctx, domain.Envelope{
			Type:    domain.MsgMutate,
			From:    "peer-1",
			Request: cmd,
		}))

		select {
		case got := <-stream:
			require.NotNil(t, got.Request)
			assert.Equal(t, domain.CmdAssignMe, got.Request.Kind)
			assert.Equal(t, "watch-2", got.Request.PayloadString("slotId"))
		case <-time.After(2 * time.Second):
			t.Fatal("command envelope not delivered")
		}
	})
}
