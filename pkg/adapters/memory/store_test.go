package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evhart/bivouac/pkg/domain"
	"github.com/evhart/bivouac/pkg/ports"
)

func TestStoreContract(t *testing.T) {
	ports.RunStorageContract(t, NewStore())
}

func TestStoreWatchContract(t *testing.T) {
	ports.RunWatchContract(t, NewStore())
}

func TestStoreIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	blob := map[string]any{"slots": map[string]any{"watch-1": map[string]any{"entity": "A1"}}}
	require.NoError(t, store.Save(ctx, domain.DocWatch, blob))

	// Mutating the caller's blob after save must not leak into the store.
	blob["slots"].(map[string]any)["watch-1"].(map[string]any)["entity"] = "X9"

	loaded, err := store.Load(ctx, domain.DocWatch)
	require.NoError(t, err)
	w1 := loaded["slots"].(map[string]any)["watch-1"].(map[string]any)
	assert.Equal(t, "A1", w1["entity"])

	// Same for mutations of a loaded blob.
	w1["entity"] = "Z0"
	again, err := store.Load(ctx, domain.DocWatch)
	require.NoError(t, err)
	assert.Equal(t, "A1", again["slots"].(map[string]any)["watch-1"].(map[string]any)["entity"])
}

func TestBusContract(t *testing.T) {
	hub := NewHub()
	defer hub.Close()
	ports.RunBusContract(t, hub.Client(), hub.Client())
}

func TestBusSkipsPublisher(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub()
	defer hub.Close()

	host := hub.Client()
	peer := hub.Client()

	hostStream, err := host.Subscribe(ctx)
	require.NoError(t, err)
	peerStream, err := peer.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, host.Publish(ctx, domain.Envelope{Type: domain.MsgRefresh, From: "host"}))

	assert.Equal(t, domain.MsgRefresh, (<-peerStream).Type)
	select {
	case env := <-hostStream:
		t.Fatalf("publisher received its own envelope: %+v", env)
	default:
	}
}

func TestBusPublishAfterClose(t *testing.T) {
	hub := NewHub()
	client := hub.Client()
	require.NoError(t, hub.Close())
	err := client.Publish(context.Background(), domain.Envelope{Type: domain.MsgRefresh})
	assert.ErrorIs(t, err, domain.ErrBusClosed)
}
