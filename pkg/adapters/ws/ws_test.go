package ws_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evhart/bivouac/pkg/adapters/ws"
	"github.com/evhart/bivouac/pkg/domain"
	"github.com/evhart/bivouac/pkg/ports"
)

func startHub(t *testing.T) (*ws.Hub, string) {
	t.Helper()
	hub := ws.NewHub()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { hub.Close() })
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *ws.Client {
	t.Helper()
	client, err := ws.Dial(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestHostToPeer_Contract(t *testing.T) {
	hub, url := startHub(t)
	client := dial(t, url)

	// The hub only reaches peers that finished connecting.
	time.Sleep(20 * time.Millisecond)
	ports.RunBusContract(t, hub, client)
}

func TestPeerToHost_Contract(t *testing.T) {
	hub, url := startHub(t)
	client := dial(t, url)

	time.Sleep(20 * time.Millisecond)
	ports.RunBusContract(t, client, hub)
}

func TestPeerToPeerRelay(t *testing.T) {
	_, url := startHub(t)
	sender := dial(t, url)
	receiver := dial(t, url)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := receiver.Subscribe(ctx)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, sender.Publish(ctx, domain.Envelope{
		Type:      domain.MsgOpenAck,
		From:      "player-2",
		RequestID: "req-9",
	}))

	select {
	case env := <-stream:
		assert.Equal(t, domain.MsgOpenAck, env.Type)
		assert.Equal(t, "req-9", env.RequestID)
	case <-time.After(2 * time.Second):
		t.Fatal("relayed envelope never arrived")
	}
}

func TestSenderDoesNotEcho(t *testing.T) {
	_, url := startHub(t)
	sender := dial(t, url)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := sender.Subscribe(ctx)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, sender.Publish(ctx, domain.Envelope{
		Type: domain.MsgRefresh,
		From: "player-1",
	}))

	select {
	case env := <-stream:
		t.Fatalf("sender received its own frame: %+v", env)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestPublishAfterClose(t *testing.T) {
	_, url := startHub(t)
	client := dial(t, url)
	require.NoError(t, client.Close())

	err := client.Publish(context.Background(), domain.Envelope{Type: domain.MsgRefresh})
	assert.ErrorIs(t, err, domain.ErrBusClosed)
}
