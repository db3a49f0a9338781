package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evhart/bivouac"
	httpadapter "github.com/evhart/bivouac/pkg/adapters/http"
	"github.com/evhart/bivouac/pkg/adapters/memory"
	"github.com/evhart/bivouac/pkg/domain"
)

func newTestServer(t *testing.T) (*httptest.Server, *bivouac.Host) {
	t.Helper()
	hub := memory.NewHub()
	t.Cleanup(func() { hub.Close() })

	effects := memory.NewEffects()
	roster := memory.NewRoster()
	roster.Grant("player-1", "hero-1")
	roster.SetEntities("hero-1", "hero-2")

	host := bivouac.New("host", memory.NewStore(), hub.Client(), effects, roster)
	srv := httptest.NewServer(httpadapter.NewHandler(host))
	t.Cleanup(srv.Close)
	return srv, host
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestGetHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]string
	resp := getJSON(t, srv.URL+"/healthz", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestGetDocument(t *testing.T) {
	srv, host := newTestServer(t)
	require.NoError(t, host.SetReputation(context.Background(), 4, "respected"))

	var blob map[string]any
	resp := getJSON(t, srv.URL+"/documents/reputation", &blob)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(4), blob["score"])
	assert.Equal(t, "respected", blob["notoriety"])
}

func TestGetDocumentUnknown(t *testing.T) {
	srv, _ := newTestServer(t)
	resp := getJSON(t, srv.URL+"/documents/loot", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetDocumentNeverWrittenReadsDefaults(t *testing.T) {
	srv, _ := newTestServer(t)

	var blob map[string]any
	resp := getJSON(t, srv.URL+"/documents/watch", &blob)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, blob["locked"])
	slots, ok := blob["slots"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, slots, domain.DefaultWatchSlots)
}

func TestPostCommand(t *testing.T) {
	srv, host := newTestServer(t)

	payload, _ := json.Marshal(map[string]any{
		"op":       "assignMe",
		"actorRef": "hero-1",
		"fromId":   "player-1",
		"payload":  map[string]any{"slotId": "watch-3"},
	})
	resp, err := http.Post(srv.URL+"/commands", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body["applied"])

	watch, err := host.Document(context.Background(), domain.DocWatch)
	require.NoError(t, err)
	slot := watch["slots"].(map[string]any)["watch-3"].(map[string]any)
	assert.Equal(t, "hero-1", slot["entity"])
}

func TestPostCommandRejectedIsNotAnError(t *testing.T) {
	srv, _ := newTestServer(t)

	// player-1 does not control hero-2.
	payload, _ := json.Marshal(map[string]any{
		"op":       "assignMe",
		"actorRef": "hero-2",
		"fromId":   "player-1",
		"payload":  map[string]any{"slotId": "watch-1"},
	})
	resp, err := http.Post(srv.URL+"/commands", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body map[string]bool
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body["applied"])
}

func TestEffectsAndArchiveRoutes(t *testing.T) {
	srv, host := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, host.AddInjury(ctx, "hero-1", domain.InjuryRecord{
		Name: "Gash", Severity: 1, RecoveryDays: 3,
	}))
	require.NoError(t, host.Reconcile(ctx))

	var effects []domain.Effect
	resp := getJSON(t, srv.URL+"/effects/hero-1", &effects)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, effects, 1)

	_, err := host.Archive().Archive(ctx, "hero-1", domain.EffectInjury, "set aside")
	require.NoError(t, err)

	var entries []map[string]any
	resp = getJSON(t, srv.URL+"/archive", &entries)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, entries, 1)
	id := entries[0]["id"].(string)

	resp, err = http.Post(srv.URL+"/archive/"+id+"/restore", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Restored entries are gone; a second restore is a 404.
	resp, err = http.Post(srv.URL+"/archive/"+id+"/restore", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
