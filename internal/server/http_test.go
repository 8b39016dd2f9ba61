package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/parlorgames/undercover/internal/config"
	"github.com/parlorgames/undercover/internal/content"
	"github.com/parlorgames/undercover/internal/game/random"
	"github.com/parlorgames/undercover/internal/game/room"
	"github.com/parlorgames/undercover/internal/network"
	"github.com/parlorgames/undercover/internal/server"
)

func newTestServer(t *testing.T, httpCfg config.HTTPConfig) (*httptest.Server, *room.Registry) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	src := random.NewCryptoSource()
	registry := room.NewRegistry(room.Options{}, src, logger)
	lib, err := content.NewLibrary([]*content.Category{{
		ID:    "food",
		Name:  "Food & Drink",
		Emoji: "🍕",
		Pairs: []content.WordPair{{Word: "coffee", Ref: "tea"}},
	}}, src)
	require.NoError(t, err)
	hub := network.NewHub(logger)

	srv := server.NewHTTPServer(httpCfg, registry, lib, hub, logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, registry
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t, config.HTTPConfig{})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCategories(t *testing.T) {
	ts, _ := newTestServer(t, config.HTTPConfig{})

	resp, err := http.Get(ts.URL + "/categories")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var infos []content.Info
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&infos))
	require.Len(t, infos, 1)
	assert.Equal(t, "food", infos[0].ID)
	assert.Equal(t, "🍕", infos[0].Emoji)
}

func TestRoomQR(t *testing.T) {
	ts, registry := newTestServer(t, config.HTTPConfig{PublicURL: "https://play.example.com"})
	rm := registry.Create("host", "Ada", "t-host")

	resp, err := http.Get(ts.URL + "/rooms/" + rm.Code + "/qr")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
}

func TestRoomQR_LowercaseCodeAccepted(t *testing.T) {
	ts, registry := newTestServer(t, config.HTTPConfig{PublicURL: "https://play.example.com"})
	rm := registry.Create("host", "Ada", "t-host")

	resp, err := http.Get(ts.URL + "/rooms/" + strings.ToLower(rm.Code) + "/qr")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRoomQR_UnknownRoom(t *testing.T) {
	ts, _ := newTestServer(t, config.HTTPConfig{PublicURL: "https://play.example.com"})

	resp, err := http.Get(ts.URL + "/rooms/NOSUCH/qr")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRoomQR_DisabledWithoutPublicURL(t *testing.T) {
	ts, registry := newTestServer(t, config.HTTPConfig{})
	rm := registry.Create("host", "Ada", "t-host")

	resp, err := http.Get(ts.URL + "/rooms/" + rm.Code + "/qr")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
