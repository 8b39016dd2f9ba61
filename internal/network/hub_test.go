package network_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/parlorgames/undercover/internal/content"
	"github.com/parlorgames/undercover/internal/game/continuity"
	"github.com/parlorgames/undercover/internal/game/random"
	"github.com/parlorgames/undercover/internal/game/room"
	"github.com/parlorgames/undercover/internal/gameserver"
	"github.com/parlorgames/undercover/internal/network"
)

// wireEvent is the outbound frame as a client sees it.
type wireEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type harness struct {
	hub    *network.Hub
	server *httptest.Server
	conns  []*websocket.Conn
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	src := random.NewCryptoSource()
	// Hour-long timers: nothing here exercises them, and a stale fire after
	// the test would log through a dead test logger.
	registry := room.NewRegistry(room.Options{GracePeriod: time.Hour}, src, logger)
	lib, err := content.NewLibrary([]*content.Category{{
		ID:    "food",
		Name:  "Food & Drink",
		Pairs: []content.WordPair{{Word: "coffee", Ref: "tea"}},
	}}, src)
	require.NoError(t, err)

	hub := network.NewHub(logger)
	svc := gameserver.NewService(
		registry,
		continuity.NewManager(registry, logger),
		lib,
		hub,
		src,
		time.Hour,
		logger,
	)
	hub.SetService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		network.ServeWS(hub, w, r)
	}))

	h := &harness{hub: hub, server: server}
	t.Cleanup(func() {
		for _, c := range h.conns {
			c.Close()
		}
		// Let the read loops unregister through the still-running hub so the
		// hijacked connections are released before the server shuts down.
		time.Sleep(100 * time.Millisecond)
		cancel()
		server.Close()
	})
	return h
}

func (h *harness) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(h.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	h.conns = append(h.conns, conn)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	env := gameserver.Envelope{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		env.Payload = raw
	}
	require.NoError(t, conn.WriteJSON(env))
}

func readEvent(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev wireEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

// waitFor reads events until one of the wanted type arrives, failing on
// anything unexpected taking its place for too long.
func waitFor(t *testing.T, conn *websocket.Conn, evType string) wireEvent {
	t.Helper()
	for i := 0; i < 10; i++ {
		ev := readEvent(t, conn)
		if ev.Type == evType {
			return ev
		}
	}
	t.Fatalf("event %q never arrived", evType)
	return wireEvent{}
}

func TestHub_CreateAndJoinRoundTrip(t *testing.T) {
	h := newHarness(t)
	hostConn := h.dial(t)
	guestConn := h.dial(t)

	send(t, hostConn, gameserver.MsgCreateRoom, gameserver.CreateRoomRequest{Name: "Ada"})
	ack := waitFor(t, hostConn, "create-room-ack")

	var created gameserver.CreateRoomAck
	require.NoError(t, json.Unmarshal(ack.Payload, &created))
	assert.Len(t, created.Code, room.DefaultCodeLength)
	require.NotEmpty(t, created.Token)

	send(t, guestConn, gameserver.MsgJoinRoom, gameserver.JoinRoomRequest{Code: created.Code, Name: "Bob"})
	joinAck := waitFor(t, guestConn, "join-room-ack")

	var joined gameserver.JoinRoomAck
	require.NoError(t, json.Unmarshal(joinAck.Payload, &joined))
	assert.Empty(t, joined.Error)
	assert.Len(t, joined.Players, 2)

	// The host hears about the new member.
	update := waitFor(t, hostConn, gameserver.EvtRoomUpdated)
	var payload gameserver.RoomUpdatedPayload
	require.NoError(t, json.Unmarshal(update.Payload, &payload))
	assert.Len(t, payload.Players, 2)
}

func TestHub_GameStartDeliversPrivateRoles(t *testing.T) {
	h := newHarness(t)
	hostConn := h.dial(t)
	guestConn := h.dial(t)

	send(t, hostConn, gameserver.MsgCreateRoom, gameserver.CreateRoomRequest{Name: "Ada"})
	ack := waitFor(t, hostConn, "create-room-ack")
	var created gameserver.CreateRoomAck
	require.NoError(t, json.Unmarshal(ack.Payload, &created))

	send(t, guestConn, gameserver.MsgJoinRoom, gameserver.JoinRoomRequest{Code: created.Code, Name: "Bob"})
	waitFor(t, guestConn, "join-room-ack")

	send(t, hostConn, gameserver.MsgUpdateConfig, gameserver.UpdateConfigRequest{
		Config: room.Config{UndercoverCount: 1, Rounds: 3, CategoryID: "food"},
	})
	waitFor(t, hostConn, gameserver.EvtConfigUpdated)

	send(t, hostConn, gameserver.MsgStartGame, nil)

	var roles []room.Role
	for _, conn := range []*websocket.Conn{hostConn, guestConn} {
		ev := waitFor(t, conn, gameserver.EvtRoleAssigned)
		var reveal gameserver.RoleAssignedPayload
		require.NoError(t, json.Unmarshal(ev.Payload, &reveal))
		roles = append(roles, reveal.Role)
	}
	assert.ElementsMatch(t, []room.Role{room.RoleCivilian, room.RoleUndercover}, roles)

	waitFor(t, hostConn, gameserver.EvtGameStarted)
	waitFor(t, guestConn, gameserver.EvtGameStarted)
}

func TestHub_UndecodableMessageIsIgnored(t *testing.T) {
	h := newHarness(t)
	conn := h.dial(t)

	send(t, conn, "no-such-type", nil)

	// The connection stays usable.
	send(t, conn, gameserver.MsgCreateRoom, gameserver.CreateRoomRequest{Name: "Ada"})
	ack := waitFor(t, conn, "create-room-ack")
	assert.Equal(t, "create-room-ack", ack.Type)
}
