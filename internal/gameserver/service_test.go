package gameserver_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/parlorgames/undercover/internal/content"
	"github.com/parlorgames/undercover/internal/game/continuity"
	"github.com/parlorgames/undercover/internal/game/random"
	"github.com/parlorgames/undercover/internal/game/room"
	"github.com/parlorgames/undercover/internal/gameserver"
)

// recordingSink captures every delivered event for assertions. Safe for
// concurrent use; timer callbacks deliver from their own goroutines.
type recordingSink struct {
	mu     sync.Mutex
	events []sinkEvent
}

type sinkEvent struct {
	// To is the recipient of a unicast; empty for broadcasts.
	To string
	// Audience lists the recipients of a broadcast; nil for unicasts.
	Audience []string
	Event    gameserver.Event
}

func (s *recordingSink) Unicast(playerID string, ev gameserver.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, sinkEvent{To: playerID, Event: ev})
}

func (s *recordingSink) Broadcast(playerIDs []string, ev gameserver.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, sinkEvent{Audience: playerIDs, Event: ev})
}

func (s *recordingSink) all() []sinkEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sinkEvent(nil), s.events...)
}

func (s *recordingSink) ofType(evType string) []sinkEvent {
	var out []sinkEvent
	for _, e := range s.all() {
		if e.Event.Type == evType {
			out = append(out, e)
		}
	}
	return out
}

func (s *recordingSink) unicastsTo(playerID string) []sinkEvent {
	var out []sinkEvent
	for _, e := range s.all() {
		if e.To == playerID {
			out = append(out, e)
		}
	}
	return out
}

func (s *recordingSink) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

// stubProvider serves one fixed word pair. onLookup, when set, runs inside
// the lookup so tests can mutate room state at the suspension point.
type stubProvider struct {
	pair     content.WordPair
	err      error
	onLookup func()
}

func (p *stubProvider) ActiveCategories() []content.Info {
	return []content.Info{{ID: "food", Name: "Food & Drink"}}
}

func (p *stubProvider) RandomWordPair(context.Context, string, room.Difficulty) (content.WordPair, error) {
	if p.onLookup != nil {
		p.onLookup()
	}
	if p.err != nil {
		return content.WordPair{}, p.err
	}
	return p.pair, nil
}

type fixture struct {
	service  *gameserver.Service
	registry *room.Registry
	sink     *recordingSink
	provider *stubProvider

	mu    sync.Mutex
	codes []string
}

type fixtureOptions struct {
	registry      room.Options
	quorumTimeout time.Duration
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, fixtureOptions{})
}

func newFixtureWith(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	src := random.NewCryptoSource()
	registry := room.NewRegistry(opts.registry, src, logger)
	sink := &recordingSink{}
	provider := &stubProvider{pair: content.WordPair{Word: "coffee", Ref: "tea", Hint: "a hot drink"}}
	service := gameserver.NewService(
		registry,
		continuity.NewManager(registry, logger),
		provider,
		sink,
		src,
		opts.quorumTimeout,
		logger,
	)
	f := &fixture{service: service, registry: registry, sink: sink, provider: provider}
	// Drop every room at test end so no pending phase or deletion timer
	// outlives the test logger.
	t.Cleanup(func() {
		f.mu.Lock()
		codes := append([]string(nil), f.codes...)
		f.mu.Unlock()
		for _, code := range codes {
			registry.Delete(code)
		}
	})
	return f
}

func (f *fixture) handle(senderID string, msg gameserver.Message) any {
	return f.service.HandleMessage(context.Background(), senderID, msg)
}

func (f *fixture) createRoom(t *testing.T, senderID, name string) gameserver.CreateRoomAck {
	t.Helper()
	ack, ok := f.handle(senderID, &gameserver.CreateRoomRequest{Name: name}).(gameserver.CreateRoomAck)
	require.True(t, ok)
	require.NotEmpty(t, ack.Code)
	f.mu.Lock()
	f.codes = append(f.codes, ack.Code)
	f.mu.Unlock()
	return ack
}

func (f *fixture) joinRoom(t *testing.T, senderID, code, name string) gameserver.JoinRoomAck {
	t.Helper()
	ack, ok := f.handle(senderID, &gameserver.JoinRoomRequest{Code: code, Name: name}).(gameserver.JoinRoomAck)
	require.True(t, ok)
	return ack
}

// startGame pushes a room from the lobby into reveal with the given config.
func (f *fixture) startGame(t *testing.T, hostID string, cfg room.Config) {
	t.Helper()
	f.handle(hostID, &gameserver.UpdateConfigRequest{Config: cfg})
	ack, ok := f.handle(hostID, &gameserver.StartGameRequest{}).(gameserver.StartAck)
	require.True(t, ok)
	require.Empty(t, ack.Error)
}

// readyAll acknowledges every seat so the clue phase begins.
func (f *fixture) readyAll(t *testing.T, code string) {
	t.Helper()
	rm := f.room(t, code)
	rm.Lock()
	ids := make([]string, 0, len(rm.Players))
	for id := range rm.Players {
		ids = append(ids, id)
	}
	rm.Unlock()
	for _, id := range ids {
		f.handle(id, &gameserver.PlayerReadyRequest{})
	}
}

// submitAllClues walks the turn order until every eligible player has spoken.
func (f *fixture) submitAllClues(t *testing.T, code string) {
	t.Helper()
	rm := f.room(t, code)
	for i := 0; i < 20; i++ {
		rm.Lock()
		phase := rm.Phase
		turn := rm.CurrentTurnID()
		rm.Unlock()
		if phase != room.PhaseClue {
			return
		}
		f.handle(turn, &gameserver.SubmitClueRequest{Clue: "something vague"})
	}
	t.Fatal("clue round did not converge")
}

func (f *fixture) room(t *testing.T, code string) *room.Room {
	t.Helper()
	rm, ok := f.registry.Get(code)
	require.True(t, ok)
	return rm
}

func (f *fixture) phase(t *testing.T, code string) room.Phase {
	t.Helper()
	rm := f.room(t, code)
	rm.Lock()
	defer rm.Unlock()
	return rm.Phase
}

// rolesOf maps identity to role under the room lock.
func (f *fixture) rolesOf(t *testing.T, code string) map[string]room.Role {
	t.Helper()
	rm := f.room(t, code)
	rm.Lock()
	defer rm.Unlock()
	roles := make(map[string]room.Role, len(rm.Players))
	for id, p := range rm.Players {
		roles[id] = p.Role
	}
	return roles
}
