package gameserver

import (
	"sort"

	"github.com/parlorgames/undercover/internal/game/room"
)

// Outbound event types.
const (
	EvtRoomUpdated        = "room-updated"
	EvtConfigUpdated      = "config-updated"
	EvtGameStarted        = "game-started"
	EvtRoleAssigned       = "role-assigned"
	EvtTurnStarted        = "turn-started"
	EvtClueSubmitted      = "clue-submitted"
	EvtVotingStarted      = "voting-started"
	EvtVoteCast           = "vote-cast"
	EvtRoundResult        = "round-result"
	EvtGameOver           = "game-over"
	EvtPlayerDisconnected = "player-disconnected"
	EvtCluesHistory       = "clues-history"
)

// Event is one outbound notification. Events are fire-and-forget and never
// retracted; acks travel separately as request results.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Sink delivers events to connected players. Implementations must not
// block; delivery to an absent or slow player is dropped.
type Sink interface {
	// Unicast sends the event to one player by transport identity.
	Unicast(playerID string, ev Event)
	// Broadcast sends the event to every listed player.
	Broadcast(playerIDs []string, ev Event)
}

// PlayerView is the public projection of a player (no role, no token).
type PlayerView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Alive bool   `json:"alive"`
}

// RoomUpdatedPayload carries the current membership.
type RoomUpdatedPayload struct {
	Players []PlayerView `json:"players"`
	HostID  string       `json:"hostId"`
}

// RoleAssignedPayload is unicast to each player at reveal. Word is the true
// word for civilians and the decoy for undercover players; on easy
// difficulty undercover players get no word and a hint instead.
type RoleAssignedPayload struct {
	Role room.Role `json:"role"`
	Word *string   `json:"word"`
	Hint string    `json:"hint,omitempty"`
}

// GameStartedPayload announces a (re)started game.
type GameStartedPayload struct {
	Round int `json:"round"`
}

// TurnStartedPayload announces whose turn it is.
type TurnStartedPayload struct {
	PlayerID  string         `json:"playerId"`
	Direction room.Direction `json:"direction"`
	Round     int            `json:"round"`
}

// VoteCastPayload announces that a vote was received, without its target.
type VoteCastPayload struct {
	VoterID string `json:"voterId"`
}

// RoundResultPayload carries the outcome of a voting round. The eliminated
// fields are null when a tie or zero votes eliminated nobody. Winner is set
// only when this result ends the game.
type RoundResultPayload struct {
	EliminatedID   *string           `json:"eliminatedId"`
	EliminatedName *string           `json:"eliminatedName"`
	EliminatedRole *room.Role        `json:"eliminatedRole"`
	Votes          map[string]string `json:"votes"`
	Winner         string            `json:"winner,omitempty"`
	Round          int               `json:"round"`
	Players        []PlayerView      `json:"players"`
}

// GameOverPayload reveals the winner, every role, and the true word.
type GameOverPayload struct {
	Winner string               `json:"winner"`
	Roles  map[string]room.Role `json:"roles"`
	Word   string               `json:"word"`
}

// PlayerDisconnectedPayload names a player whose connection dropped mid-game.
type PlayerDisconnectedPayload struct {
	ID string `json:"id"`
}

// playerViews projects the room's membership. Caller must hold the room lock.
func playerViews(rm *room.Room) []PlayerView {
	views := make([]PlayerView, 0, len(rm.Players))
	for _, id := range rm.TurnOrder {
		if p, ok := rm.Players[id]; ok {
			views = append(views, PlayerView{ID: p.ID, Name: p.Name, Alive: p.Alive})
		}
	}
	// Lobby (or players outside the last assignment's order), in a stable
	// order so repeated broadcasts agree.
	var rest []string
	for id := range rm.Players {
		if !inOrder(rm.TurnOrder, id) {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		p := rm.Players[id]
		views = append(views, PlayerView{ID: p.ID, Name: p.Name, Alive: p.Alive})
	}
	return views
}

func inOrder(order []string, id string) bool {
	for _, o := range order {
		if o == id {
			return true
		}
	}
	return false
}

// memberIDs returns every player identity in the room. Caller must hold the
// room lock.
func memberIDs(rm *room.Room) []string {
	ids := make([]string, 0, len(rm.Players))
	for id := range rm.Players {
		ids = append(ids, id)
	}
	return ids
}
