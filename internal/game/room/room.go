// Package room provides the room data model and the registry that tracks
// every active game session by its short join code.
package room

import (
	"sync"
)

// Phase is a stage of the room's game state machine.
type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseReveal   Phase = "reveal"
	PhaseClue     Phase = "clue-phase"
	PhaseVoting   Phase = "voting"
	PhaseRoundEnd Phase = "round-end"
	PhaseGameOver Phase = "game-over"
)

// Role is a player's hidden faction.
type Role string

const (
	// RoleUnset means roles have not been assigned yet.
	RoleUnset Role = ""
	// RoleCivilian players know the secret word.
	RoleCivilian Role = "civilian"
	// RoleUndercover players receive the decoy word (or a hint) instead.
	RoleUndercover Role = "undercover"
)

// Direction is the turn-advance direction, fixed for the duration of a game.
type Direction string

const (
	DirectionRight Direction = "right"
	DirectionLeft  Direction = "left"
	// DirectionRandom resolves to right or left once, at game start.
	DirectionRandom Direction = "random"
)

// Difficulty selects word-pair pools and the undercover reveal payload.
type Difficulty string

const (
	DifficultyNormal Difficulty = "normal"
	// DifficultyEasy sends undercover players the category hint instead of
	// the decoy word.
	DifficultyEasy Difficulty = "easy"
)

// Config holds the host-chosen game settings. A room has a nil Config until
// the host submits one in the lobby.
type Config struct {
	// UndercoverCount is the requested number of undercover players. The
	// engine caps the assigned count at player count minus one.
	UndercoverCount int        `json:"undercoverCount"`
	Rounds          int        `json:"rounds"`
	CategoryID      string     `json:"categoryId"`
	Difficulty      Difficulty `json:"difficulty"`
	Direction       Direction  `json:"direction"`
}

// Player is one participant in a room. ID is the transport identity and may
// change across reconnection; SessionToken is the stable credential that
// lets a player reclaim its seat.
type Player struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Role         Role   `json:"-"`
	Alive        bool   `json:"alive"`
	SessionToken string `json:"-"`
}

// Clue is one submitted clue, kept in submission order for replay.
type Clue struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Text       string `json:"clue"`
}

// Room is one isolated game session. All fields except Code are guarded by
// the room's mutex; handlers hold the lock for the full span of one inbound
// message.
type Room struct {
	mu sync.Mutex

	Code    string
	HostID  string
	Phase   Phase
	Players map[string]*Player
	Config  *Config

	// Secret content, set at game start.
	Word          string
	ReferenceWord string
	Hint          string

	// CurrentRound is 1-based and never exceeds Config.Rounds.
	CurrentRound int

	// TurnOrder is a permutation of player identities as of the last role
	// assignment. Eliminated identities stay in it and are skipped.
	TurnOrder []string
	TurnIndex int
	Direction Direction

	Clues      []Clue
	Votes      map[string]string
	Eliminated map[string]bool
	Ready      map[string]bool

	// Winner names the winning faction once the game is over; empty while
	// undecided. Kept for reconnection snapshots.
	Winner string

	// PhaseTimer is the pending quorum-fallback timer, if any.
	PhaseTimer *Timer
}

// NewRoom creates a lobby-phase room with a single host player.
func NewRoom(code string, host *Player) *Room {
	return &Room{
		Code:       code,
		HostID:     host.ID,
		Phase:      PhaseLobby,
		Players:    map[string]*Player{host.ID: host},
		Votes:      make(map[string]string),
		Eliminated: make(map[string]bool),
		Ready:      make(map[string]bool),
	}
}

// Lock acquires the room's exclusive section.
func (r *Room) Lock() { r.mu.Lock() }

// Unlock releases the room's exclusive section.
func (r *Room) Unlock() { r.mu.Unlock() }

// Eligible reports whether id names a player that is alive and not
// eliminated. Such players hold turns, submit clues, vote, and may be
// vote targets.
func (r *Room) Eligible(id string) bool {
	p, ok := r.Players[id]
	return ok && p.Alive && !r.Eliminated[id]
}

// EligibleIDs returns the identities of all eligible players.
func (r *Room) EligibleIDs() []string {
	ids := make([]string, 0, len(r.Players))
	for id := range r.Players {
		if r.Eligible(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// AliveUndercover counts undercover players that are still alive.
func (r *Room) AliveUndercover() int {
	n := 0
	for _, p := range r.Players {
		if p.Role == RoleUndercover && p.Alive {
			n++
		}
	}
	return n
}

// HasClueFrom reports whether id has already submitted a clue this round.
func (r *Room) HasClueFrom(id string) bool {
	for _, c := range r.Clues {
		if c.PlayerID == id {
			return true
		}
	}
	return false
}

// CurrentTurnID returns the identity at the current turn index, or "" if
// the turn order is empty.
func (r *Room) CurrentTurnID() string {
	if len(r.TurnOrder) == 0 {
		return ""
	}
	return r.TurnOrder[r.TurnIndex]
}

// ClearRound resets the per-round clue and vote bookkeeping.
func (r *Room) ClearRound() {
	r.Clues = nil
	r.Votes = make(map[string]string)
}

// CancelPhaseTimer stops and clears the pending phase timer, if any.
func (r *Room) CancelPhaseTimer() {
	if r.PhaseTimer != nil {
		r.PhaseTimer.Stop()
		r.PhaseTimer = nil
	}
}
