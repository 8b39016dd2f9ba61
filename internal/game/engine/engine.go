// Package engine implements the deterministic game rules for a room: role
// assignment, turn advancement, vote resolution, and victory evaluation.
// All randomness flows through a random.Source so tests can pin outcomes.
package engine

import (
	"github.com/parlorgames/undercover/internal/game/random"
	"github.com/parlorgames/undercover/internal/game/room"
)

// Winner names the faction that won a finished game.
type Winner string

const (
	// WinnerNone means the game is still undecided.
	WinnerNone Winner = ""
	// WinnerCivilians is the majority faction win.
	WinnerCivilians Winner = "civilians"
	// WinnerUndercover is the minority faction win.
	WinnerUndercover Winner = "undercover"
)

// AssignRoles deals hidden roles and a fresh turn order to every player in
// the room. The assigned undercover count is capped at one less than the
// player count, so at least one civilian always exists. Every player is
// forced alive regardless of prior state, and the turn direction is fixed
// for the game (a random direction is resolved here).
//
// Precondition: rm.Config must be non-nil and rm must have at least one
// player; panics otherwise (programmer contract).
// Postcondition: rm.TurnOrder is a permutation of the player identity set;
// rm.TurnIndex == 0; every player has a non-unset role.
func AssignRoles(rm *room.Room, src random.Source) {
	if rm.Config == nil {
		panic("engine: AssignRoles called with nil room config")
	}
	if len(rm.Players) == 0 {
		panic("engine: AssignRoles called on empty room")
	}

	ids := make([]string, 0, len(rm.Players))
	for id := range rm.Players {
		ids = append(ids, id)
	}

	undercover := rm.Config.UndercoverCount
	if max := len(ids) - 1; undercover > max {
		undercover = max
	}

	shuffled := random.Perm(src, ids)
	for i, id := range shuffled {
		p := rm.Players[id]
		if i < undercover {
			p.Role = room.RoleUndercover
		} else {
			p.Role = room.RoleCivilian
		}
		p.Alive = true
	}

	// Independent permutation so turn position leaks nothing about roles.
	rm.TurnOrder = random.Perm(src, ids)
	rm.TurnIndex = 0

	rm.Direction = rm.Config.Direction
	if rm.Direction == "" || rm.Direction == room.DirectionRandom {
		if src.Intn(2) == 0 {
			rm.Direction = room.DirectionRight
		} else {
			rm.Direction = room.DirectionLeft
		}
	}
}

// NextTurnIndex returns the index of the next eligible turn holder, stepping
// by +1 (right) or -1 (left) modulo the turn order length and skipping dead
// or eliminated identities. At most len(TurnOrder) probes are made; if none
// finds an eligible player, the unchanged index is returned and the caller
// must treat that as "no valid next turn".
func NextTurnIndex(rm *room.Room) int {
	n := len(rm.TurnOrder)
	if n == 0 {
		return rm.TurnIndex
	}

	step := 1
	if rm.Direction == room.DirectionLeft {
		step = -1
	}

	idx := rm.TurnIndex
	for probes := 0; probes < n; probes++ {
		idx = ((idx+step)%n + n) % n
		if rm.Eligible(rm.TurnOrder[idx]) {
			return idx
		}
	}
	return rm.TurnIndex
}

// FirstEligibleIndex returns the lowest turn-order index holding an eligible
// player, or 0 if none exists. Used when a new round starts.
func FirstEligibleIndex(rm *room.Room) int {
	for i, id := range rm.TurnOrder {
		if rm.Eligible(id) {
			return i
		}
	}
	return 0
}

// VoteResult is the outcome of one voting round. The eliminated fields are
// zero-valued when nobody was voted out.
type VoteResult struct {
	EliminatedID   string
	EliminatedName string
	EliminatedRole room.Role
	// Votes is the verbatim voter→target map that was tallied.
	Votes map[string]string
	// UndercoverWipedOut is set when the eliminated player was the last
	// living undercover, which is an immediate civilian win independent of
	// the round count.
	UndercoverWipedOut bool
}

// ResolveVotes tallies the room's votes by target. A strict unique maximum
// eliminates that target (marked dead and added to the eliminated set); a
// tie among two or more targets, or zero votes cast, eliminates nobody.
func ResolveVotes(rm *room.Room) VoteResult {
	res := VoteResult{Votes: rm.Votes}

	tally := make(map[string]int)
	for _, target := range rm.Votes {
		tally[target]++
	}

	top := ""
	max, ties := 0, 0
	for target, n := range tally {
		switch {
		case n > max:
			top, max, ties = target, n, 1
		case n == max:
			ties++
		}
	}
	if max == 0 || ties > 1 {
		return res
	}

	p, ok := rm.Players[top]
	if !ok {
		return res
	}
	p.Alive = false
	rm.Eliminated[top] = true

	res.EliminatedID = p.ID
	res.EliminatedName = p.Name
	res.EliminatedRole = p.Role
	if p.Role == room.RoleUndercover && rm.AliveUndercover() == 0 {
		res.UndercoverWipedOut = true
	}
	return res
}

// CheckVictory evaluates the standing win conditions. Civilians win the
// moment no undercover player is alive; this is checked unconditionally
// first, so it takes priority even with rounds exhausted. Otherwise the
// undercover side wins once the configured round count is reached. Returns
// WinnerNone while the game is undecided.
//
// Precondition: rm.Config must be non-nil when any undercover players are
// alive; panics otherwise (programmer contract).
func CheckVictory(rm *room.Room) Winner {
	if rm.AliveUndercover() == 0 {
		return WinnerCivilians
	}
	if rm.Config == nil {
		panic("engine: CheckVictory called with nil room config")
	}
	if rm.CurrentRound >= rm.Config.Rounds {
		return WinnerUndercover
	}
	return WinnerNone
}
