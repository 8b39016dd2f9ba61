// Package continuity re-maps a player's transport identity across every
// room substructure when the player reconnects on a new connection. The
// game identity (seat, role, bookkeeping) survives; only the identity key
// changes.
package continuity

import (
	"go.uber.org/zap"

	"github.com/parlorgames/undercover/internal/game/room"
)

// Manager rewrites player identities in place.
type Manager struct {
	registry *room.Registry
	logger   *zap.Logger
}

// NewManager creates a continuity Manager.
//
// Precondition: registry and logger must be non-nil.
func NewManager(registry *room.Registry, logger *zap.Logger) *Manager {
	return &Manager{registry: registry, logger: logger}
}

// ReplacePlayerSocket re-keys every occurrence of oldID in the room to
// newID: the player record itself, the host designation, the turn order,
// clue and vote bookkeeping (both voter keys and vote targets), and the
// eliminated/ready sets. The registry's token and player indexes are
// updated afterwards. Returns false (a no-op) if the room is unknown or
// oldID names no current player.
//
// The room rewrite happens in one exclusive section: because messages for
// a room are handled one at a time, no partially-remapped state is ever
// observable by another handler.
//
// Precondition: the caller must not hold the room's lock.
func (m *Manager) ReplacePlayerSocket(code, oldID, newID string) bool {
	if oldID == newID {
		return false
	}
	rm, ok := m.registry.Get(code)
	if !ok {
		return false
	}

	rm.Lock()
	p, ok := rm.Players[oldID]
	if !ok {
		rm.Unlock()
		return false
	}

	delete(rm.Players, oldID)
	p.ID = newID
	rm.Players[newID] = p

	if rm.HostID == oldID {
		rm.HostID = newID
	}
	for i, id := range rm.TurnOrder {
		if id == oldID {
			rm.TurnOrder[i] = newID
		}
	}
	for i := range rm.Clues {
		if rm.Clues[i].PlayerID == oldID {
			rm.Clues[i].PlayerID = newID
		}
	}
	if target, ok := rm.Votes[oldID]; ok {
		delete(rm.Votes, oldID)
		rm.Votes[newID] = target
	}
	for voter, target := range rm.Votes {
		if target == oldID {
			rm.Votes[voter] = newID
		}
	}
	if rm.Eliminated[oldID] {
		delete(rm.Eliminated, oldID)
		rm.Eliminated[newID] = true
	}
	if rm.Ready[oldID] {
		delete(rm.Ready, oldID)
		rm.Ready[newID] = true
	}
	token := p.SessionToken
	rm.Unlock()

	m.registry.ReindexPlayer(oldID, newID)
	m.registry.IndexToken(token, code, newID)

	m.logger.Info("player identity replaced",
		zap.String("room", code),
		zap.String("old", oldID),
		zap.String("new", newID),
	)
	return true
}
