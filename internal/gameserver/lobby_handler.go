package gameserver

import (
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/parlorgames/undercover/internal/game/room"
)

// handleCreateRoom allocates a room with the sender as host and issues the
// sender's session token.
func (s *Service) handleCreateRoom(senderID string, m *CreateRoomRequest) CreateRoomAck {
	token := uuid.NewString()
	rm := s.registry.Create(senderID, m.Name, token)

	rm.Lock()
	views := playerViews(rm)
	rm.Unlock()

	return CreateRoomAck{Code: rm.Code, Players: views, Token: token}
}

// handleJoinRoom adds the sender to a lobby, or re-attaches a returning
// player when the supplied token still resolves to a seat in the room.
func (s *Service) handleJoinRoom(senderID string, m *JoinRoomRequest) JoinRoomAck {
	if m.Token != "" {
		if ack, handled := s.tryReconnect(senderID, m); handled {
			return ack
		}
	}

	rm, ok := s.registry.Get(m.Code)
	if !ok {
		return JoinRoomAck{Error: ErrCodeRoomNotFound}
	}
	rm.Lock()
	inLobby := rm.Phase == room.PhaseLobby
	rm.Unlock()
	if !inLobby {
		return JoinRoomAck{Error: ErrCodeGameStarted}
	}

	token := uuid.NewString()
	p := &room.Player{ID: senderID, Name: m.Name, Alive: true, SessionToken: token}
	switch err := s.registry.AddPlayer(m.Code, p); err {
	case nil:
	case room.ErrRoomNotFound:
		return JoinRoomAck{Error: ErrCodeRoomNotFound}
	case room.ErrRoomFull:
		return JoinRoomAck{Error: ErrCodeRoomFull}
	default:
		s.logger.Error("join failed", zap.String("room", m.Code), zap.Error(err))
		return JoinRoomAck{Error: ErrCodeRoomNotFound}
	}

	rm.Lock()
	// A join can revive a room whose last player left during the deletion
	// grace period; the departed host must not keep the seat.
	if _, ok := rm.Players[rm.HostID]; !ok {
		rm.HostID = promoteHost(rm)
	}
	views := playerViews(rm)
	members := memberIDs(rm)
	hostID := rm.HostID
	rm.Unlock()
	s.sink.Broadcast(members, Event{Type: EvtRoomUpdated, Payload: RoomUpdatedPayload{Players: views, HostID: hostID}})

	s.logger.Info("player joined",
		zap.String("room", m.Code),
		zap.String("player", senderID),
	)
	return JoinRoomAck{Code: rm.Code, Players: views, Token: token}
}

// tryReconnect re-attaches the sender to its previous seat. Returns
// handled=false when the token does not resolve to a live seat in the
// requested room, in which case the join proceeds as a fresh one.
func (s *Service) tryReconnect(senderID string, m *JoinRoomRequest) (JoinRoomAck, bool) {
	binding, ok := s.registry.LookupToken(m.Token)
	if !ok || binding.RoomCode != m.Code {
		return JoinRoomAck{}, false
	}
	rm, ok := s.registry.Get(binding.RoomCode)
	if !ok {
		return JoinRoomAck{}, false
	}
	rm.Lock()
	_, present := rm.Players[binding.PlayerID]
	rm.Unlock()
	if !present {
		return JoinRoomAck{}, false
	}

	if binding.PlayerID != senderID {
		s.continuity.ReplacePlayerSocket(rm.Code, binding.PlayerID, senderID)

		rm.Lock()
		views := playerViews(rm)
		members := memberIDs(rm)
		hostID := rm.HostID
		rm.Unlock()
		s.sink.Broadcast(members, Event{Type: EvtRoomUpdated, Payload: RoomUpdatedPayload{Players: views, HostID: hostID}})

		s.resendPhaseState(rm, senderID)
		return JoinRoomAck{Code: rm.Code, Players: views, Token: m.Token}, true
	}

	// Same identity: idempotent no-op.
	rm.Lock()
	views := playerViews(rm)
	rm.Unlock()
	return JoinRoomAck{Code: rm.Code, Players: views, Token: m.Token}, true
}

// resendPhaseState replays the room's current state to a re-attached
// player: its role and word if assigned, the current turn with accumulated
// clue history in the clue phase, and the voting or game-over snapshot.
func (s *Service) resendPhaseState(rm *room.Room, playerID string) {
	rm.Lock()
	defer rm.Unlock()

	p, ok := rm.Players[playerID]
	if !ok {
		return
	}

	if rm.Phase != room.PhaseLobby && p.Role != room.RoleUnset {
		s.sink.Unicast(playerID, Event{Type: EvtRoleAssigned, Payload: s.rolePayload(rm, p)})
	}

	switch rm.Phase {
	case room.PhaseClue:
		s.sink.Unicast(playerID, Event{Type: EvtCluesHistory, Payload: append([]room.Clue(nil), rm.Clues...)})
		s.sink.Unicast(playerID, Event{Type: EvtTurnStarted, Payload: TurnStartedPayload{
			PlayerID:  rm.CurrentTurnID(),
			Direction: rm.Direction,
			Round:     rm.CurrentRound,
		}})
	case room.PhaseVoting:
		s.sink.Unicast(playerID, Event{Type: EvtCluesHistory, Payload: append([]room.Clue(nil), rm.Clues...)})
		s.sink.Unicast(playerID, Event{Type: EvtVotingStarted})
		for voter := range rm.Votes {
			s.sink.Unicast(playerID, Event{Type: EvtVoteCast, Payload: VoteCastPayload{VoterID: voter}})
		}
	case room.PhaseGameOver:
		s.sink.Unicast(playerID, Event{Type: EvtGameOver, Payload: s.gameOverPayload(rm)})
	}
}

// handleUpdateConfig replaces the room config. Non-host senders and wrong
// phases are silently ignored on the wire.
func (s *Service) handleUpdateConfig(senderID string, m *UpdateConfigRequest) {
	rm, ok := s.roomOf(senderID, MsgUpdateConfig)
	if !ok {
		return
	}

	rm.Lock()
	if rm.HostID != senderID {
		rm.Unlock()
		s.dropf(rm, senderID, MsgUpdateConfig, "not host")
		return
	}
	if rm.Phase != room.PhaseLobby && rm.Phase != room.PhaseGameOver {
		rm.Unlock()
		s.dropf(rm, senderID, MsgUpdateConfig, "game in progress")
		return
	}
	if m.Config.UndercoverCount < 1 || m.Config.Rounds < 1 {
		rm.Unlock()
		s.dropf(rm, senderID, MsgUpdateConfig, "invalid config")
		return
	}
	cfg := m.Config
	rm.Config = &cfg
	members := memberIDs(rm)
	rm.Unlock()

	s.sink.Broadcast(members, Event{Type: EvtConfigUpdated, Payload: cfg})
}

// HandleDisconnect reacts to a dropped transport connection. In the lobby
// the player is removed (and an emptied room is scheduled for deletion);
// in any other phase the seat is preserved for a token rejoin and only a
// disconnect notice is broadcast.
func (s *Service) HandleDisconnect(senderID string) {
	rm, ok := s.registry.RoomByPlayer(senderID)
	if !ok {
		return
	}

	rm.Lock()
	phase := rm.Phase
	rm.Unlock()

	if phase != room.PhaseLobby {
		rm.Lock()
		members := memberIDs(rm)
		rm.Unlock()
		s.sink.Broadcast(members, Event{Type: EvtPlayerDisconnected, Payload: PlayerDisconnectedPayload{ID: senderID}})
		s.logger.Info("player disconnected mid-game",
			zap.String("room", rm.Code),
			zap.String("player", senderID),
		)
		return
	}

	s.registry.RemovePlayer(rm.Code, senderID)

	rm.Lock()
	if len(rm.Players) == 0 {
		rm.Unlock()
		s.registry.ScheduleDeletion(rm.Code)
		return
	}
	if rm.HostID == senderID {
		rm.HostID = promoteHost(rm)
	}
	views := playerViews(rm)
	members := memberIDs(rm)
	hostID := rm.HostID
	rm.Unlock()

	s.sink.Broadcast(members, Event{Type: EvtRoomUpdated, Payload: RoomUpdatedPayload{Players: views, HostID: hostID}})
}

// promoteHost picks a replacement host: the first remaining alive player in
// a stable order, else the first remaining player. Caller must hold the
// room lock and guarantee at least one player remains.
func promoteHost(rm *room.Room) string {
	ids := make([]string, 0, len(rm.Players))
	for id := range rm.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if rm.Players[id].Alive {
			return id
		}
	}
	return ids[0]
}
