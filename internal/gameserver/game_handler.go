package gameserver

import (
	"context"

	"go.uber.org/zap"

	"github.com/parlorgames/undercover/internal/content"
	"github.com/parlorgames/undercover/internal/game/engine"
	"github.com/parlorgames/undercover/internal/game/room"
)

// handleStartGame starts a game from the lobby. The content lookup is the
// only point a handler suspends at, so the start preconditions are checked
// both before and after it: the room may have changed hands or started by
// other means while the lookup was in flight.
func (s *Service) handleStartGame(ctx context.Context, senderID string) StartAck {
	rm, ok := s.roomOf(senderID, MsgStartGame)
	if !ok {
		return StartAck{Error: ErrCodeRoomNotFound}
	}

	rm.Lock()
	code := s.checkStartPreconditions(rm, senderID, room.PhaseLobby, true)
	var categoryID string
	var difficulty room.Difficulty
	if code == "" {
		categoryID = rm.Config.CategoryID
		difficulty = rm.Config.Difficulty
	}
	rm.Unlock()
	if code != "" {
		return StartAck{Error: code}
	}

	pair, err := s.provider.RandomWordPair(ctx, categoryID, difficulty)
	if err != nil {
		s.logger.Warn("content lookup failed",
			zap.String("room", rm.Code),
			zap.String("category", categoryID),
			zap.Error(err),
		)
		return StartAck{Error: ErrCodeStartError}
	}

	rm.Lock()
	defer rm.Unlock()
	if code := s.checkStartPreconditions(rm, senderID, room.PhaseLobby, true); code != "" {
		return StartAck{Error: code}
	}
	s.beginGameLocked(rm, pair)
	return StartAck{}
}

// handleRestartGame restarts a finished game with a fresh word pair. Same
// contract as handleStartGame, minus the player-count requirement.
func (s *Service) handleRestartGame(ctx context.Context, senderID string) StartAck {
	rm, ok := s.roomOf(senderID, MsgRestartGame)
	if !ok {
		return StartAck{Error: ErrCodeRoomNotFound}
	}

	rm.Lock()
	code := s.checkStartPreconditions(rm, senderID, room.PhaseGameOver, false)
	var categoryID string
	var difficulty room.Difficulty
	if code == "" {
		categoryID = rm.Config.CategoryID
		difficulty = rm.Config.Difficulty
	}
	rm.Unlock()
	if code != "" {
		return StartAck{Error: code}
	}

	pair, err := s.provider.RandomWordPair(ctx, categoryID, difficulty)
	if err != nil {
		s.logger.Warn("content lookup failed",
			zap.String("room", rm.Code),
			zap.String("category", categoryID),
			zap.Error(err),
		)
		return StartAck{Error: ErrCodeStartError}
	}

	rm.Lock()
	defer rm.Unlock()
	if code := s.checkStartPreconditions(rm, senderID, room.PhaseGameOver, false); code != "" {
		return StartAck{Error: code}
	}
	s.beginGameLocked(rm, pair)
	return StartAck{}
}

// checkStartPreconditions returns an ack error code, or "" when a game may
// begin. Caller must hold the room lock.
func (s *Service) checkStartPreconditions(rm *room.Room, senderID string, wantPhase room.Phase, needQuorum bool) string {
	if rm.HostID != senderID {
		return ErrCodeNotHost
	}
	if rm.Phase != wantPhase {
		return ErrCodeStartError
	}
	if needQuorum && len(rm.Players) < minPlayers {
		return ErrCodeNotEnoughPlayers
	}
	if rm.Config == nil {
		return ErrCodeNoConfig
	}
	return ""
}

// beginGameLocked resets per-game state, deals roles, reveals them, and
// arms the quorum fallback. The first turn is not announced yet; that
// happens on full acknowledgement or on the fallback, whichever first.
// Caller must hold the room lock.
func (s *Service) beginGameLocked(rm *room.Room, pair content.WordPair) {
	rm.Word = pair.Word
	rm.ReferenceWord = pair.Ref
	rm.Hint = pair.Hint
	rm.CurrentRound = 1
	rm.ClearRound()
	rm.Eliminated = make(map[string]bool)
	rm.Ready = make(map[string]bool)
	rm.Winner = ""

	engine.AssignRoles(rm, s.src)
	rm.Phase = room.PhaseReveal

	for _, p := range rm.Players {
		s.sink.Unicast(p.ID, Event{Type: EvtRoleAssigned, Payload: s.rolePayload(rm, p)})
	}
	s.sink.Broadcast(memberIDs(rm), Event{Type: EvtGameStarted, Payload: GameStartedPayload{Round: rm.CurrentRound}})

	rm.CancelPhaseTimer()
	code := rm.Code
	rm.PhaseTimer = room.NewTimer(s.quorumTimeout, func() { s.quorumElapsed(code) })

	s.logger.Info("game started",
		zap.String("room", rm.Code),
		zap.Int("players", len(rm.Players)),
	)
}

// rolePayload builds the reveal payload for one player. Civilians get the
// true word. Undercover players get the decoy word, or on easy difficulty a
// hint and no word at all; they never see the true word. Caller must hold
// the room lock.
func (s *Service) rolePayload(rm *room.Room, p *room.Player) RoleAssignedPayload {
	if p.Role == room.RoleCivilian {
		word := rm.Word
		return RoleAssignedPayload{Role: p.Role, Word: &word}
	}
	if rm.Config != nil && rm.Config.Difficulty == room.DifficultyEasy && rm.Hint != "" {
		return RoleAssignedPayload{Role: p.Role, Word: nil, Hint: rm.Hint}
	}
	decoy := rm.ReferenceWord
	return RoleAssignedPayload{Role: p.Role, Word: &decoy}
}

// quorumElapsed is the quorum-fallback timer body. It re-validates the
// phase under the room lock, so a stale fire after the phase already moved
// on is a no-op.
func (s *Service) quorumElapsed(code string) {
	rm, ok := s.registry.Get(code)
	if !ok {
		return
	}
	rm.Lock()
	defer rm.Unlock()
	if rm.Phase == room.PhaseReveal {
		s.logger.Debug("reveal quorum timed out", zap.String("room", code))
		s.beginCluePhaseLocked(rm)
	}
}

// handlePlayerReady records a role acknowledgement during reveal. When
// every player has acknowledged, the clue phase begins without waiting for
// the fallback.
func (s *Service) handlePlayerReady(senderID string) {
	rm, ok := s.roomOf(senderID, MsgPlayerReady)
	if !ok {
		return
	}
	rm.Lock()
	defer rm.Unlock()

	if rm.Phase != room.PhaseReveal {
		s.dropf(rm, senderID, MsgPlayerReady, "not in reveal")
		return
	}
	if _, ok := rm.Players[senderID]; !ok {
		s.dropf(rm, senderID, MsgPlayerReady, "not a member")
		return
	}
	rm.Ready[senderID] = true

	for id := range rm.Players {
		if !rm.Ready[id] {
			return
		}
	}
	s.beginCluePhaseLocked(rm)
}

// beginCluePhaseLocked moves reveal to clue-phase and announces the first
// turn. Idempotent: the quorum fallback and a completing acknowledgement
// may race, and whichever runs second finds the phase already advanced.
// Caller must hold the room lock.
func (s *Service) beginCluePhaseLocked(rm *room.Room) {
	if rm.Phase != room.PhaseReveal {
		return
	}
	rm.CancelPhaseTimer()
	rm.Phase = room.PhaseClue

	s.sink.Broadcast(memberIDs(rm), Event{Type: EvtTurnStarted, Payload: TurnStartedPayload{
		PlayerID:  rm.CurrentTurnID(),
		Direction: rm.Direction,
		Round:     rm.CurrentRound,
	}})
}

// handleSubmitClue records the current turn holder's clue, then advances
// the turn or, once every eligible player has spoken, opens voting.
func (s *Service) handleSubmitClue(senderID string, m *SubmitClueRequest) {
	rm, ok := s.roomOf(senderID, MsgSubmitClue)
	if !ok {
		return
	}
	rm.Lock()
	defer rm.Unlock()

	if rm.Phase != room.PhaseClue {
		s.dropf(rm, senderID, MsgSubmitClue, "not in clue phase")
		return
	}
	if rm.CurrentTurnID() != senderID {
		s.dropf(rm, senderID, MsgSubmitClue, "not their turn")
		return
	}

	p := rm.Players[senderID]
	rm.Clues = append(rm.Clues, room.Clue{PlayerID: senderID, PlayerName: p.Name, Text: m.Clue})
	s.sink.Broadcast(memberIDs(rm), Event{Type: EvtClueSubmitted, Payload: room.Clue{
		PlayerID:   senderID,
		PlayerName: p.Name,
		Text:       m.Clue,
	}})

	for _, id := range rm.EligibleIDs() {
		if !rm.HasClueFrom(id) {
			next := engine.NextTurnIndex(rm)
			if next == rm.TurnIndex {
				// No valid next turn; do not announce one.
				s.logger.Warn("no eligible next turn", zap.String("room", rm.Code))
				return
			}
			rm.TurnIndex = next
			s.sink.Broadcast(memberIDs(rm), Event{Type: EvtTurnStarted, Payload: TurnStartedPayload{
				PlayerID:  rm.CurrentTurnID(),
				Direction: rm.Direction,
				Round:     rm.CurrentRound,
			}})
			return
		}
	}
	s.beginVotingLocked(rm)
}

// handleStartVote lets the host cut the clue round short.
func (s *Service) handleStartVote(senderID string) {
	rm, ok := s.roomOf(senderID, MsgStartVote)
	if !ok {
		return
	}
	rm.Lock()
	defer rm.Unlock()

	if rm.HostID != senderID {
		s.dropf(rm, senderID, MsgStartVote, "not host")
		return
	}
	if rm.Phase != room.PhaseClue {
		s.dropf(rm, senderID, MsgStartVote, "not in clue phase")
		return
	}
	s.beginVotingLocked(rm)
}

// beginVotingLocked opens the voting phase. Caller must hold the room lock.
func (s *Service) beginVotingLocked(rm *room.Room) {
	rm.Phase = room.PhaseVoting
	rm.Votes = make(map[string]string)
	s.sink.Broadcast(memberIDs(rm), Event{Type: EvtVotingStarted})
}
