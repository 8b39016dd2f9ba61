package gameserver

import (
	"go.uber.org/zap"

	"github.com/parlorgames/undercover/internal/game/engine"
	"github.com/parlorgames/undercover/internal/game/room"
)

// handleSubmitVote records one vote. Only alive, non-eliminated voters may
// vote, only alive, non-eliminated players may be targeted, and a voter
// votes once per round; anything else is dropped silently. Each accepted
// vote is announced by voter identity only. Once every eligible voter has
// voted, the round resolves.
func (s *Service) handleSubmitVote(senderID string, m *SubmitVoteRequest) {
	rm, ok := s.roomOf(senderID, MsgSubmitVote)
	if !ok {
		return
	}
	rm.Lock()
	defer rm.Unlock()

	if rm.Phase != room.PhaseVoting {
		s.dropf(rm, senderID, MsgSubmitVote, "not in voting phase")
		return
	}
	if !rm.Eligible(senderID) {
		s.dropf(rm, senderID, MsgSubmitVote, "voter not eligible")
		return
	}
	if !rm.Eligible(m.TargetID) {
		s.dropf(rm, senderID, MsgSubmitVote, "target not eligible")
		return
	}
	if _, voted := rm.Votes[senderID]; voted {
		s.dropf(rm, senderID, MsgSubmitVote, "already voted")
		return
	}

	rm.Votes[senderID] = m.TargetID
	s.sink.Broadcast(memberIDs(rm), Event{Type: EvtVoteCast, Payload: VoteCastPayload{VoterID: senderID}})

	if len(rm.Votes) >= len(rm.EligibleIDs()) {
		s.resolveRoundLocked(rm)
	}
}

// resolveRoundLocked tallies the round's votes, broadcasts the result, and
// either finalizes the game or starts the next round. The decision order
// is: the resolver's immediate civilian-win signal, then the standing
// victory conditions (which include round exhaustion), then a new round.
// Caller must hold the room lock.
func (s *Service) resolveRoundLocked(rm *room.Room) {
	res := engine.ResolveVotes(rm)
	rm.Phase = room.PhaseRoundEnd

	var winner engine.Winner
	if res.UndercoverWipedOut {
		winner = engine.WinnerCivilians
	} else if w := engine.CheckVictory(rm); w != engine.WinnerNone {
		winner = w
	}

	payload := RoundResultPayload{
		Votes:   res.Votes,
		Winner:  string(winner),
		Round:   rm.CurrentRound,
		Players: playerViews(rm),
	}
	if res.EliminatedID != "" {
		payload.EliminatedID = &res.EliminatedID
		payload.EliminatedName = &res.EliminatedName
		payload.EliminatedRole = &res.EliminatedRole
	}
	s.sink.Broadcast(memberIDs(rm), Event{Type: EvtRoundResult, Payload: payload})

	if winner != engine.WinnerNone {
		s.finalizeLocked(rm, winner)
		return
	}

	rm.CurrentRound++
	rm.ClearRound()
	rm.TurnIndex = engine.FirstEligibleIndex(rm)
	rm.Phase = room.PhaseClue
	s.sink.Broadcast(memberIDs(rm), Event{Type: EvtTurnStarted, Payload: TurnStartedPayload{
		PlayerID:  rm.CurrentTurnID(),
		Direction: rm.Direction,
		Round:     rm.CurrentRound,
	}})
}

// finalizeLocked ends the game: the winner, every final role, and the true
// word go out to the whole room. Caller must hold the room lock.
func (s *Service) finalizeLocked(rm *room.Room, winner engine.Winner) {
	rm.Phase = room.PhaseGameOver
	rm.Winner = string(winner)
	rm.CancelPhaseTimer()

	s.sink.Broadcast(memberIDs(rm), Event{Type: EvtGameOver, Payload: s.gameOverPayload(rm)})

	s.logger.Info("game over",
		zap.String("room", rm.Code),
		zap.String("winner", string(winner)),
	)
}

// gameOverPayload rebuilds the terminal snapshot. Caller must hold the
// room lock.
func (s *Service) gameOverPayload(rm *room.Room) GameOverPayload {
	roles := make(map[string]room.Role, len(rm.Players))
	for id, p := range rm.Players {
		roles[id] = p.Role
	}
	return GameOverPayload{Winner: rm.Winner, Roles: roles, Word: rm.Word}
}
