package gameserver

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/parlorgames/undercover/internal/content"
	"github.com/parlorgames/undercover/internal/game/continuity"
	"github.com/parlorgames/undercover/internal/game/random"
	"github.com/parlorgames/undercover/internal/game/room"
)

const (
	// minPlayers is the minimum number of players required to start.
	minPlayers = 2
	// DefaultQuorumTimeout is the fallback deadline for the reveal phase:
	// the first turn starts at this point even if not every player
	// acknowledged its role.
	DefaultQuorumTimeout = 15 * time.Second
)

// Service wires the registry, engine, continuity manager, and content
// provider behind the inbound protocol. One Service handles every room.
//
// Messages for a given room are serialized: the transport dispatches
// inbound messages one at a time, and the timer goroutines that can re-enter
// handler paths take the room lock and re-validate phase first.
type Service struct {
	registry   *room.Registry
	continuity *continuity.Manager
	provider   content.Provider
	sink       Sink
	src        random.Source
	logger     *zap.Logger

	quorumTimeout time.Duration
}

// NewService creates a Service.
//
// Precondition: all dependencies must be non-nil. quorumTimeout <= 0 falls
// back to DefaultQuorumTimeout.
func NewService(
	registry *room.Registry,
	cont *continuity.Manager,
	provider content.Provider,
	sink Sink,
	src random.Source,
	quorumTimeout time.Duration,
	logger *zap.Logger,
) *Service {
	if quorumTimeout <= 0 {
		quorumTimeout = DefaultQuorumTimeout
	}
	return &Service{
		registry:      registry,
		continuity:    cont,
		provider:      provider,
		sink:          sink,
		src:           src,
		logger:        logger,
		quorumTimeout: quorumTimeout,
	}
}

// HandleMessage runs one decoded inbound message to completion and returns
// the ack for message types that have one, or nil. The dispatch is
// exhaustive over the closed message set.
func (s *Service) HandleMessage(ctx context.Context, senderID string, msg Message) any {
	switch m := msg.(type) {
	case *CreateRoomRequest:
		return s.handleCreateRoom(senderID, m)
	case *JoinRoomRequest:
		return s.handleJoinRoom(senderID, m)
	case *UpdateConfigRequest:
		s.handleUpdateConfig(senderID, m)
		return nil
	case *StartGameRequest:
		return s.handleStartGame(ctx, senderID)
	case *RestartGameRequest:
		return s.handleRestartGame(ctx, senderID)
	case *StartVoteRequest:
		s.handleStartVote(senderID)
		return nil
	case *PlayerReadyRequest:
		s.handlePlayerReady(senderID)
		return nil
	case *SubmitClueRequest:
		s.handleSubmitClue(senderID, m)
		return nil
	case *SubmitVoteRequest:
		s.handleSubmitVote(senderID, m)
		return nil
	default:
		s.logger.Warn("unhandled message type", zap.String("sender", senderID))
		return nil
	}
}

// roomOf resolves the sender's current room, logging when there is none.
func (s *Service) roomOf(senderID, action string) (*room.Room, bool) {
	rm, ok := s.registry.RoomByPlayer(senderID)
	if !ok {
		s.logger.Debug("message from player with no room",
			zap.String("player", senderID),
			zap.String("action", action),
		)
	}
	return rm, ok
}

// dropf logs a silently dropped action. Invalid actions are not surfaced on
// the wire, but every drop leaves a diagnostic trail.
func (s *Service) dropf(rm *room.Room, senderID, action, reason string) {
	s.logger.Warn("dropped action",
		zap.String("room", rm.Code),
		zap.String("player", senderID),
		zap.String("action", action),
		zap.String("reason", reason),
	)
}
