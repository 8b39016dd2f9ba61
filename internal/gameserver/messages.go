// Package gameserver implements the protocol handlers that drive a room's
// phase state machine: lobby and session management, clue turns, voting,
// and disconnect/reconnect continuity.
package gameserver

import (
	"encoding/json"
	"fmt"

	"github.com/parlorgames/undercover/internal/game/room"
)

// Inbound message types. Together with the typed payload structs below they
// form a closed set; Decode rejects anything else.
const (
	MsgCreateRoom   = "create-room"
	MsgJoinRoom     = "join-room"
	MsgUpdateConfig = "update-config"
	MsgStartGame    = "start-game"
	MsgRestartGame  = "restart-game"
	MsgStartVote    = "start-vote"
	MsgPlayerReady  = "player-ready"
	MsgSubmitClue   = "submit-clue"
	MsgSubmitVote   = "submit-vote"
)

// Ack error codes surfaced to the requester.
const (
	ErrCodeRoomNotFound     = "ROOM_NOT_FOUND"
	ErrCodeRoomFull         = "ROOM_FULL"
	ErrCodeGameStarted      = "GAME_STARTED"
	ErrCodeNotHost          = "NOT_HOST"
	ErrCodeNotEnoughPlayers = "NOT_ENOUGH_PLAYERS"
	ErrCodeNoConfig         = "NO_CONFIG"
	ErrCodeStartError       = "START_ERROR"
)

// Envelope is the wire form of every inbound message.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// CreateRoomRequest asks for a new room with the sender as host.
type CreateRoomRequest struct {
	Name string `json:"name"`
}

// JoinRoomRequest joins an existing room, or reclaims a seat when Token
// matches a previous session in the room.
type JoinRoomRequest struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Token string `json:"token,omitempty"`
}

// UpdateConfigRequest replaces the room's game settings. Host only.
type UpdateConfigRequest struct {
	Config room.Config `json:"config"`
}

// SubmitClueRequest submits the sender's clue for the current turn.
type SubmitClueRequest struct {
	Clue string `json:"clue"`
}

// SubmitVoteRequest votes to eliminate the target player.
type SubmitVoteRequest struct {
	TargetID string `json:"targetId"`
}

// Message is one decoded inbound message.
type Message interface{ messageType() string }

func (CreateRoomRequest) messageType() string   { return MsgCreateRoom }
func (JoinRoomRequest) messageType() string     { return MsgJoinRoom }
func (UpdateConfigRequest) messageType() string { return MsgUpdateConfig }
func (StartGameRequest) messageType() string    { return MsgStartGame }
func (RestartGameRequest) messageType() string  { return MsgRestartGame }
func (StartVoteRequest) messageType() string    { return MsgStartVote }
func (PlayerReadyRequest) messageType() string  { return MsgPlayerReady }
func (SubmitClueRequest) messageType() string   { return MsgSubmitClue }
func (SubmitVoteRequest) messageType() string   { return MsgSubmitVote }

// StartGameRequest starts the game from the lobby. Host only.
type StartGameRequest struct{}

// RestartGameRequest restarts a finished game. Host only.
type RestartGameRequest struct{}

// StartVoteRequest forces the clue phase into voting. Host only.
type StartVoteRequest struct{}

// PlayerReadyRequest acknowledges the sender's role reveal.
type PlayerReadyRequest struct{}

// Decode parses an envelope into its typed message.
//
// Postcondition: Returns a non-nil Message, or an error for an unknown type
// or malformed payload.
func Decode(env Envelope) (Message, error) {
	unmarshal := func(dst Message) (Message, error) {
		if len(env.Payload) == 0 {
			return dst, nil
		}
		if err := json.Unmarshal(env.Payload, dst); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", env.Type, err)
		}
		return dst, nil
	}

	switch env.Type {
	case MsgCreateRoom:
		return unmarshal(&CreateRoomRequest{})
	case MsgJoinRoom:
		return unmarshal(&JoinRoomRequest{})
	case MsgUpdateConfig:
		return unmarshal(&UpdateConfigRequest{})
	case MsgStartGame:
		return &StartGameRequest{}, nil
	case MsgRestartGame:
		return &RestartGameRequest{}, nil
	case MsgStartVote:
		return &StartVoteRequest{}, nil
	case MsgPlayerReady:
		return &PlayerReadyRequest{}, nil
	case MsgSubmitClue:
		return unmarshal(&SubmitClueRequest{})
	case MsgSubmitVote:
		return unmarshal(&SubmitVoteRequest{})
	default:
		return nil, fmt.Errorf("unknown message type %q", env.Type)
	}
}

// AckType returns the outbound event type carrying the ack for an inbound
// message type, e.g. "join-room" → "join-room-ack".
func AckType(msgType string) string {
	return msgType + "-ack"
}

// CreateRoomAck is the synchronous result of create-room.
type CreateRoomAck struct {
	Code    string       `json:"code"`
	Players []PlayerView `json:"players"`
	Token   string       `json:"token"`
}

// JoinRoomAck is the synchronous result of join-room. Error is one of the
// ack error codes, or empty on success.
type JoinRoomAck struct {
	Error   string       `json:"error,omitempty"`
	Code    string       `json:"code,omitempty"`
	Players []PlayerView `json:"players,omitempty"`
	Token   string       `json:"token,omitempty"`
}

// StartAck is the synchronous result of start-game and restart-game.
type StartAck struct {
	Error string `json:"error,omitempty"`
}
