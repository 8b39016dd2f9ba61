package network

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/parlorgames/undercover/internal/gameserver"
)

// inbound pairs an envelope with the client that sent it.
type inbound struct {
	client *Client
	env    gameserver.Envelope
}

// Hub owns the set of connected clients and runs the single dispatch loop:
// one inbound message is handled to completion (state mutation plus
// outbound broadcasts) before the next is read, which gives the per-room
// serialization the game core relies on.
//
// Hub implements gameserver.Sink; timer goroutines inside the core may call
// Unicast/Broadcast concurrently with the dispatch loop, so the client map
// is lock-guarded.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	incoming   chan inbound

	service *gameserver.Service
	logger  *zap.Logger
}

// NewHub creates a Hub. SetService must be called before Run.
//
// Precondition: logger must be non-nil.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		incoming:   make(chan inbound),
		logger:     logger,
	}
}

// SetService wires the game service the hub dispatches into. Split from the
// constructor because the service needs the hub as its event sink.
func (h *Hub) SetService(svc *gameserver.Service) {
	h.service = svc
}

// Run dispatches register/unregister/message events until ctx is cancelled.
//
// Precondition: SetService must have been called.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Debug("client connected", zap.String("client", client.id))

		case client := <-h.unregister:
			h.mu.Lock()
			_, known := h.clients[client.id]
			if known {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			if known {
				h.service.HandleDisconnect(client.id)
				h.logger.Debug("client disconnected", zap.String("client", client.id))
			}

		case in := <-h.incoming:
			h.dispatch(ctx, in)

		case <-ctx.Done():
			return
		}
	}
}

// dispatch decodes and runs one message, sending the ack (when the message
// has one) back to the sender.
func (h *Hub) dispatch(ctx context.Context, in inbound) {
	msg, err := gameserver.Decode(in.env)
	if err != nil {
		h.logger.Warn("undecodable message",
			zap.String("client", in.client.id),
			zap.Error(err),
		)
		return
	}
	if ack := h.service.HandleMessage(ctx, in.client.id, msg); ack != nil {
		h.Unicast(in.client.id, gameserver.Event{
			Type:    gameserver.AckType(in.env.Type),
			Payload: ack,
		})
	}
}

// Unicast implements gameserver.Sink. Events to unknown or saturated
// clients are dropped.
func (h *Hub) Unicast(playerID string, ev gameserver.Event) {
	h.mu.RLock()
	client, ok := h.clients[playerID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case client.send <- ev:
	default:
		h.logger.Warn("dropping event for slow client",
			zap.String("client", playerID),
			zap.String("event", ev.Type),
		)
	}
}

// Broadcast implements gameserver.Sink.
func (h *Hub) Broadcast(playerIDs []string, ev gameserver.Event) {
	for _, id := range playerIDs {
		h.Unicast(id, ev)
	}
}
