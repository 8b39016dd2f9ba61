package room

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/parlorgames/undercover/internal/game/random"
)

// codeAlphabet holds the characters used in room codes. Ambiguous glyphs
// (I, O, 0, 1) are excluded.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	// DefaultCapacity is the maximum number of players per room.
	DefaultCapacity = 10
	// DefaultCodeLength is the number of characters in a room code.
	DefaultCodeLength = 6
	// DefaultGracePeriod is how long an empty room stays joinable before it
	// is swept.
	DefaultGracePeriod = 15 * time.Second
)

var (
	// ErrRoomNotFound is returned when no room exists for a code.
	ErrRoomNotFound = errors.New("room not found")
	// ErrRoomFull is returned when a room is at capacity.
	ErrRoomFull = errors.New("room full")
)

// TokenBinding maps a session token to a seat in a room.
type TokenBinding struct {
	RoomCode string
	PlayerID string
}

// Options tunes a Registry. Zero values fall back to the defaults above.
type Options struct {
	Capacity    int
	CodeLength  int
	GracePeriod time.Duration
}

// Registry is the authoritative code→room mapping plus the session-token
// and player→room indexes. It owns the per-room deletion timers.
// All methods are safe for concurrent use. Lock ordering is registry before
// room: a caller holding a room's lock must not call back into the Registry.
type Registry struct {
	mu        sync.RWMutex
	rooms     map[string]*Room
	tokens    map[string]TokenBinding
	byPlayer  map[string]string // player id → room code
	deletions map[string]*Timer

	capacity int
	codeLen  int
	grace    time.Duration
	src      random.Source
	logger   *zap.Logger
}

// NewRegistry creates an empty Registry.
//
// Precondition: src and logger must be non-nil.
func NewRegistry(opts Options, src random.Source, logger *zap.Logger) *Registry {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.CodeLength <= 0 {
		opts.CodeLength = DefaultCodeLength
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriod
	}
	return &Registry{
		rooms:     make(map[string]*Room),
		tokens:    make(map[string]TokenBinding),
		byPlayer:  make(map[string]string),
		deletions: make(map[string]*Timer),
		capacity:  opts.Capacity,
		codeLen:   opts.CodeLength,
		grace:     opts.GracePeriod,
		src:       src,
		logger:    logger,
	}
}

// Create allocates a room with a fresh collision-checked code and the given
// host as its only player.
//
// Precondition: hostID, hostName, and token must be non-empty.
// Postcondition: The room is registered and the token is indexed to the host.
func (reg *Registry) Create(hostID, hostName, token string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	code := reg.uniqueCode()
	host := &Player{ID: hostID, Name: hostName, Alive: true, SessionToken: token}
	rm := NewRoom(code, host)
	reg.rooms[code] = rm
	reg.tokens[token] = TokenBinding{RoomCode: code, PlayerID: hostID}
	reg.byPlayer[hostID] = code

	reg.logger.Info("room created",
		zap.String("room", code),
		zap.String("host", hostID),
	)
	return rm
}

// uniqueCode generates a room code not currently in use.
// Caller must hold reg.mu.
func (reg *Registry) uniqueCode() string {
	for {
		buf := make([]byte, reg.codeLen)
		for i := range buf {
			buf[i] = codeAlphabet[reg.src.Intn(len(codeAlphabet))]
		}
		code := string(buf)
		if _, taken := reg.rooms[code]; !taken {
			return code
		}
	}
}

// Get returns the room for code.
func (reg *Registry) Get(code string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	rm, ok := reg.rooms[code]
	return rm, ok
}

// Delete removes a room and every index entry that points at it, and stops
// any pending deletion timer. No-op if the code is unknown.
func (reg *Registry) Delete(code string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.deleteLocked(code)
}

// deleteLocked is Delete without locking. Caller must hold reg.mu.
func (reg *Registry) deleteLocked(code string) {
	rm, ok := reg.rooms[code]
	if !ok {
		return
	}
	if t, ok := reg.deletions[code]; ok {
		t.Stop()
		delete(reg.deletions, code)
	}
	for token, b := range reg.tokens {
		if b.RoomCode == code {
			delete(reg.tokens, token)
		}
	}
	rm.Lock()
	for id := range rm.Players {
		delete(reg.byPlayer, id)
	}
	rm.CancelPhaseTimer()
	rm.Unlock()
	delete(reg.rooms, code)

	reg.logger.Info("room deleted", zap.String("room", code))
}

// AddPlayer adds p to the room for code and indexes its token and identity.
// A successful add cancels any pending scheduled deletion: a join or rejoin
// revives a room about to be swept.
//
// Postcondition: Returns nil on success, ErrRoomNotFound if the code is
// unknown, or ErrRoomFull at capacity.
func (reg *Registry) AddPlayer(code string, p *Player) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	rm, ok := reg.rooms[code]
	if !ok {
		return ErrRoomNotFound
	}

	rm.Lock()
	defer rm.Unlock()
	if len(rm.Players) >= reg.capacity {
		return ErrRoomFull
	}
	rm.Players[p.ID] = p

	reg.tokens[p.SessionToken] = TokenBinding{RoomCode: code, PlayerID: p.ID}
	reg.byPlayer[p.ID] = code
	if t, ok := reg.deletions[code]; ok {
		t.Stop()
		delete(reg.deletions, code)
	}
	return nil
}

// RemovePlayer removes the player and its index entries from the room.
// No-op if the room or player is absent.
func (reg *Registry) RemovePlayer(code, id string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	rm, ok := reg.rooms[code]
	if !ok {
		return
	}
	rm.Lock()
	defer rm.Unlock()
	p, ok := rm.Players[id]
	if !ok {
		return
	}
	delete(rm.Players, id)
	delete(reg.byPlayer, id)
	delete(reg.tokens, p.SessionToken)
}

// SetPhase updates the phase of the room for code. No-op if absent.
func (reg *Registry) SetPhase(code string, phase Phase) {
	reg.mu.RLock()
	rm, ok := reg.rooms[code]
	reg.mu.RUnlock()
	if !ok {
		return
	}
	rm.Lock()
	rm.Phase = phase
	rm.Unlock()
}

// ScheduleDeletion arms (or re-arms) the single-shot grace timer for code.
// When it fires, the room is deleted only if it is still registered and
// still empty; a stale fire is a no-op.
func (reg *Registry) ScheduleDeletion(code string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, ok := reg.rooms[code]; !ok {
		return
	}
	if t, ok := reg.deletions[code]; ok {
		t.Stop()
	}
	var timer *Timer
	timer = NewTimer(reg.grace, func() {
		reg.mu.Lock()
		defer reg.mu.Unlock()
		if reg.deletions[code] != timer {
			return
		}
		delete(reg.deletions, code)
		rm, ok := reg.rooms[code]
		if !ok {
			return
		}
		rm.Lock()
		empty := len(rm.Players) == 0
		rm.Unlock()
		if !empty {
			return
		}
		reg.logger.Info("sweeping empty room", zap.String("room", code))
		reg.deleteLocked(code)
	})
	reg.deletions[code] = timer
}

// CancelScheduledDeletion stops any pending deletion timer for code.
func (reg *Registry) CancelScheduledDeletion(code string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if t, ok := reg.deletions[code]; ok {
		t.Stop()
		delete(reg.deletions, code)
	}
}

// RoomByPlayer returns the room currently holding the player identity.
func (reg *Registry) RoomByPlayer(id string) (*Room, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	code, ok := reg.byPlayer[id]
	if !ok {
		return nil, false
	}
	rm, ok := reg.rooms[code]
	return rm, ok
}

// IndexToken binds token to a seat, replacing any previous binding.
//
// Precondition: token, code, and playerID must be non-empty.
func (reg *Registry) IndexToken(token, code, playerID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.tokens[token] = TokenBinding{RoomCode: code, PlayerID: playerID}
}

// LookupToken resolves a session token to its seat.
func (reg *Registry) LookupToken(token string) (TokenBinding, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	b, ok := reg.tokens[token]
	return b, ok
}

// ReindexPlayer moves the player→room index entry from oldID to newID.
// Used by session continuity when a transport identity changes.
func (reg *Registry) ReindexPlayer(oldID, newID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	code, ok := reg.byPlayer[oldID]
	if !ok {
		return
	}
	delete(reg.byPlayer, oldID)
	reg.byPlayer[newID] = code
}

// RoomCount returns the number of registered rooms.
func (reg *Registry) RoomCount() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

// Capacity returns the per-room player cap.
func (reg *Registry) Capacity() int {
	return reg.capacity
}
