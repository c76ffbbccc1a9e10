// Package chat is the in-process connection registry and broadcast router
// for room chat.
//
// Locking:
//   - Hub.mu guards the handle map and the room table. It is held only for
//     in-memory inserts, removals and lookups, never across I/O.
//   - room.mu serializes everything that touches a room's message order:
//     join replay, persist and fan-out. A join therefore sees either all of
//     a broadcast (in its replay) or all of it live, never both or neither.
//
// Hub.mu may be taken while a room.mu is held, never the other way round.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/lalith-99/echogram/internal/models"
	"go.uber.org/zap"
)

const (
	SelfPrefix  = "Me >> "
	OtherPrefix = "Friend >> "
)

var (
	ErrAlreadyRegistered = errors.New("connection already registered")
	ErrNotRegistered     = errors.New("connection not registered")
	ErrHubClosed         = errors.New("chat hub closed")
)

// Conn is one live duplex channel. Send and Close may be called from
// different goroutines.
type Conn interface {
	Send(text string) error
	Close() error
}

// MessageLog is the durable, append-only history of each room.
type MessageLog interface {
	Save(ctx context.Context, roomID, userID int64, content string) (*models.ChatMessage, error)
	ListByRoom(ctx context.Context, roomID int64) ([]models.ChatMessage, error)
}

type entry struct {
	roomID int64
	userID int64
	room   *room
}

type room struct {
	mu      sync.Mutex
	members map[Conn]int64 // conn -> user id; guarded by mu

	refs int // guarded by Hub.mu
}

type Hub struct {
	log    MessageLog
	logger *zap.Logger

	mu     sync.Mutex
	conns  map[Conn]entry
	rooms  map[int64]*room
	closed bool
}

func NewHub(log MessageLog, logger *zap.Logger) *Hub {
	return &Hub{
		log:    log,
		logger: logger,
		conns:  make(map[Conn]entry),
		rooms:  make(map[int64]*room),
	}
}

// Render formats msg for the member recipientID.
func Render(msg models.ChatMessage, recipientID int64) string {
	if msg.UserID == recipientID {
		return SelfPrefix + msg.Content
	}
	return OtherPrefix + msg.Content
}

// acquire returns the room for roomID with one more reference.
// Caller holds h.mu.
func (h *Hub) acquire(roomID int64) *room {
	r, ok := h.rooms[roomID]
	if !ok {
		r = &room{members: make(map[Conn]int64)}
		h.rooms[roomID] = r
	}
	r.refs++
	return r
}

// release drops one reference. Caller holds h.mu.
func (h *Hub) release(roomID int64, r *room) {
	r.refs--
	if r.refs <= 0 && h.rooms[roomID] == r {
		delete(h.rooms, roomID)
	}
}

// Connect registers conn as userID in roomID and replays the room history
// to conn alone. If the history cannot be loaded or written, conn is
// unregistered again and the error returned; closing it is up to the
// caller.
func (h *Hub) Connect(ctx context.Context, conn Conn, roomID, userID int64) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	if _, ok := h.conns[conn]; ok {
		h.mu.Unlock()
		return ErrAlreadyRegistered
	}
	r := h.acquire(roomID)
	h.conns[conn] = entry{roomID: roomID, userID: userID, room: r}
	h.mu.Unlock()

	if err := h.join(ctx, r, conn, roomID, userID); err != nil {
		h.Disconnect(conn)
		return err
	}

	h.logger.Debug("chat connection registered",
		zap.Int64("room_id", roomID),
		zap.Int64("user_id", userID),
	)
	return nil
}

func (h *Hub) join(ctx context.Context, r *room, conn Conn, roomID, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	history, err := h.log.ListByRoom(ctx, roomID)
	if err != nil {
		return fmt.Errorf("load room history: %w", err)
	}
	for _, msg := range history {
		if err := conn.Send(Render(msg, userID)); err != nil {
			return fmt.Errorf("replay room history: %w", err)
		}
	}

	// Disconnect may have run while the history was replaying.
	h.mu.Lock()
	_, still := h.conns[conn]
	h.mu.Unlock()
	if !still {
		return ErrNotRegistered
	}

	r.members[conn] = userID
	return nil
}

// Broadcast persists content as a message from conn's member and delivers
// it to every connection in the same room, rendered per recipient. If
// persisting fails nothing is delivered. Recipients whose Send fails are
// disconnected and closed; the rest still get the message.
func (h *Hub) Broadcast(ctx context.Context, conn Conn, content string) (*models.ChatMessage, error) {
	h.mu.Lock()
	e, ok := h.conns[conn]
	if !ok {
		h.mu.Unlock()
		return nil, ErrNotRegistered
	}
	r := e.room
	r.refs++
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		h.release(e.roomID, r)
		h.mu.Unlock()
	}()

	msg, dead, err := h.fanOut(ctx, r, e, content)
	if err != nil {
		return nil, err
	}

	for _, c := range dead {
		h.Disconnect(c)
		if err := c.Close(); err != nil {
			h.logger.Debug("close dead chat connection", zap.Error(err))
		}
	}
	if len(dead) > 0 {
		h.logger.Info("dropped dead chat connections",
			zap.Int64("room_id", e.roomID),
			zap.Int("count", len(dead)),
		)
	}
	return msg, nil
}

func (h *Hub) fanOut(ctx context.Context, r *room, e entry, content string) (*models.ChatMessage, []Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	msg, err := h.log.Save(ctx, e.roomID, e.userID, content)
	if err != nil {
		return nil, nil, fmt.Errorf("persist chat message: %w", err)
	}

	var dead []Conn
	for c, userID := range r.members {
		if err := c.Send(Render(*msg, userID)); err != nil {
			h.logger.Debug("chat delivery failed",
				zap.Int64("room_id", e.roomID),
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
			dead = append(dead, c)
		}
	}
	return msg, dead, nil
}

// Disconnect unregisters conn. Unknown or already removed connections are
// ignored.
func (h *Hub) Disconnect(conn Conn) {
	h.mu.Lock()
	e, ok := h.conns[conn]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, conn)
	h.release(e.roomID, e.room)
	h.mu.Unlock()

	e.room.mu.Lock()
	delete(e.room.members, conn)
	e.room.mu.Unlock()

	h.logger.Debug("chat connection removed",
		zap.Int64("room_id", e.roomID),
		zap.Int64("user_id", e.userID),
	)
}

// Shutdown closes every registered connection and refuses new ones.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	h.closed = true
	conns := make([]Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		h.Disconnect(c)
		if err := c.Close(); err != nil {
			h.logger.Debug("close chat connection", zap.Error(err))
		}
	}
	h.logger.Info("chat hub shut down", zap.Int("closed", len(conns)))
}

// Count reports how many connections are registered.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// RoomCount reports how many connections are registered in roomID.
func (h *Hub) RoomCount(roomID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, e := range h.conns {
		if e.roomID == roomID {
			n++
		}
	}
	return n
}
