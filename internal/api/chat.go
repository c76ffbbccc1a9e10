package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/echogram/internal/apperr"
	"github.com/lalith-99/echogram/internal/chat"
	"github.com/lalith-99/echogram/internal/middleware"
	"github.com/lalith-99/echogram/internal/models"
	"github.com/lalith-99/echogram/internal/repository"
	"go.uber.org/zap"
)

type ChatHandler struct {
	rooms    repository.ChatRoomRepository
	messages repository.ChatMessageRepository
	hub      *chat.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewChatHandler(
	rooms repository.ChatRoomRepository,
	messages repository.ChatMessageRepository,
	hub *chat.Hub,
	logger *zap.Logger,
) *ChatHandler {
	return &ChatHandler{
		rooms:    rooms,
		messages: messages,
		hub:      hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Clients authenticate with a bearer token, not cookies.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

type createRoomRequest struct {
	Name string `json:"name" binding:"required,max=64"`
}

// CreateRoom handles POST /v1/chat/rooms
func (h *ChatHandler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, err)
		return
	}

	room, err := h.rooms.Create(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, h.logger, "create room", err)
		return
	}
	c.JSON(http.StatusCreated, room)
}

// ListRooms handles GET /v1/chat/rooms
func (h *ChatHandler) ListRooms(c *gin.Context) {
	rooms, err := h.rooms.List(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "list rooms", err)
		return
	}
	c.JSON(http.StatusOK, rooms)
}

func (h *ChatHandler) loadRoom(c *gin.Context, op string) (*models.ChatRoom, bool) {
	roomID, ok := idParam(c, "room_id")
	if !ok {
		return nil, false
	}
	room, err := h.rooms.GetByID(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, h.logger, op, err)
		return nil, false
	}
	if room == nil {
		respondError(c, h.logger, op, apperr.New(apperr.KindNotFound, "Room not found"))
		return nil, false
	}
	return room, true
}

// History handles GET /v1/chat/rooms/:room_id/messages
func (h *ChatHandler) History(c *gin.Context) {
	room, ok := h.loadRoom(c, "list messages")
	if !ok {
		return
	}
	msgs, err := h.messages.ListByRoom(c.Request.Context(), room.ID)
	if err != nil {
		respondError(c, h.logger, "list messages", err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// Connect handles GET /v1/chat/rooms/:room_id/ws
//
// The room is checked before the upgrade so a bad id is a plain 404. After
// the upgrade the request goroutine serves the socket until it closes.
func (h *ChatHandler) Connect(c *gin.Context) {
	room, ok := h.loadRoom(c, "join room")
	if !ok {
		return
	}
	userID := middleware.GetUserID(c)

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already answered the client.
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	h.logger.Info("chat joined",
		zap.Int64("room_id", room.ID),
		zap.Int64("user_id", userID),
		zap.String("request_id", middleware.GetRequestID(c)),
	)

	err = h.hub.Serve(c.Request.Context(), chat.NewWSConn(ws), room.ID, userID)
	switch {
	case err == nil, errors.Is(err, chat.ErrHubClosed):
	default:
		h.logger.Warn("chat session ended with error",
			zap.Int64("room_id", room.ID),
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
	}

	h.logger.Info("chat left",
		zap.Int64("room_id", room.ID),
		zap.Int64("user_id", userID),
	)
}
