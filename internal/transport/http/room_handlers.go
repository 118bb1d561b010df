package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-rooms/internal/core"
	"github.com/vovakirdan/wirechat-rooms/internal/proto"
)

const (
	defaultMessagesLimit = 100
	maxMessagesLimit     = 1000
)

// RoomHandlers serves read-only views of live rooms.
type RoomHandlers struct {
	registry *core.Registry
	log      *zerolog.Logger
}

// NewRoomHandlers creates a new room handlers instance.
func NewRoomHandlers(registry *core.Registry, logger *zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		registry: registry,
		log:      logger,
	}
}

// RoomResponse represents a room in API responses.
type RoomResponse struct {
	ID      string `json:"id"`
	Members int    `json:"members"`
}

// MessagesResponse is a page of a room's message log.
type MessagesResponse struct {
	Room     string               `json:"room"`
	Messages []proto.EventMessage `json:"messages"`
}

// ListRooms handles listing live rooms.
// GET /api/rooms
func (h *RoomHandlers) ListRooms(c *gin.Context) {
	ctx := c.Request.Context()
	ids := h.registry.RoomIDs()

	response := make([]RoomResponse, 0, len(ids))
	for _, id := range ids {
		room, ok := h.registry.Lookup(id)
		if !ok {
			continue
		}
		members, err := room.Members(ctx)
		if errors.Is(err, core.ErrRoomClosed) {
			continue
		}
		if err != nil {
			h.log.Error().Err(err).Str("room", id).Msg("failed to list members")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
			return
		}
		response = append(response, RoomResponse{ID: id, Members: len(members)})
	}

	h.log.Debug().Int("room_count", len(response)).Msg("rooms listed successfully")
	c.JSON(http.StatusOK, response)
}

// ListMessages returns logged messages after a sequence number.
// GET /api/rooms/:room/messages?after=0&limit=100
func (h *RoomHandlers) ListMessages(c *gin.Context) {
	roomID := c.Param("room")

	after, err := strconv.ParseInt(c.DefaultQuery("after", "0"), 10, 64)
	if err != nil || after < 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid after"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultMessagesLimit)))
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		return
	}
	limit = min(limit, maxMessagesLimit)

	room, ok := h.registry.Lookup(roomID)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	}
	msgs, err := room.Messages(c.Request.Context(), after, limit)
	if errors.Is(err, core.ErrRoomClosed) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("room", roomID).Msg("failed to read messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	c.JSON(http.StatusOK, MessagesResponse{Room: roomID, Messages: messagesToProto(msgs)})
}
