package handler

import (
	"context"
	"net/http"

	"petaverse-chat/internal/domain/chat"
	"petaverse-chat/internal/transport/httpdto"
	petaverse_errors "petaverse-chat/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RoomService interface {
	CreateOrGet(ctx context.Context, listingID, counterpartID, requesterID uuid.UUID) (chat.RoomSummary, error)
	Get(ctx context.Context, roomID, requesterID uuid.UUID) (chat.RoomSummary, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]chat.RoomSummary, error)
}

type RoomHandler struct {
	rooms RoomService
}

func NewRoomHandler(rooms RoomService) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

func (h *RoomHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req httpdto.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(petaverse_errors.Validation("invalid request"))
		return
	}
	listingID, err := uuid.Parse(req.ListingID)
	if err != nil {
		_ = c.Error(petaverse_errors.Validation("invalid listing_id"))
		return
	}
	counterpartID, err := uuid.Parse(req.CounterpartID)
	if err != nil {
		_ = c.Error(petaverse_errors.Validation("invalid counterpart_id"))
		return
	}

	summary, err := h.rooms.CreateOrGet(c.Request.Context(), listingID, counterpartID, userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromRoomSummary(summary)))
}

func (h *RoomHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	summaries, err := h.rooms.ListForUser(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromRoomSummaries(summaries)))
}

func (h *RoomHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	summary, err := h.rooms.Get(c.Request.Context(), roomID, userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromRoomSummary(summary)))
}
