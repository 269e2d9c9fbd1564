package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"petaverse-chat/internal/domain/notification"
	"petaverse-chat/internal/services"
	"petaverse-chat/internal/transport/httpdto"
	petaverse_errors "petaverse-chat/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type NotificationService interface {
	List(ctx context.Context, userID uuid.UUID, page, size int) (services.NotificationPage, error)
	Unread(ctx context.Context, userID uuid.UUID) ([]notification.Notification, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (services.UnreadCounts, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
	SendTest(ctx context.Context, userID uuid.UUID, title, body string) (notification.Notification, error)
}

type NotificationHandler struct {
	notifications NotificationService
}

func NewNotificationHandler(notifications NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

func (h *NotificationHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	page, err := parseInt(c.Query("page"))
	if err != nil {
		_ = c.Error(petaverse_errors.Validation("invalid page"))
		return
	}
	size, err := parseInt(c.Query("size"))
	if err != nil {
		_ = c.Error(petaverse_errors.Validation("invalid size"))
		return
	}

	result, err := h.notifications.List(c.Request.Context(), userID, page, size)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.Page[httpdto.NotificationResponse]{
		Items: httpdto.FromNotifications(result.Items),
		Total: result.Total,
		Page:  result.Page,
		Size:  result.Size,
	}))
}

func (h *NotificationHandler) Unread(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	items, err := h.notifications.Unread(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromNotifications(items)))
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	counts, err := h.notifications.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(counts))
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.notifications.MarkRead(c.Request.Context(), id, userID); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	updated, err := h.notifications.MarkAllRead(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.MarkAllReadResponse{Updated: updated}))
}

func (h *NotificationHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.notifications.Delete(c.Request.Context(), id, userID); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SendTest delivers a system announcement to the caller so clients can check
// their realtime and email wiring.
func (h *NotificationHandler) SendTest(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req httpdto.SendTestRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		_ = c.Error(petaverse_errors.Validation("invalid request"))
		return
	}
	n, err := h.notifications.SendTest(c.Request.Context(), userID, req.Title, req.Message)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(httpdto.FromNotification(n)))
}
