package handler

import (
	"context"
	"net/http"

	"petaverse-chat/internal/domain/chat"
	"petaverse-chat/internal/services"
	"petaverse-chat/internal/transport/httpdto"
	petaverse_errors "petaverse-chat/pkg/errors"
	"petaverse-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type MessageService interface {
	Append(ctx context.Context, in services.SendMessageInput) (chat.Message, error)
	History(ctx context.Context, roomID, requesterID uuid.UUID, q services.HistoryQuery) ([]chat.Message, error)
}

type RoomReader interface {
	MarkRoomRead(ctx context.Context, roomID, readerID uuid.UUID) (services.ReadReceipt, error)
}

// AttachmentSigner turns the object key stored in an image or file message
// into a download URL.
type AttachmentSigner interface {
	PresignGet(ctx context.Context, key string) (string, error)
}

type MessageHandler struct {
	messages MessageService
	reads    RoomReader
	signer   AttachmentSigner
	logger   *logger.Logger
}

// NewMessageHandler builds the room message endpoints. signer may be nil, in
// which case attachment messages carry only their object key.
func NewMessageHandler(messages MessageService, reads RoomReader, signer AttachmentSigner, l *logger.Logger) *MessageHandler {
	if l == nil {
		l = logger.GetGlobalLogger()
	}
	return &MessageHandler{messages: messages, reads: reads, signer: signer, logger: l}
}

func (h *MessageHandler) Send(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(petaverse_errors.Validation("invalid request"))
		return
	}

	msg, err := h.messages.Append(c.Request.Context(), services.SendMessageInput{
		RoomID:   roomID,
		SenderID: userID,
		Content:  req.Content,
		Type:     req.Type,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(h.present(c.Request.Context(), msg)))
}

// History returns the latest page of the room and marks it read for the caller.
func (h *MessageHandler) History(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	limit, err := parseInt(c.Query("limit"))
	if err != nil {
		_ = c.Error(petaverse_errors.Validation("invalid limit"))
		return
	}
	beforeSeq, err := parseInt64(c.Query("before_seq"))
	if err != nil {
		_ = c.Error(petaverse_errors.Validation("invalid before_seq"))
		return
	}

	msgs, err := h.messages.History(c.Request.Context(), roomID, userID, services.HistoryQuery{Limit: limit, BeforeSeq: beforeSeq})
	if err != nil {
		_ = c.Error(err)
		return
	}

	out := make([]httpdto.MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, h.present(c.Request.Context(), m))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(out))
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	roomID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	receipt, err := h.reads.MarkRoomRead(c.Request.Context(), roomID, userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromReadReceipt(receipt)))
}

func (h *MessageHandler) present(ctx context.Context, m chat.Message) httpdto.MessageResponse {
	resp := httpdto.FromMessage(m)
	if h.signer == nil || !m.Type.IsAttachment() {
		return resp
	}
	if !chat.ValidAttachmentKey(m.RoomID, m.Content) {
		h.logger.WithContext(ctx).Warn("attachment outside room prefix",
			zap.String("message_id", m.ID.String()),
			zap.String("room_id", m.RoomID.String()),
		)
		return resp
	}
	url, err := h.signer.PresignGet(ctx, m.Content)
	if err != nil {
		h.logger.WithContext(ctx).Warn("attachment presign failed",
			zap.String("message_id", m.ID.String()),
			zap.Error(err),
		)
		return resp
	}
	resp.AttachmentURL = url
	return resp
}
