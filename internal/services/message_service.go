package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"petaverse-chat/internal/domain/chat"
	"petaverse-chat/internal/metrics"
	"petaverse-chat/internal/proxy"
	"petaverse-chat/internal/repository"
	petaverse_errors "petaverse-chat/pkg/errors"
	"petaverse-chat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MaxContentLength = 4000
	maxSummaryLength = 500
	DefaultPageLimit = 50
	MaxHistoryLimit  = 200
)

type SendMessageInput struct {
	RoomID   uuid.UUID
	SenderID uuid.UUID
	Content  string
	Type     string
}

func (in SendMessageInput) normalize() (string, chat.MessageType, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return "", "", petaverse_errors.Validation("content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return "", "", petaverse_errors.Validation("content is too long")
	}
	t, ok := chat.ParseMessageType(in.Type)
	if !ok {
		return "", "", petaverse_errors.Validation("unknown message type")
	}
	if t.IsAttachment() && !chat.ValidAttachmentKey(in.RoomID, content) {
		return "", "", petaverse_errors.Validation("attachment key must be under " + chat.AttachmentPrefix(in.RoomID))
	}
	return content, t, nil
}

type HistoryQuery struct {
	Limit     int
	BeforeSeq int64
}

// MessageStore appends to and reads a room's ordered message log.
type MessageStore struct {
	messageRepo     repository.MessageRepository
	access          *proxy.AccessControl
	reads           *ReadTracker
	dispatcher      *DeliveryDispatcher
	notifications   *NotificationService
	notifyOnMessage bool
	logger          *logger.Logger
}

type MessageStoreConfig struct {
	NotifyOnMessage bool
}

func NewMessageStore(
	messageRepo repository.MessageRepository,
	access *proxy.AccessControl,
	reads *ReadTracker,
	dispatcher *DeliveryDispatcher,
	notifications *NotificationService,
	cfg MessageStoreConfig,
	log *logger.Logger,
) *MessageStore {
	if log == nil {
		log = logger.NewNop()
	}
	return &MessageStore{
		messageRepo:     messageRepo,
		access:          access,
		reads:           reads,
		dispatcher:      dispatcher,
		notifications:   notifications,
		notifyOnMessage: cfg.NotifyOnMessage,
		logger:          log,
	}
}

// Append persists a message together with the room summary, then delivers it.
// Delivery problems are logged and never undo or fail the append.
func (s *MessageStore) Append(ctx context.Context, in SendMessageInput) (chat.Message, error) {
	room, err := s.access.EnsureParticipant(ctx, in.RoomID, in.SenderID)
	if err != nil {
		return chat.Message{}, err
	}
	content, msgType, err := in.normalize()
	if err != nil {
		return chat.Message{}, err
	}
	receiverID, _ := room.OtherParticipant(in.SenderID)

	m := chat.Message{
		ID:         uuid.New(),
		RoomID:     room.ID,
		SenderID:   in.SenderID,
		ReceiverID: receiverID,
		Content:    content,
		Type:       msgType,
		Status:     chat.MessageStatusSent,
	}
	if _, err := s.messageRepo.Append(ctx, &m, Summarize(content, msgType)); err != nil {
		return chat.Message{}, err
	}
	metrics.MessagesSent.WithLabelValues(string(msgType)).Inc()

	if s.dispatcher != nil {
		s.dispatcher.PublishMessage(ctx, m)
	}
	if s.notifyOnMessage && s.notifications != nil {
		if _, err := s.notifications.NotifyNewMessage(ctx, m); err != nil {
			s.logger.WithContext(ctx).Warn("new message notification failed",
				zap.String("message_id", m.ID.String()),
				zap.String("user_id", receiverID.String()),
				zap.Error(err),
			)
		}
	}
	return m, nil
}

// History returns up to q.Limit of the latest messages before q.BeforeSeq in
// ascending (created_at, seq) order, and marks what the other participant sent
// up to the last returned message as read.
func (s *MessageStore) History(ctx context.Context, roomID, requesterID uuid.UUID, q HistoryQuery) ([]chat.Message, error) {
	if _, err := s.access.EnsureParticipant(ctx, roomID, requesterID); err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	messages, err := s.messageRepo.History(ctx, roomID, q.BeforeSeq, limit)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return []chat.Message{}, nil
	}
	if s.reads == nil {
		return messages, nil
	}

	// only what this page returned; later arrivals stay unread
	receipt, err := s.reads.markRoomRead(ctx, roomID, requesterID, messages[len(messages)-1].Seq)
	if err != nil {
		s.logger.WithContext(ctx).Warn("failed to mark room read", zap.String("room_id", roomID.String()), zap.Error(err))
		return messages, nil
	}
	if receipt.Count > 0 {
		for i := range messages {
			if messages[i].SenderID != requesterID && messages[i].Status != chat.MessageStatusRead {
				messages[i].Status = chat.MessageStatusRead
				messages[i].ReadAt.Time = receipt.ReadAt
				messages[i].ReadAt.Valid = true
			}
		}
	}
	return messages, nil
}

// Summarize produces the room preview text for a message.
func Summarize(content string, t chat.MessageType) string {
	switch t {
	case chat.MessageTypeImage:
		return "[image]"
	case chat.MessageTypeFile:
		return "[file]"
	}
	if utf8.RuneCountInString(content) <= maxSummaryLength {
		return content
	}
	return string([]rune(content)[:maxSummaryLength])
}
