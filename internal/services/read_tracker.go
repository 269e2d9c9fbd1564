package services

import (
	"context"
	"time"

	"petaverse-chat/internal/events"
	"petaverse-chat/internal/metrics"
	"petaverse-chat/internal/proxy"
	"petaverse-chat/internal/repository"
	"petaverse-chat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReadReceipt reports the effect of marking a room read.
type ReadReceipt struct {
	RoomID   uuid.UUID `json:"room_id"`
	ReaderID uuid.UUID `json:"reader_id"`
	Count    int64     `json:"count"`
	ReadAt   time.Time `json:"read_at"`
}

type UnreadCounts struct {
	Notifications int64 `json:"notifications"`
	Messages      int64 `json:"messages"`
}

// ReadTracker performs every read-state transition. Room reads are one
// set-based update so a second device never sees a half-read room.
type ReadTracker struct {
	messageRepo      repository.MessageRepository
	notificationRepo repository.NotificationRepository
	access           *proxy.AccessControl
	dispatcher       *DeliveryDispatcher
	logger           *logger.Logger
	now              func() time.Time
}

func NewReadTracker(
	messageRepo repository.MessageRepository,
	notificationRepo repository.NotificationRepository,
	access *proxy.AccessControl,
	dispatcher *DeliveryDispatcher,
	log *logger.Logger,
) *ReadTracker {
	if log == nil {
		log = logger.NewNop()
	}
	return &ReadTracker{
		messageRepo:      messageRepo,
		notificationRepo: notificationRepo,
		access:           access,
		dispatcher:       dispatcher,
		logger:           log,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// MarkRoomRead marks every message the other participant sent to readerID as
// read. Calling it again with nothing unread writes nothing.
func (t *ReadTracker) MarkRoomRead(ctx context.Context, roomID, readerID uuid.UUID) (ReadReceipt, error) {
	if _, err := t.access.EnsureParticipant(ctx, roomID, readerID); err != nil {
		return ReadReceipt{}, err
	}
	return t.markRoomRead(ctx, roomID, readerID, 0)
}

// markRoomRead skips the participant check for callers that already did it.
// A positive upToSeq leaves later messages unread.
func (t *ReadTracker) markRoomRead(ctx context.Context, roomID, readerID uuid.UUID, upToSeq int64) (ReadReceipt, error) {
	at := t.now()
	n, err := t.messageRepo.MarkRoomRead(ctx, roomID, readerID, upToSeq, at)
	if err != nil {
		return ReadReceipt{}, err
	}
	receipt := ReadReceipt{RoomID: roomID, ReaderID: readerID, Count: n, ReadAt: at}
	if n == 0 {
		return receipt, nil
	}

	metrics.MessagesRead.Add(float64(n))
	if t.dispatcher != nil {
		env, err := events.NewEnvelope(events.EventTypeMessageRead, events.AggregateTypeRoom, roomID.String(), events.ReadPayload{
			RoomID:   roomID,
			ReaderID: readerID,
			Count:    n,
			ReadAt:   at,
		})
		if err != nil {
			t.logger.WithContext(ctx).Error("failed to build read envelope", zap.Error(err))
		} else {
			t.dispatcher.BroadcastEvent(ctx, roomID, env)
		}
	}
	return receipt, nil
}

// MarkNotificationRead fails with ErrAccessDenied unless userID owns the
// notification. Already read notifications are left untouched.
func (t *ReadTracker) MarkNotificationRead(ctx context.Context, id, userID uuid.UUID) error {
	n, err := t.access.EnsureNotificationOwner(ctx, id, userID)
	if err != nil {
		return err
	}
	if n.IsRead {
		return nil
	}
	_, err = t.notificationRepo.MarkRead(ctx, id, userID, t.now())
	return err
}

func (t *ReadTracker) MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return t.notificationRepo.MarkAllRead(ctx, userID, t.now())
}

// UnreadCount returns unread notifications and unread chat messages addressed to userID.
func (t *ReadTracker) UnreadCount(ctx context.Context, userID uuid.UUID) (UnreadCounts, error) {
	notifications, err := t.notificationRepo.CountUnread(ctx, userID)
	if err != nil {
		return UnreadCounts{}, err
	}
	messages, err := t.messageRepo.CountUnread(ctx, userID)
	if err != nil {
		return UnreadCounts{}, err
	}
	return UnreadCounts{Notifications: notifications, Messages: messages}, nil
}
