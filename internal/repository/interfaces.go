package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"petaverse-chat/internal/domain/chat"
	"petaverse-chat/internal/domain/notification"
	"petaverse-chat/internal/domain/outbox"
	"petaverse-chat/internal/domain/user"
)

type RoomRepository interface {
	// Create inserts a room. A second room for the same listing and pair fails
	// with ErrAlreadyExists.
	Create(ctx context.Context, r *chat.ChatRoom) error
	GetByID(ctx context.Context, id uuid.UUID) (chat.ChatRoom, error)
	GetByPair(ctx context.Context, listingID, a, b uuid.UUID) (chat.ChatRoom, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]chat.RoomSummary, error)
}

type MessageRepository interface {
	// Append stores m and the room summary in one transaction. Seq and CreatedAt
	// are assigned by the database and written back into m.
	Append(ctx context.Context, m *chat.Message, summary string) (chat.ChatRoom, error)
	History(ctx context.Context, roomID uuid.UUID, beforeSeq int64, limit int) ([]chat.Message, error)
	// MarkRoomRead marks messages addressed to readerID as read. A positive
	// upToSeq limits the update to messages with seq <= upToSeq.
	MarkRoomRead(ctx context.Context, roomID, readerID uuid.UUID, upToSeq int64, at time.Time) (int64, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	CountUnreadInRoom(ctx context.Context, roomID, userID uuid.UUID) (int64, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *notification.Notification) error
	// CreateBatch persists ns and the outbox event that will dispatch them atomically.
	CreateBatch(ctx context.Context, ns []notification.Notification, ev *outbox.OutboxEvent) error
	GetByID(ctx context.Context, id uuid.UUID) (notification.Notification, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]notification.Notification, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]notification.Notification, int64, error)
	ListUnread(ctx context.Context, userID uuid.UUID) ([]notification.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
	// UpdateDeliveryStatus moves a PENDING notification to status. It reports
	// false when the row was no longer PENDING.
	UpdateDeliveryStatus(ctx context.Context, id uuid.UUID, status notification.DeliveryStatus) (bool, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type OutboxRepository interface {
	Create(ctx context.Context, tx DBTX, event *outbox.OutboxEvent) error
	GetPending(ctx context.Context, limit, maxRetries int) ([]outbox.OutboxEvent, error)
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errorMsg string) error
	IncrementRetry(ctx context.Context, id uuid.UUID, errorMsg string) error
}

// DirectoryRepository reads identity and listing tables owned by other services.
type DirectoryRepository interface {
	UserExists(ctx context.Context, userID uuid.UUID) (bool, error)
	ListingOwner(ctx context.Context, listingID uuid.UUID) (uuid.UUID, error)
	Contact(ctx context.Context, userID uuid.UUID) (user.Contact, error)
}
