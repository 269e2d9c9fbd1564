package events

import (
	"time"

	"petaverse-chat/internal/domain/chat"
	"petaverse-chat/internal/domain/notification"

	"github.com/google/uuid"
)

// MessagePayload is the body of message.created frames.
type MessagePayload struct {
	ID         uuid.UUID `json:"id"`
	RoomID     uuid.UUID `json:"room_id"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Seq        int64     `json:"seq"`
	Content    string    `json:"content"`
	Type       string    `json:"type"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

func NewMessagePayload(m chat.Message) MessagePayload {
	return MessagePayload{
		ID:         m.ID,
		RoomID:     m.RoomID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Seq:        m.Seq,
		Content:    m.Content,
		Type:       string(m.Type),
		Status:     string(m.Status),
		CreatedAt:  m.CreatedAt,
	}
}

// ReadPayload is the body of message.read frames.
type ReadPayload struct {
	RoomID   uuid.UUID `json:"room_id"`
	ReaderID uuid.UUID `json:"reader_id"`
	Count    int64     `json:"count"`
	ReadAt   time.Time `json:"read_at"`
}

// RoomPayload is the body of room.created frames.
type RoomPayload struct {
	ID            uuid.UUID `json:"id"`
	ListingID     uuid.UUID `json:"listing_id"`
	OwnerID       uuid.UUID `json:"owner_id"`
	CounterpartID uuid.UUID `json:"counterpart_id"`
	CreatedAt     time.Time `json:"created_at"`
}

func NewRoomPayload(r chat.ChatRoom) RoomPayload {
	return RoomPayload{
		ID:            r.ID,
		ListingID:     r.ListingID,
		OwnerID:       r.OwnerID,
		CounterpartID: r.CounterpartID,
		CreatedAt:     r.CreatedAt,
	}
}

// NotificationPayload is the body of notification.created frames.
type NotificationPayload struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Type      string    `json:"type"`
	ActionRef string    `json:"action_ref,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func NewNotificationPayload(n notification.Notification) NotificationPayload {
	return NotificationPayload{
		ID:        n.ID,
		Title:     n.Title,
		Body:      n.Body,
		Type:      string(n.Type),
		ActionRef: n.ActionRef.String,
		CreatedAt: n.CreatedAt,
	}
}
