package chat

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// ChatRoom represents the chat_rooms table. A room binds exactly two users around a listing.
type ChatRoom struct {
	ID                 uuid.UUID
	ListingID          uuid.UUID
	OwnerID            uuid.UUID
	CounterpartID      uuid.UUID
	IsActive           bool
	LastMessageSummary string
	LastMessageTime    sql.NullTime
	LastSeq            int64
	CreatedAt          time.Time
}

// HasParticipant reports whether userID is one of the two room members.
func (r ChatRoom) HasParticipant(userID uuid.UUID) bool {
	return userID == r.OwnerID || userID == r.CounterpartID
}

// OtherParticipant returns the counterpart of userID within the room.
// The second return value is false when userID is not a participant.
func (r ChatRoom) OtherParticipant(userID uuid.UUID) (uuid.UUID, bool) {
	switch userID {
	case r.OwnerID:
		return r.CounterpartID, true
	case r.CounterpartID:
		return r.OwnerID, true
	default:
		return uuid.Nil, false
	}
}

// PairKey returns the participants ordered so that (low, high) identifies the
// unordered pair regardless of who is owner.
func PairKey(a, b uuid.UUID) (low, high uuid.UUID) {
	if a.String() < b.String() {
		return a, b
	}
	return b, a
}

// Message represents the messages table
type Message struct {
	ID         uuid.UUID
	RoomID     uuid.UUID
	SenderID   uuid.UUID
	ReceiverID uuid.UUID
	Seq        int64
	Content    string
	Type       MessageType
	Status     MessageStatus
	CreatedAt  time.Time
	ReadAt     sql.NullTime
}

// RoomSummary is the read model returned to room listing callers.
type RoomSummary struct {
	Room        ChatRoom
	UnreadCount int64
}
