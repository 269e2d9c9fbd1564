package chat

import (
	"strings"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageTypeText   MessageType = "TEXT"
	MessageTypeImage  MessageType = "IMAGE"
	MessageTypeFile   MessageType = "FILE"
	MessageTypeSystem MessageType = "SYSTEM"
)

// ParseMessageType normalises a client supplied type. Empty means text. SYSTEM
// is reserved for messages the server writes itself.
func ParseMessageType(raw string) (MessageType, bool) {
	switch MessageType(strings.ToUpper(strings.TrimSpace(raw))) {
	case "", MessageTypeText:
		return MessageTypeText, true
	case MessageTypeImage:
		return MessageTypeImage, true
	case MessageTypeFile:
		return MessageTypeFile, true
	default:
		return "", false
	}
}

// IsAttachment reports whether the content of this type is a storage object key.
func (t MessageType) IsAttachment() bool {
	return t == MessageTypeImage || t == MessageTypeFile
}

// AttachmentPrefix is the object key prefix uploads for a room are stored under.
func AttachmentPrefix(roomID uuid.UUID) string {
	return "rooms/" + roomID.String() + "/"
}

// ValidAttachmentKey reports whether key names an object inside the room's
// prefix.
func ValidAttachmentKey(roomID uuid.UUID, key string) bool {
	prefix := AttachmentPrefix(roomID)
	return len(key) > len(prefix) && strings.HasPrefix(key, prefix) && !strings.Contains(key, "..")
}

// MessageStatus is the persisted read state of a message. Delivery outcomes are
// tracked on notifications, never here.
type MessageStatus string

const (
	MessageStatusSent MessageStatus = "SENT"
	MessageStatusRead MessageStatus = "READ"
)
