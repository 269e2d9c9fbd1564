package events

// Event type constants follow the format: domain.action

// Message events
const (
	EventTypeMessageCreated = "message.created"
	EventTypeMessageRead    = "message.read"
)

// Room events
const (
	EventTypeRoomCreated = "room.created"
)

// Notification events
const (
	EventTypeNotificationCreated = "notification.created"
)

// Aggregate type constants
const (
	AggregateTypeMessage      = "message"
	AggregateTypeRoom         = "chat_room"
	AggregateTypeNotification = "notification"
)

// Channel prefixes
const (
	ChannelPrefixUser = "channel:user:"
	ChannelPrefixRoom = "channel:room:"

	// ChannelPattern matches every channel the websocket bridge relays.
	ChannelPattern = "channel:*"
)
