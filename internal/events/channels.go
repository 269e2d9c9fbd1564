package events

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

func UserChannel(userID uuid.UUID) string {
	return ChannelPrefixUser + userID.String()
}

func RoomChannel(roomID uuid.UUID) string {
	return ChannelPrefixRoom + roomID.String()
}

// ParseRoomChannel extracts the room id from a room channel name.
func ParseRoomChannel(channel string) (uuid.UUID, bool) {
	if !strings.HasPrefix(channel, ChannelPrefixRoom) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimPrefix(channel, ChannelPrefixRoom))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Subscriber delivers frames published on channels matching any of patterns
// until ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, patterns []string, handler func(channel string, payload []byte)) error
}
