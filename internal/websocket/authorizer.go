package websocket

import (
	"context"

	"petaverse-chat/internal/events"

	"github.com/google/uuid"
)

// ParticipantChecker answers room membership.
type ParticipantChecker interface {
	IsParticipant(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
}

// ChannelAuthorizer decides which channels a socket may subscribe to.
type ChannelAuthorizer struct {
	rooms ParticipantChecker
}

func NewChannelAuthorizer(rooms ParticipantChecker) *ChannelAuthorizer {
	return &ChannelAuthorizer{rooms: rooms}
}

// CanSubscribe allows a user's own channel and rooms they participate in.
// Everything else is denied.
func (a *ChannelAuthorizer) CanSubscribe(ctx context.Context, userID uuid.UUID, channel string) (bool, error) {
	if channel == events.UserChannel(userID) {
		return true, nil
	}
	if roomID, ok := events.ParseRoomChannel(channel); ok {
		return a.rooms.IsParticipant(ctx, roomID, userID)
	}
	return false, nil
}
