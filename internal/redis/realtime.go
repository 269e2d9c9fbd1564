package redis

import (
	"context"

	"petaverse-chat/internal/events"

	"github.com/google/uuid"
)

// RealtimeTransport publishes envelopes to the per-user and per-room channels
// the websocket bridge relays to connected sockets.
type RealtimeTransport struct {
	publisher *Publisher
}

func NewRealtimeTransport(publisher *Publisher) *RealtimeTransport {
	return &RealtimeTransport{publisher: publisher}
}

func (t *RealtimeTransport) Push(ctx context.Context, userID uuid.UUID, env events.Envelope) error {
	return t.publisher.PublishEnvelope(ctx, events.UserChannel(userID), env)
}

func (t *RealtimeTransport) Broadcast(ctx context.Context, roomID uuid.UUID, env events.Envelope) error {
	return t.publisher.PublishEnvelope(ctx, events.RoomChannel(roomID), env)
}
