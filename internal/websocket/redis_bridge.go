package websocket

import (
	"context"
	"errors"

	"petaverse-chat/internal/events"
	"petaverse-chat/pkg/logger"

	"go.uber.org/zap"
)

// RedisBridge relays frames published by any node to the sockets held by this one.
type RedisBridge struct {
	subscriber events.Subscriber
	hub        *Hub
	logger     *logger.Logger
}

func NewRedisBridge(subscriber events.Subscriber, hub *Hub, log *logger.Logger) *RedisBridge {
	if log == nil {
		log = logger.NewNop()
	}
	return &RedisBridge{subscriber: subscriber, hub: hub, logger: log}
}

// Run blocks until ctx is cancelled or the subscription breaks.
func (b *RedisBridge) Run(ctx context.Context) error {
	b.logger.Logger.Info("websocket bridge subscribed", zap.String("pattern", events.ChannelPattern))
	err := b.subscriber.Subscribe(ctx, []string{events.ChannelPattern}, func(channel string, payload []byte) {
		b.hub.Broadcast(channel, payload)
	})
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
