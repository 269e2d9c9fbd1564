package redis

import (
	"context"
	"fmt"

	"petaverse-chat/internal/events"

	goredis "github.com/redis/go-redis/v9"
)

// Publisher writes frames to Redis pub/sub. Delivery is fire and forget: a
// channel with no subscribers drops the frame.
type Publisher struct {
	client *goredis.Client
}

func NewPublisher(client *goredis.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish returns the number of nodes that received the frame.
func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) (int64, error) {
	n, err := p.client.Publish(ctx, channel, payload).Result()
	if err != nil {
		return 0, fmt.Errorf("publish to %s: %w", channel, err)
	}
	return n, nil
}

func (p *Publisher) PublishEnvelope(ctx context.Context, channel string, env events.Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return err
	}
	_, err = p.Publish(ctx, channel, data)
	return err
}
