package redis

import (
	"context"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Redis key prefixes for presence
const (
	presenceKeyPrefix = "presence:conns:" // Counter of open sockets per user
	presenceOnlineSet = "presence:online" // Set of online user IDs
)

// PresenceStore tracks which users hold at least one open socket on any node.
type PresenceStore struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewPresenceStore creates a new presence store
func NewPresenceStore(client *goredis.Client, ttl time.Duration) *PresenceStore {
	if ttl == 0 {
		ttl = 5 * time.Minute // Default TTL for presence data
	}
	return &PresenceStore{client: client, ttl: ttl}
}

// SetOnline records one more open connection for the user.
func (p *PresenceStore) SetOnline(ctx context.Context, userID uuid.UUID) error {
	key := presenceKeyPrefix + userID.String()
	pipe := p.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, p.ttl)
	pipe.SAdd(ctx, presenceOnlineSet, userID.String())
	_, err := pipe.Exec(ctx)
	return err
}

// SetOffline releases one connection. The user goes offline with the last one.
func (p *PresenceStore) SetOffline(ctx context.Context, userID uuid.UUID) error {
	key := presenceKeyPrefix + userID.String()
	remaining, err := p.client.Decr(ctx, key).Result()
	if err != nil {
		return err
	}
	if remaining > 0 {
		return nil
	}
	pipe := p.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, presenceOnlineSet, userID.String())
	_, err = pipe.Exec(ctx)
	return err
}

// Heartbeat extends the presence TTL while a socket stays open.
func (p *PresenceStore) Heartbeat(ctx context.Context, userID uuid.UUID) error {
	return p.client.Expire(ctx, presenceKeyPrefix+userID.String(), p.ttl).Err()
}

// IsOnline reports whether the user has an open connection. A crashed node's
// counters expire with the TTL.
func (p *PresenceStore) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	n, err := p.client.Get(ctx, presenceKeyPrefix+userID.String()).Int64()
	if err == goredis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// OnlineCount returns the number of users currently marked online.
func (p *PresenceStore) OnlineCount(ctx context.Context) (int64, error) {
	return p.client.SCard(ctx, presenceOnlineSet).Result()
}
