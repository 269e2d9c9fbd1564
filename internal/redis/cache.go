package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"petaverse-chat/internal/domain/user"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Cache key patterns:
// - directory:listing:{listing_id}:owner - listing owner id
// - directory:user:{user_id} - contact projection

// CacheStore is a JSON cache in front of the participant directory.
type CacheStore struct {
	client *goredis.Client
	ttl    time.Duration
}

// NewCacheStore creates a new cache store
func NewCacheStore(client *goredis.Client, ttl time.Duration) *CacheStore {
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &CacheStore{client: client, ttl: ttl}
}

func listingOwnerKey(listingID uuid.UUID) string {
	return fmt.Sprintf("directory:listing:%s:owner", listingID.String())
}

func contactKey(userID uuid.UUID) string {
	return fmt.Sprintf("directory:user:%s", userID.String())
}

// GetListingOwner returns uuid.Nil on a cache miss.
func (c *CacheStore) GetListingOwner(ctx context.Context, listingID uuid.UUID) (uuid.UUID, error) {
	data, err := c.client.Get(ctx, listingOwnerKey(listingID)).Result()
	if err == goredis.Nil {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(data)
}

func (c *CacheStore) SetListingOwner(ctx context.Context, listingID, ownerID uuid.UUID) error {
	return c.client.Set(ctx, listingOwnerKey(listingID), ownerID.String(), c.ttl).Err()
}

// GetContact returns nil on a cache miss.
func (c *CacheStore) GetContact(ctx context.Context, userID uuid.UUID) (*user.Contact, error) {
	data, err := c.client.Get(ctx, contactKey(userID)).Result()
	if err == goredis.Nil {
		return nil, nil // Cache miss
	}
	if err != nil {
		return nil, err
	}

	var contact user.Contact
	if err := json.Unmarshal([]byte(data), &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

func (c *CacheStore) SetContact(ctx context.Context, contact user.Contact) error {
	data, err := json.Marshal(contact)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, contactKey(contact.UserID), data, c.ttl).Err()
}
