package services

import (
	"context"
	"errors"

	"petaverse-chat/internal/domain/user"
	"petaverse-chat/internal/repository"
	petaverse_errors "petaverse-chat/pkg/errors"
	"petaverse-chat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DirectoryCache is the subset of the Redis cache the directory reads through.
type DirectoryCache interface {
	GetListingOwner(ctx context.Context, listingID uuid.UUID) (uuid.UUID, error)
	SetListingOwner(ctx context.Context, listingID, ownerID uuid.UUID) error
	GetContact(ctx context.Context, userID uuid.UUID) (*user.Contact, error)
	SetContact(ctx context.Context, contact user.Contact) error
}

// CachedDirectory reads the identity and listing tables through a TTL cache.
// Cache failures degrade to direct reads.
type CachedDirectory struct {
	repo   repository.DirectoryRepository
	cache  DirectoryCache
	logger *logger.Logger
}

func NewCachedDirectory(repo repository.DirectoryRepository, cache DirectoryCache, log *logger.Logger) *CachedDirectory {
	if log == nil {
		log = logger.NewNop()
	}
	return &CachedDirectory{repo: repo, cache: cache, logger: log}
}

func (d *CachedDirectory) UserExists(ctx context.Context, userID uuid.UUID) (bool, error) {
	if d.cache != nil {
		if c, err := d.cache.GetContact(ctx, userID); err == nil && c != nil {
			return true, nil
		}
	}
	_, err := d.Contact(ctx, userID)
	if errors.Is(err, petaverse_errors.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (d *CachedDirectory) ListingOwner(ctx context.Context, listingID uuid.UUID) (uuid.UUID, error) {
	if d.cache != nil {
		owner, err := d.cache.GetListingOwner(ctx, listingID)
		if err != nil {
			d.logger.WithContext(ctx).Warn("directory cache read failed", zap.String("listing_id", listingID.String()), zap.Error(err))
		} else if owner != uuid.Nil {
			return owner, nil
		}
	}

	owner, err := d.repo.ListingOwner(ctx, listingID)
	if err != nil {
		return uuid.Nil, err
	}
	if d.cache != nil {
		if err := d.cache.SetListingOwner(ctx, listingID, owner); err != nil {
			d.logger.WithContext(ctx).Warn("directory cache write failed", zap.String("listing_id", listingID.String()), zap.Error(err))
		}
	}
	return owner, nil
}

func (d *CachedDirectory) Contact(ctx context.Context, userID uuid.UUID) (user.Contact, error) {
	if d.cache != nil {
		c, err := d.cache.GetContact(ctx, userID)
		if err != nil {
			d.logger.WithContext(ctx).Warn("directory cache read failed", zap.String("user_id", userID.String()), zap.Error(err))
		} else if c != nil {
			return *c, nil
		}
	}

	c, err := d.repo.Contact(ctx, userID)
	if err != nil {
		return user.Contact{}, err
	}
	if d.cache != nil {
		if err := d.cache.SetContact(ctx, c); err != nil {
			d.logger.WithContext(ctx).Warn("directory cache write failed", zap.String("user_id", userID.String()), zap.Error(err))
		}
	}
	return c, nil
}
