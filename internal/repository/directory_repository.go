package repository

import (
	"context"
	"database/sql"

	"petaverse-chat/internal/domain/user"

	"github.com/google/uuid"
)

type PostgresDirectoryRepository struct {
	db DBTX
}

func NewDirectoryRepository(db DBTX) DirectoryRepository {
	return &PostgresDirectoryRepository{db: db}
}

func (r *PostgresDirectoryRepository) UserExists(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists)
	return exists, err
}

func (r *PostgresDirectoryRepository) ListingOwner(ctx context.Context, listingID uuid.UUID) (uuid.UUID, error) {
	var owner uuid.UUID
	err := r.db.QueryRowContext(ctx, `SELECT owner_id FROM adoption_listings WHERE id = $1`, listingID).Scan(&owner)
	if err != nil {
		return uuid.Nil, translate(err)
	}
	return owner, nil
}

func (r *PostgresDirectoryRepository) Contact(ctx context.Context, userID uuid.UUID) (user.Contact, error) {
	var (
		c     = user.Contact{UserID: userID}
		email sql.NullString
	)
	err := r.db.QueryRowContext(ctx, `SELECT email, display_name FROM users WHERE id = $1`, userID).Scan(&email, &c.DisplayName)
	if err != nil {
		return user.Contact{}, translate(err)
	}
	c.Email = email.String
	return c, nil
}
