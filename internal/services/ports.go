package services

import (
	"context"

	"petaverse-chat/internal/domain/user"
	"petaverse-chat/internal/events"

	"github.com/google/uuid"
)

// Directory resolves identities and listings owned by other services.
type Directory interface {
	UserExists(ctx context.Context, userID uuid.UUID) (bool, error)
	ListingOwner(ctx context.Context, listingID uuid.UUID) (uuid.UUID, error)
	Contact(ctx context.Context, userID uuid.UUID) (user.Contact, error)
}

// Realtime is the best-effort push channel.
type Realtime interface {
	Push(ctx context.Context, userID uuid.UUID, env events.Envelope) error
	Broadcast(ctx context.Context, roomID uuid.UUID, env events.Envelope) error
}

type Presence interface {
	IsOnline(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Mailer is the outbound email transport.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}
