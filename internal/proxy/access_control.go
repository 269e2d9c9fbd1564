package proxy

import (
	"context"

	"petaverse-chat/internal/domain/chat"
	"petaverse-chat/internal/domain/notification"
	"petaverse-chat/internal/repository"
	petaverse_errors "petaverse-chat/pkg/errors"

	"github.com/google/uuid"
)

// AccessControl answers ownership questions for rooms and notifications. Each
// check returns the loaded entity so callers do not read it twice.
type AccessControl struct {
	roomRepo         repository.RoomRepository
	notificationRepo repository.NotificationRepository
}

func NewAccessControl(roomRepo repository.RoomRepository, notificationRepo repository.NotificationRepository) *AccessControl {
	return &AccessControl{roomRepo: roomRepo, notificationRepo: notificationRepo}
}

// EnsureParticipant fails with ErrNotFound for an unknown room and
// ErrAccessDenied when userID is not one of its two participants.
func (a *AccessControl) EnsureParticipant(ctx context.Context, roomID, userID uuid.UUID) (chat.ChatRoom, error) {
	if a.roomRepo == nil {
		return chat.ChatRoom{}, petaverse_errors.ErrAccessDenied
	}
	room, err := a.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return chat.ChatRoom{}, err
	}
	if !room.HasParticipant(userID) {
		return chat.ChatRoom{}, petaverse_errors.ErrAccessDenied
	}
	return room, nil
}

// IsParticipant is the boolean form used by subscription checks.
func (a *AccessControl) IsParticipant(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	_, err := a.EnsureParticipant(ctx, roomID, userID)
	switch {
	case err == nil:
		return true, nil
	case petaverse_errors.IsAny(err, petaverse_errors.ErrAccessDenied, petaverse_errors.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (a *AccessControl) EnsureNotificationOwner(ctx context.Context, id, userID uuid.UUID) (notification.Notification, error) {
	if a.notificationRepo == nil {
		return notification.Notification{}, petaverse_errors.ErrAccessDenied
	}
	n, err := a.notificationRepo.GetByID(ctx, id)
	if err != nil {
		return notification.Notification{}, err
	}
	if n.UserID != userID {
		return notification.Notification{}, petaverse_errors.ErrAccessDenied
	}
	return n, nil
}
