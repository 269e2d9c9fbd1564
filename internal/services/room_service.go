package services

import (
	"context"
	"errors"
	"fmt"

	"petaverse-chat/internal/domain/chat"
	"petaverse-chat/internal/events"
	"petaverse-chat/internal/metrics"
	"petaverse-chat/internal/proxy"
	"petaverse-chat/internal/repository"
	petaverse_errors "petaverse-chat/pkg/errors"
	"petaverse-chat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ChatRoomManager owns room identity. One room exists per listing and
// unordered pair of participants.
type ChatRoomManager struct {
	roomRepo    repository.RoomRepository
	messageRepo repository.MessageRepository
	directory   Directory
	access      *proxy.AccessControl
	dispatcher  *DeliveryDispatcher
	logger      *logger.Logger
}

func NewChatRoomManager(
	roomRepo repository.RoomRepository,
	messageRepo repository.MessageRepository,
	directory Directory,
	access *proxy.AccessControl,
	dispatcher *DeliveryDispatcher,
	log *logger.Logger,
) *ChatRoomManager {
	if log == nil {
		log = logger.NewNop()
	}
	return &ChatRoomManager{
		roomRepo:    roomRepo,
		messageRepo: messageRepo,
		directory:   directory,
		access:      access,
		dispatcher:  dispatcher,
		logger:      log,
	}
}

// CreateOrGet returns the room for the listing and counterpart, creating it on
// first contact. The listing owner is the other participant and the requester
// must be one of the two. Concurrent callers converge on the same room through
// the unique pair index.
func (m *ChatRoomManager) CreateOrGet(ctx context.Context, listingID, counterpartID, requesterID uuid.UUID) (chat.RoomSummary, error) {
	ownerID, err := m.directory.ListingOwner(ctx, listingID)
	if err != nil {
		if errors.Is(err, petaverse_errors.ErrNotFound) {
			return chat.RoomSummary{}, fmt.Errorf("listing %s: %w", listingID, petaverse_errors.ErrNotFound)
		}
		return chat.RoomSummary{}, err
	}
	exists, err := m.directory.UserExists(ctx, counterpartID)
	if err != nil {
		return chat.RoomSummary{}, err
	}
	if !exists {
		return chat.RoomSummary{}, fmt.Errorf("user %s: %w", counterpartID, petaverse_errors.ErrNotFound)
	}
	if counterpartID == ownerID {
		return chat.RoomSummary{}, petaverse_errors.ErrInvalidParticipants
	}
	if requesterID != ownerID && requesterID != counterpartID {
		return chat.RoomSummary{}, petaverse_errors.ErrAccessDenied
	}

	room, err := m.roomRepo.GetByPair(ctx, listingID, ownerID, counterpartID)
	if err == nil {
		return m.summarize(ctx, room, requesterID)
	}
	if !errors.Is(err, petaverse_errors.ErrNotFound) {
		return chat.RoomSummary{}, err
	}

	room = chat.ChatRoom{
		ID:            uuid.New(),
		ListingID:     listingID,
		OwnerID:       ownerID,
		CounterpartID: counterpartID,
		IsActive:      true,
	}
	if err := m.roomRepo.Create(ctx, &room); err != nil {
		if !errors.Is(err, petaverse_errors.ErrAlreadyExists) {
			return chat.RoomSummary{}, err
		}
		// Lost the race to a concurrent creator.
		existing, err := m.roomRepo.GetByPair(ctx, listingID, ownerID, counterpartID)
		if err != nil {
			return chat.RoomSummary{}, err
		}
		return m.summarize(ctx, existing, requesterID)
	}

	metrics.RoomsCreated.Inc()
	m.logger.WithContext(ctx).Info("chat room created",
		zap.String("room_id", room.ID.String()),
		zap.String("listing_id", listingID.String()),
	)
	if m.dispatcher != nil {
		other, _ := room.OtherParticipant(requesterID)
		if env, err := events.NewEnvelope(events.EventTypeRoomCreated, events.AggregateTypeRoom, room.ID.String(), events.NewRoomPayload(room)); err == nil {
			m.dispatcher.PushEvent(ctx, other, env)
		}
	}
	return chat.RoomSummary{Room: room}, nil
}

// Get returns a room the requester participates in.
func (m *ChatRoomManager) Get(ctx context.Context, roomID, requesterID uuid.UUID) (chat.RoomSummary, error) {
	room, err := m.access.EnsureParticipant(ctx, roomID, requesterID)
	if err != nil {
		return chat.RoomSummary{}, err
	}
	return m.summarize(ctx, room, requesterID)
}

// ListForUser returns the user's active rooms, most recent activity first and
// rooms without messages last.
func (m *ChatRoomManager) ListForUser(ctx context.Context, userID uuid.UUID) ([]chat.RoomSummary, error) {
	rooms, err := m.roomRepo.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rooms == nil {
		rooms = []chat.RoomSummary{}
	}
	return rooms, nil
}

func (m *ChatRoomManager) summarize(ctx context.Context, room chat.ChatRoom, userID uuid.UUID) (chat.RoomSummary, error) {
	unread, err := m.messageRepo.CountUnreadInRoom(ctx, room.ID, userID)
	if err != nil {
		return chat.RoomSummary{}, err
	}
	return chat.RoomSummary{Room: room, UnreadCount: unread}, nil
}
