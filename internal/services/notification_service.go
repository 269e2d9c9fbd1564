package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"petaverse-chat/internal/domain/chat"
	"petaverse-chat/internal/domain/notification"
	"petaverse-chat/internal/domain/outbox"
	"petaverse-chat/internal/events"
	"petaverse-chat/internal/metrics"
	"petaverse-chat/internal/proxy"
	"petaverse-chat/internal/repository"
	petaverse_errors "petaverse-chat/pkg/errors"
	"petaverse-chat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultNotificationPageSize = 20
	MaxNotificationPageSize     = 100
	messagePreviewLength        = 50
)

type DispatchInput struct {
	UserID    uuid.UUID
	Title     string
	Body      string
	Type      notification.Type
	ActionRef string
}

func (in DispatchInput) validate() error {
	if in.UserID == uuid.Nil {
		return petaverse_errors.Validation("user_id is required")
	}
	if strings.TrimSpace(in.Title) == "" {
		return petaverse_errors.Validation("title is required")
	}
	if !in.Type.Valid() {
		return petaverse_errors.Validation("unknown notification type")
	}
	return nil
}

func (in DispatchInput) build() notification.Notification {
	n := notification.Notification{
		ID:             uuid.New(),
		UserID:         in.UserID,
		Title:          strings.TrimSpace(in.Title),
		Body:           in.Body,
		Type:           in.Type,
		DeliveryStatus: notification.DeliveryStatusPending,
	}
	if in.ActionRef != "" {
		n.ActionRef = sql.NullString{String: in.ActionRef, Valid: true}
	}
	return n
}

type NotificationPage struct {
	Items []notification.Notification
	Total int64
	Page  int
	Size  int
}

// BulkReceipt identifies a queued bulk dispatch.
type BulkReceipt struct {
	EventID         uuid.UUID   `json:"event_id"`
	NotificationIDs []uuid.UUID `json:"notification_ids"`
}

// NotificationService creates notifications for platform events and exposes
// the per-user inbox.
type NotificationService struct {
	notificationRepo repository.NotificationRepository
	directory        Directory
	access           *proxy.AccessControl
	reads            *ReadTracker
	dispatcher       *DeliveryDispatcher
	logger           *logger.Logger
}

func NewNotificationService(
	notificationRepo repository.NotificationRepository,
	directory Directory,
	access *proxy.AccessControl,
	reads *ReadTracker,
	dispatcher *DeliveryDispatcher,
	log *logger.Logger,
) *NotificationService {
	if log == nil {
		log = logger.NewNop()
	}
	return &NotificationService{
		notificationRepo: notificationRepo,
		directory:        directory,
		access:           access,
		reads:            reads,
		dispatcher:       dispatcher,
		logger:           log,
	}
}

// Dispatch persists a notification and then delivers it. The stored record is
// returned whatever the delivery outcome.
func (s *NotificationService) Dispatch(ctx context.Context, in DispatchInput) (notification.Notification, error) {
	if err := in.validate(); err != nil {
		return notification.Notification{}, err
	}
	if err := s.ensureRecipient(ctx, in.UserID); err != nil {
		return notification.Notification{}, err
	}

	n := in.build()
	if err := s.notificationRepo.Create(ctx, &n); err != nil {
		return notification.Notification{}, err
	}
	metrics.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()

	if s.dispatcher != nil {
		n.DeliveryStatus = s.dispatcher.PublishNotification(ctx, n)
	}
	return n, nil
}

// QueueBulk persists every notification and one outbox event referencing them
// in a single transaction, then returns. The outbox worker delivers them.
func (s *NotificationService) QueueBulk(ctx context.Context, inputs []DispatchInput) (BulkReceipt, error) {
	if len(inputs) == 0 {
		return BulkReceipt{}, petaverse_errors.Validation("no notifications to send")
	}
	ns := make([]notification.Notification, 0, len(inputs))
	ids := make([]uuid.UUID, 0, len(inputs))
	for i, in := range inputs {
		if err := in.validate(); err != nil {
			return BulkReceipt{}, fmt.Errorf("item %d: %w", i, err)
		}
		if err := s.ensureRecipient(ctx, in.UserID); err != nil {
			return BulkReceipt{}, fmt.Errorf("item %d: %w", i, err)
		}
		n := in.build()
		ns = append(ns, n)
		ids = append(ids, n.ID)
	}

	payload, err := json.Marshal(outbox.BulkDispatchPayload{NotificationIDs: ids})
	if err != nil {
		return BulkReceipt{}, err
	}
	now := time.Now().UTC()
	ev := &outbox.OutboxEvent{
		ID:            uuid.New(),
		EventType:     outbox.EventTypeBulkDispatch,
		AggregateType: events.AggregateTypeNotification,
		AggregateID:   ids[0].String(),
		Payload:       payload,
		Status:        outbox.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.notificationRepo.CreateBatch(ctx, ns, ev); err != nil {
		return BulkReceipt{}, err
	}
	for _, n := range ns {
		metrics.NotificationsCreated.WithLabelValues(string(n.Type)).Inc()
	}
	return BulkReceipt{EventID: ev.ID, NotificationIDs: ids}, nil
}

// ProcessBulk delivers queued notifications that are still PENDING. Only
// infrastructure errors are returned; item failures land in the outcome.
func (s *NotificationService) ProcessBulk(ctx context.Context, ids []uuid.UUID) (notification.Outcome, error) {
	ns, err := s.notificationRepo.GetByIDs(ctx, ids)
	if err != nil {
		return notification.Outcome{}, err
	}
	pending := ns[:0]
	for _, n := range ns {
		if n.DeliveryStatus == notification.DeliveryStatusPending {
			pending = append(pending, n)
		}
	}
	if s.dispatcher == nil {
		return notification.Outcome{Pending: len(pending)}, nil
	}
	return s.dispatcher.PublishBulk(ctx, pending), nil
}

// List returns one page of the user's notifications, newest first. Pages start at 1.
func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, page, size int) (NotificationPage, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultNotificationPageSize
	}
	if size > MaxNotificationPageSize {
		size = MaxNotificationPageSize
	}
	items, total, err := s.notificationRepo.ListByUser(ctx, userID, size, (page-1)*size)
	if err != nil {
		return NotificationPage{}, err
	}
	if items == nil {
		items = []notification.Notification{}
	}
	return NotificationPage{Items: items, Total: total, Page: page, Size: size}, nil
}

func (s *NotificationService) Unread(ctx context.Context, userID uuid.UUID) ([]notification.Notification, error) {
	items, err := s.notificationRepo.ListUnread(ctx, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []notification.Notification{}
	}
	return items, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID uuid.UUID) (UnreadCounts, error) {
	return s.reads.UnreadCount(ctx, userID)
}

func (s *NotificationService) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	return s.reads.MarkNotificationRead(ctx, id, userID)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.reads.MarkAllNotificationsRead(ctx, userID)
}

// Delete removes a notification owned by userID.
func (s *NotificationService) Delete(ctx context.Context, id, userID uuid.UUID) error {
	if _, err := s.access.EnsureNotificationOwner(ctx, id, userID); err != nil {
		return err
	}
	return s.notificationRepo.Delete(ctx, id, userID)
}

func (s *NotificationService) ensureRecipient(ctx context.Context, userID uuid.UUID) error {
	if s.directory == nil {
		return nil
	}
	ok, err := s.directory.UserExists(ctx, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("user %s: %w", userID, petaverse_errors.ErrNotFound)
	}
	return nil
}

// Typed builders for platform events.

// NotifyNewMessage tells the receiver about a chat message. Push only.
func (s *NotificationService) NotifyNewMessage(ctx context.Context, m chat.Message) (notification.Notification, error) {
	body := Summarize(m.Content, m.Type)
	if r := []rune(body); len(r) > messagePreviewLength {
		body = string(r[:messagePreviewLength]) + "..."
	}
	return s.Dispatch(ctx, DispatchInput{
		UserID:    m.ReceiverID,
		Title:     "New message",
		Body:      body,
		Type:      notification.TypeNewMessage,
		ActionRef: "room:" + m.RoomID.String(),
	})
}

func (s *NotificationService) NotifyAdoptionRequest(ctx context.Context, ownerID uuid.UUID, petName, applicantName string, applicationID uuid.UUID) (notification.Notification, error) {
	return s.Dispatch(ctx, DispatchInput{
		UserID:    ownerID,
		Title:     "New adoption request",
		Body:      fmt.Sprintf("%s wants to adopt %s.", applicantName, petName),
		Type:      notification.TypeAdoptionRequest,
		ActionRef: "application:" + applicationID.String(),
	})
}

func (s *NotificationService) NotifyApplicationUpdate(ctx context.Context, applicantID uuid.UUID, petName, status string, applicationID uuid.UUID) (notification.Notification, error) {
	return s.Dispatch(ctx, DispatchInput{
		UserID:    applicantID,
		Title:     "Application update",
		Body:      fmt.Sprintf("Your application for %s is now %s.", petName, strings.ToLower(status)),
		Type:      notification.TypeApplicationUpdate,
		ActionRef: "application:" + applicationID.String(),
	})
}

func (s *NotificationService) NotifyLostPetFound(ctx context.Context, ownerID uuid.UUID, petName, location string, reportID uuid.UUID) (notification.Notification, error) {
	return s.Dispatch(ctx, DispatchInput{
		UserID:    ownerID,
		Title:     "Your pet may have been found",
		Body:      fmt.Sprintf("Someone reported seeing %s near %s.", petName, location),
		Type:      notification.TypeLostPetFound,
		ActionRef: "lost-pet:" + reportID.String(),
	})
}

func (s *NotificationService) NotifyVaccinationReminder(ctx context.Context, ownerID uuid.UUID, petName, vaccine string, due time.Time) (notification.Notification, error) {
	return s.Dispatch(ctx, DispatchInput{
		UserID: ownerID,
		Title:  "Vaccination reminder",
		Body:   fmt.Sprintf("%s is due for %s on %s.", petName, vaccine, due.Format("2006-01-02")),
		Type:   notification.TypeVaccinationReminder,
	})
}

func (s *NotificationService) NotifyWelcome(ctx context.Context, userID uuid.UUID, displayName string) (notification.Notification, error) {
	return s.Dispatch(ctx, DispatchInput{
		UserID: userID,
		Title:  "Welcome to Petaverse",
		Body:   fmt.Sprintf("Hi %s, start browsing pets looking for a home.", displayName),
		Type:   notification.TypeWelcome,
	})
}

// SendTest sends the caller a system announcement. Blank title or body use
// the stock wording.
func (s *NotificationService) SendTest(ctx context.Context, userID uuid.UUID, title, body string) (notification.Notification, error) {
	if strings.TrimSpace(title) == "" {
		title = "Test notification"
	}
	if strings.TrimSpace(body) == "" {
		body = "Notifications are working."
	}
	n, err := s.Dispatch(ctx, DispatchInput{
		UserID: userID,
		Title:  title,
		Body:   body,
		Type:   notification.TypeSystemAnnouncement,
	})
	if err == nil {
		s.logger.WithContext(ctx).Info("test notification sent", zap.String("notification_id", n.ID.String()))
	}
	return n, err
}
