package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"petaverse-chat/internal/domain/notification"
	"petaverse-chat/internal/events"
	"petaverse-chat/internal/metrics"
	petaverse_errors "petaverse-chat/pkg/errors"
	"petaverse-chat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MaxBulkRecipients  = 5000
	platformEventLimit = 10 * time.Second
)

// PlatformNotifier is the part of NotificationService driven by platform events.
type PlatformNotifier interface {
	NotifyAdoptionRequest(ctx context.Context, ownerID uuid.UUID, petName, applicantName string, applicationID uuid.UUID) (notification.Notification, error)
	NotifyApplicationUpdate(ctx context.Context, applicantID uuid.UUID, petName, status string, applicationID uuid.UUID) (notification.Notification, error)
	NotifyLostPetFound(ctx context.Context, ownerID uuid.UUID, petName, location string, reportID uuid.UUID) (notification.Notification, error)
	NotifyVaccinationReminder(ctx context.Context, ownerID uuid.UUID, petName, vaccine string, due time.Time) (notification.Notification, error)
	NotifyWelcome(ctx context.Context, userID uuid.UUID, displayName string) (notification.Notification, error)
	QueueBulk(ctx context.Context, inputs []DispatchInput) (BulkReceipt, error)
}

// PlatformEventConsumer turns envelopes published on events.PlatformChannel
// into notifications. Single recipient events are delivered inline; bulk
// requests go through the outbox.
type PlatformEventConsumer struct {
	subscriber events.Subscriber
	notifier   PlatformNotifier
	logger     *logger.Logger
}

func NewPlatformEventConsumer(subscriber events.Subscriber, notifier PlatformNotifier, log *logger.Logger) *PlatformEventConsumer {
	if log == nil {
		log = logger.NewNop()
	}
	return &PlatformEventConsumer{subscriber: subscriber, notifier: notifier, logger: log}
}

// Run blocks until ctx is cancelled or the subscription breaks. A bad event is
// logged and skipped.
func (c *PlatformEventConsumer) Run(ctx context.Context) error {
	c.logger.Logger.Info("platform event consumer subscribed", zap.String("channel", events.PlatformChannel))
	err := c.subscriber.Subscribe(ctx, []string{events.PlatformChannel}, func(channel string, payload []byte) {
		hctx, cancel := context.WithTimeout(ctx, platformEventLimit)
		defer cancel()
		_ = c.Handle(hctx, payload)
	})
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handle processes one raw envelope.
func (c *PlatformEventConsumer) Handle(ctx context.Context, raw []byte) error {
	var env events.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		err = petaverse_errors.Validation("malformed envelope")
		c.observe(ctx, "unknown", err)
		return err
	}
	err := c.dispatch(ctx, env)
	c.observe(ctx, env.EventType, err)
	return err
}

func (c *PlatformEventConsumer) dispatch(ctx context.Context, env events.Envelope) error {
	switch env.EventType {
	case events.PlatformEventAdoptionRequested:
		var p events.AdoptionRequestedPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		if p.OwnerID == uuid.Nil || p.ApplicationID == uuid.Nil {
			return petaverse_errors.Validation("owner_id and application_id are required")
		}
		_, err := c.notifier.NotifyAdoptionRequest(ctx, p.OwnerID, p.PetName, p.ApplicantName, p.ApplicationID)
		return err

	case events.PlatformEventApplicationUpdated:
		var p events.ApplicationUpdatedPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		if p.ApplicantID == uuid.Nil || p.ApplicationID == uuid.Nil || strings.TrimSpace(p.Status) == "" {
			return petaverse_errors.Validation("applicant_id, application_id and status are required")
		}
		_, err := c.notifier.NotifyApplicationUpdate(ctx, p.ApplicantID, p.PetName, p.Status, p.ApplicationID)
		return err

	case events.PlatformEventLostPetFound:
		var p events.LostPetFoundPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		if p.OwnerID == uuid.Nil || p.ReportID == uuid.Nil {
			return petaverse_errors.Validation("owner_id and report_id are required")
		}
		_, err := c.notifier.NotifyLostPetFound(ctx, p.OwnerID, p.PetName, p.Location, p.ReportID)
		return err

	case events.PlatformEventVaccinationDue:
		var p events.VaccinationDuePayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		if p.OwnerID == uuid.Nil || p.DueDate.IsZero() {
			return petaverse_errors.Validation("owner_id and due_date are required")
		}
		_, err := c.notifier.NotifyVaccinationReminder(ctx, p.OwnerID, p.PetName, p.Vaccine, p.DueDate)
		return err

	case events.PlatformEventUserRegistered:
		var p events.UserRegisteredPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		if p.UserID == uuid.Nil {
			return petaverse_errors.Validation("user_id is required")
		}
		_, err := c.notifier.NotifyWelcome(ctx, p.UserID, p.DisplayName)
		return err

	case events.PlatformEventBulkNotification:
		var p events.BulkNotificationPayload
		if err := decodePayload(env, &p); err != nil {
			return err
		}
		inputs, err := bulkInputs(p)
		if err != nil {
			return err
		}
		receipt, err := c.notifier.QueueBulk(ctx, inputs)
		if err != nil {
			return err
		}
		c.logger.WithContext(ctx).Info("bulk notification queued",
			zap.String("outbox_event_id", receipt.EventID.String()),
			zap.Int("recipients", len(receipt.NotificationIDs)),
		)
		return nil
	}
	return petaverse_errors.Validation(fmt.Sprintf("unsupported event type %q", env.EventType))
}

func bulkInputs(p events.BulkNotificationPayload) ([]DispatchInput, error) {
	if len(p.RecipientIDs) == 0 {
		return nil, petaverse_errors.Validation("recipient_ids is required")
	}
	if len(p.RecipientIDs) > MaxBulkRecipients {
		return nil, petaverse_errors.Validation(fmt.Sprintf("at most %d recipients per event", MaxBulkRecipients))
	}
	t := notification.TypeSystemAnnouncement
	if p.Type != "" {
		t = notification.Type(strings.ToUpper(p.Type))
	}
	// chat notifications only come from MessageStore
	if t == notification.TypeNewMessage {
		return nil, petaverse_errors.Validation("NEW_MESSAGE cannot be sent in bulk")
	}

	seen := make(map[uuid.UUID]struct{}, len(p.RecipientIDs))
	inputs := make([]DispatchInput, 0, len(p.RecipientIDs))
	for _, id := range p.RecipientIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		inputs = append(inputs, DispatchInput{
			UserID:    id,
			Title:     p.Title,
			Body:      p.Body,
			Type:      t,
			ActionRef: p.ActionRef,
		})
	}
	return inputs, nil
}

func decodePayload(env events.Envelope, dst interface{}) error {
	if len(env.Payload) == 0 {
		return petaverse_errors.Validation("payload is required")
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		return petaverse_errors.Validation("malformed " + env.EventType + " payload")
	}
	return nil
}

func (c *PlatformEventConsumer) observe(ctx context.Context, eventType string, err error) {
	label := eventType
	switch eventType {
	case events.PlatformEventAdoptionRequested, events.PlatformEventApplicationUpdated,
		events.PlatformEventLostPetFound, events.PlatformEventVaccinationDue,
		events.PlatformEventUserRegistered, events.PlatformEventBulkNotification:
	default:
		label = "unknown"
	}

	switch {
	case err == nil:
		metrics.PlatformEventsConsumed.WithLabelValues(label, "ok").Inc()
	case petaverse_errors.IsAny(err, petaverse_errors.ErrValidation, petaverse_errors.ErrNotFound):
		metrics.PlatformEventsConsumed.WithLabelValues(label, "invalid").Inc()
		c.logger.WithContext(ctx).Warn("platform event rejected", zap.String("event_type", eventType), zap.Error(err))
	default:
		metrics.PlatformEventsConsumed.WithLabelValues(label, "error").Inc()
		c.logger.WithContext(ctx).Error("platform event failed", zap.String("event_type", eventType), zap.Error(err))
	}
}
