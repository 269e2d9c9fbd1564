package services

import (
	"context"
	"fmt"
	"time"

	"petaverse-chat/internal/domain/chat"
	"petaverse-chat/internal/domain/notification"
	"petaverse-chat/internal/events"
	"petaverse-chat/internal/metrics"
	"petaverse-chat/internal/repository"
	"petaverse-chat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	channelPush  = "push"
	channelEmail = "email"
)

type pushResult int

const (
	pushSkipped pushResult = iota // receiver not connected
	pushOK
	pushFailed
)

// DeliveryDispatcher fans persisted events out to the realtime channel and,
// for notifications that warrant it, email. Delivery never fails the caller;
// outcomes are recorded on the notification row and logged.
type DeliveryDispatcher struct {
	realtime         Realtime
	presence         Presence
	mailer           Mailer
	directory        Directory
	notificationRepo repository.NotificationRepository
	pushTimeout      time.Duration
	logger           *logger.Logger
}

type DispatcherConfig struct {
	PushTimeout time.Duration
}

// NewDeliveryDispatcher builds a dispatcher. A nil mailer disables email and a
// nil presence store treats every user as connected.
func NewDeliveryDispatcher(
	realtime Realtime,
	presence Presence,
	mailer Mailer,
	directory Directory,
	notificationRepo repository.NotificationRepository,
	cfg DispatcherConfig,
	log *logger.Logger,
) *DeliveryDispatcher {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.PushTimeout <= 0 {
		cfg.PushTimeout = 2 * time.Second
	}
	return &DeliveryDispatcher{
		realtime:         realtime,
		presence:         presence,
		mailer:           mailer,
		directory:        directory,
		notificationRepo: notificationRepo,
		pushTimeout:      cfg.PushTimeout,
		logger:           log,
	}
}

// PublishMessage pushes a stored message to the receiver and to everyone
// viewing the room.
func (d *DeliveryDispatcher) PublishMessage(ctx context.Context, m chat.Message) {
	env, err := events.NewEnvelope(events.EventTypeMessageCreated, events.AggregateTypeMessage, m.ID.String(), events.NewMessagePayload(m))
	if err != nil {
		d.logger.WithContext(ctx).Error("failed to build message envelope", zap.String("message_id", m.ID.String()), zap.Error(err))
		return
	}
	if res, err := d.push(ctx, m.ReceiverID, env); res == pushFailed {
		d.logger.WithContext(ctx).Warn("message push failed",
			zap.String("message_id", m.ID.String()),
			zap.String("channel", channelPush),
			zap.String("user_id", m.ReceiverID.String()),
			zap.Error(err),
		)
	}
	d.BroadcastEvent(ctx, m.RoomID, env)
}

// PublishNotification delivers a stored notification and records the outcome.
// The returned status is what the row holds afterwards.
func (d *DeliveryDispatcher) PublishNotification(ctx context.Context, n notification.Notification) notification.DeliveryStatus {
	if n.DeliveryStatus != "" && n.DeliveryStatus != notification.DeliveryStatusPending {
		return n.DeliveryStatus
	}
	log := d.logger.WithContext(ctx).With(
		zap.String("notification_id", n.ID.String()),
		zap.String("user_id", n.UserID.String()),
	)

	var pushRes pushResult
	env, err := events.NewEnvelope(events.EventTypeNotificationCreated, events.AggregateTypeNotification, n.ID.String(), events.NewNotificationPayload(n))
	if err != nil {
		pushRes = pushFailed
	} else {
		pushRes, err = d.push(ctx, n.UserID, env)
	}
	if pushRes == pushFailed {
		log.Warn("notification push failed", zap.String("channel", channelPush), zap.Error(err))
	}

	status := notification.DeliveryStatusPending
	if to, ok := d.emailRecipient(ctx, n); ok {
		status = notification.DeliveryStatusSent
		if err := d.sendEmail(ctx, to, n); err != nil {
			log.Warn("notification email failed", zap.String("channel", channelEmail), zap.Error(err))
			status = notification.DeliveryStatusFailed
		}
	} else {
		switch pushRes {
		case pushOK:
			status = notification.DeliveryStatusSent
		case pushFailed:
			status = notification.DeliveryStatusFailed
		}
	}

	d.record(ctx, n, status)
	return status
}

// PublishBulk delivers each notification independently. A failing or
// panicking item is counted as FAILED and never stops the rest.
func (d *DeliveryDispatcher) PublishBulk(ctx context.Context, ns []notification.Notification) notification.Outcome {
	var out notification.Outcome
	for _, n := range ns {
		out.Add(d.publishIsolated(ctx, n))
	}
	return out
}

func (d *DeliveryDispatcher) publishIsolated(ctx context.Context, n notification.Notification) (status notification.DeliveryStatus) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.WithContext(ctx).Error("notification delivery panicked",
				zap.String("notification_id", n.ID.String()),
				zap.Any("panic", r),
			)
			d.record(ctx, n, notification.DeliveryStatusFailed)
			status = notification.DeliveryStatusFailed
		}
	}()
	return d.PublishNotification(ctx, n)
}

// PushEvent sends an arbitrary frame to a user's sessions, best effort.
func (d *DeliveryDispatcher) PushEvent(ctx context.Context, userID uuid.UUID, env events.Envelope) {
	if res, err := d.push(ctx, userID, env); res == pushFailed {
		d.logger.WithContext(ctx).Warn("event push failed",
			zap.String("event_type", env.EventType),
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
	}
}

// BroadcastEvent sends a frame to every socket subscribed to the room, best effort.
func (d *DeliveryDispatcher) BroadcastEvent(ctx context.Context, roomID uuid.UUID, env events.Envelope) {
	if d.realtime == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, d.pushTimeout)
	defer cancel()
	if err := d.realtime.Broadcast(ctx, roomID, env); err != nil {
		d.logger.WithContext(ctx).Warn("room broadcast failed",
			zap.String("event_type", env.EventType),
			zap.String("room_id", roomID.String()),
			zap.Error(err),
		)
	}
}

func (d *DeliveryDispatcher) push(ctx context.Context, userID uuid.UUID, env events.Envelope) (pushResult, error) {
	if d.realtime == nil {
		return pushSkipped, nil
	}
	if d.presence != nil {
		online, err := d.presence.IsOnline(ctx, userID)
		if err != nil {
			d.logger.WithContext(ctx).Debug("presence lookup failed, attempting push", zap.String("user_id", userID.String()), zap.Error(err))
		} else if !online {
			metrics.Deliveries.WithLabelValues(channelPush, "skipped").Inc()
			return pushSkipped, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, d.pushTimeout)
	defer cancel()
	if err := d.realtime.Push(ctx, userID, env); err != nil {
		metrics.Deliveries.WithLabelValues(channelPush, "error").Inc()
		return pushFailed, err
	}
	metrics.Deliveries.WithLabelValues(channelPush, "ok").Inc()
	return pushOK, nil
}

// emailRecipient reports the address to mail, if email applies to n at all.
// A failed contact lookup still counts as applicable so it surfaces as FAILED.
func (d *DeliveryDispatcher) emailRecipient(ctx context.Context, n notification.Notification) (string, bool) {
	if d.mailer == nil || !n.Type.WantsEmail() || d.directory == nil {
		return "", false
	}
	contact, err := d.directory.Contact(ctx, n.UserID)
	if err != nil {
		d.logger.WithContext(ctx).Warn("contact lookup failed", zap.String("user_id", n.UserID.String()), zap.Error(err))
		return "", true
	}
	if !contact.HasEmail() {
		return "", false
	}
	return contact.Email, true
}

func (d *DeliveryDispatcher) sendEmail(ctx context.Context, to string, n notification.Notification) error {
	if to == "" {
		metrics.Deliveries.WithLabelValues(channelEmail, "error").Inc()
		return fmt.Errorf("no address for user %s", n.UserID)
	}
	if err := d.mailer.Send(ctx, to, n.Title, n.Body); err != nil {
		metrics.Deliveries.WithLabelValues(channelEmail, "error").Inc()
		return err
	}
	metrics.Deliveries.WithLabelValues(channelEmail, "ok").Inc()
	return nil
}

func (d *DeliveryDispatcher) record(ctx context.Context, n notification.Notification, status notification.DeliveryStatus) {
	from := n.DeliveryStatus
	if from == "" {
		from = notification.DeliveryStatusPending
	}
	if !from.CanTransition(status) || d.notificationRepo == nil {
		return
	}
	if _, err := d.notificationRepo.UpdateDeliveryStatus(ctx, n.ID, status); err != nil {
		d.logger.WithContext(ctx).Error("failed to record delivery status",
			zap.String("notification_id", n.ID.String()),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}
