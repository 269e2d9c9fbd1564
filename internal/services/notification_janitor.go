package services

import (
	"context"
	"time"

	"petaverse-chat/internal/metrics"
	"petaverse-chat/internal/repository"
	"petaverse-chat/pkg/logger"

	"go.uber.org/zap"
)

// NotificationJanitor deletes read notifications once they are older than the
// retention window. Unread notifications are never removed.
type NotificationJanitor struct {
	notificationRepo repository.NotificationRepository
	retention        time.Duration
	interval         time.Duration
	logger           *logger.Logger
	now              func() time.Time
}

func NewNotificationJanitor(notificationRepo repository.NotificationRepository, retention, interval time.Duration, log *logger.Logger) *NotificationJanitor {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &NotificationJanitor{
		notificationRepo: notificationRepo,
		retention:        retention,
		interval:         interval,
		logger:           log,
		now:              time.Now,
	}
}

func (j *NotificationJanitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := j.Sweep(ctx); err != nil && ctx.Err() == nil {
				j.logger.WithContext(ctx).Error("notification cleanup failed", zap.Error(err))
			}
		}
	}
}

// Sweep runs one cleanup pass and returns the number of rows removed.
func (j *NotificationJanitor) Sweep(ctx context.Context) (int64, error) {
	cutoff := j.now().Add(-j.retention)
	n, err := j.notificationRepo.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.NotificationsPurged.Add(float64(n))
		j.logger.WithContext(ctx).Info("cleaned up old notifications", zap.Int64("deleted", n))
	}
	return n, nil
}
