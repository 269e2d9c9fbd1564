package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"petaverse-chat/internal/domain/notification"
	"petaverse-chat/internal/domain/outbox"
	"petaverse-chat/internal/metrics"
	"petaverse-chat/internal/repository"
	petaverse_errors "petaverse-chat/pkg/errors"
	"petaverse-chat/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BulkDispatcher delivers a batch of stored notifications.
type BulkDispatcher interface {
	ProcessBulk(ctx context.Context, ids []uuid.UUID) (notification.Outcome, error)
}

// Processor polls the outbox table and runs queued bulk dispatches off the
// request path.
type Processor struct {
	repo       repository.OutboxRepository
	dispatcher BulkDispatcher
	batchSize  int
	interval   time.Duration
	maxRetries int
	logger     *logger.Logger
}

func NewProcessor(repo repository.OutboxRepository, dispatcher BulkDispatcher, batchSize int, interval time.Duration, maxRetries int, log *logger.Logger) *Processor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Processor{
		repo:       repo,
		dispatcher: dispatcher,
		batchSize:  batchSize,
		interval:   interval,
		maxRetries: maxRetries,
		logger:     log,
	}
}

func (p *Processor) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ProcessBatch(ctx)
		}
	}
}

// ProcessBatch handles one poll worth of pending events and returns how many
// it claimed.
func (p *Processor) ProcessBatch(ctx context.Context) int {
	batch, err := p.repo.GetPending(ctx, p.batchSize, p.maxRetries)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.WithContext(ctx).Error("outbox poll failed", zap.Error(err))
		}
		return 0
	}

	claimed := 0
	for i := range batch {
		if p.process(ctx, &batch[i]) {
			claimed++
		}
	}
	return claimed
}

func (p *Processor) process(ctx context.Context, e *outbox.OutboxEvent) bool {
	log := p.logger.WithContext(ctx).With(zap.String("event_id", e.ID.String()), zap.String("event_type", e.EventType))

	// another worker may have claimed it between poll and here
	if err := p.repo.MarkProcessing(ctx, e.ID); err != nil {
		if !errors.Is(err, petaverse_errors.ErrNotFound) {
			log.Error("failed to claim outbox event", zap.Error(err))
		}
		return false
	}

	if e.EventType != outbox.EventTypeBulkDispatch {
		p.fail(ctx, log, e.ID, "unknown event type")
		return true
	}
	var payload outbox.BulkDispatchPayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		p.fail(ctx, log, e.ID, "failed to unmarshal payload")
		return true
	}

	out, err := p.dispatcher.ProcessBulk(ctx, payload.NotificationIDs)
	if err != nil {
		if e.RetryCount+1 >= p.maxRetries {
			p.fail(ctx, log, e.ID, "max retries exceeded: "+err.Error())
			return true
		}
		if rerr := p.repo.IncrementRetry(ctx, e.ID, err.Error()); rerr != nil {
			log.Error("failed to requeue outbox event", zap.Error(rerr))
		}
		metrics.OutboxProcessed.WithLabelValues("retry").Inc()
		log.Warn("bulk dispatch will be retried", zap.Int("retry_count", e.RetryCount+1), zap.Error(err))
		return true
	}

	if err := p.repo.MarkCompleted(ctx, e.ID); err != nil {
		log.Error("failed to complete outbox event", zap.Error(err))
	}
	metrics.OutboxProcessed.WithLabelValues("completed").Inc()
	log.Info("bulk dispatch completed",
		zap.Int("sent", out.Sent),
		zap.Int("failed", out.Failed),
		zap.Int("pending", out.Pending),
	)
	return true
}

func (p *Processor) fail(ctx context.Context, log *zap.Logger, id uuid.UUID, reason string) {
	if err := p.repo.MarkFailed(ctx, id, reason); err != nil {
		log.Error("failed to mark outbox event failed", zap.Error(err))
	}
	metrics.OutboxProcessed.WithLabelValues("failed").Inc()
	log.Error("outbox event failed", zap.String("reason", reason))
}
