package outbox

import (
	"context"
	"time"

	"petaverse-chat/internal/repository"
	"petaverse-chat/pkg/logger"
)

// Runner ties the processor lifetime to a context.
type Runner struct {
	processor *Processor
}

func NewRunner(processor *Processor) *Runner {
	return &Runner{processor: processor}
}

// Run blocks until ctx is cancelled. It always returns nil so it can be
// handed to an errgroup.
func (r *Runner) Run(ctx context.Context) error {
	r.processor.Run(ctx)
	return nil
}

// DefaultProcessor applies defaults for zero values.
func DefaultProcessor(repo repository.OutboxRepository, dispatcher BulkDispatcher, batchSize int, interval time.Duration, log *logger.Logger) *Processor {
	if batchSize <= 0 {
		batchSize = 50
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return NewProcessor(repo, dispatcher, batchSize, interval, 5, log)
}
