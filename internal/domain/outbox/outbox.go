package outbox

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status represents the processing state of an outbox event
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// EventTypeBulkDispatch asks the worker to fan out a batch of stored notifications.
const EventTypeBulkDispatch = "notification.bulk_dispatch"

// OutboxEvent stores work queued for the background worker in the same
// transaction that persisted the records it refers to.
type OutboxEvent struct {
	ID            uuid.UUID
	EventType     string
	AggregateType string
	AggregateID   string
	Payload       []byte
	Status        Status
	RetryCount    int
	Error         sql.NullString
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ProcessedAt   sql.NullTime
}

// BulkDispatchPayload is the body of EventTypeBulkDispatch events.
type BulkDispatchPayload struct {
	NotificationIDs []uuid.UUID `json:"notification_ids"`
}
