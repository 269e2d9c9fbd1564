package notification

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Notification represents the notifications table
type Notification struct {
	ID             uuid.UUID
	UserID         uuid.UUID
	Title          string
	Body           string
	Type           Type
	ActionRef      sql.NullString
	IsRead         bool
	DeliveryStatus DeliveryStatus
	CreatedAt      time.Time
	ReadAt         sql.NullTime
}

type Type string

const (
	TypeNewMessage          Type = "NEW_MESSAGE"
	TypeAdoptionRequest     Type = "ADOPTION_REQUEST"
	TypeApplicationUpdate   Type = "APPLICATION_UPDATE"
	TypeLostPetAlert        Type = "LOST_PET_ALERT"
	TypeLostPetFound        Type = "LOST_PET_FOUND"
	TypeVaccinationReminder Type = "VACCINATION_REMINDER"
	TypeReminder            Type = "REMINDER"
	TypeWelcome             Type = "WELCOME"
	TypeSystemAnnouncement  Type = "SYSTEM_ANNOUNCEMENT"
)

// Valid reports whether t is a known notification kind.
func (t Type) Valid() bool {
	switch t {
	case TypeNewMessage, TypeAdoptionRequest, TypeApplicationUpdate, TypeLostPetAlert,
		TypeLostPetFound, TypeVaccinationReminder, TypeReminder, TypeWelcome, TypeSystemAnnouncement:
		return true
	}
	return false
}

// WantsEmail reports whether the mail channel applies to this kind.
// Chat messages are pushed only, so users are not mailed per message.
func (t Type) WantsEmail() bool {
	return t != TypeNewMessage
}

type DeliveryStatus string

const (
	DeliveryStatusPending DeliveryStatus = "PENDING"
	DeliveryStatusSent    DeliveryStatus = "SENT"
	DeliveryStatusFailed  DeliveryStatus = "FAILED"
)

// CanTransition enforces PENDING -> SENT | FAILED. There is no way out of a terminal state.
func (s DeliveryStatus) CanTransition(to DeliveryStatus) bool {
	return s == DeliveryStatusPending && (to == DeliveryStatusSent || to == DeliveryStatusFailed)
}

// Outcome summarises a bulk publish.
type Outcome struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Pending int `json:"pending"`
}

// Add records a single delivery status in the summary.
func (o *Outcome) Add(status DeliveryStatus) {
	switch status {
	case DeliveryStatusSent:
		o.Sent++
	case DeliveryStatusFailed:
		o.Failed++
	default:
		o.Pending++
	}
}
