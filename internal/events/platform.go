package events

import (
	"time"

	"github.com/google/uuid"
)

// PlatformChannel carries envelopes published by the rest of the marketplace
// (adoptions, lost pet reports, accounts) for this service to turn into
// notifications.
const PlatformChannel = "platform:events"

// Platform event types
const (
	PlatformEventAdoptionRequested  = "adoption.requested"
	PlatformEventApplicationUpdated = "adoption.application_updated"
	PlatformEventLostPetFound       = "lost_pet.found"
	PlatformEventVaccinationDue     = "vaccination.due"
	PlatformEventUserRegistered     = "user.registered"
	PlatformEventBulkNotification   = "notification.bulk_requested"
)

type AdoptionRequestedPayload struct {
	OwnerID       uuid.UUID `json:"owner_id"`
	PetName       string    `json:"pet_name"`
	ApplicantName string    `json:"applicant_name"`
	ApplicationID uuid.UUID `json:"application_id"`
}

type ApplicationUpdatedPayload struct {
	ApplicantID   uuid.UUID `json:"applicant_id"`
	PetName       string    `json:"pet_name"`
	Status        string    `json:"status"`
	ApplicationID uuid.UUID `json:"application_id"`
}

type LostPetFoundPayload struct {
	OwnerID  uuid.UUID `json:"owner_id"`
	PetName  string    `json:"pet_name"`
	Location string    `json:"location"`
	ReportID uuid.UUID `json:"report_id"`
}

type VaccinationDuePayload struct {
	OwnerID uuid.UUID `json:"owner_id"`
	PetName string    `json:"pet_name"`
	Vaccine string    `json:"vaccine"`
	DueDate time.Time `json:"due_date"`
}

type UserRegisteredPayload struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
}

// BulkNotificationPayload fans one notification out to many users, for
// announcements and lost pet alerts. Type defaults to SYSTEM_ANNOUNCEMENT.
type BulkNotificationPayload struct {
	RecipientIDs []uuid.UUID `json:"recipient_ids"`
	Title        string      `json:"title"`
	Body         string      `json:"body"`
	Type         string      `json:"type,omitempty"`
	ActionRef    string      `json:"action_ref,omitempty"`
}
