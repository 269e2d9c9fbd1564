package user

import (
	"github.com/google/uuid"
)

// Contact is the read-only projection of the users table that the chat core
// needs for outbound mail. The users table itself is owned by the identity service.
type Contact struct {
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name"`
}

// HasEmail reports whether mail can be addressed to this contact.
func (c Contact) HasEmail() bool {
	return c.Email != ""
}
