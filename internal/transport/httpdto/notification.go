package httpdto

import (
	"time"

	"petaverse-chat/internal/domain/notification"
)

type NotificationResponse struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	Title          string     `json:"title"`
	Body           string     `json:"body"`
	Type           string     `json:"type"`
	ActionRef      string     `json:"action_ref,omitempty"`
	IsRead         bool       `json:"is_read"`
	DeliveryStatus string     `json:"delivery_status"`
	CreatedAt      time.Time  `json:"created_at"`
	ReadAt         *time.Time `json:"read_at"`
}

func FromNotification(n notification.Notification) NotificationResponse {
	resp := NotificationResponse{
		ID:             n.ID.String(),
		UserID:         n.UserID.String(),
		Title:          n.Title,
		Body:           n.Body,
		Type:           string(n.Type),
		ActionRef:      n.ActionRef.String,
		IsRead:         n.IsRead,
		DeliveryStatus: string(n.DeliveryStatus),
		CreatedAt:      n.CreatedAt,
	}
	if n.ReadAt.Valid {
		t := n.ReadAt.Time
		resp.ReadAt = &t
	}
	return resp
}

func FromNotifications(in []notification.Notification) []NotificationResponse {
	out := make([]NotificationResponse, 0, len(in))
	for _, n := range in {
		out = append(out, FromNotification(n))
	}
	return out
}

// SendTestRequest is optional; blank fields fall back to the stock text.
type SendTestRequest struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}
