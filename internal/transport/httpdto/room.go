package httpdto

import (
	"time"

	"petaverse-chat/internal/domain/chat"
)

type CreateRoomRequest struct {
	ListingID     string `json:"listing_id" binding:"required"`
	CounterpartID string `json:"counterpart_id" binding:"required"`
}

type RoomResponse struct {
	ID                 string     `json:"id"`
	ListingID          string     `json:"listing_id"`
	OwnerID            string     `json:"owner_id"`
	CounterpartID      string     `json:"counterpart_id"`
	IsActive           bool       `json:"is_active"`
	LastMessageSummary string     `json:"last_message_summary"`
	LastMessageTime    *time.Time `json:"last_message_time"`
	UnreadCount        int64      `json:"unread_count"`
	CreatedAt          time.Time  `json:"created_at"`
}

func FromRoomSummary(s chat.RoomSummary) RoomResponse {
	r := s.Room
	resp := RoomResponse{
		ID:                 r.ID.String(),
		ListingID:          r.ListingID.String(),
		OwnerID:            r.OwnerID.String(),
		CounterpartID:      r.CounterpartID.String(),
		IsActive:           r.IsActive,
		LastMessageSummary: r.LastMessageSummary,
		UnreadCount:        s.UnreadCount,
		CreatedAt:          r.CreatedAt,
	}
	if r.LastMessageTime.Valid {
		t := r.LastMessageTime.Time
		resp.LastMessageTime = &t
	}
	return resp
}

func FromRoomSummaries(in []chat.RoomSummary) []RoomResponse {
	out := make([]RoomResponse, 0, len(in))
	for _, s := range in {
		out = append(out, FromRoomSummary(s))
	}
	return out
}
