package httpdto

import (
	"time"

	"petaverse-chat/internal/domain/chat"
	"petaverse-chat/internal/services"
)

type SendMessageRequest struct {
	Content string `json:"content"`
	Type    string `json:"type"`
}

type MessageResponse struct {
	ID            string     `json:"id"`
	RoomID        string     `json:"room_id"`
	SenderID      string     `json:"sender_id"`
	ReceiverID    string     `json:"receiver_id"`
	Seq           int64      `json:"seq"`
	Content       string     `json:"content"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	AttachmentURL string     `json:"attachment_url,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	ReadAt        *time.Time `json:"read_at"`
}

func FromMessage(m chat.Message) MessageResponse {
	resp := MessageResponse{
		ID:         m.ID.String(),
		RoomID:     m.RoomID.String(),
		SenderID:   m.SenderID.String(),
		ReceiverID: m.ReceiverID.String(),
		Seq:        m.Seq,
		Content:    m.Content,
		Type:       string(m.Type),
		Status:     string(m.Status),
		CreatedAt:  m.CreatedAt,
	}
	if m.ReadAt.Valid {
		t := m.ReadAt.Time
		resp.ReadAt = &t
	}
	return resp
}

type ReadReceiptResponse struct {
	RoomID   string    `json:"room_id"`
	ReaderID string    `json:"reader_id"`
	Count    int64     `json:"count"`
	ReadAt   time.Time `json:"read_at"`
}

func FromReadReceipt(r services.ReadReceipt) ReadReceiptResponse {
	return ReadReceiptResponse{
		RoomID:   r.RoomID.String(),
		ReaderID: r.ReaderID.String(),
		Count:    r.Count,
		ReadAt:   r.ReadAt,
	}
}
