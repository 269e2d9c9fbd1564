package websocket

import (
	"encoding/json"

	"petaverse-chat/internal/services"

	"github.com/google/uuid"
)

// Inbound actions.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
	ActionSend        = "send"
	ActionRead        = "read"
)

// Reply frame kinds. Server pushed events carry event_type instead.
const (
	ReplyAck   = "ack"
	ReplyError = "error"
)

type InboundFrame struct {
	Action    string    `json:"action"`
	RequestID string    `json:"request_id,omitempty"`
	RoomID    uuid.UUID `json:"room_id"`
	Content   string    `json:"content,omitempty"`
	Type      string    `json:"type,omitempty"`
}

type ReplyFrame struct {
	Event     string      `json:"event"`
	Action    string      `json:"action,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Code      string      `json:"code,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

func ackFrame(in InboundFrame, data interface{}) ReplyFrame {
	return ReplyFrame{Event: ReplyAck, Action: in.Action, RequestID: in.RequestID, Data: data}
}

func errorFrame(in InboundFrame, err error) ReplyFrame {
	return ReplyFrame{
		Event:     ReplyError,
		Action:    in.Action,
		RequestID: in.RequestID,
		Code:      services.ErrorCode(err),
		Message:   services.PublicMessage(err),
	}
}

func (f ReplyFrame) marshal() []byte {
	data, err := json.Marshal(f)
	if err != nil {
		data, _ = json.Marshal(ReplyFrame{Event: ReplyError, Code: "INTERNAL_ERROR", Message: "internal server error"})
	}
	return data
}
