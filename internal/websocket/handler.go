package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"petaverse-chat/internal/domain/chat"
	"petaverse-chat/internal/events"
	"petaverse-chat/internal/metrics"
	petaredis "petaverse-chat/internal/redis"
	"petaverse-chat/internal/services"
	"petaverse-chat/internal/transport/httpdto"
	petaverse_errors "petaverse-chat/pkg/errors"
	"petaverse-chat/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Authenticator interface {
	Authenticate(token string) (uuid.UUID, error)
}

type MessageSender interface {
	Append(ctx context.Context, in services.SendMessageInput) (chat.Message, error)
}

type RoomReader interface {
	MarkRoomRead(ctx context.Context, roomID, readerID uuid.UUID) (services.ReadReceipt, error)
}

type PresenceTracker interface {
	SetOnline(ctx context.Context, userID uuid.UUID) error
	SetOffline(ctx context.Context, userID uuid.UUID) error
	Heartbeat(ctx context.Context, userID uuid.UUID) error
}

type MessageLimiter interface {
	AllowMessage(ctx context.Context, userID string) (*petaredis.RateLimitResult, error)
}

type HandlerDeps struct {
	Auth       Authenticator
	Hub        *Hub
	Authorizer *ChannelAuthorizer
	Messages   MessageSender
	Reads      RoomReader
	Presence   PresenceTracker // optional
	Limiter    MessageLimiter  // optional
}

// Handler upgrades authenticated requests and serves the socket protocol.
type Handler struct {
	deps     HandlerDeps
	upgrader websocket.Upgrader
	log      *connLogger
}

func NewHandler(deps HandlerDeps, l *logger.Logger) *Handler {
	return &Handler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: newConnLogger(l),
	}
}

// Connect authenticates from the token query parameter or bearer header. The
// principal is fixed for the lifetime of the socket.
func (h *Handler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	}
	userID, err := h.deps.Auth.Authenticate(strings.TrimSpace(token))
	if err != nil {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("upgrade_failed", userID, "", zap.Error(err))
		return
	}

	client := NewClient(conn, userID)
	ctx, cancel := context.WithCancel(services.WithUserContext(context.Background(), userID))
	defer cancel()
	ctx = context.WithValue(ctx, logger.UserIdKey, userID.String())

	h.deps.Hub.Register(client)
	h.setPresence(ctx, client, true)
	h.log.Info("connected", userID, client.ID)

	go client.WriteLoop(ctx)
	err = client.ReadLoop(ctx, func(ctx context.Context, frame []byte) {
		h.handleFrame(ctx, client, frame)
	}, func() {
		if h.deps.Presence != nil {
			_ = h.deps.Presence.Heartbeat(ctx, userID)
		}
	})
	if err != nil {
		h.log.Warn("read_failed", userID, client.ID, zap.Error(err))
	}

	h.deps.Hub.Unregister(client)
	h.setPresence(context.Background(), client, false)
	h.log.Info("disconnected", userID, client.ID)
}

func (h *Handler) handleFrame(ctx context.Context, client *Client, raw []byte) {
	var in InboundFrame
	if err := json.Unmarshal(raw, &in); err != nil {
		client.SendMessage(errorFrame(in, petaverse_errors.Validation("malformed frame")).marshal())
		return
	}

	var (
		data interface{}
		err  error
	)
	switch in.Action {
	case ActionSubscribe:
		err = h.subscribe(ctx, client, in.RoomID)
	case ActionUnsubscribe:
		h.deps.Hub.Unsubscribe(client, events.RoomChannel(in.RoomID))
	case ActionSend:
		data, err = h.send(ctx, client, in)
	case ActionRead:
		data, err = h.deps.Reads.MarkRoomRead(ctx, in.RoomID, client.UserID)
	default:
		err = petaverse_errors.Validation("unknown action")
	}

	if err != nil {
		if services.HTTPStatus(err) == http.StatusInternalServerError {
			h.log.Error("action_failed", client.UserID, client.ID, err, zap.String("action", in.Action))
		}
		client.SendMessage(errorFrame(in, err).marshal())
		return
	}
	client.SendMessage(ackFrame(in, data).marshal())
}

func (h *Handler) subscribe(ctx context.Context, client *Client, roomID uuid.UUID) error {
	if roomID == uuid.Nil {
		return petaverse_errors.Validation("room_id is required")
	}
	channel := events.RoomChannel(roomID)
	ok, err := h.deps.Authorizer.CanSubscribe(ctx, client.UserID, channel)
	if err != nil {
		return err
	}
	if !ok {
		return petaverse_errors.ErrAccessDenied
	}
	h.deps.Hub.Subscribe(client, channel)
	return nil
}

func (h *Handler) send(ctx context.Context, client *Client, in InboundFrame) (interface{}, error) {
	if h.deps.Limiter != nil {
		res, err := h.deps.Limiter.AllowMessage(ctx, client.UserID.String())
		if err != nil {
			h.log.Warn("rate_limit_unavailable", client.UserID, client.ID, zap.Error(err))
		} else if !res.Allowed {
			metrics.RateLimitHits.WithLabelValues("ws_send").Inc()
			return nil, petaverse_errors.ErrRateLimited
		}
	}
	m, err := h.deps.Messages.Append(ctx, services.SendMessageInput{
		RoomID:   in.RoomID,
		SenderID: client.UserID,
		Content:  in.Content,
		Type:     in.Type,
	})
	if err != nil {
		return nil, err
	}
	return events.NewMessagePayload(m), nil
}

func (h *Handler) setPresence(ctx context.Context, client *Client, online bool) {
	if h.deps.Presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	var err error
	if online {
		err = h.deps.Presence.SetOnline(ctx, client.UserID)
	} else {
		err = h.deps.Presence.SetOffline(ctx, client.UserID)
	}
	if err != nil {
		h.log.Warn("presence_update_failed", client.UserID, client.ID, zap.Bool("online", online), zap.Error(err))
	}
}
