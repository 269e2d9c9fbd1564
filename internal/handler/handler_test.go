package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"petaverse-chat/internal/domain/chat"
	"petaverse-chat/internal/domain/notification"
	"petaverse-chat/internal/middleware"
	"petaverse-chat/internal/services"
	petaverse_errors "petaverse-chat/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubRooms struct {
	summary    chat.RoomSummary
	err        error
	gotListing uuid.UUID
	gotCounter uuid.UUID
	gotUser    uuid.UUID
}

func (s *stubRooms) CreateOrGet(ctx context.Context, listingID, counterpartID, requesterID uuid.UUID) (chat.RoomSummary, error) {
	s.gotListing, s.gotCounter, s.gotUser = listingID, counterpartID, requesterID
	return s.summary, s.err
}

func (s *stubRooms) Get(ctx context.Context, roomID, requesterID uuid.UUID) (chat.RoomSummary, error) {
	s.gotUser = requesterID
	return s.summary, s.err
}

func (s *stubRooms) ListForUser(ctx context.Context, userID uuid.UUID) ([]chat.RoomSummary, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []chat.RoomSummary{s.summary}, nil
}

type stubMessages struct {
	history []chat.Message
	err     error
	sent    services.SendMessageInput
	query   services.HistoryQuery
}

func (s *stubMessages) Append(ctx context.Context, in services.SendMessageInput) (chat.Message, error) {
	s.sent = in
	if s.err != nil {
		return chat.Message{}, s.err
	}
	return chat.Message{ID: uuid.New(), RoomID: in.RoomID, SenderID: in.SenderID, Seq: 1, Content: in.Content, Type: chat.MessageTypeText, Status: chat.MessageStatusSent}, nil
}

func (s *stubMessages) History(ctx context.Context, roomID, requesterID uuid.UUID, q services.HistoryQuery) ([]chat.Message, error) {
	s.query = q
	return s.history, s.err
}

type stubReads struct{}

func (stubReads) MarkRoomRead(ctx context.Context, roomID, readerID uuid.UUID) (services.ReadReceipt, error) {
	return services.ReadReceipt{RoomID: roomID, ReaderID: readerID, Count: 3, ReadAt: time.Now()}, nil
}

type stubSigner struct{ err error }

func (s stubSigner) PresignGet(ctx context.Context, key string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "https://cdn.example.com/" + key, nil
}

type stubNotifications struct {
	owner   uuid.UUID
	items   []notification.Notification
	deleted []uuid.UUID
	page    int
	size    int
	title   string
	body    string
}

func (s *stubNotifications) List(ctx context.Context, userID uuid.UUID, page, size int) (services.NotificationPage, error) {
	s.page, s.size = page, size
	return services.NotificationPage{Items: s.items, Total: int64(len(s.items)), Page: 1, Size: 20}, nil
}

func (s *stubNotifications) Unread(ctx context.Context, userID uuid.UUID) ([]notification.Notification, error) {
	return s.items, nil
}

func (s *stubNotifications) UnreadCount(ctx context.Context, userID uuid.UUID) (services.UnreadCounts, error) {
	return services.UnreadCounts{Notifications: 2, Messages: 5}, nil
}

func (s *stubNotifications) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	if userID != s.owner {
		return petaverse_errors.ErrAccessDenied
	}
	return nil
}

func (s *stubNotifications) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 4, nil
}

func (s *stubNotifications) Delete(ctx context.Context, id, userID uuid.UUID) error {
	if userID != s.owner {
		return petaverse_errors.ErrAccessDenied
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubNotifications) SendTest(ctx context.Context, userID uuid.UUID, title, body string) (notification.Notification, error) {
	s.title, s.body = title, body
	return notification.Notification{ID: uuid.New(), UserID: userID, Title: title, Body: body, Type: notification.TypeSystemAnnouncement, DeliveryStatus: notification.DeliveryStatusSent}, nil
}

func asUser(userID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID != uuid.Nil {
			c.Request = c.Request.WithContext(services.WithUserContext(c.Request.Context(), userID))
		}
		c.Next()
	}
}

func newRouter(userID uuid.UUID) *gin.Engine {
	r := gin.New()
	r.Use(middleware.ErrorHandler(nil), asUser(userID))
	return r
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func do(t *testing.T, r http.Handler, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestRoomHandlerCreate(t *testing.T) {
	userID := uuid.New()
	room := chat.ChatRoom{ID: uuid.New(), ListingID: uuid.New(), OwnerID: uuid.New(), CounterpartID: userID, IsActive: true}
	rooms := &stubRooms{summary: chat.RoomSummary{Room: room, UnreadCount: 1}}
	r := newRouter(userID)
	h := NewRoomHandler(rooms)
	r.POST("/v1/rooms", h.Create)

	body := `{"listing_id":"` + room.ListingID.String() + `","counterpart_id":"` + room.OwnerID.String() + `"}`
	w, env := do(t, r, http.MethodPost, "/v1/rooms", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)
	assert.Equal(t, userID, rooms.gotUser)
	assert.Equal(t, room.OwnerID, rooms.gotCounter)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, room.ID.String(), got["id"])
	assert.EqualValues(t, 1, got["unread_count"])

	w, env = do(t, r, http.MethodPost, "/v1/rooms", `{"listing_id":"nope","counterpart_id":"`+room.OwnerID.String()+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Code)

	w, _ = do(t, r, http.MethodPost, "/v1/rooms", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	rooms.err = petaverse_errors.ErrNotFound
	w, env = do(t, r, http.MethodPost, "/v1/rooms", body)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Code)
}

func TestRoomHandlerGetAndList(t *testing.T) {
	userID := uuid.New()
	rooms := &stubRooms{summary: chat.RoomSummary{Room: chat.ChatRoom{ID: uuid.New()}}}
	r := newRouter(userID)
	h := NewRoomHandler(rooms)
	r.GET("/v1/rooms", h.List)
	r.GET("/v1/rooms/:id", h.Get)

	w, env := do(t, r, http.MethodGet, "/v1/rooms", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)

	w, env = do(t, r, http.MethodGet, "/v1/rooms/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", env.Code)

	rooms.err = petaverse_errors.ErrAccessDenied
	w, env = do(t, r, http.MethodGet, "/v1/rooms/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "ACCESS_DENIED", env.Code)
}

func TestHandlersRequirePrincipal(t *testing.T) {
	r := newRouter(uuid.Nil)
	r.GET("/v1/rooms", NewRoomHandler(&stubRooms{}).List)

	w, env := do(t, r, http.MethodGet, "/v1/rooms", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "UNAUTHORIZED", env.Code)
}

func TestMessageHandlerSend(t *testing.T) {
	userID, roomID := uuid.New(), uuid.New()
	messages := &stubMessages{}
	r := newRouter(userID)
	r.POST("/v1/rooms/:id/messages", NewMessageHandler(messages, stubReads{}, nil, nil).Send)

	w, env := do(t, r, http.MethodPost, "/v1/rooms/"+roomID.String()+"/messages", `{"content":"is Biscuit still available?"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, env.Success)
	assert.Equal(t, roomID, messages.sent.RoomID)
	assert.Equal(t, userID, messages.sent.SenderID)
	assert.Equal(t, "is Biscuit still available?", messages.sent.Content)

	w, _ = do(t, r, http.MethodPost, "/v1/rooms/"+roomID.String()+"/messages", `{bad json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	messages.err = petaverse_errors.Validation("content is required")
	w, env = do(t, r, http.MethodPost, "/v1/rooms/"+roomID.String()+"/messages", `{"content":"  "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Error, "content is required")

	messages.err = errors.New("connection reset")
	w, env = do(t, r, http.MethodPost, "/v1/rooms/"+roomID.String()+"/messages", `{"content":"hi"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", env.Error)
}

func TestMessageHandlerHistorySignsAttachments(t *testing.T) {
	userID, roomID := uuid.New(), uuid.New()
	messages := &stubMessages{history: []chat.Message{
		{ID: uuid.New(), RoomID: roomID, Seq: 1, Content: "hello", Type: chat.MessageTypeText},
		{ID: uuid.New(), RoomID: roomID, Seq: 2, Content: chat.AttachmentPrefix(roomID) + "biscuit.png", Type: chat.MessageTypeImage},
	}}
	r := newRouter(userID)
	r.GET("/v1/rooms/:id/messages", NewMessageHandler(messages, stubReads{}, stubSigner{}, nil).History)

	w, env := do(t, r, http.MethodGet, "/v1/rooms/"+roomID.String()+"/messages?limit=10&before_seq=30", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, services.HistoryQuery{Limit: 10, BeforeSeq: 30}, messages.query)

	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got, 2)
	assert.NotContains(t, got[0], "attachment_url")
	assert.Equal(t, "https://cdn.example.com/"+chat.AttachmentPrefix(roomID)+"biscuit.png", got[1]["attachment_url"])

	w, _ = do(t, r, http.MethodGet, "/v1/rooms/"+roomID.String()+"/messages?limit=ten", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMessageHandlerPresignFailureKeepsMessage(t *testing.T) {
	roomID := uuid.New()
	key := chat.AttachmentPrefix(roomID) + "vet.pdf"
	messages := &stubMessages{history: []chat.Message{{ID: uuid.New(), RoomID: roomID, Content: key, Type: chat.MessageTypeFile}}}
	r := newRouter(uuid.New())
	r.GET("/v1/rooms/:id/messages", NewMessageHandler(messages, stubReads{}, stubSigner{err: errors.New("expired creds")}, nil).History)

	w, env := do(t, r, http.MethodGet, "/v1/rooms/"+roomID.String()+"/messages", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, key, got[0]["content"])
	assert.NotContains(t, got[0], "attachment_url")
}

func TestMessageHandlerDoesNotSignForeignAttachment(t *testing.T) {
	roomID, otherRoom := uuid.New(), uuid.New()
	messages := &stubMessages{history: []chat.Message{
		{ID: uuid.New(), RoomID: roomID, Seq: 1, Content: chat.AttachmentPrefix(otherRoom) + "passport.pdf", Type: chat.MessageTypeFile},
		{ID: uuid.New(), RoomID: roomID, Seq: 2, Content: "invoices/2026/march.pdf", Type: chat.MessageTypeFile},
	}}
	r := newRouter(uuid.New())
	r.GET("/v1/rooms/:id/messages", NewMessageHandler(messages, stubReads{}, stubSigner{}, nil).History)

	w, env := do(t, r, http.MethodGet, "/v1/rooms/"+roomID.String()+"/messages", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got, 2)
	assert.NotContains(t, got[0], "attachment_url")
	assert.NotContains(t, got[1], "attachment_url")
}

func TestMessageHandlerMarkRead(t *testing.T) {
	userID, roomID := uuid.New(), uuid.New()
	r := newRouter(userID)
	r.POST("/v1/rooms/:id/read", NewMessageHandler(&stubMessages{}, stubReads{}, nil, nil).MarkRead)

	w, env := do(t, r, http.MethodPost, "/v1/rooms/"+roomID.String()+"/read", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, userID.String(), got["reader_id"])
	assert.EqualValues(t, 3, got["count"])
}

func TestNotificationHandler(t *testing.T) {
	userID := uuid.New()
	stub := &stubNotifications{owner: userID, items: []notification.Notification{
		{ID: uuid.New(), UserID: userID, Title: "New message", Type: notification.TypeNewMessage, DeliveryStatus: notification.DeliveryStatusSent},
	}}
	h := NewNotificationHandler(stub)
	r := newRouter(userID)
	r.GET("/v1/notifications", h.List)
	r.GET("/v1/notifications/unread", h.Unread)
	r.GET("/v1/notifications/unread/count", h.UnreadCount)
	r.PUT("/v1/notifications/read-all", h.MarkAllRead)
	r.PUT("/v1/notifications/:id/read", h.MarkRead)
	r.DELETE("/v1/notifications/:id", h.Delete)
	r.POST("/v1/notifications/test", h.SendTest)

	w, env := do(t, r, http.MethodGet, "/v1/notifications?page=2&size=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, stub.page)
	assert.Equal(t, 5, stub.size)
	var page struct {
		Items []map[string]interface{} `json:"items"`
		Total int64                    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.Len(t, page.Items, 1)
	assert.EqualValues(t, 1, page.Total)

	w, _ = do(t, r, http.MethodGet, "/v1/notifications?page=x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = do(t, r, http.MethodGet, "/v1/notifications/unread/count", "")
	require.Equal(t, http.StatusOK, w.Code)
	var counts services.UnreadCounts
	require.NoError(t, json.Unmarshal(env.Data, &counts))
	assert.Equal(t, services.UnreadCounts{Notifications: 2, Messages: 5}, counts)

	w, _ = do(t, r, http.MethodGet, "/v1/notifications/unread", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, r, http.MethodPut, "/v1/notifications/"+uuid.NewString()+"/read", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, env = do(t, r, http.MethodPut, "/v1/notifications/read-all", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"updated":4}`, string(env.Data))

	id := uuid.New()
	w, _ = do(t, r, http.MethodDelete, "/v1/notifications/"+id.String(), "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []uuid.UUID{id}, stub.deleted)

	w, env = do(t, r, http.MethodPost, "/v1/notifications/test", "")
	require.Equal(t, http.StatusCreated, w.Code)
	var n map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &n))
	assert.Equal(t, "SYSTEM_ANNOUNCEMENT", n["type"])
	assert.Empty(t, stub.title)
}

func TestNotificationHandlerSendTestUsesBody(t *testing.T) {
	stub := &stubNotifications{}
	r := newRouter(uuid.New())
	r.POST("/v1/notifications/test", NewNotificationHandler(stub).SendTest)

	w, env := do(t, r, http.MethodPost, "/v1/notifications/test", `{"title":"Ping","message":"from the settings page"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Ping", stub.title)
	assert.Equal(t, "from the settings page", stub.body)
	var n map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &n))
	assert.Equal(t, "Ping", n["title"])

	w, _ = do(t, r, http.MethodPost, "/v1/notifications/test", `{"title":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotificationHandlerRejectsForeignNotification(t *testing.T) {
	stub := &stubNotifications{owner: uuid.New()}
	h := NewNotificationHandler(stub)
	r := newRouter(uuid.New())
	r.DELETE("/v1/notifications/:id", h.Delete)
	r.PUT("/v1/notifications/:id/read", h.MarkRead)

	w, env := do(t, r, http.MethodDelete, "/v1/notifications/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "ACCESS_DENIED", env.Code)
	assert.Empty(t, stub.deleted)

	w, _ = do(t, r, http.MethodPut, "/v1/notifications/bogus/read", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
