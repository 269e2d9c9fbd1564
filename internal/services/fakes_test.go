package services

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"petaverse-chat/internal/domain/chat"
	"petaverse-chat/internal/domain/notification"
	"petaverse-chat/internal/domain/outbox"
	"petaverse-chat/internal/domain/user"
	"petaverse-chat/internal/events"
	"petaverse-chat/internal/proxy"
	petaverse_errors "petaverse-chat/pkg/errors"

	"github.com/google/uuid"
)

type fakeRoomRepo struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]*chat.ChatRoom
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{rooms: make(map[uuid.UUID]*chat.ChatRoom)}
}

func (r *fakeRoomRepo) Create(ctx context.Context, room *chat.ChatRoom) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	lo, hi := chat.PairKey(room.OwnerID, room.CounterpartID)
	for _, existing := range r.rooms {
		elo, ehi := chat.PairKey(existing.OwnerID, existing.CounterpartID)
		if existing.ListingID == room.ListingID && elo == lo && ehi == hi {
			return petaverse_errors.ErrAlreadyExists
		}
	}
	room.CreatedAt = time.Now().UTC()
	cp := *room
	r.rooms[room.ID] = &cp
	return nil
}

func (r *fakeRoomRepo) GetByID(ctx context.Context, id uuid.UUID) (chat.ChatRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok {
		return chat.ChatRoom{}, petaverse_errors.ErrNotFound
	}
	return *room, nil
}

func (r *fakeRoomRepo) GetByPair(ctx context.Context, listingID, a, b uuid.UUID) (chat.ChatRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lo, hi := chat.PairKey(a, b)
	for _, room := range r.rooms {
		rlo, rhi := chat.PairKey(room.OwnerID, room.CounterpartID)
		if room.ListingID == listingID && rlo == lo && rhi == hi {
			return *room, nil
		}
	}
	return chat.ChatRoom{}, petaverse_errors.ErrNotFound
}

func (r *fakeRoomRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]chat.RoomSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []chat.RoomSummary
	for _, room := range r.rooms {
		if room.IsActive && room.HasParticipant(userID) {
			out = append(out, chat.RoomSummary{Room: *room})
		}
	}
	return out, nil
}

func (r *fakeRoomRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rooms)
}

type fakeMessageRepo struct {
	mu        sync.Mutex
	rooms     *fakeRoomRepo
	messages  []chat.Message
	appendErr error
}

func newFakeMessageRepo(rooms *fakeRoomRepo) *fakeMessageRepo {
	return &fakeMessageRepo{rooms: rooms}
}

func (r *fakeMessageRepo) Append(ctx context.Context, m *chat.Message, summary string) (chat.ChatRoom, error) {
	if r.appendErr != nil {
		return chat.ChatRoom{}, r.appendErr
	}
	r.rooms.mu.Lock()
	defer r.rooms.mu.Unlock()
	room, ok := r.rooms.rooms[m.RoomID]
	if !ok {
		return chat.ChatRoom{}, petaverse_errors.ErrNotFound
	}
	room.LastSeq++
	m.Seq = room.LastSeq
	m.CreatedAt = time.Now().UTC()
	room.LastMessageSummary = summary
	room.LastMessageTime = sql.NullTime{Time: m.CreatedAt, Valid: true}

	r.mu.Lock()
	r.messages = append(r.messages, *m)
	r.mu.Unlock()
	return *room, nil
}

func (r *fakeMessageRepo) History(ctx context.Context, roomID uuid.UUID, beforeSeq int64, limit int) ([]chat.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []chat.Message
	for _, m := range r.messages {
		if m.RoomID == roomID && (beforeSeq <= 0 || m.Seq < beforeSeq) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (r *fakeMessageRepo) MarkRoomRead(ctx context.Context, roomID, readerID uuid.UUID, upToSeq int64, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for i := range r.messages {
		m := &r.messages[i]
		if upToSeq > 0 && m.Seq > upToSeq {
			continue
		}
		if m.RoomID == roomID && m.SenderID != readerID && m.Status != chat.MessageStatusRead {
			m.Status = chat.MessageStatusRead
			m.ReadAt = sql.NullTime{Time: at, Valid: true}
			n++
		}
	}
	return n, nil
}

func (r *fakeMessageRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.messages {
		if m.ReceiverID == userID && m.Status != chat.MessageStatusRead {
			n++
		}
	}
	return n, nil
}

func (r *fakeMessageRepo) CountUnreadInRoom(ctx context.Context, roomID, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.messages {
		if m.RoomID == roomID && m.ReceiverID == userID && m.Status != chat.MessageStatusRead {
			n++
		}
	}
	return n, nil
}

func (r *fakeMessageRepo) stored(id uuid.UUID) chat.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id {
			return m
		}
	}
	return chat.Message{}
}

type fakeNotificationRepo struct {
	mu            sync.Mutex
	items         map[uuid.UUID]*notification.Notification
	order         []uuid.UUID
	outbox        []outbox.OutboxEvent
	statusUpdates int
	getByIDsErr   error
	lastCutoff    time.Time
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{items: make(map[uuid.UUID]*notification.Notification)}
}

func (r *fakeNotificationRepo) Create(ctx context.Context, n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	cp := *n
	r.items[n.ID] = &cp
	r.order = append(r.order, n.ID)
	return nil
}

func (r *fakeNotificationRepo) CreateBatch(ctx context.Context, ns []notification.Notification, ev *outbox.OutboxEvent) error {
	for i := range ns {
		if err := r.Create(ctx, &ns[i]); err != nil {
			return err
		}
	}
	r.mu.Lock()
	r.outbox = append(r.outbox, *ev)
	r.mu.Unlock()
	return nil
}

func (r *fakeNotificationRepo) GetByID(ctx context.Context, id uuid.UUID) (notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok {
		return notification.Notification{}, petaverse_errors.ErrNotFound
	}
	return *n, nil
}

func (r *fakeNotificationRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]notification.Notification, error) {
	if r.getByIDsErr != nil {
		return nil, r.getByIDsErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []notification.Notification
	for _, id := range ids {
		if n, ok := r.items[id]; ok {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (r *fakeNotificationRepo) userItems(userID uuid.UUID, unreadOnly bool) []notification.Notification {
	var out []notification.Notification
	for i := len(r.order) - 1; i >= 0; i-- {
		n, ok := r.items[r.order[i]]
		if !ok || n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, *n)
	}
	return out
}

func (r *fakeNotificationRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]notification.Notification, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.userItems(userID, false)
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (r *fakeNotificationRepo) ListUnread(ctx context.Context, userID uuid.UUID) ([]notification.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.userItems(userID, true), nil
}

func (r *fakeNotificationRepo) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.userItems(userID, true))), nil
}

func (r *fakeNotificationRepo) MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok || n.UserID != userID || n.IsRead {
		return false, nil
	}
	n.IsRead = true
	n.ReadAt = sql.NullTime{Time: at, Valid: true}
	return true, nil
}

func (r *fakeNotificationRepo) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, n := range r.items {
		if n.UserID == userID && !n.IsRead {
			n.IsRead = true
			n.ReadAt = sql.NullTime{Time: at, Valid: true}
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) UpdateDeliveryStatus(ctx context.Context, id uuid.UUID, status notification.DeliveryStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok || !n.DeliveryStatus.CanTransition(status) {
		return false, nil
	}
	n.DeliveryStatus = status
	r.statusUpdates++
	return true, nil
}

func (r *fakeNotificationRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.items[id]
	if !ok || n.UserID != userID {
		return petaverse_errors.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *fakeNotificationRepo) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastCutoff = cutoff
	var count int64
	for id, n := range r.items {
		if n.IsRead && n.CreatedAt.Before(cutoff) {
			delete(r.items, id)
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) outboxEvents() []outbox.OutboxEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]outbox.OutboxEvent(nil), r.outbox...)
}

func (r *fakeNotificationRepo) status(id uuid.UUID) notification.DeliveryStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.items[id]; ok {
		return n.DeliveryStatus
	}
	return ""
}

type fakeDirectory struct {
	mu         sync.Mutex
	owners     map[uuid.UUID]uuid.UUID
	contacts   map[uuid.UUID]user.Contact
	contactErr error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		owners:   make(map[uuid.UUID]uuid.UUID),
		contacts: make(map[uuid.UUID]user.Contact),
	}
}

func (d *fakeDirectory) addUser(email string) uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := uuid.New()
	d.contacts[id] = user.Contact{UserID: id, Email: email, DisplayName: "user"}
	return id
}

func (d *fakeDirectory) addListing(ownerID uuid.UUID) uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := uuid.New()
	d.owners[id] = ownerID
	return id
}

func (d *fakeDirectory) UserExists(ctx context.Context, userID uuid.UUID) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.contacts[userID]
	return ok, nil
}

func (d *fakeDirectory) ListingOwner(ctx context.Context, listingID uuid.UUID) (uuid.UUID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	owner, ok := d.owners[listingID]
	if !ok {
		return uuid.Nil, petaverse_errors.ErrNotFound
	}
	return owner, nil
}

func (d *fakeDirectory) Contact(ctx context.Context, userID uuid.UUID) (user.Contact, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.contactErr != nil {
		return user.Contact{}, d.contactErr
	}
	c, ok := d.contacts[userID]
	if !ok {
		return user.Contact{}, petaverse_errors.ErrNotFound
	}
	return c, nil
}

type pushed struct {
	userID uuid.UUID
	env    events.Envelope
}

type broadcasted struct {
	roomID uuid.UUID
	env    events.Envelope
}

type fakeRealtime struct {
	mu         sync.Mutex
	pushes     []pushed
	broadcasts []broadcasted
	pushErr    error
	panicFor   uuid.UUID
}

func (r *fakeRealtime) Push(ctx context.Context, userID uuid.UUID, env events.Envelope) error {
	if r.panicFor != uuid.Nil && userID == r.panicFor {
		panic("socket exploded")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pushErr != nil {
		return r.pushErr
	}
	r.pushes = append(r.pushes, pushed{userID: userID, env: env})
	return nil
}

func (r *fakeRealtime) Broadcast(ctx context.Context, roomID uuid.UUID, env events.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = append(r.broadcasts, broadcasted{roomID: roomID, env: env})
	return nil
}

func (r *fakeRealtime) pushedTo(userID uuid.UUID, eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, p := range r.pushes {
		if p.userID == userID && p.env.EventType == eventType {
			n++
		}
	}
	return n
}

func (r *fakeRealtime) broadcastCount(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.broadcasts {
		if b.env.EventType == eventType {
			n++
		}
	}
	return n
}

type fakePresence struct {
	mu     sync.Mutex
	online map[uuid.UUID]bool
	err    error
	allOn  bool
}

func (p *fakePresence) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return false, p.err
	}
	return p.allOn || p.online[userID], nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to)
	return nil
}

var errBoom = errors.New("boom")

// harness wires every service against in-memory fakes. Users start online and
// email is disabled unless a test sets a mailer.
type harness struct {
	rooms         *fakeRoomRepo
	messages      *fakeMessageRepo
	notifications *fakeNotificationRepo
	directory     *fakeDirectory
	realtime      *fakeRealtime
	presence      *fakePresence

	dispatcher *DeliveryDispatcher
	reads      *ReadTracker
	notifier   *NotificationService
	manager    *ChatRoomManager
	store      *MessageStore
}

type harnessOption func(*harnessConfig)

type harnessConfig struct {
	mailer          Mailer
	notifyOnMessage bool
}

func withMailer(m Mailer) harnessOption {
	return func(c *harnessConfig) { c.mailer = m }
}

func withMessageNotifications() harnessOption {
	return func(c *harnessConfig) { c.notifyOnMessage = true }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	cfg := harnessConfig{}
	for _, o := range opts {
		o(&cfg)
	}

	h := &harness{
		rooms:         newFakeRoomRepo(),
		notifications: newFakeNotificationRepo(),
		directory:     newFakeDirectory(),
		realtime:      &fakeRealtime{},
		presence:      &fakePresence{online: make(map[uuid.UUID]bool), allOn: true},
	}
	h.messages = newFakeMessageRepo(h.rooms)

	access := proxy.NewAccessControl(h.rooms, h.notifications)
	h.dispatcher = NewDeliveryDispatcher(h.realtime, h.presence, cfg.mailer, h.directory, h.notifications, DispatcherConfig{}, nil)
	h.reads = NewReadTracker(h.messages, h.notifications, access, h.dispatcher, nil)
	h.notifier = NewNotificationService(h.notifications, h.directory, access, h.reads, h.dispatcher, nil)
	h.manager = NewChatRoomManager(h.rooms, h.messages, h.directory, access, h.dispatcher, nil)
	h.store = NewMessageStore(h.messages, access, h.reads, h.dispatcher, h.notifier, MessageStoreConfig{NotifyOnMessage: cfg.notifyOnMessage}, nil)
	return h
}

// newRoom creates a listing owned by a fresh user and a room with a fresh buyer.
func (h *harness) newRoom(t *testing.T) (room chat.ChatRoom, ownerID, buyerID uuid.UUID) {
	t.Helper()
	ownerID = h.directory.addUser("owner@example.com")
	buyerID = h.directory.addUser("buyer@example.com")
	listingID := h.directory.addListing(ownerID)
	summary, err := h.manager.CreateOrGet(context.Background(), listingID, buyerID, buyerID)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	return summary.Room, ownerID, buyerID
}
