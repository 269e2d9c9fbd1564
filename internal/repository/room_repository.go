package repository

import (
	"context"

	"petaverse-chat/internal/domain/chat"

	"github.com/google/uuid"
)

const roomColumns = `id, listing_id, owner_id, counterpart_id, is_active, last_message_summary, last_message_time, last_seq, created_at`

type PostgresRoomRepository struct {
	db DBTX
}

func NewRoomRepository(db DBTX) RoomRepository {
	return &PostgresRoomRepository{db: db}
}

func scanRoom(row rowScanner, r *chat.ChatRoom, extra ...interface{}) error {
	dest := []interface{}{
		&r.ID,
		&r.ListingID,
		&r.OwnerID,
		&r.CounterpartID,
		&r.IsActive,
		&r.LastMessageSummary,
		&r.LastMessageTime,
		&r.LastSeq,
		&r.CreatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

func (r *PostgresRoomRepository) Create(ctx context.Context, room *chat.ChatRoom) error {
	low, high := chat.PairKey(room.OwnerID, room.CounterpartID)
	err := r.db.QueryRowContext(ctx, `
        INSERT INTO chat_rooms (id, listing_id, owner_id, counterpart_id, participant_low, participant_high, is_active, last_message_summary, last_seq)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,0)
        RETURNING created_at
    `,
		room.ID,
		room.ListingID,
		room.OwnerID,
		room.CounterpartID,
		low,
		high,
		room.IsActive,
		room.LastMessageSummary,
	).Scan(&room.CreatedAt)
	return translate(err)
}

func (r *PostgresRoomRepository) GetByID(ctx context.Context, id uuid.UUID) (chat.ChatRoom, error) {
	var room chat.ChatRoom
	row := r.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM chat_rooms WHERE id = $1`, id)
	if err := scanRoom(row, &room); err != nil {
		return chat.ChatRoom{}, translate(err)
	}
	return room, nil
}

func (r *PostgresRoomRepository) GetByPair(ctx context.Context, listingID, a, b uuid.UUID) (chat.ChatRoom, error) {
	low, high := chat.PairKey(a, b)
	var room chat.ChatRoom
	row := r.db.QueryRowContext(ctx, `
        SELECT `+roomColumns+`
        FROM chat_rooms
        WHERE listing_id = $1 AND participant_low = $2 AND participant_high = $3
    `, listingID, low, high)
	if err := scanRoom(row, &room); err != nil {
		return chat.ChatRoom{}, translate(err)
	}
	return room, nil
}

func (r *PostgresRoomRepository) ListForUser(ctx context.Context, userID uuid.UUID) ([]chat.RoomSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT r.id, r.listing_id, r.owner_id, r.counterpart_id, r.is_active, r.last_message_summary,
               r.last_message_time, r.last_seq, r.created_at,
               (SELECT COUNT(*) FROM messages m
                 WHERE m.room_id = r.id AND m.receiver_id = $1 AND m.status <> 'READ') AS unread_count
        FROM chat_rooms r
        WHERE r.is_active = TRUE AND (r.owner_id = $1 OR r.counterpart_id = $1)
        ORDER BY r.last_message_time DESC NULLS LAST, r.created_at DESC
    `, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []chat.RoomSummary
	for rows.Next() {
		var s chat.RoomSummary
		if err := scanRoom(rows, &s.Room, &s.UnreadCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
