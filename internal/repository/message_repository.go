package repository

import (
	"context"
	"database/sql"
	"time"

	"petaverse-chat/internal/domain/chat"
	petaverse_errors "petaverse-chat/pkg/errors"

	"github.com/google/uuid"
)

const messageColumns = `id, room_id, sender_id, receiver_id, seq, content, type, status, created_at, read_at`

type PostgresMessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) MessageRepository {
	return &PostgresMessageRepository{db: db}
}

func scanMessage(row rowScanner, m *chat.Message) error {
	return row.Scan(
		&m.ID,
		&m.RoomID,
		&m.SenderID,
		&m.ReceiverID,
		&m.Seq,
		&m.Content,
		&m.Type,
		&m.Status,
		&m.CreatedAt,
		&m.ReadAt,
	)
}

// Append locks the room row so appends to one room serialize while other rooms
// proceed independently. created_at never goes backwards within a room and seq
// breaks ties in insertion order.
func (r *PostgresMessageRepository) Append(ctx context.Context, m *chat.Message, summary string) (chat.ChatRoom, error) {
	var room chat.ChatRoom
	err := WithTx(ctx, r.db, func(tx DBTX) error {
		room = chat.ChatRoom{ID: m.RoomID}
		err := tx.QueryRowContext(ctx, `
            SELECT listing_id, owner_id, counterpart_id, is_active, last_message_summary, last_message_time, last_seq, created_at
            FROM chat_rooms WHERE id = $1 FOR UPDATE
        `, m.RoomID).Scan(
			&room.ListingID,
			&room.OwnerID,
			&room.CounterpartID,
			&room.IsActive,
			&room.LastMessageSummary,
			&room.LastMessageTime,
			&room.LastSeq,
			&room.CreatedAt,
		)
		if err != nil {
			return translate(err)
		}
		if !room.IsActive {
			return petaverse_errors.Validation("room is inactive")
		}

		m.Seq = room.LastSeq + 1
		err = tx.QueryRowContext(ctx, `
            INSERT INTO messages (id, room_id, sender_id, receiver_id, seq, content, type, status, created_at)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8, GREATEST(clock_timestamp(), $9::timestamptz))
            RETURNING created_at
        `,
			m.ID,
			m.RoomID,
			m.SenderID,
			m.ReceiverID,
			m.Seq,
			m.Content,
			string(m.Type),
			string(m.Status),
			room.LastMessageTime,
		).Scan(&m.CreatedAt)
		if err != nil {
			return translate(err)
		}

		if _, err := tx.ExecContext(ctx, `
            UPDATE chat_rooms
            SET last_seq = $1, last_message_summary = $2, last_message_time = $3
            WHERE id = $4
        `, m.Seq, summary, m.CreatedAt, m.RoomID); err != nil {
			return err
		}

		room.LastSeq = m.Seq
		room.LastMessageSummary = summary
		room.LastMessageTime = sql.NullTime{Time: m.CreatedAt, Valid: true}
		return nil
	})
	if err != nil {
		return chat.ChatRoom{}, err
	}
	return room, nil
}

// History returns the newest limit messages older than beforeSeq (all when
// beforeSeq <= 0), oldest first.
func (r *PostgresMessageRepository) History(ctx context.Context, roomID uuid.UUID, beforeSeq int64, limit int) ([]chat.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
        SELECT `+messageColumns+` FROM (
            SELECT `+messageColumns+`
            FROM messages
            WHERE room_id = $1 AND ($2::bigint <= 0 OR seq < $2::bigint)
            ORDER BY created_at DESC, seq DESC
            LIMIT $3
        ) latest
        ORDER BY created_at ASC, seq ASC
    `, roomID, beforeSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []chat.Message
	for rows.Next() {
		var m chat.Message
		if err := scanMessage(rows, &m); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkRoomRead flips unread messages addressed to readerID in one statement.
func (r *PostgresMessageRepository) MarkRoomRead(ctx context.Context, roomID, readerID uuid.UUID, upToSeq int64, at time.Time) (int64, error) {
	query := `
        UPDATE messages
        SET status = $3, read_at = $4
        WHERE room_id = $1 AND sender_id <> $2 AND status <> $3
    `
	args := []interface{}{roomID, readerID, string(chat.MessageStatusRead), at}
	if upToSeq > 0 {
		query += ` AND seq <= $5`
		args = append(args, upToSeq)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresMessageRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND status <> $2
    `, userID, string(chat.MessageStatusRead)).Scan(&n)
	return n, err
}

func (r *PostgresMessageRepository) CountUnreadInRoom(ctx context.Context, roomID, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM messages WHERE room_id = $1 AND receiver_id = $2 AND status <> $3
    `, roomID, userID, string(chat.MessageStatusRead)).Scan(&n)
	return n, err
}
