package repository

import (
	"context"
	"time"

	"petaverse-chat/internal/domain/notification"
	"petaverse-chat/internal/domain/outbox"

	"github.com/google/uuid"
)

const notificationColumns = `id, user_id, title, body, type, action_ref, is_read, delivery_status, created_at, read_at`

type PostgresNotificationRepository struct {
	db DBTX
}

func NewNotificationRepository(db DBTX) NotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

func scanNotification(row rowScanner, n *notification.Notification) error {
	return row.Scan(
		&n.ID,
		&n.UserID,
		&n.Title,
		&n.Body,
		&n.Type,
		&n.ActionRef,
		&n.IsRead,
		&n.DeliveryStatus,
		&n.CreatedAt,
		&n.ReadAt,
	)
}

func insertNotification(ctx context.Context, db DBTX, n *notification.Notification) error {
	return db.QueryRowContext(ctx, `
        INSERT INTO notifications (id, user_id, title, body, type, action_ref, is_read, delivery_status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING created_at
    `,
		n.ID,
		n.UserID,
		n.Title,
		n.Body,
		string(n.Type),
		n.ActionRef,
		n.IsRead,
		string(n.DeliveryStatus),
	).Scan(&n.CreatedAt)
}

func (r *PostgresNotificationRepository) Create(ctx context.Context, n *notification.Notification) error {
	return translate(insertNotification(ctx, r.db, n))
}

func (r *PostgresNotificationRepository) CreateBatch(ctx context.Context, ns []notification.Notification, ev *outbox.OutboxEvent) error {
	return WithTx(ctx, r.db, func(tx DBTX) error {
		for i := range ns {
			if err := insertNotification(ctx, tx, &ns[i]); err != nil {
				return translate(err)
			}
		}
		if ev == nil {
			return nil
		}
		return insertOutboxEvent(ctx, tx, ev)
	})
}

func (r *PostgresNotificationRepository) GetByID(ctx context.Context, id uuid.UUID) (notification.Notification, error) {
	var n notification.Notification
	row := r.db.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id)
	if err := scanNotification(row, &n); err != nil {
		return notification.Notification{}, translate(err)
	}
	return n, nil
}

func (r *PostgresNotificationRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]notification.Notification, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return r.query(ctx, `
        SELECT `+notificationColumns+`
        FROM notifications
        WHERE id IN (`+buildPlaceholders(1, len(ids))+`)
        ORDER BY created_at ASC
    `, args...)
}

func (r *PostgresNotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]notification.Notification, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}
	ns, err := r.query(ctx, `
        SELECT `+notificationColumns+`
        FROM notifications
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3
    `, userID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return ns, total, nil
}

func (r *PostgresNotificationRepository) ListUnread(ctx context.Context, userID uuid.UUID) ([]notification.Notification, error) {
	return r.query(ctx, `
        SELECT `+notificationColumns+`
        FROM notifications
        WHERE user_id = $1 AND is_read = FALSE
        ORDER BY created_at DESC
    `, userID)
}

func (r *PostgresNotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
        SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = FALSE
    `, userID).Scan(&n)
	return n, err
}

func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
        UPDATE notifications
        SET is_read = TRUE, read_at = $3
        WHERE id = $1 AND user_id = $2 AND is_read = FALSE
    `, id, userID, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *PostgresNotificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
        UPDATE notifications
        SET is_read = TRUE, read_at = $2
        WHERE user_id = $1 AND is_read = FALSE
    `, userID, at)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresNotificationRepository) UpdateDeliveryStatus(ctx context.Context, id uuid.UUID, status notification.DeliveryStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
        UPDATE notifications
        SET delivery_status = $2
        WHERE id = $1 AND delivery_status = $3
    `, id, string(status), string(notification.DeliveryStatusPending))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *PostgresNotificationRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *PostgresNotificationRepository) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
        DELETE FROM notifications WHERE is_read = TRUE AND created_at < $1
    `, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PostgresNotificationRepository) query(ctx context.Context, q string, args ...interface{}) ([]notification.Notification, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []notification.Notification
	for rows.Next() {
		var n notification.Notification
		if err := scanNotification(rows, &n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
