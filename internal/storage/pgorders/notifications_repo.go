package pgorders

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/BearBump/FabOrders/internal/models"
)

func (s *Storage) CreateNotification(ctx context.Context, n *models.NotificationRecord) (*models.NotificationRecord, error) {
	out := *n
	if out.CreatedAt.IsZero() {
		out.CreatedAt = time.Now().UTC()
	}
	err := s.db.QueryRow(ctx, `
INSERT INTO notifications (user_id, title, message, type, created_at)
VALUES ($1,$2,$3,$4,$5)
RETURNING id
`, n.UserID, n.Title, n.Message, n.Type, out.CreatedAt).Scan(&out.ID)
	if err != nil {
		return nil, errors.Wrap(err, "insert notification")
	}
	return &out, nil
}

// MarkRead отмечает одно уведомление пользователя. Чужое уведомление = ErrNotFound.
// Повторная отметка ничего не меняет и не ошибка.
func (s *Storage) MarkRead(ctx context.Context, userID, id uint64, at time.Time) error {
	var exists bool
	err := s.db.QueryRow(ctx, `
WITH upd AS (
  UPDATE notifications SET is_read = true, read_at = $3
  WHERE id = $1 AND user_id = $2 AND NOT is_read
  RETURNING id
)
SELECT EXISTS (SELECT 1 FROM upd) OR EXISTS (SELECT 1 FROM notifications WHERE id = $1 AND user_id = $2)
`, id, userID, at.UTC()).Scan(&exists)
	if err != nil {
		return errors.Wrap(err, "mark notification read")
	}
	if !exists {
		return errors.Wrapf(models.ErrNotFound, "notification %d", id)
	}
	return nil
}

func (s *Storage) MarkAllRead(ctx context.Context, userID uint64, at time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
UPDATE notifications SET is_read = true, read_at = $2
WHERE user_id = $1 AND NOT is_read
`, userID, at.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "mark all notifications read")
	}
	return tag.RowsAffected(), nil
}

func (s *Storage) ListUnread(ctx context.Context, userID uint64, limit int) ([]*models.NotificationRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
SELECT id, user_id, title, message, type, is_read, read_at, created_at
FROM notifications
WHERE user_id = $1 AND NOT is_read
ORDER BY created_at DESC, id DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select unread notifications")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.NotificationRecord, error) {
		var n models.NotificationRecord
		err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.IsRead, &n.ReadAt, &n.CreatedAt)
		return &n, errors.Wrap(err, "scan notification")
	})
}
