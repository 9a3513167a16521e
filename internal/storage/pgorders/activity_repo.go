package pgorders

import (
	"context"

	"github.com/pkg/errors"

	"github.com/BearBump/FabOrders/internal/models"
)

// AppendActivity реализует activitylog.Sink.
func (s *Storage) AppendActivity(ctx context.Context, e models.ActivityEntry) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO activity_logs (actor_id, action_type, description, created_at)
VALUES ($1,$2,$3,$4)
`, e.ActorID, e.ActionType, e.Description, e.CreatedAt.UTC())
	return errors.Wrap(err, "insert activity")
}

func (s *Storage) ListActivity(ctx context.Context, actionType string, limit int) ([]models.ActivityEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
SELECT id, actor_id, action_type, description, created_at
FROM activity_logs
WHERE $1::text = '' OR action_type = $1
ORDER BY id DESC
LIMIT $2
`, actionType, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select activity")
	}
	defer rows.Close()

	var out []models.ActivityEntry
	for rows.Next() {
		var e models.ActivityEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActionType, &e.Description, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan activity")
		}
		out = append(out, e)
	}
	return out, errors.Wrap(rows.Err(), "rows")
}
