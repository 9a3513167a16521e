package pgorders

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/BearBump/FabOrders/internal/models"
)

func (s *Storage) ListProfileItems(ctx context.Context, orderID uint64) ([]models.ProfileItem, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, order_id, profile_type, color, width_cm, height_cm, quantity, hinge_count, total_length, total_weight
FROM profile_items
WHERE order_id = $1
ORDER BY id
`, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "select profile items")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ProfileItem, error) {
		var it models.ProfileItem
		err := row.Scan(
			&it.ID, &it.OrderID, &it.ProfileType, &it.Color,
			&it.WidthCM, &it.HeightCM, &it.Quantity, &it.HingeCount,
			&it.TotalLength, &it.TotalWeight,
		)
		return it, errors.Wrap(err, "scan profile item")
	})
}

func (s *Storage) ListGlassItems(ctx context.Context, orderID uint64) ([]models.GlassItem, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, order_id, glass_type, width_cm, height_cm, quantity, offset_cm
FROM glass_items
WHERE order_id = $1
ORDER BY id
`, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "select glass items")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.GlassItem, error) {
		var it models.GlassItem
		err := row.Scan(&it.ID, &it.OrderID, &it.GlassType, &it.WidthCM, &it.HeightCM, &it.Quantity, &it.Offset)
		return it, errors.Wrap(err, "scan glass item")
	})
}

// AddLineItems пишет позиции заказа одной транзакцией.
func (s *Storage) AddLineItems(ctx context.Context, orderID uint64, profiles []models.ProfileItem, glass []models.GlassItem) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, p := range profiles {
		batch.Queue(`
INSERT INTO profile_items (order_id, profile_type, color, width_cm, height_cm, quantity, hinge_count, total_length, total_weight)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`, orderID, p.ProfileType, p.Color, p.WidthCM, p.HeightCM, p.Quantity, p.HingeCount, p.TotalLength, p.TotalWeight)
	}
	for _, g := range glass {
		batch.Queue(`
INSERT INTO glass_items (order_id, glass_type, width_cm, height_cm, quantity, offset_cm)
VALUES ($1,$2,$3,$4,$5,$6)
`, orderID, g.GlassType, g.WidthCM, g.HeightCM, g.Quantity, g.Offset)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, "insert line items")
	}

	return errors.Wrap(tx.Commit(ctx), "commit tx")
}
