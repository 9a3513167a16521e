package pgorders

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/BearBump/FabOrders/internal/models"
)

var ErrDuplicateBarcode = errors.New("barcode already exists")

const orderColumns = `
  id, barcode, order_number, status,
  total_amount, advance_payment, remaining_amount,
  processing_date, completion_date, delivery_date, delivered_by, delivery_signature,
  customer_id, seller_id, branch_id,
  created_at, updated_at`

func scanOrder(row pgx.Row) (*models.Order, error) {
	var o models.Order
	if err := row.Scan(
		&o.ID, &o.Barcode, &o.OrderNumber, &o.Status,
		&o.TotalAmount, &o.AdvancePayment, &o.RemainingAmount,
		&o.ProcessingDate, &o.CompletionDate, &o.DeliveryDate, &o.DeliveredBy, &o.DeliverySignature,
		&o.CustomerID, &o.SellerID, &o.BranchID,
		&o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, errors.Wrap(err, "scan order")
	}
	if err := o.CheckAmounts(); err != nil {
		return nil, err
	}
	return &o, nil
}

// CreateOrder заводит заказ в статусе new. В проде заказы создаёт внешний модуль продаж,
// здесь это нужно для тестов и сидов.
func (s *Storage) CreateOrder(ctx context.Context, o *models.Order) (*models.Order, error) {
	now := time.Now().UTC()
	o.RemainingAmount = o.TotalAmount.Sub(o.AdvancePayment)
	if err := o.CheckAmounts(); err != nil {
		return nil, err
	}

	row := s.db.QueryRow(ctx, `
INSERT INTO orders (
  barcode, order_number, status,
  total_amount, advance_payment, remaining_amount,
  customer_id, seller_id, branch_id,
  created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
RETURNING`+orderColumns,
		o.Barcode, o.OrderNumber, models.OrderStatusNew,
		o.TotalAmount, o.AdvancePayment, o.RemainingAmount,
		o.CustomerID, o.SellerID, o.BranchID,
		now,
	)
	created, err := scanOrder(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, errors.Wrapf(ErrDuplicateBarcode, "%q", o.Barcode)
		}
		return nil, errors.Wrap(err, "insert order")
	}
	return created, nil
}

func (s *Storage) GetByID(ctx context.Context, id uint64) (*models.Order, error) {
	var o *models.Order
	err := s.withRetry(ctx, func() error {
		var err error
		o, err = scanOrder(s.db.QueryRow(ctx, `SELECT`+orderColumns+` FROM orders WHERE id = $1`, id))
		return err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "get order %d", id)
	}
	return o, nil
}

func (s *Storage) GetByBarcode(ctx context.Context, code string) (*models.Order, error) {
	o, err := scanOrder(s.db.QueryRow(ctx, `SELECT`+orderColumns+` FROM orders WHERE barcode = $1`, code))
	if err != nil {
		return nil, errors.Wrapf(err, "get order by barcode %q", code)
	}
	return o, nil
}

func (s *Storage) BarcodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE barcode = $1)`, code).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "check barcode")
	}
	return exists, nil
}

// UpdateStatus пишет переход и строку истории в одной транзакции.
// Запись условная (status = From): если статус уже поменяли, вернётся ErrStatusConflict.
func (s *Storage) UpdateStatus(ctx context.Context, change models.StatusChange) (*models.Order, error) {
	var stamped models.Order
	change.Apply(&stamped)

	var note *string
	if change.Note != "" {
		note = &change.Note
	}

	var updated *models.Order
	err := s.withRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return errors.Wrap(err, "begin tx")
		}
		defer func() { _ = tx.Rollback(ctx) }()

		o, err := scanOrder(tx.QueryRow(ctx, `
UPDATE orders SET
  status = $3,
  processing_date = COALESCE($4, processing_date),
  completion_date = COALESCE($5, completion_date),
  delivery_date = COALESCE($6, delivery_date),
  delivered_by = COALESCE($7, delivered_by),
  delivery_signature = COALESCE($8, delivery_signature),
  updated_at = $9
WHERE id = $1 AND status = $2
RETURNING`+orderColumns,
			change.OrderID, change.From, change.To,
			stamped.ProcessingDate, stamped.CompletionDate, stamped.DeliveryDate,
			stamped.DeliveredBy, stamped.DeliverySignature,
			change.At.UTC(),
		))
		if errors.Is(err, models.ErrNotFound) {
			return s.explainMissedUpdate(ctx, tx, change)
		}
		if isForeignKeyViolation(err) {
			return errors.Wrapf(models.ErrInvalidActor, "order %d: delivered_by %d", change.OrderID, change.ActorID)
		}
		if err != nil {
			return errors.Wrap(err, "update order status")
		}

		_, err = tx.Exec(ctx, `
INSERT INTO order_status_history (order_id, from_status, to_status, actor_id, note, changed_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, change.OrderID, change.From, change.To, change.ActorID, note, change.At.UTC())
		if err != nil {
			return errors.Wrap(err, "insert status history")
		}

		if err := tx.Commit(ctx); err != nil {
			return errors.Wrap(err, "commit tx")
		}
		updated = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// explainMissedUpdate различает "заказа нет" и "статус уже другой".
func (s *Storage) explainMissedUpdate(ctx context.Context, tx pgx.Tx, change models.StatusChange) error {
	var current models.OrderStatus
	err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, change.OrderID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.Wrapf(models.ErrNotFound, "order %d", change.OrderID)
	}
	if err != nil {
		return errors.Wrap(err, "select order status")
	}
	return errors.Wrapf(models.ErrStatusConflict, "order %d: expected %s, found %s", change.OrderID, change.From, current)
}

func (s *Storage) ListStatusHistory(ctx context.Context, orderID uint64) ([]*models.StatusHistoryEntry, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, order_id, from_status, to_status, actor_id, note, changed_at
FROM order_status_history
WHERE order_id = $1
ORDER BY changed_at ASC, id ASC
`, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "select status history")
	}
	defer rows.Close()

	var out []*models.StatusHistoryEntry
	for rows.Next() {
		var e models.StatusHistoryEntry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.From, &e.To, &e.ActorID, &e.Note, &e.ChangedAt); err != nil {
			return nil, errors.Wrap(err, "scan status history")
		}
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
