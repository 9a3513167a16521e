package messages

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatusChanged публикуется после коммита перехода статуса.
// Консьюмер (fab-notifier) по нему рассылает уведомления.
type OrderStatusChanged struct {
	EventID     string    `json:"event_id"`
	OrderID     uint64    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	ActorID     uint64    `json:"actor_id"`
	ChangedAt   time.Time `json:"changed_at"`
}

func NewOrderStatusChanged(orderID uint64, orderNumber, from, to string, actorID uint64, at time.Time) OrderStatusChanged {
	return OrderStatusChanged{
		EventID:     uuid.NewString(),
		OrderID:     orderID,
		OrderNumber: orderNumber,
		From:        from,
		To:          to,
		ActorID:     actorID,
		ChangedAt:   at.UTC(),
	}
}
