package lifecycle

import (
	"context"
	"strconv"
	"time"

	"github.com/BearBump/FabOrders/internal/broker/messages"
	"github.com/BearBump/FabOrders/internal/models"
)

type Publisher interface {
	PublishJSON(ctx context.Context, topic, key string, v any) error
}

// EventNotifier публикует order.status_changed в Kafka вместо отправки уведомлений
// в процессе; рассылкой занимается fab-notifier.
type EventNotifier struct {
	pub   Publisher
	topic string
	clock func() time.Time
}

func NewEventNotifier(pub Publisher, topic string) *EventNotifier {
	return &EventNotifier{pub: pub, topic: topic, clock: time.Now}
}

func (n *EventNotifier) NotifyStatusChange(ctx context.Context, change models.StatusChange, order *models.Order) error {
	at := change.At
	if at.IsZero() {
		at = n.clock()
	}
	var number string
	if order != nil {
		number = order.OrderNumber
	}
	ev := messages.NewOrderStatusChanged(change.OrderID, number, string(change.From), string(change.To), change.ActorID, at)
	return n.pub.PublishJSON(ctx, n.topic, strconv.FormatUint(change.OrderID, 10), ev)
}

func (n *EventNotifier) SendOrderStatusNotification(ctx context.Context, orderID uint64, status models.OrderStatus) error {
	return n.NotifyStatusChange(ctx, models.StatusChange{OrderID: orderID, To: status, At: n.clock()}, nil)
}
