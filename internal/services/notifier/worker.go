// Package notifier consumes order status events and runs the status
// notifications for them (the "kafka" notification mode).
package notifier

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/BearBump/FabOrders/internal/broker/messages"
	"github.com/BearBump/FabOrders/internal/logging"
	"github.com/BearBump/FabOrders/internal/models"
	"github.com/BearBump/FabOrders/internal/services/notifications"
)

type Consumer interface {
	Consume(ctx context.Context, handler func(ctx context.Context, key, value []byte) error) error
}

type StatusNotifier interface {
	SendOrderStatusLegs(ctx context.Context, orderID uint64, status models.OrderStatus, legs notifications.StatusLegs) (notifications.StatusReport, error)
}

type Worker struct {
	consumer Consumer
	notifier StatusNotifier
	log      *zap.Logger

	retryDelays []time.Duration

	startedAtUnixNano int64
	lastEventUnixNano atomic.Int64
	totalReceived     atomic.Int64
	totalProcessed    atomic.Int64
	totalInvalid      atomic.Int64
	totalErrors       atomic.Int64
	lastErrorMu       sync.Mutex
	lastError         string
}

func New(consumer Consumer, notifier StatusNotifier, log *zap.Logger) *Worker {
	return &Worker{
		consumer:          consumer,
		notifier:          notifier,
		log:               logging.Or(log),
		retryDelays:       []time.Duration{time.Second, 5 * time.Second, 15 * time.Second},
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

// WithRetryDelays задаёт паузы между повторами; пустой список: без повторов.
func (w *Worker) WithRetryDelays(delays ...time.Duration) *Worker {
	w.retryDelays = delays
	return w
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastEventAt    *time.Time `json:"lastEventAt,omitempty"`
	TotalReceived  int64      `json:"totalReceived"`
	TotalProcessed int64      `json:"totalProcessed"`
	TotalInvalid   int64      `json:"totalInvalid"`
	TotalErrors    int64      `json:"totalErrors"`
	LastError      string     `json:"lastError,omitempty"`
}

func (w *Worker) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, w.startedAtUnixNano).UTC(),
		TotalReceived:  w.totalReceived.Load(),
		TotalProcessed: w.totalProcessed.Load(),
		TotalInvalid:   w.totalInvalid.Load(),
		TotalErrors:    w.totalErrors.Load(),
	}
	if n := w.lastEventUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastEventAt = &t
	}
	w.lastErrorMu.Lock()
	st.LastError = w.lastError
	w.lastErrorMu.Unlock()
	return st
}

func (w *Worker) Run(ctx context.Context) error {
	return w.consumer.Consume(ctx, w.Handle)
}

// Handle обрабатывает одно событие. nil: offset можно коммитить.
// Битые события и исчерпанные повторы пропускаются (и считаются в статистике),
// иначе одно сообщение остановит всю партицию. Ошибка возвращается только при отмене ctx.
func (w *Worker) Handle(ctx context.Context, key, value []byte) error {
	w.totalReceived.Add(1)
	w.lastEventUnixNano.Store(time.Now().UTC().UnixNano())

	var ev messages.OrderStatusChanged
	if err := json.Unmarshal(value, &ev); err != nil {
		w.invalid(errors.Wrap(err, "decode event"), key)
		return nil
	}
	status, err := models.ParseOrderStatus(ev.To)
	if err != nil {
		w.invalid(err, key)
		return nil
	}
	if ev.OrderID == 0 {
		w.invalid(errors.New("order_id is required"), key)
		return nil
	}

	err = w.sendWithRetry(ctx, ev.OrderID, status)
	if err == nil {
		w.totalProcessed.Add(1)
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	w.totalErrors.Add(1)
	w.setLastError(err)
	w.log.Error("order status notification failed",
		zap.String("event_id", ev.EventID),
		zap.Uint64("order_id", ev.OrderID),
		zap.String("status", string(status)),
		zap.Error(err),
	)
	return nil
}

// sendWithRetry повторяет только системный канал: WhatsApp уходит не больше одного раза на событие.
func (w *Worker) sendWithRetry(ctx context.Context, orderID uint64, status models.OrderStatus) error {
	legs := notifications.AllStatusLegs
	for i := 0; ; i++ {
		rep, err := w.notifier.SendOrderStatusLegs(ctx, orderID, status, legs)
		if err == nil {
			legs = notifications.LegSystem
			err = rep.SystemErr()
		}
		if err == nil || isPermanent(err) || i >= len(w.retryDelays) {
			return err
		}
		w.log.Warn("retrying status notification",
			zap.Uint64("order_id", orderID), zap.Int("attempt", i+1), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.retryDelays[i]):
		}
	}
}

func isPermanent(err error) bool {
	return errors.Is(err, models.ErrNotFound) || errors.Is(err, models.ErrUserNotFound)
}

func (w *Worker) invalid(err error, key []byte) {
	w.totalInvalid.Add(1)
	w.setLastError(err)
	w.log.Warn("skip invalid order status event", zap.ByteString("key", key), zap.Error(err))
}

func (w *Worker) setLastError(err error) {
	w.lastErrorMu.Lock()
	w.lastError = err.Error()
	w.lastErrorMu.Unlock()
}
