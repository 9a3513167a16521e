// Package lifecycle moves orders through new -> processing -> completed -> delivered
// (or cancelled), one writer per order at a time.
package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/BearBump/FabOrders/internal/activitylog"
	"github.com/BearBump/FabOrders/internal/logging"
	"github.com/BearBump/FabOrders/internal/models"
)

const defaultNotifyTimeout = 15 * time.Second

type OrderStore interface {
	GetByID(ctx context.Context, id uint64) (*models.Order, error)
	UpdateStatus(ctx context.Context, change models.StatusChange) (*models.Order, error)
}

type StatusNotifier interface {
	SendOrderStatusNotification(ctx context.Context, orderID uint64, status models.OrderStatus) error
}

// changeNotifier is an optional upgrade of StatusNotifier for notifiers that
// want the whole change (event publishers).
type changeNotifier interface {
	NotifyStatusChange(ctx context.Context, change models.StatusChange, order *models.Order) error
}

type ActivityRecorder interface {
	Record(ctx context.Context, actorID uint64, actionType, description string)
}

type Service struct {
	store    OrderStore
	notifier StatusNotifier
	activity ActivityRecorder
	log      *zap.Logger

	clock         func() time.Time
	notifyTimeout time.Duration
	locks         *keyLock
}

func New(store OrderStore, notifier StatusNotifier, activity ActivityRecorder, log *zap.Logger) *Service {
	return &Service{
		store:         store,
		notifier:      notifier,
		activity:      activity,
		log:           logging.Or(log),
		clock:         time.Now,
		notifyTimeout: defaultNotifyTimeout,
		locks:         newKeyLock(),
	}
}

func (s *Service) WithClock(clock func() time.Time) *Service {
	if clock != nil {
		s.clock = clock
	}
	return s
}

func (s *Service) WithNotifyTimeout(d time.Duration) *Service {
	if d > 0 {
		s.notifyTimeout = d
	}
	return s
}

// RequestTransition moves the order to target. Moving to the current status is
// a no-op that writes nothing and notifies nobody.
func (s *Service) RequestTransition(ctx context.Context, orderID uint64, target models.OrderStatus, actorID uint64, note string) (*models.Order, error) {
	if _, err := models.ParseOrderStatus(string(target)); err != nil {
		return nil, err
	}
	return s.transition(ctx, transitionRequest{
		orderID: orderID,
		target:  target,
		actorID: actorID,
		note:    strings.TrimSpace(note),
	})
}

// MarkDelivered completes the hand-over of a completed order and stores the
// customer's signature.
func (s *Service) MarkDelivered(ctx context.Context, orderID, actorID uint64, signature string) (*models.Order, error) {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return nil, models.ErrEmptySignature
	}
	return s.transition(ctx, transitionRequest{
		orderID:     orderID,
		target:      models.OrderStatusDelivered,
		actorID:     actorID,
		signature:   &signature,
		requireFrom: models.OrderStatusCompleted,
	})
}

type transitionRequest struct {
	orderID   uint64
	target    models.OrderStatus
	actorID   uint64
	note      string
	signature *string

	// requireFrom, если задан,: единственный допустимый исходный статус; no-op запрещён.
	requireFrom models.OrderStatus
}

func (s *Service) transition(ctx context.Context, req transitionRequest) (*models.Order, error) {
	order, change, err := s.commit(ctx, req)
	if err != nil {
		return nil, err
	}
	if change == nil {
		return order, nil
	}

	s.record(ctx, *change)
	s.log.Info("order status changed",
		zap.Uint64("order_id", change.OrderID),
		zap.String("from", string(change.From)),
		zap.String("to", string(change.To)),
		zap.Uint64("actor_id", change.ActorID),
	)

	// лок уже отпущен, статус закоммичен
	s.notify(ctx, *change, order)
	return order, nil
}

// commit выполняется под локом заказа. change == nil означает no-op.
func (s *Service) commit(ctx context.Context, req transitionRequest) (*models.Order, *models.StatusChange, error) {
	unlock := s.locks.Lock(req.orderID)
	defer unlock()

	order, err := s.store.GetByID(ctx, req.orderID)
	if err != nil {
		return nil, nil, err
	}

	from := order.Status
	if req.requireFrom != "" && from != req.requireFrom {
		return nil, nil, errors.Wrapf(models.ErrInvalidTransition, "%s -> %s: order must be %s", from, req.target, req.requireFrom)
	}
	if from == req.target {
		return order, nil, nil
	}
	if !CanTransition(from, req.target) {
		return nil, nil, errors.Wrapf(models.ErrInvalidTransition, "%s -> %s", from, req.target)
	}
	// delivered_by ссылается на users
	if req.target == models.OrderStatusDelivered && req.actorID == 0 {
		return nil, nil, errors.Wrap(models.ErrInvalidActor, "delivery requires actor id")
	}

	change := models.StatusChange{
		OrderID:   req.orderID,
		From:      from,
		To:        req.target,
		ActorID:   req.actorID,
		Note:      req.note,
		At:        s.clock().UTC(),
		Signature: req.signature,
	}
	updated, err := s.store.UpdateStatus(ctx, change)
	if err != nil {
		return nil, nil, err
	}
	return updated, &change, nil
}

func (s *Service) record(ctx context.Context, change models.StatusChange) {
	if s.activity == nil {
		return
	}
	action := activitylog.ActionOrderStatusChange
	if change.To == models.OrderStatusDelivered {
		action = activitylog.ActionOrderDelivered
	}
	desc := fmt.Sprintf("order %d: %s -> %s", change.OrderID, change.From, change.To)
	if change.Note != "" {
		desc += ": " + change.Note
	}
	s.activity.Record(ctx, change.ActorID, action, desc)
}

// notify: best effort: ошибки только логируются, переход уже состоялся.
func (s *Service) notify(ctx context.Context, change models.StatusChange, order *models.Order) {
	if s.notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()

	var err error
	if cn, ok := s.notifier.(changeNotifier); ok {
		err = cn.NotifyStatusChange(nctx, change, order)
	} else {
		err = s.notifier.SendOrderStatusNotification(nctx, change.OrderID, change.To)
	}
	if err != nil {
		s.log.Warn("order status notification failed",
			zap.Uint64("order_id", change.OrderID),
			zap.String("status", string(change.To)),
			zap.Error(err),
		)
	}
}
