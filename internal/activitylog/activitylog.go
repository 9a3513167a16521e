// Package activitylog records audit entries for operator and notification actions.
// Record never returns an error and never panics: sink failures go to the
// process-wide zap logger instead.
package activitylog

import (
	"context"
	"fmt"
	"time"

	"github.com/BearBump/FabOrders/internal/models"
	"go.uber.org/zap"
)

const (
	ActionOrderStatusChange  = "order_status_change"
	ActionOrderDelivered     = "order_delivered"
	ActionNotificationSent   = "notification_sent"
	ActionNotificationFailed = "notification_failed"
	ActionNotificationSkip   = "notification_skipped"

	ActionWhatsAppSent           = "whatsapp_sent"
	ActionWhatsAppFailed         = "whatsapp_failed"
	ActionWhatsAppTransportError = "whatsapp_transport_error"
	ActionWhatsAppSkipped        = "whatsapp_skipped"
)

type Sink interface {
	AppendActivity(ctx context.Context, e models.ActivityEntry) error
}

type Recorder struct {
	sink     Sink
	fallback *zap.Logger
	clock    func() time.Time
}

// New returns a recorder writing to sink. A nil fallback means zap.L().
func New(sink Sink, fallback *zap.Logger) *Recorder {
	return &Recorder{sink: sink, fallback: fallback, clock: time.Now}
}

func (r *Recorder) WithClock(clock func() time.Time) *Recorder {
	if clock != nil {
		r.clock = clock
	}
	return r
}

func (r *Recorder) Record(ctx context.Context, actorID uint64, actionType, description string) {
	if r == nil {
		return
	}
	e := models.ActivityEntry{
		ActorID:     actorID,
		ActionType:  actionType,
		Description: description,
		CreatedAt:   r.clock().UTC(),
	}
	if r.sink == nil {
		r.fallbackLog(e, nil)
		return
	}
	if err := r.append(ctx, e); err != nil {
		r.fallbackLog(e, err)
	}
}

func (r *Recorder) append(ctx context.Context, e models.ActivityEntry) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("activity sink panic: %v", p)
		}
	}()
	return r.sink.AppendActivity(ctx, e)
}

func (r *Recorder) fallbackLog(e models.ActivityEntry, cause error) {
	l := r.fallback
	if l == nil {
		l = zap.L()
	}
	fields := []zap.Field{
		zap.Uint64("actor_id", e.ActorID),
		zap.String("action", e.ActionType),
		zap.String("description", e.Description),
		zap.Time("at", e.CreatedAt),
	}
	if cause != nil {
		fields = append(fields, zap.Error(cause))
		l.Warn("activity log sink unavailable", fields...)
		return
	}
	l.Info("activity", fields...)
}
