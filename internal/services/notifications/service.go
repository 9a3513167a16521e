// Package notifications resolves templates, renders them and dispatches the
// result to the system inbox, email relay, SMS and WhatsApp.
package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/BearBump/FabOrders/internal/activitylog"
	"github.com/BearBump/FabOrders/internal/integrations/whatsapp"
	"github.com/BearBump/FabOrders/internal/logging"
	"github.com/BearBump/FabOrders/internal/models"
)

var (
	ErrUnknownChannel = errors.New("unknown notification channel")
	ErrRateLimited    = errors.New("whatsapp rate limit exceeded")
)

type Outcome string

const (
	OutcomeDelivered Outcome = "delivered"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeFailed    Outcome = "failed"
)

type Result struct {
	Outcome   Outcome
	Channel   models.Channel
	Reason    string
	MessageID string
	Err       error
}

type Request struct {
	UserID       uint64
	TemplateCode string
	Variables    Variables
	Channel      models.Channel
	// ActorID goes to the activity log; 0 is the system.
	ActorID uint64
}

type UserStore interface {
	GetUserByID(ctx context.Context, id uint64) (*models.User, error)
}

type TemplateStore interface {
	GetTemplate(ctx context.Context, code string, channel models.Channel) (*models.NotificationTemplate, error)
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *models.NotificationRecord) (*models.NotificationRecord, error)
	MarkRead(ctx context.Context, userID, id uint64, at time.Time) error
	MarkAllRead(ctx context.Context, userID uint64, at time.Time) (int64, error)
	ListUnread(ctx context.Context, userID uint64, limit int) ([]*models.NotificationRecord, error)
}

type OrderReader interface {
	GetByID(ctx context.Context, id uint64) (*models.Order, error)
}

type ActivityRecorder interface {
	Record(ctx context.Context, actorID uint64, actionType, description string)
}

type Service struct {
	orders    OrderReader
	users     UserStore
	templates TemplateStore
	inbox     NotificationStore
	activity  ActivityRecorder
	log       *zap.Logger
	clock     func() time.Time

	dispatchers map[models.Channel]Dispatcher
}

func NewService(
	orders OrderReader,
	users UserStore,
	templates TemplateStore,
	inbox NotificationStore,
	activity ActivityRecorder,
	log *zap.Logger,
	dispatchers ...Dispatcher,
) *Service {
	s := &Service{
		orders:      orders,
		users:       users,
		templates:   templates,
		inbox:       inbox,
		activity:    activity,
		log:         logging.Or(log),
		clock:       time.Now,
		dispatchers: make(map[models.Channel]Dispatcher, len(dispatchers)+1),
	}
	s.dispatchers[models.ChannelSystem] = NewSystemDispatcher(inbox)
	for _, d := range dispatchers {
		s.dispatchers[d.Channel()] = d
	}
	return s
}

func (s *Service) WithClock(clock func() time.Time) *Service {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// ChannelEnabled reports whether a dispatcher is registered for ch.
func (s *Service) ChannelEnabled(ch models.Channel) bool {
	_, ok := s.dispatchers[ch]
	return ok
}

// Notify sends one templated notification. The error is non-nil only for an
// unknown user, an unknown channel, a missing template or a failed lookup;
// channel failures are reported through Result.
func (s *Service) Notify(ctx context.Context, req Request) (Result, error) {
	if !req.Channel.Valid() {
		return Result{Outcome: OutcomeSkipped, Channel: req.Channel, Reason: "unknown channel"},
			errors.Wrapf(ErrUnknownChannel, "%q", req.Channel)
	}

	user, err := s.users.GetUserByID(ctx, req.UserID)
	if err != nil {
		return Result{Outcome: OutcomeFailed, Channel: req.Channel, Reason: "user lookup", Err: err}, err
	}

	tpl, err := s.templates.GetTemplate(ctx, req.TemplateCode, req.Channel)
	if err != nil {
		res := Result{Outcome: OutcomeSkipped, Channel: req.Channel, Reason: "template not found", Err: err}
		if !errors.Is(err, models.ErrTemplateNotFound) {
			res.Outcome, res.Reason = OutcomeFailed, "template lookup"
		}
		s.log.Warn("notification template unavailable",
			zap.String("template", req.TemplateCode),
			zap.String("channel", string(req.Channel)),
			zap.Error(err),
		)
		s.recordOutcome(ctx, req.ActorID, user.ID, req.TemplateCode, res)
		return res, err
	}

	res := s.deliver(ctx, req.ActorID, user, tpl, req.Variables, req.TemplateCode)
	return res, nil
}

func (s *Service) deliver(ctx context.Context, actorID uint64, user *models.User, tpl *models.NotificationTemplate, vars Variables, notifType string) Result {
	d, ok := s.dispatchers[tpl.Channel]
	if !ok {
		res := Result{Outcome: OutcomeSkipped, Channel: tpl.Channel, Reason: "channel disabled"}
		s.recordOutcome(ctx, actorID, user.ID, tpl.Code, res)
		return res
	}

	res := d.Dispatch(ctx, Message{
		User:      user,
		Template:  tpl,
		Subject:   Render(tpl.Subject, vars),
		Body:      Render(tpl.Body, vars),
		Variables: vars,
		Type:      notifType,
	})

	fields := []zap.Field{
		zap.Uint64("user_id", user.ID),
		zap.String("template", tpl.Code),
		zap.String("channel", string(res.Channel)),
		zap.String("outcome", string(res.Outcome)),
	}
	switch res.Outcome {
	case OutcomeFailed:
		s.log.Warn("notification failed", append(fields, zap.String("reason", res.Reason), zap.Error(res.Err))...)
	case OutcomeSkipped:
		s.log.Info("notification skipped", append(fields, zap.String("reason", res.Reason))...)
	default:
		s.log.Debug("notification delivered", fields...)
	}
	s.recordOutcome(ctx, actorID, user.ID, tpl.Code, res)
	return res
}

// recordOutcome пишет ровно одну запись activity log на одну попытку отправки.
func (s *Service) recordOutcome(ctx context.Context, actorID, userID uint64, code string, res Result) {
	if s.activity == nil {
		return
	}
	desc := fmt.Sprintf("user=%d channel=%s template=%s outcome=%s", userID, res.Channel, code, res.Outcome)
	if res.Reason != "" {
		desc += " reason=" + res.Reason
	}
	if res.MessageID != "" {
		desc += " id=" + res.MessageID
	}
	s.activity.Record(ctx, actorID, activityAction(res), desc)
}

func activityAction(res Result) string {
	if res.Channel == models.ChannelWhatsApp {
		switch res.Outcome {
		case OutcomeDelivered:
			return activitylog.ActionWhatsAppSent
		case OutcomeSkipped:
			return activitylog.ActionWhatsAppSkipped
		}
		if whatsapp.IsTransportError(res.Err) {
			return activitylog.ActionWhatsAppTransportError
		}
		return activitylog.ActionWhatsAppFailed
	}
	switch res.Outcome {
	case OutcomeDelivered:
		return activitylog.ActionNotificationSent
	case OutcomeSkipped:
		return activitylog.ActionNotificationSkip
	}
	return activitylog.ActionNotificationFailed
}
