package notifications

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/BearBump/FabOrders/internal/broker/messages"
	"github.com/BearBump/FabOrders/internal/integrations/whatsapp"
	"github.com/BearBump/FabOrders/internal/logging"
	"github.com/BearBump/FabOrders/internal/models"
)

// Message is a rendered notification ready for one channel.
type Message struct {
	User      *models.User
	Template  *models.NotificationTemplate
	Subject   string
	Body      string
	Variables Variables
	Type      string
}

type Dispatcher interface {
	Channel() models.Channel
	Dispatch(ctx context.Context, msg Message) Result
}

func skippedNoContact(ch models.Channel) Result {
	return Result{Outcome: OutcomeSkipped, Channel: ch, Reason: "recipient has no " + contactName(ch)}
}

func contactName(ch models.Channel) string {
	if ch == models.ChannelEmail {
		return "email"
	}
	return "phone"
}

// --- system ---

type SystemDispatcher struct {
	store NotificationStore
}

func NewSystemDispatcher(store NotificationStore) *SystemDispatcher {
	return &SystemDispatcher{store: store}
}

func (d *SystemDispatcher) Channel() models.Channel { return models.ChannelSystem }

func (d *SystemDispatcher) Dispatch(ctx context.Context, msg Message) Result {
	title := msg.Subject
	if title == "" {
		title = msg.Template.Code
	}
	rec, err := d.store.CreateNotification(ctx, &models.NotificationRecord{
		UserID:  msg.User.ID,
		Title:   title,
		Message: msg.Body,
		Type:    msg.Type,
	})
	if err != nil {
		return Result{Outcome: OutcomeFailed, Channel: models.ChannelSystem, Reason: "store notification", Err: err}
	}
	return Result{Outcome: OutcomeDelivered, Channel: models.ChannelSystem, MessageID: strconv.FormatUint(rec.ID, 10)}
}

// --- email ---

type Publisher interface {
	PublishJSON(ctx context.Context, topic, key string, v any) error
}

// EmailDispatcher кладёт письмо в топик почтового релея; SMTP живёт вне сервиса.
type EmailDispatcher struct {
	pub   Publisher
	topic string
	clock func() time.Time
}

func NewEmailDispatcher(pub Publisher, topic string) *EmailDispatcher {
	return &EmailDispatcher{pub: pub, topic: topic, clock: time.Now}
}

func (d *EmailDispatcher) Channel() models.Channel { return models.ChannelEmail }

func (d *EmailDispatcher) Dispatch(ctx context.Context, msg Message) Result {
	to := msg.User.ContactFor(models.ChannelEmail)
	if to == "" {
		return skippedNoContact(models.ChannelEmail)
	}
	ev := messages.EmailRequested{
		MessageID: uuid.NewString(),
		UserID:    msg.User.ID,
		To:        to,
		Subject:   msg.Subject,
		Body:      msg.Body,
		Template:  msg.Template.Code,
		CreatedAt: d.clock().UTC(),
	}
	if err := d.pub.PublishJSON(ctx, d.topic, strconv.FormatUint(msg.User.ID, 10), ev); err != nil {
		return Result{Outcome: OutcomeFailed, Channel: models.ChannelEmail, Reason: "publish email", Err: err}
	}
	return Result{Outcome: OutcomeDelivered, Channel: models.ChannelEmail, MessageID: ev.MessageID}
}

// --- sms ---

// SMSDispatcher: заглушка: SMS-провайдера пока нет, только пишем в лог.
type SMSDispatcher struct {
	log *zap.Logger
}

func NewSMSDispatcher(log *zap.Logger) *SMSDispatcher {
	return &SMSDispatcher{log: logging.Or(log)}
}

func (d *SMSDispatcher) Channel() models.Channel { return models.ChannelSMS }

func (d *SMSDispatcher) Dispatch(_ context.Context, msg Message) Result {
	to := msg.User.ContactFor(models.ChannelSMS)
	if to == "" {
		return skippedNoContact(models.ChannelSMS)
	}
	d.log.Info("sms send (stub)",
		zap.Uint64("user_id", msg.User.ID),
		zap.String("to", whatsapp.NormalizePhone(to)),
		zap.Int("body_len", len(msg.Body)),
	)
	return Result{Outcome: OutcomeDelivered, Channel: models.ChannelSMS, Reason: "stub"}
}

// --- whatsapp ---

type WhatsAppSender interface {
	SendText(ctx context.Context, to, body string) (whatsapp.SendResult, error)
	SendTemplate(ctx context.Context, to string, tpl whatsapp.Template) (whatsapp.SendResult, error)
}

type RateLimiter interface {
	AllowPerMinute(ctx context.Context, name string, limit int64, now time.Time) (bool, error)
}

type WhatsAppDispatcher struct {
	sender          WhatsAppSender
	limiter         RateLimiter
	limitPerMinute  int64
	defaultLanguage string
	log             *zap.Logger
	clock           func() time.Time
}

func NewWhatsAppDispatcher(sender WhatsAppSender, defaultLanguage string, log *zap.Logger) *WhatsAppDispatcher {
	if defaultLanguage == "" {
		defaultLanguage = "az"
	}
	return &WhatsAppDispatcher{
		sender:          sender,
		defaultLanguage: defaultLanguage,
		log:             logging.Or(log),
		clock:           time.Now,
	}
}

// WithRateLimit включает поминутный лимит отправок. limit <= 0: без лимита.
func (d *WhatsAppDispatcher) WithRateLimit(l RateLimiter, limitPerMinute int64) *WhatsAppDispatcher {
	d.limiter = l
	d.limitPerMinute = limitPerMinute
	return d
}

func (d *WhatsAppDispatcher) Channel() models.Channel { return models.ChannelWhatsApp }

func (d *WhatsAppDispatcher) Dispatch(ctx context.Context, msg Message) Result {
	to := msg.User.ContactFor(models.ChannelWhatsApp)
	if to == "" {
		return skippedNoContact(models.ChannelWhatsApp)
	}

	if d.limiter != nil && d.limitPerMinute > 0 {
		ok, err := d.limiter.AllowPerMinute(ctx, "whatsapp", d.limitPerMinute, d.clock())
		switch {
		case err != nil:
			// лимитер недоступен: отправляем без лимита
			d.log.Warn("whatsapp rate limiter unavailable", zap.Error(err))
		case !ok:
			return Result{
				Outcome: OutcomeFailed,
				Channel: models.ChannelWhatsApp,
				Reason:  "rate limit exceeded",
				Err:     ErrRateLimited,
			}
		}
	}

	var (
		res whatsapp.SendResult
		err error
	)
	if name := msg.Template.ProviderTemplate; name != "" {
		lang := msg.Template.Language
		if lang == "" {
			lang = d.defaultLanguage
		}
		res, err = d.sender.SendTemplate(ctx, to, whatsapp.Template{
			Name:     name,
			Language: lang,
			Params:   msg.Variables.Values(),
		})
	} else {
		res, err = d.sender.SendText(ctx, to, msg.Body)
	}
	if err != nil {
		return Result{Outcome: OutcomeFailed, Channel: models.ChannelWhatsApp, Reason: whatsAppReason(err), Err: err}
	}
	return Result{Outcome: OutcomeDelivered, Channel: models.ChannelWhatsApp, MessageID: res.MessageID}
}

func whatsAppReason(err error) string {
	var apiErr *whatsapp.APIError
	switch {
	case errors.As(err, &apiErr):
		return fmt.Sprintf("api error: http %d code %d: %s", apiErr.StatusCode, apiErr.Code, apiErr.Message)
	case whatsapp.IsTransportError(err):
		return "transport error: " + err.Error()
	}
	return err.Error()
}
