package notifications

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/BearBump/FabOrders/internal/models"
)

const orderStatusType = "order_status"

// Текст на случай, если шаблон order_status_<status> не заведён.
var fallbackStatusTitles = map[models.OrderStatus]string{
	models.OrderStatusProcessing: "Sifariş istehsalda",
	models.OrderStatusCompleted:  "Sifariş hazırdır",
	models.OrderStatusDelivered:  "Sifariş təhvil verildi",
	models.OrderStatusCancelled:  "Sifariş ləğv edildi",
}

const fallbackStatusBody = "Hörmətli {{customer_name}}, {{order_number}} nömrəli sifarişinizin statusu: {{status}}."

func StatusTemplateCode(status models.OrderStatus) string {
	return "order_status_" + string(status)
}

type StatusReport struct {
	System   Result
	WhatsApp *Result
}

// SystemErr: nil, если системное уведомление сохранено.
func (r StatusReport) SystemErr() error {
	if r.System.Outcome == OutcomeDelivered {
		return nil
	}
	if r.System.Err != nil {
		return errors.Wrap(r.System.Err, "system notification")
	}
	return errors.Errorf("system notification %s: %s", r.System.Outcome, r.System.Reason)
}

// StatusLegs selects the channels of a status notification.
type StatusLegs uint8

const (
	LegSystem StatusLegs = 1 << iota
	LegWhatsApp

	AllStatusLegs = LegSystem | LegWhatsApp
)

// SendOrderStatusNotification notifies the order's customer about a status
// change. It returns nil iff the system notification was stored; WhatsApp
// problems are only logged and recorded.
func (s *Service) SendOrderStatusNotification(ctx context.Context, orderID uint64, status models.OrderStatus) error {
	rep, err := s.SendOrderStatus(ctx, orderID, status)
	if err != nil {
		return err
	}
	return rep.SystemErr()
}

func (s *Service) SendOrderStatus(ctx context.Context, orderID uint64, status models.OrderStatus) (StatusReport, error) {
	return s.SendOrderStatusLegs(ctx, orderID, status, AllStatusLegs)
}

// SendOrderStatusLegs sends only the selected legs. A non-nil error means no
// leg was attempted; leg outcomes are in the report.
func (s *Service) SendOrderStatusLegs(ctx context.Context, orderID uint64, status models.OrderStatus, legs StatusLegs) (StatusReport, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return StatusReport{}, err
	}
	customer, err := s.users.GetUserByID(ctx, order.CustomerID)
	if err != nil {
		return StatusReport{}, err
	}

	code := StatusTemplateCode(status)
	vars := Vars(
		"customer_name", customer.Name,
		"order_number", order.OrderNumber,
		"status", string(status),
	)

	var rep StatusReport

	if legs&LegSystem != 0 {
		sysTpl, err := s.statusTemplate(ctx, code, models.ChannelSystem, status)
		if err != nil {
			return StatusReport{}, err
		}
		rep.System = s.deliver(ctx, 0, customer, sysTpl, vars, orderStatusType)
	}

	if legs&LegWhatsApp != 0 && s.ChannelEnabled(models.ChannelWhatsApp) && customer.Phone != "" {
		waTpl, err := s.statusTemplate(ctx, code, models.ChannelWhatsApp, status)
		if err != nil {
			s.log.Warn("whatsapp status template lookup failed", zap.Uint64("order_id", orderID), zap.Error(err))
		} else {
			res := s.deliver(ctx, 0, customer, waTpl, vars, orderStatusType)
			rep.WhatsApp = &res
		}
	}

	return rep, nil
}

// statusTemplate подставляет встроенный шаблон, если в БД его нет.
// Для WhatsApp встроенный шаблон ссылается на провайдерский order_status_<status>.
func (s *Service) statusTemplate(ctx context.Context, code string, ch models.Channel, status models.OrderStatus) (*models.NotificationTemplate, error) {
	tpl, err := s.templates.GetTemplate(ctx, code, ch)
	if err == nil {
		return tpl, nil
	}
	if !errors.Is(err, models.ErrTemplateNotFound) {
		return nil, err
	}

	s.log.Info("status template missing, using built-in", zap.String("template", code), zap.String("channel", string(ch)))
	title, ok := fallbackStatusTitles[status]
	if !ok {
		title = code
	}
	fb := &models.NotificationTemplate{
		Code:    code,
		Channel: ch,
		Subject: title,
		Body:    fallbackStatusBody,
	}
	if ch == models.ChannelWhatsApp {
		fb.ProviderTemplate = code
	}
	return fb, nil
}
