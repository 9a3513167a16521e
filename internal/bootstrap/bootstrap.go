// Package bootstrap holds the wiring shared by fab-api and fab-notifier.
package bootstrap

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/BearBump/FabOrders/config"
	"github.com/BearBump/FabOrders/internal/integrations/whatsapp"
	"github.com/BearBump/FabOrders/internal/integrations/whatsapp/fake"
	"github.com/BearBump/FabOrders/internal/logging"
	"github.com/BearBump/FabOrders/internal/services/notifications"
	"github.com/BearBump/FabOrders/internal/storage/pgorders"
)

const (
	ModeSync  = "sync"
	ModeKafka = "kafka"
)

// ApplyDefaults заполняет то, что не задано в yaml.
func ApplyDefaults(cfg *config.Config) {
	if cfg.Fab.HTTPAddr == "" {
		cfg.Fab.HTTPAddr = ":8080"
	}
	if cfg.Fab.NotifierHTTPAddr == "" {
		cfg.Fab.NotifierHTTPAddr = ":8082"
	}
	if cfg.Fab.NotificationMode == "" {
		cfg.Fab.NotificationMode = ModeSync
	}
	if cfg.Fab.BarcodeCacheTTLSeconds <= 0 {
		cfg.Fab.BarcodeCacheTTLSeconds = 3600
	}
	if cfg.Kafka.OrderStatusTopicName == "" {
		cfg.Kafka.OrderStatusTopicName = "order.status_changed"
	}
	if cfg.Kafka.EmailTopicName == "" {
		cfg.Kafka.EmailTopicName = "mail.outgoing"
	}
	if cfg.Kafka.NotifierConsumerGroup == "" {
		cfg.Kafka.NotifierConsumerGroup = "fab-notifier"
	}
	if cfg.WhatsApp.LanguageCode == "" {
		cfg.WhatsApp.LanguageCode = "az"
	}
}

// Validate catches settings that would otherwise fail at the first request.
func Validate(cfg *config.Config) error {
	switch cfg.Fab.NotificationMode {
	case ModeSync, ModeKafka:
	default:
		return errors.Errorf("unknown notification_mode %q", cfg.Fab.NotificationMode)
	}
	if cfg.Database.Host == "" || cfg.Database.DBName == "" {
		return errors.New("database host and name are required")
	}
	return nil
}

// OpenStorage ждёт postgres до wait (в docker compose база поднимается позже сервиса)
// и накатывает миграции, если включён migrate_on_start.
func OpenStorage(ctx context.Context, cfg *config.Config, wait time.Duration, log *zap.Logger) (*pgorders.Storage, error) {
	log = logging.Or(log)
	deadline := time.Now().Add(wait)

	var lastErr error
	for {
		st, err := pgorders.New(ctx, cfg.PostgresDSN())
		if err == nil {
			if cfg.Database.MigrateOnStart {
				if err := st.Migrate(ctx); err != nil {
					st.Close()
					return nil, err
				}
			}
			return st, nil
		}
		lastErr = err
		if !time.Now().Before(deadline) {
			return nil, errors.Wrapf(lastErr, "postgres is not ready after %s", wait)
		}
		log.Warn("postgres is not ready, retrying", zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

// NewWhatsAppSender возвращает настоящий клиент, если заданы phone_number_id и токен,
// иначе fake (локальный запуск и демо).
func NewWhatsAppSender(cfg *config.Config) notifications.WhatsAppSender {
	wa := cfg.WhatsApp
	if wa.PhoneNumberID == "" || wa.AccessToken == "" {
		return fake.New()
	}
	return whatsapp.New(wa.BaseURL, wa.PhoneNumberID, wa.AccessToken, time.Duration(wa.TimeoutSeconds)*time.Second)
}

// Dispatchers builds the non-system channels. WhatsApp is registered only when enabled.
func Dispatchers(
	cfg *config.Config,
	pub notifications.Publisher,
	sender notifications.WhatsAppSender,
	limiter notifications.RateLimiter,
	log *zap.Logger,
) []notifications.Dispatcher {
	out := []notifications.Dispatcher{
		notifications.NewSMSDispatcher(log),
	}
	if pub != nil {
		out = append(out, notifications.NewEmailDispatcher(pub, cfg.Kafka.EmailTopicName))
	}
	if cfg.WhatsApp.Enabled && sender != nil {
		wa := notifications.NewWhatsAppDispatcher(sender, cfg.WhatsApp.LanguageCode, log)
		if limiter != nil {
			wa = wa.WithRateLimit(limiter, int64(cfg.WhatsApp.RateLimitPerMinute))
		}
		out = append(out, wa)
	}
	return out
}
