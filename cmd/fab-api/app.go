package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BearBump/FabOrders/config"
	"github.com/BearBump/FabOrders/internal/activitylog"
	"github.com/BearBump/FabOrders/internal/api/ordersapi"
	"github.com/BearBump/FabOrders/internal/bootstrap"
	"github.com/BearBump/FabOrders/internal/broker/kafka"
	"github.com/BearBump/FabOrders/internal/cache/rediscache"
	"github.com/BearBump/FabOrders/internal/services/barcode"
	"github.com/BearBump/FabOrders/internal/services/lifecycle"
	"github.com/BearBump/FabOrders/internal/services/notifications"
)

const storageWait = 60 * time.Second

// apiStore: всё, что fab-api берёт из postgres.
type apiStore interface {
	lifecycle.OrderStore
	barcode.OrderStore
	ordersapi.OrderDetails
	notifications.UserStore
	notifications.TemplateStore
	notifications.NotificationStore
	activitylog.Sink
	Ping(ctx context.Context) error
}

type producer interface {
	PublishJSON(ctx context.Context, topic, key string, v any) error
	Close() error
}

type apiFactories struct {
	newStorage  func(ctx context.Context, cfg *config.Config) (store apiStore, closeFn func(), err error)
	newRedis    func(cfg *config.Config) *rediscache.RedisCache
	newProducer func(cfg *config.Config) producer
	newWhatsApp func(cfg *config.Config) notifications.WhatsAppSender
}

func defaultAPIFactories(log *zap.Logger) apiFactories {
	return apiFactories{
		newStorage: func(ctx context.Context, cfg *config.Config) (apiStore, func(), error) {
			st, err := bootstrap.OpenStorage(ctx, cfg, storageWait, log)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newRedis: func(cfg *config.Config) *rediscache.RedisCache {
			return rediscache.New(cfg.RedisAddr())
		},
		newProducer: func(cfg *config.Config) producer {
			return kafka.NewProducer(cfg.KafkaBrokers())
		},
		newWhatsApp: bootstrap.NewWhatsAppSender,
	}
}

// fabAPI: собранный граф сервисов.
type fabAPI struct {
	api           *ordersapi.OrdersAPI
	notifications *notifications.Service
	ready         func(ctx context.Context) error
}

func buildFabAPI(cfg *config.Config, st apiStore, rc *rediscache.RedisCache, pub producer, wa notifications.WhatsAppSender, log *zap.Logger) *fabAPI {
	activity := activitylog.New(st, log)
	limiter := rediscache.NewRateLimiterFromClient(rc.Client(), "rl")

	notifSvc := notifications.NewService(st, st, st, st, activity, log,
		bootstrap.Dispatchers(cfg, pub, wa, limiter, log)...)

	var statusNotifier lifecycle.StatusNotifier = notifSvc
	if cfg.Fab.NotificationMode == bootstrap.ModeKafka {
		statusNotifier = lifecycle.NewEventNotifier(pub, cfg.Kafka.OrderStatusTopicName)
	}
	lc := lifecycle.New(st, statusNotifier, activity, log)

	ttl := time.Duration(cfg.Fab.BarcodeCacheTTLSeconds) * time.Second
	resolver := barcode.NewResolver(st, rediscache.NewBarcodeCache(rc, ttl), log).
		WithPrefix(cfg.Fab.BarcodePrefix)

	return &fabAPI{
		api:           ordersapi.New(lc, resolver, st, notifSvc, log),
		notifications: notifSvc,
		ready: func(ctx context.Context) error {
			if err := st.Ping(ctx); err != nil {
				return err
			}
			return rc.Ping(ctx)
		},
	}
}

func RunFabAPI(ctx context.Context, cfg *config.Config, opts apiHTTPOpts, f apiFactories, log *zap.Logger) error {
	st, closeFn, err := f.newStorage(ctx, cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	rc := f.newRedis(cfg)
	defer func() { _ = rc.Close() }()

	pub := f.newProducer(cfg)
	defer func() { _ = pub.Close() }()

	app := buildFabAPI(cfg, st, rc, pub, f.newWhatsApp(cfg), log)

	log.Info("fab-api starting",
		zap.String("http_addr", opts.httpAddr),
		zap.String("notification_mode", cfg.Fab.NotificationMode),
		zap.Bool("whatsapp", app.notifications.ChannelEnabled("whatsapp")),
	)

	opts.api = app.api
	opts.ready = app.ready
	return runAPIServer(ctx, opts, log)
}
