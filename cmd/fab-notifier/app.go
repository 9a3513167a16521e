package main

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BearBump/FabOrders/config"
	"github.com/BearBump/FabOrders/internal/activitylog"
	"github.com/BearBump/FabOrders/internal/bootstrap"
	"github.com/BearBump/FabOrders/internal/broker/kafka"
	"github.com/BearBump/FabOrders/internal/cache/rediscache"
	"github.com/BearBump/FabOrders/internal/services/notifications"
	"github.com/BearBump/FabOrders/internal/services/notifier"
)

const storageWait = 60 * time.Second

type notifierStore interface {
	notifications.OrderReader
	notifications.UserStore
	notifications.TemplateStore
	notifications.NotificationStore
	activitylog.Sink
}

type consumer interface {
	notifier.Consumer
	Close() error
}

type producer interface {
	notifications.Publisher
	Close() error
}

type notifierFactories struct {
	newStorage  func(ctx context.Context, cfg *config.Config) (store notifierStore, closeFn func(), err error)
	newConsumer func(cfg *config.Config) consumer
	newProducer func(cfg *config.Config) producer
	newRedis    func(cfg *config.Config) *rediscache.RedisCache
	newWhatsApp func(cfg *config.Config) notifications.WhatsAppSender
}

func defaultNotifierFactories(log *zap.Logger) notifierFactories {
	return notifierFactories{
		newStorage: func(ctx context.Context, cfg *config.Config) (notifierStore, func(), error) {
			st, err := bootstrap.OpenStorage(ctx, cfg, storageWait, log)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newConsumer: func(cfg *config.Config) consumer {
			return kafka.NewConsumer(cfg.KafkaBrokers(), cfg.Kafka.OrderStatusTopicName, cfg.Kafka.NotifierConsumerGroup)
		},
		newProducer: func(cfg *config.Config) producer {
			return kafka.NewProducer(cfg.KafkaBrokers())
		},
		newRedis: func(cfg *config.Config) *rediscache.RedisCache {
			return rediscache.New(cfg.RedisAddr())
		},
		newWhatsApp: bootstrap.NewWhatsAppSender,
	}
}

func RunFabNotifier(ctx context.Context, cfg *config.Config, opts notifierHTTPOpts, f notifierFactories, log *zap.Logger) error {
	st, closeFn, err := f.newStorage(ctx, cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	cons := f.newConsumer(cfg)
	defer func() { _ = cons.Close() }()
	pub := f.newProducer(cfg)
	defer func() { _ = pub.Close() }()
	rc := f.newRedis(cfg)
	defer func() { _ = rc.Close() }()
	limiter := rediscache.NewRateLimiterFromClient(rc.Client(), "rl")

	activity := activitylog.New(st, log)
	svc := notifications.NewService(st, st, st, st, activity, log,
		bootstrap.Dispatchers(cfg, pub, f.newWhatsApp(cfg), limiter, log)...)

	w := notifier.New(cons, svc, log)

	opts.worker = w
	opts.cfg = cfg

	log.Info("fab-notifier starting",
		zap.String("topic", cfg.Kafka.OrderStatusTopicName),
		zap.String("group", cfg.Kafka.NotifierConsumerGroup),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(gctx) })
	g.Go(func() error { return runNotifierHTTPServer(gctx, opts) })
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
