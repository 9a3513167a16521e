package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/BearBump/FabOrders/config"
	"github.com/BearBump/FabOrders/internal/bootstrap"
	"github.com/BearBump/FabOrders/internal/logging"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("configPath"))
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}
	bootstrap.ApplyDefaults(cfg)
	if err := bootstrap.Validate(cfg); err != nil {
		panic(err)
	}

	log, err := logging.New(cfg.Fab.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()
	zap.ReplaceGlobals(log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts := notifierHTTPOpts{
		httpAddr:    cfg.Fab.NotifierHTTPAddr,
		swaggerPath: os.Getenv("swaggerPath"),
	}
	if err := RunFabNotifier(ctx, cfg, opts, defaultNotifierFactories(log), log); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("fab-notifier stopped", zap.Error(err))
	}
}
