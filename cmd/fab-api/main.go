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
	"github.com/BearBump/FabOrders/internal/storage/pgorders"
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

	// `fab-api migrate` накатывает схему и выходит.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrate(ctx, cfg); err != nil {
			log.Fatal("migrate failed", zap.Error(err))
		}
		log.Info("migrations applied")
		return
	}

	opts := apiHTTPOpts{
		httpAddr:    cfg.Fab.HTTPAddr,
		swaggerPath: os.Getenv("swaggerPath"),
	}
	if err := RunFabAPI(ctx, cfg, opts, defaultAPIFactories(log), log); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("fab-api stopped", zap.Error(err))
	}
}

func runMigrate(ctx context.Context, cfg *config.Config) error {
	st, err := pgorders.New(ctx, cfg.PostgresDSN())
	if err != nil {
		return err
	}
	defer st.Close()
	return st.Migrate(ctx)
}
