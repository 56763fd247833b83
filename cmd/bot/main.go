package main

import (
	"context"
	"log"

	"go.uber.org/fx"

	"webhook_bot/internal/modules/bootstrap"
	"webhook_bot/internal/modules/config"
	"webhook_bot/internal/modules/hyperliquid"
	"webhook_bot/internal/modules/pricefeed"
	"webhook_bot/internal/modules/server"
	"webhook_bot/internal/notify"
	"webhook_bot/internal/runner"
	"webhook_bot/pkg/logger"
	"webhook_bot/pkg/tracing"
)

// initObservability поднимает zap и, если включено, jaeger до старта остальных модулей.
func initObservability(lc fx.Lifecycle, cfg *config.Config) error {
	logger.SetServiceName(cfg.Service.Name)
	tracing.SetServiceName(cfg.Service.Name)
	if err := logger.Init(cfg.Logging); err != nil {
		return err
	}

	var closeTracer func()
	if cfg.Tracing.Enabled {
		_, closer, err := tracing.InitTracer(cfg.Tracing)
		if err != nil {
			logger.Error("jaeger init failed, tracing disabled: %v", err)
		} else {
			closeTracer = closer
		}
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			if closeTracer != nil {
				closeTracer()
			}
			logger.Sync()
			return nil
		},
	})
	logger.Info("%s starting, default coin %s, policy %s", cfg.Service.Name,
		cfg.Trading.DefaultCoin, cfg.Trading.SameDirectionPolicy)
	return nil
}

func main() {
	app := fx.New(
		config.Module(),
		fx.Invoke(initObservability),
		hyperliquid.Module(),
		notify.Module(),
		runner.Module(),
		server.Module(),
		pricefeed.Module(),
		bootstrap.Module(),
	)
	if err := app.Err(); err != nil {
		log.Fatal(err)
	}
	app.Run()
}
