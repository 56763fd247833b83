package pricefeed

import (
	"context"

	"go.uber.org/fx"

	"webhook_bot/internal/modules/config"
	"webhook_bot/internal/modules/pricefeed/service"
	server "webhook_bot/internal/modules/server/service"
	"webhook_bot/internal/runner"
	"webhook_bot/pkg/logger"
)

// Module поднимает websocket-фид цен, если он включён в конфиге.
// Без фида цены читаются REST-ом через кэш.
func Module() fx.Option {
	return fx.Module("pricefeed",
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, cache *runner.AccountCache, state *server.State) {
			if !cfg.PriceFeed.Enabled {
				logger.Info("[WS] price feed disabled")
				return
			}
			c := service.NewClient(cfg.Hyperliquid.WSURL, cache, state)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						defer close(done)
						c.Run(ctx)
					}()
					return nil
				},
				OnStop: func(stopCtx context.Context) error {
					cancel()
					select {
					case <-done:
					case <-stopCtx.Done():
					}
					return nil
				},
			})
		}),
	)
}
