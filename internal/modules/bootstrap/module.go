package bootstrap

import (
	"context"

	"go.uber.org/fx"

	bootstrap "webhook_bot/internal/modules/bootstrap/service"
	"webhook_bot/internal/modules/config"
	server "webhook_bot/internal/modules/server/service"
	"webhook_bot/internal/runner"
)

func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Provide(
			func(cache *runner.AccountCache, state *server.State, n runner.Notifier, cfg *config.Config) *bootstrap.Warmuper {
				return bootstrap.NewWarmuper(cache, state, n, cfg.Cache.FetchTimeout*3)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, wu *bootstrap.Warmuper) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() { _ = wu.Warmup(context.Background()) }()
					return nil
				},
			})
		}),
	)
}
