package runner

import (
	"webhook_bot/internal/modules/config"

	"go.uber.org/fx"
)

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			func(up Upstream, cfg *config.Config) Exchange {
				return NewResilientExchange(up.Exchange, up.Session, RetryPolicyFromConfig(cfg.Retry))
			},
			func(ex Exchange, up Upstream, cfg *config.Config) *AccountCache {
				return NewAccountCache(ex, up.Account, CacheConfigFromConfig(cfg))
			},
			NewSequenceLocks,
			func(ex Exchange, c *AccountCache, l *SequenceLocks, n Notifier, cfg *config.Config) *Engine {
				return NewEngine(ex, c, l, n, EngineConfigFromConfig(cfg))
			},
		),
	)
}
