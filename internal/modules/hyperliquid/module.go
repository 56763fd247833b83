package hyperliquid

import (
	"go.uber.org/fx"

	"webhook_bot/internal/modules/hyperliquid/service"
	"webhook_bot/internal/runner"
)

// Module отдаёт движку клиент биржи вместе с его сессией и адресом аккаунта.
func Module() fx.Option {
	return fx.Module("hyperliquid",
		fx.Provide(
			service.NewClient,
			func(c *service.Client) runner.Upstream {
				return runner.Upstream{Exchange: c, Session: c.Session(), Account: c.Account()}
			},
		),
	)
}
