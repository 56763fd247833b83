package notify

import (
	"context"

	"go.uber.org/fx"

	"webhook_bot/internal/modules/config"
	"webhook_bot/internal/runner"
	"webhook_bot/pkg/logger"
)

// New выбирает Telegram, если заданы токен и chat id, иначе логгер.
func New(cfg *config.Config) runner.Notifier {
	if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
		logger.Info("[NOTIFY] telegram not configured, notifications go to the log")
		return Stdout{}
	}
	t, err := NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
	if err != nil {
		logger.Error("[NOTIFY] telegram init failed, falling back to the log: %v", err)
		return Stdout{}
	}
	return t
}

func Module() fx.Option {
	return fx.Module("notify",
		fx.Provide(New),
		fx.Invoke(func(lc fx.Lifecycle, n runner.Notifier) {
			t, ok := n.(*Telegram)
			if !ok {
				return
			}
			ctx, cancel := context.WithCancel(context.Background())
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go t.Run(ctx)
					return nil
				},
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}
