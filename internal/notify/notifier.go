package notify

import (
	"context"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"webhook_bot/pkg/logger"
)

const queueSize = 64

// Telegram — пассивный нотифайер. Отправка идёт из отдельной горутины,
// чтобы медленный Telegram не держал лок разворота.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
	queue  chan string
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	b, err := tgbot.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{bot: b, chatID: chatID, queue: make(chan string, queueSize)}, nil
}

func (t *Telegram) Send(_ context.Context, msg string) {
	select {
	case t.queue <- msg:
	default:
		logger.Warn("[NOTIFY] telegram queue full, dropped: %s", msg)
	}
}

// Run отправляет сообщения из очереди, пока жив ctx.
func (t *Telegram) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-t.queue:
			t.deliver(msg)
		}
	}
}

func (t *Telegram) deliver(msg string) {
	if t.bot == nil || t.chatID == 0 {
		return
	}
	if _, err := t.bot.Send(tgbot.NewMessage(t.chatID, msg)); err != nil {
		logger.Warn("[NOTIFY] telegram send: %v", err)
	}
}

// Stdout пишет уведомления в лог, когда Telegram не настроен.
type Stdout struct{}

func (Stdout) Send(_ context.Context, msg string) {
	logger.Info("[NOTIFY] %s", msg)
}
