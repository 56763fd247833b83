package runner

import (
	"context"

	"webhook_bot/internal/models"
)

// Exchange — всё, что движку нужно от биржи. Адаптация под конкретный SDK живёт снаружи.
type Exchange interface {
	FetchAccountState(ctx context.Context, account string) (models.AccountState, error)
	FetchMidPrices(ctx context.Context) (models.PriceBook, error)
	FetchInstrumentMeta(ctx context.Context) (models.InstrumentMeta, error)
	ClosePosition(ctx context.Context, intent models.OrderIntent) error
	SetLeverage(ctx context.Context, coin string, leverage int) error
	PlaceMarketOrder(ctx context.Context, intent models.OrderIntent) error
}

// SessionResetter сбрасывает долгоживущий клиент биржи после фатальной ошибки.
type SessionResetter interface {
	Reset(reason string)
}

// Upstream — то, что отдаёт модуль биржи: сырой клиент, его сессия и адрес аккаунта.
type Upstream struct {
	Exchange Exchange
	Session  SessionResetter
	Account  string
}

type Notifier interface {
	Send(ctx context.Context, msg string)
}
