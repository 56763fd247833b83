package runner

import (
	"context"
	"errors"
	"time"

	"webhook_bot/internal/metrics"
	"webhook_bot/internal/models"
	"webhook_bot/internal/modules/config"
	"webhook_bot/pkg/cache"
)

type CacheConfig struct {
	AccountTTL   time.Duration
	PriceTTL     time.Duration
	MetaTTL      time.Duration
	MaxStale     time.Duration
	FetchTimeout time.Duration
	Now          func() time.Time
}

func CacheConfigFromConfig(cfg *config.Config) CacheConfig {
	return CacheConfig{
		AccountTTL:   cfg.Cache.AccountTTL,
		PriceTTL:     cfg.Cache.PriceTTL,
		MetaTTL:      cfg.Cache.MetaTTL,
		MaxStale:     cfg.Cache.MaxStale,
		FetchTimeout: cfg.Cache.FetchTimeout,
	}
}

// AccountCache — единственный путь чтения аккаунта, цен и меты.
// Позиции и баланс берутся из одного снимка user state, так что они всегда согласованы.
type AccountCache struct {
	account  string
	accounts *cache.Keyed[string, models.AccountState]
	prices   *cache.Entry[models.PriceBook]
	meta     *cache.Entry[models.InstrumentMeta]
}

func NewAccountCache(ex Exchange, account string, cfg CacheConfig) *AccountCache {
	base := cache.Options{
		MaxStale:     cfg.MaxStale,
		FetchTimeout: cfg.FetchTimeout,
		ServeStale:   models.IsRateLimited,
		Observe:      observeRefresh,
		Now:          cfg.Now,
	}

	accOpts := base
	accOpts.TTL = cfg.AccountTTL
	priceOpts := base
	priceOpts.TTL = cfg.PriceTTL
	metaOpts := base
	metaOpts.TTL = cfg.MetaTTL
	metaOpts.MaxStale = cfg.MetaTTL + cfg.MaxStale

	return &AccountCache{
		account:  account,
		accounts: cache.NewKeyed("account", ex.FetchAccountState, accOpts),
		prices:   cache.New("prices", ex.FetchMidPrices, priceOpts),
		meta:     cache.New("meta", ex.FetchInstrumentMeta, metaOpts),
	}
}

func observeRefresh(name string, err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case models.IsRateLimited(err):
		outcome = "rate_limited"
	default:
		outcome = "error"
	}
	metrics.CacheRefreshes.WithLabelValues(name, outcome).Inc()
}

func (c *AccountCache) Account() string { return c.account }

// State — снимок аккаунта не старше AccountTTL.
func (c *AccountCache) State(ctx context.Context) (models.AccountState, error) {
	st, err := c.accounts.Entry(c.account).Get(ctx)
	if err != nil {
		return st, waitErr("user_state", err)
	}
	metrics.Equity.Set(st.Equity)
	return st, nil
}

// RefreshState всегда идёт в биржу. Используется после мутаций.
func (c *AccountCache) RefreshState(ctx context.Context) (models.AccountState, error) {
	st, err := c.accounts.Entry(c.account).Refresh(ctx)
	if err != nil {
		return st, waitErr("user_state", err)
	}
	metrics.Equity.Set(st.Equity)
	return st, nil
}

func (c *AccountCache) GetBalance(ctx context.Context) (float64, error) {
	st, err := c.State(ctx)
	if err != nil {
		return 0, err
	}
	return st.Equity, nil
}

// GetPosition — знаковый размер, 0 если позиции нет.
func (c *AccountCache) GetPosition(ctx context.Context, coin string) (float64, error) {
	st, err := c.State(ctx)
	if err != nil {
		return 0, err
	}
	return st.Position(coin), nil
}

func (c *AccountCache) GetPrice(ctx context.Context, coin string) (float64, error) {
	book, err := c.prices.Get(ctx)
	if err != nil {
		return 0, waitErr("all_mids", err)
	}
	px, ok := book.Mids[coin]
	if !ok || px <= 0 {
		return 0, models.Validationf("unknown coin %q: no mid price", coin)
	}
	return px, nil
}

func (c *AccountCache) GetSizeDecimals(ctx context.Context, coin string) (int, error) {
	meta, err := c.meta.Get(ctx)
	if err != nil {
		return 0, waitErr("meta", err)
	}
	dec, ok := meta.SizeDecimals[coin]
	if !ok {
		return 0, models.Validationf("unknown coin %q: not in universe", coin)
	}
	return dec, nil
}

// Invalidate выбрасывает снимки аккаунта. Цены и мета от ордеров не зависят.
func (c *AccountCache) Invalidate() {
	c.accounts.InvalidateAll()
}

// StorePrices принимает книгу mid-цен от websocket-фида.
func (c *AccountCache) StorePrices(book models.PriceBook) {
	at := book.RetrievedAt
	if at.IsZero() {
		at = time.Now()
	}
	c.prices.Store(book, at)
}

// Warmup подтягивает мету и цены заранее, чтобы первый алерт не платил за них.
func (c *AccountCache) Warmup(ctx context.Context) error {
	if _, err := c.meta.Get(ctx); err != nil {
		return waitErr("meta", err)
	}
	if _, err := c.prices.Get(ctx); err != nil {
		return waitErr("all_mids", err)
	}
	_, err := c.State(ctx)
	return err
}

// waitErr: запрос не дождался обновления кэша. Это таймаут, а не сбой биржи.
func waitErr(op string, err error) error {
	var to *models.TimeoutError
	if errors.As(err, &to) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &models.TimeoutError{Op: op, Err: err}
	}
	return err
}
