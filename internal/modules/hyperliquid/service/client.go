package service

import (
	"context"
	"crypto/ecdsa"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	hyperliquid "github.com/sonirico/go-hyperliquid"

	"webhook_bot/internal/models"
	"webhook_bot/internal/modules/config"
	"webhook_bot/pkg/logger"
)

var errNoKey = errors.New("hyperliquid private key is not configured")

// Client — адаптер go-hyperliquid под runner.Exchange.
type Client struct {
	apiURL   string
	wallet   string
	key      *ecdsa.PrivateKey
	keyErr   error
	cross    bool
	slippage float64
	now      func() time.Time

	session *Session[*hyperliquid.Exchange]
}

func NewClient(cfg *config.Config) *Client {
	c := &Client{
		apiURL:   cfg.Hyperliquid.APIURL,
		wallet:   cfg.Hyperliquid.Wallet,
		cross:    cfg.Hyperliquid.CrossMargin,
		slippage: cfg.Hyperliquid.Slippage,
		now:      time.Now,
	}
	if c.apiURL == "" {
		c.apiURL = hyperliquid.MainnetAPIURL
	}

	c.key, c.keyErr = parseKey(cfg.Hyperliquid.PrivateKey)
	if c.keyErr == nil {
		signer := crypto.PubkeyToAddress(c.key.PublicKey).Hex()
		switch {
		case c.wallet == "":
			c.wallet = signer
		case !strings.EqualFold(signer, c.wallet):
			logger.Warn("signer %s differs from wallet %s, orders go through an agent wallet", signer, c.wallet)
		}
	} else {
		logger.Warn("hyperliquid client without signing key: %v", c.keyErr)
	}

	c.session = NewSession(c.build)
	return c
}

func parseKey(hex string) (*ecdsa.PrivateKey, error) {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "0x")
	if hex == "" {
		return nil, errNoKey
	}
	k, err := crypto.HexToECDSA(hex)
	if err != nil {
		return nil, errors.Wrap(err, "parse private key")
	}
	return k, nil
}

func (c *Client) build(ctx context.Context) (*hyperliquid.Exchange, error) {
	if c.keyErr != nil {
		return nil, c.keyErr
	}
	logger.Info("hyperliquid session for %s at %s", c.wallet, c.apiURL)
	return hyperliquid.NewExchange(ctx, c.key, c.apiURL, nil, "", c.wallet, nil), nil
}

func (c *Client) Account() string { return c.wallet }

func (c *Client) Session() *Session[*hyperliquid.Exchange] { return c.session }

func (c *Client) FetchAccountState(ctx context.Context, account string) (models.AccountState, error) {
	const op = "user_state"
	ex, err := c.session.Get(ctx)
	if err != nil {
		return models.AccountState{}, classify(op, err)
	}
	us, err := ex.Info().UserState(ctx, account)
	if err != nil {
		return models.AccountState{}, classify(op, err)
	}

	positions := make([]rawPosition, 0, len(us.AssetPositions))
	for _, ap := range us.AssetPositions {
		positions = append(positions, rawPosition{
			Coin:    ap.Position.Coin,
			Szi:     ap.Position.Szi,
			EntryPx: ap.Position.EntryPx,
		})
	}
	st, err := buildAccountState(us.CrossMarginSummary.AccountValue, us.MarginSummary.AccountValue, positions, c.now())
	if err != nil {
		return models.AccountState{}, &models.ExchangeError{Op: op, Err: err}
	}
	return st, nil
}

func (c *Client) FetchMidPrices(ctx context.Context) (models.PriceBook, error) {
	const op = "all_mids"
	ex, err := c.session.Get(ctx)
	if err != nil {
		return models.PriceBook{}, classify(op, err)
	}
	mids, err := ex.Info().AllMids(ctx)
	if err != nil {
		return models.PriceBook{}, classify(op, err)
	}
	return buildPriceBook(mids, c.now()), nil
}

func (c *Client) FetchInstrumentMeta(ctx context.Context) (models.InstrumentMeta, error) {
	const op = "meta"
	ex, err := c.session.Get(ctx)
	if err != nil {
		return models.InstrumentMeta{}, classify(op, err)
	}
	meta, err := ex.Info().Meta(ctx)
	if err != nil {
		return models.InstrumentMeta{}, classify(op, err)
	}

	dec := make(map[string]int, len(meta.Universe))
	for _, a := range meta.Universe {
		dec[a.Name] = a.SzDecimals
	}
	return models.InstrumentMeta{SizeDecimals: dec, RetrievedAt: c.now()}, nil
}

func (c *Client) SetLeverage(ctx context.Context, coin string, leverage int) error {
	const op = "update_leverage"
	ex, err := c.session.Get(ctx)
	if err != nil {
		return classify(op, err)
	}
	if _, err := ex.UpdateLeverage(ctx, leverage, coin, c.cross); err != nil {
		return classify(op, err)
	}
	logger.Info("leverage %s set to %dx (cross=%t)", coin, leverage, c.cross)
	return nil
}
