package service

import (
	"context"

	hyperliquid "github.com/sonirico/go-hyperliquid"

	"webhook_bot/internal/helper"
	"webhook_bot/internal/models"
	"webhook_bot/pkg/logger"
)

// PlaceMarketOrder — IOC-лимитка по mid ± slippage. Статус ордера не разбираем,
// исполнение подтверждает перечитанный user state.
func (c *Client) PlaceMarketOrder(ctx context.Context, in models.OrderIntent) error {
	return c.submit(ctx, "open", in)
}

// ClosePosition отправляет reduce-only ордер на размер, который движок
// только что перечитал из user state.
func (c *Client) ClosePosition(ctx context.Context, in models.OrderIntent) error {
	if in.Size <= 0 {
		logger.Info("close %s: no open position", in.Coin)
		return nil
	}
	in.ReduceOnly = true
	return c.submit(ctx, "close", in)
}

// submit делает ровно один сетевой вызов: сам ордер.
func (c *Client) submit(ctx context.Context, op string, in models.OrderIntent) error {
	req, err := orderRequest(in, c.slippage)
	if err != nil {
		return err
	}
	ex, err := c.session.Get(ctx)
	if err != nil {
		return classify(op, err)
	}

	logger.Info("%s %s buy=%t size=%g px=%g reduceOnly=%t", op, in.Coin, in.IsBuy, req.Size, req.Price, in.ReduceOnly)
	if _, err := ex.Order(ctx, req, nil); err != nil {
		return classify(op, err)
	}
	return nil
}

func orderRequest(in models.OrderIntent, slippage float64) (hyperliquid.CreateOrderRequest, error) {
	if !(in.Price > 0) {
		return hyperliquid.CreateOrderRequest{}, models.Validationf("no reference price for %s", in.Coin)
	}
	req := hyperliquid.CreateOrderRequest{
		Coin:  in.Coin,
		IsBuy: in.IsBuy,
		Size:  helper.RoundDownSize(in.Size, in.SizeDecimals),
		Price: helper.SlippagePrice(in.Price, in.IsBuy, slippage, in.SizeDecimals),
		OrderType: hyperliquid.OrderType{
			Limit: &hyperliquid.LimitOrderType{Tif: hyperliquid.TifIoc},
		},
		ReduceOnly: in.ReduceOnly,
	}
	if req.Size <= 0 {
		return hyperliquid.CreateOrderRequest{}, models.Validationf("%s size %.10f rounds to zero", in.Coin, in.Size)
	}
	return req, nil
}
