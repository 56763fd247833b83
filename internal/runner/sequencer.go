package runner

import (
	"context"
	"errors"
	"math"

	"webhook_bot/internal/models"
	"webhook_bot/internal/modules/config"
	"webhook_bot/pkg/logger"
	"webhook_bot/pkg/tracing"
)

// Plan — что надо сделать, чтобы из Current попасть в Target.
type Plan struct {
	Current models.PositionState
	Target  models.PositionState
	Close   bool
	Open    bool
}

func (p Plan) NoOp() bool { return !p.Close && !p.Open }

// PlanFor: FLAT — открыть; противоположная позиция — закрыть, потом открыть;
// та же сторона — ничего либо докупить, в зависимости от policy.
func PlanFor(current models.PositionState, side models.Side, policy string) Plan {
	p := Plan{Current: current, Target: side.Target()}
	switch current {
	case models.StateFlat:
		p.Open = true
	case p.Target:
		p.Open = policy == config.PolicyStack
	default:
		p.Close = true
		p.Open = true
	}
	return p
}

var errNotClosed = errors.New("position still open after close")
var errNotFilled = errors.New("open order did not change the position")

// runSequence исполняет план. Закрытие и открытие отправляются максимум по разу,
// после каждой мутации состояние перечитывается из биржи.
func (e *Engine) runSequence(ctx context.Context, sig models.Signal, plan Plan, res *Result) error {
	coin := sig.Coin
	closed := false

	var closing models.OrderIntent
	if plan.Close {
		var (
			current models.PositionState
			err     error
		)
		closing, current, err = e.closeIntent(ctx, coin)
		if err != nil {
			return err
		}
		if current != plan.Current {
			// позиция поменялась без нас: план пересчитываем по свежему снимку
			logger.Warn("%s moved %s -> %s before close, replanning", coin, plan.Current, current)
			plan = PlanFor(current, sig.Action, e.policy)
			res.Position = current
			res.PositionSize = closing.Size
			res.ClosedSize = 0
			if plan.NoOp() {
				res.Size = closing.Size
				res.NoTrade = true
				return nil
			}
		}
	}

	if plan.Close {
		res.ClosedSize = closing.Size
		if err := e.step(ctx, "close", func(ctx context.Context) error {
			return e.ex.ClosePosition(ctx, closing)
		}); err != nil {
			return &models.SequenceError{Step: "close", Err: err}
		}
		closed = true
		e.cache.Invalidate()

		st, err := e.cache.RefreshState(ctx)
		if err != nil {
			// close подтверждён биржей, но перечитать не вышло: считаем, что позиции нет
			return &models.SequenceError{Step: "confirm_close", Flat: true, Err: err}
		}
		after := models.StateOf(st.Position(coin))
		switch after {
		case plan.Current:
			return &models.SequenceError{Step: "close", Err: &models.ExchangeError{Op: "close", Err: errNotClosed}}
		case plan.Target:
			if e.policy != config.PolicyStack {
				logger.Warn("%s already %s after close, skipping open", coin, after)
				res.Position = after
				res.PositionSize = math.Abs(st.Position(coin))
				res.AccountValue = st.Equity
				res.NoTrade = true
				return nil
			}
		}
		res.AccountValue = st.Equity
	}

	price, err := e.cache.GetPrice(ctx, coin)
	if err != nil {
		return &models.SequenceError{Step: "price", Flat: closed, Err: err}
	}
	decimals, err := e.cache.GetSizeDecimals(ctx, coin)
	if err != nil {
		return &models.SequenceError{Step: "meta", Flat: closed, Err: err}
	}
	equity, err := e.cache.GetBalance(ctx)
	if err != nil {
		return &models.SequenceError{Step: "balance", Flat: closed, Err: err}
	}
	size, err := e.size(sig, equity, price, decimals)
	if err != nil {
		return &models.SequenceError{Step: "size", Flat: closed, Err: err}
	}

	if err := e.step(ctx, "leverage", func(ctx context.Context) error {
		return e.ex.SetLeverage(ctx, coin, sig.Leverage)
	}); err != nil {
		return &models.SequenceError{Step: "leverage", Flat: closed, Err: err}
	}

	intent := models.OrderIntent{
		Coin:         coin,
		IsBuy:        sig.Action.IsBuy(),
		Size:         size.Size,
		Price:        price,
		SizeDecimals: decimals,
	}
	if err := e.step(ctx, "open", func(ctx context.Context) error {
		return e.ex.PlaceMarketOrder(ctx, intent)
	}); err != nil {
		return &models.SequenceError{Step: "open", Flat: closed, Err: err}
	}
	e.cache.Invalidate()

	res.Size = size.Size
	res.Price = price

	st, err := e.cache.RefreshState(ctx)
	if err != nil {
		logger.Warn("final state read for %s failed, reporting order values: %v", coin, err)
		res.Position = plan.Target
		res.PositionSize = size.Size
		return nil
	}

	res.Position = models.StateOf(st.Position(coin))
	res.PositionSize = math.Abs(st.Position(coin))
	res.AccountValue = st.Equity
	if px := st.EntryPrices[coin]; px > 0 {
		res.Price = px
	}
	if res.Position != plan.Target {
		return &models.SequenceError{
			Step: "open",
			Flat: closed && res.Position == models.StateFlat,
			Err:  &models.ExchangeError{Op: "open", Err: errNotFilled},
		}
	}
	return nil
}

// closeIntent перечитывает позицию перед закрытием: reduce-only ордер идёт
// на тот размер, что сейчас на бирже, а не на закэшированный.
func (e *Engine) closeIntent(ctx context.Context, coin string) (models.OrderIntent, models.PositionState, error) {
	price, err := e.cache.GetPrice(ctx, coin)
	if err != nil {
		return models.OrderIntent{}, "", err
	}
	decimals, err := e.cache.GetSizeDecimals(ctx, coin)
	if err != nil {
		return models.OrderIntent{}, "", err
	}
	st, err := e.cache.RefreshState(ctx)
	if err != nil {
		return models.OrderIntent{}, "", err
	}
	pos := st.Position(coin)
	return models.OrderIntent{
		Coin:         coin,
		IsBuy:        pos < 0,
		Size:         math.Abs(pos),
		ReduceOnly:   true,
		Price:        price,
		SizeDecimals: decimals,
	}, models.StateOf(pos), nil
}

// size считает ордер и проверяет, что маржи хватает.
func (e *Engine) size(sig models.Signal, equity, price float64, decimals int) (SizeResult, error) {
	lev := float64(sig.Leverage)
	if equity <= 0 {
		return SizeResult{}, &models.InsufficientBalanceError{Equity: equity, Required: e.minNotional / lev}
	}
	// маржу проверяем до округления: нехватка баланса важнее слишком мелкого размера
	notional := math.Max(equity*sig.RiskPct/100*lev, e.minNotional)
	if m := notional / lev; m > equity {
		return SizeResult{}, &models.InsufficientBalanceError{Equity: equity, Required: m}
	}
	return CalcSize(equity, sig.RiskPct/100, lev, price, decimals, e.minNotional)
}

func (e *Engine) step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	span, ctx := tracing.StartSpan(ctx, "sequence."+name)
	err := fn(ctx)
	tracing.Finish(span, err)
	return err
}
