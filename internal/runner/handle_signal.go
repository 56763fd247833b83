package runner

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"webhook_bot/internal/metrics"
	"webhook_bot/internal/models"
	"webhook_bot/internal/modules/config"
	"webhook_bot/pkg/logger"
	"webhook_bot/pkg/tracing"
)

type EngineConfig struct {
	Limits         Limits
	MinNotional    float64
	Policy         string
	RequestTimeout time.Duration
	SequenceWait   time.Duration
}

func EngineConfigFromConfig(cfg *config.Config) EngineConfig {
	return EngineConfig{
		Limits:         LimitsFromConfig(cfg.Trading),
		MinNotional:    cfg.Trading.MinNotional,
		Policy:         cfg.Trading.SameDirectionPolicy,
		RequestTimeout: cfg.Engine.RequestTimeout,
		SequenceWait:   cfg.Engine.SequenceWait,
	}
}

// Result — то, что уходит в ответ на алерт.
type Result struct {
	RequestID    string
	Coin         string
	Side         models.Side
	Leverage     int
	RiskPct      float64
	Size         float64 // размер отправленного ордера
	Price        float64 // entryPx из биржи, иначе mid
	AccountValue float64
	Position     models.PositionState
	PositionSize float64
	ClosedSize   float64
	NoTrade      bool
}

type Engine struct {
	ex       Exchange
	cache    *AccountCache
	locks    *SequenceLocks
	notifier Notifier

	limits         Limits
	minNotional    float64
	policy         string
	requestTimeout time.Duration
	sequenceWait   time.Duration
}

func NewEngine(ex Exchange, cache *AccountCache, locks *SequenceLocks, notifier Notifier, cfg EngineConfig) *Engine {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.SequenceWait <= 0 {
		cfg.SequenceWait = 10 * time.Second
	}
	if cfg.Policy == "" {
		cfg.Policy = config.PolicyNoop
	}
	return &Engine{
		ex:             ex,
		cache:          cache,
		locks:          locks,
		notifier:       notifier,
		limits:         cfg.Limits,
		minNotional:    cfg.MinNotional,
		policy:         cfg.Policy,
		requestTimeout: cfg.RequestTimeout,
		sequenceWait:   cfg.SequenceWait,
	}
}

func (e *Engine) Cache() *AccountCache { return e.cache }

// HandleSignal — весь путь алерта: валидация, лок по account:coin, чтения, план, исполнение.
// Мутации идут на контексте, отвязанном от запроса: обрыв HTTP не прерывает разворот посередине.
func (e *Engine) HandleSignal(ctx context.Context, requestID string, raw models.RawSignal) (Result, error) {
	res := Result{RequestID: requestID}

	sig, err := ParseSignal(raw, e.limits)
	if err != nil {
		metrics.SignalsTotal.WithLabelValues(strings.ToLower(raw.Action), "invalid").Inc()
		return res, err
	}
	res.Coin, res.Side, res.Leverage, res.RiskPct = sig.Coin, sig.Action, sig.Leverage, sig.RiskPct

	span, ctx := tracing.StartSpan(ctx, "webhook.handle_signal")
	span.SetTag("request_id", requestID)
	span.SetTag("coin", sig.Coin)
	span.SetTag("action", string(sig.Action))

	err = e.handle(ctx, sig, &res)
	tracing.Finish(span, err)

	e.report(ctx, sig, res, err)
	return res, err
}

func (e *Engine) handle(ctx context.Context, sig models.Signal, res *Result) error {
	waitCtx, cancelWait := context.WithTimeout(ctx, e.sequenceWait)
	release, err := e.locks.Acquire(waitCtx, SequenceKey(e.cache.Account(), sig.Coin))
	cancelWait()
	if err != nil {
		return err
	}
	defer release()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.requestTimeout)
	defer cancel()

	// все чтения до первой мутации: неизвестная монета или нехватка баланса ничего не трогают
	price, err := e.cache.GetPrice(ctx, sig.Coin)
	if err != nil {
		return err
	}
	decimals, err := e.cache.GetSizeDecimals(ctx, sig.Coin)
	if err != nil {
		return err
	}
	st, err := e.cache.State(ctx)
	if err != nil {
		return err
	}

	pos := st.Position(sig.Coin)
	plan := PlanFor(models.StateOf(pos), sig.Action, e.policy)
	res.Position = plan.Current
	res.PositionSize = math.Abs(pos)
	res.Price = price
	res.AccountValue = st.Equity

	logger.Info("signal %s %s: position %s (%.6f), plan close=%t open=%t",
		sig.Action, sig.Coin, plan.Current, pos, plan.Close, plan.Open)

	if plan.NoOp() {
		res.Size = math.Abs(pos)
		if px := st.EntryPrices[sig.Coin]; px > 0 {
			res.Price = px
		}
		res.NoTrade = true
		return nil
	}

	if _, err := e.size(sig, st.Equity, price, decimals); err != nil {
		return err
	}
	return e.runSequence(ctx, sig, plan, res)
}

func (e *Engine) report(ctx context.Context, sig models.Signal, res Result, err error) {
	action := strings.ToLower(string(sig.Action))
	switch {
	case err != nil:
		metrics.SignalsTotal.WithLabelValues(action, resultLabel(err)).Inc()
		logger.Error("signal %s %s [%s] failed: %v", sig.Action, sig.Coin, res.RequestID, err)
		e.notify(ctx, fmt.Sprintf("❌ %s %s failed: %v", sig.Action, sig.Coin, err))
		if models.IsFlat(err) {
			e.notify(ctx, fmt.Sprintf("⚠️ %s is FLAT after close, new position was not opened", sig.Coin))
		}
	case res.NoTrade:
		metrics.SignalsTotal.WithLabelValues(action, "noop").Inc()
		logger.Info("signal %s %s [%s]: already %s, no new trade", sig.Action, sig.Coin, res.RequestID, res.Position)
	default:
		metrics.SignalsTotal.WithLabelValues(action, "executed").Inc()
		logger.Info("signal %s %s [%s] executed: size=%.6f price=%.6f equity=%.2f",
			sig.Action, sig.Coin, res.RequestID, res.Size, res.Price, res.AccountValue)
		e.notify(ctx, fmt.Sprintf("✅ %s %s size=%g @ %g lev=%dx, equity %.2f",
			sig.Action, sig.Coin, res.Size, res.Price, sig.Leverage, res.AccountValue))
	}
}

func (e *Engine) notify(ctx context.Context, msg string) {
	if e.notifier == nil {
		return
	}
	e.notifier.Send(context.WithoutCancel(ctx), msg)
}

func resultLabel(err error) string {
	switch {
	case models.IsFlat(err):
		return "flat"
	case models.IsValidation(err):
		return "invalid"
	case models.IsInsufficientBalance(err):
		return "insufficient_balance"
	case models.IsBusy(err):
		return "busy"
	case models.IsRateLimited(err):
		return "rate_limited"
	case models.IsTimeout(err):
		return "timeout"
	}
	return "error"
}
