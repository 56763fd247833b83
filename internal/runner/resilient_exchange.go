package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"webhook_bot/internal/metrics"
	"webhook_bot/internal/models"
	"webhook_bot/internal/modules/config"
	"webhook_bot/pkg/logger"
)

type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64
}

func RetryPolicyFromConfig(r config.Retry) RetryPolicy {
	return RetryPolicy{
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   r.BaseDelay,
		MaxDelay:    r.MaxDelay,
		Jitter:      r.Jitter,
	}
}

func (p RetryPolicy) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.MaxInterval = p.MaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = p.Jitter
	b.Reset()
	return b
}

// retry повторяет fn только на RateLimitedError. Остальные ошибки отдаются сразу.
func retry[T any](ctx context.Context, op string, p RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	b := p.newBackOff()

	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !models.IsRateLimited(err) || attempt >= p.MaxAttempts {
			return zero, err
		}

		delay := b.NextBackOff()
		metrics.ExchangeRetries.WithLabelValues(op).Inc()
		logger.Warn("%s rate limited (attempt %d/%d), retry in %s", op, attempt, p.MaxAttempts, delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, &models.TimeoutError{Op: op, Err: ctx.Err()}
		case <-timer.C:
		}
	}
}

// ResilientExchange оборачивает биржу: ретраи на rate limit для идемпотентных вызовов,
// сброс сессии после прочих ошибок. close и open не повторяются никогда.
type ResilientExchange struct {
	next    Exchange
	session SessionResetter
	policy  RetryPolicy
}

func NewResilientExchange(next Exchange, session SessionResetter, policy RetryPolicy) *ResilientExchange {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &ResilientExchange{next: next, session: session, policy: policy}
}

func (r *ResilientExchange) FetchAccountState(ctx context.Context, account string) (models.AccountState, error) {
	st, err := retry(ctx, "user_state", r.policy, func(ctx context.Context) (models.AccountState, error) {
		return r.next.FetchAccountState(ctx, account)
	})
	return st, r.observe(ctx, "user_state", err)
}

func (r *ResilientExchange) FetchMidPrices(ctx context.Context) (models.PriceBook, error) {
	book, err := retry(ctx, "all_mids", r.policy, r.next.FetchMidPrices)
	return book, r.observe(ctx, "all_mids", err)
}

func (r *ResilientExchange) FetchInstrumentMeta(ctx context.Context) (models.InstrumentMeta, error) {
	meta, err := retry(ctx, "meta", r.policy, r.next.FetchInstrumentMeta)
	return meta, r.observe(ctx, "meta", err)
}

func (r *ResilientExchange) SetLeverage(ctx context.Context, coin string, leverage int) error {
	_, err := retry(ctx, "update_leverage", r.policy, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.next.SetLeverage(ctx, coin, leverage)
	})
	return r.observe(ctx, "update_leverage", err)
}

func (r *ResilientExchange) ClosePosition(ctx context.Context, intent models.OrderIntent) error {
	return r.observe(ctx, "close", r.next.ClosePosition(ctx, intent))
}

func (r *ResilientExchange) PlaceMarketOrder(ctx context.Context, intent models.OrderIntent) error {
	return r.observe(ctx, "open", r.next.PlaceMarketOrder(ctx, intent))
}

func (r *ResilientExchange) observe(ctx context.Context, op string, err error) error {
	err = classify(ctx, op, err)

	outcome := "ok"
	switch {
	case err == nil:
	case models.IsRateLimited(err):
		outcome = "rate_limited"
	case models.IsTimeout(err):
		outcome = "timeout"
	case models.IsValidation(err):
		outcome = "rejected"
	default:
		outcome = "error"
		if r.session != nil {
			r.session.Reset(fmt.Sprintf("%s: %v", op, err))
			metrics.SessionResets.Inc()
		}
	}
	metrics.ExchangeCalls.WithLabelValues(op, outcome).Inc()
	return err
}

// classify приводит голые ошибки к таксономии: дедлайн — TimeoutError, остальное — ExchangeError.
func classify(ctx context.Context, op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		rl  *models.RateLimitedError
		ex  *models.ExchangeError
		to  *models.TimeoutError
		val *models.ValidationError
	)
	switch {
	case errors.As(err, &rl), errors.As(err, &to), errors.As(err, &val):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled), ctx.Err() != nil:
		return &models.TimeoutError{Op: op, Err: err}
	case errors.As(err, &ex):
		return err
	}
	return &models.ExchangeError{Op: op, Err: err}
}
