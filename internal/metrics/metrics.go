// Package metrics exposes the prometheus series updated by the execution engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_signals_total", Help: "Alerts handled by action and result"},
		[]string{"action", "result"},
	)
	ExchangeCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_exchange_calls_total", Help: "Exchange calls by op and outcome"},
		[]string{"op", "outcome"},
	)
	ExchangeRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_exchange_retries_total", Help: "Retries after a rate limit, by op"},
		[]string{"op"},
	)
	CacheRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_cache_refresh_total", Help: "Cache refreshes by entry and outcome"},
		[]string{"entry", "outcome"},
	)
	SessionResets = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "webhook_session_resets_total", Help: "Exchange session resets"},
	)
	Equity = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "webhook_account_equity_usd", Help: "Last observed account value"},
	)
)

func init() {
	prometheus.MustRegister(SignalsTotal, ExchangeCalls, ExchangeRetries, CacheRefreshes, SessionResets, Equity)
}

// Outcome сворачивает ошибку в метку.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}
