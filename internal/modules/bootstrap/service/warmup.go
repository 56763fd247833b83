package service

import (
	"context"
	"fmt"
	"time"

	"webhook_bot/pkg/logger"
)

type Warmer interface {
	Warmup(ctx context.Context) error
}

type Readiness interface {
	SetReady(v bool)
}

type Notifier interface {
	Send(ctx context.Context, msg string)
}

// Warmuper прогревает мету, цены и аккаунт до первого алерта.
type Warmuper struct {
	cache   Warmer
	state   Readiness
	n       Notifier
	timeout time.Duration
}

func NewWarmuper(cache Warmer, state Readiness, n Notifier, timeout time.Duration) *Warmuper {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Warmuper{cache: cache, state: state, n: n, timeout: timeout}
}

// Warmup при ошибке только логирует: готовность тогда выставит первый успешный алерт.
func (w *Warmuper) Warmup(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	if err := w.cache.Warmup(ctx); err != nil {
		logger.Warn("[BOOT] warmup error: %v", err)
		w.n.Send(ctx, "⚠️ warmup finished with error: "+err.Error())
		return err
	}

	w.state.SetReady(true)
	logger.Info("[BOOT] warmup done in %s", time.Since(start))
	w.n.Send(ctx, fmt.Sprintf("✅ webhook bot ready, warmup took %s", time.Since(start).Round(time.Millisecond)))
	return nil
}
