package service

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"webhook_bot/internal/models"
)

var rateLimitMarkers = []string{"429", "rate limit", "too many requests"}

// classify раскладывает ошибку SDK по таксономии движка.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &models.TimeoutError{Op: op, Err: err}
	}

	msg := strings.ToLower(err.Error())
	for _, m := range rateLimitMarkers {
		if strings.Contains(msg, m) {
			return &models.RateLimitedError{Op: op, Err: err}
		}
	}
	return &models.ExchangeError{Op: op, Err: errors.Wrap(err, "hyperliquid")}
}
