package service

import (
	"context"
	"sync"

	"webhook_bot/pkg/logger"
)

// Session лениво создаёт клиент один раз и держит его до Reset.
// После сброса следующий Get строит клиент заново.
type Session[T any] struct {
	build func(ctx context.Context) (T, error)

	mu     sync.Mutex
	client T
	ok     bool
	gen    uint64
}

func NewSession[T any](build func(ctx context.Context) (T, error)) *Session[T] {
	return &Session[T]{build: build}
}

func (s *Session[T]) Get(ctx context.Context) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ok {
		return s.client, nil
	}
	c, err := s.build(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	s.client, s.ok = c, true
	s.gen++
	return c, nil
}

func (s *Session[T]) Reset(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ok {
		return
	}
	logger.Warn("hyperliquid session reset: %s", reason)
	var zero T
	s.client, s.ok = zero, false
}

// Generation растёт на каждое успешное построение клиента.
func (s *Session[T]) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}
