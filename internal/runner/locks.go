package runner

import (
	"context"
	"sync"

	"webhook_bot/internal/models"
)

// SequenceLocks — по одному слоту на ключ account:coin. Второй алерт по той же паре
// ждёт, пока первый не закончит, либо получает BusyError по ctx.
type SequenceLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewSequenceLocks() *SequenceLocks {
	return &SequenceLocks{slots: make(map[string]chan struct{})}
}

func SequenceKey(account, coin string) string {
	return account + ":" + coin
}

func (l *SequenceLocks) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		l.slots[key] = slot
	}
	l.mu.Unlock()

	var once sync.Once
	release := func() { once.Do(func() { <-slot }) }

	// свободный слот берём сразу, даже если ctx уже отменён
	select {
	case slot <- struct{}{}:
		return release, nil
	default:
	}

	select {
	case slot <- struct{}{}:
		return release, nil
	case <-ctx.Done():
		return nil, &models.BusyError{Key: key}
	}
}

// Busy — занят ли ключ прямо сейчас.
func (l *SequenceLocks) Busy(key string) bool {
	l.mu.Lock()
	slot, ok := l.slots[key]
	l.mu.Unlock()
	return ok && len(slot) > 0
}
