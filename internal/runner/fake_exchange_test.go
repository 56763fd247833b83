package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"webhook_bot/internal/models"
)

// fakeExchange держит состояние аккаунта в памяти и пишет каждый мутирующий вызов.
type fakeExchange struct {
	mu sync.Mutex

	equity    float64
	positions map[string]float64
	entries   map[string]float64
	mids      map[string]float64
	decimals  map[string]int

	calls      []string
	intents    []models.OrderIntent
	stateCalls int
	midCalls   int
	metaCalls  int

	stateErr   error
	closeErr   error
	openErr    error
	levErrs    []error // по одной на вызов, дальше nil
	midErrs    []error
	midDelay   time.Duration
	closeStuck bool // close подтверждён, но позиция остаётся
	openNoFill bool
	openDelay  time.Duration
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		equity:    10000,
		positions: map[string]float64{},
		entries:   map[string]float64{},
		mids:      map[string]float64{"BTC": 50000, "ETH": 2500},
		decimals:  map[string]int{"BTC": 3, "ETH": 2},
	}
}

func (f *fakeExchange) FetchAccountState(_ context.Context, _ string) (models.AccountState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateCalls++
	if f.stateErr != nil {
		return models.AccountState{}, f.stateErr
	}
	pos := make(map[string]float64, len(f.positions))
	for k, v := range f.positions {
		pos[k] = v
	}
	ent := make(map[string]float64, len(f.entries))
	for k, v := range f.entries {
		ent[k] = v
	}
	return models.AccountState{Equity: f.equity, Positions: pos, EntryPrices: ent, RetrievedAt: time.Now()}, nil
}

func (f *fakeExchange) FetchMidPrices(_ context.Context) (models.PriceBook, error) {
	f.mu.Lock()
	f.midCalls++
	delay := f.midDelay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.midErrs) > 0 {
		err := f.midErrs[0]
		f.midErrs = f.midErrs[1:]
		return models.PriceBook{}, err
	}
	mids := make(map[string]float64, len(f.mids))
	for k, v := range f.mids {
		mids[k] = v
	}
	return models.PriceBook{Mids: mids, RetrievedAt: time.Now()}, nil
}

func (f *fakeExchange) FetchInstrumentMeta(_ context.Context) (models.InstrumentMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.metaCalls++
	dec := make(map[string]int, len(f.decimals))
	for k, v := range f.decimals {
		dec[k] = v
	}
	return models.InstrumentMeta{SizeDecimals: dec, RetrievedAt: time.Now()}, nil
}

func (f *fakeExchange) ClosePosition(_ context.Context, in models.OrderIntent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "close:"+in.Coin)
	f.intents = append(f.intents, in)
	if f.closeErr != nil {
		return f.closeErr
	}
	if !f.closeStuck {
		delete(f.positions, in.Coin)
		delete(f.entries, in.Coin)
	}
	return nil
}

func (f *fakeExchange) SetLeverage(_ context.Context, coin string, leverage int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf("leverage:%s:%d", coin, leverage))
	if len(f.levErrs) > 0 {
		err := f.levErrs[0]
		f.levErrs = f.levErrs[1:]
		return err
	}
	return nil
}

func (f *fakeExchange) PlaceMarketOrder(_ context.Context, in models.OrderIntent) error {
	f.mu.Lock()
	delay := f.openDelay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	side := "SELL"
	if in.IsBuy {
		side = "BUY"
	}
	f.calls = append(f.calls, fmt.Sprintf("open:%s:%s:%g", in.Coin, side, in.Size))
	f.intents = append(f.intents, in)
	if f.openErr != nil {
		return f.openErr
	}
	if f.openNoFill {
		return nil
	}
	if in.IsBuy {
		f.positions[in.Coin] += in.Size
	} else {
		f.positions[in.Coin] -= in.Size
	}
	f.entries[in.Coin] = f.mids[in.Coin]
	return nil
}

func (f *fakeExchange) Intents() []models.OrderIntent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.OrderIntent(nil), f.intents...)
}

func (f *fakeExchange) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeExchange) count(prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

type fakeSession struct {
	mu      sync.Mutex
	reasons []string
}

func (s *fakeSession) Reset(reason string) {
	s.mu.Lock()
	s.reasons = append(s.reasons, reason)
	s.mu.Unlock()
}

func (s *fakeSession) Resets() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reasons)
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *fakeNotifier) Send(_ context.Context, msg string) {
	n.mu.Lock()
	n.msgs = append(n.msgs, msg)
	n.mu.Unlock()
}

func (n *fakeNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}
