package service

import (
	"sync/atomic"
	"time"
)

// State — то, что отдают health-эндпоинты. Пишут bootstrap, pricefeed и webhook-хендлер.
type State struct {
	ready     atomic.Bool
	startedAt time.Time

	wsConnected    atomic.Bool
	lastPriceUnix  atomic.Int64
	lastSignalUnix atomic.Int64
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.ready.Store(false)
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) SetWSConnected(v bool) { s.wsConnected.Store(v) }
func (s *State) WSConnected() bool     { return s.wsConnected.Load() }

func (s *State) TouchPrices(t time.Time) { s.lastPriceUnix.Store(t.Unix()) }
func (s *State) LastPrices() time.Time   { return fromUnix(s.lastPriceUnix.Load()) }

func (s *State) TouchSignal(t time.Time) { s.lastSignalUnix.Store(t.Unix()) }
func (s *State) LastSignal() time.Time   { return fromUnix(s.lastSignalUnix.Load()) }

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }

func fromUnix(u int64) time.Time {
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}
