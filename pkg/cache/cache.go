// Package cache holds a TTL-bounded value with single-flight refresh.
package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Fetcher достаёт свежее значение из источника.
type Fetcher[T any] func(ctx context.Context) (T, error)

type Options struct {
	TTL time.Duration
	// MaxStale — насколько старое значение можно отдавать, если ServeStale(err) == true.
	MaxStale time.Duration
	// FetchTimeout ограничивает один поход в источник. 0 — без ограничения.
	FetchTimeout time.Duration
	ServeStale   func(err error) bool
	// Observe вызывается после каждого похода в источник.
	Observe func(name string, err error)
	Now     func() time.Time
}

// Entry — значение + время получения + ttl. Чтение старше ttl запускает обновление,
// конкурентные обновления схлопываются в один fetch.
type Entry[T any] struct {
	name  string
	fetch Fetcher[T]
	opts  Options

	mu        sync.RWMutex
	value     T
	fetchedAt time.Time
	has       bool
	gen       uint64

	group singleflight.Group
}

func New[T any](name string, fetch Fetcher[T], opts Options) *Entry[T] {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Entry[T]{name: name, fetch: fetch, opts: opts}
}

func (e *Entry[T]) Name() string { return e.name }

// Get отдаёт закэшированное значение, пока оно моложе TTL, иначе обновляет.
func (e *Entry[T]) Get(ctx context.Context) (T, error) {
	e.mu.RLock()
	v, at, has, gen := e.value, e.fetchedAt, e.has, e.gen
	e.mu.RUnlock()

	if has && e.opts.Now().Sub(at) <= e.opts.TTL {
		return v, nil
	}
	return e.refresh(ctx, gen)
}

// Refresh игнорирует TTL, но по-прежнему делит fetch с конкурентами того же поколения.
func (e *Entry[T]) Refresh(ctx context.Context) (T, error) {
	e.mu.RLock()
	gen := e.gen
	e.mu.RUnlock()
	return e.refresh(ctx, gen)
}

// Invalidate выбрасывает значение. Fetch, начатый до вызова, в кэш уже не попадёт.
func (e *Entry[T]) Invalidate() {
	e.mu.Lock()
	var zero T
	e.value = zero
	e.has = false
	e.fetchedAt = time.Time{}
	e.gen++
	e.mu.Unlock()
}

// Store кладёт значение, полученное в обход Fetcher (например, из websocket).
func (e *Entry[T]) Store(v T, at time.Time) {
	e.mu.Lock()
	e.value = v
	e.fetchedAt = at
	e.has = true
	e.gen++
	e.mu.Unlock()
}

// Peek — текущее значение без похода в источник.
func (e *Entry[T]) Peek() (T, time.Time, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.value, e.fetchedAt, e.has
}

func (e *Entry[T]) refresh(ctx context.Context, gen uint64) (T, error) {
	ch := e.group.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		fctx := context.WithoutCancel(ctx)
		if e.opts.FetchTimeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(fctx, e.opts.FetchTimeout)
			defer cancel()
		}

		v, err := e.fetch(fctx)
		if e.opts.Observe != nil {
			e.opts.Observe(e.name, err)
		}
		if err != nil {
			return nil, err
		}

		e.mu.Lock()
		if e.gen == gen {
			e.value = v
			e.fetchedAt = e.opts.Now()
			e.has = true
		}
		e.mu.Unlock()
		return v, nil
	})

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return e.fallback(res.Err)
		}
		return res.Val.(T), nil
	}
}

func (e *Entry[T]) fallback(err error) (T, error) {
	var zero T
	if e.opts.ServeStale == nil || !e.opts.ServeStale(err) {
		return zero, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.has && e.opts.Now().Sub(e.fetchedAt) <= e.opts.MaxStale {
		return e.value, nil
	}
	return zero, err
}

// Keyed — набор Entry по ключу, создаются лениво.
type Keyed[K comparable, T any] struct {
	name  string
	fetch func(ctx context.Context, key K) (T, error)
	opts  Options

	mu      sync.Mutex
	entries map[K]*Entry[T]
}

func NewKeyed[K comparable, T any](name string, fetch func(ctx context.Context, key K) (T, error), opts Options) *Keyed[K, T] {
	return &Keyed[K, T]{
		name:    name,
		fetch:   fetch,
		opts:    opts,
		entries: make(map[K]*Entry[T]),
	}
}

func (k *Keyed[K, T]) Entry(key K) *Entry[T] {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.entries[key]
	if !ok {
		e = New(k.name, func(ctx context.Context) (T, error) {
			return k.fetch(ctx, key)
		}, k.opts)
		k.entries[key] = e
	}
	return e
}

func (k *Keyed[K, T]) InvalidateAll() {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, e := range k.entries {
		e.Invalidate()
	}
}
