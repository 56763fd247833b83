package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"webhook_bot/internal/models"
	"webhook_bot/pkg/logger"
)

// PriceSink принимает свежие книги mid-цен.
type PriceSink interface {
	StorePrices(book models.PriceBook)
}

type StatusSink interface {
	SetWSConnected(v bool)
	TouchPrices(t time.Time)
}

// Client держит подписку allMids и переподключается с экспоненциальной паузой.
type Client struct {
	url    string
	dialer *websocket.Dialer
	sink   PriceSink
	status StatusSink

	pingEvery time.Duration
	minDelay  time.Duration
	maxDelay  time.Duration
	now       func() time.Time
}

func NewClient(url string, sink PriceSink, status StatusSink) *Client {
	return &Client{
		url:       url,
		dialer:    &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		sink:      sink,
		status:    status,
		pingEvery: 50 * time.Second, // Hyperliquid рвёт соединение после минуты тишины
		minDelay:  time.Second,
		maxDelay:  30 * time.Second,
		now:       time.Now,
	}
}

// Run блокируется до отмены ctx.
func (c *Client) Run(ctx context.Context) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.minDelay
	b.MaxInterval = c.maxDelay
	b.Reset()

	for {
		got, err := c.session(ctx)
		c.status.SetWSConnected(false)
		if ctx.Err() != nil {
			return
		}
		if got {
			b.Reset()
		}

		delay := b.NextBackOff()
		logger.Warn("[WS] allMids stream: %v, reconnect in %s", err, delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// session — одно соединение. got=true, если успели получить хотя бы одну книгу.
func (c *Client) session(ctx context.Context) (got bool, err error) {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return false, errors.Wrap(err, "dial")
	}
	defer conn.Close()

	if err := conn.WriteJSON(subscribeAllMids); err != nil {
		return false, errors.Wrap(err, "subscribe")
	}
	c.status.SetWSConnected(true)
	logger.Info("[WS] subscribed to allMids at %s", c.url)

	// keepalive и закрытие по ctx; пишет в conn только эта горутина
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		t := time.NewTicker(c.pingEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-stop:
				return
			case <-t.C:
				if err := conn.WriteJSON(pingMsg); err != nil {
					_ = conn.Close()
					return
				}
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return got, errors.Wrap(err, "read")
		}
		mids, ok := decodeMids(msg)
		if !ok {
			continue
		}
		now := c.now()
		c.sink.StorePrices(models.PriceBook{Mids: mids, RetrievedAt: now})
		c.status.TouchPrices(now)
		got = true
	}
}
