package service

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"webhook_bot/internal/models"
	"webhook_bot/internal/runner"
	"webhook_bot/pkg/logger"
)

const requestIDHeader = "X-Request-ID"

type SignalHandler interface {
	HandleSignal(ctx context.Context, requestID string, raw models.RawSignal) (runner.Result, error)
}

// Info — статичная часть ответа /health.
type Info struct {
	Service          string
	WalletConfigured bool
	DefaultCoin      string
}

type Handlers struct {
	engine SignalHandler
	state  *State
	info   Info
}

func NewHandlers(engine SignalHandler, state *State, info Info) *Handlers {
	return &Handlers{engine: engine, state: state, info: info}
}

// RequestID кладёт id запроса в контекст gin и в заголовок ответа.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(requestIDHeader, id)

		start := time.Now()
		c.Next()
		logger.Info("[HTTP] %s %s %d %s id=%s", c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start), id)
	}
}

func (h *Handlers) Webhook(c *gin.Context) {
	id := c.GetString("request_id")

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.fail(c, id, models.Validationf("read body: %v", err))
		return
	}
	var raw models.RawSignal
	if err := sonic.Unmarshal(body, &raw); err != nil {
		h.fail(c, id, models.Validationf("invalid json: %v", err))
		return
	}

	res, err := h.engine.HandleSignal(c.Request.Context(), id, raw)
	if err != nil {
		h.fail(c, id, err)
		return
	}

	h.state.TouchSignal(time.Now())
	h.state.SetReady(true)

	resp := gin.H{
		"status":        "executed",
		"request_id":    id,
		"coin":          res.Coin,
		"side":          res.Side,
		"leverage":      res.Leverage,
		"size":          res.Size,
		"price":         res.Price,
		"account_value": res.AccountValue,
		"position":      res.Position,
		"position_size": res.PositionSize,
	}
	if res.ClosedSize > 0 {
		resp["closed_size"] = res.ClosedSize
	}
	if res.NoTrade {
		resp["note"] = "no new trade"
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handlers) fail(c *gin.Context, id string, err error) {
	resp := gin.H{"status": "error", "detail": err.Error(), "request_id": id}
	if models.IsFlat(err) {
		resp["flat"] = true
	}
	c.JSON(StatusFor(err), resp)
}

// StatusFor — единственное место, где ошибка движка превращается в HTTP-код.
// Для flat-ошибки код считается по причине, флаг flat уходит в тело.
func StatusFor(err error) int {
	switch {
	case models.IsValidation(err), models.IsInsufficientBalance(err):
		return http.StatusBadRequest
	case models.IsRateLimited(err):
		return http.StatusTooManyRequests
	case models.IsBusy(err), models.IsTimeout(err):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":               "ok",
		"service":              h.info.Service,
		"wallet_configured":    h.info.WalletConfigured,
		"default_coin":         h.info.DefaultCoin,
		"ready":                h.state.Ready(),
		"price_feed_connected": h.state.WSConnected(),
		"uptime_sec":           int64(h.state.Uptime().Seconds()),
		"last_signal_unix":     unixOrZero(h.state.LastSignal()),
		"last_prices_unix":     unixOrZero(h.state.LastPrices()),
	})
}

func (h *Handlers) Livez(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (h *Handlers) Readyz(c *gin.Context) {
	if !h.state.Ready() {
		c.String(http.StatusServiceUnavailable, "not ready")
		return
	}
	c.String(http.StatusOK, "ready")
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}
