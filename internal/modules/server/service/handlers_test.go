package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webhook_bot/internal/models"
	"webhook_bot/internal/runner"
)

type fakeEngine struct {
	raw   models.RawSignal
	reqID string
	res   runner.Result
	err   error
}

func (f *fakeEngine) HandleSignal(_ context.Context, id string, raw models.RawSignal) (runner.Result, error) {
	f.raw, f.reqID = raw, id
	return f.res, f.err
}

func newTestRouter(engine SignalHandler, state *State) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandlers(engine, state, Info{Service: "webhook_bot", WalletConfigured: true, DefaultCoin: "BTC"})
	r := gin.New()
	r.Use(RequestID())
	r.POST("/webhook", h.Webhook)
	r.GET("/health", h.Health)
	r.GET("/livez", h.Livez)
	r.GET("/readyz", h.Readyz)
	return r
}

func do(r http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	return m
}

func TestWebhook_Executed(t *testing.T) {
	eng := &fakeEngine{res: runner.Result{
		Coin: "BTC", Side: models.SideBuy, Leverage: 5, Size: 0.02, Price: 50010,
		AccountValue: 9990, Position: models.StateLong, PositionSize: 0.02, ClosedSize: 0.5,
	}}
	state := NewState()
	r := newTestRouter(eng, state)

	w := do(r, http.MethodPost, "/webhook", `{"signal":"buy","coin":"btc","leverage":"5","risk_pct":2}`,
		map[string]string{requestIDHeader: "abc-123"})
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "executed", body["status"])
	assert.Equal(t, "abc-123", body["request_id"])
	assert.Equal(t, 0.02, body["size"])
	assert.Equal(t, 0.5, body["closed_size"])
	assert.NotContains(t, body, "note")
	assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))

	assert.Equal(t, "buy", eng.raw.Signal)
	assert.Equal(t, "5", eng.raw.Leverage)
	assert.Equal(t, 2.0, eng.raw.RiskPct)
	assert.True(t, state.Ready())
	assert.False(t, state.LastSignal().IsZero())
}

func TestWebhook_NoTradeNote(t *testing.T) {
	eng := &fakeEngine{res: runner.Result{Coin: "BTC", Side: models.SideBuy, NoTrade: true, Size: 0.3}}
	w := do(newTestRouter(eng, NewState()), http.MethodPost, "/webhook", `{"action":"buy"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	assert.Equal(t, "no new trade", body["note"])
	assert.NotContains(t, body, "closed_size")
	assert.NotEmpty(t, body["request_id"])
}

func TestWebhook_BadJSON(t *testing.T) {
	eng := &fakeEngine{}
	w := do(newTestRouter(eng, NewState()), http.MethodPost, "/webhook", `{"action":`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", decode(t, w)["status"])
	assert.Empty(t, eng.reqID, "engine must not be called")
}

func TestWebhook_ErrorStatuses(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		flat bool
	}{
		{"validation", models.Validationf("invalid action"), http.StatusBadRequest, false},
		{"balance", &models.InsufficientBalanceError{Equity: 1, Required: 10}, http.StatusBadRequest, false},
		{"rate limited", &models.RateLimitedError{Op: "meta", Err: errors.New("429")}, http.StatusTooManyRequests, false},
		{"busy", &models.BusyError{Key: "0xabc:BTC"}, http.StatusServiceUnavailable, false},
		{"timeout", &models.TimeoutError{Op: "open", Err: context.DeadlineExceeded}, http.StatusServiceUnavailable, false},
		{"exchange", &models.ExchangeError{Op: "close", Err: errors.New("boom")}, http.StatusInternalServerError, false},
		{"flat", &models.SequenceError{Step: "open", Flat: true, Err: errors.New("boom")}, http.StatusInternalServerError, true},
		{"flat after rate limit", &models.SequenceError{Step: "open", Flat: true, Err: &models.RateLimitedError{Op: "open", Err: errors.New("429")}}, http.StatusTooManyRequests, true},
		{"flat after balance drop", &models.SequenceError{Step: "size", Flat: true, Err: &models.InsufficientBalanceError{Equity: 1, Required: 10}}, http.StatusBadRequest, true},
		{"flat after timeout", &models.SequenceError{Step: "open", Flat: true, Err: &models.TimeoutError{Op: "open", Err: context.DeadlineExceeded}}, http.StatusServiceUnavailable, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			state := NewState()
			w := do(newTestRouter(&fakeEngine{err: tc.err}, state), http.MethodPost, "/webhook", `{"action":"buy"}`, nil)
			assert.Equal(t, tc.code, w.Code)

			body := decode(t, w)
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, tc.err.Error(), body["detail"])
			if tc.flat {
				assert.Equal(t, true, body["flat"])
			} else {
				assert.NotContains(t, body, "flat")
			}
			assert.False(t, state.Ready())
		})
	}
}

func TestHealthEndpoints(t *testing.T) {
	state := NewState()
	r := newTestRouter(&fakeEngine{}, state)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/livez", "", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodGet, "/readyz", "", nil).Code)

	state.SetReady(true)
	state.SetWSConnected(true)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/readyz", "", nil).Code)

	w := do(r, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["wallet_configured"])
	assert.Equal(t, "BTC", body["default_coin"])
	assert.Equal(t, true, body["price_feed_connected"])
	assert.Equal(t, 0.0, body["last_signal_unix"])
}
