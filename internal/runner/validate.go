package runner

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"webhook_bot/internal/models"
	"webhook_bot/internal/modules/config"
	"webhook_bot/pkg/logger"
)

// Limits — дефолты и границы, которыми нормализуется алерт.
type Limits struct {
	DefaultCoin     string
	DefaultLeverage int
	MinLeverage     int
	MaxLeverage     int
	DefaultRiskPct  float64
	MaxRiskPct      float64
}

func LimitsFromConfig(t config.Trading) Limits {
	return Limits{
		DefaultCoin:     t.DefaultCoin,
		DefaultLeverage: t.DefaultLeverage,
		MinLeverage:     t.MinLeverage,
		MaxLeverage:     t.MaxLeverage,
		DefaultRiskPct:  t.DefaultRiskPct,
		MaxRiskPct:      t.MaxRiskPct,
	}
}

// ParseSignal превращает сырой payload в Signal или возвращает ValidationError.
// Плохие leverage/risk_pct не роняют запрос: подставляется дефолт.
func ParseSignal(raw models.RawSignal, l Limits) (models.Signal, error) {
	action := strings.ToLower(strings.TrimSpace(raw.Action))
	if action == "" {
		action = strings.ToLower(strings.TrimSpace(raw.Signal))
	}

	var side models.Side
	switch action {
	case "buy":
		side = models.SideBuy
	case "sell":
		side = models.SideSell
	case "":
		return models.Signal{}, models.Validationf("missing action")
	default:
		return models.Signal{}, models.Validationf("invalid action %q", action)
	}

	coin := strings.ToUpper(strings.TrimSpace(raw.Coin))
	if coin == "" {
		coin = l.DefaultCoin
	}
	if coin == "" {
		return models.Signal{}, models.Validationf("missing coin")
	}

	return models.Signal{
		Action:   side,
		Coin:     coin,
		Leverage: normalizeLeverage(raw.Leverage, l),
		RiskPct:  normalizeRisk(raw.RiskPct, l),
		Mode:     strings.ToLower(strings.TrimSpace(raw.Mode)),
	}, nil
}

func normalizeLeverage(v any, l Limits) int {
	lev := l.DefaultLeverage
	if v != nil {
		f, ok := positiveNumber(v)
		if ok && f >= 1 {
			lev = int(math.Floor(f))
		} else {
			logger.Warn("invalid leverage %v in payload, using default %d", v, l.DefaultLeverage)
		}
	}
	return clampInt(lev, l.MinLeverage, l.MaxLeverage)
}

func normalizeRisk(v any, l Limits) float64 {
	risk := l.DefaultRiskPct
	if v != nil {
		f, ok := positiveNumber(v)
		if ok {
			risk = f
		} else {
			logger.Warn("invalid risk_pct %v in payload, using default %.4f", v, l.DefaultRiskPct)
		}
	}
	return math.Max(0, math.Min(risk, l.MaxRiskPct))
}

// positiveNumber принимает число или строку с числом. Ноль, отрицательные, NaN и Inf — мимо.
func positiveNumber(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		p, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = p
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = p
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0, false
	}
	return f, true
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
