package runner

import (
	"math"

	"github.com/shopspring/decimal"

	"webhook_bot/internal/models"
)

type SizeResult struct {
	Notional float64 // USD после подтяжки до минимального номинала
	RawSize  float64
	Size     float64 // округлён вниз до sizeDecimals
	Raised   bool    // номинал подняли до minNotional
}

// CalcSize считает размер ордера в монетах:
//
//	notional = max(balance * riskFraction * leverage, minNotional)
//	size     = floor(notional / price, sizeDecimals)
//
// Округление только вниз, иначе можно превысить целевой риск.
func CalcSize(balance, riskFraction, leverage, price float64, sizeDecimals int, minNotional float64) (SizeResult, error) {
	if !(price > 0) || math.IsInf(price, 0) {
		return SizeResult{}, models.Validationf("price must be > 0, got %v", price)
	}
	if !(leverage > 0) {
		return SizeResult{}, models.Validationf("leverage must be > 0, got %v", leverage)
	}
	if riskFraction < 0 || math.IsNaN(riskFraction) {
		return SizeResult{}, models.Validationf("risk fraction must be >= 0, got %v", riskFraction)
	}
	if sizeDecimals < 0 {
		sizeDecimals = 0
	}
	if balance < 0 {
		balance = 0
	}

	res := SizeResult{Notional: balance * riskFraction * leverage}
	if res.Notional < minNotional {
		res.Notional = minNotional
		res.Raised = true
	}

	res.RawSize = res.Notional / price
	if math.IsNaN(res.RawSize) || math.IsInf(res.RawSize, 0) {
		return SizeResult{}, models.Validationf("invalid raw size %v", res.RawSize)
	}

	res.Size, _ = decimal.NewFromFloat(res.RawSize).Truncate(int32(sizeDecimals)).Float64()
	if res.Size <= 0 {
		return SizeResult{}, models.Validationf("size %.10f rounds to zero at %d decimals", res.RawSize, sizeDecimals)
	}
	return res, nil
}

// Margin — сколько equity съест ордер при данном плече.
func (r SizeResult) Margin(leverage float64) float64 {
	return r.Notional / leverage
}
