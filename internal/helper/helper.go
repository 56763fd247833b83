package helper

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Правила цены Hyperliquid для перпов: не больше 5 значащих цифр
// и не больше (6 - szDecimals) знаков после точки. Целые цены разрешены всегда.
const (
	maxSigFigs        = 5
	maxPerpPxDecimals = 6
)

func NormCoin(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// PriceDecimals — сколько знаков после точки допустимо для цены px.
func PriceDecimals(px float64, szDecimals int) int32 {
	if px <= 0 {
		return 0
	}
	intDigits := int(math.Floor(math.Log10(px))) + 1
	dec := maxSigFigs - intDigits
	if limit := maxPerpPxDecimals - szDecimals; dec > limit {
		dec = limit
	}
	if dec < 0 {
		dec = 0
	}
	return int32(dec)
}

// RoundPrice приводит цену к сетке биржи.
func RoundPrice(px float64, szDecimals int) float64 {
	if px <= 0 {
		return px
	}
	out, _ := decimal.NewFromFloat(px).Round(PriceDecimals(px, szDecimals)).Float64()
	return out
}

// SlippagePrice — агрессивная цена для IOC: mid*(1+s) на покупку, mid*(1-s) на продажу.
func SlippagePrice(mid float64, isBuy bool, slippage float64, szDecimals int) float64 {
	px := mid * (1 - slippage)
	if isBuy {
		px = mid * (1 + slippage)
	}
	return RoundPrice(px, szDecimals)
}

// RoundDownSize режет размер до szDecimals знаков, никогда не округляя вверх.
func RoundDownSize(sz float64, szDecimals int) float64 {
	if szDecimals < 0 {
		szDecimals = 0
	}
	out, _ := decimal.NewFromFloat(sz).Truncate(int32(szDecimals)).Float64()
	return out
}
