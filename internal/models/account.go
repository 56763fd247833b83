package models

import (
	"math"
	"time"
)

// flatEpsilon — всё, что меньше по модулю, считаем отсутствием позиции.
const flatEpsilon = 1e-9

type PositionState string

const (
	StateFlat  PositionState = "FLAT"
	StateLong  PositionState = "LONG"
	StateShort PositionState = "SHORT"
)

// StateOf выводит состояние из знакового размера позиции.
func StateOf(size float64) PositionState {
	switch {
	case math.Abs(size) < flatEpsilon:
		return StateFlat
	case size > 0:
		return StateLong
	default:
		return StateShort
	}
}

// AccountState — снимок аккаунта. Кэш заменяет его целиком, на месте не мутируется.
type AccountState struct {
	Equity      float64
	Positions   map[string]float64 // coin -> signed size (szi)
	EntryPrices map[string]float64 // coin -> entryPx
	RetrievedAt time.Time
}

func (a AccountState) Position(coin string) float64 {
	return a.Positions[coin]
}

type PriceBook struct {
	Mids        map[string]float64
	RetrievedAt time.Time
}

type InstrumentMeta struct {
	SizeDecimals map[string]int
	RetrievedAt  time.Time
}

// OrderIntent строится заново на каждую отправку. Price и SizeDecimals движок
// берёт из кэша, адаптер сам их не читает.
type OrderIntent struct {
	Coin         string
	IsBuy        bool
	Size         float64
	ReduceOnly   bool
	Price        float64 // опорная mid-цена
	SizeDecimals int
}
