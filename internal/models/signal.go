package models

// Side — направление сигнала: "BUY"/"SELL".
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) IsBuy() bool { return s == SideBuy }

// Target — позиция, к которой ведёт сигнал.
func (s Side) Target() PositionState {
	if s == SideBuy {
		return StateLong
	}
	return StateShort
}

// RawSignal — тело алерта как пришло. Leverage и RiskPct могут быть числом или строкой.
type RawSignal struct {
	Action   string `json:"action"`
	Signal   string `json:"signal"`
	Coin     string `json:"coin"`
	Leverage any    `json:"leverage"`
	RiskPct  any    `json:"risk_pct"`
	Mode     string `json:"mode"`
}

// Signal — провалидированный алерт. После ParseSignal не меняется.
type Signal struct {
	Action   Side
	Coin     string
	Leverage int
	RiskPct  float64 // проценты: 2 => 2% equity
	Mode     string
}
