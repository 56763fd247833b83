package helper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriceDecimals(t *testing.T) {
	cases := []struct {
		px   float64
		sz   int
		want int32
	}{
		{px: 50123.4, sz: 5, want: 0},
		{px: 2512.37, sz: 4, want: 1},
		{px: 1.23456, sz: 0, want: 4},
		{px: 0.0123456, sz: 0, want: 6},
		{px: 0.0123456, sz: 2, want: 4},
		{px: 123456, sz: 0, want: 0},
		{px: 0, sz: 3, want: 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, PriceDecimals(tc.px, tc.sz), "px=%v sz=%d", tc.px, tc.sz)
	}
}

func TestSlippagePrice(t *testing.T) {
	assert.Equal(t, 52500.0, SlippagePrice(50000, true, 0.05, 5))
	assert.Equal(t, 47500.0, SlippagePrice(50000, false, 0.05, 5))
	assert.Equal(t, 2637.8, SlippagePrice(2512.2, true, 0.05, 4))
	assert.Equal(t, 0.0, SlippagePrice(0, true, 0.05, 1))
}

func TestRoundDownSize(t *testing.T) {
	assert.Equal(t, 0.019, RoundDownSize(0.0199, 3))
	assert.Equal(t, 12.0, RoundDownSize(12.9, 0))
	assert.Equal(t, 12.0, RoundDownSize(12.9, -1))
	assert.Equal(t, 0.5, RoundDownSize(0.5, 4))
}

func TestNormCoin(t *testing.T) {
	assert.Equal(t, "BTC", NormCoin(" btc "))
}
