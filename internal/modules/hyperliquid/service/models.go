package service

import (
	"strconv"
	"time"

	"github.com/pkg/errors"

	"webhook_bot/internal/models"
)

// rawPosition — то, что нам нужно из assetPositions[].position.
type rawPosition struct {
	Coin    string
	Szi     string
	EntryPx *string
}

// buildAccountState собирает снимок из строковых полей user state.
// Equity берётся из crossMarginSummary, при пустом значении — из marginSummary.
func buildAccountState(crossValue, marginValue string, positions []rawPosition, at time.Time) (models.AccountState, error) {
	value := crossValue
	if value == "" {
		value = marginValue
	}
	equity, err := parseFloat("accountValue", value)
	if err != nil {
		return models.AccountState{}, err
	}

	st := models.AccountState{
		Equity:      equity,
		Positions:   make(map[string]float64, len(positions)),
		EntryPrices: make(map[string]float64, len(positions)),
		RetrievedAt: at,
	}
	for _, p := range positions {
		szi, err := parseFloat("szi", p.Szi)
		if err != nil {
			return models.AccountState{}, errors.Wrapf(err, "position %s", p.Coin)
		}
		if models.StateOf(szi) == models.StateFlat {
			continue
		}
		st.Positions[p.Coin] = szi
		if p.EntryPx != nil {
			if px, err := strconv.ParseFloat(*p.EntryPx, 64); err == nil {
				st.EntryPrices[p.Coin] = px
			}
		}
	}
	return st, nil
}

func buildPriceBook(mids map[string]string, at time.Time) models.PriceBook {
	book := models.PriceBook{Mids: make(map[string]float64, len(mids)), RetrievedAt: at}
	for coin, s := range mids {
		px, err := strconv.ParseFloat(s, 64)
		if err != nil || px <= 0 {
			continue
		}
		book.Mids[coin] = px
	}
	return book
}

func parseFloat(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parse %s %q", field, s)
	}
	return v, nil
}
