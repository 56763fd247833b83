package service

import (
	"strconv"

	"github.com/bytedance/sonic"
)

const channelAllMids = "allMids"

type subscribeMsg struct {
	Method       string            `json:"method"`
	Subscription map[string]string `json:"subscription"`
}

var subscribeAllMids = subscribeMsg{
	Method:       "subscribe",
	Subscription: map[string]string{"type": channelAllMids},
}

var pingMsg = map[string]string{"method": "ping"}

type frame struct {
	Channel string `json:"channel"`
	Data    struct {
		Mids map[string]string `json:"mids"`
	} `json:"data"`
}

// decodeMids достаёт mid-цены из кадра allMids. Остальные каналы (pong,
// subscriptionResponse) и битые кадры отбрасываются.
func decodeMids(msg []byte) (map[string]float64, bool) {
	var f frame
	if err := sonic.Unmarshal(msg, &f); err != nil {
		return nil, false
	}
	if f.Channel != channelAllMids || len(f.Data.Mids) == 0 {
		return nil, false
	}

	mids := make(map[string]float64, len(f.Data.Mids))
	for coin, s := range f.Data.Mids {
		px, err := strconv.ParseFloat(s, 64)
		if err != nil || px <= 0 {
			continue
		}
		mids[coin] = px
	}
	return mids, len(mids) > 0
}
