package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Websocket reads JSON price frames from a websocket endpoint.
//
// After connecting it sends {"op":"subscribe","symbol":...} and expects frames
// of the form {"symbol":"BTCUSDT","price":"64250.5","ts":1717000000000}.
// Frames for other symbols are ignored.
type Websocket struct {
	URL    string
	Dialer *websocket.Dialer
	Log    logrus.FieldLogger
}

func NewWebsocket(url string, log logrus.FieldLogger) *Websocket {
	return &Websocket{URL: url, Dialer: websocket.DefaultDialer, Log: log}
}

type subscribeFrame struct {
	Op     string `json:"op"`
	Symbol string `json:"symbol"`
}

type priceFrame struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	TS     int64           `json:"ts"`
}

func (w *Websocket) Subscribe(ctx context.Context, symbol string, _ decimal.Decimal) (<-chan Tick, error) {
	dialer := w.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, w.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", w.URL, err)
	}
	if err := conn.WriteJSON(subscribeFrame{Op: "subscribe", Symbol: symbol}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("subscribe %s: %w", symbol, err)
	}

	log := w.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log = log.WithField("feed", "websocket").WithField("symbol", symbol)

	out := make(chan Tick, 16)
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()
	go func() {
		defer close(out)
		defer close(done)
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					log.WithError(err).Warn("price stream ended")
				}
				return
			}
			var f priceFrame
			if err := json.Unmarshal(data, &f); err != nil {
				log.WithError(err).Debug("skipping malformed frame")
				continue
			}
			if !strings.EqualFold(f.Symbol, symbol) || !f.Price.IsPositive() {
				continue
			}
			at := time.Now().UTC()
			if f.TS > 0 {
				at = time.UnixMilli(f.TS).UTC()
			}
			select {
			case out <- Tick{Symbol: symbol, Price: f.Price, Time: at}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
