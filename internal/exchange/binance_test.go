package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backtester/internal/config"
	"backtester/internal/model"
)

const miniTickerArray = `[
	{"e":"24hrMiniTicker","E":1700000000000,"s":"ETHUSDT","c":"2010.5","o":"2000","h":"2050","l":"1990","v":"1234.5","q":"0"},
	{"e":"24hrMiniTicker","E":1700000000000,"s":"BTCUSDT","c":"37000","o":"36500","h":"37200","l":"36400","v":"99","q":"0"}
]`

func TestParseMiniTickers(t *testing.T) {
	ticks, err := parseMiniTickers([]byte(miniTickerArray))
	require.NoError(t, err)
	require.Len(t, ticks, 2)

	assert.Equal(t, "binance", ticks[0].Exchange)
	assert.Equal(t, "ETHUSDT", ticks[0].Symbol)
	assert.Equal(t, int64(1700000000000), ticks[0].EventTime)
	assert.Equal(t, "2010.5", ticks[0].Close.String())
	assert.Equal(t, "2000", ticks[0].Open.String())
	assert.Equal(t, "1234.5", ticks[0].Volume.String())
}

func TestParseMiniTickers_SingleObject(t *testing.T) {
	ticks, err := parseMiniTickers([]byte(` {"e":"24hrMiniTicker","E":1,"s":"SOLUSDT","c":"60","o":"58","h":"61","l":"57","v":"10"}`))
	require.NoError(t, err)
	require.Len(t, ticks, 1)
	assert.Equal(t, "SOLUSDT", ticks[0].Symbol)
	assert.Equal(t, "61", ticks[0].High.String())
}

func TestParseMiniTickers_Invalid(t *testing.T) {
	_, err := parseMiniTickers([]byte(`not json`))
	assert.Error(t, err)

	ticks, err := parseMiniTickers([]byte(`[{"e":"24hrMiniTicker","E":1}]`))
	require.NoError(t, err)
	assert.Empty(t, ticks, "entries without a symbol are dropped")
}

func TestBinanceStreamClient_StartStream(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		_ = c.WriteMessage(websocket.TextMessage, []byte(`garbage`))
		_ = c.WriteMessage(websocket.TextMessage, []byte(miniTickerArray))
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, err := NewStreamClient("binance", discardLogger(), config.BinanceConfig{StreamURL: wsURL})
	require.NoError(t, err)
	assert.Equal(t, "binance", client.GetName())

	ctx, cancel := context.WithCancel(context.Background())
	ticks := make(chan model.PriceTick, 10)
	done := make(chan error, 1)
	go func() { done <- client.StartStream(ctx, ticks) }()

	var got []model.PriceTick
	for len(got) < 2 {
		select {
		case tick := <-ticks:
			got = append(got, tick)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for ticks")
		}
	}
	assert.Equal(t, "ETHUSDT", got[0].Symbol)
	assert.Equal(t, "BTCUSDT", got[1].Symbol)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop after cancel")
	}
}

func TestNewStreamClient_Unknown(t *testing.T) {
	_, err := NewStreamClient("kraken", discardLogger(), config.BinanceConfig{})
	assert.Error(t, err)
}
