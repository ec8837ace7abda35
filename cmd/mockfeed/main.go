// mockfeed is a local stand-in for the trade feed: it speaks the same
// websocket protocol (subscribe/unsubscribe requests; trade, ping and
// error frames) and streams a synthetic price walk for the symbols it
// knows. Subscribing to anything else earns the same "Invalid symbol"
// error frame the real feed sends.
package main

import (
	"encoding/json"
	"flag"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type request struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

type trade struct {
	Symbol string  `json:"s"`
	Price  float32 `json:"p"`
	Volume float32 `json:"v"`
	Time   int64   `json:"t"`
}

type tradeFrame struct {
	Type string  `json:"type"`
	Data []trade `json:"data"`
}

type errorFrame struct {
	Type string `json:"type"`
	Msg  string `json:"msg"`
}

type pingFrame struct {
	Type string `json:"type"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func main() {
	addr := flag.String("addr", ":8191", "listen address")
	symbols := flag.String("symbols", "AAPL,MSFT,BINANCE:BTCUSDT", "comma-separated known symbols")
	interval := flag.Duration("interval", 500*time.Millisecond, "trade emission interval")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	known := make(map[string]bool)
	for _, s := range strings.Split(*symbols, ",") {
		if s = strings.TrimSpace(s); s != "" {
			known[s] = true
		}
	}

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		serveFeed(logger, known, *interval, w, r)
	})

	logger.Info("mockfeed listening", zap.String("addr", *addr), zap.Int("symbols", len(known)))
	if err := http.ListenAndServe(*addr, nil); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// feedClient is one connected subscriber. The write mutex serializes the
// trade ticker, pings and error replies onto the single websocket.
type feedClient struct {
	conn   *websocket.Conn
	logger *zap.Logger

	mu     sync.Mutex
	subs   map[string]bool
	prices map[string]float32
}

func serveFeed(logger *zap.Logger, known map[string]bool, interval time.Duration, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if token := r.URL.Query().Get("token"); token == "" {
		logger.Warn("client connected without token")
	}

	c := &feedClient{
		conn:   conn,
		logger: logger,
		subs:   make(map[string]bool),
		prices: make(map[string]float32),
	}
	logger.Info("client connected", zap.String("remote", conn.RemoteAddr().String()))

	done := make(chan struct{})
	go c.emitLoop(interval, done)
	c.readLoop(known)
	close(done)
}

func (c *feedClient) readLoop(known map[string]bool) {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logger.Info("client gone", zap.Error(err))
			return
		}
		var req request
		if err := json.Unmarshal(raw, &req); err != nil {
			c.logger.Warn("undecodable request", zap.ByteString("raw", raw))
			continue
		}
		switch req.Type {
		case "subscribe":
			if !known[req.Symbol] {
				c.write(errorFrame{Type: "error", Msg: "Invalid symbol"})
				continue
			}
			c.mu.Lock()
			c.subs[req.Symbol] = true
			c.mu.Unlock()
			c.logger.Info("subscribed", zap.String("symbol", req.Symbol))
		case "unsubscribe":
			c.mu.Lock()
			delete(c.subs, req.Symbol)
			c.mu.Unlock()
			c.logger.Info("unsubscribed", zap.String("symbol", req.Symbol))
		default:
			c.logger.Warn("unknown request type", zap.String("type", req.Type))
		}
	}
}

// emitLoop streams a synthetic random walk for every subscribed symbol and
// a ping every few trade rounds.
func (c *feedClient) emitLoop(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	pings := time.NewTicker(10 * time.Second)
	defer pings.Stop()

	for {
		select {
		case <-done:
			return
		case <-pings.C:
			if err := c.write(pingFrame{Type: "ping"}); err != nil {
				return
			}
		case <-ticker.C:
			batch := c.nextBatch()
			if len(batch) == 0 {
				continue
			}
			if err := c.write(tradeFrame{Type: "trade", Data: batch}); err != nil {
				return
			}
		}
	}
}

func (c *feedClient) nextBatch() []trade {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UnixMilli()
	var batch []trade
	for sym := range c.subs {
		price, ok := c.prices[sym]
		if !ok {
			price = 50 + rand.Float32()*200
		}
		price += (rand.Float32() - 0.5) * 2
		if price < 1 {
			price = 1
		}
		c.prices[sym] = price
		batch = append(batch, trade{
			Symbol: sym,
			Price:  price,
			Volume: float32(1 + rand.Intn(500)),
			Time:   now,
		})
	}
	return batch
}

func (c *feedClient) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}
