package feed

import "trade-watch/internal/types"

const (
	typeSubscribe   = "subscribe"
	typeUnsubscribe = "unsubscribe"

	typeError = "error"
	typePing  = "ping"
	typeTrade = "trade"
)

// request is an outbound frame telling the feed about an interest change.
type request struct {
	Type   string       `json:"type"`
	Symbol types.Symbol `json:"symbol"`
}

// envelope is the inbound frame shape. Type discriminates between error,
// ping and trade frames; Msg and Data are only set for the matching type.
type envelope struct {
	Type string               `json:"type"`
	Msg  string               `json:"msg,omitempty"`
	Data []types.TickerRecord `json:"data,omitempty"`
}

// Event is a decoded feed occurrence delivered to the event loop.
type Event interface{ feedEvent() }

// Opened reports a completed websocket handshake.
type Opened struct{}

// Closed reports a transport that dialed but then failed or was closed by
// the peer. User-initiated disconnects never produce a Closed event.
type Closed struct{ Err error }

// Trades carries one inbound batch of trades, in feed order.
type Trades struct{ Records []types.TickerRecord }

// ErrorMsg carries an error frame from the feed.
type ErrorMsg struct{ Msg string }

func (Opened) feedEvent()   {}
func (Closed) feedEvent()   {}
func (Trades) feedEvent()   {}
func (ErrorMsg) feedEvent() {}
