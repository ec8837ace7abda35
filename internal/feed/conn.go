package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"trade-watch/internal/logger"
	"trade-watch/internal/types"
)

// ErrNotConnected is returned when a request is sent while no transport is
// open.
var ErrNotConnected = errors.New("feed: not connected")

// State is the connection lifecycle state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return "disconnected"
}

// Conn is the websocket session with the trade feed. It holds at most one
// live transport: connecting again closes whatever transport the slot held
// before dialing, so two live transports can never coexist.
//
// Decoded frames surface on Events as Opened, Closed, Trades and ErrorMsg
// values. Ping frames are treated as liveness heartbeats and dropped;
// undecodable frames are logged and dropped. Events from a transport that
// has since been replaced or deliberately closed are suppressed, keyed by
// a generation counter bumped on every Connect and Disconnect.
type Conn struct {
	rawURL string
	dialer *websocket.Dialer
	events chan Event

	mu    sync.Mutex
	ws    *websocket.Conn
	state State
	gen   uint64
}

// NewConn returns a disconnected Conn that will dial rawURL.
func NewConn(rawURL string) *Conn {
	return &Conn{
		rawURL: rawURL,
		dialer: websocket.DefaultDialer,
		events: make(chan Event, 16),
	}
}

// Events returns the stream of decoded feed events. The channel is never
// closed; it goes quiet when the connection is down.
func (c *Conn) Events() <-chan Event { return c.events }

// State reports the current lifecycle state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect validates the feed URL, embeds the API key as a query
// credential, and dials asynchronously. A URL that cannot be used is
// reported synchronously and leaves the state Disconnected. Otherwise the
// state is Connecting until the handshake resolves into an Opened or
// Closed event.
//
// Connecting while a transport is open replaces it: the old transport is
// closed first and its remaining events are suppressed.
func (c *Conn) Connect(ctx context.Context, apiKey string) error {
	u, err := url.Parse(c.rawURL)
	if err != nil {
		return fmt.Errorf("invalid feed URL %q: %w", c.rawURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid feed URL %q: scheme must be ws or wss", c.rawURL)
	}
	q := u.Query()
	q.Set("token", apiKey)
	u.RawQuery = q.Encode()

	c.mu.Lock()
	c.gen++
	gen := c.gen
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
	c.state = Connecting
	c.mu.Unlock()

	go c.dial(ctx, u.String(), gen)
	return nil
}

// Disconnect drops the transport unconditionally. No Closed event follows
// a user-initiated disconnect.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
	c.state = Disconnected
}

// Subscribe asks the feed to stream trades for sym. The feed tolerates
// re-subscribing an already subscribed symbol.
func (c *Conn) Subscribe(sym types.Symbol) error {
	return c.send(request{Type: typeSubscribe, Symbol: sym})
}

// Unsubscribe tells the feed the symbol is no longer wanted.
func (c *Conn) Unsubscribe(sym types.Symbol) error {
	return c.send(request{Type: typeUnsubscribe, Symbol: sym})
}

func (c *Conn) send(req request) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Connected || c.ws == nil {
		return ErrNotConnected
	}
	return c.ws.WriteJSON(req)
}

func (c *Conn) dial(ctx context.Context, u string, gen uint64) {
	ws, _, err := c.dialer.DialContext(ctx, u, nil)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		if err == nil {
			ws.Close()
		}
		return
	}
	if err != nil {
		c.state = Disconnected
		c.mu.Unlock()
		c.emit(gen, Closed{Err: err})
		return
	}
	c.ws = ws
	c.state = Connected
	c.mu.Unlock()

	c.emit(gen, Opened{})
	c.readLoop(ws, gen)
}

func (c *Conn) readLoop(ws *websocket.Conn, gen uint64) {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			stale := c.gen != gen
			if !stale {
				c.ws = nil
				c.state = Disconnected
			}
			c.mu.Unlock()
			if !stale {
				c.events <- Closed{Err: err}
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			logger.Error(context.Background(), "Dropping undecodable feed frame", "error", err)
			continue
		}
		switch env.Type {
		case typePing:
			// liveness heartbeat only
		case typeError:
			c.emit(gen, ErrorMsg{Msg: env.Msg})
		case typeTrade:
			c.emit(gen, Trades{Records: env.Data})
		default:
			logger.Debug(context.Background(), "Ignoring feed frame with unknown type", "type", env.Type)
		}
	}
}

// emit delivers ev unless the originating transport has been superseded.
func (c *Conn) emit(gen uint64, ev Event) {
	c.mu.Lock()
	stale := c.gen != gen
	c.mu.Unlock()
	if stale {
		return
	}
	c.events <- ev
}
