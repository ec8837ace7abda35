package controller

import (
	"context"
	"fmt"

	"trade-watch/internal/feed"
	"trade-watch/internal/logger"
	"trade-watch/internal/prompt"
	"trade-watch/internal/session"
	"trade-watch/internal/store"
	"trade-watch/internal/types"
)

// invalidSymbolMsg is the error message the feed sends when a subscribe
// names a symbol it does not know.
const invalidSymbolMsg = "Invalid symbol"

// Controller wires user intents to session mutation and feed requests, and
// feed events back into the session. It owns the session for the process
// lifetime and persists the whole aggregate after every mutation.
//
// All methods must be called from the single event-loop goroutine; the
// controller does no locking of its own.
type Controller struct {
	state   *session.State
	conn    *feed.Conn
	store   store.SessionStore // nil means in-memory only
	prompts prompt.Prompter

	pending types.Symbol
}

func New(st *session.State, conn *feed.Conn, ss store.SessionStore, p prompt.Prompter) *Controller {
	return &Controller{state: st, conn: conn, store: ss, prompts: p}
}

// State exposes the session for display.
func (c *Controller) State() *session.State { return c.state }

// ConnState reports the feed connection state.
func (c *Controller) ConnState() feed.State { return c.conn.State() }

// UpdateAPIKey assigns the feed credential and persists.
func (c *Controller) UpdateAPIKey(ctx context.Context, key string) {
	c.state.APIKey = key
	c.persist(ctx)
}

// UpdatePendingSymbol assigns the symbol-to-track input field.
func (c *Controller) UpdatePendingSymbol(sym types.Symbol) {
	c.pending = sym
}

// PendingSymbol returns the current symbol-to-track input.
func (c *Controller) PendingSymbol() types.Symbol { return c.pending }

// TrackSymbol appends the pending symbol to the tracked list, clears the
// input, subscribes when connected and persists. An empty input is a
// no-op.
func (c *Controller) TrackSymbol(ctx context.Context) {
	if c.pending == "" {
		return
	}
	sym := c.pending
	c.pending = ""
	c.state.Tracked.Add(sym)
	if c.conn.State() == feed.Connected {
		if err := c.conn.Subscribe(sym); err != nil {
			logger.Warn(ctx, "Subscribe request failed", "symbol", sym, "error", err)
		}
	}
	c.persist(ctx)
}

// UntrackAt removes the tracked entry at position i. When that was the
// last occurrence of the symbol its history is purged and, if connected,
// an unsubscribe is sent. An index with no tracked entry is a user input
// error, not a precondition violation.
func (c *Controller) UntrackAt(ctx context.Context, i int) error {
	if i < 0 || i >= len(c.state.Tracked) {
		return fmt.Errorf("no tracked symbol at index %d", i)
	}
	res := c.state.UntrackAt(i)
	if res.LastOccurrence && c.conn.State() == feed.Connected {
		if err := c.conn.Unsubscribe(res.Symbol); err != nil {
			logger.Warn(ctx, "Unsubscribe request failed", "symbol", res.Symbol, "error", err)
		}
	}
	c.persist(ctx)
	return nil
}

// Connect opens the feed connection with the session's API key. A
// transport that cannot be constructed is surfaced via an alert and leaves
// the connection Disconnected. Connecting while already connected replaces
// the transport; the fresh open resubscribes everything.
func (c *Controller) Connect(ctx context.Context) error {
	if err := c.conn.Connect(ctx, c.state.APIKey); err != nil {
		c.prompts.Alert(fmt.Sprintf("Could not open the feed connection: %v", err))
		return err
	}
	return nil
}

// Disconnect drops the feed connection. User-initiated, no prompt.
func (c *Controller) Disconnect() {
	c.conn.Disconnect()
}

// HandleEvent processes one decoded feed event to completion.
func (c *Controller) HandleEvent(ctx context.Context, ev feed.Event) {
	switch ev := ev.(type) {
	case feed.Opened:
		c.resubscribe(ctx)
	case feed.Closed:
		c.handleClosed(ctx, ev)
	case feed.ErrorMsg:
		c.handleErrorMsg(ctx, ev)
	case feed.Trades:
		c.handleTrades(ctx, ev)
	}
}

// resubscribe sends one subscribe per tracked entry, in tracked order.
// The desired subscription set is the source of truth and the connection
// is disposable: every fresh open resynchronizes by resending everything
// rather than diffing against unknown server state. Duplicates are sent
// as-is; the feed tolerates them.
func (c *Controller) resubscribe(ctx context.Context) {
	logger.Info(ctx, "Feed connection open", "tracked", len(c.state.Tracked))
	for _, sym := range c.state.Tracked {
		if err := c.conn.Subscribe(sym); err != nil {
			logger.Warn(ctx, "Subscribe request failed", "symbol", sym, "error", err)
			return
		}
	}
}

func (c *Controller) handleClosed(ctx context.Context, ev feed.Closed) {
	logger.Warn(ctx, "Feed connection lost", "error", ev.Err)
	retry := c.prompts.Confirm(
		"The feed connection failed. This might mean the API key is wrong, " +
			"but if you were previously connected you might want to reconnect. Reconnect?")
	if retry {
		_ = c.Connect(ctx)
	}
}

func (c *Controller) handleErrorMsg(ctx context.Context, ev feed.ErrorMsg) {
	if ev.Msg != invalidSymbolMsg {
		logger.Warn(ctx, "Feed reported an error", "msg", ev.Msg)
		return
	}
	// Assume the blame lies with the most recently added symbol. No
	// unsubscribe is sent on removal: the upstream already rejected it.
	last, ok := c.state.Tracked.LastAdded()
	if !ok {
		return
	}
	msg := fmt.Sprintf("Invalid symbol detected. Do you want to untrack the last added one: [%s]?", last)
	if c.prompts.Confirm(msg) {
		c.state.Tracked.RemoveLastAdded()
		c.persist(ctx)
	}
}

func (c *Controller) handleTrades(ctx context.Context, ev feed.Trades) {
	for _, rec := range ev.Records {
		c.state.AddHistory(rec)
	}
	c.persist(ctx)
}

// persist serializes the whole session after a mutation. With no store the
// client runs in-memory only; a failing store is logged, never fatal.
func (c *Controller) persist(ctx context.Context) {
	if c.store == nil {
		return
	}
	if err := c.store.Save(ctx, c.state); err != nil {
		logger.Warn(ctx, "Could not persist session", "error", err)
	}
}
