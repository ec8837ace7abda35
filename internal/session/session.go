package session

import (
	"fmt"

	"trade-watch/internal/history"
	"trade-watch/internal/types"
)

// TrackedSymbols is the ordered list of symbols the user wants streamed.
// Growth is append-only and removal is by position, so duplicates are
// permitted and insertion order is preserved.
type TrackedSymbols []types.Symbol

// Add appends sym to the end of the order.
func (t *TrackedSymbols) Add(sym types.Symbol) {
	*t = append(*t, sym)
}

// LastAdded peeks at the most recently appended entry.
func (t TrackedSymbols) LastAdded() (types.Symbol, bool) {
	if len(t) == 0 {
		return "", false
	}
	return t[len(t)-1], true
}

// RemoveLastAdded pops the tail. Used to undo a subscribe the feed
// rejected.
func (t *TrackedSymbols) RemoveLastAdded() {
	if n := len(*t); n > 0 {
		*t = (*t)[:n-1]
	}
}

// RemoveResult reports what RemoveAt removed and whether any equal entry
// remains. LastOccurrence tells the caller it is now safe to unsubscribe
// upstream and purge history for the symbol.
type RemoveResult struct {
	Symbol         types.Symbol
	LastOccurrence bool
}

// RemoveAt removes the entry at position i. An out-of-range index is a
// programmer error and panics.
func (t *TrackedSymbols) RemoveAt(i int) RemoveResult {
	if i < 0 || i >= len(*t) {
		panic(fmt.Sprintf("session: RemoveAt index %d out of range [0,%d)", i, len(*t)))
	}
	removed := (*t)[i]
	*t = append((*t)[:i], (*t)[i+1:]...)
	last := true
	for _, sym := range *t {
		if sym == removed {
			last = false
			break
		}
	}
	return RemoveResult{Symbol: removed, LastOccurrence: last}
}

// State is the persisted session aggregate: the API key, the tracked
// symbol list and the per-symbol trade history. It is constructed once at
// startup (restored from the store or an empty default), mutated only by
// the event loop, and serialized whole after every mutation. There is no
// teardown beyond process exit.
type State struct {
	APIKey  string         `json:"api_key"`
	Tracked TrackedSymbols `json:"tracked"`
	History history.Cache  `json:"history"`
}

// NewState returns an empty default session.
func NewState() *State {
	return &State{History: history.New()}
}

// UntrackAt removes the tracked entry at position i and, when that was the
// last occurrence of the symbol, purges its history. A symbol with zero
// remaining tracked entries must not retain history.
func (s *State) UntrackAt(i int) RemoveResult {
	res := s.Tracked.RemoveAt(i)
	if res.LastOccurrence {
		s.History.Remove(res.Symbol)
	}
	return res
}

// AddHistory records one trade into the history cache.
func (s *State) AddHistory(rec types.TickerRecord) {
	s.History.Insert(rec)
}
