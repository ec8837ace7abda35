package history

import "trade-watch/internal/types"

// MaxPerSymbol caps how many trades are retained per symbol.
const MaxPerSymbol = 25

// Cache keeps a bounded, most-recently-inserted-first trade history per
// symbol. Insertion order is the only order: records are trusted to arrive
// in logical order and are never re-sorted by timestamp. Reads never
// promote an entry.
//
// Cache is not safe for concurrent use; the event loop is the only writer.
// The zero value is ready to use.
type Cache struct {
	BySymbol map[types.Symbol][]types.TickerRecord `json:"by_symbol"`
}

// New returns an empty cache.
func New() Cache {
	return Cache{BySymbol: make(map[types.Symbol][]types.TickerRecord)}
}

// Get returns the history for sym, newest first. It has no side effects.
func (c *Cache) Get(sym types.Symbol) ([]types.TickerRecord, bool) {
	seq, ok := c.BySymbol[sym]
	return seq, ok
}

// Insert prepends rec to the history of rec.Symbol, creating the sequence
// if absent. When the sequence would exceed MaxPerSymbol the oldest entry
// is dropped.
func (c *Cache) Insert(rec types.TickerRecord) {
	if c.BySymbol == nil {
		c.BySymbol = make(map[types.Symbol][]types.TickerRecord)
	}
	seq := append([]types.TickerRecord{rec}, c.BySymbol[rec.Symbol]...)
	if len(seq) > MaxPerSymbol {
		seq = seq[:MaxPerSymbol]
	}
	c.BySymbol[rec.Symbol] = seq
}

// Remove deletes the entire history for sym. Used when the last tracked
// occurrence of a symbol goes away.
func (c *Cache) Remove(sym types.Symbol) {
	delete(c.BySymbol, sym)
}

// Trend compares the two newest trades of sym. With fewer than two trades
// the trend is flat.
func (c *Cache) Trend(sym types.Symbol) types.Trend {
	seq := c.BySymbol[sym]
	if len(seq) < 2 {
		return types.TrendFlat
	}
	switch {
	case seq[0].Price > seq[1].Price:
		return types.TrendUp
	case seq[0].Price < seq[1].Price:
		return types.TrendDown
	}
	return types.TrendFlat
}
