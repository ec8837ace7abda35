package types

// Symbol identifies an instrument on the trade feed. Symbols are
// case-sensitive and compared by value; the tracked list may contain the
// same symbol more than once.
type Symbol string

// Price is a trade price as reported by the feed.
type Price float32

// Volume is a traded volume as reported by the feed.
type Volume float32

// TickerRecord is a single trade reported by the feed. Time is
// milliseconds since epoch as supplied upstream and is never reassigned
// locally. A record is immutable once decoded.
type TickerRecord struct {
	Symbol Symbol `json:"s"`
	Price  Price  `json:"p"`
	Volume Volume `json:"v"`
	Time   int64  `json:"t"`
}

// Trend classifies the short-term direction of a symbol from its two most
// recent trades.
type Trend int

const (
	TrendFlat Trend = iota
	TrendUp
	TrendDown
)

func (t Trend) String() string {
	switch t {
	case TrendUp:
		return "up"
	case TrendDown:
		return "down"
	}
	return "flat"
}
