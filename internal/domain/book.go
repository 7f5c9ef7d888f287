package domain

import "time"

// Side is one side of an order book.
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// LevelUpdate is one (price, quantity) pair of a depth diff. Price keeps the
// exact decimal text it arrived with; a zero Quantity removes the level.
type LevelUpdate struct {
	Price    string
	Quantity float64
}

// DepthDiff is a decoded depth record: level updates for each side, applied
// in order.
type DepthDiff struct {
	Bids []LevelUpdate
	Asks []LevelUpdate
}

// PriceLevel is a resting level reported by top-N selection.
type PriceLevel struct {
	Price    string  `json:"price"`
	Quantity float64 `json:"quantity"`
	Side     Side    `json:"side"`
}

// TopLevels is the top-N selection of a depth stream after a diff.
type TopLevels struct {
	Stream string       `json:"stream"`
	N      int          `json:"n"`
	Levels []PriceLevel `json:"levels"`
	At     time.Time    `json:"at"`
}
