// Package book maintains order-book replicas rebuilt from depth diffs and
// selects their largest levels.
package book

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/depthwatch/internal/domain"
)

type level struct {
	qty   float64
	price decimal.Decimal
}

// Replica is the bid and ask state of one depth stream. It is owned by the
// stream's goroutine and is not safe for concurrent use.
type Replica struct {
	bids map[string]level
	asks map[string]level
}

// NewReplica returns an empty replica.
func NewReplica() *Replica {
	return &Replica{
		bids: make(map[string]level),
		asks: make(map[string]level),
	}
}

// Apply applies diff in order: a zero quantity removes the price (a no-op
// when absent), anything else inserts or overwrites it. The diff is validated
// first so a malformed diff leaves the replica untouched.
func (r *Replica) Apply(diff domain.DepthDiff) error {
	bids, err := parseUpdates(diff.Bids)
	if err != nil {
		return fmt.Errorf("book: bids: %w", err)
	}
	asks, err := parseUpdates(diff.Asks)
	if err != nil {
		return fmt.Errorf("book: asks: %w", err)
	}
	applySide(r.bids, diff.Bids, bids)
	applySide(r.asks, diff.Asks, asks)
	return nil
}

func parseUpdates(updates []domain.LevelUpdate) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(updates))
	for i, u := range updates {
		if u.Quantity < 0 || math.IsNaN(u.Quantity) || math.IsInf(u.Quantity, 0) {
			return nil, fmt.Errorf("%w: quantity %v at %s", domain.ErrMalformedRecord, u.Quantity, u.Price)
		}
		p, err := decimal.NewFromString(u.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: price %q: %v", domain.ErrMalformedRecord, u.Price, err)
		}
		out[i] = p
	}
	return out, nil
}

func applySide(side map[string]level, updates []domain.LevelUpdate, prices []decimal.Decimal) {
	for i, u := range updates {
		if u.Quantity == 0 {
			delete(side, u.Price)
			continue
		}
		side[u.Price] = level{qty: u.Quantity, price: prices[i]}
	}
}

// quantity returns the resting quantity at price on side.
func (r *Replica) quantity(side domain.Side, price string) (float64, bool) {
	l, ok := r.sideMap(side)[price]
	return l.qty, ok
}

// depth returns the number of levels on side.
func (r *Replica) depth(side domain.Side) int {
	return len(r.sideMap(side))
}

// levels returns a copy of side as price → quantity.
func (r *Replica) levels(side domain.Side) map[string]float64 {
	m := r.sideMap(side)
	out := make(map[string]float64, len(m))
	for p, l := range m {
		out[p] = l.qty
	}
	return out
}

// Reset drops every level.
func (r *Replica) Reset() {
	clear(r.bids)
	clear(r.asks)
}

func (r *Replica) sideMap(side domain.Side) map[string]level {
	if side == domain.SideAsk {
		return r.asks
	}
	return r.bids
}
