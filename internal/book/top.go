package book

import (
	"container/heap"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/depthwatch/internal/domain"
)

type candidate struct {
	key   string
	qty   float64
	price decimal.Decimal
	side  domain.Side
}

// ranksBefore orders candidates by larger quantity, then smaller price, then
// "ask" before "bid". Equal numeric prices written differently ("100" and
// "100.0") fall back to the key text so the order stays total.
func ranksBefore(a, b candidate) bool {
	if a.qty != b.qty {
		return a.qty > b.qty
	}
	if c := a.price.Cmp(b.price); c != 0 {
		return c < 0
	}
	if a.side != b.side {
		return a.side < b.side
	}
	return a.key < b.key
}

// minHeap keeps the worst-ranked candidate at the root.
type minHeap []candidate

func (h minHeap) Len() int           { return len(h) }
func (h minHeap) Less(i, j int) bool { return ranksBefore(h[j], h[i]) }
func (h minHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *minHeap) Push(x any) { *h = append(*h, x.(candidate)) }

func (h *minHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Top returns up to n levels with the largest quantity across both sides,
// best first. It keeps a bounded heap of size n, so the cost is
// O((B+A)·log n) rather than a full sort of the book.
func Top(r *Replica, n int) []domain.PriceLevel {
	if n <= 0 {
		return nil
	}
	h := make(minHeap, 0, n)
	offer := func(side domain.Side, levels map[string]level) {
		for key, l := range levels {
			c := candidate{key: key, qty: l.qty, price: l.price, side: side}
			if len(h) < n {
				heap.Push(&h, c)
				continue
			}
			if ranksBefore(c, h[0]) {
				h[0] = c
				heap.Fix(&h, 0)
			}
		}
	}
	offer(domain.SideBid, r.bids)
	offer(domain.SideAsk, r.asks)

	sort.Slice(h, func(i, j int) bool { return ranksBefore(h[i], h[j]) })
	out := make([]domain.PriceLevel, len(h))
	for i, c := range h {
		out[i] = domain.PriceLevel{Price: c.key, Quantity: c.qty, Side: c.side}
	}
	return out
}

// Signature identifies a top-N result for change detection. Quantities are
// rounded to 8 decimals so float noise does not count as a change.
func Signature(levels []domain.PriceLevel) string {
	var b strings.Builder
	for _, l := range levels {
		b.WriteString(string(l.Side))
		b.WriteByte('@')
		b.WriteString(l.Price)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(l.Quantity, 'f', 8, 64))
		b.WriteByte(';')
	}
	return b.String()
}
