package pipeline

import "sync/atomic"

// Cursor is the index of the next unread record of one log. It only moves
// forward; Reset is the one way back to the start.
type Cursor struct {
	pos atomic.Int64
}

// Position returns the index of the next unread record.
func (c *Cursor) Position() int64 {
	return c.pos.Load()
}

// Advance moves the cursor to pos. Positions behind the cursor are ignored.
func (c *Cursor) Advance(pos int64) {
	for {
		cur := c.pos.Load()
		if pos <= cur || c.pos.CompareAndSwap(cur, pos) {
			return
		}
	}
}

// Reset rewinds the cursor to the start of the log.
func (c *Cursor) Reset() {
	c.pos.Store(0)
}
