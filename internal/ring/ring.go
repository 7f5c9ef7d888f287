// Package ring provides fixed-capacity buffers of recent items.
package ring

import (
	"sync"

	"github.com/gammazero/deque"
)

// DefaultCapacity is the number of items a Buffer keeps when no capacity is
// given.
const DefaultCapacity = 100

// Buffer keeps the most recent Cap items; pushing onto a full buffer evicts
// the oldest. It is safe for concurrent use.
type Buffer[T any] struct {
	mu    sync.RWMutex
	items deque.Deque[T]
	cap   int
}

// New returns an empty buffer holding at most capacity items.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer[T]{cap: capacity}
}

// Push appends v, evicting the oldest item when full.
func (b *Buffer[T]) Push(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.items.Len() == b.cap {
		b.items.PopFront()
	}
	b.items.PushBack(v)
}

// Items returns the buffered items, oldest first.
func (b *Buffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]T, b.items.Len())
	for i := range out {
		out[i] = b.items.At(i)
	}
	return out
}

// Last returns up to n of the newest items, oldest first.
func (b *Buffer[T]) Last(n int) []T {
	items := b.Items()
	if n > 0 && n < len(items) {
		return items[len(items)-n:]
	}
	return items
}

func (b *Buffer[T]) size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.items.Len()
}

func (b *Buffer[T]) capacity() int {
	return b.cap
}

// Keyed holds one Buffer per key, created on first use.
type Keyed[T any] struct {
	mu       sync.Mutex
	buffers  map[string]*Buffer[T]
	capacity int
}

// NewKeyed returns a Keyed whose buffers hold capacity items each.
func NewKeyed[T any](capacity int) *Keyed[T] {
	return &Keyed[T]{buffers: make(map[string]*Buffer[T]), capacity: capacity}
}

// Get returns the buffer for key, creating it if needed.
func (k *Keyed[T]) Get(key string) *Buffer[T] {
	k.mu.Lock()
	defer k.mu.Unlock()
	b, ok := k.buffers[key]
	if !ok {
		b = New[T](k.capacity)
		k.buffers[key] = b
	}
	return b
}

// Lookup returns the buffer for key without creating it.
func (k *Keyed[T]) Lookup(key string) (*Buffer[T], bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	b, ok := k.buffers[key]
	return b, ok
}
