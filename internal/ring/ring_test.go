package ring

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuffer_EvictsOldest(t *testing.T) {
	b := New[int](3)
	for i := 1; i <= 5; i++ {
		b.Push(i)
	}
	assert.Equal(t, []int{3, 4, 5}, b.Items())
	assert.Equal(t, 3, b.size())
	assert.Equal(t, 3, b.capacity())
}

func TestBuffer_DefaultCapacity(t *testing.T) {
	b := New[string](0)
	assert.Equal(t, DefaultCapacity, b.capacity())
	for i := 0; i < DefaultCapacity+10; i++ {
		b.Push("x")
	}
	assert.Equal(t, DefaultCapacity, b.size())
}

func TestBuffer_Last(t *testing.T) {
	b := New[int](10)
	for i := 1; i <= 4; i++ {
		b.Push(i)
	}
	assert.Equal(t, []int{3, 4}, b.Last(2))
	assert.Equal(t, []int{1, 2, 3, 4}, b.Last(0))
	assert.Equal(t, []int{1, 2, 3, 4}, b.Last(50))
	assert.Empty(t, New[int](1).Items())
}

func TestBuffer_ConcurrentPush(t *testing.T) {
	b := New[int](50)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				b.Push(i)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, b.size())
}

func TestKeyed(t *testing.T) {
	k := NewKeyed[int](2)
	_, ok := k.Lookup("a")
	assert.False(t, ok)

	k.Get("a").Push(1)
	k.Get("a").Push(2)
	k.Get("a").Push(3)
	k.Get("b").Push(9)

	a, ok := k.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, []int{2, 3}, a.Items())
	assert.Equal(t, []int{9}, k.Get("b").Items())
}
