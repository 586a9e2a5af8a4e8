package channel

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLossy_Offer(t *testing.T) {
	c := New[int](2)
	assert.True(t, c.Offer(1))
	assert.True(t, c.Offer(2))
	assert.Equal(t, 2, c.Len())

	assert.Equal(t, 1, <-c.C())
	assert.Equal(t, 2, <-c.C())
	assert.Zero(t, c.Dropped())
}

func TestLossy_FullDrops(t *testing.T) {
	c := New[string](1)
	assert.True(t, c.Offer("a"))
	assert.False(t, c.Offer("b"))
	assert.Equal(t, int64(1), c.Dropped())
	assert.Equal(t, "a", <-c.C())
}

func TestLossy_MinimumSize(t *testing.T) {
	c := New[int](0)
	assert.True(t, c.Offer(1))
	assert.False(t, c.Offer(2))
}

func TestLossy_CloseTwiceAndOfferAfterClose(t *testing.T) {
	c := New[int](4)
	c.Close()
	c.Close()

	assert.False(t, c.Offer(1))
	assert.Equal(t, int64(1), c.Dropped())

	_, ok := <-c.C()
	assert.False(t, ok)
}

func TestLossy_ConcurrentOfferAndClose(t *testing.T) {
	c := New[int](8)
	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 50 {
				c.Offer(i*100 + j)
			}
		}()
	}
	c.Close()
	wg.Wait()

	received := 0
	for range c.C() {
		received++
	}
	assert.Equal(t, int64(200), int64(received)+c.Dropped())
}
