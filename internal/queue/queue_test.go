package queue

import (
	"cmp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	ID int
	Ts int
}

func ids(items []sample) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestQueue_New(t *testing.T) {
	q := New[sample]()
	require.NotNil(t, q)
	assert.Zero(t, q.Len())
	assert.Empty(t, q.Drain())
}

func TestQueue_Push(t *testing.T) {
	q := New[sample]()

	q.Push(sample{ID: 1})
	assert.Equal(t, 1, q.Len())

	q.Push(sample{ID: 2}, sample{ID: 3})
	assert.Equal(t, 3, q.Len())
}

func TestQueue_Clear(t *testing.T) {
	q := New[sample]()
	q.Push(sample{ID: 1}, sample{ID: 2})

	assert.Equal(t, 2, q.Clear())
	assert.Zero(t, q.Len())
	assert.Zero(t, q.Clear())
}

func TestQueue_Drain(t *testing.T) {
	q := New[sample]()
	q.Push(sample{ID: 1}, sample{ID: 2})

	batch := q.Drain()
	assert.Equal(t, []int{1, 2}, ids(batch))
	assert.Zero(t, q.Len())

	q.Push(sample{ID: 3})
	assert.Equal(t, 1, batch[0].ID)
	assert.Equal(t, []int{3}, ids(q.Drain()))
}

func TestQueue_DrainSortedKeepsArrivalOrderOnTies(t *testing.T) {
	q := New[sample]()
	q.Push(
		sample{ID: 1, Ts: 20},
		sample{ID: 2, Ts: 10},
		sample{ID: 3, Ts: 20},
		sample{ID: 4, Ts: 10},
	)

	batch := q.DrainSorted(func(a, b sample) int { return cmp.Compare(a.Ts, b.Ts) })

	assert.Equal(t, []int{2, 4, 1, 3}, ids(batch))
	assert.Zero(t, q.Len())
}

func TestQueue_ConcurrentPush(t *testing.T) {
	q := New[sample]()
	var wg sync.WaitGroup

	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				q.Push(sample{ID: i*100 + j})
			}
		}()
	}
	wg.Wait()

	assert.Len(t, q.Drain(), 1000)
}
