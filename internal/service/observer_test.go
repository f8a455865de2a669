package service

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObservers_DeliverInSubscriptionOrder(t *testing.T) {
	var o observers[int]
	var got []string
	o.subscribe(func(v int) { got = append(got, "a") })
	o.subscribe(func(v int) { got = append(got, "b") })

	o.enqueue(1)
	o.deliver()

	assert.Equal(t, []string{"a", "b"}, got)
}

func TestObservers_Unsubscribe(t *testing.T) {
	var o observers[int]
	calls := 0
	unsub := o.subscribe(func(int) { calls++ })
	assert.Equal(t, 1, o.len())

	unsub()
	unsub()
	o.enqueue(1)
	o.deliver()

	assert.Zero(t, calls)
	assert.Zero(t, o.len())
}

func TestObservers_FIFO(t *testing.T) {
	var o observers[int]
	var got []int
	o.subscribe(func(v int) { got = append(got, v) })

	o.enqueue(1)
	o.enqueue(2)
	o.enqueue(3)
	o.deliver()

	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestObservers_ConcurrentDeliveryKeepsOrder(t *testing.T) {
	var o observers[int]
	var mu sync.Mutex
	var got []int
	o.subscribe(func(v int) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})

	var seqMu sync.Mutex
	next := 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seqMu.Lock()
			o.enqueue(next)
			next++
			seqMu.Unlock()
			o.deliver()
		}()
	}
	wg.Wait()

	want := make([]int, 20)
	for i := range want {
		want[i] = i
	}
	assert.Equal(t, want, got)
}

func TestObservers_Reset(t *testing.T) {
	var o observers[int]
	calls := 0
	o.subscribe(func(int) { calls++ })
	o.enqueue(1)

	o.reset()
	o.deliver()

	assert.Zero(t, calls)
}
