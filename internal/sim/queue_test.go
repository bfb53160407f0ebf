package sim

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryQueue_FIFO(t *testing.T) {
	q := newDeliveryQueue()

	for i := 1; i <= 3; i++ {
		require.True(t, q.Enqueue(delivery{value: i}))
	}

	for want := 1; want <= 3; want++ {
		d, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, d.value)
	}
	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestDeliveryQueue_WaitSignals(t *testing.T) {
	q := newDeliveryQueue()

	done := make(chan any)
	go func() {
		<-q.Wait()
		d, _ := q.TryDequeue()
		done <- d.value
	}()

	time.Sleep(10 * time.Millisecond)
	q.Enqueue(delivery{value: "late"})

	select {
	case v := <-done:
		assert.Equal(t, "late", v)
	case <-time.After(time.Second):
		t.Fatal("wait did not signal")
	}
}

func TestDeliveryQueue_Close(t *testing.T) {
	q := newDeliveryQueue()
	q.Enqueue(delivery{value: 1})
	q.Close()
	q.Close()

	_, open := <-q.Wait()
	assert.False(t, open, "close should close the signal channel")
	assert.False(t, q.Enqueue(delivery{value: 2}), "enqueue after close should return false")

	d, ok := q.TryDequeue()
	require.True(t, ok, "items queued before close stay available")
	assert.Equal(t, 1, d.value)
}

func TestDeliveryQueue_Len(t *testing.T) {
	q := newDeliveryQueue()
	assert.Equal(t, 0, q.Len())

	q.Enqueue(delivery{})
	q.Enqueue(delivery{})
	assert.Equal(t, 2, q.Len())

	q.TryDequeue()
	assert.Equal(t, 1, q.Len())
}

func TestDeliveryQueue_ThreadSafe(t *testing.T) {
	q := newDeliveryQueue()
	const producers = 10
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(delivery{value: i})
			}
		}()
	}
	wg.Wait()

	received := 0
	for {
		if _, ok := q.TryDequeue(); !ok {
			break
		}
		received++
	}
	assert.Equal(t, producers*perProducer, received)
}
