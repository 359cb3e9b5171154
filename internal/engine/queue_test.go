package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRequest(id int64) *request {
	return &request{cmd: Command{Op: OpMarkUpdated, Node: nodeID(id)}, reply: make(chan result, 1)}
}

func TestCommandQueue_EnqueueDequeue(t *testing.T) {
	q := newCommandQueue()

	require.True(t, q.Enqueue(newTestRequest(1)), "enqueue should succeed")

	got, ok := q.TryDequeue()
	require.True(t, ok, "dequeue should succeed")
	assert.Equal(t, OpMarkUpdated, got.cmd.Op)
	assert.Equal(t, nodeID(1), got.cmd.Node)
}

func TestCommandQueue_FIFO(t *testing.T) {
	q := newCommandQueue()

	for i := int64(1); i <= 3; i++ {
		q.Enqueue(newTestRequest(i))
	}

	for i := int64(1); i <= 3; i++ {
		r, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, nodeID(i), r.cmd.Node)
	}
}

func TestCommandQueue_TryDequeue_Empty(t *testing.T) {
	q := newCommandQueue()

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestCommandQueue_WaitSignalsAvailability(t *testing.T) {
	q := newCommandQueue()

	done := make(chan *request)
	go func() {
		<-q.Wait()
		r, _ := q.TryDequeue()
		done <- r
	}()

	time.Sleep(10 * time.Millisecond)
	q.Enqueue(newTestRequest(7))

	select {
	case r := <-done:
		require.NotNil(t, r)
		assert.Equal(t, nodeID(7), r.cmd.Node)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("wait did not signal")
	}
}

func TestCommandQueue_SignalsCoalesce(t *testing.T) {
	q := newCommandQueue()
	q.Enqueue(newTestRequest(1))
	q.Enqueue(newTestRequest(2))

	<-q.Wait()
	select {
	case <-q.Wait():
		t.Fatal("two enqueues must leave at most one pending signal")
	default:
	}
	assert.Equal(t, 2, q.Len())
}

func TestCommandQueue_CloseUnblocksWait(t *testing.T) {
	q := newCommandQueue()

	done := make(chan struct{})
	go func() {
		<-q.Wait()
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()
	q.Close()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("wait did not unblock after close")
	}
}

func TestCommandQueue_EnqueueAfterClose(t *testing.T) {
	q := newCommandQueue()
	q.Close()

	assert.False(t, q.Enqueue(newTestRequest(1)), "enqueue after close should return false")
}

func TestCommandQueue_Drain(t *testing.T) {
	q := newCommandQueue()
	q.Enqueue(newTestRequest(1))
	q.Enqueue(newTestRequest(2))

	drained := q.Drain()
	assert.Len(t, drained, 2)
	assert.Equal(t, 0, q.Len())
}

func TestCommandQueue_ThreadSafe(t *testing.T) {
	q := newCommandQueue()

	const producers = 10
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(newTestRequest(int64(p*1000 + i)))
			}
		}(p)
	}
	wg.Wait()

	seen := make(map[int64]bool)
	lastPerProducer := make(map[int64]int64)
	for {
		r, ok := q.TryDequeue()
		if !ok {
			break
		}
		id := int64(r.cmd.Node)
		seen[id] = true

		// Each producer's own requests stay in order.
		p := id / 1000
		if last, ok := lastPerProducer[p]; ok {
			assert.Greater(t, id, last)
		}
		lastPerProducer[p] = id
	}
	assert.Len(t, seen, producers*perProducer)
}
