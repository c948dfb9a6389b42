package recorder

import (
	"container/heap"
	"sync"
	"time"

	"deskrec/pkg/platform"
)

// itemKind orders simultaneous items: a focus change outranks the input
// burst around it, input outranks the periodic screenshot tick, and the
// sweep tick comes last.
type itemKind int

const (
	itemFocus itemKind = iota
	itemInput
	itemShot
	itemSweep
)

// item is one queued capture event. Producers stamp TS with the wall
// clock at receipt; the heap orders by (TS, kind, arrival) so the
// consumer sees a single time-ordered stream.
type item struct {
	ts    time.Time
	kind  itemKind
	focus *platform.Window // itemFocus: the window gaining focus, nil for none
	input platform.InputEvent
	seq   uint64
}

type itemHeap []item

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if !a.ts.Equal(b.ts) {
		return a.ts.Before(b.ts)
	}
	if a.kind != b.kind {
		return a.kind < b.kind
	}
	return a.seq < b.seq
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(item)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	*h = old[:n-1]
	return it
}

// queue is the multi-producer single-consumer ordered queue between the
// capture goroutines and the consumer. Close lets the consumer drain
// every remaining item before Pop reports done, so shutdown never drops
// an event.
type queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	heap   itemHeap
	seq    uint64
	closed bool
}

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push enqueues one item. Items pushed after close are dropped; the
// recorder joins all producers before closing, so that only guards a
// misbehaving late caller.
func (q *queue) push(it item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.seq++
	it.seq = q.seq
	heap.Push(&q.heap, it)
	q.cond.Signal()
}

// pop blocks until an item is available or the queue is closed and
// drained, then reports ok=false.
func (q *queue) pop() (item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.heap) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.heap) == 0 {
		return item{}, false
	}
	return heap.Pop(&q.heap).(item), true
}

// close wakes the consumer once the producers are done.
func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}
