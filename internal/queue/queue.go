// Package queue implements the blocking FIFO message queue used for both the incoming and
// outgoing queues of a process (SPEC_FULL.md §4.2).
package queue

import "sync"

// Queue is a FIFO of *T with condition-variable signaling, a running flag, and a kill path.
// Enqueue appends and signals; Dequeue blocks while empty and running; Kill sets
// running=false and broadcasts, so blocked dequeuers return (nil, false) and may exit.
type Queue[T any] struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   []*T
	running bool
}

// New returns a running, empty Queue.
func New[T any]() *Queue[T] {
	q := &Queue[T]{running: true}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends an item and wakes one blocked Dequeue call.
func (q *Queue[T]) Enqueue(item *T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.cond.Signal()
	q.mu.Unlock()
}

// Dequeue blocks while the queue is empty and running, then pops the front item. It returns
// (nil, false) once Kill has been called and the queue has drained.
func (q *Queue[T]) Dequeue() (*T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 && q.running {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}

	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// TryDequeue pops the front item without blocking, for a comms loop that must keep polling
// the transport instead of waiting on the queue alone (MessageManager::check_outgoing's
// "IsReady() then Dequeue()" non-blocking check). ok is false if the queue is currently
// empty; it says nothing about Running.
func (q *Queue[T]) TryDequeue() (item *T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}
	item = q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Len returns the number of items currently queued.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Kill stops the queue: running becomes false and every blocked Dequeue wakes and returns
// (nil, false) once the remaining items have drained.
func (q *Queue[T]) Kill() {
	q.mu.Lock()
	q.running = false
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Running reports whether the queue is still accepting new items.
func (q *Queue[T]) Running() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}
