// Package queue implements the pending-work queue buffering discovered
// package candidates between tree traversal and sequential processing.
//
// A scan pass uses the queue in two phases: population runs to completion
// first, so the consumer knows the exact amount of pending work before the
// first item is dequeued, then the drain loop pops items until Next reports
// the queue empty. Completion is derived from Next's second return value,
// never from listener registration order. Optional hooks exist for
// observability only and play no part in control flow.
package queue

// Hooks carries optional callbacks invoked synchronously as the queue
// changes. Nil callbacks are skipped.
type Hooks[T any] struct {
	// Pushed is called after an item is appended
	Pushed func(item T)
	// Popped is called after an item is removed
	Popped func(item T)
	// Emptied is called when a removal leaves the queue empty; once per
	// drain, re-armed by the next Push
	Emptied func()
}

// Queue is a FIFO buffer of pending work. It is not safe for concurrent
// use; a scan pass has a single producer and a single consumer, sequenced.
type Queue[T any] struct {
	items []T
	hooks Hooks[T]
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// NewWithHooks creates an empty queue with observability hooks attached.
func NewWithHooks[T any](hooks Hooks[T]) *Queue[T] {
	return &Queue[T]{hooks: hooks}
}

// Push appends item to the tail.
func (q *Queue[T]) Push(item T) {
	q.items = append(q.items, item)
	if q.hooks.Pushed != nil {
		q.hooks.Pushed(item)
	}
}

// Next removes and returns the head. The second return value is false when
// the queue is empty.
func (q *Queue[T]) Next() (T, bool) {
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	if q.hooks.Popped != nil {
		q.hooks.Popped(item)
	}
	if len(q.items) == 0 {
		// release the drained backing array
		q.items = nil
		if q.hooks.Emptied != nil {
			q.hooks.Emptied()
		}
	}
	return item, true
}

// Len reports the number of pending items.
func (q *Queue[T]) Len() int {
	return len(q.items)
}
