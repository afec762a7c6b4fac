package busvision

// queue is a bounded single-producer/single-consumer channel wrapper.
// Downstream stages use Push, which blocks the caller only long enough to
// enqueue (it never drops): emptiness is handled by the consumer sleeping,
// per spec. The Reader stage uses PushDropOldest, which favors freshness
// over completeness by evicting the oldest queued item when full.
type queue[T any] struct {
	ch chan T
}

// newQueue creates a queue with the given fixed capacity.
func newQueue[T any](capacity int) *queue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &queue[T]{ch: make(chan T, capacity)}
}

// Push enqueues v, blocking only if the queue is momentarily full (it does
// not drop). Used by every stage except the Reader.
func (q *queue[T]) Push(v T) {
	q.ch <- v
}

// TryPush attempts a non-blocking enqueue. Returns false if the queue was
// full and nothing was written.
func (q *queue[T]) TryPush(v T) bool {
	select {
	case q.ch <- v:
		return true
	default:
		return false
	}
}

// PushDropOldest enqueues v, dropping the oldest queued item first if the
// queue is full. This is the Reader's freshness-preferring backpressure
// policy: never block the capture device, prefer the newest frame.
func (q *queue[T]) PushDropOldest(v T) {
	q.PushDropOldestNotify(v)
}

// PushDropOldestNotify behaves like PushDropOldest but also returns the
// item it evicted, if any, so callers holding non-GC resources (e.g. a
// gocv.Mat) can release them explicitly.
func (q *queue[T]) PushDropOldestNotify(v T) (evicted T, hadEvicted bool) {
	for {
		select {
		case q.ch <- v:
			return evicted, hadEvicted
		default:
			select {
			case old := <-q.ch:
				evicted, hadEvicted = old, true
			default:
			}
		}
	}
}

// Pop removes and returns the next item, or ok=false if the queue is
// currently empty. Callers sleep and retry on ok=false; Pop never blocks.
func (q *queue[T]) Pop() (v T, ok bool) {
	select {
	case v = <-q.ch:
		return v, true
	default:
		return v, false
	}
}

// Empty reports whether the queue currently has no items.
func (q *queue[T]) Empty() bool {
	return len(q.ch) == 0
}
