package stream

// queue holds values a consumer has not read yet. Implementations are not
// safe for concurrent use; Stream guards them with its mutex.
type queue[T any] interface {
	// push appends v and reports whether an older value was discarded.
	push(v T) (dropped bool)
	pop() (T, bool)
	len() int
	reset()
}

// latestRing is a bounded ring that discards its oldest value when full, so
// the most recent value pushed is always retained.
type latestRing[T any] struct {
	buf  []T
	head int
	n    int
}

func newLatestRing[T any](capacity int) *latestRing[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &latestRing[T]{buf: make([]T, capacity)}
}

func (r *latestRing[T]) push(v T) bool {
	if r.n == len(r.buf) {
		r.buf[r.head] = v
		r.head = (r.head + 1) % len(r.buf)
		return true
	}
	r.buf[(r.head+r.n)%len(r.buf)] = v
	r.n++
	return false
}

func (r *latestRing[T]) pop() (T, bool) {
	var zero T
	if r.n == 0 {
		return zero, false
	}
	v := r.buf[r.head]
	r.buf[r.head] = zero
	r.head = (r.head + 1) % len(r.buf)
	r.n--
	return v, true
}

func (r *latestRing[T]) len() int { return r.n }

func (r *latestRing[T]) reset() {
	clear(r.buf)
	r.head, r.n = 0, 0
}

// fifo is an unbounded first-in first-out queue. It never drops.
type fifo[T any] struct {
	items []T
	head  int
}

func newFIFO[T any]() *fifo[T] {
	return &fifo[T]{}
}

func (q *fifo[T]) push(v T) bool {
	q.items = append(q.items, v)
	return false
}

func (q *fifo[T]) pop() (T, bool) {
	var zero T
	if q.head == len(q.items) {
		return zero, false
	}
	v := q.items[q.head]
	q.items[q.head] = zero
	q.head++

	// reclaim the consumed prefix once it dominates the backing array
	if q.head > 64 && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	return v, true
}

func (q *fifo[T]) len() int { return len(q.items) - q.head }

func (q *fifo[T]) reset() {
	q.items = nil
	q.head = 0
}
