package store

// Ring is a fixed-capacity FIFO buffer. Pushing onto a full ring drops the
// oldest element. It is not safe for concurrent use.
type Ring[T any] struct {
	buf   []T
	start int
	size  int
}

// NewRing creates a ring holding at most capacity elements. Capacity below
// one is treated as one.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting the oldest element when full. It reports whether
// an element was evicted.
func (r *Ring[T]) Push(v T) bool {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++
		return false
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
	return true
}

// Items returns a copy of the contents, oldest first.
func (r *Ring[T]) Items() []T {
	out := make([]T, r.size)
	for i := range r.size {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}

// Len returns the number of buffered elements.
func (r *Ring[T]) Len() int { return r.size }

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int { return len(r.buf) }

// Reset empties the ring without changing its capacity.
func (r *Ring[T]) Reset() {
	clear(r.buf)
	r.start, r.size = 0, 0
}
