package router

import "sync"

// GrowableBuffer is a mutex-and-condvar ring that doubles its capacity
// once it reaches 70% full, so producers never block and never drop.
// Construct with NewGrowableBuffer; the zero value is not usable.
type GrowableBuffer[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	head   int
	tail   int
	count  int
	closed bool

	totalIn  int64
	totalOut int64
	resizes  int
}

// BufferStats is a point-in-time copy of one buffer's counters.
type BufferStats struct {
	Count    int
	Capacity int
	TotalIn  int64
	TotalOut int64
	Resizes  int
}

// NewGrowableBuffer creates a buffer with the given initial capacity.
// Capacities below 1 are raised to 1.
func NewGrowableBuffer[T any](capacity int) *GrowableBuffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	b := &GrowableBuffer[T]{items: make([]T, capacity)}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Send appends an item, growing the ring first when the post-append fill
// would reach 70% of capacity. Returns false once the buffer is closed.
func (b *GrowableBuffer[T]) Send(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	if (b.count+1)*10 >= len(b.items)*7 {
		b.grow()
	}

	b.items[b.tail] = item
	b.tail = (b.tail + 1) % len(b.items)
	b.count++
	b.totalIn++

	b.cond.Signal()
	return true
}

// Receive blocks until an item is available or the buffer is closed and
// drained. The second return is false only in the closed-and-drained
// case.
func (b *GrowableBuffer[T]) Receive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for b.count == 0 && !b.closed {
		b.cond.Wait()
	}
	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.pop(), true
}

// TryReceive is the non-blocking variant of Receive.
func (b *GrowableBuffer[T]) TryReceive() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		var zero T
		return zero, false
	}
	return b.pop(), true
}

// DrainTo removes up to max items at once, preserving order. max <= 0
// drains everything buffered. Returns nil when empty.
func (b *GrowableBuffer[T]) DrainTo(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	n := b.count
	if max > 0 && max < n {
		n = max
	}
	out := make([]T, n)
	for i := range out {
		out[i] = b.pop()
	}
	return out
}

// Close stops further sends and wakes blocked receivers. Items already
// buffered remain receivable.
func (b *GrowableBuffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	b.cond.Broadcast()
}

// Len returns the number of buffered items.
func (b *GrowableBuffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Cap returns the current ring capacity.
func (b *GrowableBuffer[T]) Cap() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Stats returns the current counters.
func (b *GrowableBuffer[T]) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return BufferStats{
		Count:    b.count,
		Capacity: len(b.items),
		TotalIn:  b.totalIn,
		TotalOut: b.totalOut,
		Resizes:  b.resizes,
	}
}

// pop removes the head item. Caller holds the lock and has checked count.
func (b *GrowableBuffer[T]) pop() T {
	item := b.items[b.head]
	var zero T
	b.items[b.head] = zero
	b.head = (b.head + 1) % len(b.items)
	b.count--
	b.totalOut++
	return item
}

// grow doubles the ring, unwrapping wrapped contents into the new slice.
// Caller holds the lock.
func (b *GrowableBuffer[T]) grow() {
	next := make([]T, len(b.items)*2)
	if b.count > 0 {
		if b.head < b.tail {
			copy(next, b.items[b.head:b.tail])
		} else {
			k := copy(next, b.items[b.head:])
			copy(next[k:], b.items[:b.tail])
		}
	}
	b.items = next
	b.head = 0
	b.tail = b.count
	b.resizes++
}
