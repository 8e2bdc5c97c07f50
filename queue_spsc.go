// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xchg

import (
	"code.hybscloud.com/atomix"

	"code.hybscloud.com/xchg/internal/cacheline"
)

// SPSC is a single-producer single-consumer bounded queue, based on
// Lamport's ring buffer with cached-index optimization: the producer
// caches the consumer's head position and vice versa, so the common
// path never has to read a cache line the other side is writing.
//
// head and tail live on separate cache lines, each isolated from its
// neighbouring cached-index field, so a producer spinning on tail never
// evicts the consumer's working set and vice versa.
type SPSC[T any] struct {
	_          cacheline.Pad
	head       atomix.Uint64 // consumer position
	_          cacheline.Pad
	cachedTail uint64 // consumer's stale view of tail, refreshed on demand
	_          cacheline.Pad
	tail       atomix.Uint64 // producer position
	_          cacheline.Pad
	cachedHead uint64 // producer's stale view of head, refreshed on demand
	_          cacheline.Pad
	buffer     []T
	mask       uint64
}

// NewSPSC creates an SPSC queue. Capacity rounds up to the next power
// of two; minimum capacity is 2.
func NewSPSC[T any](capacity int) *SPSC[T] {
	if capacity < 2 {
		panic("xchg: capacity must be >= 2")
	}
	n := uint64(roundUpToPowerOfTwo(capacity))
	return &SPSC[T]{
		buffer: make([]T, n),
		mask:   n - 1,
	}
}

// Offer adds elem to the queue (producer only).
func (q *SPSC[T]) Offer(elem T) bool {
	tail := q.tail.LoadRelaxed()
	if tail-q.cachedHead > q.mask {
		q.cachedHead = q.head.LoadAcquire()
		if tail-q.cachedHead > q.mask {
			return false
		}
	}
	q.buffer[tail&q.mask] = elem
	q.tail.StoreRelease(tail + 1)
	return true
}

// Poll removes and returns the head element (consumer only).
func (q *SPSC[T]) Poll() (T, bool) {
	head := q.head.LoadRelaxed()
	if head >= q.cachedTail {
		q.cachedTail = q.tail.LoadAcquire()
		if head >= q.cachedTail {
			var zero T
			return zero, false
		}
	}
	elem := q.buffer[head&q.mask]
	var zero T
	q.buffer[head&q.mask] = zero
	q.head.StoreRelease(head + 1)
	return elem, true
}

// Peek returns the head element without removing it (consumer only).
func (q *SPSC[T]) Peek() (T, bool) {
	head := q.head.LoadRelaxed()
	tail := q.tail.LoadAcquire()
	if head >= tail {
		var zero T
		return zero, false
	}
	return q.buffer[head&q.mask], true
}

// Size returns an instantaneous, clamped element count.
func (q *SPSC[T]) Size() int {
	for {
		head1 := q.head.LoadAcquire()
		tail := q.tail.LoadAcquire()
		head2 := q.head.LoadAcquire()
		if head1 != head2 {
			continue
		}
		diff := tail - head1
		if diff > q.mask+1 {
			diff = q.mask + 1
		}
		return int(diff)
	}
}

// Cap returns the queue capacity.
func (q *SPSC[T]) Cap() int {
	return int(q.mask + 1)
}

// Drain removes and passes every currently available element to
// handler, in FIFO order, and returns the count handled.
func (q *SPSC[T]) Drain(handler func(T)) int {
	n := 0
	for {
		elem, ok := q.Poll()
		if !ok {
			return n
		}
		handler(elem)
		n++
	}
}

// DrainTo removes up to limit elements into dst and returns the count
// copied.
func (q *SPSC[T]) DrainTo(dst []T, limit int) int {
	n := 0
	for n < limit && n < len(dst) {
		elem, ok := q.Poll()
		if !ok {
			return n
		}
		dst[n] = elem
		n++
	}
	return n
}

var _ BoundedQueue[int] = (*SPSC[int])(nil)
