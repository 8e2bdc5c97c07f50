// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xchg

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"

	"code.hybscloud.com/xchg/internal/cacheline"
)

// MPMC is a many-producer many-consumer bounded queue.
//
// Each slot carries a companion sequence number, initialized so slot i
// starts at sequence i. Enqueue succeeds when the target slot's
// sequence equals the claimed tail; on success the element is stored
// and the slot's sequence is released to tail+1. Dequeue succeeds when
// the slot's sequence equals head+1; on success the element is read and
// the slot's sequence is released to head+capacity, reopening it for
// the next lap. This yields a linearizable, fair FIFO between
// producers, and between consumers: the CAS on tail (or head) is what
// establishes each producer's (or consumer's) position in program
// order, not arrival order at the slot.
type MPMC[T any] struct {
	_        cacheline.Pad
	tail     atomix.Uint64 // producers CAS this
	_        cacheline.Pad
	head     atomix.Uint64 // consumers CAS this
	_        cacheline.Pad
	buffer   []mpmcSlot[T]
	mask     uint64
	capacity uint64
}

type mpmcSlot[T any] struct {
	seq atomix.Uint64
	val T
	_   cacheline.PadAfter8
}

// NewMPMC creates an MPMC queue. Capacity rounds up to the next power
// of two; minimum capacity is 2.
func NewMPMC[T any](capacity int) *MPMC[T] {
	if capacity < 2 {
		panic("xchg: capacity must be >= 2")
	}
	n := uint64(roundUpToPowerOfTwo(capacity))
	q := &MPMC[T]{
		buffer:   make([]mpmcSlot[T], n),
		mask:     n - 1,
		capacity: n,
	}
	for i := uint64(0); i < n; i++ {
		q.buffer[i].seq.StoreRelaxed(i)
	}
	return q
}

// Offer adds elem to the queue (multiple producers safe).
func (q *MPMC[T]) Offer(elem T) bool {
	sw := spin.Wait{}
	for {
		tail := q.tail.LoadAcquire()
		slot := &q.buffer[tail&q.mask]
		seq := slot.seq.LoadAcquire()
		diff := int64(seq) - int64(tail)

		switch {
		case diff == 0:
			if q.tail.CompareAndSwapAcqRel(tail, tail+1) {
				slot.val = elem
				slot.seq.StoreRelease(tail + 1)
				return true
			}
		case diff < 0:
			return false
		}
		sw.Once()
	}
}

// Poll removes and returns the head element (multiple consumers safe).
func (q *MPMC[T]) Poll() (T, bool) {
	sw := spin.Wait{}
	for {
		head := q.head.LoadAcquire()
		slot := &q.buffer[head&q.mask]
		seq := slot.seq.LoadAcquire()
		diff := int64(seq) - int64(head+1)

		switch {
		case diff == 0:
			if q.head.CompareAndSwapAcqRel(head, head+1) {
				elem := slot.val
				var zero T
				slot.val = zero
				slot.seq.StoreRelease(head + q.capacity)
				return elem, true
			}
		case diff < 0:
			var zero T
			return zero, false
		}
		sw.Once()
	}
}

// Peek returns an element at or near the head without removing it.
// Because multiple consumers may be racing on head, the returned
// element may already be gone by the time the caller observes it; this
// is read-only best-effort, consistent with the package's
// poll/peek-may-return-empty-while-size>0 contract.
func (q *MPMC[T]) Peek() (T, bool) {
	head := q.head.LoadAcquire()
	slot := &q.buffer[head&q.mask]
	if int64(slot.seq.LoadAcquire())-int64(head+1) != 0 {
		var zero T
		return zero, false
	}
	return slot.val, true
}

// Size returns an instantaneous, clamped element count.
func (q *MPMC[T]) Size() int {
	for {
		head1 := q.head.LoadAcquire()
		tail := q.tail.LoadAcquire()
		head2 := q.head.LoadAcquire()
		if head1 != head2 {
			continue
		}
		diff := tail - head1
		if diff > q.capacity {
			diff = q.capacity
		}
		return int(diff)
	}
}

// Cap returns the queue capacity.
func (q *MPMC[T]) Cap() int {
	return int(q.capacity)
}

// Drain removes and passes every currently available element to
// handler, in FIFO order, and returns the count handled.
func (q *MPMC[T]) Drain(handler func(T)) int {
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
func (q *MPMC[T]) DrainTo(dst []T, limit int) int {
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

var _ BoundedQueue[int] = (*MPMC[int])(nil)
