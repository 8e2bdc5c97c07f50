// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xchg

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"

	"code.hybscloud.com/xchg/internal/cacheline"
)

// MPSC is a many-producer single-consumer bounded queue.
//
// Producers CAS-increment tail to claim a slot, then store the element
// with a release write. The single consumer detects publication with a
// volatile read of the slot's sequence word: the slot is the commit
// signal, not a separate flag.
//
// Each slot carries its own sequence number, initialized so slot i
// starts at sequence i. A producer may claim slot i only when its
// sequence equals the claimed tail value; the consumer advances a
// slot's sequence by capacity after consuming it, so the slot is ready
// for the next lap around the ring.
type MPSC[T any] struct {
	_        cacheline.Pad
	head     atomix.Uint64 // consumer position
	_        cacheline.Pad
	tail     atomix.Uint64 // producers CAS this
	_        cacheline.Pad
	buffer   []mpscSlot[T]
	mask     uint64
	capacity uint64
}

type mpscSlot[T any] struct {
	seq atomix.Uint64
	val T
	_   cacheline.PadAfter8
}

// NewMPSC creates an MPSC queue. Capacity rounds up to the next power
// of two; minimum capacity is 2.
func NewMPSC[T any](capacity int) *MPSC[T] {
	if capacity < 2 {
		panic("xchg: capacity must be >= 2")
	}
	n := uint64(roundUpToPowerOfTwo(capacity))
	q := &MPSC[T]{
		buffer:   make([]mpscSlot[T], n),
		mask:     n - 1,
		capacity: n,
	}
	for i := uint64(0); i < n; i++ {
		q.buffer[i].seq.StoreRelaxed(i)
	}
	return q
}

// Offer adds elem to the queue (multiple producers safe).
func (q *MPSC[T]) Offer(elem T) bool {
	sw := spin.Wait{}
	for {
		tail := q.tail.LoadAcquire()
		slot := &q.buffer[tail&q.mask]
		seq := slot.seq.LoadAcquire()

		switch {
		case seq == tail:
			if q.tail.CompareAndSwapAcqRel(tail, tail+1) {
				slot.val = elem
				slot.seq.StoreRelease(tail + 1)
				return true
			}
		case seq < tail:
			return false
		}
		sw.Once()
	}
}

// Poll removes and returns the head element (single consumer only).
func (q *MPSC[T]) Poll() (T, bool) {
	head := q.head.LoadRelaxed()
	slot := &q.buffer[head&q.mask]
	if slot.seq.LoadAcquire() != head+1 {
		var zero T
		return zero, false
	}
	elem := slot.val
	var zero T
	slot.val = zero
	slot.seq.StoreRelease(head + q.capacity)
	q.head.StoreRelease(head + 1)
	return elem, true
}

// Peek returns the head element without removing it (single consumer
// only).
func (q *MPSC[T]) Peek() (T, bool) {
	head := q.head.LoadRelaxed()
	slot := &q.buffer[head&q.mask]
	if slot.seq.LoadAcquire() != head+1 {
		var zero T
		return zero, false
	}
	return slot.val, true
}

// Size returns an instantaneous, clamped element count.
func (q *MPSC[T]) Size() int {
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
func (q *MPSC[T]) Cap() int {
	return int(q.capacity)
}

// Drain removes and passes every currently available element to
// handler, in FIFO order, and returns the count handled.
func (q *MPSC[T]) Drain(handler func(T)) int {
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
func (q *MPSC[T]) DrainTo(dst []T, limit int) int {
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

var _ BoundedQueue[int] = (*MPSC[int])(nil)
