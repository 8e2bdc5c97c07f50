// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xchg

import (
	"sync/atomic"

	"code.hybscloud.com/spin"

	"code.hybscloud.com/xchg/internal/cacheline"
)

// LinkedMPSC is an unbounded many-producer single-consumer FIFO queue
// based on a linked list with a swap-on-enqueue tail.
//
// head is touched only by the consumer and always points at a stale
// "dummy" node whose value has already been returned (or, for a fresh
// queue, was never set); the real value of the logical head of the
// queue lives in head.next. Producers atomically exchange the tail
// pointer and then release-link the previous tail's next field to the
// new node.
//
// This package uses [sync/atomic]'s generic Pointer type for the node
// links rather than [code.hybscloud.com/atomix]: the teacher's own
// import surface only exposes fixed-width int/bool/uintptr atomics, and
// a bare uintptr round-trip through an atomix.Uintptr would not keep
// the pointee alive for the garbage collector. atomic.Pointer[T] is the
// one primitive in this ecosystem built for a GC-safe atomic pointer
// swap, so it is used here and nowhere else in the fabric.
//
// Key subtlety: between a producer's successful tail swap and its
// release-store of the predecessor's next field, the chain is
// momentarily broken — a consumer that has already established (via
// head != tail) that the queue is not empty may observe a transient nil
// next on some node before the one it is walking towards. Traversal
// that spans more than one node (Size, Drain) spins on that nil; Poll
// and Peek, which only ever look one hop ahead, instead report empty,
// per the package-wide poll/peek-may-return-empty contract, and DrainTo,
// which is built on Poll, stops at that point — removing the spin would break FIFO ordering, so it must
// never be removed from multi-hop traversal.
type LinkedMPSC[T any] struct {
	head *linkedNode[T]
	_    cacheline.Pad
	tail atomic.Pointer[linkedNode[T]]
}

type linkedNode[T any] struct {
	next atomic.Pointer[linkedNode[T]]
	val  T
}

// NewLinkedMPSC creates an empty unbounded queue.
func NewLinkedMPSC[T any]() *LinkedMPSC[T] {
	dummy := &linkedNode[T]{}
	q := &LinkedMPSC[T]{head: dummy}
	q.tail.Store(dummy)
	return q
}

// Enqueue adds elem to the queue (multiple producers safe). Unbounded
// queues never reject an enqueue.
func (q *LinkedMPSC[T]) Enqueue(elem T) {
	n := &linkedNode[T]{val: elem}
	prev := q.tail.Swap(n)
	prev.next.Store(n)
}

// Poll removes and returns the head element (single consumer only).
func (q *LinkedMPSC[T]) Poll() (T, bool) {
	next := q.head.next.Load()
	if next == nil {
		var zero T
		return zero, false
	}
	val := next.val
	var zero T
	next.val = zero
	q.head = next
	return val, true
}

// Peek returns the head element without removing it (single consumer
// only).
func (q *LinkedMPSC[T]) Peek() (T, bool) {
	next := q.head.next.Load()
	if next == nil {
		var zero T
		return zero, false
	}
	return next.val, true
}

// IsEmpty reports whether the queue is logically empty. Unlike Poll and
// Peek, this never reports a false positive during a producer's
// momentary swap/link gap, because it compares head against tail
// directly instead of walking a next pointer.
func (q *LinkedMPSC[T]) IsEmpty() bool {
	return q.head == q.tail.Load()
}

// Size returns the number of elements currently in the queue (single
// consumer only). It walks the chain from head to a snapshot of tail,
// spin-reading any transient nil next pointer it encounters along the
// way.
func (q *LinkedMPSC[T]) Size() int {
	tail := q.tail.Load()
	if q.head == tail {
		return 0
	}
	sw := spin.Wait{}
	n := 0
	cur := q.head
	for cur != tail {
		next := cur.next.Load()
		for next == nil {
			sw.Once()
			next = cur.next.Load()
		}
		cur = next
		n++
	}
	return n
}

// Drain removes and passes every currently available element to
// handler, in FIFO order, and returns the count handled. It is bounded
// by a snapshot of tail taken at entry, so a producer racing with Drain
// never causes it to spin forever.
func (q *LinkedMPSC[T]) Drain(handler func(T)) int {
	tail := q.tail.Load()
	sw := spin.Wait{}
	n := 0
	for q.head != tail {
		next := q.head.next.Load()
		for next == nil {
			sw.Once()
			next = q.head.next.Load()
		}
		val := next.val
		var zero T
		next.val = zero
		q.head = next
		handler(val)
		n++
	}
	return n
}

// DrainTo removes up to limit elements into dst and returns the count
// copied.
func (q *LinkedMPSC[T]) DrainTo(dst []T, limit int) int {
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
