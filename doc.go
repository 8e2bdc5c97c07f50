// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package xchg provides a lock-free inter-thread exchange fabric: a
// byte-addressable atomic buffer and the family of concurrent bounded
// and unbounded queues, a variable-length ring buffer, a broadcast
// channel, and a counters fabric layered on top of it.
//
// # Layering
//
// AtomicBuffer is the substrate. The bounded array queues (SPSC, MPSC,
// MPMC) and the unbounded linked MPSC queue are self-contained and use
// their own private atomix words. RecordRingBuffer, Broadcast, and
// Counters are all layered on one or more AtomicBuffer values.
//
// # Quick Start
//
//	buf := xchg.NewAtomicBuffer(make([]byte, 4096))
//	buf.PutInt64Ordered(0, 42)
//	v, err := buf.GetInt64Volatile(0)
//
//	q := xchg.NewMPMC[int](1024)
//	if q.Offer(7) {
//	    v, ok := q.Poll()
//	}
//
//	rb, err := xchg.NewRecordRingBuffer(xchg.NewAtomicBuffer(make([]byte, 1<<20+xchg.RingBufferTrailerLength)))
//	_ = rb.Write(1, []byte("hello"))
//	rb.Read(func(typeID int32, buf *xchg.AtomicBuffer, offset, length int) {
//	    // handle message
//	}, 10)
//
// # Queue Variants
//
// SPSC, MPSC, and MPMC are all fixed-capacity, power-of-two, FIFO, and
// allocation-free once constructed. LinkedMPSC is unbounded and
// allocates one node per enqueue.
//
// Capacity rounds up to the next power of two for the bounded queues.
// RingBuffer construction requires an explicit power of two (it is not
// silently rounded, since the wire layout is shared with other
// processes that must agree on it).
//
// # Ordering Guarantees
//
// Every control word — queue head/tail, ring buffer trailer fields,
// broadcast sequence indicators, counter values — is released on
// publish and acquired on consumption, established with
// [code.hybscloud.com/atomix] typed atomics. The one exception is
// LinkedMPSC, whose node links use [sync/atomic]'s generic Pointer type.
// See each component's doc comment for its specific ordering contract.
//
// # Error Handling
//
// Capacity conditions (queue full/empty, ring buffer out of space,
// broadcast loss) are ordinary, non-panicking return values: a false
// result from the queues, the [ErrInsufficientCapacity] sentinel from
// the ring buffer, and a [ReceiveStatus] from a broadcast receiver.
// [ErrWouldBlock] is re-exported from [code.hybscloud.com/iox] for
// ecosystem consistency but is not returned by these components.
// Structural errors (out-of-bounds offsets, misaligned atomic access,
// non-power-of-two capacity where one is required) are typed errors
// returned unchanged to the caller; only constructors panic, and only
// for malformed capacity arguments.
//
// # Dependencies
//
// This package uses [code.hybscloud.com/atomix] for atomics with
// explicit memory ordering, [code.hybscloud.com/iox] for semantic
// control-flow errors, and [code.hybscloud.com/spin] for bounded CAS
// retry loops.
package xchg
