// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xchg_test

import (
	"errors"
	"testing"

	"code.hybscloud.com/xchg"
)

// =============================================================================
// AtomicBuffer - Basic Operations
// =============================================================================

func TestAtomicBufferPlainAccess(t *testing.T) {
	buf := xchg.NewAtomicBuffer(make([]byte, 32))

	if err := buf.PutInt32(0, 42); err != nil {
		t.Fatalf("PutInt32: %v", err)
	}
	v, err := buf.GetInt32(0)
	if err != nil || v != 42 {
		t.Fatalf("GetInt32: got (%d, %v), want (42, nil)", v, err)
	}

	if err := buf.PutInt64(8, -7); err != nil {
		t.Fatalf("PutInt64: %v", err)
	}
	v64, err := buf.GetInt64(8)
	if err != nil || v64 != -7 {
		t.Fatalf("GetInt64: got (%d, %v), want (-7, nil)", v64, err)
	}
}

func TestAtomicBufferOutOfBounds(t *testing.T) {
	buf := xchg.NewAtomicBuffer(make([]byte, 8))
	_, err := buf.GetInt64(4)
	var oob *xchg.OutOfBoundsError
	if !errors.As(err, &oob) {
		t.Fatalf("GetInt64 past capacity: got %v, want *OutOfBoundsError", err)
	}
}

func TestAtomicBufferAlignment(t *testing.T) {
	buf := xchg.NewAtomicBuffer(make([]byte, 16))

	if _, err := buf.GetInt32Volatile(1); err == nil {
		t.Fatal("GetInt32Volatile at unaligned offset 1: want error, got nil")
	}
	if _, err := buf.GetInt32Volatile(0); err != nil {
		t.Fatalf("GetInt32Volatile at offset 0: %v", err)
	}
	if _, err := buf.GetInt64Volatile(4); err == nil {
		t.Fatal("GetInt64Volatile at unaligned offset 4: want error, got nil")
	}
	if _, err := buf.GetInt64Volatile(0); err != nil {
		t.Fatalf("GetInt64Volatile at offset 0: %v", err)
	}
}

func TestAtomicBufferCompareAndSet(t *testing.T) {
	buf := xchg.NewAtomicBuffer(make([]byte, 8))
	_ = buf.PutInt64Ordered(0, 1)

	ok, err := buf.CompareAndSetInt64(0, 1, 2)
	if err != nil || !ok {
		t.Fatalf("CompareAndSetInt64 expected success: ok=%v err=%v", ok, err)
	}
	ok, err = buf.CompareAndSetInt64(0, 1, 3)
	if err != nil || ok {
		t.Fatalf("CompareAndSetInt64 expected failure on stale expected: ok=%v err=%v", ok, err)
	}
}

func TestAtomicBufferStringUTF8(t *testing.T) {
	buf := xchg.NewAtomicBuffer(make([]byte, 64))
	n, err := buf.PutStringUTF8(0, "hello")
	if err != nil {
		t.Fatalf("PutStringUTF8: %v", err)
	}
	s, consumed, err := buf.GetStringUTF8(0)
	if err != nil || s != "hello" || consumed != n {
		t.Fatalf("GetStringUTF8: got (%q, %d, %v), want (\"hello\", %d, nil)", s, consumed, err, n)
	}
}

func TestAtomicBufferIntAscii(t *testing.T) {
	buf := xchg.NewAtomicBuffer(make([]byte, 32))
	n, err := buf.PutIntAscii(0, -1234)
	if err != nil {
		t.Fatalf("PutIntAscii: %v", err)
	}
	v, err := buf.ParseIntAscii(0, n)
	if err != nil || v != -1234 {
		t.Fatalf("ParseIntAscii: got (%d, %v), want (-1234, nil)", v, err)
	}
}

// =============================================================================
// Bounded Queues - Basic Operations
// =============================================================================

func TestSPSCBasic(t *testing.T) {
	q := xchg.NewSPSC[int](3)
	if q.Cap() != 4 {
		t.Fatalf("Cap: got %d, want 4", q.Cap())
	}
	for i := range 4 {
		if !q.Offer(i + 100) {
			t.Fatalf("Offer(%d): want true", i)
		}
	}
	if q.Offer(999) {
		t.Fatal("Offer on full queue: want false")
	}
	for i := range 4 {
		v, ok := q.Poll()
		if !ok || v != i+100 {
			t.Fatalf("Poll(%d): got (%d, %v), want (%d, true)", i, v, ok, i+100)
		}
	}
	if _, ok := q.Poll(); ok {
		t.Fatal("Poll on empty queue: want false")
	}
}

func TestMPSCBasic(t *testing.T) {
	q := xchg.NewMPSC[int](3)
	if q.Cap() != 4 {
		t.Fatalf("Cap: got %d, want 4", q.Cap())
	}
	for i := range 4 {
		if !q.Offer(i + 100) {
			t.Fatalf("Offer(%d): want true", i)
		}
	}
	if q.Offer(999) {
		t.Fatal("Offer on full queue: want false")
	}
	for i := range 4 {
		v, ok := q.Poll()
		if !ok || v != i+100 {
			t.Fatalf("Poll(%d): got (%d, %v), want (%d, true)", i, v, ok, i+100)
		}
	}
}

func TestMPMCBasic(t *testing.T) {
	q := xchg.NewMPMC[int](3)
	if q.Cap() != 4 {
		t.Fatalf("Cap: got %d, want 4", q.Cap())
	}
	for i := range 4 {
		if !q.Offer(i + 100) {
			t.Fatalf("Offer(%d): want true", i)
		}
	}
	if q.Offer(999) {
		t.Fatal("Offer on full queue: want false")
	}
	for i := range 4 {
		v, ok := q.Poll()
		if !ok || v != i+100 {
			t.Fatalf("Poll(%d): got (%d, %v), want (%d, true)", i, v, ok, i+100)
		}
	}
}

func TestBoundedQueueDrain(t *testing.T) {
	q := xchg.NewMPMC[int](8)
	for i := range 5 {
		q.Offer(i)
	}
	var got []int
	n := q.Drain(func(v int) { got = append(got, v) })
	if n != 5 || len(got) != 5 {
		t.Fatalf("Drain: got n=%d len=%d, want 5", n, len(got))
	}
	if q.Size() != 0 {
		t.Fatalf("Size after Drain: got %d, want 0", q.Size())
	}
}

func TestLinkedMPSCBasic(t *testing.T) {
	q := xchg.NewLinkedMPSC[int]()
	if !q.IsEmpty() {
		t.Fatal("new queue: want empty")
	}
	for i := range 10 {
		q.Enqueue(i)
	}
	if q.IsEmpty() {
		t.Fatal("queue after Enqueue: want not empty")
	}
	if got := q.Size(); got != 10 {
		t.Fatalf("Size: got %d, want 10", got)
	}
	for i := range 10 {
		v, ok := q.Poll()
		if !ok || v != i {
			t.Fatalf("Poll(%d): got (%d, %v), want (%d, true)", i, v, ok, i)
		}
	}
	if !q.IsEmpty() {
		t.Fatal("drained queue: want empty")
	}
	if _, ok := q.Poll(); ok {
		t.Fatal("Poll on drained queue: want false")
	}
}
