// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xchg_test

import (
	"bytes"
	"errors"
	"testing"

	"code.hybscloud.com/xchg"
)

func newRingBuffer(t *testing.T, dataCapacity int) *xchg.RecordRingBuffer {
	t.Helper()
	buf := xchg.NewAtomicBuffer(make([]byte, dataCapacity+xchg.RingBufferTrailerLength))
	rb, err := xchg.NewRecordRingBuffer(buf)
	if err != nil {
		t.Fatalf("NewRecordRingBuffer: %v", err)
	}
	return rb
}

func TestRecordRingBufferWriteRead(t *testing.T) {
	rb := newRingBuffer(t, 128)

	payload := []byte("hello ring")
	if err := rb.Write(1, payload); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var gotType int32
	var got []byte
	n := rb.Read(func(typeID int32, buf *xchg.AtomicBuffer, offset, length int) {
		gotType = typeID
		dst := make([]byte, length)
		_, _ = buf.GetBytes(offset, dst)
		got = dst
	}, 10)

	if n != 1 {
		t.Fatalf("Read count: got %d, want 1", n)
	}
	if gotType != 1 {
		t.Fatalf("typeID: got %d, want 1", gotType)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload: got %q, want %q", got, payload)
	}
}

// TestRecordRingBufferZeroLengthPayload confirms a zero-length payload
// is a valid message: the record is just the 8-byte header, length
// field committed to exactly 8.
func TestRecordRingBufferZeroLengthPayload(t *testing.T) {
	rb := newRingBuffer(t, 64)

	if err := rb.Write(1, nil); err != nil {
		t.Fatalf("Write with nil payload: %v", err)
	}

	gotCalls := 0
	n := rb.Read(func(typeID int32, buf *xchg.AtomicBuffer, offset, length int) {
		gotCalls++
		if typeID != 1 {
			t.Fatalf("typeID: got %d, want 1", typeID)
		}
		if length != 0 {
			t.Fatalf("length: got %d, want 0", length)
		}
	}, 10)
	if n != 1 || gotCalls != 1 {
		t.Fatalf("Read: got n=%d calls=%d, want 1, 1", n, gotCalls)
	}
}

func TestRecordRingBufferTooLarge(t *testing.T) {
	rb := newRingBuffer(t, 64) // maxMsgLength = 8
	err := rb.Write(1, make([]byte, 64))
	if !errors.Is(err, xchg.ErrTooLarge) {
		t.Fatalf("Write oversized payload: got %v, want ErrTooLarge", err)
	}
}

func TestRecordRingBufferInvalidTypeID(t *testing.T) {
	rb := newRingBuffer(t, 64)
	if err := rb.Write(0, []byte("x")); !errors.Is(err, xchg.ErrInvalidTypeID) {
		t.Fatalf("Write with typeID=0: got %v, want ErrInvalidTypeID", err)
	}
	if err := rb.Write(-1, []byte("x")); !errors.Is(err, xchg.ErrInvalidTypeID) {
		t.Fatalf("Write with typeID=-1: got %v, want ErrInvalidTypeID", err)
	}
}

// TestRecordRingBufferWrapPadding drives the ring through exactly the
// scenario claimCapacity exists for: fill the ring so a later record
// would run past the end, consume enough that the producer is allowed
// to wrap, and confirm a padding record is transparently inserted and
// skipped by the reader, with the payload surviving intact on the far
// side of the wrap.
func TestRecordRingBufferWrapPadding(t *testing.T) {
	rb := newRingBuffer(t, 128) // maxMsgLength = 16

	// Seven 13-byte records (5-byte payload + 8-byte header) of 16-byte
	// required size each fill the ring to exactly 112 of 128 bytes,
	// leaving a 16-byte tail fragment that is too small for what comes
	// next.
	for i := range 7 {
		payload := []byte{byte(i), byte(i), byte(i), byte(i), byte(i)}
		if err := rb.Write(int32(i+1), payload); err != nil {
			t.Fatalf("Write record %d: %v", i, err)
		}
	}

	var consumed [][]byte
	n := rb.Read(func(typeID int32, buf *xchg.AtomicBuffer, offset, length int) {
		dst := make([]byte, length)
		_, _ = buf.GetBytes(offset, dst)
		consumed = append(consumed, dst)
	}, 100)
	if n != 7 {
		t.Fatalf("Read count after initial fill: got %d, want 7", n)
	}

	// The 9-byte payload below needs 17 header+payload bytes, aligned up
	// to 24 — bigger than the 16-byte fragment left at the tail. Because
	// the consumer has now caught up fully, claimCapacity is free to
	// insert a 16-byte padding record over the fragment and wrap the
	// real record to index 0.
	wrapped := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9}
	if err := rb.Write(42, wrapped); err != nil {
		t.Fatalf("Write wrapped record: %v", err)
	}

	// First Read call only sees the padding record at the tail fragment
	// (messageCountLimit is never reached — the contiguous block simply
	// ends there) and dispatches nothing to the handler.
	padCalls := 0
	n = rb.Read(func(int32, *xchg.AtomicBuffer, int, int) { padCalls++ }, 100)
	if n != 0 || padCalls != 0 {
		t.Fatalf("Read over padding fragment: got n=%d calls=%d, want 0, 0", n, padCalls)
	}

	// Second Read call, now that head has wrapped to index 0, picks up
	// the real record.
	var gotType int32
	var gotPayload []byte
	n = rb.Read(func(typeID int32, buf *xchg.AtomicBuffer, offset, length int) {
		gotType = typeID
		dst := make([]byte, length)
		_, _ = buf.GetBytes(offset, dst)
		gotPayload = dst
	}, 100)
	if n != 1 {
		t.Fatalf("Read after wrap: got n=%d, want 1", n)
	}
	if gotType != 42 {
		t.Fatalf("typeID after wrap: got %d, want 42", gotType)
	}
	if !bytes.Equal(gotPayload, wrapped) {
		t.Fatalf("payload after wrap: got %v, want %v", gotPayload, wrapped)
	}
}

func TestRecordRingBufferUnblockAbortedReservation(t *testing.T) {
	buf := xchg.NewAtomicBuffer(make([]byte, 128+xchg.RingBufferTrailerLength))
	rb, err := xchg.NewRecordRingBuffer(buf)
	if err != nil {
		t.Fatalf("NewRecordRingBuffer: %v", err)
	}

	// Simulate a producer that reserved an 8-byte (header-only, empty
	// payload) record and died before committing: the length word at
	// the consumer's current index is negative, type-id is whatever the
	// producer had already published. Native-order field writes
	// reconstruct exactly what the package's single-atomic-word header
	// write would have produced, per the documented wire layout.
	if err := buf.PutInt32(0, -8); err != nil {
		t.Fatalf("simulate reserved length: %v", err)
	}
	if err := buf.PutInt32(4, 7); err != nil {
		t.Fatalf("simulate type-id: %v", err)
	}

	ok := rb.Unblock()
	if !ok {
		t.Fatal("Unblock: want true for an aborted reservation")
	}

	length, _ := buf.GetInt32(0)
	typeID, _ := buf.GetInt32(4)
	if length != 8 {
		t.Fatalf("length after unblock: got %d, want 8", length)
	}
	if typeID != xchg.RingBufferPaddingTypeID {
		t.Fatalf("type-id after unblock: got %d, want %d", typeID, xchg.RingBufferPaddingTypeID)
	}

	// A second Unblock on an already-repaired (positive length,
	// padding type) slot has nothing left to fix.
	if rb.Unblock() {
		t.Fatal("Unblock on a repaired slot: want false")
	}
}

func TestRecordRingBufferCorrelationAndHeartbeat(t *testing.T) {
	rb := newRingBuffer(t, 64)

	first := rb.NextCorrelationID()
	second := rb.NextCorrelationID()
	if second != first+1 {
		t.Fatalf("NextCorrelationID: got %d then %d, want a +1 step", first, second)
	}

	rb.SetConsumerHeartbeatTime(12345)
	if got := rb.ConsumerHeartbeatTime(); got != 12345 {
		t.Fatalf("ConsumerHeartbeatTime: got %d, want 12345", got)
	}
}
