// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xchg

import (
	"errors"
	"fmt"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates an operation cannot proceed immediately.
//
// This is an alias for [iox.ErrWouldBlock] for ecosystem consistency.
// The components in this package do not return it themselves: a full or
// empty bounded queue reports false, a full ring buffer returns
// [ErrInsufficientCapacity], and a broadcast receiver with nothing newer
// reports [NotAvailable].
var ErrWouldBlock = iox.ErrWouldBlock

// IsWouldBlock reports whether err indicates the operation would block.
func IsWouldBlock(err error) bool {
	return iox.IsWouldBlock(err)
}

// IsSemantic reports whether err is a control-flow signal, not a failure.
func IsSemantic(err error) bool {
	return iox.IsSemantic(err)
}

// IsNonFailure reports whether err represents a non-failure condition.
func IsNonFailure(err error) bool {
	return iox.IsNonFailure(err)
}

// ErrInsufficientCapacity is returned by RecordRingBuffer.Write when the
// ring has no room for the record even after refreshing the cached head.
// It is a sentinel, not a failure — callers retry after the consumer
// makes progress. It is a distinct value: errors.Is does not match it
// against ErrWouldBlock.
var ErrInsufficientCapacity = errors.New("xchg: insufficient capacity")

// ErrTooLarge is returned by RecordRingBuffer.Write when the payload
// exceeds MaxMsgLength (capacity/8).
var ErrTooLarge = errors.New("xchg: message exceeds max length")

// ErrInvalidTypeID is returned by RecordRingBuffer.Write when typeID is
// not a positive, non-reserved value.
var ErrInvalidTypeID = errors.New("xchg: invalid type id")

// ErrMetadataExhausted is returned by CountersManager.Allocate when the metadata
// buffer has no room for another record.
var ErrMetadataExhausted = errors.New("xchg: counters metadata exhausted")

// ErrValuesExhausted is returned by CountersManager.Allocate when the values
// buffer has no room for another slot.
var ErrValuesExhausted = errors.New("xchg: counters values exhausted")

// ErrEmptyLabel is returned by CountersManager.Allocate when label is empty.
// A metadata record's label-length field doubles as its in-use marker
// (N>0 means allocated, 0 means never-written, -1 means freed), so an
// empty label would be indistinguishable from an unwritten terminator
// record and break CountersReader.ForEach for every counter after it.
var ErrEmptyLabel = errors.New("xchg: counter label must not be empty")

// OutOfBoundsError reports an AtomicBuffer access outside [0, capacity).
// It is a programmer error: callers must not retry, only fix the call.
type OutOfBoundsError struct {
	Index    int
	Size     int
	Capacity int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("xchg: index out of bounds: index=%d size=%d capacity=%d", e.Index, e.Size, e.Capacity)
}

// UnalignedAtomicAccessError reports an atomic access whose absolute
// address is not a multiple of the access width. It is a programmer
// error surfaced unchanged to the caller.
type UnalignedAtomicAccessError struct {
	Address  uintptr
	Divisor  int
}

func (e *UnalignedAtomicAccessError) Error() string {
	return fmt.Sprintf("xchg: unaligned atomic access: address=%#x is not a multiple of %d", e.Address, e.Divisor)
}

// CapacityNotPowerOfTwoError reports a constructor argument that is not
// a power of two where one is structurally required (e.g. ring buffer
// and broadcast channel data capacity, which — unlike the bounded array
// queues — do not silently round up). The broadcast and counters
// constructors also return it for a buffer too small to hold one slot
// or counter, and for a broadcast slot region that is not a whole
// multiple of the record size.
type CapacityNotPowerOfTwoError struct {
	Capacity int
}

func (e *CapacityNotPowerOfTwoError) Error() string {
	return fmt.Sprintf("xchg: capacity %d is not a power of two or does not fit the required layout", e.Capacity)
}
