// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xchg

import (
	"code.hybscloud.com/spin"

	"code.hybscloud.com/xchg/internal/cacheline"
)

// Record layout and trailer offsets, grounded on the aeron-go ManyToOne
// ring buffer (github.com/lirm/aeron-go, aeron/ringbuffer), itself the
// Go port of the same team's Aeron/Agrona many-to-one ring buffer that
// this spec distills. Every trailer field gets two cache lines to
// itself so no two fields — and no field and the data region — ever
// share a line.
const (
	recordAlignment       = 8
	recordHeaderLength    = 8
	ringBufferPaddingType = -1

	tailPositionOffset      = cacheline.Length * 2
	headCachePositionOffset = cacheline.Length * 4
	headPositionOffset      = cacheline.Length * 6
	correlationOffset       = cacheline.Length * 8
	consumerHeartbeatOffset = cacheline.Length * 10

	// RingBufferTrailerLength is the number of trailer bytes a caller
	// must add to the desired data capacity when sizing the backing
	// buffer passed to NewRecordRingBuffer.
	RingBufferTrailerLength = cacheline.Length * 12

	// RingBufferPaddingTypeID is the reserved type-id written into a
	// padding record. It is never delivered to a message handler.
	RingBufferPaddingTypeID int32 = ringBufferPaddingType
)

// MessageHandler is invoked by RecordRingBuffer.Read for each committed,
// non-padding record. offset and length describe the payload region
// within buf; the header is not included.
type MessageHandler func(typeID int32, buf *AtomicBuffer, offset, length int)

// RecordRingBuffer is a many-producer single-consumer variable-length
// message exchange over an AtomicBuffer.
//
// The buffer's total capacity is dataCapacity + RingBufferTrailerLength.
// dataCapacity must be an explicit power of two — unlike the bounded
// array queues, this constructor does not silently round up, because
// the wire layout may be shared with another process that must agree
// on the exact capacity.
//
// Every record is 8-byte aligned. A record's header is written as a
// single 8-byte atomic word combining a negative-while-reserved length
// in the low 32 bits with the message type-id in the high 32 bits, so
// reserving and committing a record are each a single aligned atomic
// store. This packing is a little-endian convention: on the
// little-endian platforms this fabric targets, the length sub-field
// happens to sit at the record's byte offset 0 and the type-id at
// offset 4, letting the commit step release-store just the length
// word without touching type-id.
type RecordRingBuffer struct {
	buffer       *AtomicBuffer
	capacity     int32
	mask         int32
	maxMsgLength int32

	tailPositionIndex      int
	headCachePositionIndex int
	headPositionIndex      int
	correlationIndex       int
	consumerHeartbeatIndex int

	// consumerHeadCache is the single consumer's private view of the
	// head position. Only the goroutine calling Read/Unblock touches
	// it; it is synced to the shared trailer field on every advance.
	consumerHeadCache int64
}

// NewRecordRingBuffer wraps buffer as a ring of buffer.Capacity() -
// RingBufferTrailerLength data bytes. dataCapacity must be a power of
// two.
func NewRecordRingBuffer(buffer *AtomicBuffer) (*RecordRingBuffer, error) {
	capacity := buffer.Capacity() - RingBufferTrailerLength
	if capacity <= 0 || !isPowerOfTwo(capacity) {
		return nil, &CapacityNotPowerOfTwoError{Capacity: capacity}
	}

	rb := &RecordRingBuffer{
		buffer:                 buffer,
		capacity:               int32(capacity),
		mask:                   int32(capacity) - 1,
		maxMsgLength:           int32(capacity) / 8,
		tailPositionIndex:      capacity + tailPositionOffset,
		headCachePositionIndex: capacity + headCachePositionOffset,
		headPositionIndex:      capacity + headPositionOffset,
		correlationIndex:       capacity + correlationOffset,
		consumerHeartbeatIndex: capacity + consumerHeartbeatOffset,
	}
	rb.consumerHeadCache, _ = buffer.GetInt64Volatile(rb.headPositionIndex)
	return rb, nil
}

func makeHeader(length, typeID int32) int64 {
	return int64(uint32(length)) | int64(typeID)<<32
}

func headerLength(word int64) int32 { return int32(word) }
func headerTypeID(word int64) int32 { return int32(word >> 32) }

// Capacity returns the data region capacity in bytes (excluding the
// trailer).
func (rb *RecordRingBuffer) Capacity() int {
	return int(rb.capacity)
}

// MaxMsgLength returns the largest payload Write will accept,
// capacity/8 by construction.
func (rb *RecordRingBuffer) MaxMsgLength() int {
	return int(rb.maxMsgLength)
}

// ProducerPosition returns the current tail position.
func (rb *RecordRingBuffer) ProducerPosition() int64 {
	v, _ := rb.buffer.GetInt64Volatile(rb.tailPositionIndex)
	return v
}

// ConsumerPosition returns the current head position.
func (rb *RecordRingBuffer) ConsumerPosition() int64 {
	v, _ := rb.buffer.GetInt64Volatile(rb.headPositionIndex)
	return v
}

// NextCorrelationID atomically allocates the next correlation id.
func (rb *RecordRingBuffer) NextCorrelationID() int64 {
	old, _ := rb.buffer.GetAndAddInt64(rb.correlationIndex, 1)
	return old
}

// SetConsumerHeartbeatTime release-stores the consumer's heartbeat
// timestamp (monotonic nanoseconds; the clock is an external
// collaborator, this method only stores whatever it is given).
func (rb *RecordRingBuffer) SetConsumerHeartbeatTime(nanos int64) {
	_ = rb.buffer.PutInt64Ordered(rb.consumerHeartbeatIndex, nanos)
}

// ConsumerHeartbeatTime returns the last heartbeat timestamp.
func (rb *RecordRingBuffer) ConsumerHeartbeatTime() int64 {
	v, _ := rb.buffer.GetInt64Volatile(rb.consumerHeartbeatIndex)
	return v
}

// claimCapacity reserves required bytes at a record-aligned tail
// position, inserting a padding record if the reservation would
// otherwise cross the end of the ring. It re-reads the head position a
// second time before giving up, matching the aeron-go ManyToOne
// grounding file exactly (both the "insufficient capacity" branch and
// the "padding would not fit" branch get a second look at a fresher
// head before failing).
func (rb *RecordRingBuffer) claimCapacity(required int32) (int32, error) {
	head, _ := rb.buffer.GetInt64Volatile(rb.headCachePositionIndex)

	var tail int64
	var tailIndex int32
	var padding int32
	sw := spin.Wait{}

	for {
		tail, _ = rb.buffer.GetInt64Volatile(rb.tailPositionIndex)
		available := rb.capacity - int32(tail-head)
		if required > available {
			head, _ = rb.buffer.GetInt64Volatile(rb.headPositionIndex)
			if required > rb.capacity-int32(tail-head) {
				return 0, ErrInsufficientCapacity
			}
			_ = rb.buffer.PutInt64Ordered(rb.headCachePositionIndex, head)
		}

		padding = 0
		tailIndex = int32(tail) & rb.mask
		toEnd := rb.capacity - tailIndex
		if required > toEnd {
			headIndex := int32(head) & rb.mask
			if required > headIndex {
				head, _ = rb.buffer.GetInt64Volatile(rb.headPositionIndex)
				headIndex = int32(head) & rb.mask
				if required > headIndex {
					return 0, ErrInsufficientCapacity
				}
				_ = rb.buffer.PutInt64Ordered(rb.headCachePositionIndex, head)
			}
			padding = toEnd
		}

		ok, _ := rb.buffer.CompareAndSetInt64(rb.tailPositionIndex, tail, tail+int64(required)+int64(padding))
		if ok {
			break
		}
		sw.Once()
	}

	if padding != 0 {
		_ = rb.buffer.PutInt64Ordered(int(tailIndex), makeHeader(padding, RingBufferPaddingTypeID))
		tailIndex = 0
	}
	return tailIndex, nil
}

// Write reserves space for and publishes a record carrying payload
// under typeID. typeID must be positive (non-reserved); payload must
// not exceed MaxMsgLength.
func (rb *RecordRingBuffer) Write(typeID int32, payload []byte) error {
	if typeID <= 0 {
		return ErrInvalidTypeID
	}
	if int32(len(payload)) > rb.maxMsgLength {
		return ErrTooLarge
	}

	recordLength := int32(len(payload)) + recordHeaderLength
	required := int32(alignUp(int(recordLength), recordAlignment))

	recordIndex, err := rb.claimCapacity(required)
	if err != nil {
		return err
	}

	if err := rb.buffer.PutInt64Ordered(int(recordIndex), makeHeader(-recordLength, typeID)); err != nil {
		return err
	}
	if _, err := rb.buffer.PutBytes(int(recordIndex)+recordHeaderLength, payload); err != nil {
		return err
	}
	// Commit: release-store just the length sub-field, turning the
	// reservation positive. type-id, written above, is untouched.
	return rb.buffer.PutInt32Ordered(int(recordIndex), recordLength)
}

// Read dispatches up to messageCountLimit committed records to handler,
// in FIFO order, and returns the number dispatched.
//
// If handler panics, the panic is recovered and Read stops dispatching
// further records in this call — but the bytes belonging to every
// record walked so far, including the one whose handler panicked, are
// still zeroed and the head position is still released forward. A
// handler panic never blocks the ring; it only ends the current batch
// early.
func (rb *RecordRingBuffer) Read(handler MessageHandler, messageCountLimit int) int {
	head := rb.consumerHeadCache
	headIndex := int32(head) & rb.mask
	contiguousBlockLength := rb.capacity - headIndex

	var bytesRead int32
	messagesRead := 0
	stopped := false

	defer func() {
		if bytesRead != 0 {
			_ = rb.buffer.SetMemory(int(headIndex), int(bytesRead), 0)
			rb.consumerHeadCache = head + int64(bytesRead)
			_ = rb.buffer.PutInt64Ordered(rb.headPositionIndex, rb.consumerHeadCache)
		}
	}()

	for bytesRead < contiguousBlockLength && messagesRead < messageCountLimit && !stopped {
		recordIndex := headIndex + bytesRead
		headerWord, _ := rb.buffer.GetInt64Volatile(int(recordIndex))
		length := headerLength(headerWord)
		if length <= 0 {
			break // not yet committed
		}
		bytesRead += int32(alignUp(int(length), recordAlignment))

		typeID := headerTypeID(headerWord)
		if typeID == RingBufferPaddingTypeID {
			continue
		}
		messagesRead++

		func() {
			defer func() {
				if recover() != nil {
					stopped = true
				}
			}()
			handler(typeID, rb.buffer, int(recordIndex)+recordHeaderLength, int(length)-recordHeaderLength)
		}()
	}
	return messagesRead
}

// Unblock repairs a stalled record so the consumer can make progress
// past a producer that reserved a slot and died before committing it
// (length < 0), or past a gap left by a producer whose tail has
// advanced beyond a slot it has not yet written (length == 0). Returns
// whether a repair occurred.
func (rb *RecordRingBuffer) Unblock() bool {
	consumerIndex := int32(rb.consumerHeadCache) & rb.mask

	headerWord, _ := rb.buffer.GetInt64Volatile(int(consumerIndex))
	length := headerLength(headerWord)

	if length < 0 {
		_ = rb.buffer.PutInt64Ordered(int(consumerIndex), makeHeader(-length, RingBufferPaddingTypeID))
		return true
	}
	if length != 0 {
		return false
	}

	tail, _ := rb.buffer.GetInt64Volatile(rb.tailPositionIndex)
	tailIndex := int32(tail) & rb.mask
	if consumerIndex == tailIndex {
		return false
	}

	scanIndex := consumerIndex + recordAlignment
	for scanIndex != tailIndex {
		word, _ := rb.buffer.GetInt64Volatile(int(scanIndex))
		if word != 0 {
			_ = rb.buffer.PutInt64Ordered(int(consumerIndex), makeHeader(scanIndex-consumerIndex, RingBufferPaddingTypeID))
			return true
		}
		scanIndex += recordAlignment
		if scanIndex >= rb.capacity {
			return false
		}
	}
	return false
}
