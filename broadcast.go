// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xchg

import "code.hybscloud.com/xchg/internal/cacheline"

// Broadcast slot layout, grounded on the same aeron-go buffer-access
// conventions as RecordRingBuffer, specialized to fixed-size slots and
// a lossy many-reader fan-out instead of a FIFO.
const (
	broadcastIndicatorOffset = 0
	broadcastLengthOffset    = 8
	broadcastTypeIDOffset    = 12
	broadcastPayloadOffset   = 16

	broadcastRecordSizeOffset    = 0
	broadcastLatestCounterOffset = cacheline.Length * 2

	// BroadcastTrailerLength is the number of trailer bytes a caller
	// must add to the slot region's size when sizing the backing
	// buffer passed to NewBroadcastTransmitter / NewBroadcastReceiver.
	BroadcastTrailerLength = cacheline.Length * 4
)

// ReceiveStatus is the outcome of a BroadcastReceiver.ReceiveNext call.
// Loss is a first-class result, not an error: a slow receiver is
// expected to fall behind a broadcast transmitter and must recover by
// resynchronizing, never by blocking the transmitter.
type ReceiveStatus int

const (
	// NotAvailable means no record newer than the receiver's expected
	// sequence has been published yet.
	NotAvailable ReceiveStatus = iota
	// AnyAvailable means a record was read; TypeID/Offset/Length on the
	// result describe it. The caller should finish reading the payload
	// and call Validate before trusting it, since a slow reader can be
	// lapped by the transmitter mid-read.
	AnyAvailable
	// Loss means the transmitter has wrapped past the receiver's
	// expected sequence by at least the slot count; some number of
	// records (ReceiveResult.Lost) were never observed.
	Loss
)

// ReceiveResult is returned by BroadcastReceiver.ReceiveNext.
type ReceiveResult struct {
	Status ReceiveStatus
	TypeID int32
	Offset int
	Length int
	Lost   int64
}

// BroadcastTransmitter is the single writer of a fixed-record broadcast
// channel. It never blocks and never reads a receiver's state; it only
// overwrites slots in a ring and advances the trailer's latest-sequence
// counter.
type BroadcastTransmitter struct {
	buffer     *AtomicBuffer
	recordSize int32
	slotCount  int32
	mask       int32

	latestCounterIndex int

	// sequence is exclusive to the single transmitter; no atomic needed.
	sequence int64
}

// NewBroadcastTransmitter wraps buffer as a broadcast channel of fixed
// recordSize slots, writing recordSize into the trailer so a receiver
// can discover it on open. The slot region (buffer.Capacity() -
// BroadcastTrailerLength) must be an exact, power-of-two multiple of
// recordSize.
func NewBroadcastTransmitter(buffer *AtomicBuffer, recordSize int) (*BroadcastTransmitter, error) {
	slotCount, err := broadcastSlotCount(buffer, recordSize)
	if err != nil {
		return nil, err
	}
	t := &BroadcastTransmitter{
		buffer:             buffer,
		recordSize:         int32(recordSize),
		slotCount:          int32(slotCount),
		mask:               int32(slotCount) - 1,
		latestCounterIndex: buffer.Capacity() - BroadcastTrailerLength + broadcastLatestCounterOffset,
	}
	if err := buffer.PutInt32Ordered(buffer.Capacity()-BroadcastTrailerLength+broadcastRecordSizeOffset, int32(recordSize)); err != nil {
		return nil, err
	}
	return t, nil
}

func broadcastSlotCount(buffer *AtomicBuffer, recordSize int) (int, error) {
	capacity := buffer.Capacity() - BroadcastTrailerLength
	if recordSize <= 0 || capacity <= 0 || capacity%recordSize != 0 {
		return 0, &CapacityNotPowerOfTwoError{Capacity: capacity}
	}
	slotCount := capacity / recordSize
	if !isPowerOfTwo(slotCount) {
		return 0, &CapacityNotPowerOfTwoError{Capacity: slotCount}
	}
	return slotCount, nil
}

// Transmit publishes payload under typeID to the next slot. typeID must
// be positive; the full record (header + payload) must not exceed the
// configured record size.
func (t *BroadcastTransmitter) Transmit(typeID int32, payload []byte) error {
	if typeID <= 0 {
		return ErrInvalidTypeID
	}
	recordLength := len(payload) + broadcastPayloadOffset
	if int32(recordLength) > t.recordSize {
		return ErrTooLarge
	}

	// Sequences start at 1, so an indicator of 0 always marks a slot
	// that has never been written.
	seq := t.sequence + 1
	slot := int32(seq) & t.mask
	offset := int(slot) * int(t.recordSize)

	// Payload, length, and type-id are plain writes: this region is
	// exclusively owned by the transmitter until the release-store of
	// the sequence indicator below publishes it.
	if _, err := t.buffer.PutBytes(offset+broadcastPayloadOffset, payload); err != nil {
		return err
	}
	if err := t.buffer.PutInt32(offset+broadcastLengthOffset, int32(recordLength)); err != nil {
		return err
	}
	if err := t.buffer.PutInt32(offset+broadcastTypeIDOffset, typeID); err != nil {
		return err
	}
	if err := t.buffer.PutInt64Ordered(offset+broadcastIndicatorOffset, seq); err != nil {
		return err
	}

	t.sequence = seq
	return t.buffer.PutInt64Ordered(t.latestCounterIndex, seq)
}

// BroadcastReceiver is one of many independent, lossy readers of a
// broadcast channel. It never mutates the channel.
type BroadcastReceiver struct {
	buffer     *AtomicBuffer
	recordSize int32
	slotCount  int32
	mask       int32

	latestCounterIndex int

	expected           int64
	lostTransmissions  int64
	lastSlotOffset     int
	lastIndicatorValue int64
}

// NewBroadcastReceiver opens an existing broadcast channel, discovering
// its record size from the trailer a transmitter already initialized.
func NewBroadcastReceiver(buffer *AtomicBuffer) (*BroadcastReceiver, error) {
	capacity := buffer.Capacity() - BroadcastTrailerLength
	if capacity <= 0 {
		return nil, &CapacityNotPowerOfTwoError{Capacity: capacity}
	}
	recordSize, err := buffer.GetInt32Volatile(capacity + broadcastRecordSizeOffset)
	if err != nil {
		return nil, err
	}
	slotCount, err := broadcastSlotCount(buffer, int(recordSize))
	if err != nil {
		return nil, err
	}
	return &BroadcastReceiver{
		buffer:             buffer,
		recordSize:         recordSize,
		slotCount:          int32(slotCount),
		mask:               int32(slotCount) - 1,
		latestCounterIndex: capacity + broadcastLatestCounterOffset,
		expected:           1,
	}, nil
}

// LostTransmissions returns the cumulative count of records this
// receiver knows it never observed.
func (r *BroadcastReceiver) LostTransmissions() int64 {
	return r.lostTransmissions
}

// ReceiveNext attempts to read the record at the receiver's expected
// sequence. On AnyAvailable the caller should read the payload out of
// the returned buffer region and then call Validate before trusting
// it, since a slow reader can be lapped by the transmitter mid-read.
func (r *BroadcastReceiver) ReceiveNext() ReceiveResult {
	slot := int32(r.expected) & r.mask
	offset := int(slot) * int(r.recordSize)

	indicator, _ := r.buffer.GetInt64Volatile(offset + broadcastIndicatorOffset)
	if indicator < r.expected {
		return ReceiveResult{Status: NotAvailable}
	}
	if indicator > r.expected+int64(r.slotCount)-1 {
		lost := indicator - r.expected
		r.lostTransmissions += lost
		r.expected = indicator
		return ReceiveResult{Status: Loss, Lost: lost}
	}

	length, _ := r.buffer.GetInt32(offset + broadcastLengthOffset)
	typeID, _ := r.buffer.GetInt32(offset + broadcastTypeIDOffset)

	r.lastSlotOffset = offset
	r.lastIndicatorValue = indicator
	r.expected = indicator + 1

	return ReceiveResult{
		Status: AnyAvailable,
		TypeID: typeID,
		Offset: offset + broadcastPayloadOffset,
		Length: int(length) - broadcastPayloadOffset,
	}
}

// Validate re-reads the indicator of the last record returned by
// ReceiveNext and reports whether it is unchanged. A changed indicator
// means the transmitter has already committed a later record to the
// same slot while this receiver was reading the payload: because a
// slot only repeats every slotCount sequences, the indicator can only
// ever jump forward by a multiple of slotCount, never by less — so
// every record strictly between the one this receiver read and the
// one that overwrote it (current-last-1 of them) was never observed
// by anyone and is charged to LostTransmissions.
func (r *BroadcastReceiver) Validate() bool {
	current, _ := r.buffer.GetInt64Volatile(r.lastSlotOffset + broadcastIndicatorOffset)
	if current != r.lastIndicatorValue {
		r.lostTransmissions += current - r.lastIndicatorValue - 1
		return false
	}
	return true
}

// KeepUpWithTransmitter snaps the receiver's expected sequence forward
// to the transmitter's most recently published sequence, counting
// everything in between as lost. Use this after a receiver has been
// idle long enough that ReceiveNext would otherwise report Loss anyway.
func (r *BroadcastReceiver) KeepUpWithTransmitter() {
	latest, _ := r.buffer.GetInt64Volatile(r.latestCounterIndex)
	if latest > r.expected {
		r.lostTransmissions += latest - r.expected
		r.expected = latest
	}
}
