// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xchg

import "code.hybscloud.com/xchg/internal/cacheline"

// Counters wire layout, grounded on the same trailer/record padding
// discipline as RecordRingBuffer and Broadcast: every stride is a
// multiple of the cache line so no two counters, and no counter and its
// own metadata record, ever share a line.
const (
	// counterValueStride is the per-counter stride in the values
	// buffer: an 8-byte value plus padding out to two cache lines.
	counterValueStride = cacheline.Length * 2

	// counterMetadataLength is the per-counter stride in the metadata
	// buffer, split evenly between a label region and a key region.
	counterMetadataLength    = cacheline.Length * 4
	counterLabelRegionLength = counterMetadataLength / 2
	counterKeyRegionLength   = counterMetadataLength - counterLabelRegionLength

	counterLabelLengthFree       int32 = -1
	counterLabelLengthTerminator int32 = 0
)

func countersMaxSlots(values, metadata *AtomicBuffer) (maxFromValues, maxFromMetadata int32) {
	return int32(values.Capacity() / counterValueStride), int32(metadata.Capacity() / counterMetadataLength)
}

// CountersManager is the single allocating owner of a counters fabric:
// two collaborating AtomicBuffers, one holding fixed-stride 8-byte
// counter values, the other holding fixed-stride metadata records
// (label, type-id, optional key blob). Only one CountersManager should
// exist per pair of buffers — metadata records are written under the
// allocator's exclusive ownership, as spec'd — but any number of
// CountersReader instances may read alongside it.
type CountersManager struct {
	values   *AtomicBuffer
	metadata *AtomicBuffer

	maxFromValues   int32
	maxFromMetadata int32
	highWaterMark   int32

	// freeIDs is the manager's own LIFO free-id stack. It is not part
	// of the shared wire layout: a freed slot is identified entirely by
	// its metadata label-length word, so any reader can detect it, but
	// only this manager needs to remember which ids to hand out next.
	freeIDs []int32
}

// NewCountersManager creates a manager over values and metadata. Per
// §4.6's invariant, metadata must have at least twice the capacity of
// values; this holds automatically whenever both buffers are sized from
// the same counter count, since counterMetadataLength is exactly twice
// counterValueStride.
func NewCountersManager(values, metadata *AtomicBuffer) (*CountersManager, error) {
	maxFromValues, maxFromMetadata := countersMaxSlots(values, metadata)
	if maxFromValues <= 0 || maxFromMetadata <= 0 {
		return nil, &CapacityNotPowerOfTwoError{Capacity: values.Capacity()}
	}
	return &CountersManager{
		values:          values,
		metadata:        metadata,
		maxFromValues:   maxFromValues,
		maxFromMetadata: maxFromMetadata,
	}, nil
}

func (m *CountersManager) maxCounters() int32 {
	if m.maxFromValues < m.maxFromMetadata {
		return m.maxFromValues
	}
	return m.maxFromMetadata
}

// Allocate reserves a counter id, writing its metadata record. It pops
// a freed id if one is available, otherwise bumps the high-water mark.
// keyWriter, if non-nil, is called with the metadata buffer and the
// absolute offset of the key region to encode an optional key blob; it
// may write up to counterKeyRegionLength-4 bytes.
func (m *CountersManager) Allocate(label string, typeID int32, keyWriter func(buf *AtomicBuffer, offset int) error) (int32, error) {
	if label == "" {
		return 0, ErrEmptyLabel
	}

	var id int32
	if n := len(m.freeIDs); n > 0 {
		id = m.freeIDs[n-1]
		m.freeIDs = m.freeIDs[:n-1]
	} else {
		id = m.highWaterMark
		if id >= m.maxCounters() {
			if m.maxFromValues <= m.maxFromMetadata {
				return 0, ErrValuesExhausted
			}
			return 0, ErrMetadataExhausted
		}
		m.highWaterMark++
	}

	metaOffset := int(id) * counterMetadataLength
	valOffset := int(id) * counterValueStride

	typeIDOffset := metaOffset + counterLabelRegionLength
	keyBytesOffset := typeIDOffset + 4

	if err := m.metadata.PutInt32(typeIDOffset, typeID); err != nil {
		return 0, err
	}
	if keyWriter != nil {
		if err := keyWriter(m.metadata, keyBytesOffset); err != nil {
			return 0, err
		}
	}

	labelBytes := []byte(label)
	n := len(labelBytes)
	if max := counterLabelRegionLength - 4; n > max {
		n = max
	}
	if _, err := m.metadata.PutBytes(metaOffset+4, labelBytes[:n]); err != nil {
		return 0, err
	}
	if err := m.values.PutInt64Ordered(valOffset, 0); err != nil {
		return 0, err
	}
	// Release-store the label-length word last: this is the visibility
	// gate a reader's ForEach checks before trusting the rest of the
	// record.
	if err := m.metadata.PutInt32Ordered(metaOffset, int32(n)); err != nil {
		return 0, err
	}
	return id, nil
}

// Free releases id: its label-length is set to the free marker and the
// id is pushed onto the free-id stack for reuse by a future Allocate.
func (m *CountersManager) Free(id int32) error {
	metaOffset := int(id) * counterMetadataLength
	if err := m.metadata.PutInt32Ordered(metaOffset, counterLabelLengthFree); err != nil {
		return err
	}
	m.freeIDs = append(m.freeIDs, id)
	return nil
}

// NewCounter allocates a counter and returns a handle bound to it.
func (m *CountersManager) NewCounter(label string, typeID int32, keyWriter func(buf *AtomicBuffer, offset int) error) (*AtomicCounter, error) {
	id, err := m.Allocate(label, typeID, keyWriter)
	if err != nil {
		return nil, err
	}
	return &AtomicCounter{
		values: m.values,
		offset: int(id) * counterValueStride,
		id:     id,
		mgr:    m,
	}, nil
}

// AtomicCounter is a handle to one allocated counter value. Every
// operation is a single 8-byte atomic at the counter's slot offset.
type AtomicCounter struct {
	values *AtomicBuffer
	offset int
	id     int32
	mgr    *CountersManager
}

// ID returns the counter's allocated id.
func (c *AtomicCounter) ID() int32 { return c.id }

// Increment adds 1 with release semantics and returns the new value.
func (c *AtomicCounter) Increment() (int64, error) {
	return c.Add(1)
}

// Add adds delta with release semantics and returns the new value.
func (c *AtomicCounter) Add(delta int64) (int64, error) {
	before, err := c.values.AddInt64Ordered(c.offset, delta)
	if err != nil {
		return 0, err
	}
	return before + delta, nil
}

// Set release-stores value.
func (c *AtomicCounter) Set(value int64) error {
	return c.values.PutInt64Ordered(c.offset, value)
}

// Get returns the counter's value with sequential consistency.
func (c *AtomicCounter) Get() (int64, error) {
	return c.values.GetInt64Volatile(c.offset)
}

// Close frees the counter, returning its id for reuse.
func (c *AtomicCounter) Close() error {
	return c.mgr.Free(c.id)
}

// CountersReader is a read-only view over a counters fabric. Any
// number of readers may coexist with the one CountersManager that owns
// allocation.
type CountersReader struct {
	values   *AtomicBuffer
	metadata *AtomicBuffer
	max      int32
}

// NewCountersReader opens an existing counters fabric for reading.
func NewCountersReader(values, metadata *AtomicBuffer) (*CountersReader, error) {
	maxFromValues, maxFromMetadata := countersMaxSlots(values, metadata)
	if maxFromValues <= 0 || maxFromMetadata <= 0 {
		return nil, &CapacityNotPowerOfTwoError{Capacity: values.Capacity()}
	}
	max := maxFromValues
	if maxFromMetadata < max {
		max = maxFromMetadata
	}
	return &CountersReader{values: values, metadata: metadata, max: max}, nil
}

// GetCounterValue returns the current value of counter id.
func (r *CountersReader) GetCounterValue(id int32) (int64, error) {
	return r.values.GetInt64Volatile(int(id) * counterValueStride)
}

// ForEach walks metadata records from id 0 until the first unused
// (terminator) slot, invoking fn(id, typeID, label) for every allocated
// (non-freed) counter it passes over.
func (r *CountersReader) ForEach(fn func(id int32, typeID int32, label string)) error {
	for id := int32(0); id < r.max; id++ {
		metaOffset := int(id) * counterMetadataLength
		labelLength, err := r.metadata.GetInt32Volatile(metaOffset)
		if err != nil {
			return err
		}
		if labelLength == counterLabelLengthTerminator {
			return nil
		}
		if labelLength == counterLabelLengthFree {
			continue
		}
		label, err := r.metadata.GetStringWithoutLengthUTF8(metaOffset+4, int(labelLength))
		if err != nil {
			return err
		}
		typeID, err := r.metadata.GetInt32(metaOffset + counterLabelRegionLength)
		if err != nil {
			return err
		}
		fn(id, typeID, label)
	}
	return nil
}
