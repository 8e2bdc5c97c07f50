// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xchg

import (
	"encoding/binary"
	"math"
	"unsafe"

	"code.hybscloud.com/atomix"
)

// AtomicBuffer is a bounds-checked, endian-aware, memory-order-annotated
// random-access view over a contiguous byte region.
//
// AtomicBuffer wraps an existing []byte; it never owns or grows the
// storage. Multiple AtomicBuffer values may view the same backing
// array — that is how RecordRingBuffer, Broadcast, and Counters share
// memory with whatever process-external mechanism the caller uses to
// make it cross-process (a memory-mapped file, for instance): the core
// only supplies the memory-order toolkit, never the sharing mechanism
// itself.
//
// Every atomic operation requires its absolute address (base + index)
// to be a multiple of the operation's width; violations return
// [UnalignedAtomicAccessError] rather than silently tearing.
type AtomicBuffer struct {
	data []byte
}

// NewAtomicBuffer wraps data for typed, ordered access. data is not
// copied; the caller retains ownership and must keep it alive and
// appropriately sized for the lifetime of the AtomicBuffer.
func NewAtomicBuffer(data []byte) *AtomicBuffer {
	return &AtomicBuffer{data: data}
}

// Capacity returns the number of addressable bytes.
func (b *AtomicBuffer) Capacity() int {
	return len(b.data)
}

// baseAddr returns the address of the first byte. Capacity 0 buffers
// have no addressable byte; callers must not call this in that case.
func (b *AtomicBuffer) baseAddr() uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(b.data)))
}

// VerifyAlignment fails if the buffer's base address is not 8-byte
// aligned, which every 8-byte atomic operation in this package requires
// for at least one possible offset (offset 0).
func (b *AtomicBuffer) VerifyAlignment() error {
	if len(b.data) == 0 {
		return nil
	}
	addr := b.baseAddr()
	if addr%8 != 0 {
		return &UnalignedAtomicAccessError{Address: addr, Divisor: 8}
	}
	return nil
}

// CheckLimit fails if limit exceeds the buffer's capacity.
func (b *AtomicBuffer) CheckLimit(limit int) error {
	if limit > len(b.data) {
		return &OutOfBoundsError{Index: limit, Size: 0, Capacity: len(b.data)}
	}
	return nil
}

func (b *AtomicBuffer) boundsCheck(index, size int) error {
	if index < 0 || size < 0 || index+size > len(b.data) {
		return &OutOfBoundsError{Index: index, Size: size, Capacity: len(b.data)}
	}
	return nil
}

func (b *AtomicBuffer) alignCheck(index, width int) error {
	addr := b.baseAddr() + uintptr(index)
	if addr%uintptr(width) != 0 {
		return &UnalignedAtomicAccessError{Address: addr, Divisor: width}
	}
	return nil
}

func (b *AtomicBuffer) int32At(index int) *atomix.Int32 {
	return (*atomix.Int32)(unsafe.Pointer(&b.data[index]))
}

func (b *AtomicBuffer) int64At(index int) *atomix.Int64 {
	return (*atomix.Int64)(unsafe.Pointer(&b.data[index]))
}

// ---------------------------------------------------------------------
// Plain (non-atomic) access
// ---------------------------------------------------------------------

// GetByte returns the byte at index.
func (b *AtomicBuffer) GetByte(index int) (byte, error) {
	if err := b.boundsCheck(index, 1); err != nil {
		return 0, err
	}
	return b.data[index], nil
}

// PutByte writes value at index.
func (b *AtomicBuffer) PutByte(index int, value byte) error {
	if err := b.boundsCheck(index, 1); err != nil {
		return err
	}
	b.data[index] = value
	return nil
}

// GetInt16 returns the native-order int16 at index.
func (b *AtomicBuffer) GetInt16(index int) (int16, error) {
	return b.GetInt16Order(index, binary.NativeEndian)
}

// PutInt16 writes value at index in native order.
func (b *AtomicBuffer) PutInt16(index int, value int16) error {
	return b.PutInt16Order(index, value, binary.NativeEndian)
}

// GetInt16Order returns the int16 at index decoded with order.
func (b *AtomicBuffer) GetInt16Order(index int, order binary.ByteOrder) (int16, error) {
	if err := b.boundsCheck(index, 2); err != nil {
		return 0, err
	}
	return int16(order.Uint16(b.data[index : index+2])), nil
}

// PutInt16Order writes value at index encoded with order.
func (b *AtomicBuffer) PutInt16Order(index int, value int16, order binary.ByteOrder) error {
	if err := b.boundsCheck(index, 2); err != nil {
		return err
	}
	order.PutUint16(b.data[index:index+2], uint16(value))
	return nil
}

// GetInt32 returns the native-order int32 at index.
func (b *AtomicBuffer) GetInt32(index int) (int32, error) {
	return b.GetInt32Order(index, binary.NativeEndian)
}

// PutInt32 writes value at index in native order.
func (b *AtomicBuffer) PutInt32(index int, value int32) error {
	return b.PutInt32Order(index, value, binary.NativeEndian)
}

// GetInt32Order returns the int32 at index decoded with order.
func (b *AtomicBuffer) GetInt32Order(index int, order binary.ByteOrder) (int32, error) {
	if err := b.boundsCheck(index, 4); err != nil {
		return 0, err
	}
	return int32(order.Uint32(b.data[index : index+4])), nil
}

// PutInt32Order writes value at index encoded with order.
func (b *AtomicBuffer) PutInt32Order(index int, value int32, order binary.ByteOrder) error {
	if err := b.boundsCheck(index, 4); err != nil {
		return err
	}
	order.PutUint32(b.data[index:index+4], uint32(value))
	return nil
}

// GetInt64 returns the native-order int64 at index.
func (b *AtomicBuffer) GetInt64(index int) (int64, error) {
	return b.GetInt64Order(index, binary.NativeEndian)
}

// PutInt64 writes value at index in native order.
func (b *AtomicBuffer) PutInt64(index int, value int64) error {
	return b.PutInt64Order(index, value, binary.NativeEndian)
}

// GetInt64Order returns the int64 at index decoded with order.
func (b *AtomicBuffer) GetInt64Order(index int, order binary.ByteOrder) (int64, error) {
	if err := b.boundsCheck(index, 8); err != nil {
		return 0, err
	}
	return int64(order.Uint64(b.data[index : index+8])), nil
}

// PutInt64Order writes value at index encoded with order.
func (b *AtomicBuffer) PutInt64Order(index int, value int64, order binary.ByteOrder) error {
	if err := b.boundsCheck(index, 8); err != nil {
		return err
	}
	order.PutUint64(b.data[index:index+8], uint64(value))
	return nil
}

// GetFloat32 returns the native-order float32 at index (bit pattern
// aliases int32).
func (b *AtomicBuffer) GetFloat32(index int) (float32, error) {
	v, err := b.GetInt32(index)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(v)), nil
}

// PutFloat32 writes value at index in native order.
func (b *AtomicBuffer) PutFloat32(index int, value float32) error {
	return b.PutInt32(index, int32(math.Float32bits(value)))
}

// GetFloat64 returns the native-order float64 at index (bit pattern
// aliases int64).
func (b *AtomicBuffer) GetFloat64(index int) (float64, error) {
	v, err := b.GetInt64(index)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(uint64(v)), nil
}

// PutFloat64 writes value at index in native order.
func (b *AtomicBuffer) PutFloat64(index int, value float64) error {
	return b.PutInt64(index, int64(math.Float64bits(value)))
}

// ---------------------------------------------------------------------
// Volatile (sequentially consistent) access
// ---------------------------------------------------------------------

// GetByteVolatile returns the byte at index with sequential consistency.
//
// There is no single-byte hardware atomic on mainstream targets, so
// this loads the containing 4-byte aligned word atomically and
// extracts the byte — consistent with other volatile accesses to that
// word, but not a true independent 1-byte atomic.
func (b *AtomicBuffer) GetByteVolatile(index int) (byte, error) {
	if err := b.boundsCheck(index, 1); err != nil {
		return 0, err
	}
	wordIndex := index &^ 3
	if err := b.boundsCheck(wordIndex, 4); err != nil {
		return b.data[index], nil // tail byte with no full containing word
	}
	shift := uint(index-wordIndex) * 8
	word := b.int32At(wordIndex).LoadAcquire()
	return byte(uint32(word) >> shift), nil
}

// PutByteVolatile writes value at index with release-then-acquire
// visibility, via the same containing-word technique as
// [AtomicBuffer.GetByteVolatile].
func (b *AtomicBuffer) PutByteVolatile(index int, value byte) error {
	if err := b.boundsCheck(index, 1); err != nil {
		return err
	}
	wordIndex := index &^ 3
	if err := b.boundsCheck(wordIndex, 4); err != nil {
		b.data[index] = value
		return nil
	}
	shift := uint(index-wordIndex) * 8
	word := b.int32At(wordIndex)
	for {
		old := word.LoadAcquire()
		next := (old &^ (0xff << shift)) | int32(uint32(value)<<shift)
		if word.CompareAndSwapAcqRel(old, next) {
			return nil
		}
	}
}

// GetInt16Volatile returns the int16 at index with sequential
// consistency. index must be 2-byte aligned.
func (b *AtomicBuffer) GetInt16Volatile(index int) (int16, error) {
	if err := b.boundsCheck(index, 2); err != nil {
		return 0, err
	}
	if err := b.alignCheck(index, 2); err != nil {
		return 0, err
	}
	wordIndex := index &^ 3
	shift := uint(index-wordIndex) * 8
	word := b.int32At(wordIndex).LoadAcquire()
	return int16(uint32(word) >> shift), nil
}

// PutInt16Volatile writes value at index with release semantics.
// index must be 2-byte aligned.
func (b *AtomicBuffer) PutInt16Volatile(index int, value int16) error {
	if err := b.boundsCheck(index, 2); err != nil {
		return err
	}
	if err := b.alignCheck(index, 2); err != nil {
		return err
	}
	wordIndex := index &^ 3
	shift := uint(index-wordIndex) * 8
	word := b.int32At(wordIndex)
	for {
		old := word.LoadAcquire()
		next := (old &^ (0xffff << shift)) | int32(uint32(uint16(value))<<shift)
		if word.CompareAndSwapAcqRel(old, next) {
			return nil
		}
	}
}

// GetInt32Volatile returns the int32 at index with sequential
// consistency. index must be 4-byte aligned.
func (b *AtomicBuffer) GetInt32Volatile(index int) (int32, error) {
	if err := b.boundsCheck(index, 4); err != nil {
		return 0, err
	}
	if err := b.alignCheck(index, 4); err != nil {
		return 0, err
	}
	return b.int32At(index).LoadAcquire(), nil
}

// PutInt32Volatile writes value at index with sequential consistency.
// index must be 4-byte aligned.
func (b *AtomicBuffer) PutInt32Volatile(index int, value int32) error {
	if err := b.boundsCheck(index, 4); err != nil {
		return err
	}
	if err := b.alignCheck(index, 4); err != nil {
		return err
	}
	b.int32At(index).StoreRelease(value)
	return nil
}

// GetInt64Volatile returns the int64 at index with sequential
// consistency. index must be 8-byte aligned.
func (b *AtomicBuffer) GetInt64Volatile(index int) (int64, error) {
	if err := b.boundsCheck(index, 8); err != nil {
		return 0, err
	}
	if err := b.alignCheck(index, 8); err != nil {
		return 0, err
	}
	return b.int64At(index).LoadAcquire(), nil
}

// PutInt64Volatile writes value at index with sequential consistency.
// index must be 8-byte aligned.
func (b *AtomicBuffer) PutInt64Volatile(index int, value int64) error {
	if err := b.boundsCheck(index, 8); err != nil {
		return err
	}
	if err := b.alignCheck(index, 8); err != nil {
		return err
	}
	b.int64At(index).StoreRelease(value)
	return nil
}

// ---------------------------------------------------------------------
// Ordered (release) writes and release-add
// ---------------------------------------------------------------------

// PutInt32Ordered writes value at index with release semantics: prior
// writes by this goroutine become visible to a goroutine that later
// observes this value with an acquire load. index must be 4-byte
// aligned.
func (b *AtomicBuffer) PutInt32Ordered(index int, value int32) error {
	if err := b.boundsCheck(index, 4); err != nil {
		return err
	}
	if err := b.alignCheck(index, 4); err != nil {
		return err
	}
	b.int32At(index).StoreRelease(value)
	return nil
}

// PutInt64Ordered writes value at index with release semantics. index
// must be 8-byte aligned.
func (b *AtomicBuffer) PutInt64Ordered(index int, value int64) error {
	if err := b.boundsCheck(index, 8); err != nil {
		return err
	}
	if err := b.alignCheck(index, 8); err != nil {
		return err
	}
	b.int64At(index).StoreRelease(value)
	return nil
}

// AddInt32Ordered adds delta to the int32 at index with release
// semantics and returns the value before the add. index must be 4-byte
// aligned.
func (b *AtomicBuffer) AddInt32Ordered(index int, delta int32) (int32, error) {
	if err := b.boundsCheck(index, 4); err != nil {
		return 0, err
	}
	if err := b.alignCheck(index, 4); err != nil {
		return 0, err
	}
	return b.int32At(index).AddAcqRel(delta) - delta, nil
}

// AddInt64Ordered adds delta to the int64 at index with release
// semantics and returns the value before the add. index must be 8-byte
// aligned.
func (b *AtomicBuffer) AddInt64Ordered(index int, delta int64) (int64, error) {
	if err := b.boundsCheck(index, 8); err != nil {
		return 0, err
	}
	if err := b.alignCheck(index, 8); err != nil {
		return 0, err
	}
	return b.int64At(index).AddAcqRel(delta) - delta, nil
}

// ---------------------------------------------------------------------
// Full-fence read-modify-write: CAS, exchange, add
// ---------------------------------------------------------------------

// CompareAndSetInt32 atomically sets the int32 at index to update if it
// currently equals expected. index must be 4-byte aligned.
func (b *AtomicBuffer) CompareAndSetInt32(index int, expected, update int32) (bool, error) {
	if err := b.boundsCheck(index, 4); err != nil {
		return false, err
	}
	if err := b.alignCheck(index, 4); err != nil {
		return false, err
	}
	return b.int32At(index).CompareAndSwapAcqRel(expected, update), nil
}

// CompareAndSetInt64 atomically sets the int64 at index to update if it
// currently equals expected. index must be 8-byte aligned.
func (b *AtomicBuffer) CompareAndSetInt64(index int, expected, update int64) (bool, error) {
	if err := b.boundsCheck(index, 8); err != nil {
		return false, err
	}
	if err := b.alignCheck(index, 8); err != nil {
		return false, err
	}
	return b.int64At(index).CompareAndSwapAcqRel(expected, update), nil
}

// GetAndSetInt32 atomically sets the int32 at index to value and
// returns the previous value. index must be 4-byte aligned.
func (b *AtomicBuffer) GetAndSetInt32(index int, value int32) (int32, error) {
	if err := b.boundsCheck(index, 4); err != nil {
		return 0, err
	}
	if err := b.alignCheck(index, 4); err != nil {
		return 0, err
	}
	word := b.int32At(index)
	for {
		old := word.LoadAcquire()
		if word.CompareAndSwapAcqRel(old, value) {
			return old, nil
		}
	}
}

// GetAndSetInt64 atomically sets the int64 at index to value and
// returns the previous value. index must be 8-byte aligned.
func (b *AtomicBuffer) GetAndSetInt64(index int, value int64) (int64, error) {
	if err := b.boundsCheck(index, 8); err != nil {
		return 0, err
	}
	if err := b.alignCheck(index, 8); err != nil {
		return 0, err
	}
	word := b.int64At(index)
	for {
		old := word.LoadAcquire()
		if word.CompareAndSwapAcqRel(old, value) {
			return old, nil
		}
	}
}

// GetAndAddInt32 atomically adds delta to the int32 at index with full
// fence semantics and returns the value before the add. index must be
// 4-byte aligned.
func (b *AtomicBuffer) GetAndAddInt32(index int, delta int32) (int32, error) {
	if err := b.boundsCheck(index, 4); err != nil {
		return 0, err
	}
	if err := b.alignCheck(index, 4); err != nil {
		return 0, err
	}
	return b.int32At(index).AddAcqRel(delta) - delta, nil
}

// GetAndAddInt64 atomically adds delta to the int64 at index with full
// fence semantics and returns the value before the add. index must be
// 8-byte aligned.
func (b *AtomicBuffer) GetAndAddInt64(index int, delta int64) (int64, error) {
	if err := b.boundsCheck(index, 8); err != nil {
		return 0, err
	}
	if err := b.alignCheck(index, 8); err != nil {
		return 0, err
	}
	return b.int64At(index).AddAcqRel(delta) - delta, nil
}

// ---------------------------------------------------------------------
// Bulk operations
// ---------------------------------------------------------------------

// GetBytes copies len(dst) bytes starting at index into dst and returns
// the number of bytes copied.
func (b *AtomicBuffer) GetBytes(index int, dst []byte) (int, error) {
	if err := b.boundsCheck(index, len(dst)); err != nil {
		return 0, err
	}
	return copy(dst, b.data[index:index+len(dst)]), nil
}

// PutBytes copies src into this buffer starting at index and returns
// the number of bytes copied.
func (b *AtomicBuffer) PutBytes(index int, src []byte) (int, error) {
	if err := b.boundsCheck(index, len(src)); err != nil {
		return 0, err
	}
	return copy(b.data[index:index+len(src)], src), nil
}

// CopyFromBuffer copies length bytes from srcBuffer starting at
// srcIndex into this buffer starting at index.
func (b *AtomicBuffer) CopyFromBuffer(index int, srcBuffer *AtomicBuffer, srcIndex, length int) error {
	if err := b.boundsCheck(index, length); err != nil {
		return err
	}
	if err := srcBuffer.boundsCheck(srcIndex, length); err != nil {
		return err
	}
	copy(b.data[index:index+length], srcBuffer.data[srcIndex:srcIndex+length])
	return nil
}

// SetMemory fills length bytes starting at index with value.
func (b *AtomicBuffer) SetMemory(index, length int, value byte) error {
	if err := b.boundsCheck(index, length); err != nil {
		return err
	}
	region := b.data[index : index+length]
	for i := range region {
		region[i] = value
	}
	return nil
}

// ---------------------------------------------------------------------
// UTF-8 strings and ASCII integers
// ---------------------------------------------------------------------

// GetStringUTF8 reads a 4-byte little-endian length prefix at index
// followed by that many bytes of UTF-8, returning the decoded string
// and the total number of bytes consumed (4 + length).
func (b *AtomicBuffer) GetStringUTF8(index int) (string, int, error) {
	length, err := b.GetInt32Order(index, binary.LittleEndian)
	if err != nil {
		return "", 0, err
	}
	s, err := b.GetStringWithoutLengthUTF8(index+4, int(length))
	if err != nil {
		return "", 0, err
	}
	return s, 4 + int(length), nil
}

// PutStringUTF8 writes a 4-byte little-endian length prefix followed by
// the UTF-8 bytes of s at index, returning the total bytes written.
func (b *AtomicBuffer) PutStringUTF8(index int, s string) (int, error) {
	if err := b.PutInt32Order(index, int32(len(s)), binary.LittleEndian); err != nil {
		return 0, err
	}
	n, err := b.PutStringWithoutLengthUTF8(index+4, s)
	if err != nil {
		return 0, err
	}
	return 4 + n, nil
}

// GetStringWithoutLengthUTF8 reads length bytes at index as UTF-8,
// without any length prefix.
func (b *AtomicBuffer) GetStringWithoutLengthUTF8(index, length int) (string, error) {
	if err := b.boundsCheck(index, length); err != nil {
		return "", err
	}
	return string(b.data[index : index+length]), nil
}

// PutStringWithoutLengthUTF8 writes the UTF-8 bytes of s at index,
// without any length prefix, and returns the number of bytes written.
func (b *AtomicBuffer) PutStringWithoutLengthUTF8(index int, s string) (int, error) {
	if err := b.boundsCheck(index, len(s)); err != nil {
		return 0, err
	}
	return copy(b.data[index:index+len(s)], s), nil
}

// ParseIntAscii parses length bytes at index as an ASCII-encoded
// decimal integer, accepting an optional leading '-'.
func (b *AtomicBuffer) ParseIntAscii(index, length int) (int, error) {
	if err := b.boundsCheck(index, length); err != nil {
		return 0, err
	}
	neg := false
	i := index
	end := index + length
	if i < end && b.data[i] == '-' {
		neg = true
		i++
	}
	value := 0
	for ; i < end; i++ {
		value = value*10 + int(b.data[i]-'0')
	}
	if neg {
		value = -value
	}
	return value, nil
}

// PutIntAscii writes value at index as an ASCII-encoded decimal
// integer and returns the number of bytes written.
func (b *AtomicBuffer) PutIntAscii(index int, value int) (int, error) {
	digits := []byte(itoa(value))
	if err := b.boundsCheck(index, len(digits)); err != nil {
		return 0, err
	}
	return copy(b.data[index:index+len(digits)], digits), nil
}

func itoa(value int) string {
	if value == 0 {
		return "0"
	}
	neg := value < 0
	if neg {
		value = -value
	}
	var buf [20]byte
	i := len(buf)
	for value > 0 {
		i--
		buf[i] = byte('0' + value%10)
		value /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
