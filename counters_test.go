// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package xchg_test

import (
	"testing"

	"code.hybscloud.com/xchg"
)

// newCounters builds a values/metadata buffer pair sized for exactly n
// counters and returns a manager over them.
func newCounters(t *testing.T, n int) (*xchg.CountersManager, *xchg.AtomicBuffer, *xchg.AtomicBuffer) {
	t.Helper()
	values := xchg.NewAtomicBuffer(make([]byte, n*128))
	metadata := xchg.NewAtomicBuffer(make([]byte, n*256))
	mgr, err := xchg.NewCountersManager(values, metadata)
	if err != nil {
		t.Fatalf("NewCountersManager: %v", err)
	}
	return mgr, values, metadata
}

func TestCountersAllocateAndValue(t *testing.T) {
	mgr, _, _ := newCounters(t, 4)

	c, err := mgr.NewCounter("requests", 1, nil)
	if err != nil {
		t.Fatalf("NewCounter: %v", err)
	}

	if v, err := c.Get(); err != nil || v != 0 {
		t.Fatalf("Get on fresh counter: got (%d, %v), want (0, nil)", v, err)
	}
	if v, err := c.Increment(); err != nil || v != 1 {
		t.Fatalf("Increment: got (%d, %v), want (1, nil)", v, err)
	}
	if v, err := c.Add(41); err != nil || v != 42 {
		t.Fatalf("Add: got (%d, %v), want (42, nil)", v, err)
	}
	if err := c.Set(100); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, err := c.Get(); err != nil || v != 100 {
		t.Fatalf("Get after Set: got (%d, %v), want (100, nil)", v, err)
	}
}

func TestCountersForEachSkipsFreedAndStopsAtTerminator(t *testing.T) {
	mgr, _, metadata := newCounters(t, 4)

	idA, err := mgr.Allocate("a", 1, nil)
	if err != nil {
		t.Fatalf("Allocate a: %v", err)
	}
	idB, err := mgr.Allocate("b", 2, nil)
	if err != nil {
		t.Fatalf("Allocate b: %v", err)
	}
	idC, err := mgr.Allocate("c", 3, nil)
	if err != nil {
		t.Fatalf("Allocate c: %v", err)
	}
	if err := mgr.Free(idB); err != nil {
		t.Fatalf("Free b: %v", err)
	}

	reader, err := xchg.NewCountersReader(xchg.NewAtomicBuffer(make([]byte, 4*128)), metadata)
	if err != nil {
		t.Fatalf("NewCountersReader: %v", err)
	}

	type seen struct {
		id     int32
		typeID int32
		label  string
	}
	var got []seen
	if err := reader.ForEach(func(id int32, typeID int32, label string) {
		got = append(got, seen{id, typeID, label})
	}); err != nil {
		t.Fatalf("ForEach: %v", err)
	}

	want := []seen{{idA, 1, "a"}, {idC, 3, "c"}}
	if len(got) != len(want) {
		t.Fatalf("ForEach count: got %d, want %d (got=%+v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ForEach[%d]: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestCountersFreeListIsLIFO(t *testing.T) {
	mgr, _, _ := newCounters(t, 4)

	id0, err := mgr.Allocate("zero", 1, nil)
	if err != nil {
		t.Fatalf("Allocate zero: %v", err)
	}
	id1, err := mgr.Allocate("one", 1, nil)
	if err != nil {
		t.Fatalf("Allocate one: %v", err)
	}

	if err := mgr.Free(id0); err != nil {
		t.Fatalf("Free id0: %v", err)
	}
	if err := mgr.Free(id1); err != nil {
		t.Fatalf("Free id1: %v", err)
	}

	// Freed ids come back out LIFO: id1 was freed last, so it is handed
	// out first on the next two allocations.
	reuse1, err := mgr.Allocate("reuse1", 1, nil)
	if err != nil {
		t.Fatalf("Allocate reuse1: %v", err)
	}
	reuse0, err := mgr.Allocate("reuse0", 1, nil)
	if err != nil {
		t.Fatalf("Allocate reuse0: %v", err)
	}
	if reuse1 != id1 {
		t.Fatalf("first reuse: got id %d, want %d (LIFO order)", reuse1, id1)
	}
	if reuse0 != id0 {
		t.Fatalf("second reuse: got id %d, want %d (LIFO order)", reuse0, id0)
	}
}

// TestCountersAllocateRejectsEmptyLabel guards against a counter whose
// label-length word would read as 0 — indistinguishable from the
// unwritten terminator ForEach stops at, which would hide every
// counter allocated afterward.
func TestCountersAllocateRejectsEmptyLabel(t *testing.T) {
	mgr, _, _ := newCounters(t, 4)
	if _, err := mgr.Allocate("", 1, nil); err == nil {
		t.Fatal("Allocate with empty label: want error, got nil")
	}
}

func TestCountersAllocateExhaustion(t *testing.T) {
	mgr, _, _ := newCounters(t, 2)

	if _, err := mgr.Allocate("first", 1, nil); err != nil {
		t.Fatalf("Allocate first: %v", err)
	}
	if _, err := mgr.Allocate("second", 1, nil); err != nil {
		t.Fatalf("Allocate second: %v", err)
	}
	if _, err := mgr.Allocate("third", 1, nil); err == nil {
		t.Fatal("Allocate beyond capacity: want error, got nil")
	}
}

func TestCountersKeyWriter(t *testing.T) {
	mgr, _, metadata := newCounters(t, 2)

	id, err := mgr.Allocate("keyed", 5, func(buf *xchg.AtomicBuffer, offset int) error {
		_, err := buf.PutBytes(offset, []byte{0xAA, 0xBB, 0xCC})
		return err
	})
	if err != nil {
		t.Fatalf("Allocate with keyWriter: %v", err)
	}

	got := make([]byte, 3)
	// The key region sits right after the 4-byte type-id, itself right
	// after the label region's fixed half of the metadata stride.
	offset := int(id)*256 + 128 + 4
	if _, err := metadata.GetBytes(offset, got); err != nil {
		t.Fatalf("GetBytes: %v", err)
	}
	want := []byte{0xAA, 0xBB, 0xCC}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("key bytes: got %v, want %v", got, want)
		}
	}
}

func TestCountersReaderIndependentOfValuesBuffer(t *testing.T) {
	mgr, values, metadata := newCounters(t, 2)

	c, err := mgr.NewCounter("x", 1, nil)
	if err != nil {
		t.Fatalf("NewCounter: %v", err)
	}
	if _, err := c.Add(7); err != nil {
		t.Fatalf("Add: %v", err)
	}

	reader, err := xchg.NewCountersReader(values, metadata)
	if err != nil {
		t.Fatalf("NewCountersReader: %v", err)
	}
	if v, err := reader.GetCounterValue(c.ID()); err != nil || v != 7 {
		t.Fatalf("GetCounterValue: got (%d, %v), want (7, nil)", v, err)
	}
}
