// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package swiss

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/require"
)

// entry is the test fixture's element type: an int key with a string
// payload, stored inline via a flat SlotPolicy.
type entry struct {
	key   int
	value string
}

func entryHash(e *entry, seed uintptr) uintptr {
	h := uint64(e.key)*0x9E3779B97F4A7C15 + uint64(seed)
	h ^= h >> 33
	return uintptr(h)
}

func entryEq(a, b *entry) bool {
	return a.key == b.key
}

func newTestTable() *Table[entry] {
	return New(NewFlatPolicy(entryHash, entryEq, nil))
}

func TestBasic(t *testing.T) {
	tbl := newTestTable()
	defer tbl.Close()

	for i := 0; i < 100; i++ {
		e := entry{key: i, value: fmt.Sprintf("v%d", i)}
		got, inserted := tbl.Insert(&e)
		require.True(t, inserted)
		require.Equal(t, e.value, got.value)
	}
	require.Equal(t, 100, tbl.Len())

	for i := 0; i < 100; i++ {
		key := entry{key: i}
		got, ok := tbl.Find(&key)
		require.True(t, ok)
		require.Equal(t, fmt.Sprintf("v%d", i), got.value)
	}

	missing := entry{key: 1000}
	_, ok := tbl.Find(&missing)
	require.False(t, ok)

	// Re-inserting an existing key must not create a second entry.
	dup := entry{key: 5, value: "replacement-not-applied"}
	got, inserted := tbl.Insert(&dup)
	require.False(t, inserted)
	require.Equal(t, "v5", got.value)
	require.Equal(t, 100, tbl.Len())
}

func TestEraseAndReinsert(t *testing.T) {
	tbl := newTestTable()
	defer tbl.Close()

	for i := 0; i < 50; i++ {
		e := entry{key: i, value: fmt.Sprintf("v%d", i)}
		tbl.Insert(&e)
	}
	for i := 0; i < 50; i += 2 {
		key := entry{key: i}
		require.True(t, tbl.Erase(&key))
	}
	require.Equal(t, 25, tbl.Len())

	for i := 0; i < 50; i++ {
		key := entry{key: i}
		_, ok := tbl.Find(&key)
		require.Equal(t, i%2 != 0, ok)
	}

	// Reinsert the erased keys; this must exercise tombstone reuse.
	for i := 0; i < 50; i += 2 {
		e := entry{key: i, value: "back"}
		_, inserted := tbl.Insert(&e)
		require.True(t, inserted)
	}
	require.Equal(t, 50, tbl.Len())
}

func TestIterateMutate(t *testing.T) {
	tbl := newTestTable()
	defer tbl.Close()

	for i := 0; i < 30; i++ {
		e := entry{key: i, value: "x"}
		tbl.Insert(&e)
	}

	var erased []int
	for it := tbl.Iter(); it.Next(); {
		e := it.Get()
		if e.key%3 == 0 {
			erased = append(erased, e.key)
		}
	}
	for _, k := range erased {
		key := entry{key: k}
		require.True(t, tbl.Erase(&key))
	}
	require.Equal(t, 30-len(erased), tbl.Len())

	var remaining []int
	for it := tbl.Iter(); it.Next(); {
		remaining = append(remaining, it.Get().key)
	}
	sort.Ints(remaining)
	for _, k := range remaining {
		require.NotZero(t, k%3)
	}
}

func TestEraseAtViaIteratorOffset(t *testing.T) {
	tbl := newTestTable()
	defer tbl.Close()

	for i := 0; i < 30; i++ {
		e := entry{key: i, value: "x"}
		tbl.Insert(&e)
	}

	var offsets []uintptr
	for it := tbl.Iter(); it.Next(); {
		if it.Get().key%3 == 0 {
			offsets = append(offsets, it.Offset())
		}
	}
	for _, off := range offsets {
		tbl.EraseAt(off)
	}
	require.Equal(t, 30-len(offsets), tbl.Len())

	for it := tbl.Iter(); it.Next(); {
		require.NotZero(t, it.Get().key%3)
	}
}

func TestClear(t *testing.T) {
	tbl := newTestTable()
	defer tbl.Close()

	for i := 0; i < 10; i++ {
		e := entry{key: i, value: "x"}
		tbl.Insert(&e)
	}
	tbl.Clear()
	require.Equal(t, 0, tbl.Len())
	require.True(t, tbl.Empty())

	key := entry{key: 3}
	_, ok := tbl.Find(&key)
	require.False(t, ok)

	// The table must still be usable after Clear.
	e := entry{key: 3, value: "reborn"}
	_, inserted := tbl.Insert(&e)
	require.True(t, inserted)
	require.Equal(t, 1, tbl.Len())
}

func TestClearLargeTableDeallocates(t *testing.T) {
	tbl := newTestTable()
	defer tbl.Close()

	for i := 0; i < 500; i++ {
		e := entry{key: i, value: "x"}
		tbl.Insert(&e)
	}
	require.Greater(t, tbl.Cap(), 127)
	tbl.Clear()
	require.Equal(t, 0, tbl.Cap())
}

func TestReserve(t *testing.T) {
	tbl := newTestTable()
	defer tbl.Close()

	tbl.Reserve(200)
	capAfterReserve := tbl.Cap()
	require.GreaterOrEqual(t, capAfterReserve, 200)

	for i := 0; i < 200; i++ {
		e := entry{key: i, value: "x"}
		tbl.Insert(&e)
	}
	// No growth should have been necessary past the reservation.
	require.Equal(t, capAfterReserve, tbl.Cap())
}

func TestRehashShrinksAfterDeletes(t *testing.T) {
	tbl := newTestTable()
	defer tbl.Close()

	for i := 0; i < 200; i++ {
		e := entry{key: i, value: "x"}
		tbl.Insert(&e)
	}
	for i := 0; i < 190; i++ {
		key := entry{key: i}
		tbl.Erase(&key)
	}
	require.Equal(t, 10, tbl.Len())

	bigCap := tbl.Cap()
	tbl.Rehash(0)
	require.Less(t, tbl.Cap(), bigCap)
	for i := 190; i < 200; i++ {
		key := entry{key: i}
		_, ok := tbl.Find(&key)
		require.True(t, ok)
	}
}

func TestRehashOnEmptyReleasesAllocation(t *testing.T) {
	tbl := newTestTable()
	defer tbl.Close()

	e := entry{key: 1, value: "x"}
	tbl.Insert(&e)
	tbl.Erase(&e)
	require.Equal(t, 0, tbl.Len())

	tbl.Rehash(0)
	require.Equal(t, 0, tbl.Cap())
}

func TestDuplicate(t *testing.T) {
	tbl := newTestTable()
	defer tbl.Close()

	for i := 0; i < 40; i++ {
		e := entry{key: i, value: fmt.Sprintf("v%d", i)}
		tbl.Insert(&e)
	}

	dup := tbl.Duplicate()
	defer dup.Close()
	require.Equal(t, tbl.Len(), dup.Len())

	// Mutating the original after duplication must not affect the copy.
	key := entry{key: 0}
	tbl.Erase(&key)
	_, ok := dup.Find(&key)
	require.True(t, ok)
}

func TestLoadFactor(t *testing.T) {
	tbl := newTestTable()
	defer tbl.Close()
	require.Zero(t, tbl.LoadFactor())

	for i := 0; i < 10; i++ {
		e := entry{key: i, value: "x"}
		tbl.Insert(&e)
	}
	require.Greater(t, tbl.LoadFactor(), 0.0)
	require.LessOrEqual(t, tbl.LoadFactor(), 1.0)
}

func TestRandom(t *testing.T) {
	EnableDebugAssertions()
	defer DisableDebugAssertions()

	rng := rand.New(rand.NewSource(12345))
	tbl := newTestTable()
	defer tbl.Close()
	model := make(map[int]string)

	for i := 0; i < 20000; i++ {
		key := rng.Intn(500)
		switch rng.Intn(3) {
		case 0, 1:
			value := fmt.Sprintf("v%d-%d", key, i)
			e := entry{key: key, value: value}
			got, inserted := tbl.Insert(&e)
			_, existed := model[key]
			require.Equal(t, !existed, inserted)
			if !existed {
				model[key] = value
			}
			require.Equal(t, model[key], got.value)
		case 2:
			probe := entry{key: key}
			_, existed := model[key]
			ok := tbl.Erase(&probe)
			require.Equal(t, existed, ok)
			delete(model, key)
		}
	}

	require.Equal(t, len(model), tbl.Len())
	for k, v := range model {
		probe := entry{key: k}
		got, ok := tbl.Find(&probe)
		require.True(t, ok)
		require.Equal(t, v, got.value)
	}

	count := 0
	for it := tbl.Iter(); it.Next(); {
		e := it.Get()
		want, ok := model[e.key]
		require.True(t, ok)
		require.Equal(t, want, e.value)
		count++
	}
	require.Equal(t, len(model), count)
}

func TestAllocatorPolicy(t *testing.T) {
	var allocs, frees int
	policy := NewFlatPolicy(entryHash, entryEq, nil)
	base := policy.Alloc
	policy.Alloc = AllocPolicy{
		Alloc: func(size, align uintptr) (unsafe.Pointer, any) {
			allocs++
			return base.Alloc(size, align)
		},
		Free: func(ptr unsafe.Pointer, size, align uintptr, owner any) {
			frees++
			base.Free(ptr, size, align, owner)
		},
	}

	tbl := New(policy)
	for i := 0; i < 300; i++ {
		e := entry{key: i, value: "x"}
		tbl.Insert(&e)
	}
	require.Greater(t, allocs, 0)
	tbl.Close()
	require.Greater(t, frees, 0)
}
