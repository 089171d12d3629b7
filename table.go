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
	"unsafe"

	"github.com/swisstable/core/internal/assert"
)

// Table is an open-addressed hash table storing values of type T, with its
// hashing, equality, allocation, and slot-storage behavior entirely
// supplied by a Policy rather than built into the type itself. A Table must
// be created with New; its zero value is not usable.
type Table[T any] struct {
	policy Policy[T]

	ctrl  *ctrl
	slots unsafe.Pointer
	owner any

	size       uintptr
	capacity   uintptr
	growthLeft uintptr
	seed       uintptr
}

// New returns an empty Table governed by policy, as amended by opts (see
// WithHash, WithAllocator, WithLogger). It performs no allocation until the
// first insert.
func New[T any](policy Policy[T], opts ...Option[T]) *Table[T] {
	for _, opt := range opts {
		opt.apply(&policy)
	}
	assert.True(policy.Key.Hash != nil, "policy.Key.Hash must be set")
	assert.True(policy.Key.Eq != nil, "policy.Key.Eq must be set")
	assert.True(policy.Object.Copy != nil, "policy.Object.Copy must be set")
	assert.True(policy.Slot.Init != nil && policy.Slot.Del != nil &&
		policy.Slot.Transfer != nil && policy.Slot.Get != nil, "policy.Slot must be fully populated")
	assert.True(policy.Alloc.Alloc != nil && policy.Alloc.Free != nil, "policy.Alloc must be fully populated")
	assert.WrapError(validateSlotAlign(policy.Slot.Align), "policy.Slot.Align %d is invalid", policy.Slot.Align)

	return &Table[T]{
		policy: policy,
		ctrl:   &emptyGroup[0],
		seed:   randomSeed(),
	}
}

// Close destroys every live entry via the table's slot policy and releases
// the backing allocation, leaving the table empty and usable again.
func (t *Table[T]) Close() {
	slotSize := t.policy.Slot.Size
	for i := uintptr(0); i < t.capacity; i++ {
		if isFull(*ctrlAt(t.ctrl, i)) {
			t.policy.Slot.Del(slotAt(t.slots, i, slotSize))
		}
	}
	t.deallocate(t.capacity, t.ctrl, t.owner)
	t.ctrl = &emptyGroup[0]
	t.slots = nil
	t.owner = nil
	t.size = 0
	t.capacity = 0
	t.growthLeft = 0
}

// Len returns the number of entries currently stored.
func (t *Table[T]) Len() int { return int(t.size) }

// Cap returns the number of slots currently allocated, not the number that
// can still be inserted before a resize (see LoadFactor).
func (t *Table[T]) Cap() int { return int(t.capacity) }

// Empty reports whether the table holds no entries.
func (t *Table[T]) Empty() bool { return t.size == 0 }

// LoadFactor returns size/capacity, or 0 for a table with no allocation.
func (t *Table[T]) LoadFactor() float64 {
	if t.capacity == 0 {
		return 0
	}
	return float64(t.size) / float64(t.capacity)
}

// Reserve ensures the table can hold n entries in total without further
// growth, allocating ahead of need if it cannot already.
func (t *Table[T]) Reserve(n uintptr) {
	if n <= t.size+t.growthLeft {
		return
	}
	newCapacity := normalizeCapacity(growthToLowerBoundCapacity(n))
	t.resize(newCapacity)
}

// Rehash resizes the table to the smallest capacity that is at least n and
// can still hold every entry currently stored, or shrinks and releases the
// backing allocation entirely if n and the table's size are both zero.
// Passing 0 otherwise requests the smallest capacity that fits the current
// size, the idiom for compacting a table after many deletions. A nonzero n
// only ever grows the table: if its capacity already reaches that target,
// it is left unchanged.
func (t *Table[T]) Rehash(n uintptr) {
	if n == 0 && t.capacity == 0 {
		return
	}
	if n == 0 && t.size == 0 {
		t.deallocate(t.capacity, t.ctrl, t.owner)
		t.ctrl = &emptyGroup[0]
		t.slots = nil
		t.owner = nil
		t.capacity = 0
		t.growthLeft = 0
		return
	}
	m := growthToLowerBoundCapacity(t.size)
	if n > m {
		m = n
	}
	m = normalizeCapacity(m)
	if n == 0 || m > t.capacity {
		t.resize(m)
	}
}

// Clear removes every entry, destroying each via the slot policy. Large
// tables release their backing allocation outright rather than keep a
// mostly-empty array around; small ones reset their control bytes in place
// and keep the allocation for reuse.
func (t *Table[T]) Clear() {
	slotSize := t.policy.Slot.Size
	for i := uintptr(0); i < t.capacity; i++ {
		if isFull(*ctrlAt(t.ctrl, i)) {
			t.policy.Slot.Del(slotAt(t.slots, i, slotSize))
		}
	}
	if t.capacity > 127 {
		t.deallocate(t.capacity, t.ctrl, t.owner)
		t.ctrl = &emptyGroup[0]
		t.slots = nil
		t.owner = nil
		t.capacity = 0
		t.growthLeft = 0
		t.size = 0
		return
	}
	if t.capacity > 0 {
		resetCtrlArray(t.ctrl, t.capacity)
	}
	t.size = 0
	t.resetGrowthLeft()
}

// Find looks up key and returns a pointer to the stored entry, if any.
func (t *Table[T]) Find(key *T) (*T, bool) {
	return t.FindHinted(key, t.policy.Key.Hash((*T)(noescape(unsafe.Pointer(key))), t.seed))
}

// FindHinted is Find for a caller that has already computed key's hash,
// letting it avoid recomputing the hash on a lookup it already knows the
// outcome is likely to need (for instance, re-locating an entry an iterator
// just visited).
func (t *Table[T]) FindHinted(key *T, hash uintptr) (*T, bool) {
	h1v, h2v := splitHash(hash, uintptr(unsafe.Pointer(t.ctrl)))
	seq := newProbeSeq(h1v, t.capacity)
	for {
		g := groupAt(ctrlAt(t.ctrl, seq.offset))
		matched := g.matchH2(h2v)
		for {
			var bit uint32
			if !matched.next(&bit) {
				break
			}
			slotIdx := seq.offsetAt(uintptr(bit))
			slot := slotAt(t.slots, slotIdx, t.policy.Slot.Size)
			got := t.policy.Slot.Get(slot)
			if t.policy.Key.Eq(key, got) {
				return got, true
			}
		}
		if !g.matchEmpty().empty() {
			return nil, false
		}
		seq.next()
	}
}

// Contains reports whether key is present.
func (t *Table[T]) Contains(key *T) bool {
	_, ok := t.Find(key)
	return ok
}

// Insert stores obj under its own key, unless an entry with an equal key is
// already present, in which case the table is left unchanged. It returns a
// pointer to the stored entry (the existing one, if already present) and
// whether a new entry was created.
func (t *Table[T]) Insert(obj *T) (*T, bool) {
	idx, found := t.findOrPrepareInsert(obj)
	slot := slotAt(t.slots, idx, t.policy.Slot.Size)
	if found {
		return t.policy.Slot.Get(slot), false
	}
	t.policy.Slot.Init(slot)
	val := t.policy.Slot.Get(slot)
	t.policy.Object.Copy(val, obj)
	t.checkInvariants()
	return val, true
}

// Erase removes the entry matching key, if any, and reports whether one was
// removed.
func (t *Table[T]) Erase(key *T) bool {
	h1v, h2v := splitHash(t.policy.Key.Hash((*T)(noescape(unsafe.Pointer(key))), t.seed), uintptr(unsafe.Pointer(t.ctrl)))
	seq := newProbeSeq(h1v, t.capacity)
	for {
		g := groupAt(ctrlAt(t.ctrl, seq.offset))
		matched := g.matchH2(h2v)
		for {
			var bit uint32
			if !matched.next(&bit) {
				break
			}
			slotIdx := seq.offsetAt(uintptr(bit))
			slot := slotAt(t.slots, slotIdx, t.policy.Slot.Size)
			if t.policy.Key.Eq(key, t.policy.Slot.Get(slot)) {
				t.EraseAt(slotIdx)
				return true
			}
		}
		if !g.matchEmpty().empty() {
			return false
		}
		seq.next()
	}
}

// EraseAt removes the entry at the given slot offset, as returned by an
// Iterator. Erasing via offset never invalidates other iterators over the
// same table, unlike a growing Insert or an explicit Rehash/Reserve.
func (t *Table[T]) EraseAt(offset uintptr) {
	assert.True(isFull(*ctrlAt(t.ctrl, offset)), "EraseAt called on a non-full slot")
	slot := slotAt(t.slots, offset, t.policy.Slot.Size)
	t.policy.Slot.Del(slot)
	t.eraseMetaOnly(offset)
	t.checkInvariants()
}

// Duplicate returns a new Table holding a copy of every entry in t, built
// using t's Policy. Each entry is placed directly at its target slot found
// by findFirstNonFull and filled in via Object.Copy, rather than routed
// through Insert: a duplicate's keys are already known to be pairwise
// distinct, so there is no need to pay for Insert's find-existing probe on
// every element.
func (t *Table[T]) Duplicate() *Table[T] {
	dup := New(t.policy)
	if t.size == 0 {
		return dup
	}
	slotSize := t.policy.Slot.Size
	dup.initializeSlots(normalizeCapacity(growthToLowerBoundCapacity(t.size)))
	for it := t.Iter(); it.Next(); {
		obj := it.Get()
		hash := dup.policy.Key.Hash((*T)(noescape(unsafe.Pointer(obj))), dup.seed)
		h1v, h2v := splitHash(hash, uintptr(unsafe.Pointer(dup.ctrl)))
		target := dup.findFirstNonFull(h1v)
		dup.setCtrl(target.offset, ctrl(h2v))
		slot := slotAt(dup.slots, target.offset, slotSize)
		dup.policy.Slot.Init(slot)
		dup.policy.Object.Copy(dup.policy.Slot.Get(slot), obj)
	}
	dup.size = t.size
	dup.resetGrowthLeft()
	return dup
}

// All calls yield once per entry, in control-array order, stopping early if
// yield returns false. It is written to also serve as a range-over-func
// iterator (for entry := range t.All) on toolchains that support that
// syntax.
func (t *Table[T]) All(yield func(entry *T) bool) {
	for it := t.Iter(); it.Next(); {
		if !yield(it.Get()) {
			return
		}
	}
}

// Iterator walks the live entries of a Table. Its zero value is not usable;
// obtain one from Table.Iter. A growing Insert, Reserve, or Rehash called on
// the underlying table while an Iterator is live invalidates that Iterator;
// EraseAt on the current entry does not.
type Iterator[T any] struct {
	t     *Table[T]
	idx   uintptr
	ready bool
}

// Iter returns an Iterator positioned before the first entry.
func (t *Table[T]) Iter() *Iterator[T] {
	return &Iterator[T]{t: t}
}

// Next advances the iterator to the next live entry and reports whether one
// was found.
func (it *Iterator[T]) Next() bool {
	if it.ready {
		it.idx++
	}
	it.ready = true
	it.skipEmptyOrDeleted()
	return isFull(*ctrlAt(it.t.ctrl, it.idx))
}

// skipEmptyOrDeleted advances idx past a run of empty-or-deleted control
// bytes by loading a group at the current position and jumping the whole
// contiguous run at once, rather than testing one byte at a time. It stops
// as soon as the current byte is full or is the sentinel; the sentinel byte
// itself is never empty-or-deleted, so idx never advances past capacity.
func (it *Iterator[T]) skipEmptyOrDeleted() {
	for isEmptyOrDeleted(*ctrlAt(it.t.ctrl, it.idx)) {
		shift := groupAt(ctrlAt(it.t.ctrl, it.idx)).countLeadingEmptyOrDeleted()
		it.idx += uintptr(shift)
	}
}

// Get returns a pointer to the entry at the iterator's current position. It
// must only be called after a call to Next that returned true.
func (it *Iterator[T]) Get() *T {
	slot := slotAt(it.t.slots, it.idx, it.t.policy.Slot.Size)
	return it.t.policy.Slot.Get(slot)
}

// Offset returns the slot offset the iterator currently sits at, suitable
// for passing to Table.EraseAt.
func (it *Iterator[T]) Offset() uintptr {
	return it.idx
}
