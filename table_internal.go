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

	"github.com/swisstable/core/internal/tracelog"
)

// findInfo locates either a matching slot or the slot a new entry should be
// written into.
type findInfo struct {
	offset      uintptr
	probeLength uintptr
}

// setCtrl writes the control byte at i, additionally mirroring the write
// into the clone-tail bytes when i falls within the mirrored region, so
// that a group-sized load at any offset near the end of the array still
// sees a consistent view.
func (t *Table[T]) setCtrl(i uintptr, h ctrl) {
	mirroredI := ((i - numClonedBytes) & t.capacity) + (numClonedBytes & t.capacity)
	*ctrlAt(t.ctrl, i) = h
	*ctrlAt(t.ctrl, mirroredI) = h
}

// resetCtrlArray fills capacity+1+numClonedBytes control bytes at base with
// ctrlEmpty and writes the sentinel at index capacity.
func resetCtrlArray(base *ctrl, capacity uintptr) {
	n := capacity + 1 + numClonedBytes
	for i := uintptr(0); i < n; i++ {
		*ctrlAt(base, i) = ctrlEmpty
	}
	*ctrlAt(base, capacity) = ctrlSentinel
}

// resetGrowthLeft recomputes growthLeft from scratch, valid only when every
// slot is either full or empty (no deleted tombstones), which holds
// immediately after initializeSlots or resize.
func (t *Table[T]) resetGrowthLeft() {
	t.growthLeft = capacityToGrowth(t.capacity) - t.size
}

// initializeSlots allocates a fresh combined control/slot array for the
// given capacity and installs it, discarding (without freeing) whatever the
// table previously pointed at. Callers are responsible for having already
// migrated or destroyed any live contents.
func (t *Table[T]) initializeSlots(capacity uintptr) {
	slotSize, slotAlign := t.policy.Slot.Size, t.policy.Slot.Align
	if slotAlign == 0 {
		slotAlign = 1
	}
	size := allocSize(capacity, slotSize, slotAlign)
	ptr, owner := t.policy.Alloc.Alloc(size, slotAlign)
	t.ctrl = (*ctrl)(ptr)
	resetCtrlArray(t.ctrl, capacity)
	t.slots = unsafe.Add(ptr, slotOffset(capacity, slotAlign))
	t.capacity = capacity
	t.owner = owner
	t.resetGrowthLeft()
}

// deallocate frees the table's current combined allocation, if any. The
// caller must have already reset t.ctrl/t.slots/t.capacity if it does not
// want them pointing at freed memory afterward.
func (t *Table[T]) deallocate(capacity uintptr, ctrlPtr *ctrl, owner any) {
	if capacity == 0 {
		return
	}
	slotSize, slotAlign := t.policy.Slot.Size, t.policy.Slot.Align
	if slotAlign == 0 {
		slotAlign = 1
	}
	size := allocSize(capacity, slotSize, slotAlign)
	t.policy.Alloc.Free(unsafe.Pointer(ctrlPtr), size, slotAlign, owner)
}

// findFirstNonFull walks the probe sequence for h1v until it finds a group
// with an empty or deleted slot, and returns that slot's offset along with
// how many groups were visited to find it.
func (t *Table[T]) findFirstNonFull(h1v h1) findInfo {
	seq := newProbeSeq(h1v, t.capacity)
	for {
		g := groupAt(ctrlAt(t.ctrl, seq.offset))
		if mask := g.matchEmptyOrDeleted(); !mask.empty() {
			bit := mask.lowestBitSet()
			if shouldInsertBackwards(uintptr(h1v), t.ctrl, t.capacity) {
				bit = mask.highestBitSet()
			}
			tracelog.Probe("findFirstNonFull", seq.offset, seq.index, "found")
			return findInfo{offset: seq.offsetAt(uintptr(bit)), probeLength: seq.index}
		}
		seq.next()
	}
}

// findOrPrepareInsert looks for a slot whose key equals key. If found, it
// returns that slot's offset and true. Otherwise, it reserves a slot for a
// new entry with key's hash and returns its offset and false; the caller
// must then initialize that slot.
func (t *Table[T]) findOrPrepareInsert(key *T) (uintptr, bool) {
	hash := t.policy.Key.Hash((*T)(noescape(unsafe.Pointer(key))), t.seed)
	h1v, h2v := splitHash(hash, uintptr(unsafe.Pointer(t.ctrl)))
	seq := newProbeSeq(h1v, t.capacity)
	prefetchCtrl(ctrlAt(t.ctrl, seq.offset))
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
				return slotIdx, true
			}
		}
		if !g.matchEmpty().empty() {
			break
		}
		seq.next()
	}
	return t.prepareInsert(hash), false
}

// prepareInsert reserves a slot for a new entry hashing to hash, growing or
// squashing tombstones out of the table first if no slot is available
// without doing so. It updates size and growthLeft but does not itself
// write the entry's payload into the slot.
func (t *Table[T]) prepareInsert(hash uintptr) uintptr {
	h1v, h2v := splitHash(hash, uintptr(unsafe.Pointer(t.ctrl)))
	target := t.findFirstNonFull(h1v)
	if t.growthLeft == 0 && !isDeleted(*ctrlAt(t.ctrl, target.offset)) {
		t.rehashAndGrowIfNecessary()
		h1v, h2v = splitHash(hash, uintptr(unsafe.Pointer(t.ctrl)))
		target = t.findFirstNonFull(h1v)
	}
	t.size++
	if isEmpty(*ctrlAt(t.ctrl, target.offset)) {
		t.growthLeft--
	}
	t.setCtrl(target.offset, ctrl(h2v))
	return target.offset
}

// rehashAndGrowIfNecessary either grows the table, squashes tombstones in
// place, or (for a brand-new table) allocates its first slot array. A table
// wider than one group whose live entries fill at most 25/32 of its
// capacity has its tombstones squashed in place; otherwise its capacity is
// doubled (2*capacity+1).
func (t *Table[T]) rehashAndGrowIfNecessary() {
	if t.capacity == 0 {
		t.resize(1)
	} else if t.capacity > groupWidth && t.size*32 <= t.capacity*25 {
		t.dropDeletesWithoutResize()
	} else {
		t.resize(2*t.capacity + 1)
	}
}

// resize reallocates the table at newCapacity and reinserts every live
// entry, recomputing each one's hash since no per-slot hash is cached.
// Tombstones are dropped implicitly: only slots the old control array
// marks full are carried forward.
func (t *Table[T]) resize(newCapacity uintptr) {
	oldCtrl, oldSlots, oldCapacity, oldOwner := t.ctrl, t.slots, t.capacity, t.owner
	slotSize := t.policy.Slot.Size

	t.initializeSlots(newCapacity)

	for i := uintptr(0); i < oldCapacity; i++ {
		if !isFull(*ctrlAt(oldCtrl, i)) {
			continue
		}
		oldSlot := slotAt(oldSlots, i, slotSize)
		key := t.policy.Slot.Get(oldSlot)
		hash := t.policy.Key.Hash(key, t.seed)
		h1v, h2v := splitHash(hash, uintptr(unsafe.Pointer(t.ctrl)))
		target := t.findFirstNonFull(h1v)
		t.setCtrl(target.offset, ctrl(h2v))
		newSlot := slotAt(t.slots, target.offset, slotSize)
		t.policy.Slot.Transfer(newSlot, oldSlot)
	}
	t.resetGrowthLeft()
	t.deallocate(oldCapacity, oldCtrl, oldOwner)
	tracelog.Lifecycle("resize", t.size, t.capacity)
}

// dropDeletesWithoutResize squashes every tombstone out of the table
// in place, without changing its capacity. It is cheaper than a full
// resize when the table is not actually full of live entries, just
// fragmented with deletions.
func (t *Table[T]) dropDeletesWithoutResize() {
	slotSize := t.policy.Slot.Size

	for i := uintptr(0); i < t.capacity; i += groupWidth {
		g := groupAt(ctrlAt(t.ctrl, i))
		g.convertSpecialToEmptyAndFullToDeleted(ctrlAt(t.ctrl, i))
	}
	if t.capacity < groupWidth {
		for i := uintptr(0); i < numClonedBytes; i++ {
			*ctrlAt(t.ctrl, groupWidth+i) = *ctrlAt(t.ctrl, i)
		}
	} else {
		for i := uintptr(0); i < numClonedBytes; i++ {
			*ctrlAt(t.ctrl, t.capacity+1+i) = *ctrlAt(t.ctrl, i)
		}
	}
	*ctrlAt(t.ctrl, t.capacity) = ctrlSentinel

	tmp := make([]byte, slotSize)
	tmpPtr := unsafe.Pointer(&tmp[0])

	for i := uintptr(0); i < t.capacity; i++ {
		if !isDeleted(*ctrlAt(t.ctrl, i)) {
			continue
		}
		for {
			iSlot := slotAt(t.slots, i, slotSize)
			key := t.policy.Slot.Get(iSlot)
			hash := t.policy.Key.Hash(key, t.seed)
			h1v, h2v := splitHash(hash, uintptr(unsafe.Pointer(t.ctrl)))
			target := t.findFirstNonFull(h1v)
			newI := target.offset

			if probeIndex(i, h1v, t.capacity) == probeIndex(newI, h1v, t.capacity) {
				t.setCtrl(i, ctrl(h2v))
				break
			}

			newSlot := slotAt(t.slots, newI, slotSize)
			switch {
			case isEmpty(*ctrlAt(t.ctrl, newI)):
				t.setCtrl(newI, ctrl(h2v))
				t.policy.Slot.Transfer(newSlot, iSlot)
				t.setCtrl(i, ctrlEmpty)
				goto nextI
			default:
				// newI must hold a tombstone: swap the two slots' contents
				// and reprocess i, which now holds what used to be at newI.
				t.setCtrl(newI, ctrl(h2v))
				t.policy.Slot.Transfer(tmpPtr, iSlot)
				t.policy.Slot.Transfer(iSlot, newSlot)
				t.policy.Slot.Transfer(newSlot, tmpPtr)
			}
		}
	nextI:
		continue
	}
	t.resetGrowthLeft()
	tracelog.Lifecycle("dropDeletesWithoutResize", t.size, t.capacity)
}

// probeIndex returns which step of the probe sequence starting at h1v
// (over a table of the given capacity) the offset pos falls on, letting
// dropDeletesWithoutResize tell whether a tombstone's replacement landed in
// the same group it started in.
func probeIndex(pos uintptr, h1v h1, capacity uintptr) uintptr {
	seq := newProbeSeq(h1v, capacity)
	return ((pos - seq.offset) & capacity) / groupWidth
}

// eraseMetaOnly marks the slot at offset vacant, choosing between a
// tombstone and a true empty marker depending on whether any probe sequence
// could have been relying on this slot to keep searching past it.
func (t *Table[T]) eraseMetaOnly(offset uintptr) {
	t.size--
	indexBefore := (offset - groupWidth) & t.capacity
	emptyAfter := groupAt(ctrlAt(t.ctrl, offset)).matchEmpty()
	emptyBefore := groupAt(ctrlAt(t.ctrl, indexBefore)).matchEmpty()
	wasNeverFull := !emptyBefore.empty() && !emptyAfter.empty() &&
		emptyAfter.trailingZeros()+emptyBefore.leadingZeros() < groupWidth
	if wasNeverFull {
		t.setCtrl(offset, ctrlEmpty)
		t.growthLeft++
	} else {
		t.setCtrl(offset, ctrlDeleted)
	}
}
