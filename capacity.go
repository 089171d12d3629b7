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
	"math/bits"
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/errors"
)

// normalizeCapacity rounds n up to the nearest value of the form 2^m - 1,
// which is the invariant every non-zero table capacity maintains (so that
// probeSeq's mask-based wraparound is a simple bitwise AND).
func normalizeCapacity(n uintptr) uintptr {
	if n == 0 {
		return 1
	}
	return ^uintptr(0) >> leadingZerosUintptr(n)
}

func leadingZerosUintptr(x uintptr) uint {
	if unsafe.Sizeof(x) == 8 {
		return uint(bits.LeadingZeros64(uint64(x)))
	}
	return uint(bits.LeadingZeros64(uint64(x))) - 32
}

// capacityToGrowth returns the number of slots that can be filled before a
// table of the given capacity must grow, preserving the 7/8 maximum load
// factor. capacity==7 is special-cased: with an 8-wide group, a 7-slot table
// has no room for a sentinel-adjacent gap that the general formula assumes,
// so one fewer insert is allowed before growth.
func capacityToGrowth(capacity uintptr) uintptr {
	if groupWidth == 8 && capacity == 7 {
		return 6
	}
	return capacity - capacity/8
}

// growthToLowerBoundCapacity returns the smallest capacity whose growth
// covers at least growth insertions, the inverse of capacityToGrowth.
func growthToLowerBoundCapacity(growth uintptr) uintptr {
	if groupWidth == 8 && growth == 7 {
		return 8
	}
	if growth == 0 {
		return 0
	}
	return growth + (growth-1)/7
}

// numClonedBytes is the number of control bytes at the tail of the control
// array that mirror the first few bytes, allowing a group-sized load at any
// valid offset without bounds checking.
const numClonedBytes = groupWidth - 1

// slotOffset returns the byte offset of the slot array within a single
// allocation that also holds the control array, given the slot type's
// alignment. The control array (capacity + 1 + numClonedBytes bytes) is
// allocated first, and the slot array is aligned to start at the next
// multiple of slotAlign.
func slotOffset(capacity, slotAlign uintptr) uintptr {
	numControlBytes := capacity + 1 + numClonedBytes
	return (numControlBytes + slotAlign - 1) &^ (slotAlign - 1)
}

// allocSize returns the total number of bytes to allocate for a table of the
// given capacity, combining control and slot arrays into one allocation.
func allocSize(capacity, slotSize, slotAlign uintptr) uintptr {
	return slotOffset(capacity, slotAlign) + capacity*slotSize
}

// validateSlotAlign returns an error if slotAlign is not a power of two,
// which both slotOffset's mask-based rounding and the underlying allocator
// require.
func validateSlotAlign(slotAlign uintptr) error {
	if slotAlign == 0 || slotAlign&(slotAlign-1) != 0 {
		return errors.Newf("alignment must be a nonzero power of two, got %d", slotAlign)
	}
	return nil
}

// isSmall reports whether capacity is small enough that every slot fits in a
// single group, in which case shouldInsertBackwards never reverses the
// in-group scan direction.
func isSmall(capacity uintptr) bool {
	return capacity < groupWidth-1
}

// seedCounter is bumped on every call to randomSeed, which New makes once
// per table, so each table instance gets a distinct seed independent of the
// allocator's behavior.
var seedCounter uint64

// randomSeed returns the per-table seed that New stores and every call
// passes to KeyPolicy.Hash: the bumped counter XORed with the counter's own
// address, so that two tables holding the same keys do not necessarily
// probe identically; this is a defense against adversarial hash flooding,
// not a correctness requirement.
func randomSeed() uintptr {
	return uintptr(atomic.AddUint64(&seedCounter, 1)) ^ uintptr(unsafe.Pointer(&seedCounter))
}

// shouldInsertBackwards reports whether find-or-prepare-insert should search
// a candidate group's lanes back-to-front instead of front-to-back. It is a
// debug-build-only randomization (gated on debugAssertionsEnabled) intended
// to shake out code that accidentally depends on insertion order within a
// group; production builds always return false so the standard
// lowest-bit-first scan applies. Small tables are excluded unconditionally:
// below groupWidth-1 slots there is only ever one group to probe, so
// reversing the scan direction would just relabel which duplicate-free slot
// gets picked first without exercising any different code path.
func shouldInsertBackwards(hash uintptr, c *ctrl, capacity uintptr) bool {
	if !debugAssertionsEnabled || isSmall(capacity) {
		return false
	}
	return (hash^uintptr(unsafe.Pointer(c)))*0x8da6b343&uintptr(1) == 1
}
