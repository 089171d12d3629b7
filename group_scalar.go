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

//go:build !amd64 && !arm64

package swiss

import (
	"math/bits"
	"unsafe"
)

// groupWidth and groupShift for the scalar (SWAR) backend: 8 control bytes
// packed into one uint64, shift 3 because a lane is a whole byte.
const (
	groupWidth = 8
	groupShift = 3
)

// group is a window of groupWidth control bytes loaded from the control
// array at a given offset, using SIMD-Within-A-Register bit tricks rather
// than real vector instructions. This is the endian-sensitive backend: it is
// contractual that the host is little-endian, matching cwisstable's own
// "NOTE: Endian-hostile" comment on its non-SSE2 fallback.
type group uint64

func groupAt(ctrl *ctrl) group {
	var g group
	// Equivalent to memcpy(&g, ctrl, 8): ctrl points into a buffer that is
	// always at least groupWidth bytes past any valid offset (the tail
	// clone guarantees this), so a single unaligned 8-byte load is safe.
	g = *(*group)(unsafe.Pointer(ctrl))
	return g
}

// matchH2 returns a bitMask with one bit set per lane whose control byte
// equals h. False positives can occur (see cwisstable's ctrl.h): the
// subtraction's borrow out of a truly matching byte can also flag the
// lane(s) directly above it when they hold h^1. Special bytes are never
// flagged. False positives are resolved by the caller's subsequent equality
// check.
func (g group) matchH2(h h2) bitMask {
	x := uint64(g) ^ (bitsetLSB * uint64(h))
	return bitMask{mask: (x - bitsetLSB) &^ x & bitsetMSB, width: groupWidth, shift: groupShift}
}

// matchEmpty returns a bitMask with one bit set per lane holding ctrlEmpty.
func (g group) matchEmpty() bitMask {
	v := uint64(g)
	// An empty slot is              1000 0000
	// A deleted or sentinel slot is 1111 111?
	// A slot is empty iff bit 7 is set and bit 1 is not.
	return bitMask{mask: (v &^ (v << 6)) & bitsetMSB, width: groupWidth, shift: groupShift}
}

// matchEmptyOrDeleted returns a bitMask with one bit set per lane holding
// ctrlEmpty or ctrlDeleted.
func (g group) matchEmptyOrDeleted() bitMask {
	v := uint64(g)
	// An empty slot is  1000 0000.
	// A deleted slot is 1111 1110.
	// The sentinel is   1111 1111.
	// A slot is empty or deleted iff bit 7 is set and bit 0 is not.
	return bitMask{mask: (v &^ (v << 7)) & bitsetMSB, width: groupWidth, shift: groupShift}
}

// countLeadingEmptyOrDeleted returns the number of lanes, starting from lane
// 0, that are contiguously empty or deleted before the first full lane (or
// the group's end). Grounded on cwisstable's
// CWISS_Group_CountLeadingEmptyOrDeleted scalar branch: gaps forces the
// unused high bits of the carry computation to 1 so that trailing_zeros(x+1)
// cannot run past the group's real width, and the final +7>>3 converts the
// resulting bit position back to a byte-lane count.
func (g group) countLeadingEmptyOrDeleted() uint32 {
	const gaps = 0x00fefefefefefefe
	v := uint64(g)
	x := (^v&(v>>7) | gaps) + 1
	return (uint32(bits.TrailingZeros64(x)) + 7) >> 3
}

// convertSpecialToEmptyAndFullToDeleted writes back groupWidth bytes to dst
// such that {empty, deleted, sentinel} -> empty, full -> deleted.
func (g group) convertSpecialToEmptyAndFullToDeleted(dst *ctrl) {
	v := uint64(g) & bitsetMSB
	res := (^v + (v >> 7)) &^ bitsetLSB
	*(*uint64)(unsafe.Pointer(dst)) = res
}
