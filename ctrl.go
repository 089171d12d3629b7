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

// ctrl is a single control byte. Each slot in the hash table has one, which
// can be in one of four states:
//
//	   empty: 1 0 0 0 0 0 0 0
//	 deleted: 1 1 1 1 1 1 1 0
//	    full: 0 h h h h h h h  // h is the H2 hash bits
//	sentinel: 1 1 1 1 1 1 1 1
//
// The specific bit patterns are load-bearing: ctrlEmpty and ctrlDeleted both
// have the MSB set, which is what the group backends' matchEmptyOrDeleted
// test on; ctrlEmpty's bit pattern additionally lets matchEmpty be
// implemented with a sign-only test.
type ctrl int8

const (
	ctrlEmpty    ctrl = -128 // 0b1000_0000
	ctrlDeleted  ctrl = -2   // 0b1111_1110
	ctrlSentinel ctrl = -1   // 0b1111_1111

	bitsetLSB = 0x0101010101010101
	bitsetMSB = 0x8080808080808080
)

// h1 is the 57 high bits of a hash, mixed with control-array address
// entropy. h2 is the low 7 bits, stored directly in a full control byte.
type h1 uintptr
type h2 uint8

func splitHash(hash uintptr, ctrlAddr uintptr) (h1, h2) {
	return h1((hash >> 7) ^ (ctrlAddr >> 12)), h2(hash & 0x7f)
}

func isEmpty(c ctrl) bool          { return c == ctrlEmpty }
func isFull(c ctrl) bool           { return c >= 0 }
func isDeleted(c ctrl) bool        { return c == ctrlDeleted }
func isEmptyOrDeleted(c ctrl) bool { return c < ctrlSentinel }

// emptyGroup is the process-wide singleton that a zero-capacity table's
// control pointer references. Its sentinel sits at index 0 rather than at
// the position a nonzero-capacity table's sentinel would occupy; this is
// load-bearing, not arbitrary, because it makes the very first group load
// on an empty table see a sentinel and terminate find() unconditionally,
// with no capacity==0 branch required on the hot path. It is immutable:
// every write path must check capacity != 0 before touching ctrl through
// this pointer.
var emptyGroup = [groupMaxWidth]ctrl{
	ctrlSentinel, ctrlEmpty, ctrlEmpty, ctrlEmpty,
	ctrlEmpty, ctrlEmpty, ctrlEmpty, ctrlEmpty,
	ctrlEmpty, ctrlEmpty, ctrlEmpty, ctrlEmpty,
	ctrlEmpty, ctrlEmpty, ctrlEmpty, ctrlEmpty,
}

// groupMaxWidth bounds the size of emptyGroup so that it is large enough to
// satisfy either backend's group load regardless of which is compiled in.
const groupMaxWidth = 16
