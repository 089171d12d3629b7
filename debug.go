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
	"strings"

	"github.com/swisstable/core/internal/assert"
)

// DebugString renders the table's control array as a human-readable row of
// symbols ('E' empty, 'D' deleted, 'S' sentinel, or the two hex digits of a
// full slot's H2), preceded by a summary line. It is informational only: no
// code should parse this format, and its layout may change between
// versions.
func (t *Table[T]) DebugString() string {
	var b strings.Builder
	fmt.Fprintf(&b, "capacity=%d size=%d growth_left=%d\n", t.capacity, t.size, t.growthLeft)
	if t.capacity == 0 {
		b.WriteString("(no allocation)\n")
		return b.String()
	}
	for i := uintptr(0); i < t.capacity+1+numClonedBytes; i++ {
		if i == t.capacity {
			b.WriteByte('|')
		}
		c := *ctrlAt(t.ctrl, i)
		switch {
		case isEmpty(c):
			b.WriteByte('E')
		case isDeleted(c):
			b.WriteByte('D')
		case c == ctrlSentinel:
			b.WriteByte('S')
		default:
			fmt.Fprintf(&b, "%02x", uint8(c))
		}
		b.WriteByte(' ')
	}
	b.WriteByte('\n')
	return b.String()
}

// checkInvariants walks the entire table verifying the structural
// invariants the engine depends on: the sentinel sits at exactly capacity,
// the clone-tail bytes mirror the head, growthLeft plus size plus the
// tombstone count equal capacityToGrowth(capacity), and (expensively) that
// the reported size matches the number of full control bytes. It is a no-op
// unless debug assertions are enabled, since the full walk is O(capacity).
func (t *Table[T]) checkInvariants() {
	if !debugAssertionsEnabled {
		return
	}
	if t.capacity == 0 {
		assert.True(t.slots == nil, "zero-capacity table has non-nil slots")
		assert.True(t.size == 0, "zero-capacity table has nonzero size")
		return
	}
	assert.True(*ctrlAt(t.ctrl, t.capacity) == ctrlSentinel, "sentinel missing at capacity offset")

	for i := uintptr(0); i < numClonedBytes; i++ {
		got := *ctrlAt(t.ctrl, t.capacity+1+i)
		want := *ctrlAt(t.ctrl, i)
		assert.True(got == want, "clone-tail byte %d (%v) does not mirror head byte (%v)", i, got, want)
	}

	var full, deleted, empty uintptr
	for i := uintptr(0); i < t.capacity; i++ {
		switch c := *ctrlAt(t.ctrl, i); {
		case isFull(c):
			full++
		case isDeleted(c):
			deleted++
		case isEmpty(c):
			empty++
		default:
			assert.Fail("control byte %d has unexpected value %v", i, c)
		}
	}
	assert.True(full == t.size, "counted %d full slots but size is %d", full, t.size)
	assert.True(full+deleted+empty == t.capacity, "full+deleted+empty (%d) does not equal capacity (%d)", full+deleted+empty, t.capacity)
	assert.True(t.growthLeft+full+deleted == capacityToGrowth(t.capacity),
		"growth_left (%d) + full (%d) + deleted (%d) does not equal capacity_to_growth(%d)",
		t.growthLeft, full, deleted, t.capacity)
}
