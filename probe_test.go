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
	"testing"

	"github.com/stretchr/testify/require"
)

// TestProbeSeqVisitsEveryGroupOnce verifies the triangular-number quadratic
// sequence enumerates every group exactly once before the sequence would
// start repeating: each offset lies a whole number of groups past the start
// offset (which itself need not be a multiple of groupWidth), and no offset
// repeats.
func TestProbeSeqVisitsEveryGroupOnce(t *testing.T) {
	capacity := uintptr(31) // 31 slots plus the sentinel: 32 control positions
	numGroups := (capacity + 1) / groupWidth
	if numGroups == 0 {
		numGroups = 1
	}
	for _, start := range []h1{0, 1, 7, 1000} {
		seq := newProbeSeq(start, capacity)
		seen := make(map[uintptr]bool)
		for i := uintptr(0); i < numGroups; i++ {
			require.False(t, seen[seq.offset], "offset %d visited twice for start %d", seq.offset, start)
			seen[seq.offset] = true
			require.Zero(t, ((seq.offset-uintptr(start))&capacity)%groupWidth,
				"offset %d is not a whole number of groups past start %d", seq.offset, start)
			seq.next()
		}
		require.Len(t, seen, int(numGroups))
	}
}

func TestProbeSeqOffsetAt(t *testing.T) {
	seq := newProbeSeq(5, 31)
	for i := uintptr(0); i < groupWidth; i++ {
		got := seq.offsetAt(i)
		require.Equal(t, (seq.offset+i)&seq.mask, got)
	}
}
