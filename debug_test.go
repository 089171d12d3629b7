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
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDebugStringEmptyTable(t *testing.T) {
	tbl := newTestTable()
	defer tbl.Close()
	s := tbl.DebugString()
	require.Contains(t, s, "capacity=0")
	require.Contains(t, s, "no allocation")
}

func TestDebugStringNonEmptyTable(t *testing.T) {
	tbl := newTestTable()
	defer tbl.Close()
	for i := 0; i < 5; i++ {
		e := entry{key: i, value: "x"}
		tbl.Insert(&e)
	}
	s := tbl.DebugString()
	require.True(t, strings.HasPrefix(s, "capacity="))
	require.Contains(t, s, "|")
}

func TestProbeTracingToggle(t *testing.T) {
	require.False(t, ProbeTracingEnabled())
	EnableProbeTracing()
	require.True(t, ProbeTracingEnabled())
	defer DisableProbeTracing()

	tbl := newTestTable()
	defer tbl.Close()
	for i := 0; i < 50; i++ {
		e := entry{key: i, value: "x"}
		tbl.Insert(&e)
	}
	for i := 0; i < 50; i += 2 {
		key := entry{key: i}
		tbl.Erase(&key)
	}

	DisableProbeTracing()
	require.False(t, ProbeTracingEnabled())
}

func TestCheckInvariantsPassesUnderAssertions(t *testing.T) {
	EnableDebugAssertions()
	defer DisableDebugAssertions()

	tbl := newTestTable()
	defer tbl.Close()
	for i := 0; i < 300; i++ {
		e := entry{key: i, value: "x"}
		tbl.Insert(&e)
	}
	for i := 0; i < 300; i += 3 {
		key := entry{key: i}
		tbl.Erase(&key)
	}
	tbl.checkInvariants() // must not panic
}
