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

import "github.com/swisstable/core/internal/tracelog"

// debugAssertionsEnabled gates the expensive invariant checks in
// checkInvariants and the insert-backwards probing jitter in
// shouldInsertBackwards. It defaults to false; tests flip it on with
// EnableDebugAssertions/DisableDebugAssertions so that invariant violations
// surface as assertion failures during development without paying for the
// checks in production builds.
var debugAssertionsEnabled = false

// EnableDebugAssertions turns on invariant checking and probe-order jitter
// for the remainder of the process. It is meant for tests and development,
// not production use: the invariant checks are O(capacity) and the jitter
// deliberately perturbs probe order to surface ordering bugs.
func EnableDebugAssertions() {
	debugAssertionsEnabled = true
}

// DisableDebugAssertions reverts EnableDebugAssertions.
func DisableDebugAssertions() {
	debugAssertionsEnabled = false
}

// EnableProbeTracing turns on zerolog-backed tracing of probe sequences and
// table lifecycle events for the remainder of the process. It is independent
// of EnableDebugAssertions: tracing is useful for diagnosing a slow probe
// sequence in a production build, where the O(capacity) invariant walk would
// be too costly to also turn on.
func EnableProbeTracing() {
	tracelog.Enable()
}

// DisableProbeTracing reverts EnableProbeTracing.
func DisableProbeTracing() {
	tracelog.Disable()
}

// ProbeTracingEnabled reports whether EnableProbeTracing is currently in
// effect.
func ProbeTracingEnabled() bool {
	return tracelog.Enabled()
}
