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

// Package tracelog provides opt-in, zerolog-backed tracing of probe
// sequences and table lifecycle events. It replaces the ad hoc `if debug {
// fmt.Printf(...) }` blocks older Swiss table ports rely on with a single
// logger that is silent by default and cheap to leave compiled in.
package tracelog

import (
	"os"
	"sync/atomic"

	"github.com/rs/zerolog"
)

var enabled atomic.Bool

var loggerPtr atomic.Pointer[zerolog.Logger]

func init() {
	l := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	loggerPtr.Store(&l)
}

// SetLogger replaces the destination for probe and lifecycle events, letting
// a caller route them through its own zerolog configuration (sinks, level,
// fields) instead of the default stderr console writer. Safe to call
// concurrently with Probe/Lifecycle.
func SetLogger(l zerolog.Logger) {
	loggerPtr.Store(&l)
}

// Enable turns on probe tracing for the remainder of the process.
func Enable() {
	enabled.Store(true)
}

// Disable turns off probe tracing.
func Disable() {
	enabled.Store(false)
}

// Enabled reports whether tracing is currently on, letting callers skip
// building a trace event's arguments entirely on the (default) hot path.
func Enabled() bool {
	return enabled.Load()
}

// Probe logs one step of a probe sequence: which group offset was visited,
// for what reason, and with what result.
func Probe(op string, offset, probeLength uintptr, result string) {
	if !enabled.Load() {
		return
	}
	loggerPtr.Load().Debug().
		Str("op", op).
		Uint64("offset", uint64(offset)).
		Uint64("probeLength", uint64(probeLength)).
		Str("result", result).
		Msg("probe")
}

// Lifecycle logs a table-level event, such as a resize or a tombstone
// squash, along with the table's size and capacity at the time.
func Lifecycle(event string, size, capacity uintptr) {
	if !enabled.Load() {
		return
	}
	loggerPtr.Load().Debug().
		Str("event", event).
		Uint64("size", uint64(size)).
		Uint64("capacity", uint64(capacity)).
		Msg("lifecycle")
}
