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

// Package assert provides the panic-on-violation helpers used to check
// internal invariants of the hash table engine. A failing assertion
// indicates a bug in the engine or in a caller-supplied policy, never a
// condition a well-behaved caller can trigger through normal use, so these
// panic rather than return an error.
package assert

import "github.com/cockroachdb/errors"

// True panics with a formatted message built from format and args if cond is
// false.
func True(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(errors.AssertionFailedf(format, args...))
	}
}

// Fail unconditionally panics with a formatted message, for code paths that
// should be unreachable.
func Fail(format string, args ...interface{}) {
	panic(errors.AssertionFailedf(format, args...))
}

// WrapError panics with err wrapped with the given message if err is
// non-nil. Used for checks that naturally produce an error value (such as
// validating a caller-supplied policy) rather than a boolean.
func WrapError(err error, format string, args ...interface{}) {
	if err != nil {
		panic(errors.Wrapf(err, format, args...))
	}
}
