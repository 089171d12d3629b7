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

import "unsafe"

// ctrlAt returns a pointer to the i'th control byte of an array starting at
// base.
func ctrlAt(base *ctrl, i uintptr) *ctrl {
	return (*ctrl)(unsafe.Add(unsafe.Pointer(base), i))
}

// slotAt returns a pointer to the i'th slot of a slot array starting at
// base, each slot being slotSize bytes.
func slotAt(base unsafe.Pointer, i, slotSize uintptr) unsafe.Pointer {
	return unsafe.Add(base, i*slotSize)
}

// prefetchCtrl is a hook for prefetching the control bytes at c ahead of a
// probe. Go exposes no portable prefetch intrinsic (the real engine's
// equivalent, CWISS_RawHashSet_prefetch_heap_block, is GCC/Clang-only and
// purely advisory), so this is a documented no-op rather than a stub that
// pretends to do something it can't.
func prefetchCtrl(c *ctrl) {
	_ = c
}

// noescape hides a pointer from escape analysis, the standard runtime/hmap
// trick for keeping a hot-path pointer off the heap when it is passed
// through an indirect call (here, a caller-supplied KeyPolicy.Hash) that the
// compiler cannot prove doesn't retain it. Used only for pointers that are
// provably short-lived within a single call.
func noescape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	//nolint:staticcheck
	return unsafe.Pointer(x ^ 0)
}
