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

// package swiss is a policy-parameterized Go implementation of Swiss Tables
// as described in https://abseil.io/about/design/swisstables, following the
// structure of Abseil's C++ raw_hash_set and its C port, cwisstable:
//
//	https://github.com/abseil/abseil-cpp/blob/master/absl/container/internal/raw_hash_set.h
//	https://github.com/google/cwisstable
//
// # Swiss Tables
//
// Swiss tables are hash tables that map keys to values, similar to Go's
// builtin map type. They use open-addressing rather than chaining to handle
// collisions. If you're not familiar with open-addressing, see
// https://en.wikipedia.org/wiki/Open_addressing. A hybrid between linear and
// quadratic probing is used: linear probing within groups of small fixed
// size and quadratic probing at the group level. The key design choice of
// Swiss tables is a separate metadata array storing one control byte per
// slot. Seven bits of each control byte are taken from hash(key); the
// remaining bit (really, the whole byte's sign) distinguishes empty, full,
// deleted, and sentinel slots. The control array allows a single group-sized
// load to test many slots for a match at once; a 16-byte group maps onto
// SIMD-width compares on platforms that have them, while an 8-byte group
// falls back to SWAR (SIMD Within A Register) bit tricks everywhere else.
//
// A table's layout is capacity slots, where capacity+1 is a power of two,
// and capacity+groupWidth control bytes. The [capacity+1:capacity+groupWidth]
// control bytes mirror the first groupWidth-1 control bytes, so that a
// group-sized load straddling the end of the control array does not require
// a bounds check. The control byte at index capacity is always a sentinel,
// which the group matchers treat as neither empty nor deleted: it is not an
// available slot and not a deletion tombstone, and it marks the end of the
// array for iteration.
//
// Probing walks through groups using quadratic probing (in groups of
// groupWidth) until it finds a group with at least one empty slot. See
// probeSeq for the exact sequence and the guarantee that
// every group is visited exactly once per full traversal.
//
// Deletion uses tombstones (ctrlDeleted), with an optimization to mark a
// slot empty instead when doing so provably cannot break probing: a group of
// full slots must continue to cause probing to advance, so converting one of
// its members to empty would be unsound unless we can prove the slot was
// never part of a full group. We prove this by checking whether either of
// the groupWidth-1 neighbors on each side of the deleted slot is empty.
//
// # Policy plumbing
//
// Rather than extracting a hash function from Go's runtime map
// implementation and constraining keys to `comparable`, this package takes
// the policy boundary of the original cwisstable design: a Table is
// parameterized by an explicit ObjectPolicy (copy/destroy), KeyPolicy
// (hash/eq), AllocPolicy (alloc/free), and SlotPolicy (init/del/transfer/get)
// supplied by the caller. This allows both inline ("flat") and
// pointer-indirected ("node") slot storage without the engine knowing which
// one it is talking to, and keeps hashing/equality entirely the caller's
// concern (see policy.go).
//
// # Implementation
//
// The implementation uses unsafe and raw pointer arithmetic rather than Go
// slices in the hot paths, in the manner of the cwisstable/raw_hash_set
// lineage it follows, in order to keep the control-array/slot-array layout
// exactly as specified: a single contiguous allocation rather than
// independently-owned Go slices.
package swiss
