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

// ObjectPolicy describes how to copy and destroy a value of type T. Copy is
// the engine's only means of writing a caller-supplied value into a freshly
// initialized slot (see SlotPolicy.Init) and must be non-nil; Dtor may be
// nil when T needs no cleanup.
type ObjectPolicy[T any] struct {
	Copy func(dst, src *T)
	Dtor func(obj *T)
}

// KeyPolicy supplies the hash and equality functions a Table uses to locate
// entries. Hash must be a pure function of key and seed: two calls with the
// same key and seed must return the same value for the table's probing to
// be consistent. seed is the table's per-instance random seed (see
// randomSeed), mixed in by callers that want per-table hash diversity; a
// Hash that ignores seed is permitted but forgoes that mitigation.
type KeyPolicy[T any] struct {
	Hash func(key *T, seed uintptr) uintptr
	Eq   func(a, b *T) bool
}

// AllocPolicy supplies the memory backing a table's combined control/slot
// allocation. Alloc returns a pointer to at least size bytes aligned to
// align, plus an opaque owner value the caller must keep reachable for as
// long as the memory is in use (a real allocator might return nil for this;
// the default, GC-backed allocator uses it to retain the backing slice).
// Free is given the same owner back and may use it to release the memory;
// the default allocator's Free is a no-op because the garbage collector
// reclaims the backing slice once owner becomes unreachable.
type AllocPolicy struct {
	Alloc func(size, align uintptr) (ptr unsafe.Pointer, owner any)
	Free  func(ptr unsafe.Pointer, size, align uintptr, owner any)
}

// SlotPolicy describes the storage strategy for table entries: whether a
// slot holds an object inline ("flat") or merely a pointer to one allocated
// elsewhere ("node"). Size and Align describe one slot, not one T.
type SlotPolicy[T any] struct {
	Size, Align uintptr

	// Init brings an uninitialized slot into a state Get can be called on,
	// without yet giving it a value: a flat slot needs no work since
	// Object.Copy then overwrites the whole value in place, while a node
	// slot must allocate its pointee. The caller fills in the value
	// afterward via Object.Copy.
	Init func(slot unsafe.Pointer)
	// Del releases any resources a slot owns (for node slots, the pointee).
	Del func(slot unsafe.Pointer)
	// Transfer moves a slot's contents from src to dst, leaving src's slot
	// memory in a state Del can be safely called on (or not called at all,
	// if the transfer already invalidated it).
	Transfer func(dst, src unsafe.Pointer)
	// Get returns a pointer to the T housed in slot.
	Get func(slot unsafe.Pointer) *T
}

// Policy bundles all four policies a Table needs. A zero-value Policy is
// invalid; use NewFlatPolicy or NewNodePolicy, or build one by hand for a
// custom storage strategy.
type Policy[T any] struct {
	Object ObjectPolicy[T]
	Key    KeyPolicy[T]
	Alloc  AllocPolicy
	Slot   SlotPolicy[T]
}

// NewDefaultAllocPolicy returns an AllocPolicy backed by ordinary Go heap
// allocation. It over-allocates by align-1 bytes to find an aligned
// starting address within the slice, and retains the slice itself as the
// owner value so the garbage collector cannot reclaim it out from under the
// returned pointer while it is in use.
func NewDefaultAllocPolicy() AllocPolicy {
	return AllocPolicy{
		Alloc: func(size, align uintptr) (unsafe.Pointer, any) {
			if size == 0 {
				return nil, nil
			}
			buf := make([]byte, size+align-1)
			base := uintptr(unsafe.Pointer(&buf[0]))
			aligned := (base + align - 1) &^ (align - 1)
			return unsafe.Pointer(aligned), buf
		},
		Free: func(unsafe.Pointer, uintptr, uintptr, any) {},
	}
}

// NewFlatPolicy returns a Policy that stores each T inline in its slot, the
// cheapest strategy for small, cheaply-copyable T. hash and eq are the
// caller-supplied key functions; dtor may be nil.
func NewFlatPolicy[T any](hash func(key *T, seed uintptr) uintptr, eq func(a, b *T) bool, dtor func(obj *T)) Policy[T] {
	var zero T
	return Policy[T]{
		Object: ObjectPolicy[T]{
			Copy: func(dst, src *T) { *dst = *src },
			Dtor: dtor,
		},
		Key:   KeyPolicy[T]{Hash: hash, Eq: eq},
		Alloc: NewDefaultAllocPolicy(),
		Slot: SlotPolicy[T]{
			Size:  unsafe.Sizeof(zero),
			Align: unsafe.Alignof(zero),
			Init: func(slot unsafe.Pointer) {},
			Del: func(slot unsafe.Pointer) {
				if dtor != nil {
					dtor((*T)(slot))
				}
				*(*T)(slot) = zero
			},
			Transfer: func(dst, src unsafe.Pointer) {
				*(*T)(dst) = *(*T)(src)
			},
			Get: func(slot unsafe.Pointer) *T {
				return (*T)(slot)
			},
		},
	}
}

// NewNodePolicy returns a Policy that stores a *T in each slot, heap
// allocating the pointee separately. This avoids moving T itself during
// resizes at the cost of an extra indirection per access and an allocation
// per insert; it is the right choice for large or address-sensitive T.
func NewNodePolicy[T any](hash func(key *T, seed uintptr) uintptr, eq func(a, b *T) bool, dtor func(obj *T)) Policy[T] {
	return Policy[T]{
		Object: ObjectPolicy[T]{
			Copy: func(dst, src *T) { *dst = *src },
			Dtor: dtor,
		},
		Key:   KeyPolicy[T]{Hash: hash, Eq: eq},
		Alloc: NewDefaultAllocPolicy(),
		Slot: SlotPolicy[T]{
			Size:  unsafe.Sizeof(uintptr(0)),
			Align: unsafe.Alignof(uintptr(0)),
			Init: func(slot unsafe.Pointer) {
				*(**T)(slot) = new(T)
			},
			Del: func(slot unsafe.Pointer) {
				node := *(**T)(slot)
				if node == nil {
					return
				}
				if dtor != nil {
					dtor(node)
				}
				*(**T)(slot) = nil
			},
			Transfer: func(dst, src unsafe.Pointer) {
				*(**T)(dst) = *(**T)(src)
				*(**T)(src) = nil
			},
			Get: func(slot unsafe.Pointer) *T {
				return *(**T)(slot)
			},
		},
	}
}
