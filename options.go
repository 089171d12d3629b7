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
	"github.com/rs/zerolog"
	"github.com/swisstable/core/internal/tracelog"
)

// Option amends a Policy before New builds a Table from it, letting a caller
// override one piece of an otherwise-complete policy (for instance, swap in
// a custom hash function on top of NewFlatPolicy's defaults) without having
// to reconstruct the whole Policy by hand.
type Option[T any] interface {
	apply(p *Policy[T])
}

type hashOption[T any] struct {
	hash func(key *T, seed uintptr) uintptr
}

func (op hashOption[T]) apply(p *Policy[T]) {
	p.Key.Hash = op.hash
}

// WithHash overrides the hash function a Policy uses to locate entries.
func WithHash[T any](hash func(key *T, seed uintptr) uintptr) Option[T] {
	return hashOption[T]{hash}
}

type allocatorOption[T any] struct {
	alloc AllocPolicy
}

func (op allocatorOption[T]) apply(p *Policy[T]) {
	p.Alloc = op.alloc
}

// WithAllocator overrides the memory-acquisition strategy a Policy uses for
// its combined control/slot allocation, in place of NewDefaultAllocPolicy.
func WithAllocator[T any](alloc AllocPolicy) Option[T] {
	return allocatorOption[T]{alloc}
}

type loggerOption[T any] struct {
	logger zerolog.Logger
}

func (op loggerOption[T]) apply(*Policy[T]) {
	tracelog.SetLogger(op.logger)
}

// WithLogger routes this package's probe and lifecycle tracing (see
// EnableProbeTracing) through logger instead of the default stderr console
// writer. Tracing is process-wide, like EnableProbeTracing itself, so the
// last WithLogger applied across any table in the process wins.
func WithLogger[T any](logger zerolog.Logger) Option[T] {
	return loggerOption[T]{logger}
}
