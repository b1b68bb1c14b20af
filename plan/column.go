// Copyright 2024 The Castor Authors.
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

// Package plan implements the logical and scalar intermediate
// representations the planner builds, rewrites, and hands to the
// optimizer (spec.md §3, §4.6). Columns carry a process-wide unique id
// so that projecting, renaming, or pushing a column through several
// memoized multi-expressions never loses its identity.
package plan

import (
	"sync/atomic"

	"github.com/RoaringBitmap/roaring/v2"
)

// ColumnID is a fresh identity minted once per logical column
// introduction (a table scan's output column, a Map's computed column,
// and so on). Equality and hashing of a Column use only the id.
type ColumnID int64

var nextColumnID int64

// NewColumnID mints a fresh column identity. The counter is process-
// global and never reused, mirroring the original engine's global column
// id allocator.
func NewColumnID() ColumnID {
	return ColumnID(atomic.AddInt64(&nextColumnID, 1))
}

// Column is a named, uniquely-identified scalar slot that data flows
// through during planning. Two Columns are the same column iff their IDs
// match, regardless of Name (a column can be renamed by a Project without
// losing its identity).
type Column struct {
	ID   ColumnID
	Name string
}

func NewColumn(name string) Column {
	return Column{ID: NewColumnID(), Name: name}
}

// ColSet is a sparse set of column ids, backed by a roaring bitmap since
// the set of columns an expression references is typically a small
// fraction of all columns ever minted in a large plan — exactly the
// sparse/mostly-empty shape roaring is built for (unlike kernel.Bitmap's
// dense per-row validity, see DESIGN.md).
type ColSet struct {
	bits *roaring.Bitmap
}

func NewColSet(cols ...Column) ColSet {
	s := ColSet{bits: roaring.New()}
	for _, c := range cols {
		s.bits.Add(uint32(c.ID))
	}
	return s
}

func (s ColSet) Add(id ColumnID) ColSet {
	if s.bits == nil {
		s.bits = roaring.New()
	}
	s.bits.Add(uint32(id))
	return s
}

func (s ColSet) Contains(id ColumnID) bool {
	if s.bits == nil {
		return false
	}
	return s.bits.Contains(uint32(id))
}

func (s ColSet) Union(other ColSet) ColSet {
	out := NewColSet()
	if s.bits != nil {
		out.bits.Or(s.bits)
	}
	if other.bits != nil {
		out.bits.Or(other.bits)
	}
	return out
}

func (s ColSet) Len() int {
	if s.bits == nil {
		return 0
	}
	return int(s.bits.GetCardinality())
}

// Each calls fn with every column id in the set, in ascending order,
// stopping early if fn returns false.
func (s ColSet) Each(fn func(id ColumnID) bool) {
	if s.bits == nil {
		return
	}
	it := s.bits.Iterator()
	for it.HasNext() {
		if !fn(ColumnID(it.Next())) {
			return
		}
	}
}
