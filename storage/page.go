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

// Package storage implements the MVCC-aware PAX page store: fixed-capacity
// columnar pages carrying xmin/xmax visibility, and the Heap that chains
// pages into a table.
package storage

import (
	"strings"
	"sync/atomic"

	"github.com/castorsql/castor/catalog"
	"github.com/castorsql/castor/kernel"
	"gopkg.in/src-d/go-errors.v1"
)

// PageSize is the design-target row capacity of one page (spec.md §3).
const PageSize = 1024

// MaxTxn marks a row's xmax while it has not been deleted.
const MaxTxn = int64(1) << 62

var (
	// ErrPageFull reports a full page. Page.Insert does not return it:
	// Insert returns nothing and the caller reads *offset to see how many
	// rows landed.
	ErrPageFull = errors.NewKind("storage: page is full")
)

type column struct {
	data kernel.Array
}

// Page is a fixed-capacity PAX block. User columns are preallocated at
// capacity PageSize so concurrent inserters — each reserving a disjoint
// [start,end) row range via the atomic length counter — write into
// non-overlapping memory without needing a lock, matching the contract in
// spec.md §4.2. Once written, a row's user-column values are immutable;
// only xmax ever transitions (MAX → a deleting txn id).
type Page struct {
	id     int64
	schema catalog.Schema
	cols   []*mutCol
	xmin   []int64
	xmax   []int64
	length atomic.Int64
}

// mutCol is a page-private, preallocated-at-capacity column. Unlike
// kernel.Array, it exposes indexed writes into disjoint slots without
// reallocation, which is what lets concurrent inserts skip synchronization.
type mutCol struct {
	kind    kernel.Kind
	bools   []uint8 // 0/1, one byte per row: a byte per row (not bit-packed)
	i64s    []int64
	f64s    []float64
	strs    []string
	isValid []uint8
}

func newMutCol(k kernel.Kind) *mutCol {
	c := &mutCol{kind: k, isValid: make([]uint8, PageSize)}
	switch k {
	case kernel.Bool:
		c.bools = make([]uint8, PageSize)
	case kernel.Int64, kernel.Date, kernel.Timestamp:
		c.i64s = make([]int64, PageSize)
	case kernel.Float64:
		c.f64s = make([]float64, PageSize)
	case kernel.String:
		c.strs = make([]string, PageSize)
	}
	return c
}

func (c *mutCol) write(row int, v kernel.Value) {
	if !v.Valid {
		c.isValid[row] = 0
		return
	}
	c.isValid[row] = 1
	switch c.kind {
	case kernel.Bool:
		if v.Bool {
			c.bools[row] = 1
		}
	case kernel.Int64, kernel.Date, kernel.Timestamp:
		c.i64s[row] = v.I64
	case kernel.Float64:
		c.f64s[row] = v.F64
	case kernel.String:
		c.strs[row] = v.Str
	}
}

func (c *mutCol) slice(n int) kernel.Array {
	switch c.kind {
	case kernel.Bool:
		out := kernel.NewBoolArrayCap(n)
		for i := 0; i < n; i++ {
			out.Push(c.bools[i] != 0, c.isValid[i] != 0)
		}
		return out
	case kernel.Int64:
		out := kernel.NewInt64Array()
		for i := 0; i < n; i++ {
			out.Push(c.i64s[i], c.isValid[i] != 0)
		}
		return out
	case kernel.Date:
		out := kernel.NewDateArray()
		for i := 0; i < n; i++ {
			out.Push(c.i64s[i], c.isValid[i] != 0)
		}
		return out
	case kernel.Timestamp:
		out := kernel.NewTimestampArray()
		for i := 0; i < n; i++ {
			out.Push(c.i64s[i], c.isValid[i] != 0)
		}
		return out
	case kernel.Float64:
		out := kernel.NewFloat64Array()
		for i := 0; i < n; i++ {
			out.Push(c.f64s[i], c.isValid[i] != 0)
		}
		return out
	case kernel.String:
		out := kernel.NewStringArray()
		for i := 0; i < n; i++ {
			out.Push(c.strs[i], c.isValid[i] != 0)
		}
		return out
	}
	return nil
}

// NewPage allocates an empty page with the given schema and id.
func NewPage(id int64, schema catalog.Schema) *Page {
	p := &Page{id: id, schema: schema, xmin: make([]int64, PageSize), xmax: make([]int64, PageSize)}
	p.cols = make([]*mutCol, len(schema))
	for i, col := range schema {
		p.cols[i] = newMutCol(col.Type)
	}
	return p
}

func (p *Page) ID() int64 { return p.id }

// Len returns the number of rows currently visible to readers; it is the
// single atomic load that bounds a reader's view of a page that may have
// inserts in flight (spec.md §5).
func (p *Page) Len() int { return int(p.length.Load()) }

// reserve atomically claims up to `request` more rows, returning the
// half-open range actually granted, which may be shorter than requested if
// the page is (nearly) full.
func (p *Page) reserve(request int) (start, end int) {
	for {
		cur := p.length.Load()
		if cur >= PageSize {
			return PageSize, PageSize
		}
		want := cur + int64(request)
		if want > PageSize {
			want = PageSize
		}
		if p.length.CompareAndSwap(cur, want) {
			return int(cur), int(want)
		}
	}
}

// Insert reserves a contiguous row range, writes batch[*offset:] into it,
// sets xmin=txn/xmax=MaxTxn, appends the new $tids to tids, and advances
// *offset by the number of rows written. If the page fills up, it writes
// as many rows as fit and returns partial progress via *offset — the
// caller is expected to allocate a fresh page for the remainder.
func (p *Page) Insert(batch *kernel.RecordBatch, txn int64, tids *kernel.Int64Array, offset *int) {
	remaining := batch.Len() - *offset
	if remaining <= 0 {
		return
	}
	start, end := p.reserve(remaining)
	for i, col := range p.schema {
		src, ok := batch.Column(col.Name)
		if !ok {
			continue
		}
		for row := start; row < end; row++ {
			p.cols[i].write(row, valueAt(src, *offset+(row-start)))
		}
	}
	for row := start; row < end; row++ {
		p.xmin[row] = txn
		p.xmax[row] = MaxTxn
		tids.Push(p.id*PageSize+int64(row), true)
	}
	*offset += end - start
}

func valueAt(a kernel.Array, i int) kernel.Value {
	if !a.IsValid(i) {
		return kernel.NullValue(a.Kind())
	}
	switch arr := a.(type) {
	case *kernel.BoolArray:
		v, _ := arr.Get(i)
		return kernel.BoolValue(v)
	case *kernel.Int64Array:
		v, _ := arr.Get(i)
		switch arr.Kind() {
		case kernel.Date:
			return kernel.DateValue(int32(v))
		case kernel.Timestamp:
			return kernel.TimestampValue(v)
		default:
			return kernel.Int64Value(v)
		}
	case *kernel.Float64Array:
		v, _ := arr.Get(i)
		return kernel.Float64Value(v)
	case *kernel.StringArray:
		v, _ := arr.Get(i)
		return kernel.StringValue(v)
	}
	return kernel.NullValue(a.Kind())
}

// Delete atomically transitions xmax from MaxTxn to txn. Returns whether
// this call won the race — delete on an already-deleted row is not an
// error, only the first deleter wins (spec.md §7).
func (p *Page) Delete(row int, txn int64) bool {
	return atomic.CompareAndSwapInt64(&p.xmax[row], MaxTxn, txn)
}

// Select returns a record batch with one column per requested name.
// Recognized synthetic names are $xmin, $xmax, $tid.
func (p *Page) Select(projects []string) (*kernel.RecordBatch, error) {
	n := p.Len()
	cols := make([]kernel.Column, len(projects))
	for i, name := range projects {
		switch name {
		case "$xmin":
			cols[i] = kernel.Column{Name: name, Array: p.systemColumn(p.xmin[:n])}
		case "$xmax":
			cols[i] = kernel.Column{Name: name, Array: p.systemColumn(p.xmax[:n])}
		case "$tid":
			tids := kernel.NewInt64Array()
			for row := 0; row < n; row++ {
				tids.Push(p.id*PageSize+int64(row), true)
			}
			cols[i] = kernel.Column{Name: name, Array: tids}
		default:
			idx := p.columnIndex(name)
			if idx < 0 {
				return nil, errors.NewKind("storage: %q is not a column of this page (have: %s)").New(name, strings.Join(p.schema.Names(), ", "))
			}
			cols[i] = kernel.Column{Name: name, Array: p.cols[idx].slice(n)}
		}
	}
	return kernel.NewRecordBatch(cols), nil
}

func (p *Page) systemColumn(values []int64) kernel.Array {
	out := kernel.NewInt64Array()
	for _, v := range values {
		out.Push(v, true)
	}
	return out
}

func (p *Page) columnIndex(name string) int {
	for i, c := range p.schema {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Visible reports whether row is visible to transaction txn: the executor,
// not the page, applies this predicate (spec.md §4.2) — exposed here so
// Heap.Scan callers and tests can reuse one definition.
func Visible(xmin, xmax, txn int64) bool {
	return xmin <= txn && txn < xmax
}
