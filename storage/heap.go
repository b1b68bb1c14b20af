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

package storage

import (
	"sync"

	"github.com/castorsql/castor/catalog"
	"github.com/castorsql/castor/kernel"
	"github.com/castorsql/castor/stats"
)

// Heap is a table's storage: an ordered, append-only list of pages. New
// rows are appended to the last page until it fills, at which point a
// fresh page is allocated (spec.md §4.3). pagesMu guards only the slice
// of page pointers, not the pages themselves — individual pages manage
// their own concurrent writers via Page.reserve.
type Heap struct {
	table   catalog.Table
	pagesMu sync.RWMutex
	pages   []*Page
	nextID  int64

	statsMu sync.Mutex
	tstats  *stats.TableStats
}

func NewHeap(table catalog.Table) *Heap {
	return &Heap{table: table, tstats: stats.NewTableStats()}
}

// lastPage returns the current tail page, allocating the first one if the
// heap is empty.
func (h *Heap) lastPage() *Page {
	h.pagesMu.Lock()
	defer h.pagesMu.Unlock()
	if len(h.pages) == 0 {
		p := NewPage(h.nextID, h.table.Schema)
		h.nextID++
		h.pages = append(h.pages, p)
	}
	return h.pages[len(h.pages)-1]
}

func (h *Heap) appendPage() *Page {
	h.pagesMu.Lock()
	defer h.pagesMu.Unlock()
	p := NewPage(h.nextID, h.table.Schema)
	h.nextID++
	h.pages = append(h.pages, p)
	return p
}

// Insert writes batch into the heap under transaction txn, returning the
// $tid assigned to each row in insertion order. A batch that doesn't fit
// in the current tail page spills into as many freshly allocated pages as
// needed (spec.md §4.3).
func (h *Heap) Insert(batch *kernel.RecordBatch, txn int64) *kernel.Int64Array {
	tids := kernel.NewInt64Array()
	offset := 0
	for offset < batch.Len() {
		page := h.lastPage()
		before := offset
		page.Insert(batch, txn, tids, &offset)
		if offset == before {
			// The tail page reported itself full without taking any rows;
			// move on to a fresh one.
			h.appendPage()
			continue
		}
		if page.Len() >= PageSize {
			h.appendPage()
		}
	}
	h.statsMu.Lock()
	h.tstats.ObserveBatch(batch)
	h.statsMu.Unlock()
	return tids
}

// DeleteByTid decodes a $tid into its (page, row) coordinates and marks
// the row deleted under txn. Returns false if the tid does not belong to
// this heap, or the row was already deleted by a concurrent transaction.
func (h *Heap) DeleteByTid(tid int64, txn int64) bool {
	pageID := tid / PageSize
	row := int(tid % PageSize)
	h.pagesMu.RLock()
	var page *Page
	for _, p := range h.pages {
		if p.ID() == pageID {
			page = p
			break
		}
	}
	h.pagesMu.RUnlock()
	if page == nil {
		return false
	}
	return page.Delete(row, txn)
}

// Scan returns the visible rows of every page, concatenated, projected to
// projects plus a "$tid" already included when requested. Visibility
// filtering against txn is left to the caller per Visible, matching how
// Page.Select returns raw rows (spec.md §4.2).
func (h *Heap) Scan(projects []string) (*kernel.RecordBatch, error) {
	h.pagesMu.RLock()
	pages := make([]*Page, len(h.pages))
	copy(pages, h.pages)
	h.pagesMu.RUnlock()

	batches := make([]*kernel.RecordBatch, 0, len(pages))
	for _, p := range pages {
		b, err := p.Select(projects)
		if err != nil {
			return nil, err
		}
		if b.Len() > 0 {
			batches = append(batches, b)
		}
	}
	if len(batches) == 0 {
		return p0Select(h.table.Schema, projects)
	}
	return kernel.Concat(batches...)
}

// p0Select builds an empty batch with the right schema when a heap has no
// pages yet (or every page is empty).
func p0Select(schema catalog.Schema, projects []string) (*kernel.RecordBatch, error) {
	empty := NewPage(-1, schema)
	return empty.Select(projects)
}

// ApproxCardinality is the sum of each page's row count, the cheap
// cardinality estimate the optimizer uses for a Get before falling back
// to per-column statistics (spec.md §4.6).
func (h *Heap) ApproxCardinality() int64 {
	h.pagesMu.RLock()
	defer h.pagesMu.RUnlock()
	var total int64
	for _, p := range h.pages {
		total += int64(p.Len())
	}
	return total
}

// Stats returns the heap's accumulated table-wide statistics.
func (h *Heap) Stats() *stats.TableStats {
	h.statsMu.Lock()
	defer h.statsMu.Unlock()
	return h.tstats
}

// PageCount reports how many pages the heap currently holds, used by
// tests.
func (h *Heap) PageCount() int {
	h.pagesMu.RLock()
	defer h.pagesMu.RUnlock()
	return len(h.pages)
}

// Schema returns the catalog schema the heap was created with.
func (h *Heap) Schema() catalog.Schema {
	return h.table.Schema
}
