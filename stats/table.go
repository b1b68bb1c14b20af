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

package stats

import "github.com/castorsql/castor/kernel"

// TableStats is a table's worth of per-column sketches, plus the row
// count the optimizer uses as the base cardinality of a Get (spec.md
// §4.6). It is safe to keep one TableStats per page and merge them
// lazily when the planner asks for table-wide statistics.
type TableStats struct {
	RowCount int64
	Columns  map[string]*ColumnStats
}

func NewTableStats() *TableStats {
	return &TableStats{Columns: make(map[string]*ColumnStats)}
}

// ObserveBatch folds one record batch into the table's per-column stats.
func (t *TableStats) ObserveBatch(batch *kernel.RecordBatch) {
	t.RowCount += int64(batch.Len())
	for _, col := range batch.Columns {
		cs, ok := t.Columns[col.Name]
		if !ok {
			cs = NewColumnStats()
			t.Columns[col.Name] = cs
		}
		cs.Observe(col.Array)
	}
}

// Merge combines another table's sketches into t.
func (t *TableStats) Merge(other *TableStats) {
	t.RowCount += other.RowCount
	for name, cs := range other.Columns {
		if existing, ok := t.Columns[name]; ok {
			existing.Merge(cs)
		} else {
			clone := NewColumnStats()
			clone.Merge(cs)
			t.Columns[name] = clone
		}
	}
}

// ApproxCardinality is the table-wide row-count estimate the optimizer
// uses as the logical property of a Get (spec.md §4.5).
func (t *TableStats) ApproxCardinality() float64 { return float64(t.RowCount) }
