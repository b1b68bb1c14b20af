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

import (
	"encoding/binary"
	"math"

	"github.com/castorsql/castor/kernel"
)

// ColumnStats is the merge-safe sketch pair the optimizer consults for one
// column: a distinct-count estimate and an approximate value distribution.
type ColumnStats struct {
	NullCount int64
	RowCount  int64
	distinct  *HyperLogLog
	hist      *KLLHistogram
}

func NewColumnStats() *ColumnStats {
	return &ColumnStats{distinct: NewHyperLogLog(), hist: NewKLLHistogram()}
}

// Observe folds one array's worth of values into the sketch.
func (c *ColumnStats) Observe(a kernel.Array) {
	c.RowCount += int64(a.Len())
	for i := 0; i < a.Len(); i++ {
		if !a.IsValid(i) {
			c.NullCount++
			continue
		}
		key, numeric, isNumeric := encodeForStats(a, i)
		c.distinct.Add(key)
		if isNumeric {
			c.hist.Add(numeric)
		}
	}
}

// Merge combines another column's stats into c, for merging per-page
// sketches into a table-wide one.
func (c *ColumnStats) Merge(other *ColumnStats) {
	c.RowCount += other.RowCount
	c.NullCount += other.NullCount
	c.distinct.Merge(other.distinct)
	c.hist.Merge(other.hist)
}

func (c *ColumnStats) DistinctCount() float64 { return c.distinct.Estimate() }

// SelectivityLessThan estimates P(col < v).
func (c *ColumnStats) SelectivityLessThan(v float64) float64 {
	return c.hist.SelectivityLessThan(v)
}

// SelectivityEqual approximates P(col = v) as 1/distinct-count, the
// standard equality-predicate selectivity heuristic (spec.md §4.6).
func (c *ColumnStats) SelectivityEqual() float64 {
	d := c.DistinctCount()
	if d < 1 {
		return 1
	}
	return 1 / d
}

// Snapshot exposes a merge-safe, wire-transmissible copy of the sketch
// pair (spec.md §6 `column_statistics` returns "merge-safe serialized
// statistics"): the sketches' own fields stay unexported everywhere else,
// this is the one export seam for RPC transport.
type ColumnStatsSnapshot struct {
	NullCount  int64
	RowCount   int64
	Registers  []uint8
	K          int
	Compactors [][]float64
	Seed       uint32
}

func (c *ColumnStats) Snapshot() ColumnStatsSnapshot {
	return ColumnStatsSnapshot{
		NullCount:  c.NullCount,
		RowCount:   c.RowCount,
		Registers:  append([]uint8{}, c.distinct.registers...),
		K:          c.hist.k,
		Compactors: c.hist.compactors,
		Seed:       c.hist.seed,
	}
}

// RestoreColumnStats rebuilds a ColumnStats from a Snapshot taken earlier,
// possibly on another worker.
func RestoreColumnStats(s ColumnStatsSnapshot) *ColumnStats {
	return &ColumnStats{
		NullCount: s.NullCount,
		RowCount:  s.RowCount,
		distinct:  &HyperLogLog{registers: s.Registers},
		hist:      &KLLHistogram{k: s.K, compactors: s.Compactors, seed: s.Seed},
	}
}

// encodeForStats returns a byte key suitable for HLL hashing and, when the
// value is numeric, a float64 suitable for the quantile histogram.
func encodeForStats(a kernel.Array, i int) (key []byte, numeric float64, isNumeric bool) {
	switch arr := a.(type) {
	case *kernel.BoolArray:
		v, _ := arr.Get(i)
		if v {
			return []byte{1}, 1, true
		}
		return []byte{0}, 0, true
	case *kernel.Int64Array:
		v, _ := arr.Get(i)
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(v))
		return buf, float64(v), true
	case *kernel.Float64Array:
		v, _ := arr.Get(i)
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, math.Float64bits(v))
		return buf, v, true
	case *kernel.StringArray:
		v, _ := arr.Get(i)
		return []byte(v), 0, false
	}
	return nil, 0, false
}
