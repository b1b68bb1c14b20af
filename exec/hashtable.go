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

// Package exec implements the physical execution operators: the hash
// table shared by every join variant, the join operators themselves, and
// the aggregate operator's accumulator state machine (spec.md §4.5).
package exec

import (
	"github.com/castorsql/castor/kernel"
	"gopkg.in/src-d/go-errors.v1"
)

var ErrNoSuchColumn = errors.NewKind("exec: no such column %q")

// HashTable buckets a build-side batch's rows by their key columns' hash,
// using the next power of two at least as large as the row count (spec.md
// §4.5): a stable bucket count keeps chaining short without resizing mid
// build.
type HashTable struct {
	keys    []kernel.Array
	mask    uint64
	buckets [][]int
}

// BuildHashTable hashes batch's keyCols columns and chains rows into
// buckets.
func BuildHashTable(batch *kernel.RecordBatch, keyCols []string) (*HashTable, error) {
	keys := make([]kernel.Array, len(keyCols))
	for i, name := range keyCols {
		a, ok := batch.Column(name)
		if !ok {
			return nil, ErrNoSuchColumn.New(name)
		}
		keys[i] = a
	}
	n := batch.Len()
	numBuckets := nextPow2(n)
	if numBuckets == 0 {
		numBuckets = 1
	}
	seed, err := batch.HashColumns(keyCols)
	if err != nil {
		return nil, err
	}
	ht := &HashTable{
		keys:    keys,
		mask:    uint64(numBuckets - 1),
		buckets: make([][]int, numBuckets),
	}
	for i := 0; i < n; i++ {
		b := seed.Get(i) & ht.mask
		ht.buckets[b] = append(ht.buckets[b], i)
	}
	return ht, nil
}

func nextPow2(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Probe returns the build-side row indices whose key columns equal
// probeBatch's row probeRow, using probeKeyCols (must align positionally
// with the table's own key columns).
func (ht *HashTable) Probe(probeBatch *kernel.RecordBatch, probeKeyCols []string, probeRow int, probeHash uint64) ([]int, error) {
	bucket := ht.buckets[probeHash&ht.mask]
	if len(bucket) == 0 {
		return nil, nil
	}
	probeKeys := make([]kernel.Array, len(probeKeyCols))
	for i, name := range probeKeyCols {
		a, ok := probeBatch.Column(name)
		if !ok {
			return nil, ErrNoSuchColumn.New(name)
		}
		probeKeys[i] = a
	}
	var matches []int
	for _, buildRow := range bucket {
		if keysEqual(ht.keys, buildRow, probeKeys, probeRow) {
			matches = append(matches, buildRow)
		}
	}
	return matches, nil
}

func keysEqual(build []kernel.Array, buildRow int, probe []kernel.Array, probeRow int) bool {
	for i := range build {
		if build[i].Kind() != probe[i].Kind() {
			return false
		}
		if !build[i].IsValid(buildRow) || !probe[i].IsValid(probeRow) {
			return false
		}
		if !elemEqualAt(build[i], buildRow, probe[i], probeRow) {
			return false
		}
	}
	return true
}

func elemEqualAt(a kernel.Array, i int, b kernel.Array, j int) bool {
	switch av := a.(type) {
	case *kernel.BoolArray:
		x, _ := av.Get(i)
		y, _ := b.(*kernel.BoolArray).Get(j)
		return x == y
	case *kernel.Int64Array:
		x, _ := av.Get(i)
		y, _ := b.(*kernel.Int64Array).Get(j)
		return x == y
	case *kernel.Float64Array:
		x, _ := av.Get(i)
		y, _ := b.(*kernel.Float64Array).Get(j)
		return x == y
	case *kernel.StringArray:
		x, _ := av.Get(i)
		y, _ := b.(*kernel.StringArray).Get(j)
		return x == y
	}
	return false
}
