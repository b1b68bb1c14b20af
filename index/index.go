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

package index

import (
	"github.com/castorsql/castor/catalog"
	"github.com/castorsql/castor/kernel"
	"gopkg.in/src-d/go-errors.v1"
)

var ErrColumnNotFound = errors.NewKind("index: column %q not found in batch")

// Index wraps an Art with the catalog definition it was built from.
type Index struct {
	Def catalog.IndexDef
	art *Art
}

func NewIndex(def catalog.IndexDef, columnNames []string) *Index {
	return &Index{Def: def, art: NewArt()}
}

// Insert projects the indexed columns out of input, concatenates each
// row's encoding with the row's $tid encoding, and inserts the resulting
// keys into the tree with the $tid as the stored value (spec.md §4.4).
func Insert(tree *Art, columnNames []string, input *kernel.RecordBatch, tids *kernel.Int64Array) error {
	cols := make([]kernel.Array, len(columnNames))
	for i, name := range columnNames {
		col, ok := input.Column(name)
		if !ok {
			return ErrColumnNotFound.New(name)
		}
		cols[i] = col
	}
	for row := 0; row < input.Len(); row++ {
		key := EncodeRow(nil, cols, row)
		tid, _ := tids.Get(row)
		key = EncodeTid(key, tid)
		tree.Insert(key, tid)
	}
	return nil
}

// KeyPrefix returns the byte-key encoding of one row's indexed columns,
// without a trailing $tid, suitable as the start of an equality or range
// lookup prefix.
func KeyPrefix(columnNames []string, input *kernel.RecordBatch, row int) ([]byte, error) {
	cols := make([]kernel.Array, len(columnNames))
	for i, name := range columnNames {
		col, ok := input.Column(name)
		if !ok {
			return nil, ErrColumnNotFound.New(name)
		}
		cols[i] = col
	}
	return EncodeRow(nil, cols, row), nil
}

// EqualityScan returns every $tid whose indexed-column key equals prefix
// exactly — an equality lookup is a prefix range over the encoded key
// columns, widened to swallow the trailing $tid bytes (spec.md §4.4).
func (ix *Index) EqualityScan(prefix []byte) []int64 {
	return ix.RangeScan(prefix, UpperBound(prefix))
}

// RangeScan returns every $tid with key in [start, end).
func (ix *Index) RangeScan(start, end []byte) []int64 {
	entries := ix.art.RangeScan(start, end)
	tids := make([]int64, len(entries))
	for i, e := range entries {
		tids[i] = e.Value
	}
	return tids
}

func (ix *Index) Insert(columnNames []string, input *kernel.RecordBatch, tids *kernel.Int64Array) error {
	return Insert(ix.art, columnNames, input, tids)
}

// Delete removes the entry for one row's indexed-column key + tid.
func (ix *Index) Delete(columnNames []string, input *kernel.RecordBatch, row int, tid int64) error {
	cols := make([]kernel.Array, len(columnNames))
	for i, name := range columnNames {
		col, ok := input.Column(name)
		if !ok {
			return ErrColumnNotFound.New(name)
		}
		cols[i] = col
	}
	key := EncodeRow(nil, cols, row)
	key = EncodeTid(key, tid)
	ix.art.Delete(key)
	return nil
}
