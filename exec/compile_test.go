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
	"testing"

	"github.com/castorsql/castor/catalog"
	"github.com/castorsql/castor/kernel"
	"github.com/castorsql/castor/optimizer"
	"github.com/castorsql/castor/plan"
	"github.com/castorsql/castor/session"
	"github.com/castorsql/castor/storage"
	"github.com/stretchr/testify/require"
)

func newStoreWithRows(t *testing.T, rows []int64) (*storage.Store, catalog.Table, plan.Column) {
	t.Helper()
	col := plan.NewColumn("a")
	schema := catalog.Schema{{ID: 0, Name: "a", Type: kernel.Int64}}
	table := catalog.Table{ID: 100, Name: "t", Schema: schema}
	store := storage.NewStore()
	h := store.CreateTable(table)
	batch := kernel.NewRecordBatch([]kernel.Column{{Name: "a", Array: kernel.NewInt64ArrayFromValues(rows)}})
	h.Insert(batch, 1)
	return store, table, col
}

func TestCompileSeqScanReturnsVisibleRows(t *testing.T) {
	store, table, col := newStoreWithRows(t, []int64{1, 2, 3})
	scan := optimizer.SeqScan{Table: plan.Get{Table: table}, Columns: []plan.Column{col}}
	q, err := Compile(scan, store)
	require.NoError(t, err)
	out, err := q.Next(session.New(5, nil, nil))
	require.NoError(t, err)
	require.Equal(t, 3, out.Len())

	second, err := q.Next(session.New(5, nil, nil))
	require.NoError(t, err)
	require.Nil(t, second)
}

func TestCompileSeqScanHidesRowsInsertedAfterTxn(t *testing.T) {
	store, table, col := newStoreWithRows(t, []int64{1, 2})
	scan := optimizer.SeqScan{Table: plan.Get{Table: table}, Columns: []plan.Column{col}}
	q, err := Compile(scan, store)
	require.NoError(t, err)
	out, err := q.Next(session.New(0, nil, nil))
	require.NoError(t, err)
	require.Equal(t, 0, out.Len())
}

func TestCompilePhysicalFilterNarrowsRows(t *testing.T) {
	store, table, col := newStoreWithRows(t, []int64{1, 2, 3})
	scan := optimizer.SeqScan{Table: plan.Get{Table: table}, Columns: []plan.Column{col}}
	pred := plan.FuncCall{Function: ">", Args: []plan.Scalar{plan.ColumnRef{Column: col}, plan.Literal{Value: kernel.Int64Value(1)}}}
	filter := optimizer.PhysicalFilter{Predicates: []plan.Scalar{pred}, Input: scan}
	q, err := Compile(filter, store)
	require.NoError(t, err)
	out, err := q.Next(session.New(5, nil, nil))
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
}

func TestCompileRejectsEnforcerNodes(t *testing.T) {
	store, table, col := newStoreWithRows(t, []int64{1})
	scan := optimizer.SeqScan{Table: plan.Get{Table: table}, Columns: []plan.Column{col}}
	_, err := Compile(optimizer.Broadcast{Input: scan}, store)
	require.Error(t, err)
}

func TestCompileDMLInsertThenScanSeesNewRow(t *testing.T) {
	store, table, col := newStoreWithRows(t, []int64{1})
	lit := plan.Literal{Value: kernel.Int64Value(9)}
	mapCol := plan.NewColumn("a")
	singleGet := plan.SingleGet{}
	values := optimizer.Trivial{Op: singleGet}
	mapNode := optimizer.PhysicalMap{Projects: []plan.MapColumn{{Column: mapCol, Expr: lit}}, Input: values}
	dml := optimizer.PhysicalDML{Kind: plan.DMLInsert, Table: plan.Get{Table: table}, Input: mapNode}

	q, err := Compile(dml, store)
	require.NoError(t, err)
	_, err = q.Next(session.New(2, nil, nil))
	require.NoError(t, err)

	scan := optimizer.SeqScan{Table: plan.Get{Table: table}, Columns: []plan.Column{col}}
	q2, err := Compile(scan, store)
	require.NoError(t, err)
	out, err := q2.Next(session.New(2, nil, nil))
	require.NoError(t, err)
	require.Equal(t, 2, out.Len())
}
