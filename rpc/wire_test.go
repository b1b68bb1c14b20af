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

package rpc

import (
	"testing"

	"github.com/castorsql/castor/catalog"
	"github.com/castorsql/castor/distributed"
	"github.com/castorsql/castor/kernel"
	"github.com/castorsql/castor/optimizer"
	"github.com/castorsql/castor/plan"
	"github.com/castorsql/castor/stats"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeBatchRoundTrips(t *testing.T) {
	strs := kernel.NewStringArray()
	for _, s := range []string{"x", "y", "z"} {
		strs.Push(s, true)
	}
	batch := kernel.NewRecordBatch([]kernel.Column{
		{Name: "a", Array: kernel.NewInt64ArrayFromValues([]int64{1, 2, 3})},
		{Name: "b", Array: strs},
	})
	dto := encodeBatch(batch)
	got := decodeBatch(dto)
	require.Equal(t, batch.Len(), got.Len())
	require.Equal(t, 2, len(got.Columns))
}

func TestEncodeDecodePageRoundTrips(t *testing.T) {
	batch := kernel.NewRecordBatch([]kernel.Column{
		{Name: "a", Array: kernel.NewInt64ArrayFromValues([]int64{7})},
	})
	data, err := encodePage(distributed.Page{Batch: batch})
	require.NoError(t, err)
	got, err := decodePage(data)
	require.NoError(t, err)
	require.Empty(t, got.Err)
	require.Equal(t, 1, got.Batch.Len())

	data, err = encodePage(distributed.Page{Err: "boom"})
	require.NoError(t, err)
	got, err = decodePage(data)
	require.NoError(t, err)
	require.Nil(t, got.Batch)
	require.Equal(t, "boom", got.Err)
}

func TestEncodeDecodeSubmitRequestRoundTrips(t *testing.T) {
	vars := map[string]kernel.Value{"x": {Kind: kernel.Int64, Valid: true, I64: 42}}
	txn := int64(9)
	data, err := encodeSubmitRequest("select 1", vars, catalog.CatalogID(3), &txn)
	require.NoError(t, err)

	sql, gotVars, catalogID, gotTxn, err := decodeSubmitRequest(data)
	require.NoError(t, err)
	require.Equal(t, "select 1", sql)
	require.Equal(t, catalog.CatalogID(3), catalogID)
	require.NotNil(t, gotTxn)
	require.Equal(t, txn, *gotTxn)
	require.Equal(t, int64(42), gotVars["x"].I64)
}

func TestEncodeDecodeSubmitRequestWithoutTxn(t *testing.T) {
	data, err := encodeSubmitRequest("select 1", nil, catalog.CatalogID(0), nil)
	require.NoError(t, err)
	_, _, _, gotTxn, err := decodeSubmitRequest(data)
	require.NoError(t, err)
	require.Nil(t, gotTxn)
}

func TestEncodeDecodeOperatorRoundTrips(t *testing.T) {
	col := plan.NewColumn("a")
	table := catalog.Table{ID: 1, Name: "t", Schema: catalog.Schema{{ID: 0, Name: "a", Type: kernel.Int64}}}
	op := optimizer.SeqScan{Table: plan.Get{Table: table}, Columns: []plan.Column{col}}

	data, err := encodeOperator(op)
	require.NoError(t, err)
	got, err := decodeOperator(data)
	require.NoError(t, err)
	require.IsType(t, optimizer.SeqScan{}, got)
}

func TestEncodeDecodeStageRequestRoundTrips(t *testing.T) {
	col := plan.NewColumn("a")
	table := catalog.Table{ID: 1, Name: "t", Schema: catalog.Schema{{ID: 0, Name: "a", Type: kernel.Int64}}}
	op := optimizer.SeqScan{Table: plan.Get{Table: table}, Columns: []plan.Column{col}}

	data, err := encodeStageRequest(op, 5, 2, 3, "a", 1)
	require.NoError(t, err)
	gotOp, dto, err := decodeStageRequest(data)
	require.NoError(t, err)
	require.IsType(t, optimizer.SeqScan{}, gotOp)
	require.Equal(t, int64(5), dto.Txn)
	require.Equal(t, int32(2), dto.Stage)
	require.Equal(t, int32(3), dto.Listeners)
	require.Equal(t, "a", dto.HashColumn)
	require.Equal(t, int32(1), dto.HashBucket)
}

func TestEncodeDecodeColumnStatisticsRoundTrips(t *testing.T) {
	reqData, err := encodeColumnStatisticsRequest(catalog.TableID(4), "col")
	require.NoError(t, err)
	req, err := decodeColumnStatisticsRequest(reqData)
	require.NoError(t, err)
	require.Equal(t, catalog.TableID(4), req.TableID)
	require.Equal(t, "col", req.ColumnName)

	cs := stats.NewColumnStats()
	cs.Observe(kernel.NewInt64ArrayFromValues([]int64{1, 2, 3}))
	respData, err := encodeColumnStatisticsResponse(cs.Snapshot())
	require.NoError(t, err)
	snap, err := decodeColumnStatisticsResponse(respData)
	require.NoError(t, err)
	require.Equal(t, int64(3), snap.RowCount)
}

func TestEncodeDecodeTraceResponseRoundTrips(t *testing.T) {
	stages := []StageTiming{{Stage: 1, WorkerID: 2, Micros: 300}}
	data, err := encodeTraceResponse(stages)
	require.NoError(t, err)
	got, err := decodeTraceResponse(data)
	require.NoError(t, err)
	require.Equal(t, stages, got)
}
