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

// Package rpc is the wire boundary between a coordinator and a worker
// (spec.md §6): a hand-registered gRPC service, since the SQL-facing wire
// IDL (the external analyzer's protocol) is out of scope and nothing here
// is generated by protoc. Every RPC's request and response is a
// google.golang.org/protobuf well-known type — Empty, a scalar wrapper, or
// BytesValue — so the service rides the real protobuf wire codec without
// needing generated message code; BytesValue's payload is this package's
// own msgpack encoding of the richer shapes (a page, a batch, a submit
// request) that don't fit a single scalar.
package rpc

import (
	"github.com/castorsql/castor/catalog"
	"github.com/castorsql/castor/distributed"
	"github.com/castorsql/castor/kernel"
	"github.com/castorsql/castor/plan"
	"github.com/castorsql/castor/stats"
	"gopkg.in/vmihailenco/msgpack.v2"
)

// columnDTO is the wire shape of one kernel.Column: a msgpack-friendly
// projection through the Array interface's public accessors, since the
// concrete array types carry unexported fields (bitmaps, offset slices)
// msgpack's reflection-based codec cannot see.
type columnDTO struct {
	Name    string
	Kind    kernel.Kind
	Valid   []bool
	Bools   []bool    `msgpack:",omitempty"`
	Ints    []int64   `msgpack:",omitempty"`
	Floats  []float64 `msgpack:",omitempty"`
	Strings []string  `msgpack:",omitempty"`
}

type batchDTO struct {
	Columns []columnDTO
}

// encodeBatch flattens a RecordBatch into its wire DTO form.
func encodeBatch(b *kernel.RecordBatch) batchDTO {
	dto := batchDTO{Columns: make([]columnDTO, len(b.Columns))}
	for i, col := range b.Columns {
		n := col.Array.Len()
		c := columnDTO{Name: col.Name, Kind: col.Array.Kind(), Valid: make([]bool, n)}
		for r := 0; r < n; r++ {
			c.Valid[r] = col.Array.IsValid(r)
		}
		switch arr := col.Array.(type) {
		case *kernel.BoolArray:
			c.Bools = make([]bool, n)
			for r := 0; r < n; r++ {
				c.Bools[r], _ = arr.Get(r)
			}
		case *kernel.Int64Array:
			c.Ints = make([]int64, n)
			for r := 0; r < n; r++ {
				c.Ints[r], _ = arr.Get(r)
			}
		case *kernel.Float64Array:
			c.Floats = make([]float64, n)
			for r := 0; r < n; r++ {
				c.Floats[r], _ = arr.Get(r)
			}
		case *kernel.StringArray:
			c.Strings = make([]string, n)
			for r := 0; r < n; r++ {
				c.Strings[r], _ = arr.Get(r)
			}
		}
		dto.Columns[i] = c
	}
	return dto
}

// decodeBatch rebuilds a RecordBatch from its wire DTO form.
func decodeBatch(dto batchDTO) *kernel.RecordBatch {
	cols := make([]kernel.Column, len(dto.Columns))
	for i, c := range dto.Columns {
		var arr kernel.Array
		switch c.Kind {
		case kernel.Bool:
			a := kernel.NewBoolArray()
			for r, v := range c.Valid {
				a.Push(c.Bools[r], v)
			}
			arr = a
		case kernel.Float64:
			a := kernel.NewFloat64Array()
			for r, v := range c.Valid {
				a.Push(c.Floats[r], v)
			}
			arr = a
		case kernel.String:
			a := kernel.NewStringArray()
			for r, v := range c.Valid {
				a.Push(c.Strings[r], v)
			}
			arr = a
		default:
			a := newInt64Like(c.Kind)
			for r, v := range c.Valid {
				a.Push(c.Ints[r], v)
			}
			arr = a
		}
		cols[i] = kernel.Column{Name: c.Name, Array: arr}
	}
	return kernel.NewRecordBatch(cols)
}

func newInt64Like(k kernel.Kind) *kernel.Int64Array {
	switch k {
	case kernel.Date:
		return kernel.NewDateArray()
	case kernel.Timestamp:
		return kernel.NewTimestampArray()
	default:
		return kernel.NewInt64Array()
	}
}

// pageDTO is the wire shape of distributed.Page (spec.md §7): exactly one
// of Batch/Err is populated.
type pageDTO struct {
	Batch *batchDTO `msgpack:",omitempty"`
	Err   string    `msgpack:",omitempty"`
}

func encodePage(p distributed.Page) ([]byte, error) {
	dto := pageDTO{Err: p.Err}
	if p.Batch != nil {
		b := encodeBatch(p.Batch)
		dto.Batch = &b
	}
	return msgpack.Marshal(dto)
}

func decodePage(data []byte) (distributed.Page, error) {
	var dto pageDTO
	if err := msgpack.Unmarshal(data, &dto); err != nil {
		return distributed.Page{}, err
	}
	p := distributed.Page{Err: dto.Err}
	if dto.Batch != nil {
		p.Batch = decodeBatch(*dto.Batch)
	}
	return p, nil
}

// valueDTO is the wire shape of a bound query parameter (kernel.Value).
type valueDTO struct {
	Kind  kernel.Kind
	Valid bool
	Bool  bool
	I64   int64
	F64   float64
	Str   string
}

func encodeValue(v kernel.Value) valueDTO {
	return valueDTO{Kind: v.Kind, Valid: v.Valid, Bool: v.Bool, I64: v.I64, F64: v.F64, Str: v.Str}
}

func decodeValue(d valueDTO) kernel.Value {
	return kernel.Value{Kind: d.Kind, Valid: d.Valid, Bool: d.Bool, I64: d.I64, F64: d.F64, Str: d.Str}
}

// submitRequestDTO is the coordinator-facing Submit call (spec.md §6):
// sql text, named parameter bindings, the catalog to resolve names
// against, and an optional pre-assigned transaction id (resubmission of
// an already-running statement reuses its id rather than minting a new
// one).
type submitRequestDTO struct {
	SQL       string
	Variables map[string]valueDTO
	CatalogID catalog.CatalogID
	Txn       int64
	HasTxn    bool
}

func encodeSubmitRequest(sql string, variables map[string]kernel.Value, catalogID catalog.CatalogID, txn *int64) ([]byte, error) {
	dto := submitRequestDTO{SQL: sql, CatalogID: catalogID, Variables: make(map[string]valueDTO, len(variables))}
	for name, v := range variables {
		dto.Variables[name] = encodeValue(v)
	}
	if txn != nil {
		dto.Txn, dto.HasTxn = *txn, true
	}
	return msgpack.Marshal(dto)
}

func decodeSubmitRequest(data []byte) (sql string, variables map[string]kernel.Value, catalogID catalog.CatalogID, txn *int64, err error) {
	var dto submitRequestDTO
	if err = msgpack.Unmarshal(data, &dto); err != nil {
		return "", nil, 0, nil, err
	}
	variables = make(map[string]kernel.Value, len(dto.Variables))
	for name, v := range dto.Variables {
		variables[name] = decodeValue(v)
	}
	if dto.HasTxn {
		t := dto.Txn
		txn = &t
	}
	return dto.SQL, variables, dto.CatalogID, txn, nil
}

// stageRequestDTO is shared by Output/Broadcast/Exchange: a gob-encoded
// physical plan (see plan_codec.go) tagged with the transaction and stage
// it belongs to, plus the parameters a Broadcast/Exchange call adds
// (listener count, hash bucket/column) per spec.md §6. The rendezvous
// fingerprint (distributed.Key.Expr) is derived server-side from the
// decoded plan rather than trusted off the wire, so every worker that
// decodes the same bytes lands on the same Key.
type stageRequestDTO struct {
	Plan       []byte
	Txn        int64
	Stage      int32
	Listeners  int32
	HashColumn string `msgpack:",omitempty"`
	HashBucket int32
}

func encodeStageRequest(op plan.Operator, txn int64, stage, listeners int32, hashColumn string, hashBucket int32) ([]byte, error) {
	planBytes, err := encodeOperator(op)
	if err != nil {
		return nil, err
	}
	r := stageRequestDTO{Plan: planBytes, Txn: txn, Stage: stage, Listeners: listeners, HashColumn: hashColumn, HashBucket: hashBucket}
	return msgpack.Marshal(r)
}

func decodeStageRequest(data []byte) (plan.Operator, stageRequestDTO, error) {
	var r stageRequestDTO
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return nil, r, err
	}
	op, err := decodeOperator(r.Plan)
	return op, r, err
}

type columnStatisticsRequestDTO struct {
	TableID    catalog.TableID
	ColumnName string
}

func encodeColumnStatisticsRequest(tableID catalog.TableID, column string) ([]byte, error) {
	return msgpack.Marshal(columnStatisticsRequestDTO{TableID: tableID, ColumnName: column})
}

func decodeColumnStatisticsRequest(data []byte) (columnStatisticsRequestDTO, error) {
	var r columnStatisticsRequestDTO
	err := msgpack.Unmarshal(data, &r)
	return r, err
}

func encodeColumnStatisticsResponse(snap stats.ColumnStatsSnapshot) ([]byte, error) {
	return msgpack.Marshal(snap)
}

func decodeColumnStatisticsResponse(data []byte) (stats.ColumnStatsSnapshot, error) {
	var snap stats.ColumnStatsSnapshot
	err := msgpack.Unmarshal(data, &snap)
	return snap, err
}

// traceResponseDTO carries one row per stage this worker ran for a
// transaction (spec.md §6 `trace(txn)` → per-stage timing records).
type traceResponseDTO struct {
	Stages []StageTiming
}

// StageTiming is one row of a trace response.
type StageTiming struct {
	Stage    int32
	WorkerID int32
	Micros   int64
}

func encodeTraceResponse(stages []StageTiming) ([]byte, error) {
	return msgpack.Marshal(traceResponseDTO{Stages: stages})
}

func decodeTraceResponse(data []byte) ([]StageTiming, error) {
	var dto traceResponseDTO
	if err := msgpack.Unmarshal(data, &dto); err != nil {
		return nil, err
	}
	return dto.Stages, nil
}
