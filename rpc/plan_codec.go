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
	"bytes"
	"encoding/gob"

	"github.com/castorsql/castor/optimizer"
	"github.com/castorsql/castor/plan"
)

// init registers every concrete plan.Operator/plan.Scalar implementation
// that can appear in a stage sent across the wire, so gob can encode the
// operator tree through its plan.Operator/plan.Scalar interface fields.
// This is the one place this package reaches for encoding/gob rather than
// msgpack: the original engine serializes its `ast::Expr` sum type with
// bincode, which (like gob) walks an enum/interface tree directly; msgpack
// v2 has no equivalent facility for polymorphic Go interfaces, and a
// closed-form protobuf schema for every operator shape would mean hand
// writing and maintaining ~30 message types with no protoc available to
// check them (see DESIGN.md's rpc section).
func init() {
	for _, t := range []interface{}{
		plan.Leaf{}, plan.SingleGet{}, plan.Get{}, plan.Filter{}, plan.Map{},
		plan.Out{}, plan.Join{}, plan.DependentJoin{}, plan.With{}, plan.GetWith{},
		plan.CreateTempTable{}, plan.Aggregate{}, plan.Limit{}, plan.Sort{},
		plan.Union{}, plan.DDL{}, plan.DML{}, plan.Script{}, plan.Explain{},
		plan.Assign{}, plan.Call{},
		plan.Literal{}, plan.ColumnRef{}, plan.Parameter{}, plan.FuncCall{}, plan.Cast{},
		optimizer.SeqScan{}, optimizer.IndexScan{}, optimizer.PhysicalFilter{},
		optimizer.PhysicalMap{}, optimizer.NestedLoop{}, optimizer.HashJoin{},
		optimizer.PhysicalAggregate{}, optimizer.PhysicalSort{}, optimizer.PhysicalOut{},
		optimizer.PhysicalLimit{}, optimizer.PhysicalUnion{}, optimizer.PhysicalDML{},
		optimizer.PhysicalCall{}, optimizer.Broadcast{}, optimizer.Exchange{},
		optimizer.Gather{}, optimizer.Trivial{},
	} {
		gob.Register(t)
	}
}

// operatorEnvelope lets gob encode a bare plan.Operator interface value: a
// struct field typed as the interface, rather than the interface value
// itself, is what triggers gob's registered-concrete-type dispatch.
type operatorEnvelope struct {
	Op plan.Operator
}

// encodeOperator serializes a physical plan for the wire (the Expr a
// Broadcast/Exchange/Output request carries, spec.md §6).
func encodeOperator(op plan.Operator) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(operatorEnvelope{Op: op}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeOperator(data []byte) (plan.Operator, error) {
	var env operatorEnvelope
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&env); err != nil {
		return nil, err
	}
	return env.Op, nil
}
