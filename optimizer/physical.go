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

// Package optimizer implements the Cascades-style cost-based search
// (spec.md §4.8): physical operators, the local cost model, the
// required-property table, and the optimize_group/optimize_expr/
// optimize_inputs_and_cost driver that turns a memoized logical plan
// into a single winning physical plan.
package optimizer

import (
	"github.com/castorsql/castor/memo"
	"github.com/castorsql/castor/plan"
)

// Required returns the property a physical operator demands of input i
// (spec.md §4.8's required-property table). Operators not listed there
// require nothing of any input.
func Required(op plan.Operator, i int) memo.RequiredProperty {
	switch o := op.(type) {
	case HashJoin:
		if i == 0 {
			if o.Broadcast {
				return memo.PropBroadcast
			}
			return memo.PropExchange
		}
		if o.Broadcast {
			return memo.PropNone
		}
		return memo.PropExchange
	case IndexScan:
		return memo.PropBroadcast
	case NestedLoop:
		if i == 0 {
			return memo.PropBroadcast
		}
		return memo.PropNone
	case PhysicalAggregate:
		return memo.PropExchange
	case PhysicalCall:
		return memo.PropBroadcast
	case PhysicalSort:
		return memo.PropGather
	default:
		return memo.PropNone
	}
}

// SeqScan reads every row of Table, physically.
type SeqScan struct {
	Table      plan.Get
	Columns    []plan.Column
	Predicates []plan.Scalar
}

func (SeqScan) Physical() bool                               { return true }
func (SeqScan) Inputs() []plan.Operator                      { return nil }
func (s SeqScan) WithInputs(_ []plan.Operator) plan.Operator { return s }

// IndexScan reads Table through Index, restricted to the range Predicates
// describe; Required(_, 0) is BroadcastDist since the index itself is not
// partitioned across workers (spec.md §4.8).
type IndexScan struct {
	Table      plan.Get
	IndexName  string
	Columns    []plan.Column
	Predicates []plan.Scalar
}

func (IndexScan) Physical() bool                               { return true }
func (IndexScan) Inputs() []plan.Operator                      { return nil }
func (s IndexScan) WithInputs(_ []plan.Operator) plan.Operator { return s }

// PhysicalFilter is Filter's physical counterpart; no enforcer sits
// between it and its input (required property None).
type PhysicalFilter struct {
	Predicates []plan.Scalar
	Input      plan.Operator
}

func (PhysicalFilter) Physical() bool            { return true }
func (f PhysicalFilter) Inputs() []plan.Operator { return []plan.Operator{f.Input} }
func (f PhysicalFilter) WithInputs(in []plan.Operator) plan.Operator {
	f.Input = in[0]
	return f
}

// PhysicalMap is Map's physical counterpart.
type PhysicalMap struct {
	Projects []plan.MapColumn
	Input    plan.Operator
}

func (PhysicalMap) Physical() bool            { return true }
func (m PhysicalMap) Inputs() []plan.Operator { return []plan.Operator{m.Input} }
func (m PhysicalMap) WithInputs(in []plan.Operator) plan.Operator {
	m.Input = in[0]
	return m
}

// NestedLoop joins every row of Left against every row of Right, checking
// Predicates; the fallback join strategy used whenever a Join carries no
// usable equi-key (spec.md §4.8: NestedLoop = |L|·|R|·1).
type NestedLoop struct {
	Kind       plan.JoinKind
	Predicates []plan.Scalar
	Mark       plan.Column
	Left       plan.Operator
	Right      plan.Operator
}

func (NestedLoop) Physical() bool            { return true }
func (j NestedLoop) Inputs() []plan.Operator { return []plan.Operator{j.Left, j.Right} }
func (j NestedLoop) WithInputs(in []plan.Operator) plan.Operator {
	j.Left, j.Right = in[0], in[1]
	return j
}

// HashJoin builds a hash table on Left and probes with Right. Broadcast
// picks which required-property row of spec.md §4.8's table applies:
// true requires BroadcastDist on the left input (the whole build side is
// replicated to every worker) and None on the right; false requires
// ExchangeDist (hash-partitioned) on both.
type HashJoin struct {
	Kind       plan.JoinKind
	Predicates []plan.Scalar
	Mark       plan.Column
	EquiLeft   []string
	EquiRight  []string
	Broadcast  bool
	Left       plan.Operator
	Right      plan.Operator
}

func (HashJoin) Physical() bool            { return true }
func (j HashJoin) Inputs() []plan.Operator { return []plan.Operator{j.Left, j.Right} }
func (j HashJoin) WithInputs(in []plan.Operator) plan.Operator {
	j.Left, j.Right = in[0], in[1]
	return j
}

// PhysicalAggregate is Aggregate's physical counterpart. Required(_, 0)
// is ExchangeDist: rows with the same GroupBy key must land on the same
// worker before folding (spec.md §4.8).
type PhysicalAggregate struct {
	GroupBy    []plan.Column
	Aggregates []plan.AggregateExpr
	Input      plan.Operator
}

func (PhysicalAggregate) Physical() bool            { return true }
func (a PhysicalAggregate) Inputs() []plan.Operator { return []plan.Operator{a.Input} }
func (a PhysicalAggregate) WithInputs(in []plan.Operator) plan.Operator {
	a.Input = in[0]
	return a
}

// PhysicalSort totally orders Input by Keys; Required(_, 0) is
// GatherDist since a total order needs every row on one worker.
type PhysicalSort struct {
	Keys  []plan.SortKey
	Input plan.Operator
}

func (PhysicalSort) Physical() bool            { return true }
func (s PhysicalSort) Inputs() []plan.Operator { return []plan.Operator{s.Input} }
func (s PhysicalSort) WithInputs(in []plan.Operator) plan.Operator {
	s.Input = in[0]
	return s
}

// PhysicalOut, PhysicalLimit, PhysicalUnion, PhysicalInsert,
// PhysicalDelete and PhysicalCall are zero-or-near-zero-cost physical
// wrappers around their logical counterparts (spec.md §4.8's cost table
// lists these at 0 except Insert/Delete, which are |in|·1).

type PhysicalOut struct {
	Columns []plan.Column
	Input   plan.Operator
}

func (PhysicalOut) Physical() bool            { return true }
func (o PhysicalOut) Inputs() []plan.Operator { return []plan.Operator{o.Input} }
func (o PhysicalOut) WithInputs(in []plan.Operator) plan.Operator {
	o.Input = in[0]
	return o
}

type PhysicalLimit struct {
	Limit  int64
	Offset int64
	Input  plan.Operator
}

func (PhysicalLimit) Physical() bool            { return true }
func (l PhysicalLimit) Inputs() []plan.Operator { return []plan.Operator{l.Input} }
func (l PhysicalLimit) WithInputs(in []plan.Operator) plan.Operator {
	l.Input = in[0]
	return l
}

type PhysicalUnion struct {
	Left  plan.Operator
	Right plan.Operator
}

func (PhysicalUnion) Physical() bool            { return true }
func (u PhysicalUnion) Inputs() []plan.Operator { return []plan.Operator{u.Left, u.Right} }
func (u PhysicalUnion) WithInputs(in []plan.Operator) plan.Operator {
	u.Left, u.Right = in[0], in[1]
	return u
}

type PhysicalDML struct {
	Kind  plan.DMLKind
	Table plan.Get
	Input plan.Operator
}

func (PhysicalDML) Physical() bool            { return true }
func (d PhysicalDML) Inputs() []plan.Operator { return []plan.Operator{d.Input} }
func (d PhysicalDML) WithInputs(in []plan.Operator) plan.Operator {
	d.Input = in[0]
	return d
}

// PhysicalCall implements a built-in catalog procedure; Required(_, 0)
// is BroadcastDist so every worker observes the DDL call (spec.md §4.8).
type PhysicalCall struct {
	Procedure string
	Args      []plan.Scalar
}

func (PhysicalCall) Physical() bool                               { return true }
func (PhysicalCall) Inputs() []plan.Operator                      { return nil }
func (c PhysicalCall) WithInputs(_ []plan.Operator) plan.Operator { return c }

// Broadcast, Exchange and Gather are enforcer operators the search
// inserts to satisfy a required property an input's winner does not
// already meet (spec.md §4.8): Broadcast replicates Input to every
// worker, Exchange hash-partitions Input by HashColumn, Gather collects
// Input onto a single worker.
type Broadcast struct {
	Input plan.Operator
}

func (Broadcast) Physical() bool            { return true }
func (b Broadcast) Inputs() []plan.Operator { return []plan.Operator{b.Input} }
func (b Broadcast) WithInputs(in []plan.Operator) plan.Operator {
	b.Input = in[0]
	return b
}

type Exchange struct {
	HashColumn string
	Input      plan.Operator
}

func (Exchange) Physical() bool            { return true }
func (e Exchange) Inputs() []plan.Operator { return []plan.Operator{e.Input} }
func (e Exchange) WithInputs(in []plan.Operator) plan.Operator {
	e.Input = in[0]
	return e
}

type Gather struct {
	Input plan.Operator
}

func (Gather) Physical() bool            { return true }
func (g Gather) Inputs() []plan.Operator { return []plan.Operator{g.Input} }
func (g Gather) WithInputs(in []plan.Operator) plan.Operator {
	g.Input = in[0]
	return g
}

// Trivial marks a logical node that needs no physical strategy of its
// own (SingleGet, With, GetWith, CreateTempTable, DDL, Script, Assign,
// Explain — spec.md §4.8's cost table gives these zero cost, and none
// of them appear in the required-property table) as physical, so the
// driver can install a winner for its group without a dedicated
// physical operator type per logical node.
type Trivial struct {
	Op plan.Operator
}

func (Trivial) Physical() bool            { return true }
func (t Trivial) Inputs() []plan.Operator { return t.Op.Inputs() }
func (t Trivial) WithInputs(in []plan.Operator) plan.Operator {
	return Trivial{Op: t.Op.WithInputs(in)}
}

// Meets reports whether a physical operator already satisfies a required
// property on its own, without needing an enforcer inserted above it
// (spec.md §4.8: "each physical operator meets exactly one property").
func Meets(op plan.Operator, req memo.RequiredProperty) bool {
	if req == memo.PropNone {
		return true
	}
	switch op.(type) {
	case Broadcast:
		return req == memo.PropBroadcast
	case Exchange:
		return req == memo.PropExchange
	case Gather:
		return req == memo.PropGather
	default:
		return false
	}
}
